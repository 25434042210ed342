package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/sqlgate/internal/infrastructure/database"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string          `json:"timestamp"`
	Version       string          `json:"version"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Runtime       RuntimeMetrics  `json:"runtime"`
	MQTT          ServiceMetrics  `json:"mqtt"`
	InfluxDB      ServiceMetrics  `json:"influxdb"`
	Database      DatabaseMetrics `json:"database"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// ServiceMetrics reports an optional collaborator.
type ServiceMetrics struct {
	Enabled   bool `json:"enabled"`
	Connected bool `json:"connected"`
}

// DatabaseMetrics describes the SQLite file and its migrations.
type DatabaseMetrics struct {
	Path              string `json:"path"`
	Tables            int    `json:"tables"`
	MigrationsApplied int    `json:"migrations_applied"`
	MigrationsPending int    `json:"migrations_pending"`
}

// handleMetrics returns runtime, collaborator and database metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		MQTT:     serviceMetrics(s.changes),
		InfluxDB: serviceMetrics(s.metrics),
		Database: DatabaseMetrics{Path: s.dbCfg.Path},
	}

	err := s.withDB(r, func(db *database.DB) error {
		tables, err := db.ListTables(r.Context())
		if err != nil {
			return err
		}
		applied, pending, err := db.GetMigrationStatus(r.Context())
		if err != nil {
			return err
		}
		metrics.Database.Tables = len(tables)
		metrics.Database.MigrationsApplied = len(applied)
		metrics.Database.MigrationsPending = len(pending)
		return nil
	})
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, metrics)
}

// serviceMetrics reports whether a collaborator is configured and, when it
// exposes one, its connection state.
func serviceMetrics(svc any) ServiceMetrics {
	if svc == nil {
		return ServiceMetrics{}
	}
	m := ServiceMetrics{Enabled: true, Connected: true}
	if c, ok := svc.(connectionReporter); ok {
		m.Connected = c.IsConnected()
	}
	return m
}
