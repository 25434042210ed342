// Package mqtt publishes sqlgate change events to an MQTT broker.
//
// When enabled, every successful insert, update or delete made through the
// HTTP API is announced on {prefix}/changes/{table} so other services can
// react without polling the database. A retained status message on
// {prefix}/system/status reports online/offline, with a Last Will covering
// crashes.
//
// Security Considerations:
//   - Use TLS (mqtt.broker.tls) outside local development
//   - Change events carry table name, operation and row id only, never row data
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.PublishChange("users", mqtt.OpInsert, id)
package mqtt
