// Package config loads sqlgate's YAML configuration.
//
// Values come from built-in defaults, then the YAML file, then environment
// variables; Validate reports every problem at once. Secrets (bearer
// tokens, the JWT secret, broker and InfluxDB credentials) are best kept out
// of the file and supplied through the environment or a .env file, which
// the CLI loads before calling Load.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
package config
