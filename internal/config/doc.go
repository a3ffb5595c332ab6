// Package config provides the configuration model of the gateway and its
// loading.
//
// Configuration is read once at startup from a YAML file and never changes
// for the lifetime of the process.
//
// # Features
//
//   - YAML configuration file loading over built-in defaults
//   - Environment variable substitution with ${VAR:-default} syntax
//   - Struct tag validation with cross-field checks and aggregated errors
//   - Conversion into the settings of the rate limiter, breakers and backends
//
// # Configuration Loading
//
//	cfg, err := config.LoadConfig("gateway.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := config.ValidateConfig(cfg); err != nil {
//	    log.Fatal(err)
//	}
//
// # Environment Variables
//
// Any value may reference the environment:
//
//	auth:
//	  jwt:
//	    secret: ${JWT_SECRET}
//	redis:
//	  address: ${REDIS_ADDR:-localhost:6379}
//
// A literal dollar sign is written as $$.
package config
