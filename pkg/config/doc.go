/*
Package config provides type-safe configuration extraction from map[string]any
and resolves the researchflow runtime Settings.

# Basic Usage

Create a Config from any map and extract values with defaults:

	cfg := config.New(map[string]any{
	    "timeout": "30s",
	    "retries": "3",
	})

	timeout := cfg.Duration("timeout", 10*time.Second) // 30s
	retries := cfg.Int("retries", 5)                   // 3
	missing := cfg.String("missing", "default")        // "default"

Every accessor also parses string values, since values from the
environment and .env files are always strings.

# Sources

Configuration comes from three places, later ones winning:

  - an optional YAML, JSON, or .env file (FromFile), keys matched case-insensitively
  - .env files (FromEnv), loaded with godotenv without touching the process environment
  - the process environment

Load combines them and returns validated Settings:

	settings, err := config.Load("researchflow.yaml", ".env")
*/
package config
