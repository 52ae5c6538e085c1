// Package common provides shared configuration and run statistics for the
// MDX conversion tools.
package common

import (
	"fmt"
	"os"
	"path/filepath"
)

// Config holds common configuration for all tools. Values come from the
// environment with sensible defaults; command-line flags override them.
type Config struct {
	ClickHouseHost     string
	ClickHousePort     int
	ClickHouseDatabase string
	ClickHouseUser     string
	ClickHousePassword string
	DataDir            string
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ClickHouseHost:     getEnv("CLICKHOUSE_HOST", "localhost"),
		ClickHousePort:     9000,
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "ionosonde"),
		ClickHouseUser:     getEnv("CLICKHOUSE_USER", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),
		DataDir:            getEnv("MDX_DATA_DIR", "/var/lib/mdx-convert"),
	}
}

// ClickHouseAddr returns the host:port address for ClickHouse clients.
func (c *Config) ClickHouseAddr() string {
	return fmt.Sprintf("%s:%d", c.ClickHouseHost, c.ClickHousePort)
}

// RawDataDir returns the default directory for incoming MD2/MD4 files.
func (c *Config) RawDataDir() string {
	return filepath.Join(c.DataDir, "raw")
}

// ConvertedDataDir returns the default directory for conversion outputs.
func (c *Config) ConvertedDataDir() string {
	return filepath.Join(c.DataDir, "converted")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
