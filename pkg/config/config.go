// Package config defines zoneweaverd's on-disk configuration and its
// defaults. Every tunable named in the configuration surface is loaded once
// at startup and applied here, rather than threaded through as ad hoc
// nullable overrides at the point of use.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration loaded from a single YAML file.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Zones          ZonesConfig          `yaml:"zones"`
	HostMonitoring HostMonitoringConfig `yaml:"host_monitoring"`
	Logging        LoggingConfig        `yaml:"logging"`
	Executor       ExecutorConfig       `yaml:"executor"`
	Database       DatabaseConfig       `yaml:"database"`
	RebootFlag     RebootFlagConfig     `yaml:"reboot_flag"`
}

// ServerConfig configures the HTTP admin API.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// ZonesConfig configures the task queue scheduler and zone discovery.
type ZonesConfig struct {
	MaxConcurrentTasks   int           `yaml:"max_concurrent_tasks"`
	AutoDiscovery        bool          `yaml:"auto_discovery"`
	DiscoveryInterval    time.Duration `yaml:"discovery_interval"`
	DefaultPaginationLimit int         `yaml:"default_pagination_limit"`
	PartitionIDStart     int           `yaml:"partition_id_start"`
}

// HostMonitoringConfig configures ambient host-level bookkeeping: currently
// just task retention, but a natural home for host-level health polling
// intervals if those are added later.
type HostMonitoringConfig struct {
	Retention RetentionConfig `yaml:"retention"`
}

// RetentionConfig configures the task retention cleaner.
type RetentionConfig struct {
	Tasks        time.Duration `yaml:"tasks"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// LoggingConfig configures pkg/log.
type LoggingConfig struct {
	Level                  string `yaml:"level"`
	JSONOutput             bool   `yaml:"json_output"`
	PerformanceThresholdMs int64  `yaml:"performance_threshold_ms"`
}

// ExecutorConfig configures pkg/executor's default command timeout.
type ExecutorConfig struct {
	// DefaultTimeoutMs is applied to any operation that does not set its
	// own timeout. Defaults to 300000 (5 minutes).
	DefaultTimeoutMs int `yaml:"default_timeout_ms"`
}

// DatabaseConfig configures pkg/store.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// RebootFlagConfig configures pkg/reboot.
type RebootFlagConfig struct {
	Path string `yaml:"path"`
}

// defaults returns a Config populated with every default named in the
// configuration surface, before a file is overlaid on top of it.
func defaults() Config {
	return Config{
		Server: ServerConfig{
			ListenAddr: ":8080",
		},
		Zones: ZonesConfig{
			MaxConcurrentTasks:     5,
			AutoDiscovery:          true,
			DiscoveryInterval:      5 * time.Minute,
			DefaultPaginationLimit: 100,
			PartitionIDStart:       1,
		},
		HostMonitoring: HostMonitoringConfig{
			Retention: RetentionConfig{
				Tasks:         7 * 24 * time.Hour,
				SweepInterval: time.Hour,
			},
		},
		Logging: LoggingConfig{
			Level:                  "info",
			JSONOutput:             true,
			PerformanceThresholdMs: 5000,
		},
		Executor: ExecutorConfig{
			DefaultTimeoutMs: 300000,
		},
		Database: DatabaseConfig{
			Path: "/var/lib/zoneweaverd/tasks.db",
		},
		RebootFlag: RebootFlagConfig{
			Path: "/var/tmp/zoneweaver-reboot-required",
		},
	}
}

// Load reads and parses the YAML file at path, applying defaults for any
// field the file omits. A missing file is not an error: Load returns
// defaults() unchanged, so zoneweaverd can run with no configuration file
// at all.
func Load(path string) (Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg, nil
}
