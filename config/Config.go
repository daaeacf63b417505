package config

import (
	"fmt"
	"time"

	"github.com/mohitkumar/automate/analytics"
)

type StorageType string

const STORAGE_TYPE_REDIS StorageType = "redis"
const STORAGE_TYPE_INMEM StorageType = "memory"
const STORAGE_TYPE_SQLITE StorageType = "sqlite"

type Config struct {
	RedisConfig     RedisStorageConfig
	SqliteConfig    SqliteStorageConfig
	HttpPort        int
	StorageType     StorageType
	CatalogPath     string
	LogLevel        string
	Development     bool
	RunStateTTL     time.Duration
	FetchTimeout    time.Duration
	AnalyticsConfig analytics.DataCollectorConfig
}

type RedisStorageConfig struct {
	Addrs     []string
	Namespace string
	PoolSize  int
	Password  string
}

type SqliteStorageConfig struct {
	Path string
}

func (c Config) HttpAddr() string {
	return fmt.Sprintf(":%d", c.HttpPort)
}

func (c Config) Validate() error {
	if c.HttpPort < 0 || c.HttpPort > 65535 {
		return fmt.Errorf("invalid http port %d", c.HttpPort)
	}
	switch c.StorageType {
	case STORAGE_TYPE_INMEM:
	case STORAGE_TYPE_REDIS:
		if len(c.RedisConfig.Addrs) == 0 {
			return fmt.Errorf("redis storage needs at least one address")
		}
	case STORAGE_TYPE_SQLITE:
		if len(c.SqliteConfig.Path) == 0 {
			return fmt.Errorf("sqlite storage needs a path")
		}
	default:
		return fmt.Errorf("unknown storage type %q", c.StorageType)
	}
	return nil
}
