package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	for name, tc := range map[string]struct {
		conf  Config
		valid bool
	}{
		"memory":            {conf: Config{HttpPort: 8080, StorageType: STORAGE_TYPE_INMEM}, valid: true},
		"redis":             {conf: Config{StorageType: STORAGE_TYPE_REDIS, RedisConfig: RedisStorageConfig{Addrs: []string{"localhost:6379"}}}, valid: true},
		"redis no address":  {conf: Config{StorageType: STORAGE_TYPE_REDIS}},
		"sqlite":            {conf: Config{StorageType: STORAGE_TYPE_SQLITE, SqliteConfig: SqliteStorageConfig{Path: "flows.db"}}, valid: true},
		"sqlite no path":    {conf: Config{StorageType: STORAGE_TYPE_SQLITE}},
		"unknown storage":   {conf: Config{StorageType: "dynamo"}},
		"port out of range": {conf: Config{HttpPort: 70000, StorageType: STORAGE_TYPE_INMEM}},
	} {
		t.Run(name, func(t *testing.T) {
			err := tc.conf.Validate()
			if tc.valid {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
	require.Equal(t, ":8080", Config{HttpPort: 8080}.HttpAddr())
}
