package agent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/mohitkumar/automate/action"
	"github.com/mohitkumar/automate/analytics"
	"github.com/mohitkumar/automate/config"
	"github.com/mohitkumar/automate/flow"
	"github.com/mohitkumar/automate/runner/fetch"
	"github.com/mohitkumar/automate/runner/script"
	"github.com/stretchr/testify/require"
)

const catalogYaml = `
services:
  - name: petstore
    description: Pets
    serverURL: http://localhost:1
    runner: FetchRunner
    methods:
      - name: getPet
        definition:
          operation: get
          source: /pets/{petId}
          parameters:
            path:
              petId:
                required: true
`

func TestAgent(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T) config.Config{
		"memory storage": func(t *testing.T) config.Config {
			return config.Config{StorageType: config.STORAGE_TYPE_INMEM}
		},
		"sqlite storage": func(t *testing.T) config.Config {
			return config.Config{
				StorageType:  config.STORAGE_TYPE_SQLITE,
				SqliteConfig: config.SqliteStorageConfig{Path: filepath.Join(t.TempDir(), "flows.db")},
			}
		},
		"redis storage": func(t *testing.T) config.Config {
			mr := miniredis.RunT(t)
			return config.Config{
				StorageType: config.STORAGE_TYPE_REDIS,
				RedisConfig: config.RedisStorageConfig{Addrs: []string{mr.Addr()}, Namespace: "test"},
			}
		},
	} {
		t.Run(scenario, func(t *testing.T) {
			dir := t.TempDir()
			catalog := filepath.Join(dir, "catalog.yaml")
			require.NoError(t, os.WriteFile(catalog, []byte(catalogYaml), 0644))

			conf := fn(t)
			conf.CatalogPath = catalog
			conf.LogLevel = "error"
			conf.AnalyticsConfig.FileName = filepath.Join(dir, "analytics.log")
			conf.AnalyticsConfig.CollectorType = analytics.LOG_FILE_DATA_COLLECTOR

			a, err := New(conf)
			require.NoError(t, err)
			require.NoError(t, a.Start())

			_, err = a.Engine().Registry().FindMethod("petstore", "getPet")
			require.NoError(t, err)
			svc, ok := a.Engine().Registry().Service("petstore")
			require.True(t, ok)
			require.Equal(t, fetch.RUNNER_NAME, svc.Runner.Name())

			f, err := a.Engine().CreateFlow(flow.Props{Name: "calc"}, true)
			require.NoError(t, err)
			act, err := a.Engine().CreateAction(action.Props{}, script.SERVICE_NAME, "run")
			require.NoError(t, err)
			require.NoError(t, f.AddAction(act))

			res, err := a.Engine().RunFlow(f.GetId(), map[string]any{"script": "$.sum = $.a + $.b", "a": 1, "b": 2}, true)
			require.NoError(t, err)
			require.EqualValues(t, 3, res.(map[string]any)["sum"])

			require.NoError(t, a.Shutdown())
			require.NoError(t, a.Shutdown())
			<-a.Done()
		})
	}
}

func TestAgentInvalidConfig(t *testing.T) {
	_, err := New(config.Config{StorageType: "dynamo"})
	require.Error(t, err)
}
