// Package storagetest holds the behaviour every persistence.Storage implementation must show.
package storagetest

import (
	"testing"
	"time"

	"github.com/mohitkumar/automate/model"
	"github.com/mohitkumar/automate/persistence"
	"github.com/stretchr/testify/require"
)

func record(id string, created time.Time, active bool) model.FlowRecord {
	return model.FlowRecord{
		Id:               id,
		Name:             "flow " + id,
		Description:      model.DEFAULT_FLOW_DESCRIPTION,
		CreateDate:       created,
		LastModifiedDate: created,
		Active:           active,
		Tags:             []string{"test"},
		Triggers:         []string{"go"},
		Actions: []model.ActionRecord{{
			Id:            id + "-a1",
			Method:        model.MethodRef{Service: "CoreFunction", Name: "log"},
			Args:          map[string]any{"message": "hi"},
			Wait:          true,
			Timeout:       15000,
			RetryCount:    3,
			OnErrorAction: "stop",
		}},
	}
}

// RunStorageContract exercises store, which must start empty.
func RunStorageContract(t *testing.T, store persistence.Storage) {
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	f1 := record("f1", base, true)
	f2 := record("f2", base.Add(time.Minute), false)
	f3 := record("f3", base.Add(2*time.Minute), true)

	t.Run("create and find", func(t *testing.T) {
		for _, rec := range []model.FlowRecord{f1, f2, f3} {
			require.NoError(t, store.CreateRecord(rec))
		}
		records, err := store.FindRecords(nil)
		require.NoError(t, err)
		require.Equal(t, []model.FlowRecord{f1, f2, f3}, records)
	})

	t.Run("create duplicate", func(t *testing.T) {
		err := store.CreateRecord(f1)
		var exists persistence.RecordExistsError
		require.ErrorAs(t, err, &exists)
		require.Equal(t, "f1", exists.Id)
	})

	t.Run("find by match", func(t *testing.T) {
		records, err := store.FindRecords(persistence.ById("f2"))
		require.NoError(t, err)
		require.Equal(t, []model.FlowRecord{f2}, records)

		records, err = store.FindRecords(persistence.Match{"active": true})
		require.NoError(t, err)
		require.Equal(t, []model.FlowRecord{f1, f3}, records)

		records, err = store.FindRecords(persistence.ById("missing"))
		require.NoError(t, err)
		require.Empty(t, records)
	})

	t.Run("update", func(t *testing.T) {
		n, err := store.UpdateRecord(persistence.ById("f2"), map[string]any{
			"name":   "renamed",
			"active": true,
			"tags":   []string{"a", "b"},
		})
		require.NoError(t, err)
		require.Equal(t, 1, n)

		records, err := store.FindRecords(persistence.ById("f2"))
		require.NoError(t, err)
		require.Len(t, records, 1)
		require.Equal(t, "renamed", records[0].Name)
		require.True(t, records[0].Active)
		require.Equal(t, []string{"a", "b"}, records[0].Tags)
		require.Equal(t, f2.Actions, records[0].Actions)

		n, err = store.UpdateRecord(persistence.ById("missing"), map[string]any{"name": "x"})
		require.NoError(t, err)
		require.Equal(t, 0, n)
	})

	t.Run("update keeps id", func(t *testing.T) {
		_, err := store.UpdateRecord(persistence.ById("f3"), map[string]any{"id": "other"})
		require.NoError(t, err)
		records, err := store.FindRecords(persistence.ById("f3"))
		require.NoError(t, err)
		require.Len(t, records, 1)
	})

	t.Run("remove", func(t *testing.T) {
		n, err := store.RemoveRecord(persistence.ById("f1"))
		require.NoError(t, err)
		require.Equal(t, 1, n)

		n, err = store.RemoveRecord(persistence.ById("f1"))
		require.NoError(t, err)
		require.Equal(t, 0, n)

		n, err = store.RemoveRecord(nil)
		require.NoError(t, err)
		require.Equal(t, 2, n)

		records, err := store.FindRecords(nil)
		require.NoError(t, err)
		require.Empty(t, records)
	})
}
