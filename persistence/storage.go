package persistence

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/mohitkumar/automate/model"
	"github.com/mohitkumar/automate/util"
)

type StorageLayerError struct {
	Message string
}

func (e StorageLayerError) Error() string {
	return fmt.Sprintf("storage layer error %s", e.Message)
}

type RecordExistsError struct {
	Id string
}

func (e RecordExistsError) Error() string {
	return fmt.Sprintf("record %s already exists", e.Id)
}

// Match selects records whose serialized properties equal every entry. An empty match selects all.
type Match map[string]any

// Storage keeps the serialized flows.
type Storage interface {
	CreateRecord(rec model.FlowRecord) error
	UpdateRecord(match Match, patch map[string]any) (int, error)
	RemoveRecord(match Match) (int, error)
	FindRecords(match Match) ([]model.FlowRecord, error)
	Close() error
}

func ById(id string) Match {
	return Match{"id": id}
}

// Matches reports whether rec satisfies m, values are compared in their json form.
func Matches(rec model.FlowRecord, m Match) (bool, error) {
	if len(m) == 0 {
		return true, nil
	}
	recMap, err := util.ToMap(rec)
	if err != nil {
		return false, err
	}
	want, err := util.ToMap(map[string]any(m))
	if err != nil {
		return false, err
	}
	for k, v := range want {
		if !reflect.DeepEqual(recMap[k], v) {
			return false, nil
		}
	}
	return true, nil
}

// ApplyPatch overwrites the top level properties of rec named in patch.
func ApplyPatch(rec model.FlowRecord, patch map[string]any) (model.FlowRecord, error) {
	recMap, err := util.ToMap(rec)
	if err != nil {
		return rec, err
	}
	patchMap, err := util.ToMap(patch)
	if err != nil {
		return rec, err
	}
	for k, v := range patchMap {
		if k == "id" {
			continue
		}
		recMap[k] = v
	}
	out, err := util.FromMap[model.FlowRecord](recMap)
	if err != nil {
		return rec, StorageLayerError{Message: err.Error()}
	}
	return *out, nil
}

func SortByCreateDate(records []model.FlowRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].CreateDate.Equal(records[j].CreateDate) {
			return records[i].Id < records[j].Id
		}
		return records[i].CreateDate.Before(records[j].CreateDate)
	})
}
