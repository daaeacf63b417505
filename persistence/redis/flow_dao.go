package redis

import (
	"context"
	"time"

	"github.com/mohitkumar/automate/model"
	"github.com/mohitkumar/automate/persistence"
	"github.com/mohitkumar/automate/util"
)

const FLOWS_KEY string = "FLOWS"

var _ persistence.Storage = new(redisFlowStorage)

// redisFlowStorage keeps every flow as a json field of one hash.
type redisFlowStorage struct {
	*baseDao
	encoderDecoder util.EncoderDecoder[model.FlowRecord]
}

func NewRedisFlowStorage(conf Config) (*redisFlowStorage, error) {
	s := &redisFlowStorage{
		baseDao:        newBaseDao(conf),
		encoderDecoder: util.NewJsonEncoderDecoder[model.FlowRecord](),
	}
	if err := s.ping(10 * time.Second); err != nil {
		s.redisClient.Close()
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return s, nil
}

func (r *redisFlowStorage) CreateRecord(rec model.FlowRecord) error {
	key := r.getNamespaceKey(FLOWS_KEY)
	ctx := context.Background()
	data, err := r.encoderDecoder.Encode(rec)
	if err != nil {
		return err
	}
	created, err := r.redisClient.HSetNX(ctx, key, rec.Id, string(data)).Result()
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	if !created {
		return persistence.RecordExistsError{Id: rec.Id}
	}
	return nil
}

func (r *redisFlowStorage) all() (map[string]model.FlowRecord, error) {
	key := r.getNamespaceKey(FLOWS_KEY)
	ctx := context.Background()
	values, err := r.redisClient.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	out := make(map[string]model.FlowRecord, len(values))
	for id, v := range values {
		rec, err := r.encoderDecoder.Decode([]byte(v))
		if err != nil {
			return nil, err
		}
		out[id] = *rec
	}
	return out, nil
}

func (r *redisFlowStorage) UpdateRecord(match persistence.Match, patch map[string]any) (int, error) {
	records, err := r.all()
	if err != nil {
		return 0, err
	}
	key := r.getNamespaceKey(FLOWS_KEY)
	ctx := context.Background()
	n := 0
	for id, rec := range records {
		ok, err := persistence.Matches(rec, match)
		if err != nil {
			return n, err
		}
		if !ok {
			continue
		}
		updated, err := persistence.ApplyPatch(rec, patch)
		if err != nil {
			return n, err
		}
		data, err := r.encoderDecoder.Encode(updated)
		if err != nil {
			return n, err
		}
		if err := r.redisClient.HSet(ctx, key, []string{id, string(data)}).Err(); err != nil {
			return n, persistence.StorageLayerError{Message: err.Error()}
		}
		n++
	}
	return n, nil
}

func (r *redisFlowStorage) RemoveRecord(match persistence.Match) (int, error) {
	records, err := r.all()
	if err != nil {
		return 0, err
	}
	var ids []string
	for id, rec := range records {
		ok, err := persistence.Matches(rec, match)
		if err != nil {
			return 0, err
		}
		if ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}
	key := r.getNamespaceKey(FLOWS_KEY)
	removed, err := r.redisClient.HDel(context.Background(), key, ids...).Result()
	if err != nil {
		return 0, persistence.StorageLayerError{Message: err.Error()}
	}
	return int(removed), nil
}

func (r *redisFlowStorage) FindRecords(match persistence.Match) ([]model.FlowRecord, error) {
	records, err := r.all()
	if err != nil {
		return nil, err
	}
	out := make([]model.FlowRecord, 0, len(records))
	for _, rec := range records {
		ok, err := persistence.Matches(rec, match)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, rec)
		}
	}
	persistence.SortByCreateDate(out)
	return out, nil
}

func (r *redisFlowStorage) Close() error {
	return r.redisClient.Close()
}
