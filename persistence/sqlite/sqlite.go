package sqlite

import (
	"database/sql"

	"github.com/mohitkumar/automate/model"
	"github.com/mohitkumar/automate/persistence"
	"github.com/mohitkumar/automate/util"
	_ "modernc.org/sqlite"
)

// sqliteStorage keeps every flow as a json document keyed by id.
type sqliteStorage struct {
	db             *sql.DB
	encoderDecoder util.EncoderDecoder[model.FlowRecord]
}

var _ persistence.Storage = new(sqliteStorage)

// NewSqliteStorage opens the database at path, ":memory:" keeps it in memory.
func NewSqliteStorage(path string) (*sqliteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	// a single connection keeps an in memory database alive and serializes writers
	db.SetMaxOpenConns(1)
	s := &sqliteStorage{
		db:             db,
		encoderDecoder: util.NewJsonEncoderDecoder[model.FlowRecord](),
	}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return s, nil
}

func (s *sqliteStorage) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS flows (
			id TEXT PRIMARY KEY,
			data BLOB NOT NULL
		);`,
	)
	return err
}

func (s *sqliteStorage) CreateRecord(rec model.FlowRecord) error {
	data, err := s.encoderDecoder.Encode(rec)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(`INSERT OR IGNORE INTO flows (id, data) VALUES (?, ?)`, rec.Id, data)
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return persistence.RecordExistsError{Id: rec.Id}
	}
	return nil
}

func (s *sqliteStorage) all() ([]model.FlowRecord, error) {
	rows, err := s.db.Query(`SELECT data FROM flows`)
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	defer rows.Close()
	var out []model.FlowRecord
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, persistence.StorageLayerError{Message: err.Error()}
		}
		rec, err := s.encoderDecoder.Decode(data)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return out, nil
}

func (s *sqliteStorage) selectMatching(match persistence.Match) ([]model.FlowRecord, error) {
	records, err := s.all()
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
	return out, nil
}

func (s *sqliteStorage) UpdateRecord(match persistence.Match, patch map[string]any) (int, error) {
	records, err := s.selectMatching(match)
	if err != nil {
		return 0, err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return 0, persistence.StorageLayerError{Message: err.Error()}
	}
	defer tx.Rollback()
	for _, rec := range records {
		updated, err := persistence.ApplyPatch(rec, patch)
		if err != nil {
			return 0, err
		}
		data, err := s.encoderDecoder.Encode(updated)
		if err != nil {
			return 0, err
		}
		if _, err := tx.Exec(`UPDATE flows SET data = ? WHERE id = ?`, data, rec.Id); err != nil {
			return 0, persistence.StorageLayerError{Message: err.Error()}
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, persistence.StorageLayerError{Message: err.Error()}
	}
	return len(records), nil
}

func (s *sqliteStorage) RemoveRecord(match persistence.Match) (int, error) {
	records, err := s.selectMatching(match)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, rec := range records {
		res, err := s.db.Exec(`DELETE FROM flows WHERE id = ?`, rec.Id)
		if err != nil {
			return n, persistence.StorageLayerError{Message: err.Error()}
		}
		affected, _ := res.RowsAffected()
		n += int(affected)
	}
	return n, nil
}

func (s *sqliteStorage) FindRecords(match persistence.Match) ([]model.FlowRecord, error) {
	out, err := s.selectMatching(match)
	if err != nil {
		return nil, err
	}
	persistence.SortByCreateDate(out)
	return out, nil
}

func (s *sqliteStorage) Close() error {
	return s.db.Close()
}
