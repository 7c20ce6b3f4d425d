//go:build sqlite

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"hplattice/internal/model"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) SaveDensity(ctx context.Context, density model.DensityRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeDensity(density)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO densities (id, sequence, schema_version, codec_version, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			sequence = excluded.sequence,
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			payload = excluded.payload
	`, density.ID, density.Sequence, density.SchemaVersion, density.CodecVersion, payload)
	return err
}

func (s *SQLiteStore) GetDensity(ctx context.Context, id string) (model.DensityRecord, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.DensityRecord{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM densities WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.DensityRecord{}, false, nil
		}
		return model.DensityRecord{}, false, err
	}

	density, err := DecodeDensity(payload)
	if err != nil {
		return model.DensityRecord{}, false, fmt.Errorf("decode density %s: %w", id, err)
	}
	return density, true, nil
}

func (s *SQLiteStore) SaveNativeState(ctx context.Context, native model.NativeStateRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeNativeState(native)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO native_states (sequence, schema_version, codec_version, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(sequence) DO UPDATE SET
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			payload = excluded.payload
	`, native.Sequence, native.SchemaVersion, native.CodecVersion, payload)
	return err
}

func (s *SQLiteStore) GetNativeState(ctx context.Context, sequence string) (model.NativeStateRecord, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.NativeStateRecord{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM native_states WHERE sequence = ?`, sequence).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.NativeStateRecord{}, false, nil
		}
		return model.NativeStateRecord{}, false, err
	}

	native, err := DecodeNativeState(payload)
	if err != nil {
		return model.NativeStateRecord{}, false, fmt.Errorf("decode native state %s: %w", sequence, err)
	}
	return native, true, nil
}

func (s *SQLiteStore) SaveSamplingRun(ctx context.Context, run model.SamplingRunRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeSamplingRun(run)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO sampling_runs (run_id, sequence, schema_version, codec_version, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			sequence = excluded.sequence,
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			payload = excluded.payload
	`, run.RunID, run.Sequence, run.SchemaVersion, run.CodecVersion, payload)
	return err
}

func (s *SQLiteStore) GetSamplingRun(ctx context.Context, runID string) (model.SamplingRunRecord, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.SamplingRunRecord{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM sampling_runs WHERE run_id = ?`, runID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.SamplingRunRecord{}, false, nil
		}
		return model.SamplingRunRecord{}, false, err
	}

	run, err := DecodeSamplingRun(payload)
	if err != nil {
		return model.SamplingRunRecord{}, false, fmt.Errorf("decode sampling run %s: %w", runID, err)
	}
	return run, true, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS densities (
			id TEXT PRIMARY KEY,
			sequence TEXT NOT NULL,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS native_states (
			sequence TEXT PRIMARY KEY,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS sampling_runs (
			run_id TEXT PRIMARY KEY,
			sequence TEXT NOT NULL,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
	`)
	return err
}
