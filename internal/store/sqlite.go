package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/hireloop/talent-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS snapshots (
	id           TEXT PRIMARY KEY,
	stage        TEXT NOT NULL,
	role_id      TEXT NOT NULL,
	candidate_id TEXT NOT NULL DEFAULT '',
	payload      TEXT NOT NULL,
	created_at   DATETIME NOT NULL,
	created_by   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS quota_counters (
	org_id TEXT NOT NULL,
	metric TEXT NOT NULL,
	day    TEXT NOT NULL,
	count  INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (org_id, metric, day)
);

CREATE TABLE IF NOT EXISTS audit_records (
	id                  TEXT PRIMARY KEY,
	stage               TEXT NOT NULL,
	role_id             TEXT NOT NULL,
	candidate_id        TEXT NOT NULL DEFAULT '',
	actor               TEXT NOT NULL,
	input_summary       TEXT NOT NULL,
	output_summary      TEXT NOT NULL,
	rationale           TEXT NOT NULL,
	fairness_assertions TEXT NOT NULL,
	model_metadata      TEXT NOT NULL,
	created_at          DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_key
	ON snapshots(stage, role_id, candidate_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_audit_stage ON audit_records(stage, role_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) AppendSnapshot(ctx context.Context, stage model.StageKind, entity model.EntityPair, payload []byte, actor string) (*model.Snapshot, error) {
	snap := &model.Snapshot{
		ID:        uuid.New().String(),
		Stage:     stage,
		Entity:    entity,
		Payload:   append([]byte(nil), payload...),
		CreatedAt: time.Now().UTC(),
		CreatedBy: actor,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (id, stage, role_id, candidate_id, payload, created_at, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, string(stage), entity.RoleID, entity.CandidateID,
		string(payload), snap.CreatedAt, actor,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: append snapshot %s %s", stage, entity.Key())
	}
	return snap, nil
}

func (s *SQLiteStore) LatestSnapshot(ctx context.Context, stage model.StageKind, entity model.EntityPair) (*model.Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, stage, role_id, candidate_id, payload, created_at, created_by
		 FROM snapshots
		 WHERE stage = ? AND role_id = ? AND candidate_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT 1`,
		string(stage), entity.RoleID, entity.CandidateID,
	)

	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: latest snapshot %s %s", stage, entity.Key())
	}
	return snap, nil
}

func (s *SQLiteStore) SnapshotHistory(ctx context.Context, stage model.StageKind, entity model.EntityPair, limit int) ([]model.Snapshot, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, stage, role_id, candidate_id, payload, created_at, created_by
		 FROM snapshots
		 WHERE stage = ? AND role_id = ? AND candidate_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`,
		string(stage), entity.RoleID, entity.CandidateID, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: snapshot history %s %s", stage, entity.Key())
	}
	defer rows.Close()

	var snaps []model.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan history row")
		}
		snaps = append(snaps, *snap)
	}
	return snaps, eris.Wrap(rows.Err(), "sqlite: history iterate")
}

func (s *SQLiteStore) IncrementQuota(ctx context.Context, orgID, metric, day string, limit int) (model.QuotaDecision, error) {
	// Upsert-increment and read back the new count in one statement so two
	// concurrent callers can never both see the last remaining unit.
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO quota_counters (org_id, metric, day, count) VALUES (?, ?, ?, 1)
		 ON CONFLICT (org_id, metric, day) DO UPDATE SET count = count + 1
		 RETURNING count`,
		orgID, metric, day,
	)

	var count int
	if err := row.Scan(&count); err != nil {
		return model.QuotaDecision{}, eris.Wrapf(err, "sqlite: increment quota %s/%s", orgID, metric)
	}
	return quotaDecision(count, limit), nil
}

func (s *SQLiteStore) GetQuotaUsage(ctx context.Context, orgID, metric, day string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT count FROM quota_counters WHERE org_id = ? AND metric = ? AND day = ?`,
		orgID, metric, day,
	).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: get quota usage %s/%s", orgID, metric)
	}
	return count, nil
}

func (s *SQLiteStore) InsertAuditRecord(ctx context.Context, rec *model.AuditRecord) error {
	assertionsJSON, err := json.Marshal(rec.FairnessAssertions)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal fairness assertions")
	}
	metaJSON, err := json.Marshal(rec.ModelMetadata)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal model metadata")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_records
		 (id, stage, role_id, candidate_id, actor, input_summary, output_summary, rationale, fairness_assertions, model_metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), string(rec.Stage), rec.Entity.RoleID, rec.Entity.CandidateID,
		rec.Actor, rec.InputSummary, rec.OutputSummary, rec.Rationale,
		string(assertionsJSON), string(metaJSON), rec.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert audit record")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scannable) (*model.Snapshot, error) {
	var snap model.Snapshot
	var stage, payload string

	err := row.Scan(&snap.ID, &stage, &snap.Entity.RoleID, &snap.Entity.CandidateID,
		&payload, &snap.CreatedAt, &snap.CreatedBy)
	if err != nil {
		return nil, err
	}
	snap.Stage = model.StageKind(stage)
	snap.Payload = json.RawMessage(payload)
	return &snap, nil
}
