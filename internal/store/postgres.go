package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/hireloop/talent-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// Hot-path query texts. These exact strings are both prepared in
// AfterConnect and passed at the call sites, so pgx's by-SQL statement
// lookup hits the prepared versions.
const (
	sqlAppendSnapshot = `INSERT INTO snapshots (id, stage, role_id, candidate_id, payload, created_at, created_by) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	sqlLatestSnapshot = `SELECT id, stage, role_id, candidate_id, payload, created_at, created_by FROM snapshots WHERE stage = $1 AND role_id = $2 AND candidate_id = $3 ORDER BY created_at DESC, id DESC LIMIT 1`
	sqlIncrementQuota = `INSERT INTO quota_counters (org_id, metric, day, count) VALUES ($1, $2, $3, 1) ON CONFLICT (org_id, metric, day) DO UPDATE SET count = quota_counters.count + 1 RETURNING count`
)

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot store operations.
var preparedStatements = map[string]string{
	"append_snapshot": sqlAppendSnapshot,
	"latest_snapshot": sqlLatestSnapshot,
	"increment_quota": sqlIncrementQuota,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool; used by tests with pgxmock.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS snapshots (
	id           UUID PRIMARY KEY,
	stage        TEXT NOT NULL,
	role_id      TEXT NOT NULL,
	candidate_id TEXT NOT NULL DEFAULT '',
	payload      JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
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
	id                  UUID PRIMARY KEY,
	stage               TEXT NOT NULL,
	role_id             TEXT NOT NULL,
	candidate_id        TEXT NOT NULL DEFAULT '',
	actor               TEXT NOT NULL,
	input_summary       TEXT NOT NULL,
	output_summary      TEXT NOT NULL,
	rationale           TEXT NOT NULL,
	fairness_assertions JSONB NOT NULL,
	model_metadata      JSONB NOT NULL,
	created_at          TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_key
	ON snapshots(stage, role_id, candidate_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_audit_stage ON audit_records(stage, role_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) AppendSnapshot(ctx context.Context, stage model.StageKind, entity model.EntityPair, payload []byte, actor string) (*model.Snapshot, error) {
	snap := &model.Snapshot{
		ID:        uuid.New().String(),
		Stage:     stage,
		Entity:    entity,
		Payload:   append([]byte(nil), payload...),
		CreatedAt: time.Now().UTC(),
		CreatedBy: actor,
	}

	_, err := s.pool.Exec(ctx, sqlAppendSnapshot,
		snap.ID, string(stage), entity.RoleID, entity.CandidateID,
		string(payload), snap.CreatedAt, actor,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: append snapshot %s %s", stage, entity.Key())
	}
	return snap, nil
}

func (s *PostgresStore) LatestSnapshot(ctx context.Context, stage model.StageKind, entity model.EntityPair) (*model.Snapshot, error) {
	row := s.pool.QueryRow(ctx, sqlLatestSnapshot,
		string(stage), entity.RoleID, entity.CandidateID,
	)

	snap, err := scanSnapshot(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: latest snapshot %s %s", stage, entity.Key())
	}
	return snap, nil
}

func (s *PostgresStore) SnapshotHistory(ctx context.Context, stage model.StageKind, entity model.EntityPair, limit int) ([]model.Snapshot, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, stage, role_id, candidate_id, payload, created_at, created_by
		 FROM snapshots
		 WHERE stage = $1 AND role_id = $2 AND candidate_id = $3
		 ORDER BY created_at DESC, id DESC LIMIT $4`,
		string(stage), entity.RoleID, entity.CandidateID, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: snapshot history %s %s", stage, entity.Key())
	}
	defer rows.Close()

	var snaps []model.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan history row")
		}
		snaps = append(snaps, *snap)
	}
	return snaps, eris.Wrap(rows.Err(), "postgres: history iterate")
}

func (s *PostgresStore) IncrementQuota(ctx context.Context, orgID, metric, day string, limit int) (model.QuotaDecision, error) {
	// Single-statement upsert-increment: the RETURNING count is the
	// post-increment value, so the limit check cannot race.
	row := s.pool.QueryRow(ctx, sqlIncrementQuota, orgID, metric, day)

	var count int
	if err := row.Scan(&count); err != nil {
		return model.QuotaDecision{}, eris.Wrapf(err, "postgres: increment quota %s/%s", orgID, metric)
	}
	return quotaDecision(count, limit), nil
}

func (s *PostgresStore) GetQuotaUsage(ctx context.Context, orgID, metric, day string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT count FROM quota_counters WHERE org_id = $1 AND metric = $2 AND day = $3`,
		orgID, metric, day,
	).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: get quota usage %s/%s", orgID, metric)
	}
	return count, nil
}

func (s *PostgresStore) InsertAuditRecord(ctx context.Context, rec *model.AuditRecord) error {
	assertionsJSON, err := json.Marshal(rec.FairnessAssertions)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal fairness assertions")
	}
	metaJSON, err := json.Marshal(rec.ModelMetadata)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal model metadata")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO audit_records
		 (id, stage, role_id, candidate_id, actor, input_summary, output_summary, rationale, fairness_assertions, model_metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		uuid.New().String(), string(rec.Stage), rec.Entity.RoleID, rec.Entity.CandidateID,
		rec.Actor, rec.InputSummary, rec.OutputSummary, rec.Rationale,
		string(assertionsJSON), string(metaJSON), rec.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert audit record")
}
