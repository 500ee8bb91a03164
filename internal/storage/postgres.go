package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/variantlabs/variant-admin/pkg/models"
)

// PostgresStore implements ExperimentStore and StatsStore on Postgres.
type PostgresStore struct {
	db *sql.DB

	// Prepared statements for the hot paths.
	stmtCreate  *sql.Stmt
	stmtGet     *sql.Stmt
	stmtList    *sql.Stmt
	stmtUpdate  *sql.Stmt
	stmtDelete  *sql.Stmt
	stmtRecord  *sql.Stmt
	stmtSummary *sql.Stmt
	stmtReset   *sql.Stmt
}

// PostgresConfig holds connection pool settings.
type PostgresConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultPostgresConfig returns default pool settings.
func DefaultPostgresConfig() *PostgresConfig {
	return &PostgresConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnectTimeout:  10 * time.Second,
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS experiments (
	id UUID PRIMARY KEY,
	app_id TEXT NOT NULL,
	key TEXT NOT NULL,
	name TEXT NOT NULL,
	status TEXT NOT NULL,
	variants JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	UNIQUE (app_id, key)
);

CREATE TABLE IF NOT EXISTS variant_stats (
	app_id TEXT NOT NULL,
	experiment_key TEXT NOT NULL,
	variant TEXT NOT NULL,
	exposures BIGINT NOT NULL DEFAULT 0,
	conversions BIGINT NOT NULL DEFAULT 0,
	PRIMARY KEY (app_id, experiment_key, variant)
);
`

// NewPostgresStore opens a Postgres-backed store from a DSN.
func NewPostgresStore(dsn string, config *PostgresConfig) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("dsn is required")
	}
	if config == nil {
		config = DefaultPostgresConfig()
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare statements: %w", err)
	}
	return store, nil
}

// NewPostgresStoreFromDB wraps an existing connection; tests use this
// with a mock.
func NewPostgresStoreFromDB(db *sql.DB) (*PostgresStore, error) {
	store := &PostgresStore{db: db}
	if err := store.prepareStatements(); err != nil {
		return nil, fmt.Errorf("prepare statements: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) prepareStatements() error {
	var err error

	s.stmtCreate, err = s.db.Prepare(`
		INSERT INTO experiments (id, app_id, key, name, status, variants, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`)
	if err != nil {
		return fmt.Errorf("prepare create experiment: %w", err)
	}

	s.stmtGet, err = s.db.Prepare(`
		SELECT key, name, status, variants FROM experiments
		WHERE app_id = $1 AND key = $2
	`)
	if err != nil {
		return fmt.Errorf("prepare get experiment: %w", err)
	}

	s.stmtList, err = s.db.Prepare(`
		SELECT key, name, status, variants FROM experiments
		WHERE app_id = $1
		ORDER BY created_at
	`)
	if err != nil {
		return fmt.Errorf("prepare list experiments: %w", err)
	}

	s.stmtUpdate, err = s.db.Prepare(`
		UPDATE experiments SET status = $1, variants = $2, updated_at = $3
		WHERE app_id = $4 AND key = $5
	`)
	if err != nil {
		return fmt.Errorf("prepare update experiment: %w", err)
	}

	s.stmtDelete, err = s.db.Prepare(`
		DELETE FROM experiments WHERE app_id = $1 AND key = $2
	`)
	if err != nil {
		return fmt.Errorf("prepare delete experiment: %w", err)
	}

	s.stmtRecord, err = s.db.Prepare(`
		INSERT INTO variant_stats (app_id, experiment_key, variant, exposures, conversions)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (app_id, experiment_key, variant)
		DO UPDATE SET exposures = variant_stats.exposures + $4,
		              conversions = variant_stats.conversions + $5
	`)
	if err != nil {
		return fmt.Errorf("prepare record event: %w", err)
	}

	s.stmtSummary, err = s.db.Prepare(`
		SELECT variant, exposures, conversions FROM variant_stats
		WHERE app_id = $1 AND experiment_key = $2
		ORDER BY variant
	`)
	if err != nil {
		return fmt.Errorf("prepare summary: %w", err)
	}

	s.stmtReset, err = s.db.Prepare(`
		DELETE FROM variant_stats WHERE app_id = $1 AND experiment_key = $2
	`)
	if err != nil {
		return fmt.Errorf("prepare reset: %w", err)
	}

	return nil
}

// Close closes prepared statements and the connection.
func (s *PostgresStore) Close() error {
	var errs []error
	for _, stmt := range []*sql.Stmt{
		s.stmtCreate, s.stmtGet, s.stmtList, s.stmtUpdate,
		s.stmtDelete, s.stmtRecord, s.stmtSummary, s.stmtReset,
	} {
		if stmt != nil {
			if err := stmt.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// DB exposes the underlying connection for health checks.
func (s *PostgresStore) DB() *sql.DB { return s.db }

func (s *PostgresStore) Create(ctx context.Context, appID string, exp *models.Experiment) error {
	if appID == "" || exp == nil || exp.Key == "" {
		return fmt.Errorf("app id and experiment key are required")
	}
	variants, err := json.Marshal(exp.Variants)
	if err != nil {
		return fmt.Errorf("marshal variants: %w", err)
	}
	now := time.Now().UTC()
	_, err = s.stmtCreate.ExecContext(ctx, uuid.NewString(), appID, exp.Key, exp.Name, string(exp.Status), variants, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("create experiment: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, appID, key string) (*models.Experiment, error) {
	row := s.stmtGet.QueryRowContext(ctx, appID, key)
	return scanExperiment(row)
}

func (s *PostgresStore) List(ctx context.Context, appID string) ([]models.Experiment, error) {
	rows, err := s.stmtList.QueryContext(ctx, appID)
	if err != nil {
		return nil, fmt.Errorf("list experiments: %w", err)
	}
	defer rows.Close()

	out := make([]models.Experiment, 0)
	for rows.Next() {
		var (
			exp      models.Experiment
			status   string
			variants []byte
		)
		if err := rows.Scan(&exp.Key, &exp.Name, &status, &variants); err != nil {
			return nil, fmt.Errorf("scan experiment: %w", err)
		}
		exp.Status = models.ExperimentStatus(status)
		if err := json.Unmarshal(variants, &exp.Variants); err != nil {
			return nil, fmt.Errorf("unmarshal variants: %w", err)
		}
		out = append(out, exp)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Update(ctx context.Context, appID, key string, status models.ExperimentStatus, variants []models.Variant) error {
	data, err := json.Marshal(variants)
	if err != nil {
		return fmt.Errorf("marshal variants: %w", err)
	}
	result, err := s.stmtUpdate.ExecContext(ctx, string(status), data, time.Now().UTC(), appID, key)
	if err != nil {
		return fmt.Errorf("update experiment: %w", err)
	}
	return requireRowAffected(result)
}

func (s *PostgresStore) Delete(ctx context.Context, appID, key string) error {
	result, err := s.stmtDelete.ExecContext(ctx, appID, key)
	if err != nil {
		return fmt.Errorf("delete experiment: %w", err)
	}
	return requireRowAffected(result)
}

func (s *PostgresStore) Record(ctx context.Context, appID, key, variant string, event EventType) error {
	if !ValidEventType(event) {
		return fmt.Errorf("invalid event type %q", event)
	}
	exposures, conversions := 0, 0
	if event == EventExposure {
		exposures = 1
	} else {
		conversions = 1
	}
	if _, err := s.stmtRecord.ExecContext(ctx, appID, key, variant, exposures, conversions); err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

func (s *PostgresStore) Summary(ctx context.Context, appID, key string) (*models.Summary, error) {
	rows, err := s.stmtSummary.QueryContext(ctx, appID, key)
	if err != nil {
		return nil, fmt.Errorf("load summary: %w", err)
	}
	defer rows.Close()

	summary := &models.Summary{AggregatedVariants: []models.RawVariantRecord{}}
	for rows.Next() {
		var rec models.RawVariantRecord
		if err := rows.Scan(&rec.ID, &rec.Count, &rec.Conversions); err != nil {
			return nil, fmt.Errorf("scan summary row: %w", err)
		}
		summary.AggregatedVariants = append(summary.AggregatedVariants, rec)
	}
	return summary, rows.Err()
}

func (s *PostgresStore) Reset(ctx context.Context, appID, key string) error {
	if _, err := s.stmtReset.ExecContext(ctx, appID, key); err != nil {
		return fmt.Errorf("reset stats: %w", err)
	}
	return nil
}

func scanExperiment(row *sql.Row) (*models.Experiment, error) {
	var (
		exp      models.Experiment
		status   string
		variants []byte
	)
	if err := row.Scan(&exp.Key, &exp.Name, &status, &variants); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan experiment: %w", err)
	}
	exp.Status = models.ExperimentStatus(status)
	if err := json.Unmarshal(variants, &exp.Variants); err != nil {
		return nil, fmt.Errorf("unmarshal variants: %w", err)
	}
	return &exp, nil
}

func requireRowAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// isUniqueViolation matches the Postgres unique_violation code without
// depending on driver internals at every call site.
func isUniqueViolation(err error) bool {
	type coder interface{ SQLState() string }
	var c coder
	if errors.As(err, &c) {
		return c.SQLState() == "23505"
	}
	return false
}
