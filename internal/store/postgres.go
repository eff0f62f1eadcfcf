package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-studio/internal/db"
	"github.com/sells-group/lead-studio/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection.
// They are the hot reads behind LEAD_INPUT and workflow execution.
var preparedStatements = map[string]string{
	"get_lead":       `SELECT ` + leadSelect + ` FROM leads WHERE lead_number = $1`,
	"latest_version": `SELECT ` + versionSelect + ` FROM workflow_versions WHERE type = $1 ORDER BY version DESC LIMIT 1`,
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
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS campaigns (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	number      BIGSERIAL UNIQUE,
	name        TEXT NOT NULL,
	description TEXT,
	lead_count  INTEGER NOT NULL DEFAULT 0,
	status      TEXT NOT NULL DEFAULT 'active',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS leads (
	lead_number BIGINT PRIMARY KEY,
	target_id   TEXT,
	campaign_id TEXT REFERENCES campaigns(id),
	step_status JSONB NOT NULL DEFAULT '{"export": false, "verification": "pending", "compScrap": "pending", "box1": "pending", "instantly": "pending"}',
	storage     BOOLEAN NOT NULL DEFAULT false,

	first_name                  TEXT,
	last_name                   TEXT,
	email                       TEXT,
	person_title                TEXT,
	person_title_description    TEXT,
	person_summary              TEXT,
	person_location             TEXT,
	duration_in_role            TEXT,
	duration_in_company         TEXT,
	person_timestamp            TEXT,
	person_linkedin_url         TEXT,
	person_sales_url            TEXT,
	company_name_from_p         TEXT,
	company_linkedin_url_from_p TEXT,
	company_sales_url_from_p    TEXT,

	company_name                TEXT,
	company_description         TEXT,
	company_tag_line            TEXT,
	industry                    TEXT,
	employee_count              TEXT,
	company_location            TEXT,
	website                     TEXT,
	domain                      TEXT,
	year_founded                TEXT,
	specialties                 TEXT,
	phone                       TEXT,
	min_revenue                 TEXT,
	max_revenue                 TEXT,
	growth_6mth                 TEXT,
	growth_1yr                  TEXT,
	growth_2yr                  TEXT,
	company_timestamp_sn        TEXT,
	company_timestamp_ln        TEXT,
	linkedin_company_url        TEXT,
	sales_navigator_company_url TEXT,
	comp_url                    TEXT,

	email_validation    TEXT,
	validation_success  TEXT,
	first_name_cleaned  TEXT,
	last_name_cleaned   TEXT,
	instantly_body1     TEXT,
	instantly_body2     TEXT,
	instantly_body3     TEXT,
	instantly_body4     TEXT,
	instantly_response   TEXT,
	instantly_conversion TEXT,

	verification_result JSONB,
	compscrap_result    JSONB,
	box1_outputs        JSONB,
	box1_result         JSONB,

	verification_sent_at      TIMESTAMPTZ,
	verification_completed_at TIMESTAMPTZ,
	compscrap_sent_at         TIMESTAMPTZ,
	compscrap_completed_at    TIMESTAMPTZ,
	box1_sent_at              TIMESTAMPTZ,
	box1_completed_at         TIMESTAMPTZ,
	instantly_stock_at        TIMESTAMPTZ,
	instantly_sent_at         TIMESTAMPTZ,

	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_leads_campaign ON leads(campaign_id);
CREATE INDEX IF NOT EXISTS idx_leads_email ON leads(campaign_id, lower(email));
CREATE INDEX IF NOT EXISTS idx_leads_step_status ON leads USING GIN (step_status);
CREATE INDEX IF NOT EXISTS idx_leads_created_at ON leads(created_at DESC);

CREATE TABLE IF NOT EXISTS workflow_versions (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	type       TEXT NOT NULL,
	version    INTEGER NOT NULL,
	content    JSONB NOT NULL,
	label      TEXT,
	folder     TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (type, version)
);

CREATE TABLE IF NOT EXISTS workflow_runs (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	type             TEXT NOT NULL,
	status           TEXT NOT NULL,
	start_time       TIMESTAMPTZ NOT NULL,
	end_time         TIMESTAMPTZ NOT NULL,
	duration_ms      BIGINT NOT NULL,
	results          JSONB NOT NULL DEFAULT '[]',
	workflow_version INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_workflow_runs_type ON workflow_runs(type, start_time DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// notFound maps pgx.ErrNoRows onto model.ErrNotFound so callers can use
// errors.Is without importing pgx.
func notFound(err error, format string, args ...any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return eris.Wrapf(model.ErrNotFound, format, args...)
	}
	return eris.Wrapf(err, format, args...)
}
