package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-studio/internal/model"
)

const versionSelect = `id, type, version, content, COALESCE(label, ''), COALESCE(folder, ''), created_at`

// saveVersionAttempts bounds retries when two writers race for the same
// version number.
const saveVersionAttempts = 3

func scanVersion(row rowScanner) (*model.WorkflowVersion, error) {
	var v model.WorkflowVersion
	var content []byte
	if err := row.Scan(&v.ID, &v.Type, &v.Version, &content, &v.Label, &v.Folder, &v.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(content, &v.Content); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal %s v%d content", v.Type, v.Version)
	}
	return &v, nil
}

// SaveVersion appends a new version of v.Type, numbered one past the
// current maximum. Versions are immutable once written.
func (s *PostgresStore) SaveVersion(ctx context.Context, v model.WorkflowVersion) (*model.WorkflowVersion, error) {
	content, err := json.Marshal(v.Content)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal workflow content")
	}

	for attempt := 1; ; attempt++ {
		saved, err := scanVersion(s.pool.QueryRow(ctx,
			`INSERT INTO workflow_versions (id, type, version, content, label, folder)
			 SELECT $1, $2, COALESCE(MAX(version), 0) + 1, $3, $4, $5 FROM workflow_versions WHERE type = $2
			 RETURNING `+versionSelect,
			uuid.New().String(), string(v.Type), content, v.Label, v.Folder,
		))
		if err == nil {
			return saved, nil
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && attempt < saveVersionAttempts {
			continue
		}
		return nil, eris.Wrapf(err, "postgres: save %s version", v.Type)
	}
}

func (s *PostgresStore) LatestVersion(ctx context.Context, typ model.WorkflowType) (*model.WorkflowVersion, error) {
	v, err := scanVersion(s.pool.QueryRow(ctx,
		`SELECT `+versionSelect+` FROM workflow_versions WHERE type = $1 ORDER BY version DESC LIMIT 1`,
		string(typ),
	))
	if err != nil {
		return nil, notFound(err, "postgres: latest %s version", typ)
	}
	return v, nil
}

func (s *PostgresStore) GetVersion(ctx context.Context, typ model.WorkflowType, version int) (*model.WorkflowVersion, error) {
	v, err := scanVersion(s.pool.QueryRow(ctx,
		`SELECT `+versionSelect+` FROM workflow_versions WHERE type = $1 AND version = $2`,
		string(typ), version,
	))
	if err != nil {
		return nil, notFound(err, "postgres: get %s v%d", typ, version)
	}
	return v, nil
}

// ListVersions returns version metadata, newest first. Content is omitted.
func (s *PostgresStore) ListVersions(ctx context.Context, typ model.WorkflowType) ([]model.WorkflowVersion, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, type, version, COALESCE(label, ''), COALESCE(folder, ''), created_at
		 FROM workflow_versions WHERE type = $1 ORDER BY version DESC`,
		string(typ),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list %s versions", typ)
	}
	defer rows.Close()

	var out []model.WorkflowVersion
	for rows.Next() {
		var v model.WorkflowVersion
		if err := rows.Scan(&v.ID, &v.Type, &v.Version, &v.Label, &v.Folder, &v.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan version")
		}
		out = append(out, v)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list versions iterate")
}

const runSelect = `id, type, status, start_time, end_time, duration_ms, results, workflow_version`

func scanRun(row rowScanner) (*model.WorkflowRun, error) {
	var r model.WorkflowRun
	var results []byte
	if err := row.Scan(&r.ID, &r.Type, &r.Status, &r.StartTime, &r.EndTime, &r.DurationMs, &results, &r.WorkflowVersion); err != nil {
		return nil, err
	}
	r.Results = results
	return &r, nil
}

// SaveRun appends a run record, assigning an ID when the run has none.
func (s *PostgresStore) SaveRun(ctx context.Context, run *model.WorkflowRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.Status == "" {
		run.Status = model.RunStatusCompleted
	}
	if run.EndTime.IsZero() {
		run.EndTime = time.Now().UTC()
	}
	if run.DurationMs == 0 && !run.StartTime.IsZero() {
		run.DurationMs = run.EndTime.Sub(run.StartTime).Milliseconds()
	}
	results := []byte(run.Results)
	if len(results) == 0 {
		results = []byte("[]")
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO workflow_runs (id, type, status, start_time, end_time, duration_ms, results, workflow_version)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, string(run.Type), string(run.Status), run.StartTime, run.EndTime, run.DurationMs, results, run.WorkflowVersion,
	)
	return eris.Wrapf(err, "postgres: save run %s", run.ID)
}

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*model.WorkflowRun, error) {
	r, err := scanRun(s.pool.QueryRow(ctx, `SELECT `+runSelect+` FROM workflow_runs WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "postgres: get run %s", id)
	}
	return r, nil
}

// ListRuns returns the most recent runs of a workflow type.
func (s *PostgresStore) ListRuns(ctx context.Context, typ model.WorkflowType, limit int) ([]model.WorkflowRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+runSelect+` FROM workflow_runs WHERE type = $1 ORDER BY start_time DESC LIMIT $2`,
		string(typ), limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list %s runs", typ)
	}
	defer rows.Close()

	var out []model.WorkflowRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}
