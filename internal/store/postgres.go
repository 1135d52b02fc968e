package store

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/triageops/controlplane/internal/config"
	"github.com/triageops/controlplane/internal/model"
)

// PostgresStore persists alerts, workflow runs, declarative resources and
// incident embeddings via pgx, following the teacher's DSN-assembly and
// schema-ensure-on-boot idiom (internal/db/postgres.go, internal/db/auth.go).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore opens a pool, pings it, and ensures the schema exists.
func NewPostgresStore(ctx context.Context, cfg config.PostgresConfig) (*PostgresStore, error) {
	dsn, err := buildPostgresURL(cfg)
	if err != nil {
		return nil, err
	}

	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	return s, nil
}

func buildPostgresURL(cfg config.PostgresConfig) (string, error) {
	if cfg.DatabaseURL != "" {
		return cfg.DatabaseURL, nil
	}
	if cfg.User == "" || cfg.Database == "" {
		return "", fmt.Errorf("missing required config: DATABASE_URL or PGUSER/PGDATABASE")
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(cfg.Host, cfg.Port),
		Path:   cfg.Database,
	}
	if cfg.Password == "" {
		u.User = url.User(cfg.User)
	} else {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	}
	q := u.Query()
	q.Set("sslmode", cfg.SSLMode)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	queries := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS alerts (
			fingerprint TEXT PRIMARY KEY,
			source_name TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			labels JSONB NOT NULL,
			annotations JSONB NOT NULL,
			starts_at TIMESTAMPTZ NOT NULL,
			ends_at TIMESTAMPTZ,
			generator_url TEXT,
			last_seen_at TIMESTAMPTZ NOT NULL,
			occurrences INT NOT NULL DEFAULT 1,
			flapping BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS workflow_runs (
			id TEXT PRIMARY KEY,
			workflow_name TEXT NOT NULL,
			source_name TEXT,
			alert_id TEXT,
			phase TEXT NOT NULL,
			steps JSONB NOT NULL DEFAULT '[]',
			outputs JSONB NOT NULL DEFAULT '{}',
			error TEXT,
			sink_results JSONB NOT NULL DEFAULT '{}',
			seed JSONB,
			pending_approval JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			started_at TIMESTAMPTZ,
			completed_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS custom_resources (
			kind TEXT NOT NULL,
			name TEXT NOT NULL,
			spec JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (kind, name)
		)`,
		`CREATE TABLE IF NOT EXISTS incident_embeddings (
			run_id TEXT PRIMARY KEY,
			summary TEXT NOT NULL,
			embedding vector(768),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			login_id TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS refresh_tokens (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id),
			token_hash TEXT NOT NULL UNIQUE,
			expires_at TIMESTAMPTZ NOT NULL,
			revoked_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}
	for _, q := range queries {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) SaveAlert(ctx context.Context, a *model.Alert) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO alerts (fingerprint, source_name, status, labels, annotations, starts_at, ends_at,
			generator_url, last_seen_at, occurrences, flapping, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,NOW(),NOW())
		ON CONFLICT (fingerprint) DO UPDATE SET
			status = EXCLUDED.status,
			annotations = EXCLUDED.annotations,
			ends_at = EXCLUDED.ends_at,
			last_seen_at = EXCLUDED.last_seen_at,
			occurrences = EXCLUDED.occurrences,
			flapping = EXCLUDED.flapping,
			updated_at = NOW()
	`, a.Fingerprint, a.SourceName, a.Status, a.Labels, a.Annotations, a.StartsAt, a.EndsAt,
		a.GeneratorURL, a.LastSeenAt, a.Occurrences, a.Flapping)
	if err != nil {
		return &model.StoreError{Op: "SaveAlert", Reason: err.Error()}
	}
	return nil
}

func (s *PostgresStore) GetAlertByFingerprint(ctx context.Context, fingerprint string) (*model.Alert, error) {
	var a model.Alert
	err := s.pool.QueryRow(ctx, `
		SELECT fingerprint, source_name, status, labels, annotations, starts_at, ends_at,
			generator_url, last_seen_at, occurrences, flapping, created_at, updated_at
		FROM alerts WHERE fingerprint = $1
	`, fingerprint).Scan(&a.Fingerprint, &a.SourceName, &a.Status, &a.Labels, &a.Annotations,
		&a.StartsAt, &a.EndsAt, &a.GeneratorURL, &a.LastSeenAt, &a.Occurrences, &a.Flapping,
		&a.CreatedAt, &a.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &model.StoreError{Op: "GetAlertByFingerprint", Reason: err.Error()}
	}
	a.ID = a.Fingerprint
	return &a, nil
}

func (s *PostgresStore) UpdateAlert(ctx context.Context, a *model.Alert) error {
	return s.SaveAlert(ctx, a)
}

func (s *PostgresStore) SaveWorkflowRun(ctx context.Context, r *model.WorkflowRun) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO workflow_runs (id, workflow_name, source_name, alert_id, phase, steps, outputs,
			error, sink_results, seed, pending_approval, created_at, started_at, completed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (id) DO UPDATE SET
			phase = EXCLUDED.phase,
			steps = EXCLUDED.steps,
			outputs = EXCLUDED.outputs,
			error = EXCLUDED.error,
			sink_results = EXCLUDED.sink_results,
			seed = EXCLUDED.seed,
			pending_approval = EXCLUDED.pending_approval,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at
	`, r.ID, r.WorkflowName, r.SourceName, r.AlertID, r.Phase, r.Steps, r.Outputs, r.Error,
		r.SinkResults, r.Seed, r.PendingApproval, r.CreatedAt, r.StartedAt, r.CompletedAt)
	if err != nil {
		return &model.StoreError{Op: "SaveWorkflowRun", Reason: err.Error()}
	}
	return nil
}

func (s *PostgresStore) UpdateWorkflowRun(ctx context.Context, r *model.WorkflowRun) error {
	return s.SaveWorkflowRun(ctx, r)
}

func (s *PostgresStore) GetWorkflowRun(ctx context.Context, id string) (*model.WorkflowRun, error) {
	var r model.WorkflowRun
	err := s.pool.QueryRow(ctx, `
		SELECT id, workflow_name, source_name, alert_id, phase, steps, outputs, error,
			sink_results, seed, pending_approval, created_at, started_at, completed_at
		FROM workflow_runs WHERE id = $1
	`, id).Scan(&r.ID, &r.WorkflowName, &r.SourceName, &r.AlertID, &r.Phase, &r.Steps, &r.Outputs,
		&r.Error, &r.SinkResults, &r.Seed, &r.PendingApproval, &r.CreatedAt, &r.StartedAt, &r.CompletedAt)
	if err == pgx.ErrNoRows {
		return nil, &model.NotFoundError{Kind: "WorkflowRun", Name: id}
	}
	if err != nil {
		return nil, &model.StoreError{Op: "GetWorkflowRun", Reason: err.Error()}
	}
	return &r, nil
}

func (s *PostgresStore) ListWorkflowRuns(ctx context.Context, workflowName string, limit int) ([]*model.WorkflowRun, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, workflow_name, source_name, alert_id, phase, steps, outputs, error,
			sink_results, seed, pending_approval, created_at, started_at, completed_at
		FROM workflow_runs
		WHERE $1 = '' OR workflow_name = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, workflowName, limit)
	if err != nil {
		return nil, &model.StoreError{Op: "ListWorkflowRuns", Reason: err.Error()}
	}
	defer rows.Close()

	var out []*model.WorkflowRun
	for rows.Next() {
		var r model.WorkflowRun
		if err := rows.Scan(&r.ID, &r.WorkflowName, &r.SourceName, &r.AlertID, &r.Phase, &r.Steps,
			&r.Outputs, &r.Error, &r.SinkResults, &r.Seed, &r.PendingApproval, &r.CreatedAt, &r.StartedAt, &r.CompletedAt); err != nil {
			return nil, &model.StoreError{Op: "ListWorkflowRuns", Reason: err.Error()}
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SaveResource(ctx context.Context, kind model.ResourceKind, name string, spec []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO custom_resources (kind, name, spec, updated_at)
		VALUES ($1,$2,$3,NOW())
		ON CONFLICT (kind, name) DO UPDATE SET spec = EXCLUDED.spec, updated_at = NOW()
	`, string(kind), name, spec)
	if err != nil {
		return &model.StoreError{Op: "SaveResource", Reason: err.Error()}
	}
	return nil
}

func (s *PostgresStore) DeleteResource(ctx context.Context, kind model.ResourceKind, name string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM custom_resources WHERE kind = $1 AND name = $2`, string(kind), name)
	if err != nil {
		return &model.StoreError{Op: "DeleteResource", Reason: err.Error()}
	}
	return nil
}

func (s *PostgresStore) ListResources(ctx context.Context, kind model.ResourceKind) (map[string][]byte, error) {
	rows, err := s.pool.Query(ctx, `SELECT name, spec FROM custom_resources WHERE kind = $1`, string(kind))
	if err != nil {
		return nil, &model.StoreError{Op: "ListResources", Reason: err.Error()}
	}
	defer rows.Close()

	out := map[string][]byte{}
	for rows.Next() {
		var name string
		var spec []byte
		if err := rows.Scan(&name, &spec); err != nil {
			return nil, &model.StoreError{Op: "ListResources", Reason: err.Error()}
		}
		out[name] = spec
	}
	return out, rows.Err()
}

func (s *PostgresStore) InsertIncidentEmbedding(ctx context.Context, runID, summary string, vector []float32) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO incident_embeddings (run_id, summary, embedding)
		VALUES ($1,$2,$3)
		ON CONFLICT (run_id) DO UPDATE SET summary = EXCLUDED.summary, embedding = EXCLUDED.embedding
	`, runID, summary, pgvector.NewVector(vector))
	if err != nil {
		return &model.StoreError{Op: "InsertIncidentEmbedding", Reason: err.Error()}
	}
	return nil
}

func (s *PostgresStore) ListSimilarIncidents(ctx context.Context, vector []float32, limit int) ([]model.SimilarIncident, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT run_id, summary, embedding <=> $1 AS distance
		FROM incident_embeddings
		ORDER BY distance ASC
		LIMIT $2
	`, pgvector.NewVector(vector), limit)
	if err != nil {
		return nil, &model.StoreError{Op: "ListSimilarIncidents", Reason: err.Error()}
	}
	defer rows.Close()

	var out []model.SimilarIncident
	for rows.Next() {
		var si model.SimilarIncident
		if err := rows.Scan(&si.RunID, &si.Summary, &si.Distance); err != nil {
			return nil, &model.StoreError{Op: "ListSimilarIncidents", Reason: err.Error()}
		}
		out = append(out, si)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateUser(ctx context.Context, loginID, passwordHash string) (*model.User, error) {
	var u model.User
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (login_id, password_hash, created_at, updated_at)
		VALUES ($1,$2,NOW(),NOW())
		RETURNING id, login_id, password_hash, created_at, updated_at
	`, loginID, passwordHash).Scan(&u.ID, &u.LoginID, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if isUniqueViolation(err) {
		return nil, &model.ConflictError{Kind: "User", Reason: "loginID already registered"}
	}
	if err != nil {
		return nil, &model.StoreError{Op: "CreateUser", Reason: err.Error()}
	}
	return &u, nil
}

func (s *PostgresStore) GetUserByLoginID(ctx context.Context, loginID string) (*model.User, error) {
	var u model.User
	err := s.pool.QueryRow(ctx, `
		SELECT id, login_id, password_hash, created_at, updated_at FROM users WHERE login_id = $1
	`, loginID).Scan(&u.ID, &u.LoginID, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, &model.NotFoundError{Kind: "User", Name: loginID}
	}
	if err != nil {
		return nil, &model.StoreError{Op: "GetUserByLoginID", Reason: err.Error()}
	}
	return &u, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	err := s.pool.QueryRow(ctx, `
		SELECT id, login_id, password_hash, created_at, updated_at FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.LoginID, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, &model.NotFoundError{Kind: "User", Name: fmt.Sprintf("%d", id)}
	}
	if err != nil {
		return nil, &model.StoreError{Op: "GetUserByID", Reason: err.Error()}
	}
	return &u, nil
}

func (s *PostgresStore) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, &model.StoreError{Op: "CountUsers", Reason: err.Error()}
	}
	return count, nil
}

func (s *PostgresStore) InsertRefreshToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) (*model.RefreshToken, error) {
	var rt model.RefreshToken
	err := s.pool.QueryRow(ctx, `
		INSERT INTO refresh_tokens (user_id, token_hash, expires_at, created_at)
		VALUES ($1,$2,$3,NOW())
		RETURNING id, user_id, token_hash, expires_at, revoked_at, created_at
	`, userID, tokenHash, expiresAt).Scan(&rt.ID, &rt.UserID, &rt.TokenHash, &rt.ExpiresAt, &rt.RevokedAt, &rt.CreatedAt)
	if err != nil {
		return nil, &model.StoreError{Op: "InsertRefreshToken", Reason: err.Error()}
	}
	return &rt, nil
}

func (s *PostgresStore) RotateRefreshToken(ctx context.Context, oldTokenID, userID int64, newTokenHash string, newExpiresAt time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &model.StoreError{Op: "RotateRefreshToken", Reason: err.Error()}
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE refresh_tokens SET revoked_at = NOW() WHERE id = $1`, oldTokenID); err != nil {
		return &model.StoreError{Op: "RotateRefreshToken", Reason: err.Error()}
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO refresh_tokens (user_id, token_hash, expires_at, created_at)
		VALUES ($1,$2,$3,NOW())
	`, userID, newTokenHash, newExpiresAt); err != nil {
		return &model.StoreError{Op: "RotateRefreshToken", Reason: err.Error()}
	}
	if err := tx.Commit(ctx); err != nil {
		return &model.StoreError{Op: "RotateRefreshToken", Reason: err.Error()}
	}
	return nil
}

func (s *PostgresStore) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error) {
	var rt model.RefreshToken
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, token_hash, expires_at, revoked_at, created_at
		FROM refresh_tokens WHERE token_hash = $1
	`, tokenHash).Scan(&rt.ID, &rt.UserID, &rt.TokenHash, &rt.ExpiresAt, &rt.RevokedAt, &rt.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, &model.NotFoundError{Kind: "RefreshToken", Name: tokenHash}
	}
	if err != nil {
		return nil, &model.StoreError{Op: "GetRefreshTokenByHash", Reason: err.Error()}
	}
	return &rt, nil
}

func (s *PostgresStore) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE refresh_tokens SET revoked_at = NOW() WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return &model.StoreError{Op: "RevokeRefreshToken", Reason: err.Error()}
	}
	if tag.RowsAffected() == 0 {
		return &model.NotFoundError{Kind: "RefreshToken", Name: tokenHash}
	}
	return nil
}

// isUniqueViolation matches the teacher's internal/service/auth.go check
// for Postgres error code 23505 (unique_violation).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}
