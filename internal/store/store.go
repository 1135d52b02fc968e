// Package store defines the persistence interface the rest of the
// control plane depends on, plus a Postgres-backed implementation (the
// teacher's idiom, via jackc/pgx) and an in-memory one for tests, per
// the design note that the Store is an interface, never a concrete DB.
package store

import (
	"context"
	"time"

	"github.com/triageops/controlplane/internal/model"
)

// Store is everything the control plane persists: alerts, workflow runs,
// declarative resources (for registry rehydration), and the similar
// incident embedding index.
type Store interface {
	// Alerts
	SaveAlert(ctx context.Context, a *model.Alert) error
	GetAlertByFingerprint(ctx context.Context, fingerprint string) (*model.Alert, error)
	UpdateAlert(ctx context.Context, a *model.Alert) error

	// Workflow runs
	SaveWorkflowRun(ctx context.Context, r *model.WorkflowRun) error
	UpdateWorkflowRun(ctx context.Context, r *model.WorkflowRun) error
	GetWorkflowRun(ctx context.Context, id string) (*model.WorkflowRun, error)
	ListWorkflowRuns(ctx context.Context, workflowName string, limit int) ([]*model.WorkflowRun, error)

	// Declarative resources, for registry rehydration on startup
	SaveResource(ctx context.Context, kind model.ResourceKind, name string, spec []byte) error
	DeleteResource(ctx context.Context, kind model.ResourceKind, name string) error
	ListResources(ctx context.Context, kind model.ResourceKind) (map[string][]byte, error)

	// Similar-incident retrieval
	InsertIncidentEmbedding(ctx context.Context, runID, summary string, vector []float32) error
	ListSimilarIncidents(ctx context.Context, vector []float32, limit int) ([]model.SimilarIncident, error)

	// Users and refresh tokens, for the management API's auth layer
	CreateUser(ctx context.Context, loginID, passwordHash string) (*model.User, error)
	GetUserByLoginID(ctx context.Context, loginID string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	CountUsers(ctx context.Context) (int64, error)
	InsertRefreshToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) (*model.RefreshToken, error)
	GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error)
	RotateRefreshToken(ctx context.Context, oldTokenID, userID int64, newTokenHash string, newExpiresAt time.Time) error
	RevokeRefreshToken(ctx context.Context, tokenHash string) error

	Close()
}
