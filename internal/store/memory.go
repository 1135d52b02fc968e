package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/triageops/controlplane/internal/model"
)

// MemoryStore is a map-guarded-by-mutex Store, used in tests and as the
// default when no DATABASE_URL is configured.
type MemoryStore struct {
	mu sync.RWMutex

	alertsByFingerprint map[string]*model.Alert
	runs                map[string]*model.WorkflowRun
	resources           map[model.ResourceKind]map[string][]byte
	embeddings          []embeddingRow

	usersByID      map[int64]*model.User
	usersByLoginID map[string]int64
	nextUserID     int64

	refreshTokensByHash map[string]*model.RefreshToken
	nextRefreshTokenID  int64
}

type embeddingRow struct {
	runID   string
	summary string
	vector  []float32
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		alertsByFingerprint: map[string]*model.Alert{},
		runs:                map[string]*model.WorkflowRun{},
		resources: map[model.ResourceKind]map[string][]byte{
			model.KindSource:   {},
			model.KindWorkflow: {},
			model.KindSink:     {},
		},
		usersByID:           map[int64]*model.User{},
		usersByLoginID:      map[string]int64{},
		refreshTokensByHash: map[string]*model.RefreshToken{},
	}
}

func (m *MemoryStore) SaveAlert(_ context.Context, a *model.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.alertsByFingerprint[a.Fingerprint] = &cp
	return nil
}

func (m *MemoryStore) GetAlertByFingerprint(_ context.Context, fingerprint string) (*model.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.alertsByFingerprint[fingerprint]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryStore) UpdateAlert(ctx context.Context, a *model.Alert) error {
	return m.SaveAlert(ctx, a)
}

func (m *MemoryStore) SaveWorkflowRun(_ context.Context, r *model.WorkflowRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.runs[r.ID] = &cp
	return nil
}

func (m *MemoryStore) UpdateWorkflowRun(ctx context.Context, r *model.WorkflowRun) error {
	return m.SaveWorkflowRun(ctx, r)
}

func (m *MemoryStore) GetWorkflowRun(_ context.Context, id string) (*model.WorkflowRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, &model.NotFoundError{Kind: "WorkflowRun", Name: id}
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) ListWorkflowRuns(_ context.Context, workflowName string, limit int) ([]*model.WorkflowRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.WorkflowRun, 0)
	for _, r := range m.runs {
		if workflowName != "" && r.WorkflowName != workflowName {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) SaveResource(_ context.Context, kind model.ResourceKind, name string, spec []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resources[kind] == nil {
		m.resources[kind] = map[string][]byte{}
	}
	m.resources[kind][name] = spec
	return nil
}

func (m *MemoryStore) DeleteResource(_ context.Context, kind model.ResourceKind, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.resources[kind], name)
	return nil
}

func (m *MemoryStore) ListResources(_ context.Context, kind model.ResourceKind) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]byte, len(m.resources[kind]))
	for k, v := range m.resources[kind] {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryStore) InsertIncidentEmbedding(_ context.Context, runID, summary string, vector []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embeddings = append(m.embeddings, embeddingRow{runID: runID, summary: summary, vector: vector})
	return nil
}

func (m *MemoryStore) ListSimilarIncidents(_ context.Context, vector []float32, limit int) ([]model.SimilarIncident, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.SimilarIncident, 0, len(m.embeddings))
	for _, e := range m.embeddings {
		out = append(out, model.SimilarIncident{
			RunID:    e.runID,
			Summary:  e.summary,
			Distance: cosineDistance(vector, e.vector),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) CreateUser(_ context.Context, loginID, passwordHash string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.usersByLoginID[loginID]; exists {
		return nil, &model.ConflictError{Kind: "User", Reason: "loginID already registered"}
	}
	m.nextUserID++
	now := time.Now()
	u := &model.User{
		ID:           m.nextUserID,
		LoginID:      loginID,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.usersByID[u.ID] = u
	m.usersByLoginID[loginID] = u.ID
	cp := *u
	return &cp, nil
}

func (m *MemoryStore) GetUserByLoginID(_ context.Context, loginID string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.usersByLoginID[loginID]
	if !ok {
		return nil, &model.NotFoundError{Kind: "User", Name: loginID}
	}
	cp := *m.usersByID[id]
	return &cp, nil
}

func (m *MemoryStore) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.usersByID[id]
	if !ok {
		return nil, &model.NotFoundError{Kind: "User", Name: fmt.Sprintf("%d", id)}
	}
	cp := *u
	return &cp, nil
}

func (m *MemoryStore) CountUsers(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.usersByID)), nil
}

func (m *MemoryStore) InsertRefreshToken(_ context.Context, userID int64, tokenHash string, expiresAt time.Time) (*model.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextRefreshTokenID++
	rt := &model.RefreshToken{
		ID:        m.nextRefreshTokenID,
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
	m.refreshTokensByHash[tokenHash] = rt
	cp := *rt
	return &cp, nil
}

func (m *MemoryStore) RotateRefreshToken(_ context.Context, oldTokenID, userID int64, newTokenHash string, newExpiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for hash, rt := range m.refreshTokensByHash {
		if rt.ID == oldTokenID {
			delete(m.refreshTokensByHash, hash)
			break
		}
	}
	m.nextRefreshTokenID++
	m.refreshTokensByHash[newTokenHash] = &model.RefreshToken{
		ID:        m.nextRefreshTokenID,
		UserID:    userID,
		TokenHash: newTokenHash,
		ExpiresAt: newExpiresAt,
		CreatedAt: time.Now(),
	}
	return nil
}

func (m *MemoryStore) GetRefreshTokenByHash(_ context.Context, tokenHash string) (*model.RefreshToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rt, ok := m.refreshTokensByHash[tokenHash]
	if !ok {
		return nil, &model.NotFoundError{Kind: "RefreshToken", Name: tokenHash}
	}
	cp := *rt
	return &cp, nil
}

func (m *MemoryStore) RevokeRefreshToken(_ context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rt, ok := m.refreshTokensByHash[tokenHash]
	if !ok {
		return &model.NotFoundError{Kind: "RefreshToken", Name: tokenHash}
	}
	now := time.Now()
	rt.RevokedAt = &now
	return nil
}

func (m *MemoryStore) Close() {}


func cosineDistance(a, b []float32) float32 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 1.0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1.0
	}
	cos := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return float32(1 - cos)
}
