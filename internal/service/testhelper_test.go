package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	appconfig "github.com/clienthubhq/clienthub-api/internal/config"
	"github.com/clienthubhq/clienthub-api/internal/llm"
	"github.com/clienthubhq/clienthub-api/internal/models"
	"github.com/clienthubhq/clienthub-api/internal/places"
	"github.com/clienthubhq/clienthub-api/internal/scrape"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testConfig returns a config with the knobs the services read set to small
// test-friendly values.
func testConfig() *appconfig.Config {
	return &appconfig.Config{
		BaseURL:          "https://api.example.com",
		ScrapeTimeout:    5 * time.Second,
		JobTimeout:       10 * time.Second,
		ChunkSize:        100,
		ChunkOverlap:     20,
		RAGTopK:          5,
		RAGContextBudget: 4000,
	}
}

// disabledStorage returns a sink in metadata-only mode.
func disabledStorage(t *testing.T) *StorageService {
	t.Helper()
	svc, err := NewStorageService(&appconfig.Config{}, discardLogger())
	if err != nil {
		t.Fatalf("failed to create storage service: %v", err)
	}
	return svc
}

// enabledStorage returns a sink wired to an unreachable endpoint. Only the
// enabled flag matters to callers that gate on it; nothing is dialed until
// an object operation runs.
func enabledStorage(t *testing.T) *StorageService {
	t.Helper()
	cfg := &appconfig.Config{
		StorageEnabled:   true,
		StorageEndpoint:  "http://127.0.0.1:1",
		StorageAccessKey: "test",
		StorageSecretKey: "test",
		StorageBucket:    "test-bucket",
		StorageRegion:    "auto",
	}
	svc, err := NewStorageService(cfg, discardLogger())
	if err != nil {
		t.Fatalf("failed to create storage service: %v", err)
	}
	return svc
}

const testSigningSecret = "whsec_dGVzdC1zZWNyZXQtZm9yLXRlc3Rpbmc="

func testNotify(t *testing.T) *NotifyService {
	t.Helper()
	svc, err := NewNotifyService(testSigningSecret, discardLogger())
	if err != nil {
		t.Fatalf("failed to create notify service: %v", err)
	}
	return svc
}

// ========================================
// Repository mocks
// ========================================
//
// The mocks mirror the SQL repositories' transition semantics: status moves
// are guarded on the expected current status and report whether the row
// actually changed.

type mockClientRepository struct {
	mu      sync.RWMutex
	clients map[string]*models.Client
	order   []string
}

func newMockClientRepository() *mockClientRepository {
	return &mockClientRepository{clients: make(map[string]*models.Client)}
}

func (m *mockClientRepository) Create(ctx context.Context, client *models.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[client.ID] = client
	m.order = append(m.order, client.ID)
	return nil
}

func (m *mockClientRepository) GetByID(ctx context.Context, id string) (*models.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.clients[id]; ok {
		return c, nil
	}
	return nil, nil
}

func (m *mockClientRepository) GetByEmail(ctx context.Context, email string) (*models.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.clients {
		if c.Email == email {
			return c, nil
		}
	}
	return nil, nil
}

func (m *mockClientRepository) List(ctx context.Context, includeInactive bool, limit, offset int) ([]*models.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*models.Client
	for _, id := range m.order {
		c := m.clients[id]
		if !includeInactive && !c.IsActive {
			continue
		}
		result = append(result, c)
	}
	if offset >= len(result) {
		return nil, nil
	}
	result = result[offset:]
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

func (m *mockClientRepository) Update(ctx context.Context, client *models.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[client.ID] = client
	return nil
}

func (m *mockClientRepository) Deactivate(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.clients[id]; ok {
		c.IsActive = false
		c.UpdatedAt = time.Now()
	}
	return nil
}

type mockJobRepository struct {
	mu    sync.RWMutex
	jobs  map[string]*models.Job
	order []string
}

func newMockJobRepository() *mockJobRepository {
	return &mockJobRepository{jobs: make(map[string]*models.Job)}
}

func (m *mockJobRepository) Create(ctx context.Context, job *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
	m.order = append(m.order, job.ID)
	return nil
}

func (m *mockJobRepository) GetByID(ctx context.Context, id string) (*models.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if j, ok := m.jobs[id]; ok {
		return j, nil
	}
	return nil, nil
}

func (m *mockJobRepository) GetByClientID(ctx context.Context, clientID string, limit, offset int) ([]*models.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*models.Job
	for _, id := range m.order {
		if m.jobs[id].ClientID == clientID {
			result = append(result, m.jobs[id])
		}
	}
	if offset >= len(result) {
		return nil, nil
	}
	result = result[offset:]
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

func (m *mockJobRepository) ClaimQueued(ctx context.Context) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.order {
		j := m.jobs[id]
		if j.Status == models.JobStatusQueued {
			now := time.Now()
			j.Status = models.JobStatusRunning
			j.StartedAt = &now
			j.UpdatedAt = now
			return j, nil
		}
	}
	return nil, nil
}

func (m *mockJobRepository) MarkSucceeded(ctx context.Context, id string, summary models.ResultSummary) (bool, error) {
	return m.transition(id, models.JobStatusRunning, func(j *models.Job) {
		j.Status = models.JobStatusSucceeded
		j.Summary = &summary
	}), nil
}

func (m *mockJobRepository) MarkFailed(ctx context.Context, id string, jobErr models.JobError) (bool, error) {
	return m.transition(id, models.JobStatusRunning, func(j *models.Job) {
		j.Status = models.JobStatusFailed
		j.Error = &jobErr
	}), nil
}

func (m *mockJobRepository) CancelIfQueued(ctx context.Context, id string) (bool, error) {
	return m.transition(id, models.JobStatusQueued, func(j *models.Job) {
		j.Status = models.JobStatusCancelled
	}), nil
}

func (m *mockJobRepository) MarkCancelled(ctx context.Context, id string) (bool, error) {
	return m.transition(id, models.JobStatusRunning, func(j *models.Job) {
		j.Status = models.JobStatusCancelled
	}), nil
}

func (m *mockJobRepository) transition(id string, from models.JobStatus, apply func(*models.Job)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Status != from {
		return false
	}
	apply(j)
	now := time.Now()
	j.FinishedAt = &now
	j.UpdatedAt = now
	return true
}

func (m *mockJobRepository) MarkStaleRunningJobsFailed(ctx context.Context, maxAge time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-maxAge)
	var swept int64
	for _, j := range m.jobs {
		if j.Status == models.JobStatusRunning && !j.UpdatedAt.After(cutoff) {
			j.Status = models.JobStatusFailed
			j.Error = &models.JobError{Stage: models.StageOrchestrate, Kind: models.ErrKindStale, Message: "worker lost"}
			swept++
		}
	}
	return swept, nil
}

func (m *mockJobRepository) DeleteOlderThan(ctx context.Context, before time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted []string
	for id, j := range m.jobs {
		if j.Status.Terminal() && j.CreatedAt.Before(before) {
			delete(m.jobs, id)
			deleted = append(deleted, id)
		}
	}
	return deleted, nil
}

type mockDocumentRepository struct {
	mu   sync.RWMutex
	docs map[string]*models.Document
}

func newMockDocumentRepository() *mockDocumentRepository {
	return &mockDocumentRepository{docs: make(map[string]*models.Document)}
}

func (m *mockDocumentRepository) Upsert(ctx context.Context, doc *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.docs {
		if existing.ClientID == doc.ClientID && existing.ContentHash == doc.ContentHash {
			doc.ID = existing.ID
			m.docs[existing.ID] = doc
			return nil
		}
	}
	m.docs[doc.ID] = doc
	return nil
}

func (m *mockDocumentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if d, ok := m.docs[id]; ok {
		return d, nil
	}
	return nil, nil
}

func (m *mockDocumentRepository) GetByJobID(ctx context.Context, jobID string) (*models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.docs {
		if d.JobID == jobID {
			return d, nil
		}
	}
	return nil, nil
}

func (m *mockDocumentRepository) GetByClientAndHash(ctx context.Context, clientID, contentHash string) (*models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.docs {
		if d.ClientID == clientID && d.ContentHash == contentHash {
			return d, nil
		}
	}
	return nil, nil
}

func (m *mockDocumentRepository) ListByClientID(ctx context.Context, clientID string) ([]*models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*models.Document
	for _, d := range m.docs {
		if d.ClientID == clientID {
			result = append(result, d)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (m *mockDocumentRepository) DeleteByClientID(ctx context.Context, clientID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for id, d := range m.docs {
		if d.ClientID == clientID {
			delete(m.docs, id)
			deleted++
		}
	}
	return deleted, nil
}

type mockChunkRepository struct {
	mu   sync.RWMutex
	data map[string]map[string]models.Chunk
}

func newMockChunkRepository() *mockChunkRepository {
	return &mockChunkRepository{data: make(map[string]map[string]models.Chunk)}
}

func (m *mockChunkRepository) UpsertBatch(ctx context.Context, chunks []models.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		ns, ok := m.data[c.ClientID]
		if !ok {
			ns = make(map[string]models.Chunk)
			m.data[c.ClientID] = ns
		}
		ns[c.ID] = c
	}
	return nil
}

func (m *mockChunkRepository) ExistingIDs(ctx context.Context, clientID string, ids []string) (map[string]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	existing := make(map[string]struct{})
	ns := m.data[clientID]
	for _, id := range ids {
		if _, ok := ns[id]; ok {
			existing[id] = struct{}{}
		}
	}
	return existing, nil
}

func (m *mockChunkRepository) ListByClient(ctx context.Context, clientID string) ([]models.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []models.Chunk
	for _, c := range m.data[clientID] {
		result = append(result, c)
	}
	return result, nil
}

func (m *mockChunkRepository) ListSourcesByClient(ctx context.Context, clientID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]struct{})
	var sources []string
	for _, c := range m.data[clientID] {
		if _, ok := seen[c.SourceURL]; !ok {
			seen[c.SourceURL] = struct{}{}
			sources = append(sources, c.SourceURL)
		}
	}
	sort.Strings(sources)
	return sources, nil
}

func (m *mockChunkRepository) DeleteByClient(ctx context.Context, clientID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := int64(len(m.data[clientID]))
	delete(m.data, clientID)
	return deleted, nil
}

func (m *mockChunkRepository) DeleteByContentHash(ctx context.Context, clientID, contentHash string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for id, c := range m.data[clientID] {
		if c.ContentHash == contentHash {
			delete(m.data[clientID], id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *mockChunkRepository) CountByClient(ctx context.Context, clientID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.data[clientID])), nil
}

// ========================================
// Collaborator fakes
// ========================================

// stubEmbedder returns a constant unit vector for every text.
type stubEmbedder struct {
	mu      sync.Mutex
	batches int
	texts   int
}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.batches++
	e.texts += len(texts)
	e.mu.Unlock()
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = []float32{1, 0}
	}
	return vecs, nil
}

func (e *stubEmbedder) Dimensions() int                { return 2 }
func (e *stubEmbedder) Ping(ctx context.Context) error { return nil }
func (e *stubEmbedder) Close() error                   { return nil }

// stubExtractor implements scrape.Extractor with a canned result.
type stubExtractor struct {
	strategy models.Strategy
	doc      *models.ExtractedDocument
	err      error
	calls    int
	block    chan struct{}
}

func (f *stubExtractor) Extract(ctx context.Context, rawurl string, opts scrape.Options) (*models.ExtractedDocument, error) {
	f.calls++
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	doc := *f.doc
	doc.SourceURL = rawurl
	return &doc, nil
}

func (f *stubExtractor) Strategy() models.Strategy { return f.strategy }
func (f *stubExtractor) Close() error              { return nil }

// stubGenerator implements llm.Generator with a canned answer.
type stubGenerator struct {
	answer   string
	err      error
	lastMsgs []llm.Message
}

func (g *stubGenerator) Generate(ctx context.Context, messages []llm.Message, opts llm.GenerateOptions) (string, error) {
	g.lastMsgs = messages
	if g.err != nil {
		return "", g.err
	}
	return g.answer, nil
}

func (g *stubGenerator) Ping(ctx context.Context) error { return nil }
func (g *stubGenerator) Close() error                   { return nil }

// stubFinder implements places.Finder with canned results.
type stubFinder struct {
	results   []places.Place
	err       error
	lastQuery string
}

func (f *stubFinder) SearchText(ctx context.Context, query string, limit int) ([]places.Place, error) {
	f.lastQuery = query
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

// activeClient inserts an active client into the mock repo.
func activeClient(t *testing.T, repo *mockClientRepository) *models.Client {
	t.Helper()
	client := &models.Client{
		ID:        ulid.Make().String(),
		Name:      "Acme Industrial",
		Email:     ulid.Make().String() + "@example.com",
		IsActive:  true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := repo.Create(context.Background(), client); err != nil {
		t.Fatalf("failed to create test client: %v", err)
	}
	return client
}
