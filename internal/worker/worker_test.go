package worker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/clienthubhq/clienthub-api/internal/chunker"
	appconfig "github.com/clienthubhq/clienthub-api/internal/config"
	"github.com/clienthubhq/clienthub-api/internal/models"
	"github.com/clienthubhq/clienthub-api/internal/repository"
	"github.com/clienthubhq/clienthub-api/internal/scrape"
	"github.com/clienthubhq/clienthub-api/internal/service"
	"github.com/clienthubhq/clienthub-api/internal/vector"
)

const testSigningSecret = "whsec_dGVzdC1zZWNyZXQtZm9yLXRlc3Rpbmc="

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ========================================
// Repository mocks
// ========================================

type mockJobRepository struct {
	mu    sync.Mutex
	jobs  map[string]*models.Job
	order []string
}

func newMockJobRepository() *mockJobRepository {
	return &mockJobRepository{jobs: make(map[string]*models.Job)}
}

func (m *mockJobRepository) Create(ctx context.Context, job *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.jobs[job.ID] = &cp
	m.order = append(m.order, job.ID)
	return nil
}

func (m *mockJobRepository) GetByID(ctx context.Context, id string) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, nil
	}
	cp := *job
	return &cp, nil
}

func (m *mockJobRepository) GetByClientID(ctx context.Context, clientID string, limit, offset int) ([]*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Job
	for _, id := range m.order {
		if job := m.jobs[id]; job.ClientID == clientID {
			cp := *job
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockJobRepository) ClaimQueued(ctx context.Context) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.order {
		job := m.jobs[id]
		if job.Status != models.JobStatusQueued {
			continue
		}
		now := time.Now().UTC()
		job.Status = models.JobStatusRunning
		job.StartedAt = &now
		job.UpdatedAt = now
		cp := *job
		return &cp, nil
	}
	return nil, nil
}

func (m *mockJobRepository) transition(id string, from models.JobStatus, apply func(*models.Job)) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok || job.Status != from {
		return false, nil
	}
	now := time.Now().UTC()
	apply(job)
	job.FinishedAt = &now
	job.UpdatedAt = now
	return true, nil
}

func (m *mockJobRepository) MarkSucceeded(ctx context.Context, id string, summary models.ResultSummary) (bool, error) {
	return m.transition(id, models.JobStatusRunning, func(j *models.Job) {
		j.Status = models.JobStatusSucceeded
		j.Summary = &summary
	})
}

func (m *mockJobRepository) MarkFailed(ctx context.Context, id string, jobErr models.JobError) (bool, error) {
	return m.transition(id, models.JobStatusRunning, func(j *models.Job) {
		j.Status = models.JobStatusFailed
		j.Error = &jobErr
	})
}

func (m *mockJobRepository) CancelIfQueued(ctx context.Context, id string) (bool, error) {
	return m.transition(id, models.JobStatusQueued, func(j *models.Job) {
		j.Status = models.JobStatusCancelled
	})
}

func (m *mockJobRepository) MarkCancelled(ctx context.Context, id string) (bool, error) {
	return m.transition(id, models.JobStatusRunning, func(j *models.Job) {
		j.Status = models.JobStatusCancelled
	})
}

func (m *mockJobRepository) MarkStaleRunningJobsFailed(ctx context.Context, maxAge time.Duration) (int64, error) {
	return 0, nil
}

func (m *mockJobRepository) DeleteOlderThan(ctx context.Context, before time.Time) ([]string, error) {
	return nil, nil
}

type mockDocumentRepository struct {
	mu   sync.Mutex
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
			*existing = *doc
			return nil
		}
	}
	cp := *doc
	m.docs[doc.ID] = &cp
	return nil
}

func (m *mockDocumentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, nil
	}
	cp := *doc
	return &cp, nil
}

func (m *mockDocumentRepository) GetByJobID(ctx context.Context, jobID string) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, doc := range m.docs {
		if doc.JobID == jobID {
			cp := *doc
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockDocumentRepository) GetByClientAndHash(ctx context.Context, clientID, contentHash string) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, doc := range m.docs {
		if doc.ClientID == clientID && doc.ContentHash == contentHash {
			cp := *doc
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockDocumentRepository) ListByClientID(ctx context.Context, clientID string) ([]*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Document
	for _, doc := range m.docs {
		if doc.ClientID == clientID {
			cp := *doc
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockDocumentRepository) DeleteByClientID(ctx context.Context, clientID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, doc := range m.docs {
		if doc.ClientID == clientID {
			delete(m.docs, id)
			n++
		}
	}
	return n, nil
}

type mockChunkRepository struct {
	mu   sync.Mutex
	data map[string]map[string]models.Chunk // clientID -> chunkID -> chunk
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
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]struct{})
	ns := m.data[clientID]
	for _, id := range ids {
		if _, ok := ns[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

func (m *mockChunkRepository) ListByClient(ctx context.Context, clientID string) ([]models.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Chunk
	for _, c := range m.data[clientID] {
		out = append(out, c)
	}
	return out, nil
}

func (m *mockChunkRepository) ListSourcesByClient(ctx context.Context, clientID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]struct{})
	var out []string
	for _, c := range m.data[clientID] {
		if _, ok := seen[c.SourceURL]; !ok {
			seen[c.SourceURL] = struct{}{}
			out = append(out, c.SourceURL)
		}
	}
	return out, nil
}

func (m *mockChunkRepository) DeleteByClient(ctx context.Context, clientID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.data[clientID]))
	delete(m.data, clientID)
	return n, nil
}

func (m *mockChunkRepository) DeleteByContentHash(ctx context.Context, clientID, contentHash string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, c := range m.data[clientID] {
		if c.ContentHash == contentHash {
			delete(m.data[clientID], id)
			n++
		}
	}
	return n, nil
}

func (m *mockChunkRepository) CountByClient(ctx context.Context, clientID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.data[clientID])), nil
}

// ========================================
// Pipeline stubs
// ========================================

type stubExtractor struct {
	mu       sync.Mutex
	strategy models.Strategy
	doc      *models.ExtractedDocument
	err      error
	block    chan struct{}
	calls    int
}

func (f *stubExtractor) Extract(ctx context.Context, rawurl string, opts scrape.Options) (*models.ExtractedDocument, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
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

type stubEmbedder struct{}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (e *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (e *stubEmbedder) Dimensions() int                { return 2 }
func (e *stubEmbedder) Ping(ctx context.Context) error { return nil }
func (e *stubEmbedder) Close() error                   { return nil }

// ========================================
// Fixture
// ========================================

type workerFixture struct {
	worker  *Worker
	jobs    *service.JobService
	jobRepo *mockJobRepository
	docs    *mockDocumentRepository
	chunks  *mockChunkRepository
}

func newWorkerFixture(t *testing.T, extractor *stubExtractor, cfg Config) *workerFixture {
	t.Helper()
	logger := discardLogger()
	appCfg := &appconfig.Config{
		ScrapeTimeout:       2 * time.Second,
		JobTimeout:          time.Minute,
		ChunkSize:           50,
		ChunkOverlap:        10,
		LowContentThreshold: 10,
		RAGTopK:             5,
		RAGContextBudget:    4000,
	}

	jobRepo := newMockJobRepository()
	docs := newMockDocumentRepository()
	chunks := newMockChunkRepository()
	repos := &repository.Repositories{Job: jobRepo, Document: docs, Chunk: chunks}

	storage, err := service.NewStorageService(&appconfig.Config{}, logger)
	if err != nil {
		t.Fatalf("NewStorageService() error = %v", err)
	}
	notify, err := service.NewNotifyService(testSigningSecret, logger)
	if err != nil {
		t.Fatalf("NewNotifyService() error = %v", err)
	}
	jobs := service.NewJobService(appCfg, repos, storage, notify, logger)

	selector := scrape.NewSelector(extractor, nil, nil, logger)
	splitter := chunker.New(chunker.WithChunkSize(50), chunker.WithOverlap(10))
	index := vector.NewIndex(&stubEmbedder{}, chunks, logger)
	pipeline := service.NewPipelineService(appCfg, repos, selector, splitter, index, storage, logger)

	return &workerFixture{
		worker:  New(jobRepo, jobs, pipeline, notify, cfg, logger),
		jobs:    jobs,
		jobRepo: jobRepo,
		docs:    docs,
		chunks:  chunks,
	}
}

func fastConfig() Config {
	return Config{
		PollInterval:  10 * time.Millisecond,
		Concurrency:   2,
		JobTimeout:    2 * time.Second,
		ShutdownGrace: time.Second,
	}
}

func sampleDoc() *models.ExtractedDocument {
	text := "Acme Industrial supplies bolts, rivets and fasteners to manufacturers across the region. " +
		"The catalogue covers stainless and galvanised lines with same-day dispatch on stocked items."
	sum := sha256.Sum256([]byte(text))
	return &models.ExtractedDocument{
		Title:       "About Acme Industrial",
		Text:        text,
		FetchedAt:   time.Now().UTC(),
		ContentHash: hex.EncodeToString(sum[:]),
	}
}

func seedQueuedJob(t *testing.T, repo *mockJobRepository) *models.Job {
	t.Helper()
	now := time.Now().UTC()
	job := &models.Job{
		ID:                ulid.Make().String(),
		ClientID:          "client_1",
		Type:              models.JobTypeScrape,
		Status:            models.JobStatusQueued,
		URL:               "https://example.com/about",
		RequestedStrategy: models.StrategyAuto,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := repo.Create(context.Background(), job); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return job
}

func waitForStatus(t *testing.T, repo *mockJobRepository, id string, want models.JobStatus) *models.Job {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		job, err := repo.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		if job != nil && job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached status %q", id, want)
	return nil
}

// ========================================
// New
// ========================================

func TestNew_Defaults(t *testing.T) {
	w := New(nil, nil, nil, nil, Config{}, nil)

	if w.pollInterval != 5*time.Second {
		t.Errorf("pollInterval = %v, want 5s", w.pollInterval)
	}
	if w.concurrency != 3 {
		t.Errorf("concurrency = %d, want 3", w.concurrency)
	}
	if w.jobTimeout != 5*time.Minute {
		t.Errorf("jobTimeout = %v, want 5m", w.jobTimeout)
	}
	if w.shutdownGrace != 30*time.Second {
		t.Errorf("shutdownGrace = %v, want 30s", w.shutdownGrace)
	}
	if w.logger == nil {
		t.Error("logger should default to slog.Default()")
	}
	if w.stop == nil {
		t.Error("stop channel should be initialized")
	}
}

func TestNew_CustomConfig(t *testing.T) {
	cfg := Config{
		PollInterval:  time.Second,
		Concurrency:   8,
		JobTimeout:    time.Minute,
		ShutdownGrace: 10 * time.Second,
	}
	w := New(nil, nil, nil, nil, cfg, discardLogger())

	if w.pollInterval != time.Second {
		t.Errorf("pollInterval = %v, want 1s", w.pollInterval)
	}
	if w.concurrency != 8 {
		t.Errorf("concurrency = %d, want 8", w.concurrency)
	}
	if w.jobTimeout != time.Minute {
		t.Errorf("jobTimeout = %v, want 1m", w.jobTimeout)
	}
	if w.shutdownGrace != 10*time.Second {
		t.Errorf("shutdownGrace = %v, want 10s", w.shutdownGrace)
	}
}

// ========================================
// Lifecycle
// ========================================

func TestWorker_StartStop(t *testing.T) {
	f := newWorkerFixture(t, &stubExtractor{strategy: models.StrategyHTTP, doc: sampleDoc()}, fastConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.worker.Start(ctx)

	done := make(chan struct{})
	go func() {
		f.worker.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("Stop() timed out")
	}
}

func TestWorker_StopViaContext(t *testing.T) {
	f := newWorkerFixture(t, &stubExtractor{strategy: models.StrategyHTTP, doc: sampleDoc()}, fastConfig())

	ctx, cancel := context.WithCancel(context.Background())
	f.worker.Start(ctx)
	cancel()

	// Workers exit on context cancellation, so Stop has nothing to wait for.
	done := make(chan struct{})
	go func() {
		f.worker.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Error("Stop() timed out after context cancellation")
	}
}

// ========================================
// Job processing
// ========================================

func TestWorker_ProcessesQueuedJob(t *testing.T) {
	extractor := &stubExtractor{strategy: models.StrategyHTTP, doc: sampleDoc()}
	f := newWorkerFixture(t, extractor, fastConfig())
	job := seedQueuedJob(t, f.jobRepo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.worker.Start(ctx)
	defer f.worker.Stop()

	done := waitForStatus(t, f.jobRepo, job.ID, models.JobStatusSucceeded)

	if done.Summary == nil {
		t.Fatal("Summary should be set on a succeeded job")
	}
	if done.Summary.PagesFetched != 1 {
		t.Errorf("PagesFetched = %d, want 1", done.Summary.PagesFetched)
	}
	if done.Summary.ChunksProduced == 0 {
		t.Error("ChunksProduced should be > 0")
	}
	if done.FinishedAt == nil {
		t.Error("FinishedAt should be set")
	}

	rows, err := f.docs.ListByClientID(ctx, job.ClientID)
	if err != nil {
		t.Fatalf("ListByClientID() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("persisted %d document rows, want 1", len(rows))
	}
	count, err := f.chunks.CountByClient(ctx, job.ClientID)
	if err != nil {
		t.Fatalf("CountByClient() error = %v", err)
	}
	if count != int64(done.Summary.ChunksProduced) {
		t.Errorf("indexed %d chunks, summary says %d", count, done.Summary.ChunksProduced)
	}
}

func TestWorker_RecordsStageFailure(t *testing.T) {
	extractor := &stubExtractor{
		strategy: models.StrategyHTTP,
		err: &scrape.FetchError{
			Kind:  scrape.FetchKindNetwork,
			URL:   "https://example.com/about",
			Cause: errors.New("connection refused"),
		},
	}
	f := newWorkerFixture(t, extractor, fastConfig())
	job := seedQueuedJob(t, f.jobRepo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.worker.Start(ctx)
	defer f.worker.Stop()

	done := waitForStatus(t, f.jobRepo, job.ID, models.JobStatusFailed)

	if done.Error == nil {
		t.Fatal("Error should be set on a failed job")
	}
	if done.Error.Stage != models.StageExtract {
		t.Errorf("Error.Stage = %q, want %q", done.Error.Stage, models.StageExtract)
	}
	if done.Error.Kind != models.ErrKindNetwork {
		t.Errorf("Error.Kind = %q, want %q", done.Error.Kind, models.ErrKindNetwork)
	}
	if done.Summary != nil {
		t.Error("Summary should be nil on a failed job")
	}
}

func TestWorker_JobTimeout(t *testing.T) {
	extractor := &stubExtractor{
		strategy: models.StrategyHTTP,
		doc:      sampleDoc(),
		block:    make(chan struct{}), // never closed, honors ctx
	}
	cfg := fastConfig()
	cfg.Concurrency = 1
	cfg.JobTimeout = 50 * time.Millisecond
	f := newWorkerFixture(t, extractor, cfg)
	job := seedQueuedJob(t, f.jobRepo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.worker.Start(ctx)
	defer f.worker.Stop()

	done := waitForStatus(t, f.jobRepo, job.ID, models.JobStatusFailed)

	if done.Error == nil {
		t.Fatal("Error should be set on a timed-out job")
	}
	if done.Error.Kind != models.ErrKindTimeout {
		t.Errorf("Error.Kind = %q, want %q", done.Error.Kind, models.ErrKindTimeout)
	}
}

func TestWorker_CancelMidRun(t *testing.T) {
	extractor := &stubExtractor{
		strategy: models.StrategyHTTP,
		doc:      sampleDoc(),
		block:    make(chan struct{}),
	}
	cfg := fastConfig()
	cfg.Concurrency = 1
	f := newWorkerFixture(t, extractor, cfg)
	job := seedQueuedJob(t, f.jobRepo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.worker.Start(ctx)
	defer f.worker.Stop()

	waitForStatus(t, f.jobRepo, job.ID, models.JobStatusRunning)
	// Give the claimer a beat to register the cancel hook.
	time.Sleep(20 * time.Millisecond)

	if _, err := f.jobs.Cancel(ctx, job.ID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	done := waitForStatus(t, f.jobRepo, job.ID, models.JobStatusCancelled)
	if done.FinishedAt == nil {
		t.Error("FinishedAt should be set on a cancelled job")
	}

	count, err := f.chunks.CountByClient(ctx, job.ClientID)
	if err != nil {
		t.Fatalf("CountByClient() error = %v", err)
	}
	if count != 0 {
		t.Errorf("indexed %d chunks after cancellation, want 0", count)
	}
}

func TestWorker_IdleWhenQueueEmpty(t *testing.T) {
	extractor := &stubExtractor{strategy: models.StrategyHTTP, doc: sampleDoc()}
	f := newWorkerFixture(t, extractor, fastConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.worker.Start(ctx)

	time.Sleep(50 * time.Millisecond)
	f.worker.Stop()

	extractor.mu.Lock()
	calls := extractor.calls
	extractor.mu.Unlock()
	if calls != 0 {
		t.Errorf("extractor called %d times with an empty queue, want 0", calls)
	}
}
