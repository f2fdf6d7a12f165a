package vector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/clienthubhq/clienthub-api/internal/models"
)

// fakeEmbedder returns canned vectors per text, defaulting to a unit vector.
type fakeEmbedder struct {
	vectors map[string][]float32
	batches int
	fail    int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.batches++
	if f.fail > 0 {
		f.fail--
		return nil, errors.New("embedding backend down")
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if vec, ok := f.vectors[text]; ok {
			out[i] = vec
		} else {
			out[i] = []float32{1, 0}
		}
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int            { return 2 }
func (f *fakeEmbedder) Ping(context.Context) error { return nil }
func (f *fakeEmbedder) Close() error               { return nil }

// fakeStore keeps chunks in memory, keyed by client then chunk ID.
type fakeStore struct {
	data        map[string]map[string]models.Chunk
	upsertCalls int
	failUpserts int
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]map[string]models.Chunk)}
}

func (s *fakeStore) UpsertBatch(_ context.Context, chunks []models.Chunk) error {
	s.upsertCalls++
	if s.failUpserts > 0 {
		s.failUpserts--
		return errors.New("storage write failed")
	}
	for _, c := range chunks {
		ns, ok := s.data[c.ClientID]
		if !ok {
			ns = make(map[string]models.Chunk)
			s.data[c.ClientID] = ns
		}
		ns[c.ID] = c
	}
	return nil
}

func (s *fakeStore) ExistingIDs(_ context.Context, clientID string, ids []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	ns := s.data[clientID]
	for _, id := range ids {
		if _, ok := ns[id]; ok {
			existing[id] = struct{}{}
		}
	}
	return existing, nil
}

func (s *fakeStore) ListByClient(_ context.Context, clientID string) ([]models.Chunk, error) {
	var out []models.Chunk
	for _, c := range s.data[clientID] {
		out = append(out, c)
	}
	return out, nil
}

func (s *fakeStore) ListSourcesByClient(_ context.Context, clientID string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	for _, c := range s.data[clientID] {
		if _, ok := seen[c.SourceURL]; ok || c.SourceURL == "" {
			continue
		}
		seen[c.SourceURL] = struct{}{}
		out = append(out, c.SourceURL)
	}
	return out, nil
}

func (s *fakeStore) DeleteByClient(_ context.Context, clientID string) (int64, error) {
	n := int64(len(s.data[clientID]))
	delete(s.data, clientID)
	return n, nil
}

func (s *fakeStore) DeleteByContentHash(_ context.Context, clientID, contentHash string) (int64, error) {
	var n int64
	for id, c := range s.data[clientID] {
		if c.ContentHash == contentHash {
			delete(s.data[clientID], id)
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) CountByClient(_ context.Context, clientID string) (int64, error) {
	return int64(len(s.data[clientID])), nil
}

func newTestIndex(embedder Embedder, store ChunkStore) *Index {
	idx := NewIndex(embedder, store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	idx.baseDelay = time.Millisecond
	return idx
}

func testChunks(n int) []models.Chunk {
	chunks := make([]models.Chunk, n)
	for i := range chunks {
		chunks[i] = models.Chunk{
			ID:          fmt.Sprintf("chunk-%d", i),
			ContentHash: "hash",
			Offset:      i * 800,
			Text:        fmt.Sprintf("chunk text %d", i),
			FetchedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		}
	}
	return chunks
}

func TestUpsert_Idempotent(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := newFakeStore()
	idx := newTestIndex(embedder, store)

	chunks := testChunks(3)

	first, err := idx.Upsert(context.Background(), "client-a", chunks)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if first.Indexed != 3 || first.Skipped != 0 {
		t.Errorf("first upsert: got indexed=%d skipped=%d, want 3/0", first.Indexed, first.Skipped)
	}

	second, err := idx.Upsert(context.Background(), "client-a", chunks)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.Indexed != 0 || second.Skipped != 3 {
		t.Errorf("second upsert: got indexed=%d skipped=%d, want 0/3", second.Indexed, second.Skipped)
	}

	if embedder.batches != 1 {
		t.Errorf("expected 1 embedding batch, got %d", embedder.batches)
	}
	if got, _ := store.CountByClient(context.Background(), "client-a"); got != 3 {
		t.Errorf("expected 3 stored chunks, got %d", got)
	}
}

func TestUpsert_OnlyNewChunksEmbedded(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := newFakeStore()
	idx := newTestIndex(embedder, store)

	chunks := testChunks(2)
	if _, err := idx.Upsert(context.Background(), "client-a", chunks[:1]); err != nil {
		t.Fatalf("seed upsert: %v", err)
	}

	result, err := idx.Upsert(context.Background(), "client-a", chunks)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if result.Indexed != 1 || result.Skipped != 1 {
		t.Errorf("got indexed=%d skipped=%d, want 1/1", result.Indexed, result.Skipped)
	}
}

func TestUpsert_RetriesTransientFailures(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := newFakeStore()
	store.failUpserts = 2
	idx := newTestIndex(embedder, store)

	result, err := idx.Upsert(context.Background(), "client-a", testChunks(1))
	if err != nil {
		t.Fatalf("upsert should recover from transient failures: %v", err)
	}
	if result.Indexed != 1 {
		t.Errorf("expected 1 indexed chunk, got %d", result.Indexed)
	}
	if store.upsertCalls != 3 {
		t.Errorf("expected 3 write attempts, got %d", store.upsertCalls)
	}
}

func TestUpsert_IndexUnavailableAfterRetries(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := newFakeStore()
	store.failUpserts = 100
	idx := newTestIndex(embedder, store)

	_, err := idx.Upsert(context.Background(), "client-a", testChunks(1))
	if !errors.Is(err, ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable, got %v", err)
	}
	if store.upsertCalls != retryAttempts {
		t.Errorf("expected %d attempts, got %d", retryAttempts, store.upsertCalls)
	}
}

func TestUpsert_CancelledContext(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := newFakeStore()
	idx := newTestIndex(embedder, store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := idx.Upsert(ctx, "client-a", testChunks(2))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got, _ := store.CountByClient(context.Background(), "client-a"); got != 0 {
		t.Errorf("expected no chunks persisted after cancel, got %d", got)
	}
}

func TestReindex_ReplacesDocumentChunks(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := newFakeStore()
	idx := newTestIndex(embedder, store)

	if _, err := idx.Upsert(context.Background(), "client-a", testChunks(3)); err != nil {
		t.Fatalf("seed upsert: %v", err)
	}
	if embedder.batches != 1 {
		t.Fatalf("expected 1 embedding batch after seed, got %d", embedder.batches)
	}

	// A different split of the same document: two chunks instead of three.
	replacement := []models.Chunk{
		{ID: "r1", ContentHash: "hash", Offset: 0, Text: "first half"},
		{ID: "r2", ContentHash: "hash", Offset: 1500, Text: "second half"},
	}
	result, err := idx.Reindex(context.Background(), "client-a", "hash", replacement)
	if err != nil {
		t.Fatalf("reindex: %v", err)
	}
	if result.Indexed != 2 {
		t.Errorf("expected 2 indexed, got %d", result.Indexed)
	}
	if embedder.batches != 2 {
		t.Errorf("reindex must embed fresh, got %d total batches", embedder.batches)
	}

	if got, _ := store.CountByClient(context.Background(), "client-a"); got != 2 {
		t.Errorf("expected old chunks replaced, count = %d, want 2", got)
	}
}

func TestReindex_SameSplitReembeds(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := newFakeStore()
	idx := newTestIndex(embedder, store)

	chunks := testChunks(2)
	if _, err := idx.Upsert(context.Background(), "client-a", chunks); err != nil {
		t.Fatalf("seed upsert: %v", err)
	}

	// Identical chunk IDs still go back through the embedder, unlike Upsert.
	result, err := idx.Reindex(context.Background(), "client-a", "hash", chunks)
	if err != nil {
		t.Fatalf("reindex: %v", err)
	}
	if result.Indexed != 2 || result.Skipped != 0 {
		t.Errorf("got indexed=%d skipped=%d, want 2/0", result.Indexed, result.Skipped)
	}
	if embedder.batches != 2 {
		t.Errorf("expected 2 embedding batches, got %d", embedder.batches)
	}
}

func TestQuery_EmptyNamespace(t *testing.T) {
	idx := newTestIndex(&fakeEmbedder{}, newFakeStore())

	_, err := idx.Query(context.Background(), "client-a", "anything", 5)
	if !errors.Is(err, ErrNamespaceEmpty) {
		t.Fatalf("expected ErrNamespaceEmpty, got %v", err)
	}
}

func TestQuery_OrdersByScore(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"the query":  {1, 0},
		"exact":      {1, 0},
		"orthogonal": {0, 1},
		"diagonal":   {0.7, 0.7},
	}}
	store := newFakeStore()
	idx := newTestIndex(embedder, store)

	chunks := []models.Chunk{
		{ID: "c1", Text: "exact", FetchedAt: time.Now()},
		{ID: "c2", Text: "orthogonal", FetchedAt: time.Now()},
		{ID: "c3", Text: "diagonal", FetchedAt: time.Now()},
	}
	if _, err := idx.Upsert(context.Background(), "client-a", chunks); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	hits, err := idx.Query(context.Background(), "client-a", "the query", 5)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(hits))
	}

	wantOrder := []string{"c1", "c3", "c2"}
	for i, want := range wantOrder {
		if hits[i].Chunk.ID != want {
			t.Errorf("hit %d: expected %s, got %s", i, want, hits[i].Chunk.ID)
		}
	}
	if hits[0].Score < hits[1].Score || hits[1].Score < hits[2].Score {
		t.Errorf("scores not descending: %v, %v, %v", hits[0].Score, hits[1].Score, hits[2].Score)
	}
}

func TestQuery_EqualScoresPreferNewerFetch(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := newFakeStore()
	idx := newTestIndex(embedder, store)

	older := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	chunks := []models.Chunk{
		{ID: "old", Text: "same", FetchedAt: older},
		{ID: "new", Text: "same", FetchedAt: newer},
	}
	if _, err := idx.Upsert(context.Background(), "client-a", chunks); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	hits, err := idx.Query(context.Background(), "client-a", "same", 5)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if hits[0].Chunk.ID != "new" {
		t.Errorf("expected newer chunk first on tied scores, got %s", hits[0].Chunk.ID)
	}
}

func TestQuery_LimitsToK(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := newFakeStore()
	idx := newTestIndex(embedder, store)

	if _, err := idx.Upsert(context.Background(), "client-a", testChunks(6)); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	hits, err := idx.Query(context.Background(), "client-a", "q", 2)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(hits) != 2 {
		t.Errorf("expected 2 hits, got %d", len(hits))
	}
}

func TestNamespacesAreIsolated(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := newFakeStore()
	idx := newTestIndex(embedder, store)

	if _, err := idx.Upsert(context.Background(), "client-a", testChunks(2)); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if _, err := idx.Query(context.Background(), "client-b", "q", 5); !errors.Is(err, ErrNamespaceEmpty) {
		t.Errorf("expected ErrNamespaceEmpty for other client, got %v", err)
	}

	deleted, err := idx.Purge(context.Background(), "client-b")
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if deleted != 0 {
		t.Errorf("expected purge of empty namespace to delete 0, got %d", deleted)
	}
	if got, _ := idx.Count(context.Background(), "client-a"); got != 2 {
		t.Errorf("expected client-a untouched with 2 chunks, got %d", got)
	}
}

func TestPurge_RemovesNamespace(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := newFakeStore()
	idx := newTestIndex(embedder, store)

	if _, err := idx.Upsert(context.Background(), "client-a", testChunks(3)); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	deleted, err := idx.Purge(context.Background(), "client-a")
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if deleted != 3 {
		t.Errorf("expected 3 deleted, got %d", deleted)
	}
	if _, err := idx.Query(context.Background(), "client-a", "q", 5); !errors.Is(err, ErrNamespaceEmpty) {
		t.Errorf("expected ErrNamespaceEmpty after purge, got %v", err)
	}
}

func TestListSources(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := newFakeStore()
	idx := newTestIndex(embedder, store)

	chunks := []models.Chunk{
		{ID: "a1", Text: "one", SourceURL: "https://example.com/a"},
		{ID: "a2", Text: "two", SourceURL: "https://example.com/a"},
		{ID: "b1", Text: "three", SourceURL: "https://example.com/b"},
	}
	if _, err := idx.Upsert(context.Background(), "client-a", chunks); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	sources, err := idx.ListSources(context.Background(), "client-a")
	if err != nil {
		t.Fatalf("list sources: %v", err)
	}
	if len(sources) != 2 {
		t.Errorf("expected 2 distinct sources, got %v", sources)
	}
}
