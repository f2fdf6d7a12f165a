package vector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/clienthubhq/clienthub-api/internal/models"
)

var (
	// ErrIndexUnavailable is returned once transient index failures have
	// exhausted their retry budget.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrNamespaceEmpty is returned when querying a client that has no
	// indexed chunks at all.
	ErrNamespaceEmpty = errors.New("no chunks indexed for client")
)

// Retry policy for transient embedding and storage failures.
const (
	retryAttempts  = 4
	retryBaseDelay = 250 * time.Millisecond

	// embedBatchSize caps how many texts go to the backend per request.
	embedBatchSize = 128

	// scoreTie is the window within which two similarity scores count as
	// equal, so float noise does not defeat the freshness tiebreak.
	scoreTie = 1e-9
)

// ChunkStore is the persistence surface the index needs. The chunk
// repository implements it.
type ChunkStore interface {
	// UpsertBatch writes all chunks atomically: either every row lands or
	// none do.
	UpsertBatch(ctx context.Context, chunks []models.Chunk) error
	ExistingIDs(ctx context.Context, clientID string, ids []string) (map[string]struct{}, error)
	ListByClient(ctx context.Context, clientID string) ([]models.Chunk, error)
	ListSourcesByClient(ctx context.Context, clientID string) ([]string, error)
	DeleteByClient(ctx context.Context, clientID string) (int64, error)
	DeleteByContentHash(ctx context.Context, clientID, contentHash string) (int64, error)
	CountByClient(ctx context.Context, clientID string) (int64, error)
}

// UpsertResult reports what an upsert did.
type UpsertResult struct {
	Indexed int
	Skipped int
}

// Index embeds chunks and serves similarity queries, one namespace per
// client. Writes to a namespace are serialized; reads are not blocked by
// writes to other namespaces.
type Index struct {
	embedder Embedder
	store    ChunkStore
	logger   *slog.Logger

	attempts  int
	baseDelay time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewIndex creates a vector index over the given embedder and store.
func NewIndex(embedder Embedder, store ChunkStore, logger *slog.Logger) *Index {
	return &Index{
		embedder:  embedder,
		store:     store,
		logger:    logger,
		attempts:  retryAttempts,
		baseDelay: retryBaseDelay,
		locks:     make(map[string]*sync.Mutex),
	}
}

// Upsert embeds and persists the chunks under the client's namespace. Chunks
// whose IDs are already present are skipped without re-embedding; identical
// content therefore indexes exactly once no matter how often it is submitted.
func (x *Index) Upsert(ctx context.Context, clientID string, chunks []models.Chunk) (UpsertResult, error) {
	if len(chunks) == 0 {
		return UpsertResult{}, nil
	}

	lock := x.clientLock(clientID)
	lock.Lock()
	defer lock.Unlock()

	deduped := dedupeByID(chunks)

	ids := make([]string, len(deduped))
	for i, c := range deduped {
		ids[i] = c.ID
	}

	var existing map[string]struct{}
	err := x.withRetry(ctx, "lookup existing chunks", func() error {
		var err error
		existing, err = x.store.ExistingIDs(ctx, clientID, ids)
		return err
	})
	if err != nil {
		return UpsertResult{}, err
	}

	fresh := make([]models.Chunk, 0, len(deduped))
	for _, c := range deduped {
		if _, ok := existing[c.ID]; ok {
			continue
		}
		fresh = append(fresh, c)
	}

	result := UpsertResult{Skipped: len(deduped) - len(fresh)}
	if len(fresh) == 0 {
		return result, nil
	}

	if err := x.embedAll(ctx, clientID, fresh); err != nil {
		return UpsertResult{}, err
	}

	err = x.withRetry(ctx, "persist chunks", func() error {
		return x.store.UpsertBatch(ctx, fresh)
	})
	if err != nil {
		return UpsertResult{}, err
	}

	result.Indexed = len(fresh)
	return result, nil
}

// Reindex replaces a document's chunks wholesale: every chunk is embedded
// fresh and chunks of the same content hash that the new split no longer
// produces are removed. Reprocess jobs use this instead of Upsert.
func (x *Index) Reindex(ctx context.Context, clientID, contentHash string, chunks []models.Chunk) (UpsertResult, error) {
	lock := x.clientLock(clientID)
	lock.Lock()
	defer lock.Unlock()

	deduped := dedupeByID(chunks)
	if err := x.embedAll(ctx, clientID, deduped); err != nil {
		return UpsertResult{}, err
	}

	// Nothing is deleted until every replacement embedding is in hand.
	err := x.withRetry(ctx, "drop stale chunks", func() error {
		_, err := x.store.DeleteByContentHash(ctx, clientID, contentHash)
		return err
	})
	if err != nil {
		return UpsertResult{}, err
	}

	if len(deduped) == 0 {
		return UpsertResult{}, nil
	}

	err = x.withRetry(ctx, "persist chunks", func() error {
		return x.store.UpsertBatch(ctx, deduped)
	})
	if err != nil {
		return UpsertResult{}, err
	}

	return UpsertResult{Indexed: len(deduped)}, nil
}

// embedAll embeds every chunk's text in place, batching backend requests and
// stamping the client ID.
func (x *Index) embedAll(ctx context.Context, clientID string, chunks []models.Chunk) error {
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		var vectors [][]float32
		err := x.withRetry(ctx, "embed chunks", func() error {
			var err error
			vectors, err = x.embedder.EmbedBatch(ctx, texts)
			return err
		})
		if err != nil {
			return err
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf("%w: embedder returned %d vectors for %d chunks", ErrIndexUnavailable, len(vectors), len(batch))
		}

		for i := range batch {
			chunks[start+i].ClientID = clientID
			chunks[start+i].Embedding = EncodeVector(vectors[i])
		}
	}
	return nil
}

// Query embeds the query text and returns the k most similar chunks, most
// similar first. Equal scores are broken by fetch recency, newest first.
// A client with nothing indexed yields ErrNamespaceEmpty.
func (x *Index) Query(ctx context.Context, clientID, query string, k int) ([]models.ScoredChunk, error) {
	if k <= 0 {
		k = 5
	}

	var total int64
	err := x.withRetry(ctx, "count chunks", func() error {
		var err error
		total, err = x.store.CountByClient(ctx, clientID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, ErrNamespaceEmpty
	}

	var queryVec []float32
	err = x.withRetry(ctx, "embed query", func() error {
		var err error
		queryVec, err = x.embedder.Embed(ctx, query)
		return err
	})
	if err != nil {
		return nil, err
	}

	var chunks []models.Chunk
	err = x.withRetry(ctx, "load chunks", func() error {
		var err error
		chunks, err = x.store.ListByClient(ctx, clientID)
		return err
	})
	if err != nil {
		return nil, err
	}

	scored := make([]models.ScoredChunk, 0, len(chunks))
	for _, chunk := range chunks {
		vec, err := DecodeVector(chunk.Embedding)
		if err != nil {
			x.logger.Warn("skipping chunk with bad embedding", "chunk_id", chunk.ID, "error", err)
			continue
		}
		chunk.Embedding = nil
		scored = append(scored, models.ScoredChunk{
			Chunk: chunk,
			Score: cosineSimilarity(queryVec, vec),
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		if diff := scored[i].Score - scored[j].Score; diff > scoreTie || diff < -scoreTie {
			return diff > 0
		}
		if !scored[i].Chunk.FetchedAt.Equal(scored[j].Chunk.FetchedAt) {
			return scored[i].Chunk.FetchedAt.After(scored[j].Chunk.FetchedAt)
		}
		return scored[i].Chunk.ID < scored[j].Chunk.ID
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// Purge removes every chunk in the client's namespace and returns how many
// rows were deleted.
func (x *Index) Purge(ctx context.Context, clientID string) (int64, error) {
	lock := x.clientLock(clientID)
	lock.Lock()
	defer lock.Unlock()

	var deleted int64
	err := x.withRetry(ctx, "purge namespace", func() error {
		var err error
		deleted, err = x.store.DeleteByClient(ctx, clientID)
		return err
	})
	return deleted, err
}

// Count returns the number of chunks indexed for the client.
func (x *Index) Count(ctx context.Context, clientID string) (int64, error) {
	var total int64
	err := x.withRetry(ctx, "count chunks", func() error {
		var err error
		total, err = x.store.CountByClient(ctx, clientID)
		return err
	})
	return total, err
}

// ListSources returns the distinct source URLs indexed for the client.
func (x *Index) ListSources(ctx context.Context, clientID string) ([]string, error) {
	var sources []string
	err := x.withRetry(ctx, "list sources", func() error {
		var err error
		sources, err = x.store.ListSourcesByClient(ctx, clientID)
		return err
	})
	return sources, err
}

// withRetry runs op with bounded exponential backoff and jitter. Exhausted
// retries surface as ErrIndexUnavailable; context cancellation is returned
// as-is so callers can tell the difference.
func (x *Index) withRetry(ctx context.Context, what string, op func() error) error {
	var lastErr error
	delay := x.baseDelay

	for attempt := 1; attempt <= x.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return lastErr
		}
		if attempt == x.attempts {
			break
		}

		x.logger.Warn("index operation failed, retrying",
			"op", what,
			"attempt", attempt,
			"error", lastErr,
		)

		// Jitter between 50% and 150% of the nominal delay.
		jittered := time.Duration(float64(delay) * (0.5 + rand.Float64()))
		select {
		case <-time.After(jittered):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
	}

	return fmt.Errorf("%w: %s failed after %d attempts: %v", ErrIndexUnavailable, what, x.attempts, lastErr)
}

func (x *Index) clientLock(clientID string) *sync.Mutex {
	x.mu.Lock()
	defer x.mu.Unlock()
	lock, ok := x.locks[clientID]
	if !ok {
		lock = &sync.Mutex{}
		x.locks[clientID] = lock
	}
	return lock
}

func dedupeByID(chunks []models.Chunk) []models.Chunk {
	seen := make(map[string]struct{}, len(chunks))
	out := make([]models.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}
