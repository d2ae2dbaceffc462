package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/logging"
	"github.com/cloo-solutions/docqa/internal/telemetry"
	"github.com/cloo-solutions/docqa/internal/vector"
)

const (
	defaultIndexConcurrency = 4
	defaultIndexLockTTL     = 2 * time.Minute
	indexLockPollMin        = 50 * time.Millisecond
	indexLockPollMax        = time.Second
	indexLockExtendMin      = 10 * time.Millisecond
)

// ErrIndexLockTimeout is returned when another caller held the index lock for
// longer than the configured wait without finishing.
var ErrIndexLockTimeout = errors.New("timed out waiting for index lock")

// IndexerConfig configures an Indexer
type IndexerConfig struct {
	Dimensions    int           // expected vector length; <= 0 disables the check
	Concurrency   int           // parallel passages
	RatePerSecond float64       // embedding calls per second; <= 0 is unlimited
	LockTTL       time.Duration // lifetime of the per-document lock
	LockWait      time.Duration // how long to wait on a lock held elsewhere
}

// IndexReport describes the outcome of an indexing attempt
type IndexReport struct {
	DocumentID string `json:"documentId"`
	Passages   int    `json:"passages"`
	Embedded   int    `json:"embedded"`
	Failed     int    `json:"failed"`
	Skipped    bool   `json:"skipped"`
}

// Indexer lazily builds the embedding index of a document.
// Each passage yields a body embedding and a title embedding, and the whole
// document is written with a single Put.
type Indexer struct {
	store    EmbeddingStore
	embedder EmbeddingClient
	lock     IndexLock
	limiter  *rate.Limiter
	cfg      IndexerConfig
}

// NewIndexer creates a new Indexer. lock may be nil when a single process
// owns the store.
func NewIndexer(store EmbeddingStore, embedder EmbeddingClient, lock IndexLock, cfg IndexerConfig) *Indexer {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultIndexConcurrency
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaultIndexLockTTL
	}
	if cfg.LockWait <= 0 {
		cfg.LockWait = cfg.LockTTL
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Concurrency)
	}

	return &Indexer{
		store:    store,
		embedder: embedder,
		lock:     lock,
		limiter:  limiter,
		cfg:      cfg,
	}
}

// EnsureIndexed indexes the analysis unless the document already has
// embeddings. Per-passage embedding failures are logged and counted; they do
// not fail the call. A failed Put does.
func (ix *Indexer) EnsureIndexed(ctx context.Context, analysis *domain.Analysis) (*IndexReport, error) {
	if err := domain.ValidateAnalysis(analysis); err != nil {
		return nil, domain.ErrMissingRequiredField.Wrap(err)
	}
	documentID := analysis.DocumentID

	ctx, span := telemetry.StartSpan(ctx, "Indexer.EnsureIndexed", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "index",
	})
	defer span.End()

	report := &IndexReport{DocumentID: documentID, Passages: len(analysis.Passages)}

	exists, err := ix.store.Exists(ctx, documentID)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to check index: %w", err)
	}
	if exists {
		report.Skipped = true
		return report, nil
	}

	if ix.lock != nil {
		release, indexed, err := ix.acquire(ctx, documentID)
		if err != nil {
			span.SetError(err)
			return nil, err
		}
		if indexed {
			report.Skipped = true
			return report, nil
		}
		defer release()
	}

	if err := ix.build(ctx, analysis, report); err != nil {
		span.SetError(err)
		return nil, err
	}
	return report, nil
}

// acquire takes the per-document lock. When another caller holds it, it
// polls until the lock frees up or the document shows up as indexed.
func (ix *Indexer) acquire(ctx context.Context, documentID string) (release func(), indexed bool, err error) {
	name := "index:" + documentID
	logger := logging.From(ctx)
	deadline := time.Now().Add(ix.cfg.LockWait)
	wait := indexLockPollMin

	for {
		acquired, err := ix.lock.Acquire(ctx, name, ix.cfg.LockTTL)
		if err != nil {
			return nil, false, fmt.Errorf("failed to acquire index lock: %w", err)
		}
		if acquired {
			unlock := func() {
				// the build may have been cancelled; release must still go through
				if err := ix.lock.Release(context.WithoutCancel(ctx), name); err != nil {
					logger.Warn("failed to release index lock", "document_id", documentID, "error", err)
				}
			}
			// someone may have finished between our Exists and Acquire
			exists, err := ix.store.Exists(ctx, documentID)
			if err != nil {
				unlock()
				return nil, false, fmt.Errorf("failed to check index: %w", err)
			}
			if exists {
				unlock()
				return nil, true, nil
			}
			stop := ix.keepAlive(ctx, name)
			return func() {
				stop()
				unlock()
			}, false, nil
		}

		exists, err := ix.store.Exists(ctx, documentID)
		if err != nil {
			return nil, false, fmt.Errorf("failed to check index: %w", err)
		}
		if exists {
			return nil, true, nil
		}

		if time.Now().After(deadline) {
			return nil, false, ErrIndexLockTimeout
		}

		logger.Debug("index lock busy, waiting", "document_id", documentID, "wait", wait)
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
		if wait > indexLockPollMax {
			wait = indexLockPollMax
		}
	}
}

// keepAlive extends the held lock every third of its TTL until stop is
// called. Locks that cannot be extended are left to their TTL.
func (ix *Indexer) keepAlive(ctx context.Context, name string) (stop func()) {
	extender, ok := ix.lock.(IndexLockExtender)
	if !ok {
		return func() {}
	}

	interval := ix.cfg.LockTTL / 3
	if interval < indexLockExtendMin {
		interval = indexLockExtendMin
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := extender.Extend(ctx, name, ix.cfg.LockTTL); err != nil && ctx.Err() == nil {
					logging.From(ctx).Warn("failed to extend index lock", "lock", name, "error", err)
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

type passageVectors struct {
	body  []float32
	title []float32
	ok    bool
}

func (ix *Indexer) build(ctx context.Context, analysis *domain.Analysis, report *IndexReport) error {
	logger := logging.From(ctx).With("document_id", analysis.DocumentID)
	start := time.Now()

	vectors := make([]passageVectors, len(analysis.Passages))
	var failed atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.cfg.Concurrency)

	for i, p := range analysis.Passages {
		g.Go(func() error {
			body, err := ix.embed(gctx, p.Text)
			if err == nil {
				var title []float32
				title, err = ix.embed(gctx, domain.TitleVariantText(p))
				if err == nil {
					vectors[i] = passageVectors{body: body, title: title, ok: true}
					return nil
				}
			}
			if ctxErr := gctx.Err(); ctxErr != nil {
				return ctxErr
			}
			failed.Add(1)
			logger.Warn("skipping passage, embedding failed", "passage_id", p.ID, "error", err)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("indexing cancelled: %w", err)
	}

	batch := make([]*domain.PassageEmbedding, 0, 2*len(analysis.Passages))
	for i, p := range analysis.Passages {
		v := vectors[i]
		if !v.ok {
			continue
		}
		batch = append(batch,
			domain.NewPassageEmbedding(analysis.DocumentID, p, v.body),
			domain.NewTitleEmbedding(analysis.DocumentID, p, v.title),
		)
	}

	report.Failed = int(failed.Load())
	if len(batch) == 0 {
		if report.Passages > 0 {
			logger.Error("no passage could be embedded, document left unindexed", "failed", report.Failed)
			telemetry.CaptureMessage(ctx, "document left unindexed: every passage failed to embed")
		}
		return nil
	}

	if err := ix.store.Put(ctx, batch); err != nil {
		return fmt.Errorf("failed to store embeddings: %w", err)
	}
	report.Embedded = len(batch)

	logger.Info("document indexed",
		"passages", report.Passages,
		"embeddings", report.Embedded,
		"failed", report.Failed,
		"duration", time.Since(start),
	)
	return nil
}

func (ix *Indexer) embed(ctx context.Context, text string) ([]float32, error) {
	if err := ix.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	vec, err := ix.embedder.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, domain.ErrEmbeddingFailure.Wrap(err)
	}
	if err := vector.Validate(vec, ix.cfg.Dimensions); err != nil {
		return nil, domain.ErrMalformedVector.Wrap(err)
	}
	return vec, nil
}
