package scrape

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/clienthubhq/clienthub-api/internal/models"
)

// ErrUnknownStrategy is returned for strategy values outside the known set.
var ErrUnknownStrategy = errors.New("unknown scraping strategy")

// Selector routes a fetch to the right extractor. An explicit strategy runs
// exactly that extractor. Auto runs the escalation ladder: plain HTTP first,
// then headless rendering, then the automated browser, moving up a rung on a
// fetch failure or a low-content result.
type Selector struct {
	extractors map[models.Strategy]Extractor
	ladder     []models.Strategy
	logger     *slog.Logger
}

// NewSelector wires the three strategies into a selector. Extractors may be
// nil, which removes their rung from the ladder.
func NewSelector(httpEx, headless, automated Extractor, logger *slog.Logger) *Selector {
	s := &Selector{
		extractors: make(map[models.Strategy]Extractor),
		ladder:     []models.Strategy{models.StrategyHTTP, models.StrategyHeadless, models.StrategyBrowser},
		logger:     logger,
	}
	if httpEx != nil {
		s.extractors[models.StrategyHTTP] = httpEx
	}
	if headless != nil {
		s.extractors[models.StrategyHeadless] = headless
	}
	if automated != nil {
		s.extractors[models.StrategyBrowser] = automated
	}
	return s
}

// Extract fetches the URL with the requested strategy. For auto it walks the
// ladder; when every rung fails the last fetch error is returned, and when
// rungs only produced low-content documents the richest one is returned with
// its flag still set.
func (s *Selector) Extract(ctx context.Context, rawurl string, strategy models.Strategy, opts Options) (*models.ExtractedDocument, error) {
	rungs, err := s.resolve(strategy)
	if err != nil {
		return nil, err
	}

	var (
		lastErr error
		best    *models.ExtractedDocument
	)

	for _, ex := range rungs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		doc, err := ex.Extract(ctx, rawurl, opts)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			s.logger.Warn("extraction failed",
				"url", rawurl,
				"strategy", ex.Strategy(),
				"error", err,
			)
			continue
		}

		if !doc.LowContent {
			return doc, nil
		}
		if best == nil || len(doc.Text) > len(best.Text) {
			best = doc
		}
		s.logger.Info("low content result",
			"url", rawurl,
			"strategy", ex.Strategy(),
			"text_len", len(doc.Text),
		)
	}

	if best != nil {
		return best, nil
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("no extractor available for strategy %q", strategy)
}

// Close releases every registered extractor.
func (s *Selector) Close() error {
	var firstErr error
	for _, ex := range s.extractors {
		if err := ex.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// resolve maps a requested strategy onto the extractors to try, in order.
func (s *Selector) resolve(strategy models.Strategy) ([]Extractor, error) {
	if strategy == "" {
		strategy = models.StrategyAuto
	}
	if !strategy.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}

	if strategy == models.StrategyAuto {
		var rungs []Extractor
		for _, name := range s.ladder {
			if ex, ok := s.extractors[name]; ok {
				rungs = append(rungs, ex)
			}
		}
		if len(rungs) == 0 {
			return nil, errors.New("no extraction strategies configured")
		}
		return rungs, nil
	}

	ex, ok := s.extractors[strategy]
	if !ok {
		return nil, fmt.Errorf("strategy %q is not configured", strategy)
	}
	return []Extractor{ex}, nil
}
