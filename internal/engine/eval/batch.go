package eval

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"trendlab/internal/engine"
)

// BarLoader materializes the full bar history for one symbol. Loading is a
// collaborator concern; the harness only consumes the result.
type BarLoader func(ctx context.Context, symbol string) ([]engine.Bar, error)

// SkippedRun records a symbol x variant unit that failed inside a batch.
type SkippedRun struct {
	Symbol  string `json:"symbol"`
	Variant string `json:"variant"`
	Reason  string `json:"reason"`
}

// BatchRequest fans one base request out over symbols and variants.
type BatchRequest struct {
	Base        Request
	Symbols     []string
	Variants    []string
	Concurrency int
}

// BatchResult collects everything a batch produced. Row ordering follows
// (symbol, variant) request order regardless of completion order.
type BatchResult struct {
	Rows      []SummaryRow
	Artifacts []*RunArtifact
	Skipped   []SkippedRun
}

// EvaluateBatch runs every symbol x variant unit concurrently. The shared
// base request is validated once up front; an invalid split, grid or
// objective fails the whole batch. After that, unit failures (loader errors,
// insufficient data) are recorded as skipped and never halt the batch, while
// context cancellation stops everything.
func EvaluateBatch(ctx context.Context, loader BarLoader, req BatchRequest) (*BatchResult, error) {
	symbols := req.Symbols
	if len(symbols) == 0 {
		return nil, engine.NewConfigError("symbols", "at least one symbol is required")
	}
	if err := req.Base.validateShared(); err != nil {
		return nil, err
	}
	variants := req.Variants
	if len(variants) == 0 {
		variants = engine.DefaultVariants()
	}

	type unit struct {
		symbol  string
		variant string
	}
	units := make([]unit, 0, len(symbols)*len(variants))
	for _, s := range symbols {
		for _, v := range variants {
			units = append(units, unit{symbol: s, variant: v})
		}
	}

	artifacts := make([]*RunArtifact, len(units))
	skipped := make([]*SkippedRun, len(units))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	limit := req.Concurrency
	if limit <= 0 {
		limit = 4
	}
	g.SetLimit(limit)

	for i, u := range units {
		i, u := i, u
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			bars, err := loader(ctx, u.symbol)
			if err == nil && len(bars) == 0 {
				err = fmt.Errorf("no price data for %s", u.symbol)
			}
			var art *RunArtifact
			if err == nil {
				r := req.Base
				r.Symbol = u.symbol
				r.Variant = u.variant
				art, err = Evaluate(bars, r)
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				skipped[i] = &SkippedRun{Symbol: u.symbol, Variant: u.variant, Reason: err.Error()}
				return nil
			}
			artifacts[i] = art
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &BatchResult{}
	for i := range units {
		if skipped[i] != nil {
			res.Skipped = append(res.Skipped, *skipped[i])
			continue
		}
		res.Artifacts = append(res.Artifacts, artifacts[i])
		res.Rows = append(res.Rows, artifacts[i].Summary...)
	}
	return res, nil
}
