package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rastac/rastac/internal/catalog"
	"github.com/rastac/rastac/internal/extract"
	"github.com/rastac/rastac/internal/observability"
)

// Stats summarizes one ingestion run.
type Stats struct {
	Ingested int
	Skipped  int
	Failed   int
}

// Pipeline extracts metadata in parallel and writes items in lexical
// locator order, so a collection's item order is deterministic for a
// given data root.
type Pipeline struct {
	store   catalog.Store
	ex      extract.Extractor
	workers int
	log     zerolog.Logger
}

func NewPipeline(store catalog.Store, ex extract.Extractor, workers int, log zerolog.Logger) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{store: store, ex: ex, workers: workers, log: log}
}

type extracted struct {
	entry Entry
	md    extract.Metadata
	err   error
}

// Run ingests every grouped entry of the source into the store.
func (p *Pipeline) Run(ctx context.Context, src Source) (Stats, error) {
	entries, err := src.Entries(ctx)
	if err != nil {
		return Stats{}, err
	}
	results, err := p.extractAll(ctx, entries)
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	sizes := make(map[string]int)
	for _, r := range results {
		if r.err != nil {
			if errors.Is(r.err, extract.ErrUnreadable) {
				p.log.Warn().Str("locator", r.entry.Locator).Err(r.err).
					Msg("skipping unreadable entry")
				stats.Skipped++
				observability.IncSkipped()
				continue
			}
			return stats, r.err
		}
		item, err := catalog.NewItem(r.md.ID, r.entry.Group, r.md.Footprint,
			r.md.Properties, r.entry.Locator)
		if err != nil {
			// a bad entry never takes the batch down with it
			p.log.Warn().Str("locator", r.entry.Locator).Err(err).
				Msg("skipping invalid entry")
			stats.Skipped++
			observability.IncSkipped()
			continue
		}
		if err := p.store.AddItem(ctx, r.entry.Group, item); err != nil {
			if errors.Is(err, catalog.ErrDuplicateItem) {
				p.log.Warn().Str("locator", r.entry.Locator).Str("item", r.md.ID).
					Msg("duplicate item id, entry dropped")
				stats.Failed++
				observability.IncIngestFail()
				continue
			}
			return stats, fmt.Errorf("add %s: %w", r.entry.Locator, err)
		}
		stats.Ingested++
		sizes[r.entry.Group]++
		observability.IncIngested()
	}
	for g, n := range sizes {
		observability.SetCollectionSize(g, n)
	}
	p.log.Info().Int("ingested", stats.Ingested).Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).Msg("ingestion run complete")
	return stats, nil
}

// CollectGroup extracts the items of a single group without writing them.
// Used by the re-scan path to build the replacement set.
func (p *Pipeline) CollectGroup(ctx context.Context, src Source, group string) ([]catalog.Item, error) {
	entries, err := src.Entries(ctx)
	if err != nil {
		return nil, err
	}
	scoped := entries[:0:0]
	for _, e := range entries {
		if e.Group == group {
			scoped = append(scoped, e)
		}
	}
	results, err := p.extractAll(ctx, scoped)
	if err != nil {
		return nil, err
	}
	items := make([]catalog.Item, 0, len(results))
	for _, r := range results {
		if r.err != nil {
			if errors.Is(r.err, extract.ErrUnreadable) {
				p.log.Warn().Str("locator", r.entry.Locator).Err(r.err).
					Msg("skipping unreadable entry")
				observability.IncSkipped()
				continue
			}
			return nil, r.err
		}
		item, err := catalog.NewItem(r.md.ID, group, r.md.Footprint,
			r.md.Properties, r.entry.Locator)
		if err != nil {
			p.log.Warn().Str("locator", r.entry.Locator).Err(err).
				Msg("skipping invalid entry")
			observability.IncSkipped()
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// extractAll runs extraction with bounded parallelism and returns results
// in lexical locator order. Ungrouped entries are dropped.
func (p *Pipeline) extractAll(ctx context.Context, entries []Entry) ([]extracted, error) {
	grouped := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Group == "" {
			p.log.Debug().Str("locator", e.Locator).Msg("entry outside any group, ignored")
			continue
		}
		grouped = append(grouped, e)
	}
	sort.Slice(grouped, func(i, j int) bool {
		return grouped[i].Locator < grouped[j].Locator
	})

	results := make([]extracted, len(grouped))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, e := range grouped {
		i, e := i, e
		g.Go(func() error {
			md, err := p.ex.Extract(gctx, e.Locator)
			results[i] = extracted{entry: e, md: md, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
