// Package rescan re-ingests collections when a message on the rescan
// topic announces that their source data changed.
package rescan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/rastac/rastac/internal/catalog"
	"github.com/rastac/rastac/internal/ingest"
	"github.com/rastac/rastac/internal/observability"
	"github.com/rastac/rastac/internal/query"
)

// Event names a collection whose source grouping must be re-scanned.
type Event struct {
	Collection string `json:"collection"`
}

// Processor re-enumerates one collection's entries, extracts them and
// atomically swaps the stored collection, then drops its cached query
// results.
type Processor struct {
	pipeline *ingest.Pipeline
	source   ingest.Source
	store    catalog.Store
	engine   *query.Engine
	log      zerolog.Logger
}

func NewProcessor(p *ingest.Pipeline, src ingest.Source, store catalog.Store, engine *query.Engine, log zerolog.Logger) *Processor {
	return &Processor{pipeline: p, source: src, store: store, engine: engine, log: log}
}

// Process handles one event payload. Readers keep seeing the old
// collection until the swap commits.
func (p *Processor) Process(ctx context.Context, payload []byte) error {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("decode rescan event: %w", err)
	}
	if ev.Collection == "" {
		return errors.New("rescan event has no collection")
	}

	items, err := p.pipeline.CollectGroup(ctx, p.source, ev.Collection)
	if err != nil {
		return fmt.Errorf("collect %s: %w", ev.Collection, err)
	}
	if err := p.store.ReplaceCollection(ctx, ev.Collection, items); err != nil {
		return fmt.Errorf("replace %s: %w", ev.Collection, err)
	}
	p.engine.InvalidateCollection(ev.Collection)
	observability.SetCollectionSize(ev.Collection, len(items))
	p.log.Info().Str("collection", ev.Collection).Int("items", len(items)).
		Msg("collection re-scanned")
	return nil
}

// Consumer runs the processor against a Kafka consumer group.
type Consumer struct {
	group sarama.ConsumerGroup
	topic string
	proc  *Processor
	log   zerolog.Logger
}

func NewConsumer(brokers []string, groupID, topic string, proc *Processor, log zerolog.Logger) (*Consumer, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	cfg.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer group: %w", err)
	}
	return &Consumer{group: group, topic: topic, proc: proc, log: log}, nil
}

// Run consumes until the context is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	h := &groupHandler{proc: c.proc, log: c.log}
	for {
		if err := c.group.Consume(ctx, []string{c.topic}, h); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			c.log.Error().Err(err).Msg("consume error")
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *Consumer) Close() error {
	return c.group.Close()
}

type groupHandler struct {
	proc *Processor
	log  zerolog.Logger
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		err := h.proc.Process(sess.Context(), msg.Value)
		observability.ObserveRescan(err)
		if err != nil {
			// poison messages are logged and skipped, not retried forever
			h.log.Error().Err(err).Int64("offset", msg.Offset).
				Msg("rescan event failed")
		}
		sess.MarkMessage(msg, "")
	}
	return nil
}
