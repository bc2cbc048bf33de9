package relay

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"relay/internal/constants"
	"relay/internal/logger"
	apperrors "relay/pkg/errors"
	"relay/pkg/logging"
	"relay/pkg/metrics"
	"relay/pkg/models"
	"relay/pkg/tracing"
)

const (
	messageStatusProcessed     = "processed"
	messageStatusDecodeFailed  = "decode_failed"
	messageStatusMappingFailed = "mapping_failed"
	messageStatusPanicked      = "panicked"
)

// Processor decodes and maps a batch into message groups. A message
// contributes a group only if every one of its sub-events mapped; otherwise
// it contributes nothing.
type Processor struct {
	decoder     *Decoder
	mapper      *Mapper
	concurrency int
	logger      logger.Logger
}

func NewProcessor(decoder *Decoder, mapper *Mapper, concurrency int, log logger.Logger) *Processor {
	if concurrency <= 0 {
		concurrency = constants.DefaultConcurrency
	}
	return &Processor{
		decoder:     decoder,
		mapper:      mapper,
		concurrency: concurrency,
		logger:      log,
	}
}

type processResult struct {
	group MessageGroup
	err   error
}

// Process returns groups in the input order of their messages, followed by
// the failures in the same order. Messages are handled concurrently.
func (p *Processor) Process(ctx context.Context, batch []models.InboundMessage) ([]MessageGroup, []ProcessingFailure) {
	ctx, span := tracing.GetTracer(constants.ServiceName).Start(ctx, "relay.process")
	defer span.End()
	span.SetAttributes(attribute.Int("batch.size", len(batch)))

	results := make([]processResult, len(batch))

	g := new(errgroup.Group)
	g.SetLimit(p.concurrency)
	for i := range batch {
		g.Go(func() error {
			group, err := p.processMessage(ctx, batch[i])
			results[i] = processResult{group: group, err: err}
			return nil
		})
	}
	_ = g.Wait()

	groups := make([]MessageGroup, 0, len(batch))
	var failures []ProcessingFailure
	for i, res := range results {
		if res.err != nil {
			failures = append(failures, ProcessingFailure{MessageID: batch[i].MessageID, Err: res.err})
			continue
		}
		groups = append(groups, res.group)
	}

	span.SetAttributes(
		attribute.Int("batch.groups", len(groups)),
		attribute.Int("batch.dropped", len(failures)),
	)
	return groups, failures
}

func (p *Processor) processMessage(ctx context.Context, msg models.InboundMessage) (group MessageGroup, err error) {
	ctx = logging.WithMessageID(ctx, msg.MessageID)
	ctx, span := tracing.GetTracer(constants.ServiceName).Start(ctx, "relay.process_message")
	span.SetAttributes(attribute.String("message.id", msg.MessageID))

	defer func() {
		if r := recover(); r != nil {
			err = apperrors.RecoverPanic(r)
			metrics.IncMessages(messageStatusPanicked)
			p.logger.ErrorwCtx(ctx, "Panic while processing message, dropping it", "error", err)
		}
		if err != nil {
			tracing.RecordError(span, err)
		}
		span.End()
	}()

	doc, err := p.decoder.Decode(msg)
	if err != nil {
		metrics.IncMessages(messageStatusDecodeFailed)
		p.logger.WarnwCtx(ctx, "Failed to decode message, dropping it", "error", err)
		return MessageGroup{}, err
	}

	events, err := p.mapDocument(doc)
	if err != nil {
		metrics.IncMessages(messageStatusMappingFailed)
		p.logger.WarnwCtx(ctx, "Failed to map message, dropping it",
			"device_id", doc.DeviceID,
			"error", err,
		)
		return MessageGroup{}, err
	}

	for _, ev := range events {
		metrics.IncEventsMapped(string(ev.Type))
	}
	metrics.IncMessages(messageStatusProcessed)
	p.logger.DebugwCtx(ctx, "Message mapped",
		"device_id", doc.DeviceID,
		"events", len(events),
	)

	return NewMessageGroup(msg.MessageID, events), nil
}

// mapDocument maps all new_process sub-events, then all network_connection
// sub-events, and stops at the first failure.
func (p *Processor) mapDocument(doc *Document) ([]models.CanonicalEvent, error) {
	events := make([]models.CanonicalEvent, 0, len(doc.Events.NewProcess)+len(doc.Events.NetworkConnection))

	collections := []struct {
		name string
		subs []SubEvent
	}{
		{name: string(models.EventTypeNewProcess), subs: doc.Events.NewProcess},
		{name: string(models.EventTypeNetworkConnection), subs: doc.Events.NetworkConnection},
	}

	for _, c := range collections {
		for i, sub := range c.subs {
			ev, err := p.mapper.Map(doc.DeviceID, sub)
			if err != nil {
				return nil, locate(err, c.name, i)
			}
			events = append(events, ev)
		}
	}
	return events, nil
}

func locate(err error, collection string, index int) error {
	var unknown *UnknownEventTypeError
	if errors.As(err, &unknown) {
		unknown.Collection = collection
		unknown.Index = index
		return unknown
	}
	return &MappingError{Collection: collection, Index: index, Err: err}
}
