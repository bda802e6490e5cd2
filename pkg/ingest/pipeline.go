package ingest

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"github.com/travigo/telemetria/pkg/broadcast"
	"github.com/travigo/telemetria/pkg/ctdf"
	"github.com/travigo/telemetria/pkg/ledger"
	"github.com/travigo/telemetria/pkg/telemetry"
	"github.com/travigo/telemetria/pkg/util"
)

const payloadPreviewLength = 120

// Pipeline turns raw reports into committed, broadcast telemetry events. Run
// is the only writer: one payload is processed to completion before the next
// is taken, which keeps commit order and broadcast order identical.
type Pipeline struct {
	Normalizer telemetry.Normalizer
	Ledger     *ledger.Ledger
	Hub        *broadcast.Hub
	Filter     *Filter

	stats pipelineCounters
}

type pipelineCounters struct {
	received        atomic.Uint64
	decodeErrors    atomic.Uint64
	invalid         atomic.Uint64
	filtered        atomic.Uint64
	committed       atomic.Uint64
	newEvents       atomic.Uint64
	persistFailures atomic.Uint64
}

type Stats struct {
	Received        uint64 `json:"received"`
	DecodeErrors    uint64 `json:"decode_errors"`
	Invalid         uint64 `json:"invalid"`
	Filtered        uint64 `json:"filtered"`
	Committed       uint64 `json:"committed"`
	NewEvents       uint64 `json:"new_events"`
	PersistFailures uint64 `json:"persist_failures"`
}

func NewPipeline(normalizer telemetry.Normalizer, history *ledger.Ledger, hub *broadcast.Hub) *Pipeline {
	return &Pipeline{
		Normalizer: normalizer,
		Ledger:     history,
		Hub:        hub,
	}
}

// Process validates, normalises, commits and broadcasts a single payload.
//
// Malformed reports return a *telemetry.DecodeError or
// *telemetry.ValidationError and leave the ledger untouched. A
// *ledger.PersistenceError is returned together with the committed event,
// which has still been broadcast.
func (p *Pipeline) Process(ctx context.Context, payload []byte) (ctdf.TelemetryEvent, error) {
	p.stats.received.Add(1)

	event, err := p.Normalizer.Parse(payload)
	if err != nil {
		var decodeError *telemetry.DecodeError
		if errors.As(err, &decodeError) {
			p.stats.decodeErrors.Add(1)
		} else {
			p.stats.invalid.Add(1)
		}

		return ctdf.TelemetryEvent{}, err
	}

	if p.Filter != nil {
		matched, err := p.Filter.Match(event)
		if err != nil {
			p.stats.filtered.Add(1)
			return ctdf.TelemetryEvent{}, errors.Join(ErrFiltered, err)
		}
		if !matched {
			p.stats.filtered.Add(1)
			return ctdf.TelemetryEvent{}, ErrFiltered
		}
	}

	committed, commitErr := p.Ledger.Commit(ctx, event)

	var persistenceError *ledger.PersistenceError
	if commitErr != nil && !errors.As(commitErr, &persistenceError) {
		return ctdf.TelemetryEvent{}, commitErr
	}
	if persistenceError != nil {
		p.stats.persistFailures.Add(1)
	}

	p.stats.committed.Add(1)
	if committed.IsNewEvent {
		p.stats.newEvents.Add(1)
	}

	if p.Hub != nil {
		p.Hub.Publish(committed)
	}

	return committed, commitErr
}

// Run consumes inbound until it is closed or ctx is done. Bad reports are
// logged and dropped; nothing here stops the loop. Sources acknowledge a report
// once it is queued on inbound, so when ctx is done whatever is still buffered
// is processed before Run returns. Stop the sources first.
func (p *Pipeline) Run(ctx context.Context, inbound <-chan []byte) {
	log.Info().Msg("Telemetry pipeline started")

	// a commit that has started always gets to persist
	work := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			drained := p.drain(work, inbound)
			log.Info().Int("drained", drained).Msg("Telemetry pipeline stopped")
			return
		case payload, ok := <-inbound:
			if !ok {
				log.Info().Msg("Telemetry inbound channel closed")
				return
			}

			p.handle(work, payload)
		}
	}
}

func (p *Pipeline) drain(ctx context.Context, inbound <-chan []byte) int {
	drained := 0

	for {
		select {
		case payload, ok := <-inbound:
			if !ok {
				return drained
			}

			p.handle(ctx, payload)
			drained++
		default:
			return drained
		}
	}
}

func (p *Pipeline) handle(ctx context.Context, payload []byte) {
	event, err := p.Process(ctx, payload)

	var decodeError *telemetry.DecodeError
	var validationError *telemetry.ValidationError
	var persistenceError *ledger.PersistenceError

	switch {
	case err == nil:
		log.Debug().
			Int64("vehicle", event.Vehicle.ID).
			Str("current_stop", event.Location.CurrentStop.ID.String()).
			Str("next_stop", event.Location.NextStop.ID.String()).
			Bool("novo_evento", event.IsNewEvent).
			Msg("Telemetry event broadcast")
	case errors.As(err, &decodeError):
		log.Warn().
			Err(err).
			Int("bytes", len(payload)).
			Str("preview", util.TrimString(string(payload), payloadPreviewLength)).
			Msg("Dropping undecodable telemetry report")
	case errors.As(err, &validationError):
		log.Warn().Str("field", validationError.Field).Str("reason", validationError.Reason).Msg("Dropping invalid telemetry report")
	case errors.Is(err, ErrFiltered):
		log.Debug().Err(err).Msg("Telemetry report filtered")
	case errors.As(err, &persistenceError):
		// already logged by the ledger, the event went out regardless
	default:
		log.Error().Err(err).Msg("Failed to process telemetry report")
	}
}

func (p *Pipeline) Stats() Stats {
	return Stats{
		Received:        p.stats.received.Load(),
		DecodeErrors:    p.stats.decodeErrors.Load(),
		Invalid:         p.stats.invalid.Load(),
		Filtered:        p.stats.filtered.Load(),
		Committed:       p.stats.committed.Load(),
		NewEvents:       p.stats.newEvents.Load(),
		PersistFailures: p.stats.persistFailures.Load(),
	}
}
