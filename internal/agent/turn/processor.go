// Package turn runs one inbound message through the graph, persists it and
// sends the reply.
package turn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/chative-sales/server/internal/agent/graph"
	"github.com/chative-sales/server/internal/agent/model"
	errx "github.com/chative-sales/server/internal/core/error"
	"github.com/chative-sales/server/internal/delivery"
	"github.com/chative-sales/server/internal/metrics"
	logx "github.com/chative-sales/server/pkg/logger"
)

// TurnSaver persists the query and reply of a finished turn.
type TurnSaver interface {
	SaveTurn(ctx context.Context, conversationID, query string, reply *model.ComposedReply) error
}

type Processor struct {
	runner    graph.Runner
	saver     TurnSaver
	deliverer delivery.Deliverer
}

func NewProcessor(runner graph.Runner, saver TurnSaver, deliverer delivery.Deliverer) (*Processor, error) {
	if runner == nil {
		return nil, fmt.Errorf("graph runner is nil")
	}
	if saver == nil {
		return nil, fmt.Errorf("turn saver is nil")
	}
	if deliverer == nil {
		return nil, fmt.Errorf("deliverer is nil")
	}
	return &Processor{runner: runner, saver: saver, deliverer: deliverer}, nil
}

// Answer runs the turn and persists it without delivering. A nil reply means
// the turn stays silent.
func (p *Processor) Answer(ctx context.Context, in model.QueryInput) (*model.ComposedReply, error) {
	start := time.Now()
	log := p.logger(in)

	reply, err := p.invoke(ctx, log, in)
	if err == nil {
		err = p.save(ctx, log, in, reply)
	}
	p.observe(start, reply, err)
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// Job returns the asynchronous form of a turn. The graph runs once; if
// persisting fails the job can be run again and only the persistence and
// delivery steps repeat.
func (p *Processor) Job(in model.QueryInput) func(ctx context.Context) error {
	var (
		answered bool
		reply    *model.ComposedReply
	)
	log := p.logger(in)

	return func(ctx context.Context) error {
		start := time.Now()
		if !answered {
			r, err := p.invoke(ctx, log, in)
			if err != nil {
				p.observe(start, nil, err)
				return err
			}
			reply, answered = r, true
		}

		if err := p.save(ctx, log, in, reply); err != nil {
			p.observe(start, reply, err)
			return err
		}
		p.deliver(ctx, log, in, reply)
		p.observe(start, reply, nil)
		return nil
	}
}

// Handle runs a turn end to end: graph, persistence, then delivery.
// Delivery failures are logged and swallowed.
func (p *Processor) Handle(ctx context.Context, in model.QueryInput) error {
	return p.Job(in)(ctx)
}

func (p *Processor) logger(in model.QueryInput) zerolog.Logger {
	return logx.With("turn_id", uuid.NewString(), "conversation_id", in.ConversationID)
}

func (p *Processor) invoke(ctx context.Context, log zerolog.Logger, in model.QueryInput) (*model.ComposedReply, error) {
	reply, err := p.runner.Invoke(ctx, in)
	if err != nil {
		log.Error().Err(err).Msg("turn graph failed")
		return nil, err
	}
	if reply == nil {
		log.Info().Msg("turn produced no reply")
	}
	return reply, nil
}

func (p *Processor) save(ctx context.Context, log zerolog.Logger, in model.QueryInput, reply *model.ComposedReply) error {
	if err := p.saver.SaveTurn(ctx, in.ConversationID, in.Query, reply); err != nil {
		log.Error().Err(err).Msg("failed to persist turn")
		return errx.WrapStorage(err)
	}
	return nil
}

func (p *Processor) deliver(ctx context.Context, log zerolog.Logger, in model.QueryInput, reply *model.ComposedReply) {
	text := reply.Text()
	if text == "" {
		return
	}
	err := p.deliverer.Deliver(ctx, in.ConversationID, text)
	switch {
	case err == nil:
		log.Debug().Int("len", len(text)).Msg("reply delivered")
	case errors.Is(err, errx.ErrAuth):
		log.Error().Err(err).Msg("delivery rejected after re-authentication")
	default:
		log.Warn().Err(err).Msg("delivery failed")
	}
}

func (p *Processor) observe(start time.Time, reply *model.ComposedReply, err error) {
	metrics.TurnDuration.Observe(time.Since(start).Seconds())
	switch {
	case err != nil:
		metrics.TurnsTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
	case reply == nil:
		metrics.TurnsTotal.WithLabelValues(metrics.OutcomeSilent).Inc()
	default:
		metrics.TurnsTotal.WithLabelValues(metrics.OutcomeReplied).Inc()
	}
}
