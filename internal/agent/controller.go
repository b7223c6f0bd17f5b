package agent

import (
	"context"
	"errors"
	"log/slog"
)

// DefaultMaxRounds bounds the number of completion rounds in one run.
const DefaultMaxRounds = 10

// Settings is the fixed configuration of a Controller.
type Settings struct {
	// Model is used when a request does not name one.
	Model string
	// SystemPrompt is prepended to the history on every round.
	SystemPrompt string
	// MaxRounds caps the completion rounds per run; <= 0 means DefaultMaxRounds.
	MaxRounds int
	// ToolsEveryRound offers tool schemas on every round instead of only the
	// first one. Off by default: once tool results are in the history the
	// model is expected to answer in text.
	ToolsEveryRound bool
}

// Request is one client-facing chat call.
type Request struct {
	// ChatID tags log lines; it is not sent upstream.
	ChatID   string
	Model    string
	Messages []Message
}

type Option func(*Controller)

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithBuffer sets the capacity of the event channel returned by Run.
func WithBuffer(n int) Option {
	return func(c *Controller) {
		if n >= 0 {
			c.buffer = n
		}
	}
}

// Controller drives rounds of stream, dispatch and repeat. It holds no
// per-run state and may be shared by concurrent requests.
type Controller struct {
	provider Provider
	registry *Registry
	settings Settings
	logger   *slog.Logger
	buffer   int
}

func NewController(p Provider, reg *Registry, s Settings, opts ...Option) *Controller {
	if s.MaxRounds <= 0 {
		s.MaxRounds = DefaultMaxRounds
	}
	c := &Controller{
		provider: p,
		registry: reg,
		settings: s,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type state int

const (
	stateStart state = iota
	stateStreaming
	stateDispatching
	stateDone
	stateError
)

// Run starts a chat run and returns its event stream. The channel is closed
// after a DoneEvent, or early when ctx is cancelled; in the latter case the
// upstream stream is released and no terminal event is sent.
func (c *Controller) Run(ctx context.Context, req Request) <-chan Event {
	out := make(chan Event, c.buffer)
	go func() {
		defer close(out)
		c.run(ctx, req, func(ev Event) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			select {
			case out <- ev:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()
	return out
}

func (c *Controller) run(ctx context.Context, req Request, emit EmitFunc) {
	model := req.Model
	if model == "" {
		model = c.settings.Model
	}
	log := c.logger.With("chat_id", req.ChatID, "model", model)

	history := append([]Message(nil), req.Messages...)
	var (
		st      = stateStart
		round   int
		calls   []ToolCall
		failure error
		err     error
	)

	for {
		switch st {
		case stateStart:
			if round >= c.settings.MaxRounds {
				failure = ErrMaxRounds
				st = stateError
				continue
			}
			round++
			st = stateStreaming

		case stateStreaming:
			var outcome Outcome
			outcome, calls, err = c.stream(ctx, model, round, history, emit)
			if err != nil {
				if ctx.Err() != nil {
					log.Info("chat cancelled", "round", round)
					return
				}
				failure = err
				st = stateError
				continue
			}
			log.Info("round finished", "round", round, "outcome", outcome.String(), "tool_calls", len(calls))
			switch outcome {
			case OutcomeToolCalls:
				st = stateDispatching
			case OutcomeContent:
				st = stateDone
			case OutcomeUnexpectedEnd:
				failure = ErrUnexpectedEnd
				st = stateError
			}

		case stateDispatching:
			history, err = Dispatch(ctx, c.registry, calls, history, emit)
			if err != nil {
				if ctx.Err() != nil {
					log.Info("chat cancelled", "round", round)
					return
				}
				failure = err
				st = stateError
				continue
			}
			st = stateStart

		case stateDone:
			_ = emit(DoneEvent{})
			return

		case stateError:
			log.Warn("chat failed", "round", round, "error", failure)
			if emit(ErrorEvent{Message: errorMessage(failure)}) != nil {
				return
			}
			_ = emit(DoneEvent{})
			return
		}
	}
}

func (c *Controller) stream(ctx context.Context, model string, round int, history []Message, emit EmitFunc) (Outcome, []ToolCall, error) {
	req := CompletionRequest{Model: model, Messages: c.outgoing(history)}
	if round == 1 || c.settings.ToolsEveryRound {
		req.Tools = c.registry.Definitions()
	}

	s, err := c.provider.Stream(ctx, req)
	if err != nil {
		return OutcomeUnexpectedEnd, nil, &ProtocolError{Err: err}
	}
	defer s.Close()

	r := NewReassembler()
	outcome, err := r.Consume(s, emit)
	if err != nil {
		return OutcomeUnexpectedEnd, nil, err
	}
	return outcome, r.Calls(), nil
}

func (c *Controller) outgoing(history []Message) []Message {
	msgs := make([]Message, 0, len(history)+1)
	if c.settings.SystemPrompt != "" {
		msgs = append(msgs, SystemMessage(c.settings.SystemPrompt))
	}
	return append(msgs, history...)
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, ErrMaxRounds):
		return "Maximum tool call iterations reached"
	case errors.Is(err, ErrUnexpectedEnd):
		return "The model response ended unexpectedly"
	default:
		return err.Error()
	}
}
