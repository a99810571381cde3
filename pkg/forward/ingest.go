package forward

import (
	"context"
	"errors"
	"time"

	"github.com/tinyland-inc/forwardbot/pkg/logger"
	"github.com/tinyland-inc/forwardbot/pkg/rules"
)

const defaultSendTimeout = 15 * time.Second

// RuleSource is the read side of the rule store.
type RuleSource interface {
	RulesFor(source string) []rules.Rule
}

// Result is the outcome of one matched rule.
type Result struct {
	Rule   rules.Rule
	Action Action
	Err    error
}

// Outcome summarizes one Handle call.
type Outcome struct {
	Message   InboundMessage
	Malformed bool
	Results   []Result
}

// Failed returns the send errors of the outcome.
func (o Outcome) Failed() []error {
	var errs []error
	for _, r := range o.Results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errs
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithPolicy sets the dispatch policy.
func WithPolicy(p Policy) HandlerOption {
	return func(h *Handler) { h.policy = p }
}

// WithSendTimeout bounds each individual outbound send. Zero disables the bound.
func WithSendTimeout(d time.Duration) HandlerOption {
	return func(h *Handler) { h.sendTimeout = d }
}

// WithStats records outcomes into s.
func WithStats(s *Stats) HandlerOption {
	return func(h *Handler) { h.stats = s }
}

// Handler runs the ingestion path for single events.
type Handler struct {
	rules       RuleSource
	sender      Sender
	policy      Policy
	sendTimeout time.Duration
	stats       *Stats
}

func NewHandler(src RuleSource, sender Sender, opts ...HandlerOption) *Handler {
	h := &Handler{
		rules:       src,
		sender:      sender,
		sendTimeout: defaultSendTimeout,
		stats:       &Stats{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Stats() *Stats { return h.stats }

// Handle decodes ev, matches it against the rules of its source and performs
// one action per matched rule in rule order. A failed send is recorded in the
// outcome and does not stop the remaining actions.
func (h *Handler) Handle(ctx context.Context, ev Event) Outcome {
	h.stats.events.Add(1)

	msg, err := ev.Decode()
	if err != nil {
		h.stats.malformed.Add(1)
		if !errors.Is(err, ErrMalformedEvent) {
			err = errors.Join(ErrMalformedEvent, err)
		}
		logger.WarnCF("forward", "Dropping malformed event", map[string]any{
			"error": err.Error(),
		})
		return Outcome{Malformed: true}
	}

	out := Outcome{Message: msg}
	matched := Matches(msg.Text, h.rules.RulesFor(msg.Source))
	if len(matched) == 0 {
		logger.DebugCF("forward", "No rules matched", map[string]any{
			"source":     msg.Source,
			"message_id": msg.MessageID,
		})
		return out
	}
	h.stats.matched.Add(uint64(len(matched)))

	out.Results = make([]Result, 0, len(matched))
	for _, rule := range matched {
		action := h.policy.Decide(rule, msg)
		res := Result{Rule: rule, Action: action}

		if action.Kind == ActionNone {
			h.stats.unsupported.Add(1)
			logger.WarnCF("forward", "Unhandled message kind", map[string]any{
				"source":      msg.Source,
				"destination": rule.Destination,
				"media":       msg.Media.String(),
				"message_id":  msg.MessageID,
			})
			out.Results = append(out.Results, res)
			continue
		}

		if err := h.send(ctx, action); err != nil {
			h.stats.failed.Add(1)
			res.Err = &SendError{Rule: rule, Action: action.Kind, Err: err}
			logger.ErrorCF("forward", "Outbound send failed", map[string]any{
				"source":      msg.Source,
				"destination": rule.Destination,
				"action":      action.Kind.String(),
				"error":       err.Error(),
			})
		} else {
			h.stats.sent.Add(1)
			logger.InfoCF("forward", "Message relayed", map[string]any{
				"source":      msg.Source,
				"destination": rule.Destination,
				"action":      action.Kind.String(),
				"keyword":     rule.Keyword,
			})
		}
		out.Results = append(out.Results, res)
	}
	return out
}

func (h *Handler) send(ctx context.Context, action Action) error {
	if h.sendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.sendTimeout)
		defer cancel()
	}
	return Execute(ctx, h.sender, action)
}
