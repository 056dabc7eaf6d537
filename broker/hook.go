package broker

import (
	"context"
	"log/slog"
	"slices"

	"github.com/casualjim/agora/wire"
)

// Hook observes broker lifecycle and traffic. Hooks run on the dispatching
// goroutine, outside the registry and index locks; implementations must not
// block, or they will stall that participant's read loop.
//
// All methods must be implemented. This is deliberate: when the protocol
// grows a new observable event, every observer is forced to decide how to
// handle it at compile time instead of silently ignoring it.
type Hook interface {
	// OnConnect fires after a connection is attached, welcomed and
	// auto-subscribed, with its provisional identity.
	OnConnect(ctx context.Context, id string)

	// OnIdentify fires after a successful identity rewrite.
	OnIdentify(ctx context.Context, oldID, newID string)

	// OnPublish fires for every accepted publication, including internal
	// ones, after fan-out.
	OnPublish(ctx context.Context, msg wire.Message)

	// OnDisconnect fires once per connection after full cleanup.
	OnDisconnect(ctx context.Context, id string)
}

// NewCompositeHook combines multiple hooks into a single hook implementation.
func NewCompositeHook(hooks ...Hook) Hook {
	return CompositeHook(hooks)
}

// CompositeHook fans each observation out to its members in order.
type CompositeHook []Hook

func (c CompositeHook) OnConnect(ctx context.Context, id string) {
	for h := range slices.Values(c) {
		h.OnConnect(ctx, id)
	}
}

func (c CompositeHook) OnIdentify(ctx context.Context, oldID, newID string) {
	for h := range slices.Values(c) {
		h.OnIdentify(ctx, oldID, newID)
	}
}

func (c CompositeHook) OnPublish(ctx context.Context, msg wire.Message) {
	for h := range slices.Values(c) {
		h.OnPublish(ctx, msg)
	}
}

func (c CompositeHook) OnDisconnect(ctx context.Context, id string) {
	for h := range slices.Values(c) {
		h.OnDisconnect(ctx, id)
	}
}

// LoggingHook returns a hook that records every observation at debug level.
func LoggingHook() Hook {
	return loggingHook{}
}

type loggingHook struct{}

func (loggingHook) OnConnect(ctx context.Context, id string) {
	slog.DebugContext(ctx, "participant connected", slog.String("id", id))
}

func (loggingHook) OnIdentify(ctx context.Context, oldID, newID string) {
	slog.DebugContext(ctx, "participant identified",
		slog.String("old_id", oldID), slog.String("new_id", newID))
}

func (loggingHook) OnPublish(ctx context.Context, msg wire.Message) {
	slog.DebugContext(ctx, "publication",
		slog.String("topic", msg.Topic), slog.String("sender", msg.Sender))
}

func (loggingHook) OnDisconnect(ctx context.Context, id string) {
	slog.DebugContext(ctx, "participant disconnected", slog.String("id", id))
}
