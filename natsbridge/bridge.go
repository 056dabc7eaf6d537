// Package natsbridge mirrors broker traffic onto a NATS server, so external
// tooling (dashboards, archivers, other towns) can tap the stream without
// holding a websocket into the broker.
package natsbridge

import (
	"context"
	"log/slog"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"github.com/casualjim/agora/pkg/slogx"
	"github.com/casualjim/agora/wire"
)

// SubjectPrefix roots every mirrored event in the NATS subject space.
const SubjectPrefix = "agora.events"

// Bridge is a broker hook that republishes every accepted publication to
// NATS at "agora.events.<topic>". Mirroring is best effort: a publish failure
// is logged and the broker-side delivery is unaffected.
type Bridge struct {
	nc *nats.Conn
}

// New wraps an established NATS connection.
func New(nc *nats.Conn) *Bridge {
	return &Bridge{nc: nc}
}

func (b *Bridge) OnConnect(context.Context, string)          {}
func (b *Bridge) OnIdentify(context.Context, string, string) {}
func (b *Bridge) OnDisconnect(context.Context, string)       {}

func (b *Bridge) OnPublish(_ context.Context, msg wire.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Warn("not mirroring message", slogx.Error(err), slogx.LoggerName("natsbridge"))
		return
	}
	if err := b.nc.Publish(Subject(msg.Topic), data); err != nil {
		slog.Warn("mirror publish failed",
			slogx.Error(err), slog.String("topic", msg.Topic), slogx.LoggerName("natsbridge"))
	}
}

// Close drains the connection so queued mirrors flush before shutdown.
func (b *Bridge) Close() error {
	return b.nc.Drain()
}

// Subject maps a broker topic onto the mirror subject space. Dots would
// splinter a topic into extra NATS tokens, so they are folded into
// underscores; colons pass through untouched.
func Subject(topic string) string {
	return SubjectPrefix + "." + strings.ReplaceAll(topic, ".", "_")
}
