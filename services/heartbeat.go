package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/fogfish/opts"
	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"

	"github.com/casualjim/agora/pkg/slogx"
)

const (
	// DefaultStatusTopic is where liveness beats land. Dashboards subscribe to
	// it; the timeline mutes it.
	DefaultStatusTopic = "system:status"

	DefaultHeartbeatInterval = 30 * time.Second

	heartbeatSender = "system"
)

// Heartbeat construction options.
var (
	// WithStatusTopic overrides the topic beats are published to.
	WithStatusTopic = opts.ForName[Heartbeat, string]("topic")
	// WithInterval sets the beat period.
	WithInterval = opts.ForName[Heartbeat, time.Duration]("interval")
)

type beat struct {
	Status    string          `json:"status"`
	UptimeSec int64           `json:"uptime_seconds"`
	Timestamp strfmt.DateTime `json:"timestamp"`
}

// Heartbeat periodically publishes a liveness beat so agents can tell a quiet
// town from a dead one.
type Heartbeat struct {
	pub      Publisher
	topic    string
	interval time.Duration
}

// NewHeartbeat builds a heartbeat publishing through pub.
func NewHeartbeat(pub Publisher, options ...opts.Option[Heartbeat]) *Heartbeat {
	hb := &Heartbeat{
		pub:      pub,
		topic:    DefaultStatusTopic,
		interval: DefaultHeartbeatInterval,
	}
	if err := opts.Apply(hb, options); err != nil {
		panic(err)
	}
	return hb
}

// Run beats until the context is canceled. It publishes once immediately so a
// freshly booted town announces itself without waiting out a full interval.
func (hb *Heartbeat) Run(ctx context.Context) {
	started := time.Now()
	ticker := time.NewTicker(hb.interval)
	defer ticker.Stop()

	hb.beat(ctx, started)
	for {
		select {
		case <-ticker.C:
			hb.beat(ctx, started)
		case <-ctx.Done():
			return
		}
	}
}

func (hb *Heartbeat) beat(ctx context.Context, started time.Time) {
	payload, err := json.Marshal(beat{
		Status:    "alive",
		UptimeSec: int64(time.Since(started).Seconds()),
		Timestamp: strfmt.DateTime(time.Now().UTC()),
	})
	if err != nil {
		slog.Warn("skipping beat", slogx.Error(err), slogx.LoggerName("heartbeat"))
		return
	}
	hb.pub.Publish(ctx, hb.topic, payload, heartbeatSender)
}
