package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/fogfish/opts"
	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/casualjim/agora/eventlog"
	"github.com/casualjim/agora/internal/registry"
	"github.com/casualjim/agora/pkg/slogx"
	"github.com/casualjim/agora/pkg/uuidx"
	"github.com/casualjim/agora/wire"
)

// Defaults for a broker constructed without options.
const (
	DefaultAdminID           = "admin"
	DefaultAnnouncementTopic = "town_hall"
	DefaultCreationTopic     = "town:create_character"
	DefaultHistoryLimit      = 100
	DefaultQueueSize         = 50
)

// Broker is the router: it owns the topic registry, the subscription index
// and the event log, tracks connected participants, and dispatches every
// inbound frame. Construct one per listening endpoint with New.
type Broker struct {
	adminID           string
	adminSecret       string
	defaultTopic      string
	announcementTopic string
	creationTopic     string
	historyLimit      int
	queueSize         int

	registry *Registry
	index    *SubscriptionIndex
	log      *eventlog.Log
	sessions registry.Registry[*Participant]
	hook     Hook

	nextHandle atomic.Uint64
}

// Broker construction options.
var (
	// WithAdminID overrides the reserved admin identity name.
	WithAdminID = opts.ForName[Broker, string]("adminID")
	// WithAdminSecret sets the shared secret required to claim the admin
	// identity. Without one, admin claims are always denied.
	WithAdminSecret = opts.ForName[Broker, string]("adminSecret")
	// WithDefaultTopic sets the public topic every new connection is
	// auto-subscribed to.
	WithDefaultTopic = opts.ForName[Broker, string]("defaultTopic")
	// WithAnnouncementTopic sets the topic only the admin may publish to.
	WithAnnouncementTopic = opts.ForName[Broker, string]("announcementTopic")
	// WithCreationTopic sets the private character-creation topic seeded at
	// boot.
	WithCreationTopic = opts.ForName[Broker, string]("creationTopic")
	// WithHistoryLimit bounds how many log records a get_history may return.
	WithHistoryLimit = opts.ForName[Broker, int]("historyLimit")
	// WithQueueSize sets the per-connection outbound queue depth.
	WithQueueSize = opts.ForName[Broker, int]("queueSize")
)

// WithEventLog attaches a durable event log. Brokers default to an in-memory
// replay window only.
func WithEventLog(log *eventlog.Log) opts.Option[Broker] {
	return opts.Type[Broker](func(b *Broker) error {
		if log == nil {
			return errors.New("event log is required")
		}
		b.log = log
		return nil
	})
}

// WithHook attaches observers; repeated use accumulates.
func WithHook(hook Hook, extra ...Hook) opts.Option[Broker] {
	return opts.Type[Broker](func(b *Broker) error {
		hooks := append(CompositeHook{hook}, extra...)
		if prev, ok := b.hook.(CompositeHook); ok {
			b.hook = append(prev, hooks...)
		} else {
			b.hook = hooks
		}
		return nil
	})
}

// New constructs a broker and seeds the boot topics: the public announcement
// topic (owned by the admin identity) and the private character-creation
// topic.
func New(options ...opts.Option[Broker]) *Broker {
	b := &Broker{
		adminID:           DefaultAdminID,
		defaultTopic:      DefaultAnnouncementTopic,
		announcementTopic: DefaultAnnouncementTopic,
		creationTopic:     DefaultCreationTopic,
		historyLimit:      DefaultHistoryLimit,
		queueSize:         DefaultQueueSize,
		sessions:          registry.New[*Participant](),
		hook:              CompositeHook{},
	}
	if err := opts.Apply(b, options); err != nil {
		panic(err)
	}

	b.registry = NewRegistry(b.announcementTopic, b.adminID)
	b.index = NewSubscriptionIndex()
	if b.log == nil {
		b.log = eventlog.NewMemory(0)
	}

	b.registry.Create(b.announcementTopic, wire.Public, b.adminID, "Official announcements")
	b.registry.Create(b.creationTopic, wire.Private, b.adminID, "Character generation requests")

	return b
}

// AddHook appends an observer after construction, for hooks that need the
// broker itself (a service publishing through it). It must be called before
// the broker starts accepting connections.
func (b *Broker) AddHook(hook Hook) {
	if prev, ok := b.hook.(CompositeHook); ok {
		b.hook = append(prev, hook)
		return
	}
	b.hook = CompositeHook{b.hook, hook}
}

// Registry exposes the topic registry, mainly to services and tests.
func (b *Broker) Registry() *Registry { return b.registry }

// Index exposes the subscription index, mainly to tests.
func (b *Broker) Index() *SubscriptionIndex { return b.index }

// Log exposes the event log, mainly to tests.
func (b *Broker) Log() *eventlog.Log { return b.log }

// Attach takes ownership of a connection: it assigns a provisional random
// identity, auto-subscribes the participant to the default public topic,
// sends the welcome envelope, and starts the read and write loops. It returns
// once the session is live.
func (b *Broker) Attach(ctx context.Context, conn Conn) *Participant {
	handle := Handle(b.nextHandle.Add(1))
	p := newParticipant(handle, uuidx.NewToken(), conn, b.queueSize)

	b.sessions.Add(sessionKey(handle), p)
	b.index.Subscribe(b.defaultTopic, p)

	go p.writeLoop(b.evict)
	go b.readLoop(ctx, p)

	b.send(p, wire.System{Payload: wire.Welcome{
		Message: "Connected to Agora",
		ID:      p.ID(),
	}})

	b.hook.OnConnect(ctx, p.ID())
	return p
}

func sessionKey(h Handle) string {
	return strconv.FormatUint(uint64(h), 10)
}

func (b *Broker) readLoop(ctx context.Context, p *Participant) {
	defer b.evict(p)
	for {
		data, err := p.conn.ReadMessage()
		if err != nil {
			return
		}
		b.dispatch(ctx, p, data)
	}
}

// evict tears a session down: transport closed, subscriptions removed, the
// participant gone from subsequent state snapshots. Safe to call repeatedly
// and from any goroutine.
func (b *Broker) evict(p *Participant) {
	p.close()
	p.detach.Do(func() {
		id := p.ID()
		b.index.UnsubscribeAll(p.handle)
		b.sessions.Del(sessionKey(p.handle))
		b.hook.OnDisconnect(context.Background(), id)
	})
}

// Shutdown evicts every connected participant and closes the event log.
func (b *Broker) Shutdown(ctx context.Context) error {
	var live []*Participant
	b.sessions.ForEach(func(_ string, p *Participant) bool {
		live = append(live, p)
		return true
	})
	for _, p := range live {
		b.evict(p)
	}
	return b.log.Close()
}

// dispatch interprets one inbound frame. Every parseable frame is appended to
// the event log, with the sender overwritten by the connection's
// authenticated identity, before any side effect runs. A malformed frame is
// logged server-side and dropped; the connection stays open.
func (b *Broker) dispatch(ctx context.Context, p *Participant, data []byte) {
	now := strfmt.DateTime(time.Now().UTC())
	sender := p.ID()

	frame, err := wire.Decode(data)
	if err != nil {
		if errors.Is(err, wire.ErrUnknownType) {
			// still part of the audit trail, but never answered
			b.log.Append(wire.Record{
				Type:      gjson.GetBytes(data, "type").String(),
				Sender:    sender,
				Timestamp: now,
			})
			slog.Warn("unknown message type",
				slogx.Error(err), slog.String("sender", sender), slogx.LoggerName("broker"))
		} else {
			slog.Error("invalid message format",
				slogx.Error(err), slog.String("sender", sender), slogx.LoggerName("broker"))
		}
		return
	}

	b.log.Append(wire.NewRecord(frame, sender, now))

	switch f := frame.(type) {
	case wire.Identify:
		b.handleIdentify(ctx, p, f)
	case wire.CreateTopic:
		b.handleCreateTopic(p, f)
	case wire.AddPermission:
		b.handleAddPermission(p, f)
	case wire.Subscribe:
		b.handleSubscribe(p, f)
	case wire.Publish:
		b.handlePublish(ctx, p, f, now)
	case wire.GetState:
		b.handleGetState(p)
	case wire.GetHistory:
		b.handleGetHistory(p, f)
	}
}

func (b *Broker) handleIdentify(ctx context.Context, p *Participant, f wire.Identify) {
	elevated := false
	if f.ID == b.adminID {
		if b.adminSecret == "" || f.Key != b.adminSecret {
			b.send(p, wire.Error{Message: "Permission denied: invalid admin credentials"})
			return
		}
		elevated = true
	}

	oldID := p.ID()
	p.setIdentity(f.ID, elevated)
	b.send(p, wire.System{Payload: wire.Ack{Status: wire.StatusIdentified, ID: f.ID}})
	b.hook.OnIdentify(ctx, oldID, f.ID)
}

func (b *Broker) handleCreateTopic(p *Participant, f wire.CreateTopic) {
	b.registry.Create(f.Name, f.Visibility, p.ID(), f.Description)
	b.send(p, wire.System{Payload: wire.Ack{Status: wire.StatusTopicCreated, Topic: f.Name}})
}

func (b *Broker) handleAddPermission(p *Participant, f wire.AddPermission) {
	status := wire.StatusPermissionDenied
	if b.registry.Grant(f.Topic, p.ID(), f.Target) {
		status = wire.StatusPermissionAdded
	}
	b.send(p, wire.System{Payload: wire.Ack{Status: status, Topic: f.Topic, Target: f.Target}})
}

func (b *Broker) handleSubscribe(p *Participant, f wire.Subscribe) {
	// "*" is a pseudo-topic outside the registry; everything else is gated.
	if f.Topic != wire.Wildcard && !b.registry.CanSubscribe(f.Topic, p.ID()) {
		b.send(p, wire.System{Payload: wire.Ack{
			Status:  wire.StatusError,
			Topic:   f.Topic,
			Message: fmt.Sprintf("Permission denied: cannot subscribe to %s", f.Topic),
		}})
		return
	}

	b.index.Subscribe(f.Topic, p)
	b.send(p, wire.System{Payload: wire.Ack{Status: wire.StatusSubscribed, Topic: f.Topic}})
}

func (b *Broker) handlePublish(ctx context.Context, p *Participant, f wire.Publish, now strfmt.DateTime) {
	if !b.registry.CanPublish(f.Topic, p.ID(), p.Elevated()) {
		b.send(p, wire.Error{Message: fmt.Sprintf("Permission denied: cannot publish to %s", f.Topic)})
		return
	}
	b.fanout(ctx, wire.Message{
		Topic:     f.Topic,
		Payload:   json.RawMessage(f.Payload),
		Sender:    p.ID(),
		Timestamp: now,
	}, p.handle)
}

// Publish injects a publication from inside the process (services, seeding,
// heartbeats). It uses the same fan-out as the wire path but skips permission
// checks: internal senders are trusted.
func (b *Broker) Publish(ctx context.Context, topic string, payload []byte, sender string) {
	b.fanout(ctx, wire.Message{
		Topic:     topic,
		Payload:   json.RawMessage(payload),
		Sender:    sender,
		Timestamp: strfmt.DateTime(time.Now().UTC()),
	}, 0)
}

func (b *Broker) fanout(ctx context.Context, msg wire.Message, exclude Handle) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to encode publication", slogx.Error(err), slogx.LoggerName("broker"))
		return
	}

	for _, recipient := range b.index.Recipients(msg.Topic, exclude) {
		if !recipient.deliver(data) {
			// backpressure or dead transport: drop the consumer, not the rest
			slog.Warn("evicting slow or dead subscriber",
				slog.String("id", recipient.ID()), slog.String("topic", msg.Topic),
				slogx.LoggerName("broker"))
			b.evict(recipient)
		}
	}

	b.hook.OnPublish(ctx, msg)
}

func (b *Broker) handleGetState(p *Participant) {
	topics := b.registry.All()
	infos := make([]wire.TopicInfo, 0, len(topics))
	for _, topic := range topics {
		infos = append(infos, wire.TopicInfo{
			Name:        topic.Name,
			Type:        topic.Visibility,
			Owner:       topic.Owner,
			Description: topic.Description,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })

	var agents []wire.AgentInfo
	b.sessions.ForEach(func(_ string, sess *Participant) bool {
		subs := b.index.TopicsFor(sess.handle)
		sort.Strings(subs)
		agents = append(agents, wire.AgentInfo{
			ID:            sess.ID(),
			Subscriptions: subs,
			Elevated:      sess.Elevated(),
		})
		return true
	})
	sort.Slice(agents, func(i, j int) bool { return agents[i].ID < agents[j].ID })

	b.send(p, wire.System{Payload: wire.NewStateUpdate(infos, agents)})
}

func (b *Broker) handleGetHistory(p *Participant, f wire.GetHistory) {
	limit := f.Limit
	if limit <= 0 || limit > b.historyLimit {
		limit = b.historyLimit
	}
	b.send(p, wire.System{Payload: wire.NewHistory(b.log.Tail(limit))})
}

func (b *Broker) send(p *Participant, envelope any) {
	data, err := json.Marshal(envelope)
	if err != nil {
		slog.Error("failed to encode envelope", slogx.Error(err), slogx.LoggerName("broker"))
		return
	}
	if !p.deliver(data) {
		b.evict(p)
	}
}
