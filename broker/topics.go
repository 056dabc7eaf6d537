package broker

import (
	"maps"
	"sync"

	"github.com/casualjim/agora/wire"
)

// Topic is a named channel definition together with its access-control state.
// The owner is always a member of AllowedSubscribers.
type Topic struct {
	Name               string
	Visibility         wire.Visibility
	Owner              string
	AllowedSubscribers map[string]struct{}
	Description        string
}

func (t Topic) allows(id string) bool {
	if id == t.Owner {
		return true
	}
	_, ok := t.AllowedSubscribers[id]
	return ok
}

// Registry owns topic definitions and answers the permission questions the
// dispatch loop asks. Permission is topic-scoped and additive only: there is
// no revocation, matching the one-way invitation model of private channels.
type Registry struct {
	mu     sync.RWMutex
	topics map[string]*Topic

	announcement string
	adminID      string
}

// NewRegistry creates a registry that restricts publishing on the named
// announcement topic to the elevated admin identity.
func NewRegistry(announcement, adminID string) *Registry {
	return &Registry{
		topics:       make(map[string]*Topic),
		announcement: announcement,
		adminID:      adminID,
	}
}

// Create registers a topic definition, replacing any existing topic with the
// same name. AllowedSubscribers starts as {owner}.
func (r *Registry) Create(name string, visibility wire.Visibility, owner, description string) Topic {
	topic := &Topic{
		Name:               name,
		Visibility:         visibility,
		Owner:              owner,
		AllowedSubscribers: map[string]struct{}{owner: {}},
		Description:        description,
	}

	r.mu.Lock()
	r.topics[name] = topic
	r.mu.Unlock()

	return topic.snapshot()
}

// Get returns a copy of the named topic.
func (r *Registry) Get(name string) (Topic, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	topic, ok := r.topics[name]
	if !ok {
		return Topic{}, false
	}
	return topic.snapshot(), true
}

// All returns copies of every registered topic, in unspecified order.
func (r *Registry) All() []Topic {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Topic, 0, len(r.topics))
	for _, topic := range r.topics {
		out = append(out, topic.snapshot())
	}
	return out
}

// Delete removes a topic definition. Topics are never deleted automatically;
// this exists for explicit operator use.
func (r *Registry) Delete(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.topics[name]; !ok {
		return false
	}
	delete(r.topics, name)
	return true
}

// CanSubscribe reports whether the participant may join the topic. Unknown
// topics cannot be subscribed to: private channels must be created before
// anyone can join them.
func (r *Registry) CanSubscribe(name, id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	topic, ok := r.topics[name]
	if !ok {
		return false
	}
	if topic.Visibility == wire.Public {
		return true
	}
	return topic.allows(id)
}

// CanPublish reports whether the participant may publish to the topic.
// Unknown topics are publishable by anyone (the permissive default lets
// conventions like ephemeral status channels work without registration).
// The announcement topic is reserved for the elevated admin identity.
func (r *Registry) CanPublish(name, id string, elevated bool) bool {
	if name == r.announcement && !(elevated && id == r.adminID) {
		return false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	topic, ok := r.topics[name]
	if !ok {
		return true
	}
	if topic.Visibility == wire.Public {
		return true
	}
	return topic.allows(id)
}

// Grant adds target to the topic's allowed subscribers. Only the topic owner
// and the admin identity may grant.
func (r *Registry) Grant(name, requester, target string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	topic, ok := r.topics[name]
	if !ok {
		return false
	}
	if requester != topic.Owner && requester != r.adminID {
		return false
	}
	topic.AllowedSubscribers[target] = struct{}{}
	return true
}

func (t *Topic) snapshot() Topic {
	out := *t
	out.AllowedSubscribers = maps.Clone(t.AllowedSubscribers)
	return out
}
