package broker

import (
	"sync"

	"github.com/casualjim/agora/wire"
)

// SubscriptionIndex owns the bidirectional mapping between topics and
// connected participants, plus the wildcard subscriber set. The three views
// (topic → participants, handle → topic names, wildcard set) are kept
// mutually consistent under one lock; fan-out reads and identity rewrites are
// serialized by the same lock, so neither ever observes the other half-done.
type SubscriptionIndex struct {
	mu       sync.RWMutex
	topics   map[string]map[Handle]*Participant
	reverse  map[Handle]map[string]struct{}
	wildcard map[Handle]*Participant
}

func NewSubscriptionIndex() *SubscriptionIndex {
	return &SubscriptionIndex{
		topics:   make(map[string]map[Handle]*Participant),
		reverse:  make(map[Handle]map[string]struct{}),
		wildcard: make(map[Handle]*Participant),
	}
}

// Subscribe adds the participant to a topic's subscriber set, or to the
// wildcard set when topic is "*". The reverse index records the name either
// way.
func (s *SubscriptionIndex) Subscribe(topic string, p *Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if topic == wire.Wildcard {
		s.wildcard[p.handle] = p
	} else {
		set, ok := s.topics[topic]
		if !ok {
			set = make(map[Handle]*Participant)
			s.topics[topic] = set
		}
		set[p.handle] = p
	}

	names, ok := s.reverse[p.handle]
	if !ok {
		names = make(map[string]struct{})
		s.reverse[p.handle] = names
	}
	names[topic] = struct{}{}
}

// Unsubscribe removes the handle from one topic. Missing entries are a no-op.
func (s *SubscriptionIndex) Unsubscribe(topic string, h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsubscribeLocked(topic, h)
}

func (s *SubscriptionIndex) unsubscribeLocked(topic string, h Handle) {
	if topic == wire.Wildcard {
		delete(s.wildcard, h)
	} else if set, ok := s.topics[topic]; ok {
		delete(set, h)
		if len(set) == 0 {
			delete(s.topics, topic)
		}
	}
	if names, ok := s.reverse[h]; ok {
		delete(names, topic)
	}
}

// UnsubscribeAll removes the handle from every view. Called exactly once per
// connection, on transport close; it tolerates partially cleaned state.
func (s *SubscriptionIndex) UnsubscribeAll(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for topic := range s.reverse[h] {
		s.unsubscribeLocked(topic, h)
	}
	delete(s.reverse, h)
	delete(s.wildcard, h)
}

// Subscribers returns the participants subscribed to exactly this topic.
// Wildcard subscribers are not included; use Recipients for the fan-out set.
func (s *SubscriptionIndex) Subscribers(topic string) []*Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := s.topics[topic]
	out := make([]*Participant, 0, len(set))
	for _, p := range set {
		out = append(out, p)
	}
	return out
}

// WildcardSubscribers returns the participants subscribed to "*".
func (s *SubscriptionIndex) WildcardSubscribers() []*Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Participant, 0, len(s.wildcard))
	for _, p := range s.wildcard {
		out = append(out, p)
	}
	return out
}

// Recipients returns the full fan-out set for a publication: exact-topic
// subscribers united with wildcard subscribers, deduplicated by handle, with
// the sender excluded. Built under one read lock.
func (s *SubscriptionIndex) Recipients(topic string, exclude Handle) []*Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := s.topics[topic]
	out := make([]*Participant, 0, len(set)+len(s.wildcard))
	for h, p := range set {
		if h == exclude {
			continue
		}
		out = append(out, p)
	}
	for h, p := range s.wildcard {
		if h == exclude {
			continue
		}
		if _, dup := set[h]; dup {
			continue
		}
		out = append(out, p)
	}
	return out
}

// TopicsFor returns the topic names (including "*") the handle is subscribed
// to, for state snapshots.
func (s *SubscriptionIndex) TopicsFor(h Handle) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := s.reverse[h]
	out := make([]string, 0, len(names))
	for name := range names {
		out = append(out, name)
	}
	return out
}
