package services

import (
	"context"
	"sync"
)

type publication struct {
	topic   string
	payload []byte
	sender  string
}

// fakePublisher records publications so tests can assert what a service
// injected without standing up a broker.
type fakePublisher struct {
	mu    sync.Mutex
	calls []publication
}

func (f *fakePublisher) Publish(_ context.Context, topic string, payload []byte, sender string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, publication{topic: topic, payload: payload, sender: sender})
}

func (f *fakePublisher) recorded() []publication {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]publication(nil), f.calls...)
}
