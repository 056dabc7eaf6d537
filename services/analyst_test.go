package services

import (
	"context"
	"testing"
	"time"

	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/casualjim/agora/pkg/stdx"
	"github.com/casualjim/agora/wire"
)

func message(topic, sender, content string) wire.Message {
	payload := stdx.Must1(json.Marshal(map[string]string{"content": content}))
	return wire.Message{
		Topic:     topic,
		Payload:   payload,
		Sender:    sender,
		Timestamp: strfmt.DateTime(time.Now().UTC()),
	}
}

func TestAnalyst_RoutesDirective(t *testing.T) {
	pub := &fakePublisher{}
	a := NewAnalyst(pub)

	a.OnPublish(context.Background(),
		message("town_hall", "alice", "Morning everyone! >>> TO: agent:bob:inbox meet me at noon"))

	calls := pub.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, "agent:bob:inbox", calls[0].topic)
	assert.Equal(t, AnalystName, calls[0].sender)

	forwarded := gjson.ParseBytes(calls[0].payload)
	assert.Equal(t, "Morning everyone!  meet me at noon", forwarded.Get("content").String())
	assert.Equal(t, "alice", forwarded.Get("origin").String())
	assert.Equal(t, "town_hall", forwarded.Get("origin_topic").String())
}

func TestAnalyst_IgnoresPlainChatter(t *testing.T) {
	pub := &fakePublisher{}
	a := NewAnalyst(pub)

	a.OnPublish(context.Background(), message("town_hall", "alice", "just saying hi"))

	assert.Empty(t, pub.recorded())
}

func TestAnalyst_NeverRoutesItsOwnTraffic(t *testing.T) {
	pub := &fakePublisher{}
	a := NewAnalyst(pub, "system")

	a.OnPublish(context.Background(),
		message("agent:bob:inbox", AnalystName, ">>> TO: agent:carol:inbox relayed"))
	a.OnPublish(context.Background(),
		message("system:status", "system", ">>> TO: agent:carol:inbox beat"))

	assert.Empty(t, pub.recorded())
}

func TestAnalyst_SkipsSelfAddressedDirective(t *testing.T) {
	pub := &fakePublisher{}
	a := NewAnalyst(pub)

	a.OnPublish(context.Background(), message("plaza", "alice", ">>> TO: plaza echo"))

	assert.Empty(t, pub.recorded())
}

func TestAnalyst_DirectiveTopicCharset(t *testing.T) {
	pub := &fakePublisher{}
	a := NewAnalyst(pub)

	a.OnPublish(context.Background(),
		message("plaza", "alice", ">>> TO: ns.sub-topic_01:inbox payload here"))

	calls := pub.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, "ns.sub-topic_01:inbox", calls[0].topic)
}
