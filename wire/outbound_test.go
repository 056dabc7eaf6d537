package wire

import (
	"testing"
	"time"

	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestMessage_MarshalJSON(t *testing.T) {
	ts := strfmt.DateTime(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	msg := Message{
		Topic:     "plaza",
		Payload:   json.RawMessage(`{"content":"hi"}`),
		Sender:    "resident-7",
		Timestamp: ts,
	}

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	assert.Equal(t, "message", gjson.GetBytes(data, "type").String())
	assert.Equal(t, "plaza", gjson.GetBytes(data, "topic").String())
	assert.Equal(t, "hi", gjson.GetBytes(data, "payload.content").String())
	assert.Equal(t, "resident-7", gjson.GetBytes(data, "sender").String())
	assert.Equal(t, ts.String(), gjson.GetBytes(data, "timestamp").String())
}

func TestMessage_RoundTrip(t *testing.T) {
	orig := Message{
		Topic:     "agent:mayor:inbox",
		Payload:   json.RawMessage(`"plain string payload"`),
		Sender:    "clerk",
		Timestamp: strfmt.DateTime(time.Now().UTC().Truncate(time.Millisecond)),
	}

	data, err := json.Marshal(orig)
	require.NoError(t, err)

	var got Message
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, orig.Topic, got.Topic)
	assert.Equal(t, orig.Sender, got.Sender)
	assert.JSONEq(t, string(orig.Payload), string(got.Payload))
}

func TestMessage_UnmarshalRejectsWrongType(t *testing.T) {
	var msg Message
	err := json.Unmarshal([]byte(`{"type":"system","payload":{}}`), &msg)
	require.Error(t, err)
}

func TestError_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(Error{Message: "Permission denied: cannot publish to town_hall"})
	require.NoError(t, err)

	assert.Equal(t, "error", gjson.GetBytes(data, "type").String())
	assert.Contains(t, gjson.GetBytes(data, "payload.message").String(), "Permission denied")
}

func TestSystem_WelcomeEnvelope(t *testing.T) {
	data, err := json.Marshal(System{Payload: Welcome{Message: "Connected to Agora", ID: "k3j9xq2m"}})
	require.NoError(t, err)

	assert.Equal(t, "system", gjson.GetBytes(data, "type").String())
	assert.Equal(t, "k3j9xq2m", gjson.GetBytes(data, "payload.id").String())
}

func TestSystem_AckOmitsEmptyFields(t *testing.T) {
	data, err := json.Marshal(System{Payload: Ack{Status: StatusSubscribed, Topic: "plaza"}})
	require.NoError(t, err)

	assert.Equal(t, StatusSubscribed, gjson.GetBytes(data, "payload.status").String())
	assert.False(t, gjson.GetBytes(data, "payload.id").Exists())
	assert.False(t, gjson.GetBytes(data, "payload.message").Exists())
}

func TestNewStateUpdate(t *testing.T) {
	payload := NewStateUpdate(
		[]TopicInfo{{Name: "town_hall", Type: Public, Owner: "admin"}},
		[]AgentInfo{{ID: "resident-7", Subscriptions: []string{"town_hall"}}},
	)
	data, err := json.Marshal(System{Payload: payload})
	require.NoError(t, err)

	assert.Equal(t, "state_update", gjson.GetBytes(data, "payload.type").String())
	assert.Equal(t, "town_hall", gjson.GetBytes(data, "payload.topics.0.name").String())
	assert.Equal(t, "resident-7", gjson.GetBytes(data, "payload.agents.0.id").String())
}

func TestNewRecord(t *testing.T) {
	at := strfmt.DateTime(time.Now().UTC())

	rec := NewRecord(Publish{Topic: "plaza", Payload: []byte(`{"content":"x"}`)}, "resident-7", at)
	assert.Equal(t, TypePublish, rec.Type)
	assert.Equal(t, "plaza", rec.Topic)
	assert.Equal(t, "resident-7", rec.Sender)
	assert.JSONEq(t, `{"content":"x"}`, string(rec.Payload))

	rec = NewRecord(Identify{ID: "mayor", Key: "s3cret"}, "k3j9xq2m", at)
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Equal(t, "mayor", gjson.GetBytes(data, "payload.id").String())
	assert.NotContains(t, string(data), "s3cret", "secrets must never reach the log")
}
