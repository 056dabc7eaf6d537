package wire

import (
	"fmt"

	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var (
	messageJSON = []byte(`{"type":"message"}`)
	errorJSON   = []byte(`{"type":"error"}`)
	systemJSON  = []byte(`{"type":"system"}`)
)

// Statuses reported inside system envelopes.
const (
	StatusIdentified       = "identified"
	StatusSubscribed       = "subscribed"
	StatusTopicCreated     = "topic_created"
	StatusPermissionAdded  = "permission_added"
	StatusPermissionDenied = "permission_denied"
	StatusError            = "error"
)

// Message is a fanned-out publication as delivered to a subscriber.
type Message struct {
	Topic     string          `json:"topic"`
	Payload   json.RawMessage `json:"payload"`
	Sender    string          `json:"sender"`
	Timestamp strfmt.DateTime `json:"timestamp"`
}

// MarshalJSON implements custom JSON marshaling for Message, keeping the
// payload bytes raw instead of re-encoding them.
func (m Message) MarshalJSON() ([]byte, error) {
	result := messageJSON

	var err error
	result, err = sjson.SetBytes(result, "topic", m.Topic)
	if err != nil {
		return nil, err
	}

	payload := m.Payload
	if len(payload) == 0 {
		payload = []byte("null")
	}
	result, err = sjson.SetRawBytes(result, "payload", payload)
	if err != nil {
		return nil, err
	}

	result, err = sjson.SetBytes(result, "sender", m.Sender)
	if err != nil {
		return nil, err
	}

	return sjson.SetBytes(result, "timestamp", m.Timestamp.String())
}

// UnmarshalJSON implements custom JSON unmarshaling for Message.
func (m *Message) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}

	msgType := gjson.GetBytes(data, "type")
	if !msgType.Exists() || msgType.String() != TypeMessage {
		return fmt.Errorf("missing or invalid type, expected %q", TypeMessage)
	}

	m.Topic = gjson.GetBytes(data, "topic").String()
	m.Sender = gjson.GetBytes(data, "sender").String()
	if payload := gjson.GetBytes(data, "payload"); payload.Exists() {
		m.Payload = json.RawMessage(payload.Raw)
	}
	if ts := gjson.GetBytes(data, "timestamp"); ts.Exists() {
		if err := m.Timestamp.UnmarshalText([]byte(ts.String())); err != nil {
			return fmt.Errorf("invalid timestamp: %w", err)
		}
	}
	return nil
}

// Error is the envelope used for permission denials and failed identity
// claims. The connection stays open after one is sent.
type Error struct {
	Message string `json:"message"`
}

// MarshalJSON implements custom JSON marshaling for Error.
func (e Error) MarshalJSON() ([]byte, error) {
	return sjson.SetBytes(errorJSON, "payload.message", e.Message)
}

// System wraps acks, the connection welcome and snapshot responses. The
// payload shape depends on which of the helper constructors produced it.
type System struct {
	Payload any `json:"payload"`
}

// MarshalJSON implements custom JSON marshaling for System.
func (s System) MarshalJSON() ([]byte, error) {
	payload, err := json.Marshal(s.Payload)
	if err != nil {
		return nil, err
	}
	return sjson.SetRawBytes(systemJSON, "payload", payload)
}

// Welcome is the system payload sent once per connection, carrying the
// server-assigned participant id.
type Welcome struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// Ack is the system payload acknowledging identify, subscribe, create_topic
// and add_permission frames. Status is always set; the remaining fields
// depend on the acknowledged frame.
type Ack struct {
	Status  string `json:"status"`
	Topic   string `json:"topic,omitempty"`
	ID      string `json:"id,omitempty"`
	Target  string `json:"target,omitempty"`
	Message string `json:"message,omitempty"`
}

// TopicInfo describes one topic in a state snapshot.
type TopicInfo struct {
	Name        string     `json:"name"`
	Type        Visibility `json:"type"`
	Owner       string     `json:"owner"`
	Description string     `json:"description,omitempty"`
}

// AgentInfo describes one connected participant in a state snapshot.
type AgentInfo struct {
	ID            string   `json:"id"`
	Subscriptions []string `json:"subscriptions"`
	Elevated      bool     `json:"elevated,omitempty"`
}

// StateUpdate is the system payload answering get_state.
type StateUpdate struct {
	Type   string      `json:"type"`
	Topics []TopicInfo `json:"topics"`
	Agents []AgentInfo `json:"agents"`
}

// History is the system payload answering get_history.
type History struct {
	Type    string   `json:"type"`
	Records []Record `json:"records"`
}

// NewStateUpdate builds a StateUpdate payload with its type marker set.
func NewStateUpdate(topics []TopicInfo, agents []AgentInfo) StateUpdate {
	return StateUpdate{Type: "state_update", Topics: topics, Agents: agents}
}

// NewHistory builds a History payload with its type marker set.
func NewHistory(records []Record) History {
	return History{Type: "history", Records: records}
}
