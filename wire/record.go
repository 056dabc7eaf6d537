package wire

import (
	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
)

// Record is one line of the append-only event log: the inbound frame flattened
// out, with the sender corrected to the authenticated connection identity and
// a server-assigned timestamp. Records are appended for every inbound frame
// before it is acted on, so the log is a superset audit trail of attempted
// actions (denial outcomes are not recorded).
type Record struct {
	Type      string          `json:"type"`
	Topic     string          `json:"topic,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Sender    string          `json:"sender"`
	Timestamp strfmt.DateTime `json:"timestamp"`
}

// NewRecord flattens a decoded frame into a log record. Identity claims keep
// the claimed id in the payload but never the secret.
func NewRecord(f Frame, sender string, at strfmt.DateTime) Record {
	rec := Record{
		Type:      f.Kind(),
		Sender:    sender,
		Timestamp: at,
	}

	switch frame := f.(type) {
	case Identify:
		rec.Payload, _ = json.Marshal(map[string]string{"id": frame.ID})
	case CreateTopic:
		rec.Payload, _ = json.Marshal(map[string]string{
			"name": frame.Name,
			"type": string(frame.Visibility),
		})
	case AddPermission:
		rec.Topic = frame.Topic
		rec.Payload, _ = json.Marshal(map[string]string{"target": frame.Target})
	case Subscribe:
		rec.Topic = frame.Topic
	case Publish:
		rec.Topic = frame.Topic
		rec.Payload = json.RawMessage(frame.Payload)
	case GetState, GetHistory:
		// nothing beyond the type tag
	}
	return rec
}
