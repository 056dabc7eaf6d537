package wire

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// Frame type tags accepted from clients.
const (
	TypeIdentify      = "identify"
	TypeCreateTopic   = "create_topic"
	TypeAddPermission = "add_permission"
	TypeSubscribe     = "subscribe"
	TypePublish       = "publish"
	TypeGetState      = "get_state"
	TypeGetHistory    = "get_history"

	TypeSystem  = "system"
	TypeMessage = "message"
	TypeError   = "error"
)

// Wildcard is the reserved pseudo-topic that subscribes a participant to
// every publication regardless of topic.
const Wildcard = "*"

// ErrUnknownType marks a frame whose type tag is syntactically valid JSON but
// not part of the protocol. The broker logs these and drops them without
// answering the client.
var ErrUnknownType = errors.New("unknown frame type")

// Visibility controls who may subscribe to a topic.
type Visibility string

const (
	Public  Visibility = "public"
	Private Visibility = "private"
)

// Frame is the closed union of client-to-server messages.
type Frame interface {
	frame()
	// Kind returns the frame's wire type tag.
	Kind() string
}

// Identify claims an identity for the connection. When ID equals the reserved
// admin name, Key must match the broker's shared secret for the claim to be
// granted with elevation.
type Identify struct {
	ID  string
	Key string
}

func (Identify) frame()       {}
func (Identify) Kind() string { return TypeIdentify }

// CreateTopic registers a topic definition, overwriting any existing topic
// with the same name.
type CreateTopic struct {
	Name        string
	Visibility  Visibility
	Description string
}

func (CreateTopic) frame()       {}
func (CreateTopic) Kind() string { return TypeCreateTopic }

// AddPermission grants Target access to a private topic. Only the topic owner
// and the admin identity may grant.
type AddPermission struct {
	Topic  string
	Target string
}

func (AddPermission) frame()       {}
func (AddPermission) Kind() string { return TypeAddPermission }

// Subscribe joins the connection to a topic, or to the wildcard feed when
// Topic is "*".
type Subscribe struct {
	Topic string
}

func (Subscribe) frame()       {}
func (Subscribe) Kind() string { return TypeSubscribe }

// Publish sends an opaque JSON payload to a topic. The client-supplied sender
// field, if any, is discarded during decode.
type Publish struct {
	Topic   string
	Payload []byte
}

func (Publish) frame()       {}
func (Publish) Kind() string { return TypePublish }

// GetState requests a snapshot of all topics and connected participants.
type GetState struct{}

func (GetState) frame()       {}
func (GetState) Kind() string { return TypeGetState }

// GetHistory requests the most recent event log records. Limit <= 0 means the
// server default.
type GetHistory struct {
	Limit int
}

func (GetHistory) frame()       {}
func (GetHistory) Kind() string { return TypeGetHistory }

// Decode parses a raw frame into its concrete variant. It returns
// ErrUnknownType (wrapped) for valid JSON with an unrecognized tag, and a
// descriptive error for anything malformed.
func Decode(data []byte) (Frame, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid json: %s", data)
	}

	msgType := gjson.GetBytes(data, "type")
	if !msgType.Exists() {
		return nil, errors.New("missing required field 'type'")
	}

	switch msgType.String() {
	case TypeIdentify:
		return decodeIdentify(data)
	case TypeCreateTopic:
		return decodeCreateTopic(data)
	case TypeAddPermission:
		return decodeAddPermission(data)
	case TypeSubscribe:
		return decodeSubscribe(data)
	case TypePublish:
		return decodePublish(data)
	case TypeGetState:
		return GetState{}, nil
	case TypeGetHistory:
		limit := gjson.GetBytes(data, "payload.limit")
		return GetHistory{Limit: int(limit.Int())}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, msgType.String())
	}
}

func decodeIdentify(data []byte) (Identify, error) {
	id := gjson.GetBytes(data, "payload.id")
	if !id.Exists() || id.String() == "" {
		return Identify{}, errors.New("identify: missing required field 'payload.id'")
	}
	return Identify{
		ID:  id.String(),
		Key: gjson.GetBytes(data, "payload.key").String(),
	}, nil
}

func decodeCreateTopic(data []byte) (CreateTopic, error) {
	name := gjson.GetBytes(data, "payload.name")
	if !name.Exists() || name.String() == "" {
		return CreateTopic{}, errors.New("create_topic: missing required field 'payload.name'")
	}

	visibility := Public
	switch vis := gjson.GetBytes(data, "payload.type"); vis.String() {
	case "", string(Public):
	case string(Private):
		visibility = Private
	default:
		return CreateTopic{}, fmt.Errorf("create_topic: invalid visibility %q", vis.String())
	}

	return CreateTopic{
		Name:        name.String(),
		Visibility:  visibility,
		Description: gjson.GetBytes(data, "payload.description").String(),
	}, nil
}

func decodeAddPermission(data []byte) (AddPermission, error) {
	topic := gjson.GetBytes(data, "payload.topic")
	if !topic.Exists() || topic.String() == "" {
		return AddPermission{}, errors.New("add_permission: missing required field 'payload.topic'")
	}
	target := gjson.GetBytes(data, "payload.target")
	if !target.Exists() || target.String() == "" {
		return AddPermission{}, errors.New("add_permission: missing required field 'payload.target'")
	}
	return AddPermission{Topic: topic.String(), Target: target.String()}, nil
}

func decodeSubscribe(data []byte) (Subscribe, error) {
	topic := gjson.GetBytes(data, "topic")
	if !topic.Exists() || topic.String() == "" {
		return Subscribe{}, errors.New("subscribe: missing required field 'topic'")
	}
	return Subscribe{Topic: topic.String()}, nil
}

func decodePublish(data []byte) (Publish, error) {
	topic := gjson.GetBytes(data, "topic")
	if !topic.Exists() || topic.String() == "" {
		return Publish{}, errors.New("publish: missing required field 'topic'")
	}
	payload := gjson.GetBytes(data, "payload")
	if !payload.Exists() {
		return Publish{}, errors.New("publish: missing required field 'payload'")
	}
	return Publish{
		Topic:   topic.String(),
		Payload: []byte(payload.Raw),
	}, nil
}
