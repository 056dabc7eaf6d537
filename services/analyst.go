package services

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/casualjim/agora/pkg/slogx"
	"github.com/casualjim/agora/wire"
)

// AnalystName is the sender identity the analyst forwards under, and the
// marker it uses to ignore its own traffic.
const AnalystName = "analyst"

// Agents address each other in prose; the directive is the routable part.
var directive = regexp.MustCompile(`>>> TO: ([a-zA-Z0-9_:.-]+)`)

type forwarded struct {
	Content     string `json:"content"`
	Origin      string `json:"origin"`
	OriginTopic string `json:"origin_topic"`
}

// Analyst watches every publication for routing directives of the form
// ">>> TO: <topic>" embedded in message content, strips them, and forwards
// the cleaned content to the addressed topic. This lets an agent speak in a
// public room and have a side channel delivered without opening one itself.
type Analyst struct {
	pub  Publisher
	skip map[string]struct{}
}

// NewAnalyst builds the directive router. Traffic sent by ignoreSenders (the
// analyst itself is always ignored) is never scanned, which keeps forwarded
// messages from being forwarded again.
func NewAnalyst(pub Publisher, ignoreSenders ...string) *Analyst {
	skip := map[string]struct{}{AnalystName: {}}
	for _, sender := range ignoreSenders {
		skip[sender] = struct{}{}
	}
	return &Analyst{pub: pub, skip: skip}
}

func (a *Analyst) OnConnect(context.Context, string)          {}
func (a *Analyst) OnIdentify(context.Context, string, string) {}
func (a *Analyst) OnDisconnect(context.Context, string)       {}

func (a *Analyst) OnPublish(ctx context.Context, msg wire.Message) {
	if _, ignored := a.skip[msg.Sender]; ignored {
		return
	}

	content := gjson.GetBytes(msg.Payload, "content").String()
	match := directive.FindStringSubmatch(content)
	if match == nil {
		return
	}
	target := match[1]
	if target == msg.Topic {
		return
	}

	cleaned := strings.TrimSpace(directive.ReplaceAllString(content, ""))
	payload, err := json.Marshal(forwarded{
		Content:     cleaned,
		Origin:      msg.Sender,
		OriginTopic: msg.Topic,
	})
	if err != nil {
		slog.Warn("dropping unroutable directive", slogx.Error(err), slogx.LoggerName("analyst"))
		return
	}

	slog.Debug("routing directive",
		slog.String("from", msg.Sender), slog.String("to", target), slogx.LoggerName("analyst"))
	a.pub.Publish(ctx, target, payload, AnalystName)
}
