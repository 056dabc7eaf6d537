package services

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/tidwall/gjson"

	"github.com/casualjim/agora/wire"
)

// palette cycles topic colors so a human scanning the feed can follow a
// conversation thread by hue.
var palette = []*color.Color{
	color.New(color.FgCyan),
	color.New(color.FgMagenta),
	color.New(color.FgYellow),
	color.New(color.FgGreen),
	color.New(color.FgBlue),
	color.New(color.FgRed),
}

var (
	faint  = color.New(color.Faint)
	bolded = color.New(color.Bold)
)

// Timeline renders broker traffic as a human-readable console feed. It is a
// broker hook; writes are serialized so interleaved dispatch goroutines never
// shear a line.
type Timeline struct {
	mu    sync.Mutex
	w     io.Writer
	quiet map[string]struct{}
}

// NewTimeline builds a console feed writing to w. Topics listed in
// quietTopics (typically the heartbeat status topic) are dropped from the
// feed entirely.
func NewTimeline(w io.Writer, quietTopics ...string) *Timeline {
	quiet := make(map[string]struct{}, len(quietTopics))
	for _, topic := range quietTopics {
		quiet[topic] = struct{}{}
	}
	return &Timeline{w: w, quiet: quiet}
}

func (tl *Timeline) OnConnect(_ context.Context, id string) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	faint.Fprintf(tl.w, "-- %s wandered in\n", id)
}

func (tl *Timeline) OnIdentify(_ context.Context, oldID, newID string) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	faint.Fprintf(tl.w, "-- %s is now %s\n", oldID, newID)
}

func (tl *Timeline) OnPublish(_ context.Context, msg wire.Message) {
	if _, drop := tl.quiet[msg.Topic]; drop {
		return
	}

	content := gjson.GetBytes(msg.Payload, "content").String()
	if content == "" {
		content = string(msg.Payload)
	}

	tl.mu.Lock()
	defer tl.mu.Unlock()
	faint.Fprintf(tl.w, "[%s] ", time.Time(msg.Timestamp).Local().Format("15:04:05"))
	topicColor(msg.Topic).Fprintf(tl.w, "[%s] ", msg.Topic)
	bolded.Fprintf(tl.w, "%s: ", msg.Sender)
	io.WriteString(tl.w, content+"\n")
}

func (tl *Timeline) OnDisconnect(_ context.Context, id string) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	faint.Fprintf(tl.w, "-- %s left\n", id)
}

func topicColor(topic string) *color.Color {
	var sum uint32
	for _, r := range topic {
		sum = sum*31 + uint32(r)
	}
	return palette[sum%uint32(len(palette))]
}
