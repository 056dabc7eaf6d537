package eventlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/casualjim/agora/wire"
)

func record(i int) wire.Record {
	return wire.Record{
		Type:      wire.TypePublish,
		Topic:     "plaza",
		Payload:   []byte(`{"n":` + string(rune('0'+i%10)) + `}`),
		Sender:    "resident-7",
		Timestamp: strfmt.DateTime(time.Now().UTC()),
	}
}

func TestTail_ReturnsArrivalOrder(t *testing.T) {
	log := NewMemory(10)
	for i := range 5 {
		rec := record(i)
		rec.Topic = "t" + string(rune('0'+i))
		log.Append(rec)
	}

	tail := log.Tail(3)
	require.Len(t, tail, 3)
	assert.Equal(t, "t2", tail[0].Topic)
	assert.Equal(t, "t3", tail[1].Topic)
	assert.Equal(t, "t4", tail[2].Topic)
}

func TestTail_BoundedByContents(t *testing.T) {
	log := NewMemory(10)
	assert.Nil(t, log.Tail(5), "empty log yields nothing")

	log.Append(record(0))
	assert.Len(t, log.Tail(100), 1)
	assert.Equal(t, 1, log.Len())
}

func TestTail_WrapsAroundRing(t *testing.T) {
	log := NewMemory(4)
	for i := range 10 {
		rec := record(i)
		rec.Sender = "s" + string(rune('0'+i))
		log.Append(rec)
	}

	require.Equal(t, 4, log.Len(), "ring drops the oldest records")
	tail := log.Tail(4)
	require.Len(t, tail, 4)
	assert.Equal(t, "s6", tail[0].Sender)
	assert.Equal(t, "s9", tail[3].Sender)
}

func TestOpen_AppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")

	log, err := Open(path, 10)
	require.NoError(t, err)
	log.Append(record(1))
	log.Append(record(2))
	require.NoError(t, log.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		assert.True(t, gjson.Valid(line), "each line is one JSON object")
		assert.Equal(t, "publish", gjson.Get(line, "type").String())
		assert.Equal(t, "resident-7", gjson.Get(line, "sender").String())
	}
}

func TestOpen_ReopenKeepsAppending(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")

	log, err := Open(path, 10)
	require.NoError(t, err)
	log.Append(record(1))
	require.NoError(t, log.Close())

	log, err = Open(path, 10)
	require.NoError(t, err)
	log.Append(record(2))
	require.NoError(t, log.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 2)
}

func TestAppend_AfterCloseKeepsReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	log, err := Open(path, 10)
	require.NoError(t, err)
	require.NoError(t, log.Close())

	// Closed file: appends still land in the replay window.
	log.Append(record(1))
	assert.Equal(t, 1, log.Len())
}
