package natsbridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubject(t *testing.T) {
	assert.Equal(t, "agora.events.town_hall", Subject("town_hall"))
	assert.Equal(t, "agora.events.agent:bob:inbox", Subject("agent:bob:inbox"))
	assert.Equal(t, "agora.events.ns_sub_topic", Subject("ns.sub.topic"))
}
