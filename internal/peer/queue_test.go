package peer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSendQueue_DropOldestWhenFull(t *testing.T) {
	var dropped int
	q := newSendQueue(512, func() { dropped++ })

	for i := 0; i < 513; i++ {
		q.push(kindVideo, []byte{byte(i)})
	}

	assert.Equal(t, 1, dropped)
	assert.Equal(t, 512, q.len())

	first, ok := q.popWait(10 * time.Millisecond)
	assert.True(t, ok)
	assert.Equal(t, byte(1), first.payload[0]) // byte 0 was dropped, byte 1 survives
}

func TestSendQueue_PopWaitTimesOutWhenEmpty(t *testing.T) {
	q := newSendQueue(512, nil)
	_, ok := q.popWait(10 * time.Millisecond)
	assert.False(t, ok)
}

func TestSendQueue_MinimumCapacityEnforced(t *testing.T) {
	q := newSendQueue(10, nil)
	assert.Equal(t, 512, q.capacity)
}

func TestSendQueue_FIFOOrdering(t *testing.T) {
	q := newSendQueue(512, nil)
	q.push(kindAudio, []byte{1})
	q.push(kindAudio, []byte{2})
	q.push(kindAudio, []byte{3})

	for _, want := range []byte{1, 2, 3} {
		item, ok := q.popWait(10 * time.Millisecond)
		assert.True(t, ok)
		assert.Equal(t, want, item.payload[0])
	}
}
