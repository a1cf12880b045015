package presenter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroker(t *testing.T) {
	b := NewBroker()
	fast, cancelFast := b.Subscribe(4)
	slow, cancelSlow := b.Subscribe(1)
	defer cancelSlow()

	b.Publish(Event{Type: EventWatchStarted, EntityID: "hive-1"})
	b.Publish(Event{Type: EventWatchStopped, EntityID: "hive-1"})

	require.Len(t, fast, 2)
	require.Len(t, slow, 1)
	assert.Equal(t, EventWatchStarted, (<-slow).Type)

	cancelFast()
	cancelFast()
	_, ok := <-fast
	assert.False(t, ok)

	b.Close()
	_, ok = <-slow
	assert.False(t, ok)

	late, cancelLate := b.Subscribe(1)
	defer cancelLate()
	_, ok = <-late
	assert.False(t, ok)
}
