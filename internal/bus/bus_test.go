package bus

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"netstatus/internal/models"
)

var sample = models.StatusMessage{Key: models.StatusKeyIPAddress, Value: "10.0.0.10"}

type countingObserver struct {
	mu                 sync.Mutex
	published, dropped int
}

func (o *countingObserver) Published() { o.mu.Lock(); o.published++; o.mu.Unlock() }
func (o *countingObserver) Dropped()   { o.mu.Lock(); o.dropped++; o.mu.Unlock() }

func TestEmitFansOut(t *testing.T) {
	b := New(zaptest.NewLogger(t), nil)
	a, err := b.Subscribe(1)
	require.NoError(t, err)
	c, err := b.Subscribe(1)
	require.NoError(t, err)

	b.Emit(sample)

	assert.Equal(t, sample, <-a.Out())
	assert.Equal(t, sample, <-c.Out())
	assert.EqualValues(t, 1, b.Published())
}

func TestEmitWithoutSubscribers(t *testing.T) {
	b := New(nil, nil)
	assert.NotPanics(t, func() { b.Emit(sample) })
	assert.EqualValues(t, 1, b.Published())
}

func TestEmitDropsWhenFull(t *testing.T) {
	obs := &countingObserver{}
	b := New(zaptest.NewLogger(t), obs)
	sub, err := b.Subscribe(1)
	require.NoError(t, err)

	b.Emit(sample)
	b.Emit(sample)

	assert.EqualValues(t, 1, b.Dropped())
	assert.Equal(t, 2, obs.published)
	assert.Equal(t, 1, obs.dropped)
	assert.Len(t, sub.Out(), 1)
}

func TestSubscriptionClose(t *testing.T) {
	b := New(nil, nil)
	sub, err := b.Subscribe(0)
	require.NoError(t, err)
	require.Equal(t, 1, b.Subscribers())

	sub.Close()
	sub.Close()

	assert.Equal(t, 0, b.Subscribers())
	_, ok := <-sub.Out()
	assert.False(t, ok)
}

func TestBusClose(t *testing.T) {
	b := New(nil, nil)
	sub, err := b.Subscribe(4)
	require.NoError(t, err)

	b.Close()
	b.Close()

	_, ok := <-sub.Out()
	assert.False(t, ok)
	assert.NotPanics(t, sub.Close)
	assert.NotPanics(t, func() { b.Emit(sample) })
	assert.EqualValues(t, 0, b.Published())

	_, err = b.Subscribe(1)
	assert.ErrorIs(t, err, ErrClosed)
}
