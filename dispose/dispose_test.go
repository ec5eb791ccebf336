package dispose

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/specialistvlad/livexpr/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncOnly struct{ closed atomic.Int32 }

func (s *syncOnly) Close() error {
	s.closed.Add(1)
	return nil
}

type both struct {
	syncOnly
	async atomic.Int32
	done  chan struct{}
	err   error
}

func (b *both) CloseAsync(context.Context) error {
	b.async.Add(1)
	if b.done != nil {
		close(b.done)
	}
	return b.err
}

func TestValue_PrefersAsyncWhenAsked(t *testing.T) {
	b := &both{done: make(chan struct{})}
	require.NoError(t, Value(context.Background(), b, Preference{PreferAsync: true}, nil))
	select {
	case <-b.done:
	case <-time.After(time.Second):
		t.Fatal("async release never ran")
	}
	assert.EqualValues(t, 1, b.async.Load())
	assert.Zero(t, b.closed.Load())
}

func TestValue_PrefersSyncOtherwise(t *testing.T) {
	b := &both{}
	require.NoError(t, Value(context.Background(), b, Preference{}, nil))
	assert.EqualValues(t, 1, b.closed.Load())
	assert.Zero(t, b.async.Load())
}

func TestValue_BlockReturnsAsyncError(t *testing.T) {
	boom := errors.New("boom")
	b := &both{err: boom}
	err := Value(context.Background(), b, Preference{PreferAsync: true, Block: true}, nil)
	assert.ErrorIs(t, err, boom)
}

func TestValue_NoCapabilityIsNoop(t *testing.T) {
	assert.False(t, Capable(42))
	assert.True(t, Capable(&syncOnly{}))
	assert.NoError(t, Value(context.Background(), 42, Preference{}, nil))
}

func TestValue_FireAndForgetErrorIsLogged(t *testing.T) {
	var buf testutil.SafeBuffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	b := &both{err: errors.New("late failure"), done: make(chan struct{})}
	require.NoError(t, Value(context.Background(), b, Preference{PreferAsync: true}, logger))
	<-b.done
	assert.Eventually(t, func() bool {
		return strings.Contains(buf.String(), "late failure")
	}, time.Second, 5*time.Millisecond)
}

func TestGuard(t *testing.T) {
	var g Guard
	runs := 0
	assert.False(t, g.Done())
	assert.True(t, g.Do(func() { runs++ }))
	assert.False(t, g.Do(func() { runs++ }))
	assert.True(t, g.Done())
	assert.Equal(t, 1, runs)
}
