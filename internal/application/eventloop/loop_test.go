package eventloop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/pathway-overlay/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/pathway-overlay/pkg/errors"
)

func startLoop(t *testing.T) (*Loop, context.CancelFunc) {
	t.Helper()
	l := New(logging.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = l.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-l.Stopped()
	})
	return l, cancel
}

func TestLoop_PostRunsInOrder(t *testing.T) {
	l, _ := startLoop(t)

	var got []int
	for i := 0; i < 100; i++ {
		i := i
		require.True(t, l.Post(func() { got = append(got, i) }))
	}
	require.NoError(t, l.Do(context.Background(), func() {}))

	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestLoop_DoFromManyGoroutines(t *testing.T) {
	l, _ := startLoop(t)

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.Do(context.Background(), func() { counter++ }))
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, counter)
}

func TestLoop_PanicIsRecovered(t *testing.T) {
	l, _ := startLoop(t)

	l.Post(func() { panic("boom") })
	ran := false
	require.NoError(t, l.Do(context.Background(), func() { ran = true }))
	assert.True(t, ran)
}

func TestLoop_DoContextCancelled(t *testing.T) {
	l := New(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Do(ctx, func() {})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeTimeout))
}

func TestLoop_PostAfterStop(t *testing.T) {
	l, cancel := startLoop(t)
	cancel()
	<-l.Stopped()

	assert.False(t, l.Post(func() {}))
	err := l.Do(context.Background(), func() {})
	assert.True(t, errors.IsCode(err, errors.ErrCodeServiceUnavailable))
}
