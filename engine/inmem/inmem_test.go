package inmem

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartRunsRegisteredTaskUntilStop(t *testing.T) {
	e := New(nil)
	var ticks int64
	require.NoError(t, e.RegisterTask("tick", func(ctx context.Context) error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Millisecond):
				atomic.AddInt64(&ticks, 1)
			}
		}
	}))

	require.NoError(t, e.Start(context.Background()))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, e.Stop(context.Background()))

	assert.Greater(t, atomic.LoadInt64(&ticks), int64(0))
}

func TestRegisterTaskRejectsDuplicateNames(t *testing.T) {
	e := New(nil)
	noop := func(context.Context) error { return nil }
	require.NoError(t, e.RegisterTask("a", noop))
	err := e.RegisterTask("a", noop)
	require.Error(t, err)
}

func TestRegisterTaskRejectsRegistrationAfterStart(t *testing.T) {
	e := New(nil)
	require.NoError(t, e.RegisterTask("a", func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	}))
	require.NoError(t, e.Start(context.Background()))
	defer e.Stop(context.Background())

	err := e.RegisterTask("b", func(context.Context) error { return nil })
	require.Error(t, err)
}
