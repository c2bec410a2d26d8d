// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package workers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockWorker is a test implementation of the Worker interface
// that tracks how many times Run was called.
type mockWorker struct {
	runCount atomic.Int32
	err      error
	block    bool
}

func (m *mockWorker) Run(ctx context.Context) error {
	m.runCount.Add(1)
	if m.err != nil {
		return m.err
	}
	if m.block {
		<-ctx.Done()
	}
	return nil
}

func TestWorkers_Run_AllWorkersAreCalled(t *testing.T) {
	w1 := &mockWorker{}
	w2 := &mockWorker{}
	w3 := &mockWorker{}

	ws := NewWorkers(w1, w2, w3)
	require.NoError(t, ws.Run(context.Background()))

	for i, w := range []*mockWorker{w1, w2, w3} {
		assert.Equal(t, int32(1), w.runCount.Load(), "worker[%d]", i)
	}
}

func TestWorkers_Run_Empty(t *testing.T) {
	assert.NoError(t, NewWorkers().Run(context.Background()))
	assert.NoError(t, (&Workers{}).Run(context.Background()))
}

// TestWorkers_Run_FirstErrorStopsOthers verifies that a failing worker
// cancels the context of the blocking ones.
func TestWorkers_Run_FirstErrorStopsOthers(t *testing.T) {
	boom := errors.New("boom")
	blocking := &mockWorker{block: true}

	done := make(chan error, 1)
	go func() {
		done <- NewWorkers(blocking, &mockWorker{err: boom}).Run(context.Background())
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, boom)
	case <-time.After(2 * time.Second):
		t.Fatal("workers did not stop after an error")
	}
}

func TestWorkers_Run_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, NewWorkers(&mockWorker{block: true}, &mockWorker{block: true}).Run(ctx))
	}()

	cancel()
	wg.Wait()
}

func TestEvery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32

	err := every(ctx, time.Millisecond, func(context.Context) {
		if calls.Add(1) == 3 {
			cancel()
		}
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestFunc_AdaptsRunLoop(t *testing.T) {
	var called atomic.Bool
	f := Func(func(ctx context.Context) error {
		called.Store(true)
		<-ctx.Done()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, NewWorkers(f).Run(ctx))
	assert.True(t, called.Load())
}
