package server

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

// stopOrder records the names of services as they stop so tests can assert
// reverse-order shutdown.
type stopOrder struct {
	mu    sync.Mutex
	names []string
}

func (o *stopOrder) record(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.names = append(o.names, name)
}

func (o *stopOrder) snapshot() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.names...)
}

type blockingService struct {
	name    string
	order   *stopOrder
	started atomic.Bool
	stopped atomic.Bool
	startFn func() error
}

func (m *blockingService) Start() error {
	m.started.Store(true)
	if m.startFn != nil {
		return m.startFn()
	}
	for !m.stopped.Load() {
		time.Sleep(10 * time.Millisecond)
	}
	return nil
}

func (m *blockingService) Stop() {
	m.stopped.Store(true)
	if m.order != nil {
		m.order.record(m.name)
	}
}

func TestLifecycleStartsAndStopsInReverseOrder(t *testing.T) {
	logger := zaptest.NewLogger(t)
	lc := NewLifecycle(logger)

	order := &stopOrder{}
	api := &blockingService{name: "http", order: order}
	db := &blockingService{name: "postgres", order: order}

	lc.Add("http", api)
	lc.Add("postgres", db)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- lc.Run(ctx)
	}()

	deadline := time.After(2 * time.Second)
	for {
		if api.started.Load() && db.started.Load() {
			break
		}
		select {
		case <-deadline:
			t.Fatal("services did not start in time")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("lifecycle did not shut down in time")
	}

	assert.True(t, api.stopped.Load())
	assert.True(t, db.stopped.Load())
	// Last registered stops first.
	assert.Equal(t, []string{"postgres", "http"}, order.snapshot())
}

func TestLifecycleShutsDownWhenServiceFails(t *testing.T) {
	logger := zaptest.NewLogger(t)
	lc := NewLifecycle(logger)

	failing := &blockingService{name: "http", startFn: func() error {
		return assert.AnError
	}}
	healthy := &blockingService{name: "postgres"}

	lc.Add("http", failing)
	lc.Add("postgres", healthy)

	done := make(chan error, 1)
	go func() {
		done <- lc.Run(context.Background())
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("lifecycle did not shut down after service failure")
	}

	assert.True(t, healthy.stopped.Load())
}

func TestFuncService(t *testing.T) {
	started := false
	stopped := false

	svc := &FuncService{
		StartFn: func() error {
			started = true
			return nil
		},
		StopFn: func() {
			stopped = true
		},
	}

	err := svc.Start()
	assert.NoError(t, err)
	assert.True(t, started)

	svc.Stop()
	assert.True(t, stopped)
}
