package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mcwatch/pkg/logx"
)

type call struct {
	group    string
	messages []string
}

// fakeDeliverer records calls and fails or panics on demand per group.
type fakeDeliverer struct {
	mu          sync.Mutex
	batches     []call
	singles     []call
	failBatch   map[string]bool
	failSingles map[string]bool
	panicBatch  map[string]bool
}

func (d *fakeDeliverer) SendBatch(_ context.Context, groupID string, messages []string) error {
	d.mu.Lock()
	d.batches = append(d.batches, call{group: groupID, messages: append([]string(nil), messages...)})
	d.mu.Unlock()
	if d.panicBatch[groupID] {
		panic("deliverer blew up")
	}
	if d.failBatch[groupID] {
		return errors.New("batch refused")
	}
	return nil
}

func (d *fakeDeliverer) SendSingle(_ context.Context, groupID string, message string) error {
	d.mu.Lock()
	d.singles = append(d.singles, call{group: groupID, messages: []string{message}})
	d.mu.Unlock()
	if d.failSingles[groupID] {
		return errors.New("single refused")
	}
	return nil
}

func (d *fakeDeliverer) counts(group string) (batches, singles int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.batches {
		if c.group == group {
			batches++
		}
	}
	for _, c := range d.singles {
		if c.group == group {
			singles++
		}
	}
	return
}

func fastConfig() Config {
	return Config{RatePerSec: 1000, SingleDelay: time.Millisecond}
}

func TestSendBatchSuccess(t *testing.T) {
	t.Parallel()
	del := &fakeDeliverer{}
	svc := New(fastConfig(), del, logx.Nop())

	svc.Send(context.Background(), "g1", []string{"a", "b"})

	batches, singles := del.counts("g1")
	if batches != 1 || singles != 0 {
		t.Fatalf("expected exactly one batch send, got batches=%d singles=%d", batches, singles)
	}
}

func TestSendDegradesToSingles(t *testing.T) {
	t.Parallel()
	del := &fakeDeliverer{failBatch: map[string]bool{"g1": true}}
	svc := New(fastConfig(), del, logx.Nop())

	svc.Send(context.Background(), "g1", []string{"a", "b", "c"})

	batches, singles := del.counts("g1")
	if batches != 1 {
		t.Fatalf("expected one batch attempt, got %d", batches)
	}
	if singles != 3 {
		t.Fatalf("expected every message retried individually, got %d", singles)
	}
}

func TestSendTotalFailureIsSwallowed(t *testing.T) {
	t.Parallel()
	del := &fakeDeliverer{
		failBatch:   map[string]bool{"g1": true},
		failSingles: map[string]bool{"g1": true},
	}
	svc := New(fastConfig(), del, logx.Nop())

	// Must not panic or block; the loss is logged and dropped.
	svc.Send(context.Background(), "g1", []string{"a", "b"})

	_, singles := del.counts("g1")
	if singles != 2 {
		t.Fatalf("all singles should still be attempted, got %d", singles)
	}
}

func TestSendEmptyBatchIsNoop(t *testing.T) {
	t.Parallel()
	del := &fakeDeliverer{}
	svc := New(fastConfig(), del, logx.Nop())

	svc.Send(context.Background(), "g1", nil)
	svc.SendAll(context.Background(), map[string][]string{"g1": {}})

	batches, singles := del.counts("g1")
	if batches != 0 || singles != 0 {
		t.Fatalf("empty input must not reach the deliverer: batches=%d singles=%d", batches, singles)
	}
}

func TestSendAllIsolatesGroups(t *testing.T) {
	t.Parallel()
	del := &fakeDeliverer{panicBatch: map[string]bool{"bad": true}}
	svc := New(fastConfig(), del, logx.Nop())

	svc.SendAll(context.Background(), map[string][]string{
		"bad":  {"boom"},
		"good": {"hello"},
	})

	if batches, _ := del.counts("good"); batches != 1 {
		t.Fatalf("healthy group must be delivered despite sibling panic, got %d batches", batches)
	}
}

func TestSendCancelledContextStops(t *testing.T) {
	t.Parallel()
	del := &fakeDeliverer{failBatch: map[string]bool{"g1": true}}
	svc := New(Config{RatePerSec: 1000, SingleDelay: 50 * time.Millisecond}, del, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		svc.Send(ctx, "g1", []string{"a", "b", "c"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Send must return promptly on a cancelled context")
	}
}

func TestApplyDefaults(t *testing.T) {
	t.Parallel()
	svc := New(Config{}, &fakeDeliverer{}, logx.Nop())
	cfg, _ := svc.snapshot()
	if cfg.RatePerSec != 3 {
		t.Fatalf("default rate = %d, want 3", cfg.RatePerSec)
	}
	if cfg.SingleDelay != 300*time.Millisecond {
		t.Fatalf("default single delay = %v", cfg.SingleDelay)
	}
}
