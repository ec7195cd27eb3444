// Package notify fans message batches out to subscriber groups through an
// injected delivery capability, isolating per-group failures.
package notify

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"mcwatch/internal/transport"
	"mcwatch/pkg/logx"
)

// Config controls outbound pacing.
type Config struct {
	RatePerSec int
	// SingleDelay is the pause between messages after a batch send has
	// degraded to per-message sends.
	SingleDelay time.Duration
}

type Service struct {
	log logx.Logger
	del transport.Deliverer

	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter
}

func New(cfg Config, del transport.Deliverer, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{log: log, del: del}
	s.applyLocked(cfg)
	return s
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	if cfg.SingleDelay <= 0 {
		cfg.SingleDelay = 300 * time.Millisecond
	}
	s.cfg = cfg
	// Token bucket: burst = rate per sec, so short spikes don't block hard.
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

func (s *Service) snapshot() (Config, *rate.Limiter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg, s.limiter
}

// SendAll dispatches every group's batch concurrently and waits for all of
// them. Each group is isolated: one group failing (or panicking in the
// deliverer) never affects the others.
func (s *Service) SendAll(ctx context.Context, batches map[string][]string) {
	var wg sync.WaitGroup
	for groupID, messages := range batches {
		if len(messages) == 0 {
			continue
		}
		wg.Add(1)
		go func(groupID string, messages []string) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("panic while sending to group",
						logx.String("group", groupID),
						logx.Any("panic", r),
						logx.String("stack", string(debug.Stack())),
					)
				}
			}()
			s.Send(ctx, groupID, messages)
		}(groupID, messages)
	}
	wg.Wait()
}

// Send delivers one group's batch. On batch failure it degrades to sending
// the messages individually with a small delay in between; if that fails
// too the loss is logged and the tick proceeds. No retry queue is kept
// across ticks: the next diff reflects the latest true state anyway.
func (s *Service) Send(ctx context.Context, groupID string, messages []string) {
	if len(messages) == 0 {
		return
	}
	cfg, lim := s.snapshot()

	if err := lim.Wait(ctx); err != nil {
		return
	}
	err := s.del.SendBatch(ctx, groupID, messages)
	if err == nil {
		return
	}
	s.log.Warn("batch send failed, degrading to single messages",
		logx.String("group", groupID),
		logx.Int("messages", len(messages)),
		logx.Err(err),
	)

	dropped := 0
	for i, msg := range messages {
		if i > 0 && cfg.SingleDelay > 0 {
			select {
			case <-time.After(cfg.SingleDelay):
			case <-ctx.Done():
			}
		}
		if ctx.Err() != nil {
			dropped += len(messages) - i
			break
		}
		if err := lim.Wait(ctx); err != nil {
			dropped += len(messages) - i
			break
		}
		if err := s.del.SendSingle(ctx, groupID, msg); err != nil {
			dropped++
			s.log.Warn("single send failed, dropping message",
				logx.String("group", groupID), logx.Err(err))
		}
	}
	if dropped > 0 {
		s.log.Warn("notifications dropped", logx.String("group", groupID), logx.Int("count", dropped))
	}
}
