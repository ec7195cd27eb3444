package watch

import (
	"context"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"mcwatch/internal/mc"
	"mcwatch/internal/store"
	"mcwatch/pkg/logx"
)

// Notifier receives the accumulated per-group message batches of one tick.
// Implementations isolate per-group failures; a failed group never aborts
// the others.
type Notifier interface {
	SendAll(ctx context.Context, batches map[string][]string)
}

// Config controls the watcher service.
type Config struct {
	Enabled bool

	// Schedule is a cron spec or "@every ..." for the recurring pass.
	Schedule string
	Timezone string

	// RequestDelay paces servers within one tick so upstream status APIs
	// are not hammered. This is a deliberate throughput cap, not an
	// optimization knob.
	RequestDelay time.Duration

	// StartupNotify sends each group one consolidated overview after the
	// initial pass.
	StartupNotify bool

	Backends []mc.Backend
}

// TickInfo is one entry of the bounded tick history kept for /status-style
// introspection.
type TickInfo struct {
	Started  time.Time
	Duration time.Duration
	Servers  int
	Messages int
	Errors   int
	Skipped  bool
}

const historyCap = 50

type Service struct {
	log logx.Logger

	cfgMu sync.Mutex
	cfg   Config

	st    store.Store
	res   *mc.Resolver
	notif Notifier

	parser cron.Parser

	runMu     sync.Mutex
	c         *cron.Cron
	runCtx    context.Context
	runCancel context.CancelFunc

	// ticking is the single-flight guard: at most one tick runs at a time,
	// a trigger firing while it is held is skipped, not queued.
	ticking atomic.Bool

	hmu     sync.Mutex
	history []TickInfo
}

func New(cfg Config, st store.Store, res *mc.Resolver, notif Notifier, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log:   log,
		cfg:   cfg,
		st:    st,
		res:   res,
		notif: notif,
		// SecondOptional allows both 5-field and 6-field (with seconds) specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

func (s *Service) Enabled() bool {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	return s.cfg.Enabled
}

func (s *Service) config() Config {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	return s.cfg
}

// Apply swaps the config at runtime. Schedule or timezone changes restart
// the cron trigger; everything else takes effect on the next tick.
func (s *Service) Apply(cfg Config) {
	s.cfgMu.Lock()
	restart := s.cfg.Schedule != cfg.Schedule || s.cfg.Timezone != cfg.Timezone
	s.cfg = cfg
	s.cfgMu.Unlock()

	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.c == nil || !restart {
		return
	}
	<-s.c.Stop().Done()
	s.c = nil
	if err := s.startCronLocked(); err != nil {
		s.log.Error("cron restart failed", logx.Err(err))
	} else {
		s.log.Info("watch schedule restarted", logx.String("schedule", cfg.Schedule))
	}
}

// Start runs the startup pass once and then arms the recurring trigger.
func (s *Service) Start(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.c != nil {
		return nil
	}
	s.runCtx, s.runCancel = context.WithCancel(ctx)

	runCtx := s.runCtx
	go func() {
		s.startupPass(runCtx)
	}()

	return s.startCronLocked()
}

func (s *Service) startCronLocked() error {
	cfg := s.config()
	loc := s.loadLocation(cfg.Timezone)
	c := cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))

	runCtx := s.runCtx
	if _, err := c.AddFunc(cfg.Schedule, func() { s.RunTick(runCtx) }); err != nil {
		return err
	}
	c.Start()
	s.c = c
	s.log.Info("watcher started", logx.String("schedule", cfg.Schedule), logx.String("tz", loc.String()))
	return nil
}

func (s *Service) Stop(ctx context.Context) {
	s.runMu.Lock()
	c := s.c
	cancel := s.runCancel
	s.c = nil
	s.runCancel = nil
	s.runMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}
	s.log.Info("watcher stopped")
}

func (s *Service) loadLocation(tz string) *time.Location {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone, falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

// Snapshot returns a copy of the recent tick history.
func (s *Service) Snapshot() []TickInfo {
	s.hmu.Lock()
	out := append([]TickInfo(nil), s.history...)
	s.hmu.Unlock()
	return out
}

func (s *Service) recordTick(info TickInfo) {
	s.hmu.Lock()
	s.history = append(s.history, info)
	if len(s.history) > historyCap {
		s.history = s.history[len(s.history)-historyCap:]
	}
	s.hmu.Unlock()
}

// RunTick executes one recurring pass under the single-flight guard.
// An overlapping trigger is a logged no-op.
func (s *Service) RunTick(ctx context.Context) {
	if !s.tryBeginTick() {
		s.log.Warn("tick still running, skipping trigger")
		s.recordTick(TickInfo{Started: time.Now(), Skipped: true})
		return
	}
	defer s.endTick()

	start := time.Now()
	info := s.tick(ctx)
	info.Started = start
	info.Duration = time.Since(start)
	s.recordTick(info)
	s.log.Debug("tick done",
		logx.Duration("took", info.Duration),
		logx.Int("servers", info.Servers),
		logx.Int("messages", info.Messages),
		logx.Int("errors", info.Errors),
	)
}

func (s *Service) tryBeginTick() bool { return s.ticking.CompareAndSwap(false, true) }
func (s *Service) endTick()           { s.ticking.Store(false) }

// groupRef is one group referencing a server in this tick.
type groupRef struct {
	groupID string
	sub     Subscription
}

// enumerate builds the (server, referencing groups) pairs for a tick:
// enabled groups only, enabled server subscriptions only, servers resolved
// once no matter how many groups reference them.
func (s *Service) enumerate(ctx context.Context) (map[string]Server, map[string][]groupRef, error) {
	subs, err := loadSubscriptions(ctx, s.st)
	if err != nil {
		return nil, nil, err
	}
	servers, err := loadServers(ctx, s.st)
	if err != nil {
		return nil, nil, err
	}

	refs := map[string][]groupRef{}
	for groupID, sub := range subs {
		if !sub.Enabled {
			continue
		}
		for serverID, sc := range sub.Servers {
			if !sc.Enabled {
				continue
			}
			if _, known := servers[serverID]; !known {
				s.log.Debug("subscription references unknown server",
					logx.String("group", groupID), logx.String("server", serverID))
				continue
			}
			refs[serverID] = append(refs[serverID], groupRef{groupID: groupID, sub: sub})
		}
	}
	return servers, refs, nil
}

func sortedIDs(refs map[string][]groupRef) []string {
	ids := make([]string, 0, len(refs))
	for id := range refs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Service) tick(ctx context.Context) TickInfo {
	var info TickInfo
	cfg := s.config()

	servers, refs, err := s.enumerate(ctx)
	if err != nil {
		// Store trouble is tick-fatal but process-safe: next tick re-reads.
		s.log.Error("tick enumeration failed", logx.Err(err))
		info.Errors++
		return info
	}

	batches := map[string][]string{}
	for i, serverID := range sortedIDs(refs) {
		if i > 0 && cfg.RequestDelay > 0 {
			select {
			case <-time.After(cfg.RequestDelay):
			case <-ctx.Done():
				return info
			}
		}
		info.Servers++
		if !s.checkServer(ctx, cfg, servers[serverID], refs[serverID], batches) {
			info.Errors++
		}
	}

	for _, lines := range batches {
		info.Messages += len(lines)
	}
	if len(batches) > 0 {
		s.notif.SendAll(ctx, batches)
	}
	return info
}

// checkServer resolves one server, diffs, filters per referencing group and
// writes the snapshot back. A panic or store error here never aborts the
// remaining servers of the tick.
func (s *Service) checkServer(ctx context.Context, cfg Config, server Server, refs []groupRef, batches map[string][]string) (ok bool) {
	ok = true
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic while checking server",
				logx.String("server", server.ID),
				logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())),
			)
			ok = false
		}
	}()

	cur := s.res.Resolve(ctx, server.Address, cfg.Backends)

	prev, err := loadStatus(ctx, s.st, server.ID)
	if err != nil {
		s.log.Warn("previous snapshot unreadable, diffing against nil", logx.String("server", server.ID), logx.Err(err))
		prev = nil
		ok = false
	}

	ch := Diff(server.ID, prev, cur)
	if err := updateHistorical(ctx, s.st, &ch, cur); err != nil {
		s.log.Warn("historical update failed", logx.String("server", server.ID), logx.Err(err))
		ok = false
	}

	if !ch.Empty() {
		for _, ref := range refs {
			lines := FilterChange(ref.sub, server, ch, cur)
			if len(lines) > 0 {
				batches[ref.groupID] = append(batches[ref.groupID], lines...)
			}
		}
	}

	// A resolver failure is still written as the new current snapshot
	// (explicit failure is a legitimate state), but it must not silently
	// erase the last-known player list: carry it so a later recovery diffs
	// against the real population.
	next := cur
	if !cur.Meta.Success && prev != nil {
		next.Players.List = prev.Players.List
	}
	if err := saveStatus(ctx, s.st, server.ID, next); err != nil {
		s.log.Warn("snapshot write failed", logx.String("server", server.ID), logx.Err(err))
		ok = false
	}
	return ok
}

// startupPass resolves every referenced server once, seeds the current
// snapshots and optionally pushes one consolidated overview per group.
func (s *Service) startupPass(ctx context.Context) {
	if !s.tryBeginTick() {
		return
	}
	defer s.endTick()

	cfg := s.config()
	servers, refs, err := s.enumerate(ctx)
	if err != nil {
		s.log.Error("startup pass enumeration failed", logx.Err(err))
		return
	}
	if len(refs) == 0 {
		s.log.Info("startup pass: nothing to check")
		return
	}

	statuses := map[string]mc.Status{}
	for i, serverID := range sortedIDs(refs) {
		if i > 0 && cfg.RequestDelay > 0 {
			select {
			case <-time.After(cfg.RequestDelay):
			case <-ctx.Done():
				return
			}
		}
		st := s.res.Resolve(ctx, servers[serverID].Address, cfg.Backends)
		statuses[serverID] = st
		if err := saveStatus(ctx, s.st, serverID, st); err != nil {
			s.log.Warn("startup snapshot write failed", logx.String("server", serverID), logx.Err(err))
		}
	}
	s.log.Info("startup pass done", logx.Int("servers", len(statuses)))

	if !cfg.StartupNotify {
		return
	}

	// One consolidated overview per group, covering its enabled servers.
	batches := map[string][]string{}
	for serverID, serverRefs := range refs {
		st := statuses[serverID]
		line := OverviewLine(servers[serverID], st)
		for _, ref := range serverRefs {
			batches[ref.groupID] = append(batches[ref.groupID], line)
		}
	}
	for groupID := range batches {
		sort.Strings(batches[groupID])
	}
	if len(batches) > 0 {
		s.notif.SendAll(ctx, batches)
	}
}
