// Package app wires configuration, logging, storage, transport and the
// watcher together and owns their lifecycle.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"mcwatch/internal/config"
	"mcwatch/internal/mc"
	"mcwatch/internal/notify"
	"mcwatch/internal/store"
	"mcwatch/internal/transport/telegram"
	"mcwatch/internal/watch"
	"mcwatch/pkg/logx"
)

type App struct {
	cfgm *config.Manager

	log  logx.Logger
	logs *logx.Service

	st      store.Store
	adapter *telegram.Adapter
	notif   *notify.Service
	watcher *watch.Service

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// specParser mirrors the watcher's cron parser; used to validate schedules
// before a config is committed.
var specParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	busyTimeout, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(store.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, log.With(logx.String("comp", "store")))
	if err != nil {
		return nil, err
	}

	notifCfg, err := notifierConfig(cfg)
	if err != nil {
		return nil, err
	}
	notif := notify.New(notifCfg, adapter, log.With(logx.String("comp", "notifier")))

	watchCfg, err := watcherConfig(cfg)
	if err != nil {
		return nil, err
	}
	resolver := mc.NewResolver(log.With(logx.String("comp", "resolver")))
	watcher := watch.New(watchCfg, st, resolver, notif, log.With(logx.String("comp", "watcher")))

	return &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		st:      st,
		adapter: adapter,
		notif:   notif,
		watcher: watcher,
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return validate(cfg)
	})

	if a.watcher.Enabled() {
		if err := a.watcher.Start(runCtx); err != nil {
			cancel()
			return err
		}
	} else {
		a.log.Info("watcher disabled in config")
	}

	// hot reload fan-out
	sub := a.cfgm.Subscribe(8)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(runCtx, sub)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.cfgm.Watch(runCtx); err != nil {
			a.log.Warn("config watch exited", logx.Err(err))
		}
	}()

	a.log.Info("app started")
	return nil
}

func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config in the channel.
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					goto APPLY
				}
			}
		APPLY:
			a.applyConfig(ctx, newCfg)
		}
	}
}

func (a *App) applyConfig(ctx context.Context, cfg *config.Config) {
	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})

	if notifCfg, err := notifierConfig(cfg); err == nil {
		a.notif.Apply(notifCfg)
	} else {
		a.log.Warn("notifier config not applied", logx.Err(err))
	}

	watchCfg, err := watcherConfig(cfg)
	if err != nil {
		a.log.Warn("watcher config not applied", logx.Err(err))
		return
	}
	prevEnabled := a.watcher.Enabled()
	a.watcher.Apply(watchCfg)

	// enable/disable on the fly
	if prevEnabled && !watchCfg.Enabled {
		a.log.Info("watcher disabled via config")
		stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		a.watcher.Stop(stopCtx)
		cancel()
	} else if !prevEnabled && watchCfg.Enabled {
		a.log.Info("watcher enabled via config")
		if err := a.watcher.Start(ctx); err != nil {
			a.log.Error("watcher restart failed", logx.Err(err))
		}
	}

	a.log.Info("config reloaded")
}

func (a *App) Stop(ctx context.Context) error {
	a.log.Info("stopping")
	if a.cancel != nil {
		a.cancel()
	}

	// Bound each shutdown step so one component can't stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context)) {
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()
		start := time.Now()
		fn(stepCtx)
		a.log.Debug("stop step done", logx.String("name", name), logx.Duration("took", time.Since(start)))
	}

	step("watcher", 3*time.Second, func(c context.Context) { a.watcher.Stop(c) })
	step("store", 2*time.Second, func(context.Context) {
		if err := a.st.Close(); err != nil {
			a.log.Warn("store close failed", logx.Err(err))
		}
	})

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}

	a.log.Info("stopped")
	_ = a.logs.Close()
	return nil
}

// ---- config mapping ----

func validate(cfg *config.Config) error {
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required")
	}
	if cfg.Watcher.Enabled {
		spec := strings.TrimSpace(cfg.Watcher.Schedule)
		if spec == "" {
			return fmt.Errorf("watcher.schedule is required when watcher is enabled")
		}
		if _, err := specParser.Parse(spec); err != nil {
			return fmt.Errorf("watcher.schedule: invalid %q: %w", spec, err)
		}
		if len(cfg.Backends) == 0 {
			return fmt.Errorf("at least one backend is required when watcher is enabled")
		}
	}
	if tz := strings.TrimSpace(cfg.Watcher.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("watcher.timezone: invalid %q: %w", tz, err)
		}
	}
	for i, b := range cfg.Backends {
		if strings.TrimSpace(b.Name) == "" {
			return fmt.Errorf("backends[%d].name is required", i)
		}
		if !strings.Contains(b.URL, "{host}") {
			return fmt.Errorf("backends[%d].url must contain {host}", i)
		}
		if b.MaxRetries < 0 {
			return fmt.Errorf("backends[%d].max_retries must be >= 0", i)
		}
		if strings.TrimSpace(b.Parser.Online) == "" {
			return fmt.Errorf("backends[%d].parser.online is required", i)
		}
		if _, err := config.ParseDurationField(fmt.Sprintf("backends[%d].timeout", i), b.Timeout); err != nil {
			return err
		}
		if _, err := config.ParseDurationField(fmt.Sprintf("backends[%d].retry_delay", i), b.RetryDelay); err != nil {
			return err
		}
	}
	if _, err := config.ParseDurationField("watcher.request_delay", cfg.Watcher.RequestDelay); err != nil {
		return err
	}
	if _, err := config.ParseDurationField("notifier.single_delay", cfg.Notifier.SingleDelay); err != nil {
		return err
	}
	if _, err := config.ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
		return err
	}
	if _, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
		return err
	}
	return nil
}

func watcherConfig(cfg *config.Config) (watch.Config, error) {
	delay, err := config.ParseDurationOrDefault("watcher.request_delay", cfg.Watcher.RequestDelay, time.Second)
	if err != nil {
		return watch.Config{}, err
	}
	backends, err := buildBackends(cfg.Backends)
	if err != nil {
		return watch.Config{}, err
	}
	return watch.Config{
		Enabled:       cfg.Watcher.Enabled,
		Schedule:      cfg.Watcher.Schedule,
		Timezone:      cfg.Watcher.Timezone,
		RequestDelay:  delay,
		StartupNotify: cfg.Watcher.StartupNotify,
		Backends:      backends,
	}, nil
}

func buildBackends(in []config.BackendConfig) ([]mc.Backend, error) {
	out := make([]mc.Backend, 0, len(in))
	for i, b := range in {
		timeout, err := config.ParseDurationOrDefault(fmt.Sprintf("backends[%d].timeout", i), b.Timeout, 8*time.Second)
		if err != nil {
			return nil, err
		}
		retryDelay, err := config.ParseDurationField(fmt.Sprintf("backends[%d].retry_delay", i), b.RetryDelay)
		if err != nil {
			return nil, err
		}
		out = append(out, mc.Backend{
			Name:       b.Name,
			URL:        b.URL,
			Timeout:    timeout,
			MaxRetries: b.MaxRetries,
			RetryDelay: retryDelay,
			Parser: mc.ParserSpec{
				Online:        b.Parser.Online,
				PlayersOnline: b.Parser.PlayersOnline,
				PlayersMax:    b.Parser.PlayersMax,
				PlayersList:   b.Parser.PlayersList,
				Version:       b.Parser.Version,
				Motd:          b.Parser.Motd,
			},
		})
	}
	return out, nil
}

func notifierConfig(cfg *config.Config) (notify.Config, error) {
	singleDelay, err := config.ParseDurationOrDefault("notifier.single_delay", cfg.Notifier.SingleDelay, 300*time.Millisecond)
	if err != nil {
		return notify.Config{}, err
	}
	return notify.Config{
		RatePerSec:  cfg.Notifier.RatePerSec,
		SingleDelay: singleDelay,
	}, nil
}
