package ingest

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

type runner interface {
	Run(ctx context.Context, limit, timeoutSeconds int) (Result, error)
}

// Settings are the operational knobs of the poll loop. They are re-read on
// every tick, so whoever owns the Settings func can change them without a
// restart.
type Settings struct {
	Enabled        bool
	Interval       time.Duration
	FetchLimit     int
	TimeoutSeconds int
}

type PollerOptions struct {
	Tick     time.Duration
	Settings func() Settings
}

// Poller ticks at a fine grain and decides on each tick whether an ingestion
// run is due: polling enabled, interval elapsed, no run already in flight.
// At most one Run executes at any time; the in-flight guard is cleared in a
// defer so a panicking or failing run cannot wedge the loop.
type Poller struct {
	syncer   runner
	log      *zap.Logger
	tick     time.Duration
	settings func() Settings

	running  atomic.Bool
	lastTick atomic.Int64 // unix nanos of the last run start
	stop     chan struct{}
	done     chan struct{}
}

func NewPoller(syncer runner, log *zap.Logger, opt PollerOptions) *Poller {
	if opt.Tick <= 0 {
		opt.Tick = 500 * time.Millisecond
	}
	if opt.Settings == nil {
		opt.Settings = func() Settings { return Settings{Enabled: true} }
	}
	return &Poller{
		syncer:   syncer,
		log:      log,
		tick:     opt.Tick,
		settings: opt.Settings,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (p *Poller) Start(ctx context.Context) {
	go func() {
		defer close(p.done)
		t := time.NewTicker(p.tick)
		defer t.Stop()
		for {
			select {
			case <-p.stop:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				p.Tick(ctx)
			}
		}
	}()
}

// Stop ends the tick loop and waits for an in-flight run to finish.
func (p *Poller) Stop() {
	close(p.stop)
	<-p.done
}

// Tick is one scheduling decision. Safe to call concurrently; overlapping
// calls while a run is in flight are no-ops.
func (p *Poller) Tick(ctx context.Context) {
	s := p.settings()
	if !s.Enabled {
		return
	}
	if s.Interval < 250*time.Millisecond {
		s.Interval = 250 * time.Millisecond
	}
	if s.FetchLimit <= 0 {
		s.FetchLimit = 50
	}

	if p.running.Load() {
		return
	}

	now := time.Now()
	last := p.lastTick.Load()
	if last != 0 && now.Sub(time.Unix(0, last)) < s.Interval {
		return
	}

	if !p.running.CompareAndSwap(false, true) {
		return
	}
	defer p.running.Store(false)
	p.lastTick.Store(now.UnixNano())

	start := time.Now()
	out, err := p.syncer.Run(ctx, s.FetchLimit, s.TimeoutSeconds)
	if err != nil {
		// Transient by contract: the cursor already advanced past whatever
		// failed, the next tick resumes from there.
		p.log.Error("poll run failed",
			zap.Duration("duration", time.Since(start)),
			zap.Int64("cursor_after", out.CursorAfter),
			zap.Error(err),
		)
		return
	}
	p.log.Info("poll run",
		zap.Duration("duration", time.Since(start)),
		zap.Int("updates", out.ProcessedUpdates),
		zap.Int("messages", out.ProcessedMessages),
		zap.Int64("cursor_before", out.CursorBefore),
		zap.Int64("cursor_after", out.CursorAfter),
	)
}
