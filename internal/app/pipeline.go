package app

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"netstatus/internal/bus"
	"netstatus/internal/config"
	"netstatus/internal/forward"
	"netstatus/internal/monitor"
	"netstatus/internal/notify"
	"netstatus/internal/storage"
)

// Pipeline connects the notification sources to the monitor and the bus to
// its consumers.
type Pipeline struct {
	cfg     config.Config
	source  notify.Source
	manual  *notify.Manual
	monitor *monitor.Monitor
	bus     *bus.Bus
	store   *storage.StatusStorage
	fwd     *forward.Service
	logger  *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newPipeline(cfg config.Config, source notify.Source, manual *notify.Manual, mon *monitor.Monitor,
	b *bus.Bus, store *storage.StatusStorage, fwd *forward.Service, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		source:  source,
		manual:  manual,
		monitor: mon,
		bus:     b,
		store:   store,
		fwd:     fwd,
		logger:  logger.Named("pipeline"),
	}
}

// Start subscribes the consumers, starts the source and the monitor loop.
// The context passed by fx is only valid during startup, so the loops run
// on their own context. On failure everything started so far is torn down,
// since fx does not call OnStop for a hook whose OnStart failed.
func (p *Pipeline) Start(_ context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	var subs []*bus.Subscription
	abort := func(err error) error {
		cancel()
		for _, sub := range subs {
			sub.Close()
		}
		p.wg.Wait()
		p.fwd.Stop()
		return err
	}

	storeSub, err := p.bus.Subscribe(p.cfg.EventBuffer)
	if err != nil {
		return abort(err)
	}
	subs = append(subs, storeSub)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.store.Consume(runCtx, storeSub.Out(), func(err error) {
			p.logger.Error("persist status", zap.Error(err))
		})
	}()

	if p.fwd.Enabled() {
		fwdSub, err := p.bus.Subscribe(p.cfg.EventBuffer)
		if err != nil {
			return abort(err)
		}
		subs = append(subs, fwdSub)
		p.fwd.Start(fwdSub.Out())
	}

	if err := p.source.Start(runCtx); err != nil {
		return abort(fmt.Errorf("start %s source: %w", p.cfg.Notifier, err))
	}

	events := notify.Merge(runCtx, p.source.Events(), p.manual.Events())
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.monitor.Run(runCtx, events)
	}()

	if p.cfg.RefreshOnStart {
		p.manual.Trigger(notify.SourceStartup)
	}

	p.logger.Info("status pipeline started",
		zap.String("notifier", p.cfg.Notifier),
		zap.String("interface", p.cfg.Interface))
	return nil
}

// Stop halts the source and the loops, then closes the bus.
func (p *Pipeline) Stop() error {
	err := p.source.Stop()
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.fwd.Stop()
	p.bus.Close()

	p.logger.Info("status pipeline stopped")
	return err
}
