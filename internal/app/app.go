// Package app assembles the status service with fx.
package app

import (
	"context"
	"net"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"netstatus/internal/bus"
	"netstatus/internal/config"
	"netstatus/internal/forward"
	"netstatus/internal/metrics"
	"netstatus/internal/monitor"
	"netstatus/internal/notify"
	"netstatus/internal/platform"
	"netstatus/internal/server"
	"netstatus/internal/storage"
)

// ListenAddr is the HTTP listen address.
type ListenAddr string

const historyFile = "status_history.json"

// New builds the application graph.
func New(cfg config.Config, addr string, logger *zap.Logger) *fx.App {
	return fx.New(Options(cfg, addr, logger))
}

// Options returns the fx options for the service, for use with fx.New or fxtest.New.
func Options(cfg config.Config, addr string, logger *zap.Logger) fx.Option {
	return fx.Options(
		fx.Supply(cfg, ListenAddr(addr), logger),
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Named("fx")}
		}),
		fx.Provide(
			newRegistry,
			newCollector,
			newBus,
			newHost,
			newQueries,
			newMonitor,
			newSource,
			newManual,
			newStorage,
			newForwarder,
			newPipeline,
			newServer,
		),
		// Hooks stop in reverse order: server first, then the pipeline.
		fx.Invoke(registerPipeline, registerServer),
	)
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func newCollector(reg *prometheus.Registry) (*metrics.Collector, error) {
	return metrics.NewCollector(reg)
}

func newBus(logger *zap.Logger, collector *metrics.Collector) *bus.Bus {
	return bus.New(logger, collector)
}

func newHost(cfg config.Config) *platform.Host {
	return platform.NewHost(cfg.Interface)
}

// newQueries exposes the host as the two monitor collaborators so they can
// be replaced with fx.Decorate.
func newQueries(host *platform.Host) (platform.ConnectivityQuery, platform.WifiAddressQuery) {
	return host, host
}

func newMonitor(conn platform.ConnectivityQuery, wifi platform.WifiAddressQuery, b *bus.Bus,
	collector *metrics.Collector, logger *zap.Logger) *monitor.Monitor {
	return monitor.New(conn, wifi, b, collector, logger)
}

func newSource(cfg config.Config, logger *zap.Logger) (notify.Source, error) {
	return notify.New(cfg, logger)
}

func newManual(cfg config.Config) *notify.Manual {
	return notify.NewManual(cfg.EventBuffer)
}

func newStorage(cfg config.Config) (*storage.StatusStorage, error) {
	return storage.NewStatusStorage(filepath.Join(cfg.DataDirectory, historyFile), cfg.HistoryLimit)
}

func newForwarder(cfg config.Config, collector *metrics.Collector, logger *zap.Logger) *forward.Service {
	return forward.NewService(cfg, collector, logger)
}

func newServer(cfg config.Config, addr ListenAddr, store *storage.StatusStorage, mon *monitor.Monitor, manual *notify.Manual,
	fwd *forward.Service, b *bus.Bus, reg *prometheus.Registry, logger *zap.Logger) *server.Server {
	return server.New(string(addr), server.Deps{
		Store:    store,
		Inbox:    store,
		PeerKeys: cfg.PeerKeys(),
		Monitor:  mon,
		Trigger:  manual,
		Peers:    fwd,
		Bus:      b,
		Gatherer: reg,
		Logger:   logger,
	})
}

func registerPipeline(lc fx.Lifecycle, p *Pipeline) {
	lc.Append(fx.Hook{
		OnStart: p.Start,
		OnStop: func(_ context.Context) error {
			return p.Stop()
		},
	})
}

func registerServer(lc fx.Lifecycle, srv *server.Server, addr ListenAddr, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			ln, err := net.Listen("tcp", string(addr))
			if err != nil {
				return err
			}
			logger.Info("http server listening", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := srv.Serve(ln); err != nil {
					logger.Error("http server", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: srv.Shutdown,
	})
}
