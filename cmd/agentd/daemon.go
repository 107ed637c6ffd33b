package main

import (
	"context"
	"log/slog"
	"net/http"

	"google.golang.org/grpc"

	"github.com/agentsea/agentd/internal/api"
	"github.com/agentsea/agentd/internal/clock"
	"github.com/agentsea/agentd/internal/config"
	"github.com/agentsea/agentd/internal/desktop"
	"github.com/agentsea/agentd/internal/health"
	"github.com/agentsea/agentd/internal/logging"
	"github.com/agentsea/agentd/internal/recording"
	"github.com/agentsea/agentd/internal/rpc"
	"github.com/agentsea/agentd/internal/stream"
	"github.com/agentsea/agentd/internal/sysinfo"
)

// daemon is the wired process: one recording manager shared by the HTTP
// surface, the event stream and the gRPC service.
type daemon struct {
	cfg     config.Config
	log     *slog.Logger
	mgr     *recording.Manager
	handler http.Handler
	grpc    *grpc.Server
}

func newDaemon(cfg config.Config, log *slog.Logger, clk clock.Clock, run desktop.Runner) *daemon {
	mgr := recording.NewManager(clk, recording.Options{
		MaxActiveSessions:   cfg.Recording.MaxActiveSessions,
		MaxEventsPerSession: cfg.Recording.MaxEventsPerSession,
		ActionFilter:        recording.ExcludeKinds(cfg.Recording.ContextKinds...),
		ArchiveDir:          cfg.Recording.Dir,
		ArchiveOnStop:       cfg.Recording.ArchiveOnStop,
	}, logging.Component(log, "recording"))

	hub := stream.NewHub(cfg.Stream.Buffer)
	mgr.Subscribe(hub)

	dlog := logging.Component(log, "desktop")
	if run == nil {
		run = desktop.NewExecRunner(cfg.Desktop.Display, dlog)
	}
	rec := desktop.NewRecorder(
		desktop.NewXdotoolDriver(cfg.Desktop.Xdotool, cfg.Browser.Command, run),
		desktop.NewScrotCapturer(cfg.Screenshot.Command, cfg.Screenshot.Dir, clk, run),
		mgr.Hook(),
		dlog,
	)

	alog := logging.Component(log, "api")
	var usage func(context.Context) (sysinfo.Usage, error)
	if s, err := sysinfo.NewSampler("", "/", 0); err != nil {
		log.Warn("system usage disabled", "error", err)
	} else {
		usage = s.Usage
	}
	h := api.NewHandlers(mgr, rec, stream.NewHandler(mgr, hub, logging.Component(log, "stream")),
		func(ctx context.Context) health.HealthStatus { return health.CheckAll(ctx, cfg) }, usage, alog)

	d := &daemon{
		cfg:     cfg,
		log:     log,
		mgr:     mgr,
		handler: api.LogMiddleware(alog, api.NewRouter(h)),
	}
	if grpcEnabled(cfg.GRPC.Addr) {
		d.grpc = rpc.NewGRPCServer(mgr, logging.Component(log, "rpc"))
	}
	return d
}

// stopAll ends every active session so archives are written before exit.
func (d *daemon) stopAll() {
	for _, s := range d.mgr.ActiveSessions() {
		if _, err := d.mgr.Stop(s.ID); err != nil {
			d.log.Warn("stop on shutdown", "session_id", s.ID, "error", err)
		}
	}
}

func grpcEnabled(addr string) bool { return addr != "" && addr != "off" }
