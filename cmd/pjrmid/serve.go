package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/deshaw/pjrmi-go/internal/coerce"
	"github.com/deshaw/pjrmi-go/internal/config"
	"github.com/deshaw/pjrmi-go/internal/dispatch"
	"github.com/deshaw/pjrmi-go/internal/handle"
	"github.com/deshaw/pjrmi-go/internal/lockmgr"
	"github.com/deshaw/pjrmi-go/internal/logger"
	"github.com/deshaw/pjrmi-go/internal/logicalthread"
	"github.com/deshaw/pjrmi-go/internal/metrics"
	"github.com/deshaw/pjrmi-go/internal/metrics/prometheus"
	"github.com/deshaw/pjrmi-go/internal/proxybridge"
	"github.com/deshaw/pjrmi-go/internal/session"
	"github.com/deshaw/pjrmi-go/internal/shm"
	"github.com/deshaw/pjrmi-go/internal/telemetry"
	"github.com/deshaw/pjrmi-go/internal/transport"
	"github.com/deshaw/pjrmi-go/internal/typedesc"
	"github.com/deshaw/pjrmi-go/internal/wire"
	"github.com/deshaw/pjrmi-go/internal/workerpool"
	"github.com/deshaw/pjrmi-go/pkg/auth"
)

// serve brings up every ambient subsystem in dependency order, then
// accepts peer connections until a shutdown signal arrives or the
// listener fails.
func serve(cfg *config.Config) error {
	loggerCfg := logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: cfg.Logging.Output}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "pjrmid",
		ServiceVersion: version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("telemetry shutdown error", logger.Err(err))
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "pjrmid",
		ServiceVersion: version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("initializing profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", logger.Err(err))
		}
	}()

	logger.Info("pjrmid starting", "version", version, "commit", commit)

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metrics.Init()
		metricsServer = startMetricsServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	srv, err := newServer(cfg)
	if err != nil {
		return fmt.Errorf("building server: %w", err)
	}

	listener, err := srv.listen()
	if err != nil {
		return fmt.Errorf("starting listener: %w", err)
	}
	logger.Info("listening for peers", "transport", cfg.Server.Transport, "addr", listener.Addr())
	if cfg.Server.Transport == "tcp" && cfg.Server.BindPort == 0 {
		// An ephemeral bind port was requested; announce the one the OS
		// actually picked over stdout, the way a peer that spawned this
		// process as a subprocess learns which port to dial.
		fmt.Println(listener.Addr())
	}

	serverDone := make(chan error, 1)
	go func() { serverDone <- srv.acceptLoop(ctx, listener) }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("pjrmid is running, press Ctrl+C to stop")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received, draining in-flight requests",
			"timeout", cfg.ShutdownTimeout)
		cancel()
		_ = listener.Close()

		drained := make(chan struct{})
		go func() { srv.wg.Wait(); close(drained) }()
		select {
		case <-drained:
			logger.Info("all connections drained")
		case <-time.After(cfg.ShutdownTimeout):
			logger.Warn("shutdown timeout exceeded, some connections forcibly dropped")
		}
		<-serverDone
		logger.Info("pjrmid stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			return fmt.Errorf("listener failed: %w", err)
		}
		logger.Info("pjrmid stopped")
	}

	return nil
}

func startMetricsServer(port int) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", logger.Err(err))
		}
	}()
	logger.Info("metrics server listening", "port", port)
	return srv
}

// server holds the process-wide dependencies shared by every accepted
// connection: capability negotiation inputs, worker pool sizing, the
// optional global lock, and the metrics each subsystem records against.
type server struct {
	cfg *config.Config

	sessionCfg session.Config

	workerMetrics   metrics.WorkerPoolMetrics
	lockMetrics     metrics.LockMetrics
	dispatchMetrics metrics.DispatchMetrics
	handleMetrics   metrics.HandleMetrics

	globalLock *lockmgr.Manager

	shmChannel *shm.Channel

	wg sync.WaitGroup
}

func newServer(cfg *config.Config) (*server, error) {
	caps := wire.SessionOptions{
		UseShm:           cfg.SharedMemory.Enabled,
		NumWorkers:       int32(cfg.Workers.MinWorkers),
		AllowListEnabled: cfg.AllowList.Enabled,
		CallbacksEnabled: true,
	}

	sessionCfg := session.Config{
		Caps:             caps,
		HandshakeTimeout: cfg.Server.HandshakeTimeout,
	}

	if cfg.Auth.Enabled {
		secret, err := os.ReadFile(cfg.Auth.JWTSecretPath)
		if err != nil {
			return nil, fmt.Errorf("reading jwt secret: %w", err)
		}
		provider := session.NewJWTAuthProvider(secret, cfg.Auth.JWTAudience, cfg.Auth.JWTIssuer)
		sessionCfg.Authenticator = auth.NewAuthenticator(provider)
	}

	if cfg.AllowList.Enabled {
		list, err := session.LoadAllowList(cfg.AllowList.Path)
		if err != nil {
			return nil, fmt.Errorf("loading allow-list: %w", err)
		}
		sessionCfg.AllowList = list
	}

	s := &server{cfg: cfg, sessionCfg: sessionCfg}

	if metrics.IsEnabled() {
		s.workerMetrics = prometheus.NewWorkerPoolMetrics()
		s.lockMetrics = prometheus.NewLockMetrics()
		s.dispatchMetrics = prometheus.NewDispatchMetrics()
		s.handleMetrics = prometheus.NewHandleMetrics()
	}

	if cfg.GlobalLock.Enabled {
		s.globalLock = lockmgr.NewWithMetrics(s.lockMetrics)
	}

	if cfg.SharedMemory.Enabled {
		s.shmChannel = shm.New(cfg.SharedMemory.Directory)
	}

	return s, nil
}

// listen builds the Listener for cfg.Server.Transport. "pipe" is
// accepted by configuration validation but has no listener form of its
// own (internal/transport's pipe pair is for same-process embedding
// only), so it is rejected here with an actionable message.
func (s *server) listen() (transport.Listener, error) {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.BindHost, s.cfg.Server.BindPort)

	switch s.cfg.Server.Transport {
	case "tcp":
		if s.cfg.TLS.Enabled {
			tlsCfg, err := transport.TLSServerConfig(s.cfg.TLS.CertPath, s.cfg.TLS.KeyPath, s.cfg.TLS.ClientCAPath)
			if err != nil {
				return nil, err
			}
			return transport.ListenTLS(addr, tlsCfg)
		}
		return transport.ListenTCP(addr)
	case "stdio":
		return newStdioListener(), nil
	case "pipe":
		return nil, fmt.Errorf("transport \"pipe\" has no standalone listener; it is only available to a peer embedding this process directly via transport.NewPipePair")
	default:
		return nil, fmt.Errorf("unknown transport %q", s.cfg.Server.Transport)
	}
}

// acceptLoop accepts connections until the listener is closed (the
// signal returned to serve is nil in that expected case) or fails for
// some other reason.
func (s *server) acceptLoop(ctx context.Context, listener transport.Listener) error {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if strings.Contains(err.Error(), "use of closed") {
				return nil
			}
			return err
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()

		if _, isStdio := listener.(*stdioListener); isStdio {
			// A stdio transport serves exactly one peer: the process
			// that spawned it. Stop after handing off the single
			// connection instead of looping on a listener that can
			// never Accept again.
			<-ctx.Done()
			return nil
		}
	}
}

// handleConn runs one session end to end: handshake, bridge/dispatch
// wiring, and the connection's read loop, until the peer disconnects or
// the server is shutting down.
func (s *server) handleConn(ctx context.Context, conn transport.Transport) {
	defer conn.Close()

	sess, err := session.ServerHandshake(ctx, conn, s.sessionCfg)
	if err != nil {
		logger.Warn("handshake failed", logger.PeerAddr(conn.PeerAddress()), logger.Err(err))
		return
	}
	logger.Info("session established", logger.SessionID(sess.ID), logger.PeerAddr(conn.PeerAddress()))

	registry := typedesc.NewRegistry(nil)
	provider := typedesc.NewGoReflectionProvider(registry)
	registry.SetProvider(provider)

	exports := handle.NewLocalExportsWithMetrics(s.handleMetrics)

	bridge := proxybridge.New(nil, registry, exports, nil)
	if sess.AllowList != nil {
		bridge.SetAllowList(sess.AllowList.Allows)
	}

	coercer := coerce.New(coerce.Options{
		Exports:           exports,
		Registry:          registry,
		Shims:             bridge,
		ShmChannel:        s.shmChannelFor(conn),
		ShmThresholdBytes: s.cfg.SharedMemory.Threshold.Int64(),
	})
	bridge.SetCoercer(coercer)

	handler := bridge.Handle
	if s.globalLock != nil {
		handler = s.withGlobalLock(handler)
	}

	pool := workerpool.New(workerpool.Options{
		Min:     s.cfg.Workers.MinWorkers,
		Max:     s.cfg.Workers.MaxWorkers,
		Metrics: s.workerMetrics,
	})
	defer pool.Close()

	engine := dispatch.New(conn, pool, handler, dispatch.Options{
		HeartbeatInterval: s.cfg.Server.IdleTimeout / 3,
		Metrics:           s.dispatchMetrics,
	})
	bridge.SetCaller(engine)

	if err := engine.Run(ctx); err != nil {
		logger.Info("session ended", logger.SessionID(sess.ID), logger.Err(err))
	}
}

// shmChannelFor returns the shared-memory channel only for a transport
// both sides can actually see on the same filesystem; a peer connected
// over a non-local tcp socket never gets the fast path regardless of
// configuration.
func (s *server) shmChannelFor(conn transport.Transport) *shm.Channel {
	if s.shmChannel == nil || !conn.IsLocalhost() {
		return nil
	}
	return s.shmChannel
}

// withGlobalLock wraps next so that every inbound call acquires the
// configured process-wide lock in exclusive mode before running, and
// releases it afterward, serializing all calls into this process the
// way a GIL-protected runtime would.
func (s *server) withGlobalLock(next dispatch.Handler) dispatch.Handler {
	name := s.cfg.GlobalLock.Name
	return func(ctx context.Context, f wire.Frame) wire.Frame {
		lt := logicalThreadOf(f)
		if err := s.globalLock.Acquire(ctx, name, lockmgr.ModeExclusive, lt); err != nil {
			return wire.Frame{Kind: wire.KindError, RequestID: f.RequestID, LogicalThreadID: f.LogicalThreadID, Payload: []byte(err.Error())}
		}
		defer func() { _ = s.globalLock.Release(name, lt) }()
		return next(ctx, f)
	}
}

func logicalThreadOf(f wire.Frame) logicalthread.ID {
	return logicalthread.ID(f.LogicalThreadID)
}
