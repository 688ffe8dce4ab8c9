// ABOUTME: Gateway orchestrator wiring the access-control stack to servers
// ABOUTME: Manages gRPC and HTTP listeners, maintenance sweeps, and lockdown severing

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"

	"github.com/2389/zero-gateway/internal/authz"
	"github.com/2389/zero-gateway/internal/config"
	"github.com/2389/zero-gateway/internal/guard"
	"github.com/2389/zero-gateway/internal/panicmode"
	"github.com/2389/zero-gateway/internal/session"
	"github.com/2389/zero-gateway/internal/store"
)

// sweepInterval is how often expired ledger records and sessions are
// garbage-collected.
const sweepInterval = time.Minute

// Gateway orchestrates the zero-gateway server components: the gRPC server
// for device connections and the HTTP server for the API and control UI,
// both gated by the connection authorizer.
type Gateway struct {
	config     *config.Config
	store      *store.SQLiteStore
	sessions   *session.Store
	protector  *guard.Protector
	panicSw    *panicmode.Switch
	authorizer *authz.Authorizer
	posture    authz.Posture
	grpcServer *grpc.Server
	httpServer *http.Server
	tracker    *connTracker
	logger     *slog.Logger
}

// initStore creates the SQLite store based on config and environment.
func initStore(cfg *config.Config) (*store.SQLiteStore, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("ZERO_DB_PATH"); envPath != "" {
		dbPath = envPath
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	sessions := session.NewStore(cfg.Session.Lifetime)

	panicSw, err := panicmode.New(panicmode.Options{
		Store:        s,
		Sessions:     sessions,
		ResetKeyHash: cfg.Panic.ResetKeyHash,
	})
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("initializing panic switch: %w", err)
	}

	ledger := guard.NewLedger(guard.LedgerConfig{
		Threshold:  cfg.Lockout.Threshold,
		Window:     cfg.Lockout.Window,
		BaseBan:    cfg.Lockout.BaseBan,
		MaxBan:     cfg.Lockout.MaxBan,
		Retention:  cfg.Lockout.Retention,
		MaxClients: cfg.Lockout.MaxClients,
	})
	protector := guard.NewProtector(ledger, guard.ProtectorConfig{
		BaseDelay: cfg.Lockout.BaseDelay,
		MaxDelay:  cfg.Lockout.MaxDelay,
	})

	verifier := authz.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	authorizer := authz.New(panicSw, protector, sessions, verifier, s)
	posture := authz.Posture{AllowInsecureControlUI: cfg.Auth.AllowInsecureControlUI}

	if posture.AllowInsecureControlUI {
		logger.Warn("insecure control-UI posture enabled: shared secret suffices for device connections")
	}

	gw := &Gateway{
		config:     cfg,
		store:      s,
		sessions:   sessions,
		protector:  protector,
		panicSw:    panicSw,
		authorizer: authorizer,
		posture:    posture,
		tracker:    newConnTracker(),
		logger:     logger.With("component", "gateway"),
	}

	gw.grpcServer = gw.buildGRPCServer()
	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.buildMux(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// When lockdown activates, sever everything already connected: sessions
	// are revoked by the switch itself, but live TCP connections would
	// otherwise ride out the emergency.
	panicSw.OnActivate(func(reason string) {
		severed := gw.tracker.CloseAll()
		gw.logger.Error("lockdown severed live connections",
			"reason", reason,
			"connections", severed)
	})

	return gw, nil
}

// buildGRPCServer creates the gRPC server for device connections, with the
// authorizer guarding every unary and stream call.
func (g *Gateway) buildGRPCServer() *grpc.Server {
	server := grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    15 * time.Second,
			Timeout: 5 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.ChainUnaryInterceptor(authz.UnaryInterceptor(g.authorizer, g.posture)),
		grpc.ChainStreamInterceptor(authz.StreamInterceptor(g.authorizer, g.posture)),
	)

	healthpb.RegisterHealthServer(server, health.NewServer())
	return server
}

// setupListeners creates tracked TCP listeners for gRPC and HTTP.
func (g *Gateway) setupListeners() (grpcLn, httpLn net.Listener, err error) {
	grpcLn, err = net.Listen("tcp", g.config.Server.GRPCAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("listening on gRPC address: %w", err)
	}

	httpLn, err = net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		_ = grpcLn.Close()
		return nil, nil, fmt.Errorf("listening on HTTP address: %w", err)
	}

	return g.tracker.Wrap(grpcLn), g.tracker.Wrap(httpLn), nil
}

// startServers starts gRPC and HTTP servers in goroutines, returning error channel.
func (g *Gateway) startServers(grpcLn, httpLn net.Listener) chan error {
	errCh := make(chan error, 2)

	go func() {
		g.logger.Info("gRPC server listening", "addr", grpcLn.Addr().String())
		if err := g.grpcServer.Serve(grpcLn); err != nil {
			errCh <- fmt.Errorf("gRPC server: %w", err)
		}
	}()

	go func() {
		g.logger.Info("HTTP server listening", "addr", httpLn.Addr().String())
		if err := g.httpServer.Serve(httpLn); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	return errCh
}

// runMaintenance periodically drops expired ledger records and sessions
// until the context is canceled.
func (g *Gateway) runMaintenance(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.panicSw.Sync()
			evicted := g.protector.EvictExpired()
			swept := g.sessions.Sweep()
			if evicted > 0 || swept > 0 {
				g.logger.Debug("maintenance sweep",
					"ledger_evicted", evicted,
					"sessions_swept", swept)
			}
		}
	}
}

// waitForShutdownSignal waits for context cancellation or server error.
func (g *Gateway) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		g.drainErrors(errCh)
		return err
	}
}

// drainErrors drains any remaining errors from the channel.
func (g *Gateway) drainErrors(errCh chan error) {
	select {
	case additionalErr := <-errCh:
		g.logger.Error("additional server error", "error", additionalErr)
	default:
	}
}

// Run starts the gateway servers and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if a server fails.
func (g *Gateway) Run(ctx context.Context) error {
	if g.panicSw.IsActive() {
		state := g.panicSw.Current()
		g.logger.Error("serving in lockdown: all connections will be refused",
			"activated_at", state.ActivatedAt,
			"reason", state.Reason)
	}

	grpcListener, httpListener, err := g.setupListeners()
	if err != nil {
		return err
	}

	go g.runMaintenance(ctx)

	errCh := g.startServers(grpcListener, httpListener)
	serverErr := g.waitForShutdownSignal(ctx, errCh)

	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// shutdownGRPCServer gracefully stops the gRPC server or force-stops on context cancel.
func (g *Gateway) shutdownGRPCServer(ctx context.Context) {
	stopped := make(chan struct{})
	go func() {
		g.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-ctx.Done():
		g.grpcServer.Stop()
	}
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown gracefully stops all gateway servers and releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))

	g.shutdownGRPCServer(ctx)

	errs = appendCloseError(errs, "store close", g.store.Close())

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}
