package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/estudio-ia-videos/timeline-relay/internal/export"
	"github.com/estudio-ia-videos/timeline-relay/internal/realtime"
	"github.com/estudio-ia-videos/timeline-relay/internal/relay"
	"github.com/estudio-ia-videos/timeline-relay/internal/server/middleware"
	"github.com/estudio-ia-videos/timeline-relay/pkg/config"
	"github.com/estudio-ia-videos/timeline-relay/pkg/state"
	"github.com/estudio-ia-videos/timeline-relay/pkg/state/statemanager"
	"github.com/estudio-ia-videos/timeline-relay/pkg/transport"
)

type App struct {
	logger       *slog.Logger
	stateManager state.Manager
	relay        *relay.Relay
	wg           sync.WaitGroup
	http         *http.Server
	config       *config.Config

	ctx context.Context
}

func NewApp(logger *slog.Logger, rootCtx context.Context, cfg *config.Config) *App {
	stateManager := statemanager.NewInMemoryManager(logger)
	eventRelay := relay.New(logger, stateManager, cfg.Server.Auth.EnforcePermissions)
	realtime.SetDefault(eventRelay)

	app := &App{
		logger:       logger,
		stateManager: stateManager,
		relay:        eventRelay,
		config:       cfg,
		ctx:          rootCtx,
	}

	mux := http.NewServeMux()
	upgradeHandler := http.HandlerFunc(app.upgradeHandler)
	connCounter := middleware.UserConnectionCounter(stateManager.GetUserConnectionCount)
	// Cycler closes the user's oldest connection so a new one can take over.
	connCycler := func(userID string) {
		oldest, found := stateManager.FindOldestUserConnection(userID)
		if found {
			logger.Info("Cycling connection: closing oldest",
				slog.String("userID", userID),
				slog.String("connID", oldest.ID.String()),
			)
			oldest.Transport.Close(errors.New("connection cycled by new connection"))
		}
	}

	permCompiler := middleware.PermissionCompiler(config.CompilePermissions)
	mux.Handle("/ws",
		middleware.Chain(upgradeHandler,
			middleware.RequestMetadataMiddleware(),
			middleware.NewRequestLogger(app.logger),
			middleware.NewAuthMiddleware(logger, cfg.Server.Auth.JWTSecret, permCompiler),
			middleware.NewConnectionLimiter(
				logger,
				connCounter,
				connCycler,
				cfg.Server.ConnectionLimit,
			),
		),
	)
	mux.HandleFunc("/stats", app.statsHandler)
	mux.Handle("/internal/export/events", export.NewHandler(logger, cfg.Server.InternalKey))

	app.http = &http.Server{
		Addr:    cfg.Server.Address,
		Handler: mux,
		BaseContext: func(l net.Listener) context.Context {
			return app.ctx
		},
	}

	return app
}

func (a *App) Run() error {
	go func() {
		a.logger.Info("Server starting", slog.String("addr", a.http.Addr))
		if err := a.http.ListenAndServe(); err != http.ErrServerClosed {
			a.logger.Error("HTTP server failed", slog.Any("error", err))
		}
	}()

	<-a.ctx.Done()
	return a.Shutdown()
}

func (a *App) upgradeHandler(w http.ResponseWriter, r *http.Request) {
	reqMeta, _ := middleware.ReqMetadataFrom(r.Context())
	connLogger := a.logger.With(
		slog.String("remoteAddr", reqMeta.IP),
		slog.String("userID", reqMeta.UserID),
	)

	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		a.logger.Error("Failed to accept websocket connection", slog.Any("error", err))
		return
	}

	conn := transport.NewConnection(
		r.Context(),
		&a.wg,
		wsConn,
		transport.ConnectionConfig(a.config.Transport),
		nil,
		nil,
		a.logger,
	)
	// register new connection
	if _, err := a.stateManager.RegisterConnection(conn, reqMeta.IP); err != nil {
		connLogger.Error("Failed to register connection state", slog.Any("error", err))
		conn.Close(err)
		return
	}
	// associate the authenticated user with the registered connection.
	if _, err := a.stateManager.AssociateUser(conn.ID(), reqMeta.UserID, reqMeta.UserName, reqMeta.GlobalPermissions); err != nil {
		connLogger.Error("Failed to associate user with connection", slog.Any("error", err))
		conn.Close(err)
		return
	}
	conn.SetOnMessageHandler(a.relay.HandleMessage)
	conn.SetOnCloseHandler(func(id uuid.UUID, err error) {
		connLogger.Info("Deregistering connection due to closure", slog.String("connID", id.String()))
		a.relay.HandleDisconnect(id)
	})

	connLogger.Info("User connection fully established")
	conn.Run()
	<-conn.Done()
}

func (a *App) statsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(a.stateManager.Stats()); err != nil {
		a.logger.Error("Failed to encode stats", slog.Any("error", err))
	}
}

// graceful shutdown sequence.
func (a *App) Shutdown() error {
	a.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.http.Shutdown(shutdownCtx); err != nil {
		return err
	}

	// close all active WebSocket connections.
	a.logger.Info("Closing all active connections...")
	allUsers, err := a.stateManager.GetAllUsers()
	if err != nil {
		a.logger.Error(err.Error())
		return err
	}
	for _, user := range allUsers {
		for _, conn := range user.Connections {
			conn.Transport.Close(errors.New("graceful shutdown"))
		}
	}

	// wait for all connection goroutines to finish their cleanup.
	a.wg.Wait()
	a.logger.Info("Server shut down gracefully.")
	return nil
}
