// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/noteshare/internal/api"
	"github.com/starford/noteshare/internal/apperr"
	"github.com/starford/noteshare/internal/auth"
	"github.com/starford/noteshare/internal/index"
	"github.com/starford/noteshare/internal/ingest"
	"github.com/starford/noteshare/internal/mcpserver"
	"github.com/starford/noteshare/internal/noteservice"
	"github.com/starford/noteshare/internal/ocr"
	"github.com/starford/noteshare/internal/prefs"
	"github.com/starford/noteshare/internal/sse"
	"github.com/starford/noteshare/internal/storage"
)

// core is the set of components shared by the HTTP server and the MCP server.
type core struct {
	logger *slog.Logger
	db     *index.DB
	blobs  storage.Provider
}

func setup(opts []Option) (*application, *slog.Logger, error) {
	app := &application{logOut: os.Stdout}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOut, &slog.HandlerOptions{
		Level: app.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return app, logger, nil
}

func openCore(ctx context.Context, cfg *Config, logger *slog.Logger) (*core, error) {
	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("storage_driver", cfg.Storage.Driver),
		slog.String("ocr_driver", cfg.OCR.Driver),
		slog.String("log_level", cfg.App.LogLevel.String()))

	blobs, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}
	return &core{logger: logger, db: db, blobs: blobs}, nil
}

func openStorage(ctx context.Context, cfg StorageConfig) (storage.Provider, error) {
	if cfg.Driver == StorageDriverS3 {
		return storage.NewS3(ctx, storage.S3Options{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Prefix:    cfg.Prefix,
		})
	}
	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return storage.NewFS(cfg.Path)
}

func recognizer(cfg OCRConfig) ocr.Recognizer {
	if cfg.Driver == OCRDriverTesseract {
		return ocr.Tesseract{Binary: cfg.Binary, Language: cfg.Language}
	}
	return ocr.Static("")
}

func (c *core) noteService(cfg *Config, extra ...noteservice.Option) *noteservice.Service {
	opts := []noteservice.Option{
		noteservice.WithRecognizer(recognizer(cfg.OCR)),
		noteservice.WithLogger(c.logger),
		noteservice.WithEmptyDelay(cfg.Paging.EmptyDelay),
		noteservice.WithListingIdleTimeout(cfg.Paging.IdleTimeout),
		noteservice.WithMaxListings(cfg.Paging.MaxPerUser),
	}
	return noteservice.NewService(c.db, c.blobs, append(opts, extra...)...)
}

// ownerID resolves the account an unattended uploader acts for. An empty
// email yields an empty ID.
func (c *core) ownerID(ctx context.Context, email string) (string, error) {
	if email == "" {
		return "", nil
	}
	u, err := c.db.UserByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("resolve owner %s: %w", email, err)
	}
	return u.ID, nil
}

// optionalOwner is ownerID for features that are switched off, not fatal,
// when the account is not registered yet. feature names them in the log.
func (c *core) optionalOwner(ctx context.Context, email, feature string) (string, error) {
	owner, err := c.ownerID(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		c.logger.Warn(feature+" disabled: owner account not registered",
			slog.String("owner_email", email))
		return "", nil
	}
	return owner, err
}

// mcpServer builds the tool server. upload_note is registered only when
// mcp.owner_email resolves to an account.
func (c *core) mcpServer(ctx context.Context, cfg *Config, svc *noteservice.Service) (*mcpserver.Server, error) {
	owner, err := c.optionalOwner(ctx, cfg.MCP.OwnerEmail, "mcp upload_note")
	if err != nil {
		return nil, err
	}
	if owner == "" {
		c.logger.Info("mcp: upload_note disabled, no owner")
	}
	return mcpserver.New(svc, owner), nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, logger, err := setup(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	c, err := openCore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.db.Close()

	// SSE broker.
	broker := sse.NewBroker(15 * time.Second)
	defer broker.Close()

	svc := c.noteService(cfg, noteservice.WithNotifier(broker))
	defer svc.Close()

	authSvc := auth.NewService(c.db, auth.LogSender{Logger: logger}, cfg.Auth.JWTSecret,
		auth.WithTokenTTL(cfg.Auth.TokenTTL),
		auth.WithCodeTTL(cfg.Auth.CodeTTL))

	h := api.NewHandler(svc, authSvc, c.db, prefs.New(c.db))
	apiRouter := api.NewRouter(h, broker.Handler(func(r *http.Request) string {
		return api.UserID(r.Context())
	}))

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := c.db.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start inbox watcher.
	if cfg.Ingest.Enabled {
		owner, err := c.optionalOwner(ctx, cfg.Ingest.OwnerEmail, "ingest")
		if err != nil {
			return err
		}
		if owner != "" {
			g.Go(func() error {
				return ingest.Watch(gCtx, cfg.Ingest.Dir, svc, owner, logger)
			})
		}
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// SSE streams never finish on their own; closing the broker ends
		// them so Shutdown can drain.
		svc.Close()
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the errgroup context so the watcher stops with the
// server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools over stdio. Logs go to stderr unless
// redirected with WithLogOutput.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, logger, err := setup(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	cfg := app.config

	c, err := openCore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.db.Close()

	svc := c.noteService(cfg)
	defer svc.Close()

	srv, err := c.mcpServer(ctx, cfg, svc)
	if err != nil {
		return err
	}
	return serveStdio(srv, logger)
}

func serveStdio(srv *mcpserver.Server, logger *slog.Logger) error {
	if err := srv.ServeStdio(); err != nil && !errors.Is(err, io.EOF) {
		logger.Error("mcp server error", slog.String("error", err.Error()))
		return err
	}
	return nil
}
