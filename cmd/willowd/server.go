package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogecho "github.com/samber/slog-echo"

	"github.com/willowbb/willow/flags"
	"github.com/willowbb/willow/flags/store"
	"github.com/willowbb/willow/internal/dbutil"
	"github.com/willowbb/willow/notifs"
	"github.com/willowbb/willow/target"
	"github.com/willowbb/willow/users"
)

type ServerConfig struct {
	Logger           *slog.Logger
	DatabaseURL      string
	RedisURL         string
	Bind             string
	MinReputation    int64
	MaxDBConnections int
	UserCacheTTL     time.Duration
}

type Server struct {
	echo   *echo.Echo
	httpd  *http.Server
	engine *flags.Engine
	logger *slog.Logger
}

func NewServer(cfg ServerConfig) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	db, err := dbutil.Open(cfg.DatabaseURL, cfg.MaxDBConnections)
	if err != nil {
		return nil, err
	}

	posts, err := target.NewGormPosts(db)
	if err != nil {
		return nil, err
	}
	accounts, err := target.NewGormUsers(db)
	if err != nil {
		return nil, err
	}
	reg := target.NewRegistry()
	reg.Register(target.KindPost, posts)
	reg.Register(target.KindUser, accounts)

	var dir users.Directory
	dir, err = users.NewGormDirectory(db, func(ctx context.Context, kind, id string) (string, error) {
		res, err := reg.Resolver(target.Kind(kind))
		if err != nil {
			return "", err
		}
		return res.OwnerUID(ctx, id)
	})
	if err != nil {
		return nil, err
	}

	var st store.Store
	if cfg.RedisURL != "" {
		st, err = store.NewRedisStore(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		dir, err = users.NewCachedDirectory(dir, cfg.RedisURL, cfg.UserCacheTTL)
		if err != nil {
			return nil, err
		}
	} else {
		logger.Warn("no redis-url configured, flag store is in-memory and non-durable")
		st = store.NewMemStore()
	}

	queue, err := notifs.NewQueue(db)
	if err != nil {
		return nil, err
	}

	engine := flags.NewEngine(logger, st, dir, reg, queue, flags.Config{
		MinReputation: cfg.MinReputation,
	})

	e := echo.New()
	e.HideBanner = true
	e.Use(slogecho.New(logger))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("64K"))

	srv := &Server{
		echo:   e,
		engine: engine,
		logger: logger,
	}
	srv.httpd = &http.Server{
		Handler:        srv,
		Addr:           cfg.Bind,
		WriteTimeout:   time.Minute,
		ReadTimeout:    time.Minute,
		MaxHeaderBytes: 1 * (1024 * 1024),
	}

	e.GET("/_health", srv.handleHealthCheck)
	e.POST("/api/flags", srv.handleCreateFlag)
	e.GET("/api/flags", srv.handleListFlags)
	e.GET("/api/flags/:id", srv.handleGetFlag)
	e.PUT("/api/flags/:id", srv.handleUpdateFlag)
	e.GET("/api/flags/:id/notes", srv.handleGetNotes)
	e.POST("/api/flags/:id/notes", srv.handleAppendNote)

	return srv, nil
}

func (srv *Server) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	srv.echo.ServeHTTP(rw, req)
}

// RunAPI serves the HTTP API until SIGINT or SIGTERM, then shuts down
// gracefully.
func (srv *Server) RunAPI() error {
	srv.logger.Info("starting server", "bind", srv.httpd.Addr)
	go func() {
		if err := srv.httpd.ListenAndServe(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				srv.logger.Error("HTTP server shutting down unexpectedly", "err", err)
			}
		}
	}()

	quit := make(chan struct{})
	exitSignals := make(chan os.Signal, 1)
	signal.Notify(exitSignals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-exitSignals
		srv.logger.Info("received OS exit signal", "signal", sig)
		if err := srv.Shutdown(); err != nil {
			srv.logger.Error("HTTP server shutdown error", "err", err)
		}
		close(quit)
	}()
	<-quit
	srv.logger.Info("graceful shutdown complete")
	return nil
}

func (srv *Server) RunMetrics(listen string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, mux)
}

func (srv *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.httpd.Shutdown(ctx)
}

type GenericStatus struct {
	Daemon  string `json:"daemon"`
	Status  string `json:"status"`
	Message string `json:"msg,omitempty"`
}

func (srv *Server) handleHealthCheck(c echo.Context) error {
	return c.JSON(200, GenericStatus{Status: "ok", Daemon: "willowd"})
}
