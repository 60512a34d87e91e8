// Package server wires the HTTP entry point: operational routes on a gin
// engine and a dispatch chain (API router, then static files) for everything else.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/denosaur/dinosaurs/internal/api"
	"github.com/denosaur/dinosaurs/internal/config"
	"github.com/denosaur/dinosaurs/internal/identity"
	"github.com/denosaur/dinosaurs/pkg/logger"
	"github.com/denosaur/dinosaurs/pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 10 * time.Second

// SessionSource reports the process' anonymous session, if any.
type SessionSource interface {
	CurrentSession() *identity.Session
}

// Options are the process-lifetime collaborators shared by every request.
type Options struct {
	Router       *api.Router
	Static       http.Handler
	Session      SessionSource
	StoreBackend string
	// Redis is probed by /ready and backs the limiter when RateLimit.UseRedis is set.
	Redis     *redis.Client
	RateLimit config.RateLimitConfig
	// Timeouts applied by Serve; zero means none.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Server struct {
	opts    Options
	engine  *gin.Engine
	started time.Time
}

func New(opts Options) *Server {
	s := &Server{opts: opts, started: time.Now()}

	r := gin.New()
	// unregistered paths belong to the dispatch chain, never to a redirect
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.RequestLogger(), gin.CustomRecovery(s.recovered))

	if opts.RateLimit.Enabled {
		if opts.RateLimit.UseRedis && opts.Redis != nil {
			win := time.Duration(opts.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(opts.Redis, opts.RateLimit.RPS, opts.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(opts.RateLimit.RPS, opts.RateLimit.Burst))
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	r.GET("/ready", s.ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	RegisterSwagger(r)

	r.NoRoute(s.dispatch)
	s.engine = r
	return s
}

// Handler exposes the engine, mostly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// dispatch tries the API router first and falls back to static files.
func (s *Server) dispatch(c *gin.Context) {
	out, err := s.opts.Router.Route(c.Request)
	if err != nil {
		middleware.SetRouteKind(c, middleware.KindAPI)
		logger.Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.String(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}
	if out.IsMatched() {
		middleware.SetRouteKind(c, middleware.KindAPI)
		if err := out.Write(c.Writer); err != nil {
			logger.Warnf("write response for %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		}
		return
	}
	middleware.SetRouteKind(c, middleware.KindStatic)
	s.opts.Static.ServeHTTP(c.Writer, c.Request)
}

func (s *Server) recovered(c *gin.Context, v interface{}) {
	logger.Errorf("panic serving %s %s: %v", c.Request.Method, c.Request.URL.Path, v)
	c.String(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	c.Abort()
}

// ready returns 200 only when the anonymous session exists and the optional
// Redis dependency answers.
func (s *Server) ready(c *gin.Context) {
	ready := true
	deps := map[string]bool{}

	deps["auth"] = s.opts.Session != nil && s.opts.Session.CurrentSession() != nil
	if !deps["auth"] {
		ready = false
	}

	deps["store"] = s.opts.StoreBackend != ""
	if !deps["store"] {
		ready = false
	}

	if s.opts.Redis != nil && s.opts.RateLimit.UseRedis {
		deps["redis"] = s.opts.Redis.Ping(c.Request.Context()).Err() == nil
		if !deps["redis"] {
			ready = false
		}
	}

	body := gin.H{"deps": deps, "backend": s.opts.StoreBackend, "uptime": time.Since(s.started).String()}
	if !ready {
		body["status"] = "not_ready"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	body["status"] = "ready"
	c.JSON(http.StatusOK, body)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully, letting in-flight requests finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.engine,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Infof("shutting down HTTP server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

// ListenAndServe binds addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	logger.Infof("Web server listening on http://%s", ln.Addr())
	return s.Serve(ctx, ln)
}
