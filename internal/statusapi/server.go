package statusapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/danmuck/edgelink/internal/auth"
	"github.com/danmuck/edgelink/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const (
	version         = "0.1.0"
	shutdownTimeout = 5 * time.Second
)

var ErrTrackerRequired = errors.New("statusapi: tracker required")

type Options struct {
	CorsOrigins []string
	// Token, when set, is required as a bearer token on every route except /health.
	Token string
}

type Server struct {
	ID      string
	tracker *Tracker
	router  *gin.Engine
	guard   gin.HandlerFunc
}

func New(id string, tracker *Tracker, opts Options) (*Server, error) {
	if tracker == nil {
		return nil, ErrTrackerRequired
	}
	if strings.TrimSpace(id) == "" {
		id = "edgelink"
	}
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.StatusRequests(id, log.Logger))
	if origins := normalizeOrigins(opts.CorsOrigins); len(origins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: origins,
			AllowMethods: []string{"GET"},
			AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
			MaxAge:       12 * time.Hour,
		}))
	}
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{ID: id, tracker: tracker, router: r}
	if token := strings.TrimSpace(opts.Token); token != "" {
		s.guard = auth.Require(auth.StaticToken{Token: token})
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

func (s *Server) registerRoutes() {
	open := s.router.Group("/", observability.MarkAccess(observability.AccessOpen))
	open.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.tracker.Snapshot().Started).String(),
			"service": s.ID,
			"version": version,
		})
	})

	routes := s.router.Group("/", observability.MarkAccess(observability.AccessGuarded))
	if s.guard != nil {
		routes.Use(s.guard)
	}

	routes.GET("/ready", func(c *gin.Context) {
		status := http.StatusOK
		ready := s.tracker.Ready()
		if !ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"ready": ready, "service": s.ID})
	})

	routes.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.tracker.Snapshot())
	})

	routes.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	log.Info().Str("addr", ln.Addr().String()).Msg("status api listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	<-errCh
	return nil
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}
