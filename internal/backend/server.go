package backend

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"mediachat/internal/config"
	"mediachat/internal/logging"
	"mediachat/internal/transport"
)

// shutdownGrace bounds how long in-flight requests get on shutdown.
const shutdownGrace = 5 * time.Second

// Server serves POST /api/chat and GET /healthz.
type Server struct {
	echo      *echo.Echo
	addr      string
	assistant Assistant
	catalog   *Catalog
	limiter   *rate.Limiter
}

// NewServer wires the HTTP routes. A non-positive PerSecond disables rate
// limiting.
func NewServer(cfg config.ServerConfig, assistant Assistant, catalog *Catalog) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{echo: e, addr: cfg.Addr, assistant: assistant, catalog: catalog}
	if cfg.RateLimit.PerSecond > 0 {
		burst := cfg.RateLimit.Burst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.PerSecond), burst)
	}

	e.HTTPErrorHandler = s.handleError
	e.Use(middleware.Recover())
	e.Use(s.requestLog)

	e.GET("/healthz", s.handleHealth)
	e.POST(transport.ChatPath, s.handleChat, s.rateLimit)
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	log := logging.Get(logging.CategoryServer)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("listening on %s (assistant=%s)", s.addr, s.assistant.Name())
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server stopped")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		log.Info("shutting down")
		return s.echo.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok", "assistant": s.assistant.Name()})
}

func (s *Server) handleChat(c echo.Context) error {
	ctx := c.Request().Context()
	log := logging.Get(logging.CategoryServer)

	var req transport.ChatRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, http.StatusBadRequest, "invalid_request_error: malformed request body")
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return writeError(c, http.StatusBadRequest, "invalid_request_error: message is required")
	}

	text, err := s.assistant.Reply(ctx, message, transport.DecodeHistory(req.History))
	if err != nil {
		var ue *UpstreamError
		if errors.As(err, &ue) {
			log.Warn("assistant failed (%d): %s", ue.Status, ue.Text)
			return writeError(c, ue.Status, ue.Text)
		}
		log.Error("assistant failed: %v", err)
		return writeError(c, http.StatusInternalServerError, err.Error())
	}

	resp := transport.ChatResponse{Response: &text}
	if s.catalog != nil {
		stats, err := s.catalog.Stats(ctx)
		if err != nil {
			log.Warn("catalog stats unavailable: %v", err)
		} else {
			payload := transport.PayloadFromStats(stats)
			resp.Data = &payload
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.limiter != nil && !s.limiter.Allow() {
			return writeError(c, http.StatusTooManyRequests, "rate_limit: too many requests")
		}
		return next(c)
	}
}

func (s *Server) requestLog(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		logging.Get(logging.CategoryServer).Debug("%s %s -> %d in %s",
			c.Request().Method, c.Request().URL.Path, c.Response().Status, time.Since(start))
		return err
	}
}

// handleError writes framework errors (unknown route, wrong method, panics)
// in the same {"error": ...} shape as handler failures.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status := http.StatusInternalServerError
	text := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		if msg, ok := he.Message.(string); ok {
			text = msg
		}
	}
	_ = writeError(c, status, text)
}

func writeError(c echo.Context, status int, text string) error {
	return c.JSON(status, transport.ErrorResponse{Error: text})
}

// Serve opens the catalog, builds the configured assistant and runs the
// service until ctx is cancelled.
func Serve(ctx context.Context, cfg config.ServerConfig) error {
	catalog, err := OpenCatalog(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer catalog.Close()

	if cfg.SeedDemo {
		if _, err := catalog.SeedDemo(ctx); err != nil {
			return err
		}
	}
	if n, err := catalog.Count(ctx); err == nil {
		logging.Get(logging.CategoryServer).Info("serving catalog %s with %d records", catalog.Path(), n)
	}

	assistant, err := NewAssistant(ctx, cfg.LLM, catalog)
	if err != nil {
		return err
	}
	return NewServer(cfg, assistant, catalog).Run(ctx)
}
