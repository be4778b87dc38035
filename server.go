package verifier

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gematik/zero-lab/go/verifier/keystore"
	"github.com/gematik/zero-lab/go/verifier/nonce"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/segmentio/ksuid"
)

const maxPresentationSize = 1 << 20

type Server struct {
	Address   string
	endpoints EndpointsConfig
	store     nonce.Store
	nonces    *nonce.StoreService
	gate      *Gate
	decoders  Decoders
	keyStore  *keystore.Store
	metrics   *metrics
}

type ChallengeResponse struct {
	Nonce string `json:"nonce"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type Error struct {
	HttpStatus int    `json:"-"`
	Message    string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d: %s", e.HttpStatus, e.Message)
}

// New validates the configuration and connects the configured nonce store.
func New(cfg *Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	store, err := cfg.OpenStore()
	if err != nil {
		return nil, fmt.Errorf("open nonce store: %w", err)
	}
	s, err := NewWithStore(cfg, store)
	if err != nil {
		store.Close()
		return nil, err
	}
	return s, nil
}

// NewWithStore builds the server around an already connected store. The
// server takes ownership of the store and closes it in Close.
func NewWithStore(cfg *Config, store nonce.Store) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	nonces, err := nonce.NewStoreService(store, cfg.NonceOptions())
	if err != nil {
		return nil, fmt.Errorf("create nonce service: %w", err)
	}

	s := &Server{
		Address:   cfg.Address,
		endpoints: cfg.Endpoints,
		store:     store,
		nonces:    nonces,
		gate:      NewGate(nonces),
		decoders:  DefaultDecoders(),
		metrics:   newMetrics(),
	}

	if path := cfg.KeyStorePath(); path != "" {
		s.keyStore, err = keystore.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open key store: %w", err)
		}
		slog.Info("opened key store", "path", path)
	}

	return s, nil
}

// RegisterDecoder makes the verify endpoint accept presentations of the
// given media type. Register decoders before the server starts serving.
func (s *Server) RegisterDecoder(mediaType string, decoder PresentationDecoder) {
	s.decoders.Register(mediaType, decoder)
}

func (s *Server) Close() {
	s.store.Close()
	if s.keyStore != nil {
		if err := s.keyStore.Close(); err != nil {
			slog.Warn("failed to close key store", "error", err)
		}
	}
}

// Echo returns a ready to start echo instance serving all routes.
func (s *Server) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string {
			return ksuid.New().String()
		},
	}))
	e.Use(requestLogger())

	s.MountRoutes(e.Group(""))
	return e
}

func (s *Server) MountRoutes(group *echo.Group) {
	group.Use(ErrorHandlerMiddleware)

	group.GET(s.endpoints.Verify, s.IssueChallengeEndpoint)
	group.POST(s.endpoints.Verify+"/:nonce", s.VerifyPresentationEndpoint)
	group.GET(s.endpoints.Health, s.HealthEndpoint)
	group.GET(s.endpoints.Metrics, s.metrics.handler())
}

func (s *Server) IssueChallengeEndpoint(c echo.Context) error {
	n, err := s.nonces.Get(c.Request().Context())
	if err != nil {
		s.metrics.storeErrors.WithLabelValues("issue").Inc()
		return fmt.Errorf("issue challenge: %w", err)
	}
	s.metrics.noncesIssued.Inc()

	c.Response().Header().Set("Cache-Control", "no-store")
	return c.JSON(http.StatusOK, &ChallengeResponse{Nonce: n})
}

func (s *Server) VerifyPresentationEndpoint(c echo.Context) error {
	presentation, err := s.readPresentation(c)
	if err != nil {
		s.metrics.presentations.WithLabelValues(resultMalformed).Inc()
		return &Error{
			HttpStatus: http.StatusBadRequest,
			Message:    err.Error(),
		}
	}

	decision, err := s.gate.VerifyPresentation(c.Request().Context(), c.Param("nonce"), presentation)
	if err != nil {
		s.metrics.storeErrors.WithLabelValues("redeem").Inc()
		s.metrics.presentations.WithLabelValues(resultStoreError).Inc()
		return err
	}

	switch decision.Outcome {
	case OutcomeSuccess:
		s.metrics.presentations.WithLabelValues(resultSuccess).Inc()
		return c.JSON(http.StatusOK, &MessageResponse{Message: decision.Message})
	default:
		s.metrics.presentations.WithLabelValues(resultInvalidNonce).Inc()
		return c.JSON(http.StatusBadRequest, &MessageResponse{Message: decision.Message})
	}
}

func (s *Server) readPresentation(c echo.Context) (Presentation, error) {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxPresentationSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrMalformedRequest, err)
	}
	if len(body) > maxPresentationSize {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", ErrMalformedRequest, maxPresentationSize)
	}
	return s.decoders.Decode(c.Request().Header.Get(echo.HeaderContentType), body)
}

func (s *Server) HealthEndpoint(c echo.Context) error {
	ctx := c.Request().Context()
	if err := s.nonces.Ping(ctx); err != nil {
		slog.Error("health check failed", "error", err)
		return c.JSON(http.StatusServiceUnavailable, &MessageResponse{Message: "nonce store unavailable"})
	}
	if s.keyStore != nil {
		if err := s.keyStore.Ping(ctx); err != nil {
			slog.Error("health check failed", "error", err)
			return c.JSON(http.StatusServiceUnavailable, &MessageResponse{Message: "key store unavailable"})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// ErrorHandlerMiddleware renders every error as {"message": ...}. Store
// failures are reported without detail; the cause only goes to the log.
func ErrorHandlerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		if err == nil {
			return nil
		}
		requestID := c.Response().Header().Get(echo.HeaderXRequestID)

		var verifierErr *Error
		var echoErr *echo.HTTPError
		switch {
		case errors.As(err, &verifierErr):
			slog.Warn("request rejected", "error", err, "path", c.Path(), "request_id", requestID)
			return c.JSON(verifierErr.HttpStatus, verifierErr)
		case errors.Is(err, nonce.ErrStoreUnavailable):
			slog.Error("nonce store unavailable", "error", err, "path", c.Path(), "request_id", requestID)
			return c.JSON(http.StatusServiceUnavailable, &Error{
				HttpStatus: http.StatusServiceUnavailable,
				Message:    "nonce store unavailable",
			})
		case errors.As(err, &echoErr):
			return c.JSON(echoErr.Code, &Error{
				HttpStatus: echoErr.Code,
				Message:    fmt.Sprint(echoErr.Message),
			})
		default:
			slog.Error("unexpected error", "error", err, "path", c.Path(), "request_id", requestID)
			return c.JSON(http.StatusInternalServerError, &Error{
				HttpStatus: http.StatusInternalServerError,
				Message:    "internal server error",
			})
		}
	}
}

// requestLogger logs route patterns rather than URIs so nonces stay out of
// the access log.
func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogRoutePath: true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("request",
				"method", v.Method,
				"route", v.RoutePath,
				"status", v.Status,
				"latency", v.Latency,
				"remote_ip", v.RemoteIP,
				"request_id", v.RequestID,
			)
			return nil
		},
	})
}
