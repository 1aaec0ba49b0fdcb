package web

import (
	"net/http"
	"time"

	"imagine-service/internal/config"
	"imagine-service/internal/infra/logging"
	"imagine-service/internal/infra/storage"
	"imagine-service/internal/usecase"

	red "imagine-service/internal/infra/redis"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server wires the public HTTP surface: intake, job reads, the provider
// webhook, signed downloads, health and metrics.
type Server struct {
	imagineUC *usecase.ImagineUseCase
	jobUC     *usecase.JobUseCase
	webhookUC *usecase.WebhookUseCase
	files     *storage.FileStore
	limiter   *red.RateLimiter

	jwtSecret       string
	dev             bool
	maxUploadBytes  int64
	intakePerMinute int
	allowedOrigins  []string

	log *zerolog.Logger
}

func NewServer(
	imagineUC *usecase.ImagineUseCase,
	jobUC *usecase.JobUseCase,
	webhookUC *usecase.WebhookUseCase,
	files *storage.FileStore,
	limiter *red.RateLimiter,
	cfg *config.Config,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "WebServer").Logger()
	return &Server{
		imagineUC:       imagineUC,
		jobUC:           jobUC,
		webhookUC:       webhookUC,
		files:           files,
		limiter:         limiter,
		jwtSecret:       cfg.Auth.JWTSecret,
		dev:             cfg.Runtime.Dev,
		maxUploadBytes:  cfg.Limits.MaxUploadBytes,
		intakePerMinute: cfg.Limits.IntakePerMinute,
		allowedOrigins:  cfg.Server.AllowedOrigins,
		log:             &l,
	}
}

// Routes builds the router. The webhook endpoint is deliberately outside the
// auth group: the provider calls it, trust comes from network topology.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.RealIP, chimw.Recoverer)
	r.Use(s.requestLogger)
	r.Use(corsMiddleware(s.allowedOrigins))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/files", s.handleFileDownload)
	r.Post("/api/webhook", s.handleWebhook)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.With(s.intakeRateLimit).Post("/api/imagine", s.handleImagine)
		r.Get("/api/jobs", s.handleJobList)
		r.Get("/api/jobs/{jobID}", s.handleJobGet)
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := logging.WithRequestID(r.Context(), chimw.GetReqID(r.Context()))
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))
		logging.With(ctx, s.log).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}
