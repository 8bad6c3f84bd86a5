// Package server assembles all HTTP handlers and starts the server.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/cors"
	"github.com/unrolled/secure"

	"github.com/matthewbaird/rentroll/internal/activity"
	"github.com/matthewbaird/rentroll/internal/eventbus"
	"github.com/matthewbaird/rentroll/internal/handler"
	"github.com/matthewbaird/rentroll/internal/report"
)

// Config holds server configuration.
type Config struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
	Production     bool
	CORSOrigins    []string
	RateLimitRPM   int
	Logger         *slog.Logger
}

// Deps are the collaborators the routes are built from.
type Deps struct {
	Handler  handler.Deps
	Activity activity.Store
	Reporter *report.Reporter // optional
	Fanout   *eventbus.Fanout // optional; nil disables the event stream
}

// NewRouter registers every route behind the middleware stack.
func NewRouter(cfg Config, deps Deps) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	deps.Handler.Logger = logger

	r := chi.NewRouter()
	for _, mw := range middlewareStack(cfg, logger) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	if deps.Fanout != nil {
		// Long-lived; kept out of the request timeout.
		r.Get("/v1/events/stream", handler.NewStreamHandler(deps.Fanout, cfg.CORSOrigins, logger).ServeHTTP)
	}

	r.Group(func(r chi.Router) {
		timeout := cfg.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		r.Use(middleware.Timeout(timeout))
		r.Use(middleware.Compress(5))

		// --- Leases ---
		lh := handler.NewLeaseHandler(deps.Handler)
		r.Put("/v1/leases/{id}", lh.HandlePut)
		r.Get("/v1/leases/{id}", lh.HandleGet)
		r.Get("/v1/leases", lh.HandleList)
		r.Post("/v1/leases/{id}/end", lh.HandleEnd)
		r.Get("/v1/leases/{id}/schedule", lh.HandleSchedule)

		// --- Payments ---
		ph := handler.NewPaymentHandler(deps.Handler)
		r.Put("/v1/payments/{id}", ph.HandlePut)
		r.Get("/v1/payments/{id}", ph.HandleGet)
		r.Get("/v1/payments", ph.HandleList)
		r.Post("/v1/payments/{id}/status", ph.HandleStatus)

		// --- Units and properties ---
		proph := handler.NewPropertyHandler(deps.Handler)
		r.Put("/v1/units/{id}", proph.HandlePutUnit)
		r.Get("/v1/units/{id}", proph.HandleGetUnit)
		r.Get("/v1/units", proph.HandleListUnits)
		r.Put("/v1/properties/{id}", proph.HandlePutProperty)
		r.Get("/v1/properties/{id}", proph.HandleGetProperty)

		// --- Tenants and reports ---
		th := handler.NewTenantHandler(deps.Handler)
		r.Get("/v1/tenants/{id}/occupancy", th.HandleOccupancy)
		rh := handler.NewReportHandler(deps.Handler, deps.Reporter)
		r.Get("/v1/reports/rent-roll", rh.HandleRentRoll)

		// --- Activity ---
		if deps.Activity != nil {
			ah := handler.NewActivityHandler(deps.Activity)
			r.Get("/v1/activity/search", ah.HandleSearchActivity)
			r.Get("/v1/activity/summary/{entity_type}/{entity_id}", ah.HandleGetSignalSummary)
			r.Get("/v1/activity/{entity_type}/{entity_id}", ah.HandleGetEntityActivity)
		}
	})

	return r
}

func middlewareStack(cfg Config, logger *slog.Logger) []func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		SSLRedirect:        cfg.Production,
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:      !cfg.Production,
	})
	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPut, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	})
	rpm := cfg.RateLimitRPM
	if rpm <= 0 {
		rpm = 300
	}

	return []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		requestLogger(logger),
		middleware.Recoverer,
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := secureMiddleware.Process(w, r); err != nil {
					logger.Warn("secure headers blocked request", slog.Any("error", err))
					return
				}
				next.ServeHTTP(w, r)
			})
		},
		corsMiddleware.Handler,
		httprate.Limit(rpm, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)),
	}
}

// requestLogger logs one line per request.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.InfoContext(r.Context(), "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

// Run serves h on cfg.Addr until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, cfg Config, h http.Handler) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      h,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
