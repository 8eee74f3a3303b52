// Package httpapi exposes the application services over REST.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	app "github.com/travelties/service_layer/internal/app"
	"github.com/travelties/service_layer/internal/app/metrics"
	"github.com/travelties/service_layer/internal/auth"
	svcerrors "github.com/travelties/service_layer/internal/errors"
	"github.com/travelties/service_layer/internal/httputil"
	"github.com/travelties/service_layer/internal/middleware"
	"github.com/travelties/service_layer/pkg/logger"
)

// APIPrefix roots every authenticated endpoint.
const APIPrefix = "/api/v1"

// EmailApplier confirms email verification codes.
type EmailApplier interface {
	ApplyCode(ctx context.Context, oobCode string) (string, error)
}

// Options configures the HTTP surface.
type Options struct {
	Verifier      auth.Verifier
	EmailVerifier EmailApplier
	AppDeepLink   string
	CORSOrigins   []string
	// Limiter is shared with the cleanup job. Nil disables rate limiting.
	Limiter      *middleware.RateLimiter
	AuditLogPath string
	Log          *logger.Logger
}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app   *app.Application
	opts  Options
	log   *logger.Logger
	audit *auditLog
}

// NewHandler returns the full middleware-wrapped router.
func NewHandler(application *app.Application, opts Options) (http.Handler, error) {
	if opts.Log == nil {
		opts.Log = logger.NewDefault("http")
	}
	if opts.Verifier == nil {
		return nil, errors.New("httpapi: token verifier is required")
	}
	sink, err := newFileAuditSink(opts.AuditLogPath)
	if err != nil {
		return nil, err
	}
	h := &handler{app: application, opts: opts, log: opts.Log, audit: newAuditLog(500, sink)}

	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httputil.NotFound(w, "route not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorResponse(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
	})

	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/health", h.health).Methods(http.MethodGet)
	router.HandleFunc("/health/details", h.healthDetails).Methods(http.MethodGet)
	router.HandleFunc("/verify-email", h.verifyEmail).Methods(http.MethodGet)

	api := router.PathPrefix(APIPrefix).Subrouter()
	api.HandleFunc("/payments/webhook", h.paymentWebhook).Methods(http.MethodPost)
	h.userRoutes(api)
	h.tripRoutes(api)
	h.cardRoutes(api)
	h.checklistRoutes(api)
	h.galleryRoutes(api)
	h.pollRoutes(api)
	h.postRoutes(api)
	h.expenseRoutes(api)

	authMW := middleware.NewAuthMiddleware(opts.Verifier, opts.Log.Named("auth"), []string{
		"/health", "/health/", "/metrics", "/verify-email", APIPrefix + "/payments/webhook",
	})
	router.Use(middleware.MetricsMiddleware(), authMW.Handler)
	if opts.Limiter != nil {
		router.Use(opts.Limiter.Handler)
	}
	router.Use(h.auditMiddleware)

	cors := middleware.NewCORSMiddleware(opts.CORSOrigins)
	tracing := middleware.NewTracingMiddleware(opts.Log, "/health", "/metrics")
	return tracing.Handler(cors.Handler(router)), nil
}

func (h *handler) caller(w http.ResponseWriter, r *http.Request) (string, bool) {
	return httputil.RequireUserID(w, r)
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if svcerrors.HTTPStatus(err) >= 500 {
		h.log.WithContext(r.Context()).WithError(err).Error("request failed")
	}
	httputil.WriteError(w, r, err)
}

func vars(r *http.Request) map[string]string { return mux.Vars(r) }

func queryInt(r *http.Request, key string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
