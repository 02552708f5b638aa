package httpapi

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"posledger/backend/internal/apperror"
	"posledger/backend/internal/domain"
	"posledger/backend/internal/logger"
	"posledger/backend/internal/service"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	csrfSecret    []byte
	log           *logger.Logger
	router        chi.Router
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string, log *logger.Logger) *API {
	if log == nil {
		log = logger.Default()
	}
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		panic(fmt.Sprintf("generate csrf secret: %v", err))
	}
	a := &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		csrfSecret:    csrfSecret,
		log:           log.WithComponent("http"),
	}
	a.router = a.routes()
	return a
}

// Handler returns the router. Rate limiter state lives in it, so callers
// must reuse the value rather than rebuild it per request.
func (a *API) Handler() http.Handler {
	return a.router
}

func (a *API) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		a.requestLogger,
		middleware.Recoverer,
		a.securityHeaders(),
		a.cors,
		limitBody,
		a.checkCSRF,
	)

	r.Get("/healthz", a.handleHealth)

	loginLimit := httprate.Limit(5, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, r, apperror.New("RATE_LIMITED", http.StatusTooManyRequests, "too many login attempts"))
		}),
	)
	cancelLimit := httprate.Limit(8, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, r, apperror.New("RATE_LIMITED", http.StatusTooManyRequests, "too many cancel attempts"))
		}),
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.With(loginLimit).Post("/auth/login", a.handleLogin)
		r.Get("/auth/csrf-token", a.handleCSRFToken)

		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth)

			r.Get("/products", a.handleListProducts)

			r.Route("/sales", func(r chi.Router) {
				r.Post("/", a.handleCreateSale)
				r.Get("/", a.handleListSales)
				r.Get("/daily", a.handleDailySummary)
				r.Get("/{ref}", a.handleGetSale)
				r.Post("/{ref}/return", a.handleReturnItems)
				r.With(cancelLimit).Post("/{ref}/cancel", a.handleCancelSale)
			})

			r.Route("/shifts", func(r chi.Router) {
				r.Post("/open", a.handleOpenShift)
				r.Get("/current", a.handleCurrentShift)
				r.Get("/summary", a.handleShiftSummary)
				r.Post("/close", a.handleCloseShift)
				r.Post("/cash-movements", a.handleCashMovement)
			})

			r.Route("/held-orders", func(r chi.Router) {
				r.Get("/", a.handleListHeldOrders)
				r.Post("/", a.handleHoldOrder)
				r.Post("/{id}/resume", a.handleResumeHeldOrder)
				r.Delete("/{id}", a.handleDiscardHeldOrder)
			})

			r.Route("/expenses", func(r chi.Router) {
				r.Get("/", a.handleListExpenses)
				r.Post("/", a.handleCreateExpense)
				r.Delete("/{id}", a.handleDeleteExpense)
			})

			r.Get("/settings", a.handleGetSettings)
			r.Get("/inventory/movements", a.handleStockMovements)

			r.Group(func(r chi.Router) {
				r.Use(requireRole(domain.RoleAdmin))
				r.Put("/settings", a.handleUpdateSettings)
				r.Post("/inventory/adjust", a.handleAdjustStock)
				r.Get("/inventory/adjustments", a.handleListAdjustments)
				r.Get("/inventory/integrity", a.handleStockIntegrity)
				r.Get("/audit-logs", a.handleAuditLogs)
				r.Get("/users/cashiers", a.handleListCashiers)
				r.Post("/users/cashiers", a.handleCreateCashier)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, apperror.NewNotFound("route", r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, apperror.New("METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed, "method not allowed"))
	})
	return r
}

// requestLogger puts a request-scoped logger into the context and logs one
// line per request once the handler returns.
func (a *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqLog := a.log.With("request_id", middleware.GetReqID(r.Context()))
		ctx := logger.WithLogger(r.Context(), reqLog)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		startedAt := time.Now()
		next.ServeHTTP(ww, r.WithContext(ctx))

		reqLog.Infow("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(startedAt),
		)
	})
}

func (a *API) securityHeaders() func(http.Handler) http.Handler {
	sec := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	})
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := sec.Process(w, r); err != nil {
				logger.FromContext(r.Context()).Warnw("secure headers blocked request", "error", err)
				writeError(w, r, apperror.NewForbidden("request blocked"))
				return
			}
			w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
			next.ServeHTTP(w, r)
		})
	}
}

func (a *API) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil && r.Method != http.MethodGet {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, r, errUnauthorized("missing bearer token"))
			return
		}

		actor, err := a.auth.ParseToken(strings.TrimSpace(authorization[len("Bearer "):]))
		if err != nil {
			writeError(w, r, errUnauthorized(err.Error()))
			return
		}

		ctx := service.WithActor(r.Context(), actor)
		reqLog := logger.FromContext(ctx).With("tenant_id", actor.TenantID, "user", actor.Username)
		next.ServeHTTP(w, r.WithContext(logger.WithLogger(ctx, reqLog)))
	})
}

func requireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := service.ActorFromContext(r.Context())
			if !ok || !isRoleAllowed(actor.Role, roles) {
				writeError(w, r, apperror.NewForbidden("forbidden role"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func errUnauthorized(message string) *apperror.AppError {
	return apperror.New("UNAUTHORIZED", http.StatusUnauthorized, message)
}

// csrfTokenForHour signs the hour bucket (unix seconds truncated to the hour).
func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

func (a *API) generateCSRFToken() string {
	return a.csrfTokenForHour(time.Now().UTC().Truncate(time.Hour).Unix())
}

// validateCSRFToken accepts the current and the previous hour bucket.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	current := time.Now().UTC().Truncate(time.Hour).Unix()
	return hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(current))) ||
		hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(current-3600)))
}

var csrfExemptPaths = []string{
	"/api/v1/auth/login",
}

func (a *API) checkCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			next.ServeHTTP(w, r)
			return
		}
		for _, exempt := range csrfExemptPaths {
			if r.URL.Path == exempt {
				next.ServeHTTP(w, r)
				return
			}
		}
		if !a.validateCSRFToken(strings.TrimSpace(r.Header.Get("X-CSRF-Token"))) {
			writeError(w, r, apperror.NewForbidden("missing or invalid CSRF token"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return apperror.NewValidation("invalid request body").WithDetail("reason", err.Error())
	}
	return nil
}

// decodeOptionalJSON is decodeJSON for endpoints whose body may be omitted.
func decodeOptionalJSON(r *http.Request, dest any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil && !errors.Is(err, io.EOF) {
		return apperror.NewValidation("invalid request body").WithDetail("reason", err.Error())
	}
	return nil
}

// saleRef reads the {ref} path segment. Receipt numbers arrive as "%23<n>".
func saleRef(r *http.Request) string {
	ref := chi.URLParam(r, "ref")
	if unescaped, err := url.PathUnescape(ref); err == nil {
		ref = unescaped
	}
	return strings.TrimSpace(ref)
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func parseTimeParam(raw string, name string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return &t, nil
	}
	return nil, apperror.NewValidation("invalid " + name).WithDetail("value", raw)
}

type errorBody struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

// writeError renders err as {error, code, details}. Messages of 5xx errors
// are replaced and the cause is logged instead.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperror.As(err)
	body := errorBody{Error: appErr.Message, Code: appErr.Code, Details: appErr.Details}
	if appErr.HTTPStatus >= 500 {
		logger.FromContext(r.Context()).Errorw("internal error", "status", appErr.HTTPStatus, "error", err)
		body = errorBody{Error: "internal server error", Code: apperror.CodeInternal}
	}
	writeJSON(w, appErr.HTTPStatus, body)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
