package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/prudhvinik1/weddingsync/internal/logging"
	"github.com/prudhvinik1/weddingsync/internal/metrics"
	"github.com/prudhvinik1/weddingsync/internal/services"
)

type claimsKey struct{}

func withClaims(ctx context.Context, claims *services.TokenClaims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// claimsFrom returns the verified token of the request, or nil when auth is
// disabled.
func claimsFrom(ctx context.Context) *services.TokenClaims {
	claims, _ := ctx.Value(claimsKey{}).(*services.TokenClaims)
	return claims
}

// RequestLogger logs one line per request and stores a request-scoped
// logger in the context.
func RequestLogger(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			reqLogger := logger
			if reqID := middleware.GetReqID(r.Context()); reqID != "" {
				reqLogger = logger.With("request_id", reqID)
			}

			next.ServeHTTP(ww, r.WithContext(logging.With(r.Context(), reqLogger)))

			reqLogger.Infof("%s %s %d %dB %s", r.Method, r.URL.Path, statusOf(ww), ww.BytesWritten(), time.Since(start))
		})
	}
}

// InstrumentRoutes records request duration by route pattern.
func InstrumentRoutes(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			m.ObserveHTTPRequest(route, r.Method, statusOf(ww), time.Since(start).Seconds())
		})
	}
}

// Authenticate rejects requests without a valid bearer token.
func Authenticate(auth *services.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				writeError(w, r, services.ErrUnauthorized)
				return
			}

			claims, err := auth.VerifyToken(r.Context(), strings.TrimSpace(token))
			if err != nil {
				writeError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

// authorizeEvent checks that the caller's token covers sharedEventID. Blank
// ids are left to request validation.
func authorizeEvent(ctx context.Context, sharedEventID string) error {
	claims := claimsFrom(ctx)
	if claims == nil || strings.TrimSpace(sharedEventID) == "" {
		return nil
	}
	if !claims.CanAccess(sharedEventID) {
		return services.ErrForbidden
	}
	return nil
}

// authorizeUser checks that the caller acts as itself.
func authorizeUser(ctx context.Context, userID string) error {
	claims := claimsFrom(ctx)
	if claims == nil || strings.TrimSpace(userID) == "" {
		return nil
	}
	if claims.UserID != userID {
		return services.ErrForbidden
	}
	return nil
}

func statusOf(ww middleware.WrapResponseWriter) int {
	if ww.Status() == 0 {
		return http.StatusOK
	}
	return ww.Status()
}
