// Package server assembles the HTTP router and the background sweeper.
package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	authhandler "mynotes-auth-service/internal/auth/handler"
	"mynotes-auth-service/internal/httputil"
)

// New returns the root handler: auth routes plus /health, wrapped with
// request logging and OTel HTTP instrumentation.
func New(auth *authhandler.AuthHandlers, logger *logrus.Logger) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", health).Methods("GET")
	auth.RegisterRoutes(r)
	return otelhttp.NewHandler(requestLogging(logger)(r), "mynotes-auth")
}

func health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
	}{Status: "ok"})
}

// statusRecorder captures the response status for the request log line.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func requestLogging(logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start).String(),
			}).Info("request")
		})
	}
}
