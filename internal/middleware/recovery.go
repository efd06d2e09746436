package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/campusmind/portal/backend/internal/logging"
	"github.com/campusmind/portal/backend/pkg/utils"
)

// Recovery turns panics into a 500 JSON response and logs the stack.
func Recovery(logger *zap.Logger) func(http.Handler) http.Handler {
	logger = logging.OrNop(logger).Named("http")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.Error("panic recovered",
					zap.String("request_id", chimw.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("panic", fmt.Sprintf("%v", rec)),
					zap.ByteString("stack", debug.Stack()),
				)

				if r.Header.Get("Connection") != "Upgrade" {
					utils.RespondJSON(w, http.StatusInternalServerError, map[string]string{
						"code":  "INTERNAL_ERROR",
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
