package validation

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/kanb1/clinic-ai-app-sub001/pkg/types"
)

// InvalidInputMessage is the message of every validation failure response
const InvalidInputMessage = "Invalid input"

type bodyKey struct{}

// Body returns middleware that decodes the request body into T, checks it
// with v and stores it for the handler. Violations are answered with
// 400 {"message": "Invalid input", "errors": [...]} and never reach the handler.
func Body[T any](v *Validator) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body T
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeInvalid(w, []string{"request body must be valid JSON"})
				return
			}

			if errs := v.Check(body); len(errs) > 0 {
				writeInvalid(w, errs)
				return
			}

			ctx := context.WithValue(r.Context(), bodyKey{}, body)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FromContext returns the body stored by Body[T]
func FromContext[T any](ctx context.Context) (T, bool) {
	body, ok := ctx.Value(bodyKey{}).(T)
	return body, ok
}

func writeInvalid(w http.ResponseWriter, errs []string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(types.ErrorBody{Message: InvalidInputMessage, Errors: errs})
}
