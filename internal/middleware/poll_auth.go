package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"schedpoll/internal/domain"
	"schedpoll/internal/service"
	"schedpoll/pkg/errors"
	"schedpoll/pkg/logger"
)

// MaxBodyBytes bounds every poll request body
const MaxBodyBytes = 1 << 20

type pollAuthEnvelope struct {
	Token    string             `json:"token"`
	UserData domain.Credentials `json:"userData"`
}

// PollAuth authenticates the member named in the body's userData against the
// poll named by token. The body is restored for the handler and the
// authenticated actor is stored in the request context.
//
// failures counts rejected credentials per client; a client that exhausted
// it gets 429 before any password is checked. When the handler answers with
// an error status, a one-time token spent on the request is handed back.
func PollAuth(authorizer service.Authorizer, failures *RateLimiter, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			if failures != nil && failures.Blocked(ip) {
				w.Header().Set("Retry-After", "60")
				WriteError(w, r, errors.NewRateLimitError("Too many failed attempts, try again later"), log)
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
			if err != nil {
				WriteError(w, r, errors.NewValidationError("Request body too large or unreadable", nil), log)
				return
			}
			_ = r.Body.Close()

			var env pollAuthEnvelope
			if err := json.Unmarshal(body, &env); err != nil {
				WriteError(w, r, errors.NewValidationError("Invalid request body", nil), log)
				return
			}

			actor, err := authorizer.Authorize(r.Context(), env.Token, env.UserData)
			if err != nil {
				if failures != nil && errors.IsType(err, errors.ErrorTypeAuthentication) {
					failures.Allow(ip)
				}
				WriteError(w, r, err, log)
				return
			}

			log.WithFields(map[string]interface{}{
				"request_id": GetRequestID(r.Context()),
				"poll_id":    actor.Poll.ID,
				"member_id":  actor.Member.ID,
				"host":       actor.Member.Host,
			}).Debug("Poll member authenticated")

			r = r.WithContext(context.WithValue(r.Context(), ActorContextKey, actor))
			r.Body = io.NopCloser(bytes.NewReader(body))
			r.ContentLength = int64(len(body))

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.status >= http.StatusBadRequest && actor.UsedOneTimeToken() {
				if err := authorizer.Release(context.WithoutCancel(r.Context()), actor); err != nil {
					log.WithError(err).Error("Failed to release one-time token")
				}
			}
		})
	}
}

// GetActor returns the authenticated actor stored by PollAuth
func GetActor(ctx context.Context) (*service.Actor, bool) {
	actor, ok := ctx.Value(ActorContextKey).(*service.Actor)
	return actor, ok && actor != nil
}
