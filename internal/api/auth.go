// internal/api/auth.go
package api

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	apperrors "loan-manager/internal/common/errors"

	"golang.org/x/crypto/bcrypt"
)

const basicAuthRealm = `Basic realm="lms-scoring", charset="UTF-8"`

// BasicAuth guards the endpoints the scoring engine calls back into.
// Only a bcrypt hash of the password is kept in memory.
type BasicAuth struct {
	username string
	hash     []byte
	errors   *apperrors.ErrorHandler
}

func NewBasicAuth(username, password string, cost int, errHandler *apperrors.ErrorHandler) (*BasicAuth, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("basic auth requires username and password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return &BasicAuth{username: username, hash: hash, errors: errHandler}, nil
}

func (a *BasicAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok {
			a.reject(w, r, "missing credentials")
			return
		}
		if subtle.ConstantTimeCompare([]byte(user), []byte(a.username)) != 1 {
			a.reject(w, r, "unknown user")
			return
		}
		if err := bcrypt.CompareHashAndPassword(a.hash, []byte(pass)); err != nil {
			a.reject(w, r, "bad password")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *BasicAuth) reject(w http.ResponseWriter, r *http.Request, reason string) {
	w.Header().Set("WWW-Authenticate", basicAuthRealm)
	a.errors.WriteError(w, r, apperrors.NewUnauthorizedError(reason))
}
