// Package auth provides HTTP basic authentication backed by bcrypt.
//
// The server stores only a bcrypt hash of the password. HashPassword is
// exposed so operators can mint a hash from the CLI and paste it into
// config or an environment variable.
//
// Example:
//
//	hash, _ := auth.HashPassword("s3cret")
//	verifier := auth.NewVerifier("admin", hash)
//	handler = verifier.Middleware(handler)
package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned when the username or password does
// not match. Both failure modes map to the same error so responses do
// not leak which part was wrong.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Verifier checks basic-auth credentials against a single account.
type Verifier struct {
	username     string
	passwordHash string
}

// NewVerifier builds a verifier for one username and its bcrypt hash.
func NewVerifier(username, passwordHash string) *Verifier {
	return &Verifier{username: username, passwordHash: passwordHash}
}

// HashPassword hashes a plaintext password with the default bcrypt cost.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify checks one username/password pair.
func (v *Verifier) Verify(username, password string) error {
	// Constant-time compare on the username; bcrypt handles the password.
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(v.username)) == 1
	hashErr := bcrypt.CompareHashAndPassword([]byte(v.passwordHash), []byte(password))
	if !userOK || hashErr != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Middleware wraps next with a basic-auth challenge.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok || v.Verify(username, password) != nil {
			w.Header().Set("WWW-Authenticate", `Basic realm="socgraph"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
