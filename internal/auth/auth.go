// Package auth validates the administrative secret.
package auth

import (
	"github.com/mvdveer/fediviz/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// Authenticator checks candidate secrets against a pre-configured bcrypt
// hash. It holds no session state: every privileged request re-sends the
// secret and is validated the same way.
type Authenticator struct {
	secretHash []byte
}

// New creates an Authenticator from the bcrypt hash of the admin secret.
// An empty hash is allowed and makes every check fail.
func New(secretHash string) *Authenticator {
	return &Authenticator{secretHash: []byte(secretHash)}
}

// Check compares secret against the configured hash. It returns
// domain.ErrForbidden on any mismatch; a missing configured hash is
// indistinguishable from a wrong secret.
func (a *Authenticator) Check(secret string) error {
	if secret == "" || len(a.secretHash) == 0 {
		return domain.ErrForbidden
	}
	if err := bcrypt.CompareHashAndPassword(a.secretHash, []byte(secret)); err != nil {
		return domain.ErrForbidden
	}
	return nil
}
