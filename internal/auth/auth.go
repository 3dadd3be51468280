// Package auth verifies the session cookie issued by the surrounding
// platform and resolves it to an explicit owner identity. Session
// issuance (login, logout) lives outside this service; handlers receive
// the identity as a parameter and scope every query with it.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

const (
	// CookieName carries the signed session token.
	CookieName = "outlay_session"

	// LoginPath is where unauthenticated browser requests are sent.
	LoginPath = "/authentication/login"
)

var ErrInvalidToken = errors.New("invalid session token")

// Identity is the authenticated owner of a request.
type Identity struct {
	UserID int64
}

// Verifier validates session tokens of the form "<uid>:<hex hmac>".
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Token builds a signed token for the given user id. Used by tests and
// by platform tooling that mints sessions.
func (v *Verifier) Token(userID int64) string {
	uid := strconv.FormatInt(userID, 10)
	return uid + ":" + v.sign(uid)
}

// Verify checks a token's signature and returns the identity it names.
func (v *Verifier) Verify(token string) (Identity, error) {
	uid, sig, ok := strings.Cut(token, ":")
	if !ok {
		return Identity{}, ErrInvalidToken
	}
	if !hmac.Equal([]byte(v.sign(uid)), []byte(sig)) {
		return Identity{}, ErrInvalidToken
	}
	id, err := strconv.ParseInt(uid, 10, 64)
	if err != nil || id <= 0 {
		return Identity{}, fmt.Errorf("%w: bad user id", ErrInvalidToken)
	}
	return Identity{UserID: id}, nil
}

func (v *Verifier) sign(uid string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(uid))
	return hex.EncodeToString(mac.Sum(nil))
}

// FromRequest resolves the request's session cookie to an identity.
func (v *Verifier) FromRequest(r *http.Request) (Identity, error) {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	return v.Verify(c.Value)
}

// RequireUser wraps a handler that needs an authenticated owner.
// Browser requests without a valid session are redirected to the login
// route.
func (v *Verifier) RequireUser(next func(w http.ResponseWriter, r *http.Request, id Identity)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := v.FromRequest(r)
		if err != nil {
			http.Redirect(w, r, LoginPath, http.StatusFound)
			return
		}
		next(w, r, id)
	}
}

// OptionalUser wraps a handler that tolerates anonymous requests. The
// ok flag is false when no valid session is present.
func (v *Verifier) OptionalUser(next func(w http.ResponseWriter, r *http.Request, id Identity, ok bool)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := v.FromRequest(r)
		next(w, r, id, err == nil)
	}
}
