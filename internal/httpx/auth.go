package httpx

import (
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"
)

// Realm is sent in the Basic challenge.
const Realm = "Secure Area"

// BasicAuth holds one accepted credential pair. The zero value disables the
// check.
type BasicAuth struct {
	User string
	Pass string
}

// Enabled reports whether credentials are configured.
func (a BasicAuth) Enabled() bool { return a.User != "" || a.Pass != "" }

// Check reports whether r carries the configured credentials. A missing or
// malformed header fails the check.
func (a BasicAuth) Check(r *http.Request) bool {
	if !a.Enabled() {
		return true
	}
	h := r.Header.Get("Authorization")
	scheme, enc, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Basic") {
		return false
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(enc))
	if err != nil {
		return false
	}
	user, pass, ok := strings.Cut(string(raw), ":")
	if !ok {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(a.User)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(a.Pass)) == 1
	return userOK && passOK
}

// Challenge writes a 401 with the Basic challenge header.
func Challenge(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="`+Realm+`"`)
	Text(w, http.StatusUnauthorized, "Unauthorized")
}

// Require wraps next with the Basic credential gate.
func (a BasicAuth) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Check(r) {
			Challenge(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}
