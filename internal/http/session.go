package httpapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/roniherschmann/go-linkboard/internal/token"
)

const sessionCookie = "nav_session"

// sessions issues stateless admin cookies of the form nonce.issued.signature,
// where issued is a unix timestamp and the signature is an HMAC of
// nonce.issued keyed by the admin password. A cookie expires maxAge after it
// was issued; changing the password invalidates every issued cookie.
type sessions struct {
	secret string
	maxAge time.Duration
	secure bool
	now    func() time.Time
}

func (s sessions) enabled() bool { return s.secret != "" }

func (s sessions) sign(payload string) string {
	mac := hmac.New(sha256.New, []byte(s.secret))
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (s sessions) checkPassword(pw string) bool {
	if !s.enabled() {
		return false
	}
	return hmac.Equal([]byte(pw), []byte(s.secret))
}

func (s sessions) issue(w http.ResponseWriter) {
	payload := token.Generate(24) + "." + strconv.FormatInt(s.now().Unix(), 10)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    payload + "." + s.sign(payload),
		Path:     "/",
		MaxAge:   int(s.maxAge.Seconds()),
		Secure:   s.secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func (s sessions) clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   s.secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func (s sessions) valid(r *http.Request) bool {
	if !s.enabled() {
		return false
	}
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return false
	}
	i := strings.LastIndexByte(c.Value, '.')
	if i < 0 {
		return false
	}
	payload, sig := c.Value[:i], c.Value[i+1:]
	nonce, issuedRaw, ok := strings.Cut(payload, ".")
	if !ok || nonce == "" {
		return false
	}
	if !hmac.Equal([]byte(sig), []byte(s.sign(payload))) {
		return false
	}
	issued, err := strconv.ParseInt(issuedRaw, 10, 64)
	if err != nil {
		return false
	}
	age := s.now().Sub(time.Unix(issued, 0))
	return age >= -time.Minute && age <= s.maxAge
}

func (rt *Router) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rt.sessions.valid(r) {
			writeJSON(w, errorResp{Error: "unauthorized"}, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
