// Package identity derives a stable pseudonymous key per client,
// used for vote/flag deduplication and rate limiting. No personal
// data is stored: only a salted hash of the client IP.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
)

type Fingerprinter struct {
	salt string
}

func NewFingerprinter(salt string) *Fingerprinter {
	return &Fingerprinter{salt: salt}
}

// FromRequest hashes the client IP with the deployment salt. Behind a
// proxy the first hop of X-Forwarded-For is the client.
func (f *Fingerprinter) FromRequest(r *http.Request) string {
	ip := clientIP(r)
	sum := sha256.Sum256([]byte(ip + f.salt))
	return hex.EncodeToString(sum[:])
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.Index(fwd, ","); idx != -1 {
			fwd = fwd[:idx]
		}
		return strings.TrimSpace(fwd)
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return strings.TrimSpace(real)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
