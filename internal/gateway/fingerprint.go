package gateway

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

// Fingerprint derives a stable browser fingerprint from request headers,
// sent along when a cart session is created. IP is left out so mobile
// network changes do not split a shopper's identity.
func Fingerprint(r *http.Request) string {
	parts := make([]string, 0, 4)
	for _, v := range []string{
		r.UserAgent(),
		r.Header.Get("Accept-Language"),
		r.Header.Get("Accept-Encoding"),
		r.Header.Get("Sec-Ch-Ua-Platform"),
	} {
		if v != "" {
			parts = append(parts, v)
		}
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return "v1:" + hex.EncodeToString(sum[:16])
}
