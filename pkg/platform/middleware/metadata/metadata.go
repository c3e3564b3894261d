// Package metadata records who is calling: client IP for rate limiting and
// logs, User-Agent for last-login device descriptions.
package metadata

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	"churnboard/pkg/requestcontext"
)

const unknownIP = "unknown"

// ClientMetadata stores the caller's IP and User-Agent in the context.
// trustedHops is the number of reverse proxies in front of the service; see
// ClientIPFromRequest.
func ClientMetadata(trustedHops int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithClientMetadata(r.Context(), ClientIPFromRequest(r, trustedHops), r.Header.Get("User-Agent"))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIPFromRequest resolves the caller's address. With no trusted
// proxies the socket peer is the only source, since clients control every
// header. Behind trustedHops proxies, each appending to X-Forwarded-For, the
// entry trustedHops from the right is the address the outermost proxy saw;
// anything left of it was sent by the client. X-Real-IP is used when the
// chain is absent. Values that are not IP addresses are ignored.
func ClientIPFromRequest(r *http.Request, trustedHops int) string {
	if trustedHops > 0 {
		if ip, ok := forwardedFor(r, trustedHops); ok {
			return ip
		}
		if ip, ok := parseIP(r.Header.Get("X-Real-IP")); ok {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip, ok := parseIP(host); ok {
		return ip
	}
	return unknownIP
}

func forwardedFor(r *http.Request, trustedHops int) (string, bool) {
	var hops []string
	for _, v := range r.Header.Values("X-Forwarded-For") {
		hops = append(hops, strings.Split(v, ",")...)
	}
	if len(hops) < trustedHops {
		return "", false
	}
	return parseIP(hops[len(hops)-trustedHops])
}

func parseIP(s string) (string, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return "", false
	}
	return addr.Unmap().String(), true
}
