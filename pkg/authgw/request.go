package authgw

import (
	"net"
	"strings"
)

// CookieName is the fallback credential cookie, for server-rendered
// requests that cannot set an Authorization header.
const CookieName = "authorization"

const bypassHeader = "X-RateLimit-Bypass"

// HeaderReader reads a single request header by name.
type HeaderReader interface {
	Header(name string) string
}

// CookieReader reads a single request cookie by name.
type CookieReader interface {
	Cookie(name string) (string, bool)
}

// Request is the narrow request surface the gateway needs.
// Framework adapters (net/http, gRPC) implement it.
type Request interface {
	HeaderReader
	CookieReader
	Path() string
	RemoteAddr() string
}

// Credential extracts the bearer token from a request:
// Authorization header first, credential cookie second.
func Credential(req Request) string {
	if h := req.Header("Authorization"); h != "" {
		if raw, found := strings.CutPrefix(h, "Bearer "); found {
			return strings.TrimSpace(raw)
		}
		return ""
	}
	if raw, ok := req.Cookie(CookieName); ok {
		return strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))
	}
	return ""
}

const userAgentMax = 48

// ClientID derives the rate-limit client id from the request source:
// first X-Forwarded-For hop (or remote address) plus a truncated
// User-Agent string.
func ClientID(req Request) string {
	addr := req.Header("X-Forwarded-For")
	if addr != "" {
		addr = strings.TrimSpace(strings.SplitN(addr, ",", 2)[0])
	} else {
		addr = req.RemoteAddr()
		if host, _, err := net.SplitHostPort(addr); err == nil {
			addr = host
		}
	}
	ua := req.Header("User-Agent")
	if len(ua) > userAgentMax {
		ua = ua[:userAgentMax]
	}
	return addr + "|" + ua
}
