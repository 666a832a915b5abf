package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/roster/internal/core"
)

// WithRequestMetadata adds the client IP and User-Agent to ctx so the
// import history records who started the run.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ip := r.RemoteAddr // already rewritten by TrustedRealIP
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return core.WithClientInfo(ctx, ip, r.UserAgent())
}
