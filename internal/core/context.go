package core

import "context"

type clientKey struct{}

// ClientInfo identifies who started an import. It is stored in import history.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// WithClientInfo attaches the caller's address and user agent to ctx.
func WithClientInfo(ctx context.Context, ip, userAgent string) context.Context {
	return context.WithValue(ctx, clientKey{}, ClientInfo{IPAddress: ip, UserAgent: userAgent})
}

// ClientInfoFromContext returns the client info attached to ctx, if any.
func ClientInfoFromContext(ctx context.Context) ClientInfo {
	ci, _ := ctx.Value(clientKey{}).(ClientInfo)
	return ci
}
