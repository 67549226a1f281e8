// internal/realtime/errors.go
package realtime

import "errors"

var (
	ErrTokenBlacklisted = errors.New("token has been blacklisted")
	ErrSessionExpired   = errors.New("session has expired")
	ErrUnauthorized     = errors.New("unauthorized")
)
