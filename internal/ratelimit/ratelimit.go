// Package ratelimit implements a sliding-window admission check keyed by
// (client, scope).
package ratelimit

import (
	"context"
	"time"
)

const DefaultWindow = 60 * time.Second

const (
	ScopeDocuments = "documents"
	ScopeReminders = "reminders"
)

// Scope is a named class of operations sharing one budget per client.
// A Limit of zero or less disables limiting for the scope.
type Scope struct {
	Name   string
	Limit  int
	Window time.Duration
}

func (s Scope) window() time.Duration {
	if s.Window <= 0 {
		return DefaultWindow
	}
	return s.Window
}

// Limiter admits or rejects one request. A rejection returns an error wrapping
// document.ErrRateLimited; any other error means the check itself failed.
type Limiter interface {
	Allow(ctx context.Context, scope Scope, client string) error
	// Backend names the store for metrics labels.
	Backend() string
}

func key(scope Scope, client string) string {
	if client == "" {
		client = "unknown"
	}
	return scope.Name + ":" + client
}
