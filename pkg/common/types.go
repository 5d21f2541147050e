// Package common provides shared types used across routekit packages.
package common

import (
	"net/http"
)

// Middleware is a function that wraps an http.Handler.
// Routes registered by endpoint plugins carry their own middlewares on top of
// the host's global chain.
type Middleware func(http.Handler) http.Handler
