// package server contains middleware & handlers for the spx callback server
package server

import (
	"net/http"
)

// Middleware decorates an [http.Handler].
type Middleware func(http.Handler) http.Handler

// Handler is an [http.Handler] that knows which paths it answers on.
type Handler interface {
	http.Handler
	Routes() []string // GET paths to register
}

// Router registers handlers behind a shared middleware stack.
type Router interface {
	Use(middleware ...Middleware)
	Handle(method, path string, handler http.Handler)
	Handler(handler Handler)
	ServeHTTP(w http.ResponseWriter, r *http.Request)
}

var (
	_ Router  = (*BasicRouter)(nil)
	_ Handler = (*CallbackHandler)(nil)
)
