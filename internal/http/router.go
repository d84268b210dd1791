package httpserver

import (
	"net/http"
)

type HandlerFunc func(http.ResponseWriter, *http.Request)

type route struct {
	method  string
	pattern string
	handler HandlerFunc
}

type Router struct {
	routes   []route
	fallback http.Handler
}

func NewRouter() *Router {
	return &Router{routes: make([]route, 0)}
}

func (r *Router) Handle(method string, pattern string, handler HandlerFunc) {
	r.routes = append(r.routes, route{
		method:  method,
		pattern: pattern,
		handler: handler,
	})
}

// SetFallback installs the handler for requests no route matches,
// typically the SPA asset server.
func (r *Router) SetFallback(h http.Handler) {
	r.fallback = h
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	for _, rt := range r.routes {
		if rt.method != req.Method {
			continue
		}
		if rt.pattern != req.URL.Path {
			continue
		}
		rt.handler(w, req)
		return
	}

	if r.fallback != nil {
		r.fallback.ServeHTTP(w, req)
		return
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "not_found",
	})
}
