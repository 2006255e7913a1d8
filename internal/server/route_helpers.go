package server

import (
	"net/http"
	"strings"

	"github.com/ternarybob/macrolens/internal/handlers"
)

// MethodRouter maps HTTP methods to handlers
type MethodRouter map[string]http.HandlerFunc

// RouteByMethod dispatches on r.Method, answering 405 with an Allow header otherwise
func RouteByMethod(w http.ResponseWriter, r *http.Request, routes MethodRouter) {
	if handler, ok := routes[r.Method]; ok {
		handler(w, r)
		return
	}

	allowed := make([]string, 0, len(routes))
	for _, m := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete} {
		if _, ok := routes[m]; ok {
			allowed = append(allowed, m)
		}
	}
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	handlers.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
}

// RouteResourceItem routes GET and DELETE on a single resource. nil handlers are not allowed methods.
func RouteResourceItem(w http.ResponseWriter, r *http.Request, get, del http.HandlerFunc) {
	routes := make(MethodRouter, 2)
	if get != nil {
		routes[http.MethodGet] = get
	}
	if del != nil {
		routes[http.MethodDelete] = del
	}
	RouteByMethod(w, r, routes)
}

// PathSuffixRouter pairs a path suffix such as "/report.pdf" with its handler
type PathSuffixRouter struct {
	Suffix  string
	Handler http.HandlerFunc
}

// RouteByPathSuffix serves the first route whose suffix ends the path after prefix.
// It reports whether a route matched.
func RouteByPathSuffix(w http.ResponseWriter, r *http.Request, prefix string, routes []PathSuffixRouter) bool {
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	if rest == r.URL.Path || rest == "" {
		return false
	}

	for _, route := range routes {
		if strings.HasSuffix(rest, route.Suffix) {
			route.Handler(w, r)
			return true
		}
	}
	return false
}
