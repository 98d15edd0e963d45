package server

import "net/http"

// readOnlyMethods are the verbs demo mode lets through.
var readOnlyMethods = map[string]struct{}{
	http.MethodGet:     {},
	http.MethodHead:    {},
	http.MethodOptions: {},
}

// DemoMiddleware makes the API read-only for public demo deployments.
// Mutating methods get a 405 problem response.
func DemoMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := readOnlyMethods[r.Method]; !ok {
			MethodNotAllowed(w, "demo mode allows read-only access", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}
