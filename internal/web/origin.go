package web

import "net/http"

// originChecker builds the CheckOrigin callback for the websocket
// upgrader. An empty allow-list permits any origin, which is the local
// development default. Requests without an Origin header (non-browser
// clients) are always allowed.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}

	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
