package corsproxy

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
)

// AnnotateCORS add the CORS response headers to h for the request r.
// The Access-Control-Request-* headers are consumed from r so they
// are not forwarded upstream
func AnnotateCORS(h http.Header, r *http.Request, corsMaxAge int) http.Header {
	h.Set("Access-Control-Allow-Origin", "*")
	if corsMaxAge != 0 && r.Method == http.MethodOptions {
		h.Set("Access-Control-Max-Age", strconv.Itoa(corsMaxAge))
	}

	if method := r.Header.Get("Access-Control-Request-Method"); method != "" {
		h.Set("Access-Control-Allow-Methods", method)
		r.Header.Del("Access-Control-Request-Method")
	}

	if headers := r.Header.Get("Access-Control-Request-Headers"); headers != "" {
		h.Set("Access-Control-Allow-Headers", headers)
		r.Header.Del("Access-Control-Request-Headers")
	}

	h.Set("Access-Control-Expose-Headers", exposedHeaderList(h))
	return h
}

// Lower-cased header names currently in h, sorted and comma joined
func exposedHeaderList(h http.Header) string {
	names := make([]string, 0, len(h))
	for k := range h {
		names = append(names, strings.ToLower(k))
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}
