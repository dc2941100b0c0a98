package dpcore

import (
	"net"
	"net/http"
	"strings"
)

/*
	Header.go

	This script handles headers rewrite and remove
	in dpcore.
*/

// Hop-by-hop headers. These are removed when sent to the backend.
// http://www.w3.org/Protocols/rfc2616/rfc2616-sec13.html
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection", // non-standard but still sent by libcurl and rejected by e.g. google
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",      // canonicalized version of "TE"
	"Trailer", // not Trailers per URL above; http://www.rfc-editor.org/errata_search.php?eid=4522
	"Transfer-Encoding",
	"Upgrade",
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}

// removeHopHeaders Remove hop-by-hop headers listed in the "Connection" header, Remove hop-by-hop headers.
func removeHopHeaders(header http.Header) {
	// Remove hop-by-hop headers listed in the "Connection" header.
	if c := header.Get("Connection"); c != "" {
		for _, f := range strings.Split(c, ",") {
			if f = strings.TrimSpace(f); f != "" {
				header.Del(f)
			}
		}
	}

	// Remove hop-by-hop headers
	for _, h := range hopHeaders {
		if header.Get(h) != "" {
			header.Del(h)
		}
	}
}

// hideDefaultUserAgent prevent the Go-http-client UA from leaking upstream
// if the client didnt sent us one
func hideDefaultUserAgent(header http.Header) {
	if _, ok := header["User-Agent"]; !ok {
		header.Set("User-Agent", "")
	}
}

// Add X-Forwarded-For / Host / Proto headers to the outbound request. Existing
// values from proxies in front of us are kept as a comma separated list
func addXForwardedHeaders(outHeader http.Header, inbound *http.Request) {
	proto := "http"
	if inbound.TLS != nil {
		proto = "https"
	}

	if clientIP, _, err := net.SplitHostPort(inbound.RemoteAddr); err == nil {
		appendForwardedValue(outHeader, "X-Forwarded-For", clientIP)
	}
	if inbound.Host != "" {
		appendForwardedValue(outHeader, "X-Forwarded-Host", inbound.Host)
	}
	appendForwardedValue(outHeader, "X-Forwarded-Proto", proto)
}

func appendForwardedValue(header http.Header, key string, value string) {
	if prior, ok := header[key]; ok && len(prior) > 0 {
		value = strings.Join(prior, ", ") + ", " + value
	}
	header.Set(key, value)
}
