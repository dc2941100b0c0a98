package corsproxy

/*
	Policy.go

	Admission checks of the CORS proxy. Rules are evaluated
	in a fixed order and the first failing rule decides the
	response.
*/

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"imuslab.com/corsgate/mod/corsproxy/dpcore"
	"imuslab.com/corsgate/mod/urlresolver"
	"imuslab.com/corsgate/mod/utils"
)

const corsCheckHostname = "iscorsneeded"

var httpsForwardedProto = regexp.MustCompile(`^\s*https`)

// Admit decide if the request should be forwarded. Exactly one of the
// return values is non-nil
func (p *CorsProxy) Admit(r *http.Request) (*Admission, *Rejection) {
	if r.Method == http.MethodOptions {
		return nil, &Rejection{StatusCode: http.StatusOK, Reason: "preflight"}
	}

	requestURI := rawRequestURI(r)
	target, err := urlresolver.Resolve(requestURI)
	if err != nil {
		if errors.Is(err, urlresolver.ErrMissingSlash) {
			return nil, &Rejection{
				StatusCode: http.StatusBadRequest,
				Reason:     "missing-slash",
				Body:       "The URL is invalid: two slashes are needed after the http(s):.",
			}
		}
		return nil, &Rejection{StatusCode: http.StatusOK, Reason: "usage", Body: p.Option.HelpText, Fallback: true}
	}

	if target.Hostname() == corsCheckHostname {
		//Readable only when the browser does not need CORS for this proxy
		return nil, &Rejection{StatusCode: http.StatusOK, Reason: "cors-check", Body: "no", OmitCORS: true}
	}

	if target.PortTooLarge() {
		return nil, &Rejection{
			StatusCode: http.StatusBadRequest,
			Reason:     "invalid-port",
			Body:       "Port number too large: " + strconv.Itoa(target.PortNumber()),
		}
	}

	if !urlresolver.HasExplicitScheme(requestURI) && !urlresolver.IsValidHostName(target.Hostname()) {
		return nil, &Rejection{
			StatusCode: http.StatusNotFound,
			Reason:     "invalid-host",
			Body:       "Invalid host: " + target.Hostname(),
		}
	}

	if !p.hasRequiredHeader(r) {
		return nil, &Rejection{
			StatusCode: http.StatusBadRequest,
			Reason:     "header-required",
			Body:       "Missing required request header. Must specify one of: " + strings.Join(p.Option.RequireHeader, ","),
		}
	}

	origin := r.Header.Get("Origin")
	if utils.StringInArray(p.Option.OriginBlacklist, origin) {
		return nil, &Rejection{
			StatusCode: http.StatusForbidden,
			Reason:     "blacklist",
			Body:       fmt.Sprintf("The origin %q was blacklisted by the operator of this proxy.", origin),
		}
	}

	if len(p.Option.OriginWhitelist) > 0 && !utils.StringInArray(p.Option.OriginWhitelist, origin) {
		return nil, &Rejection{
			StatusCode: http.StatusForbidden,
			Reason:     "whitelist",
			Body:       fmt.Sprintf("The origin %q was not whitelisted by the operator of this proxy.", origin),
		}
	}

	if p.Option.RateLimiter != nil {
		if message := p.Option.RateLimiter.Check(origin); message != "" {
			return nil, &Rejection{
				StatusCode: http.StatusTooManyRequests,
				Reason:     "ratelimit",
				Body:       fmt.Sprintf("The origin %q has sent too many requests.\n%s", origin, message),
			}
		}
	}

	href := target.Href()
	if p.Option.RedirectSameOrigin && isSameOrigin(origin, href) {
		header := http.Header{}
		header.Set("Vary", "origin")
		header.Set("Cache-Control", "private")
		header.Set("Location", href)
		return nil, &Rejection{StatusCode: http.StatusMovedPermanently, Reason: "same-origin", Header: header}
	}

	//Admitted
	for _, name := range p.Option.RemoveHeaders {
		r.Header.Del(name)
	}
	for name, value := range p.Option.SetHeaders {
		r.Header.Set(name, value)
	}

	state := dpcore.NewRequestState(target, p.Option.MaxRedirects, proxyBaseURL(r), p.Option.CorsMaxAge)
	return &Admission{Target: target, State: state}, nil
}

func (p *CorsProxy) hasRequiredHeader(r *http.Request) bool {
	if len(p.Option.RequireHeader) == 0 {
		return true
	}
	for _, name := range p.Option.RequireHeader {
		if strings.EqualFold(name, "host") && r.Host != "" {
			return true
		}
		if _, ok := r.Header[http.CanonicalHeaderKey(name)]; ok {
			return true
		}
	}
	return false
}

// isSameOrigin check if href is a resource on origin. This is a plain string
// prefix test, "https://example.com" also matches "https://example.com/" but
// not "https://example.com.evil.org/"
func isSameOrigin(origin string, href string) bool {
	if origin == "" || len(href) <= len(origin) {
		return false
	}
	return strings.HasPrefix(href, origin) && href[len(origin)] == '/'
}

// proxyBaseURL return the public URL of this proxy as seen by the client
func proxyBaseURL(r *http.Request) string {
	if r.TLS != nil || httpsForwardedProto.MatchString(r.Header.Get("X-Forwarded-Proto")) {
		return "https://" + r.Host
	}
	return "http://" + r.Host
}

// Request target as sent by the client, without re-escaping
func rawRequestURI(r *http.Request) string {
	if r.RequestURI != "" {
		return r.RequestURI
	}
	return r.URL.RequestURI()
}
