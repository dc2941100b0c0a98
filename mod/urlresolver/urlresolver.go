package urlresolver

import (
	"errors"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/idna"
)

/*
	URL Resolver

	Turn the inbound request path into the upstream target URL.
	The target is written right after the proxy host, e.g.

	/https://example.com/api?x=1
	/example.com:443/api   (scheme inferred from port)
	/example.com/api       (defaults to http)
*/

var (
	ErrUnresolvable = errors.New("request path is not a resolvable url")
	ErrMissingSlash = errors.New("the URL is invalid: two slashes are needed after the http(s):")
)

const MaxPortNumber = 65535

var (
	//1:scheme 2:host 3:hostname 4:port 5:path + query string
	targetPattern     = regexp.MustCompile(`(?i)^(?:(https?:)?//)?(([^/?]+?)(?::(\d{0,5}))?)([/?][\s\S]*|$)`)
	schemePrefix      = regexp.MustCompile(`(?i)^https?:`)
	missingSlashPath  = regexp.MustCompile(`(?i)^/https?:/[^/]`)
	explicitSchemeURI = regexp.MustCompile(`^/https?:`)
)

// Target is the fully qualified upstream URL of a proxied request
type Target struct {
	URL *url.URL
}

// Href return the absolute URL of this target
func (t *Target) Href() string {
	return t.URL.String()
}

// Hostname return the hostname without port and brackets
func (t *Target) Hostname() string {
	return t.URL.Hostname()
}

// PortNumber return the explicit port of the target, or 0 if none was given
func (t *Target) PortNumber() int {
	port := t.URL.Port()
	if port == "" {
		return 0
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return 0
	}
	return p
}

// PortTooLarge check if the explicit port is out of the valid port range
func (t *Target) PortTooLarge() bool {
	return t.PortNumber() > MaxPortNumber
}

// Resolve the request URI (path + query string of the inbound request)
// into a target. The leading slash is stripped before parsing.
func Resolve(requestURI string) (*Target, error) {
	target, err := Parse(strings.TrimPrefix(requestURI, "/"))
	if err != nil {
		if IsMissingSlash(requestURI) {
			return nil, ErrMissingSlash
		}
		return nil, err
	}
	return target, nil
}

// Parse a raw URL string with optional scheme into a target.
// Used for both the inbound path and the Location header of redirects
func Parse(rawURL string) (*Target, error) {
	match := targetPattern.FindStringSubmatch(rawURL)
	if match == nil {
		return nil, ErrUnresolvable
	}

	if match[1] == "" {
		if schemePrefix.MatchString(rawURL) {
			//The pattern could mistakenly parse "http:///" as host="http:" and path=///
			return nil, ErrUnresolvable
		}

		//Scheme is omitted
		if !strings.HasPrefix(rawURL, "//") {
			rawURL = "//" + rawURL
		}
		if match[4] == "443" {
			rawURL = "https:" + rawURL
		} else {
			rawURL = "http:" + rawURL
		}
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, ErrUnresolvable
	}
	if u.Hostname() == "" {
		return nil, ErrUnresolvable
	}

	u.Scheme = strings.ToLower(u.Scheme)
	host, err := normalizeHost(u.Host)
	if err != nil {
		return nil, ErrUnresolvable
	}
	u.Host = host
	if u.Path == "" && u.RawPath == "" {
		u.Path = "/"
	}
	return &Target{URL: u}, nil
}

// ResolveReference resolve a Location header value against the current
// target and parse the result
func ResolveReference(current *Target, location string) (*Target, error) {
	ref, err := url.Parse(location)
	if err != nil {
		return nil, ErrUnresolvable
	}
	return Parse(current.URL.ResolveReference(ref).String())
}

// IsMissingSlash check if the request looks like http:/example.com,
// which usually means a router in front of the proxy merged the slashes
func IsMissingSlash(requestURI string) bool {
	return missingSlashPath.MatchString(requestURI)
}

// HasExplicitScheme check if the request URI starts with /http: or /https:
func HasExplicitScheme(requestURI string) bool {
	return explicitSchemeURI.MatchString(requestURI)
}

// normalizeHost lower case the host and convert IDN into punycode
func normalizeHost(host string) (string, error) {
	host = strings.ToLower(host)
	if isASCII(host) {
		return host, nil
	}

	hostname, port := host, ""
	if i := strings.LastIndex(host, ":"); i != -1 && !strings.Contains(host, "]") {
		hostname, port = host[:i], host[i:]
	}
	ascii, err := idna.Lookup.ToASCII(hostname)
	if err != nil {
		return "", err
	}
	return ascii + port, nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
