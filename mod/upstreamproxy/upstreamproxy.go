package upstreamproxy

import (
	"encoding/base64"
	"net/url"
	"os"
	"strings"

	"golang.org/x/net/http/httpproxy"
)

/*
	Upstream Proxy

	Decide if the outbound request of the CORS proxy must
	itself go through a forward proxy, based on the well known
	proxy environment variables (NO_PROXY, HTTP_PROXY,
	HTTPS_PROXY and ALL_PROXY)
*/

type Config struct {
	NoProxy    string //Comma or space separated host[:port] list, or * to disable forwarding
	HTTPProxy  string //Forward proxy for http targets
	HTTPSProxy string //Forward proxy for https targets
	AllProxy   string //Forward proxy for all targets, override the scheme specific ones
}

// Load the proxy configuration from the process environment
func FromEnvironment() Config {
	envConfig := httpproxy.FromEnvironment()
	return Config{
		NoProxy:    envConfig.NoProxy,
		HTTPProxy:  envConfig.HTTPProxy,
		HTTPSProxy: envConfig.HTTPSProxy,
		AllProxy:   getEnvAny("ALL_PROXY", "all_proxy"),
	}
}

// ProxyTarget is the forward proxy selected for a target
type ProxyTarget struct {
	URL           *url.URL //Proxy URL, without user info
	Authorization string   //Basic authorization derived from the proxy URL, empty if none
}

type Resolver struct {
	config   Config
	disabled bool      //NO_PROXY=*
	noProxy  *hostTree //Exempted hosts
}

func NewResolver(config Config) *Resolver {
	thisResolver := Resolver{
		config:  config,
		noProxy: newHostTree(),
	}

	for _, entry := range splitNoProxy(config.NoProxy) {
		if entry == "*" {
			thisResolver.disabled = true
			continue
		}
		thisResolver.noProxy.Insert(entry)
	}

	return &thisResolver
}

// Check if any forward proxy is configured at all
func (r *Resolver) Enabled() bool {
	if r.disabled {
		return false
	}
	return r.config.AllProxy != "" || r.config.HTTPProxy != "" || r.config.HTTPSProxy != ""
}

// ForwardProxyFor return the forward proxy the request to target must go
// through, or nil if the target should be reached directly
func (r *Resolver) ForwardProxyFor(target *url.URL) *ProxyTarget {
	if r == nil || target == nil || r.disabled {
		return nil
	}

	scheme := strings.ToLower(target.Scheme)
	hostname := strings.ToLower(target.Hostname())
	if hostname == "" {
		return nil
	}

	if r.noProxy.Matches(hostname, effectivePort(target)) {
		return nil
	}

	endpoint := r.config.AllProxy
	if endpoint == "" {
		switch scheme {
		case "http":
			endpoint = r.config.HTTPProxy
		case "https":
			endpoint = r.config.HTTPSProxy
		}
	}
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil
	}

	if !strings.Contains(endpoint, "://") {
		endpoint = scheme + "://" + endpoint
	}

	proxyURL, err := url.Parse(endpoint)
	if err != nil || proxyURL.Host == "" {
		return nil
	}

	authorization := ""
	if proxyURL.User != nil {
		username := proxyURL.User.Username()
		password, _ := proxyURL.User.Password()
		authorization = "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
		proxyURL.User = nil
	}

	return &ProxyTarget{
		URL:           proxyURL,
		Authorization: authorization,
	}
}

// String return the proxy URL without credentials
func (p *ProxyTarget) String() string {
	if p == nil || p.URL == nil {
		return ""
	}
	return p.URL.String()
}

// effectivePort return the explicit port or the default port of the scheme
func effectivePort(target *url.URL) string {
	if port := target.Port(); port != "" {
		return port
	}
	switch strings.ToLower(target.Scheme) {
	case "http", "ws":
		return "80"
	case "https", "wss":
		return "443"
	case "ftp":
		return "21"
	case "gopher":
		return "70"
	}
	return ""
}

func splitNoProxy(list string) []string {
	return strings.FieldsFunc(strings.ToLower(list), func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
}

func getEnvAny(names ...string) string {
	for _, n := range names {
		if val := os.Getenv(n); val != "" {
			return val
		}
	}
	return ""
}
