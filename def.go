package main

/*
	Type and flag definations

	This file contains all the type and flag definations.
	Every flag falls back to an environment variable so the
	proxy can be configured on PaaS hosts without arguments
*/

import (
	"flag"
	"net/http"
	"time"

	"imuslab.com/corsgate/mod/corsproxy"
	"imuslab.com/corsgate/mod/info/logger"
	"imuslab.com/corsgate/mod/ratelimit"
	"imuslab.com/corsgate/mod/upstreamproxy"
)

const (
	/* Build Constants */
	SYSTEM_NAME    = "Corsgate"
	SYSTEM_VERSION = "1.0.0"

	/* System Constants */
	LOG_PREFIX                = "cg"
	RESPONSE_FLUSH_INTERVAL   = 100 * time.Millisecond
	PROXY_READ_HEADER_TIMEOUT = 10 * time.Second
	SHUTDOWN_GRACE_PERIOD     = 5 * time.Second

	/* Default Policy */
	DEFAULT_REQUIRE_HEADER = "origin,x-requested-with"
	DEFAULT_REMOVE_HEADER  = "cookie,cookie2,x-request-start,x-request-id,via,connect-time,total-route-time"
)

/* System Startup Flags */
var (
	listenHost    = flag.String("host", envOrDefault("HOST", "0.0.0.0"), "Listening interface, env HOST")
	listenPort    = flag.String("port", envOrDefault("PORT", "8080"), "Listening port, env PORT")
	originBlack   = flag.String("blacklist", envOrDefault("CORSANYWHERE_BLACKLIST", ""), "Comma separated origins that are always rejected, env CORSANYWHERE_BLACKLIST")
	originWhite   = flag.String("whitelist", envOrDefault("CORSANYWHERE_WHITELIST", ""), "Comma separated origins that are allowed (empty allows all), env CORSANYWHERE_WHITELIST")
	rateLimitSpec = flag.String("ratelimit", envOrDefault("CORSANYWHERE_RATELIMIT", ""), "Rate limit as \"<max> <minutes> [unlimited hosts...]\", env CORSANYWHERE_RATELIMIT")
	maxRedirects  = flag.Int("maxredirects", envIntOrDefault("CORSANYWHERE_MAXREDIRECTS", corsproxy.DefaultMaxRedirects), "Number of 301/302/303 redirects followed by the proxy")
	corsMaxAge    = flag.Int("corsmaxage", envIntOrDefault("CORSANYWHERE_CORSMAXAGE", 0), "Access-Control-Max-Age sent with preflight responses, 0 to disable")
	sameOrigin    = flag.Bool("samesite", false, "Redirect requests for the requester's own origin instead of proxying them")
	requireHeader = flag.String("requireheader", DEFAULT_REQUIRE_HEADER, "Comma separated request headers, at least one must be present. Empty to disable")
	removeHeader  = flag.String("removeheader", DEFAULT_REMOVE_HEADER, "Comma separated request headers stripped before forwarding")
	setHeader     = flag.String("setheader", "", "Request headers set before forwarding, as name:value,name2:value2")
	proxyProtocol = flag.Bool("proxyprotocol", false, "Accept PROXY protocol (v1/v2) headers from a load balancer in front of this proxy")
	path_logFile  = flag.String("log", "", "Log folder path, empty to log to STDOUT only")
	showver       = flag.Bool("version", false, "Show version of this server")
)

/* Global Variables and Handlers */
var (
	SystemWideLogger *logger.Logger          //Logger for the whole system
	rateLimiter      *ratelimit.Limiter      //Per origin request counter, nil if disabled
	forwardProxies   *upstreamproxy.Resolver //HTTP_PROXY / HTTPS_PROXY / NO_PROXY selection
	corsProxyHandler *corsproxy.CorsProxy    //The proxy handler itself
	proxyServer      *http.Server
)
