package main

/*
	Config.go

	Build the proxy options from the startup flags
	and environment variables
*/

import (
	"os"
	"strconv"
	"strings"

	"imuslab.com/corsgate/mod/corsproxy"
	"imuslab.com/corsgate/mod/utils"
)

// envOrDefault return the environment variable or the default value if unset or empty
func envOrDefault(name string, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(name)); value != "" {
		return value
	}
	return defaultValue
}

// envIntOrDefault is envOrDefault for integer values. Malformed values are ignored
func envIntOrDefault(name string, defaultValue int) int {
	value := envOrDefault(name, "")
	if value == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return i
}

// buildProxyOptions turn the parsed flags into corsproxy options
func buildProxyOptions() *corsproxy.Options {
	opts := corsproxy.DefaultOptions()
	opts.OriginBlacklist = utils.SplitList(*originBlack)
	opts.OriginWhitelist = utils.SplitList(*originWhite)
	opts.RequireHeader = utils.SplitList(*requireHeader)
	opts.RemoveHeaders = utils.SplitList(*removeHeader)
	opts.SetHeaders = utils.ParseKeyValueList(*setHeader)
	opts.RedirectSameOrigin = *sameOrigin
	opts.MaxRedirects = *maxRedirects
	opts.CorsMaxAge = *corsMaxAge
	opts.FlushInterval = RESPONSE_FLUSH_INTERVAL
	opts.Logger = SystemWideLogger
	if rateLimiter != nil {
		opts.RateLimiter = rateLimiter
	}
	if forwardProxies != nil && forwardProxies.Enabled() {
		opts.ProxyResolver = forwardProxies
	}
	return opts
}
