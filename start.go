package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"

	proxyproto "github.com/pires/go-proxyproto"
	"imuslab.com/corsgate/mod/corsproxy"
	"imuslab.com/corsgate/mod/info/logger"
	"imuslab.com/corsgate/mod/ratelimit"
	"imuslab.com/corsgate/mod/upstreamproxy"
)

/*
	Startup Sequence

	This function starts the startup sequence of all
	required modules
*/

func startupSequence() {
	//Create a system wide logger
	var err error
	if *path_logFile == "" {
		SystemWideLogger = logger.NewFmtLogger()
	} else {
		SystemWideLogger, err = logger.NewLogger(LOG_PREFIX, *path_logFile)
		if err != nil {
			log.Fatal(err)
		}
	}

	//Create the rate limiter. A malformed unlimited host pattern aborts startup
	rateLimiter, err = ratelimit.NewLimiter(*rateLimitSpec)
	if err != nil {
		SystemWideLogger.PrintAndLog("ratelimit", "Invalid rate limit "+strconv.Quote(*rateLimitSpec), err)
		log.Fatal(err)
	}
	if rateLimiter != nil && rateLimiter.PermitsAll() {
		SystemWideLogger.PrintAndLog("ratelimit", "Unrecognized rate limit "+strconv.Quote(*rateLimitSpec)+", requests are not limited", nil)
	} else if rateLimiter != nil {
		SystemWideLogger.PrintAndLog("ratelimit", "Rate limit enabled: "+strconv.FormatInt(rateLimiter.MaxRequestsPerPeriod, 10)+" requests per "+strconv.FormatInt(rateLimiter.PeriodInMinutes, 10)+" minute(s)", nil)
	}

	//Load the forward proxy settings from the environment
	forwardProxies = upstreamproxy.NewResolver(upstreamproxy.FromEnvironment())
	if forwardProxies.Enabled() {
		SystemWideLogger.PrintAndLog("upstream", "Outbound requests use the forward proxy from the environment", nil)
	}

	//Create the proxy handler
	corsProxyHandler = corsproxy.NewCorsProxy(buildProxyOptions())
}

// Create the listener, wrapped with PROXY protocol support if enabled
func createListener(address string) (net.Listener, error) {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}

	if *proxyProtocol {
		SystemWideLogger.PrintAndLog("proxy", "PROXY protocol enabled on "+address, nil)
		return &proxyproto.Listener{
			Listener:          ln,
			ReadHeaderTimeout: PROXY_READ_HEADER_TIMEOUT,
		}, nil
	}
	return ln, nil
}

/* Shutdown Sequence */
func ShutdownSeq() {
	SystemWideLogger.Println("Shutting down " + SYSTEM_NAME)
	if proxyServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), SHUTDOWN_GRACE_PERIOD)
		if err := proxyServer.Shutdown(ctx); err != nil && err != http.ErrServerClosed {
			SystemWideLogger.PrintAndLog("proxy", "Graceful shutdown failed", err)
		}
		cancel()
	}

	if corsProxyHandler != nil {
		corsProxyHandler.Close()
	}

	if rateLimiter != nil {
		SystemWideLogger.Println("Rate limit counters at shutdown: " + fmt.Sprint(rateLimiter.Stats()))
		rateLimiter.Close()
	}

	SystemWideLogger.Close()
	fmt.Println("- Shutdown completed")
}
