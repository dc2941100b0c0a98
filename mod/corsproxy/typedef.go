package corsproxy

import (
	"net/http"
	"time"

	"imuslab.com/corsgate/mod/corsproxy/dpcore"
	"imuslab.com/corsgate/mod/info/logger"
	"imuslab.com/corsgate/mod/urlresolver"
)

// RateLimitChecker return a non-empty message when the origin is over its quota
type RateLimitChecker interface {
	Check(origin string) string
}

type Options struct {
	OriginBlacklist    []string          //Origins that are always rejected
	OriginWhitelist    []string          //If non-empty, only these origins are served
	RequireHeader      []string          //At least one of these request headers must be present
	RemoveHeaders      []string          //Request headers stripped before forwarding
	SetHeaders         map[string]string //Request headers overwritten before forwarding
	RedirectSameOrigin bool              //Redirect requests for the requester's own origin instead of proxying
	MaxRedirects       int               //301/302/303 followed on the server side
	CorsMaxAge         int               //Access-Control-Max-Age for preflight, 0 to omit
	RateLimiter        RateLimitChecker  //nil for unlimited
	ProxyResolver      dpcore.ProxyResolver
	Transport          *http.Transport //Base upstream transport, nil for default
	FlushInterval      time.Duration
	HelpText           string       //Served when the path is not a proxy request
	Fallback           http.Handler //Replaces HelpText if set
	Logger             *logger.Logger
}

type CorsProxy struct {
	Option    *Options
	forwarder *dpcore.Forwarder
}

// Admission is a request accepted for forwarding
type Admission struct {
	Target *urlresolver.Target
	State  *dpcore.RequestState
}

// Rejection is a request answered without contacting upstream
type Rejection struct {
	StatusCode int
	Reason     string      //Short class name for the traffic log
	Body       string      //text/plain body
	Header     http.Header //Extra response headers, may be nil
	Fallback   bool        //Not a proxy request, hand over to the fallback handler
	OmitCORS   bool        //Send without the CORS headers
}
