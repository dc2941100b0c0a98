package dpcore

import (
	"net/http"
	"net/url"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"imuslab.com/corsgate/mod/info/logger"
	"imuslab.com/corsgate/mod/upstreamproxy"
	"imuslab.com/corsgate/mod/urlresolver"
)

// State of a single proxied request
type State int

const (
	StateSending          State = iota //Outbound request is being built and dispatched
	StateAwaitingUpstream              //Waiting for the upstream response head
	StateRedirecting                   //Following a 301/302/303
	StateFinalized                     //Response streamed to the client
	StateFailed                        //Transport error, nothing was streamed
)

func (s State) String() string {
	switch s {
	case StateSending:
		return "sending"
	case StateAwaitingUpstream:
		return "awaiting-upstream"
	case StateRedirecting:
		return "redirecting"
	case StateFinalized:
		return "finalized"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// RequestState is owned by exactly one inbound request
type RequestState struct {
	Location      *urlresolver.Target //Current target, replaced on every followed redirect
	RedirectCount int                 //Number of redirect responses observed
	MaxRedirects  int                 //Redirects followed before handing them back to the client
	ProxyBaseURL  string              //e.g. https://proxy.example.com, used to rewrite Location
	CorsMaxAge    int                 //Access-Control-Max-Age for OPTIONS, 0 to omit
	StatusCode    int                 //Status sent to the client once finalized
	State         State
}

// NewRequestState create the state for a freshly admitted request
func NewRequestState(target *urlresolver.Target, maxRedirects int, proxyBaseURL string, corsMaxAge int) *RequestState {
	if maxRedirects < 0 {
		maxRedirects = 0
	}
	thisState := RequestState{
		Location:     target,
		MaxRedirects: maxRedirects,
		ProxyBaseURL: proxyBaseURL,
		CorsMaxAge:   corsMaxAge,
		State:        StateSending,
	}
	return &thisState
}

// Decision is the outcome of feeding one upstream response into Step
type Decision struct {
	Next              State
	Target            *urlresolver.Target //The next target when Next is StateRedirecting
	RedirectHeader    string              //X-Cors-Redirect-<n>
	RedirectValue     string              //"<status> <location>"
	RewrittenLocation string              //Location header to send to the client, if changed
}

// ProxyResolver pick the forward proxy for an outbound target, nil for direct
type ProxyResolver interface {
	ForwardProxyFor(target *url.URL) *upstreamproxy.ProxyTarget
}

// ResponseAnnotator add the CORS headers to the final response header
type ResponseAnnotator func(header http.Header, r *http.Request, corsMaxAge int)

type ForwarderOptions struct {
	Transport         *http.Transport   //Base transport, cloned for forward proxies. Default tuned transport if nil
	ProxyResolver     ProxyResolver     //Forward proxy selection, nil for always direct
	FlushInterval     time.Duration     //Body flush interval for responses of known length
	ProxyTransportTTL time.Duration     //How long an idle forward proxy transport is cached
	AnnotateResponse  ResponseAnnotator //Applied once on the final response
	Logger            *logger.Logger
}

type Forwarder struct {
	Option          *ForwarderOptions
	directTransport *http.Transport
	proxyTransports *ttlcache.Cache[string, *http.Transport]
}

// UpstreamError is returned by Forward when an attempt could not reach
// upstream. Nothing has been written to the client in this case
type UpstreamError struct {
	Target string
	Err    error
}

func (e *UpstreamError) Error() string {
	return e.Err.Error()
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
