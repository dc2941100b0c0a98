package dpcore

/*
	dpcore.go

	The forwarding core of the CORS proxy. A request is sent to
	the target, 301/302/303 responses are followed here (up to
	MaxRedirects) and the final response is streamed back with
	the CORS headers attached.
*/

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"imuslab.com/corsgate/mod/upstreamproxy"
	"imuslab.com/corsgate/mod/urlresolver"
)

const (
	defaultProxyTransportTTL = 10 * time.Minute
	copyBufferSize           = 64 * 1024
)

// NewForwarder create a forwarder. Call Close to release the cached forward proxy transports
func NewForwarder(opts *ForwarderOptions) *Forwarder {
	if opts == nil {
		opts = &ForwarderOptions{}
	}

	base := opts.Transport
	if base == nil {
		base = newTunedTransport()
	}

	ttl := opts.ProxyTransportTTL
	if ttl <= 0 {
		ttl = defaultProxyTransportTTL
	}

	cache := ttlcache.New[string, *http.Transport](
		ttlcache.WithTTL[string, *http.Transport](ttl),
	)
	cache.OnEviction(func(ctx context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, *http.Transport]) {
		item.Value().CloseIdleConnections()
	})
	go cache.Start()

	//Proxy selection is done per attempt by the resolver, never by the transport itself
	direct := base.Clone()
	direct.Proxy = nil

	thisForwarder := Forwarder{
		Option:          opts,
		directTransport: direct,
		proxyTransports: cache,
	}
	return &thisForwarder
}

// Clone of the default transport with more room for concurrent upstreams
func newTunedTransport() *http.Transport {
	thisTransporter := http.DefaultTransport.(*http.Transport).Clone()
	optimalConcurrentConnection := 32
	thisTransporter.MaxIdleConns = optimalConcurrentConnection * 2
	thisTransporter.MaxIdleConnsPerHost = optimalConcurrentConnection
	thisTransporter.IdleConnTimeout = 30 * time.Second
	thisTransporter.MaxConnsPerHost = optimalConcurrentConnection * 2
	//Pass the client's Accept-Encoding through and the body back untouched
	thisTransporter.DisableCompression = true
	return thisTransporter
}

// Close stop the transport cache and drop all idle upstream connections
func (f *Forwarder) Close() {
	f.proxyTransports.Stop()
	f.proxyTransports.DeleteAll()
	f.directTransport.CloseIdleConnections()
}

// transportFor return the round tripper for this attempt and the forward proxy in use (if any)
func (f *Forwarder) transportFor(target *urlresolver.Target) (http.RoundTripper, *upstreamproxy.ProxyTarget) {
	if f.Option.ProxyResolver == nil {
		return f.directTransport, nil
	}

	proxyTarget := f.Option.ProxyResolver.ForwardProxyFor(target.URL)
	if proxyTarget == nil {
		return f.directTransport, nil
	}

	key := proxyTarget.URL.String() + "#" + proxyTarget.Authorization
	item, _ := f.proxyTransports.GetOrSetFunc(key, func() *http.Transport {
		t := f.directTransport.Clone()
		t.Proxy = http.ProxyURL(proxyTarget.URL)
		if proxyTarget.Authorization != "" {
			//Used for the CONNECT of https targets
			t.ProxyConnectHeader = http.Header{}
			t.ProxyConnectHeader.Set("Proxy-Authorization", proxyTarget.Authorization)
		}
		return t
	})
	return item.Value(), proxyTarget
}

// newOutboundRequest build the request for one attempt
func (f *Forwarder) newOutboundRequest(inbound *http.Request, method string, header http.Header, body io.ReadCloser, contentLength int64, target *urlresolver.Target) (*http.Request, error) {
	outreq, err := http.NewRequestWithContext(inbound.Context(), method, target.Href(), nil)
	if err != nil {
		return nil, err
	}

	outreq.Header = header.Clone()
	removeHopHeaders(outreq.Header)
	hideDefaultUserAgent(outreq.Header)
	addXForwardedHeaders(outreq.Header, inbound)
	//Host always follows the target
	outreq.Host = target.URL.Host

	if body != nil && contentLength != 0 {
		outreq.Body = body
		outreq.ContentLength = contentLength
	}
	outreq.Close = false
	return outreq, nil
}

// Forward run the request state machine until the response is streamed to
// w or an attempt fails. An *UpstreamError means nothing was written yet
func (f *Forwarder) Forward(w http.ResponseWriter, r *http.Request, state *RequestState) error {
	method := r.Method
	header := r.Header.Clone()
	body := r.Body
	contentLength := r.ContentLength

	for {
		state.State = StateSending
		outreq, err := f.newOutboundRequest(r, method, header, body, contentLength, state.Location)
		if err != nil {
			state.State = StateFailed
			return &UpstreamError{Target: state.Location.Href(), Err: err}
		}

		transport, proxyTarget := f.transportFor(state.Location)
		if proxyTarget != nil && state.Location.URL.Scheme == "http" && proxyTarget.Authorization != "" {
			//Plain http goes to the forward proxy in absolute-form
			outreq.Header.Set("Proxy-Authorization", proxyTarget.Authorization)
		}

		state.State = StateAwaitingUpstream
		res, err := transport.RoundTrip(outreq)
		if err != nil {
			state.State = StateFailed
			return &UpstreamError{Target: state.Location.Href(), Err: err}
		}

		if state.RedirectCount == 0 {
			w.Header().Set("X-Request-Url", state.Location.Href())
		}

		decision := f.Step(state, res)
		if decision.Next == StateRedirecting {
			io.Copy(io.Discard, io.LimitReader(res.Body, copyBufferSize))
			res.Body.Close()

			w.Header().Set(decision.RedirectHeader, decision.RedirectValue)
			if f.Option.Logger != nil {
				f.Option.Logger.Println("[dpcore] following " + decision.RedirectValue)
			}

			//Subsequent attempts are bodyless GETs
			method = http.MethodGet
			body = nil
			contentLength = 0
			header.Del("Content-Type")
			header.Del("Content-Length")
			continue
		}

		f.finalize(w, r, state, res, decision)
		return nil
	}
}

// Step feed one upstream response into the state machine. It updates the
// redirect counter and current target, and returns what Forward should do next
func (f *Forwarder) Step(state *RequestState, res *http.Response) Decision {
	finalized := Decision{Next: StateFinalized}
	if !isRedirectStatus(res.StatusCode) {
		state.State = StateFinalized
		return finalized
	}

	locationHeader := res.Header.Get("Location")
	if locationHeader == "" {
		state.State = StateFinalized
		return finalized
	}

	next, err := urlresolver.ResolveReference(state.Location, locationHeader)
	if err != nil {
		state.State = StateFinalized
		return finalized
	}

	if isFollowableStatus(res.StatusCode) {
		state.RedirectCount++
		if state.RedirectCount <= state.MaxRedirects {
			state.Location = next
			state.State = StateRedirecting
			return Decision{
				Next:           StateRedirecting,
				Target:         next,
				RedirectHeader: "X-Cors-Redirect-" + strconv.Itoa(state.RedirectCount),
				RedirectValue:  fmt.Sprintf("%d %s", res.StatusCode, next.Href()),
			}
		}
	}

	//Hand the redirect back to the client, but through this proxy
	state.State = StateFinalized
	finalized.RewrittenLocation = state.ProxyBaseURL + "/" + next.Href()
	return finalized
}

func isRedirectStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

// 307 and 308 must replay the body, which is not kept. They are passed to the client instead
func isFollowableStatus(statusCode int) bool {
	return statusCode == http.StatusMovedPermanently ||
		statusCode == http.StatusFound ||
		statusCode == http.StatusSeeOther
}

// finalize copy the upstream response to the client
func (f *Forwarder) finalize(w http.ResponseWriter, r *http.Request, state *RequestState, res *http.Response, decision Decision) {
	defer res.Body.Close()

	removeHopHeaders(res.Header)
	res.Header.Del("Set-Cookie")
	res.Header.Del("Set-Cookie2")
	if decision.RewrittenLocation != "" {
		res.Header.Set("Location", decision.RewrittenLocation)
	}
	res.Header.Set("X-Final-Url", state.Location.Href())

	copyHeader(w.Header(), res.Header)
	if f.Option.AnnotateResponse != nil {
		f.Option.AnnotateResponse(w.Header(), r, state.CorsMaxAge)
	}

	w.WriteHeader(res.StatusCode)
	state.StatusCode = res.StatusCode
	state.State = StateFinalized

	err := f.copyResponse(w, res.Body, f.flushIntervalFor(res))
	if err != nil && err != context.Canceled && f.Option.Logger != nil {
		f.Option.Logger.PrintAndLog("dpcore", "Unable to stream response body from "+state.Location.Href(), err)
	}
}

func (f *Forwarder) copyResponse(dst http.ResponseWriter, src io.Reader, flushInterval time.Duration) error {
	var w io.Writer = dst
	if flushInterval != 0 {
		if flusher, ok := dst.(http.Flusher); ok {
			pf := newPeriodicFlusher(dst, flusher, flushInterval)
			defer pf.stop()
			w = pf
		}
	}

	buf := make([]byte, copyBufferSize)
	_, err := io.CopyBuffer(w, src, buf)
	return err
}
