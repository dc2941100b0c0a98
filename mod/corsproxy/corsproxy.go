package corsproxy

/*
	CORS Proxy

	An open reverse proxy that adds CORS headers to the
	response of any URL given in the request path, e.g.
	GET /https://example.com/api?q=1
*/

import (
	"net/http"
	"strconv"
	"strings"

	"imuslab.com/corsgate/mod/corsproxy/dpcore"
	"imuslab.com/corsgate/mod/info/logger"
	"imuslab.com/corsgate/mod/utils"
)

const DefaultMaxRedirects = 5

// DefaultOptions return the options used by the stand-alone server
func DefaultOptions() *Options {
	return &Options{
		OriginBlacklist: []string{},
		OriginWhitelist: []string{},
		RequireHeader:   []string{"origin", "x-requested-with"},
		RemoveHeaders: []string{
			"cookie",
			"cookie2",
			"x-request-start",
			"x-request-id",
			"via",
			"connect-time",
			"total-route-time",
		},
		SetHeaders:   map[string]string{},
		MaxRedirects: DefaultMaxRedirects,
	}
}

// NewCorsProxy create the proxy handler. The options are normalized and
// must not be modified afterward
func NewCorsProxy(opts *Options) *CorsProxy {
	if opts == nil {
		opts = DefaultOptions()
	}

	if opts.Logger == nil {
		opts.Logger = logger.NewFmtLogger()
	}

	if opts.MaxRedirects < 0 {
		opts.MaxRedirects = 0
	}

	//Header names are matched case-insensitive
	requireHeader := []string{}
	for _, name := range opts.RequireHeader {
		if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
			requireHeader = append(requireHeader, name)
		}
	}
	opts.RequireHeader = requireHeader

	if opts.HelpText == "" {
		opts.HelpText = defaultHelpText
	}

	forwarder := dpcore.NewForwarder(&dpcore.ForwarderOptions{
		Transport:     opts.Transport,
		ProxyResolver: opts.ProxyResolver,
		FlushInterval: opts.FlushInterval,
		Logger:        opts.Logger,
		AnnotateResponse: func(header http.Header, r *http.Request, corsMaxAge int) {
			AnnotateCORS(header, r, corsMaxAge)
		},
	})

	thisProxy := CorsProxy{
		Option:    opts,
		forwarder: forwarder,
	}
	return &thisProxy
}

// ServeHTTP handle one inbound request
func (p *CorsProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r = r.WithContext(logger.WithRequestID(r.Context()))

	//Computed first, this also consumes the Access-Control-Request-* headers
	corsHeaders := AnnotateCORS(http.Header{}, r, p.Option.CorsMaxAge)

	admission, rejection := p.Admit(r)
	if rejection != nil {
		p.reject(w, r, corsHeaders, rejection)
		return
	}

	err := p.forwarder.Forward(w, r, admission.State)
	if err != nil {
		p.Option.Logger.PrintAndLog("proxy", "Upstream request to "+admission.Target.Href()+" failed", err)
		//Nothing was written to the client yet, drop the partial headers
		for k := range w.Header() {
			delete(w.Header(), k)
		}
		w.Header().Set("Access-Control-Allow-Origin", "*")
		utils.SendPlainTextResponse(w, http.StatusBadGateway, "Proxy error: "+err.Error())
		p.Option.Logger.LogHTTPRequest(r, "proxy-error", http.StatusBadGateway)
		return
	}

	p.Option.Logger.LogHTTPRequest(r, "proxy", admission.State.StatusCode)
}

func (p *CorsProxy) reject(w http.ResponseWriter, r *http.Request, corsHeaders http.Header, rejection *Rejection) {
	if rejection.Fallback && p.Option.Fallback != nil {
		p.Option.Fallback.ServeHTTP(w, r)
		return
	}

	if !rejection.OmitCORS {
		for k, v := range corsHeaders {
			w.Header()[k] = v
		}
	}
	for k, v := range rejection.Header {
		w.Header()[k] = v
	}

	p.Option.Logger.LogHTTPRequest(r, rejection.Reason, rejection.StatusCode)
	if rejection.Body == "" {
		w.WriteHeader(rejection.StatusCode)
		return
	}
	utils.SendPlainTextResponse(w, rejection.StatusCode, rejection.Body)
}

// Close release the upstream connections
func (p *CorsProxy) Close() {
	p.forwarder.Close()
}

var defaultHelpText = `This API enables cross-origin requests to anywhere.

Usage:

/               Shows help
/iscorsneeded   This is the only resource on this host which is served without CORS headers.
/<url>          Create a request to <url>, and includes CORS headers in the response.

If the protocol is omitted, it defaults to http (https if port 443 is specified).

Cookies are disabled and stripped from requests.

Redirects are automatically followed. For debugging purposes, each followed redirect results
in the addition of a X-CORS-Redirect-n header, where n starts at 1. These headers are listed
in Access-Control-Expose-Headers, so they can be read by the XMLHttpRequest API.
After ` + strconv.Itoa(DefaultMaxRedirects) + ` redirects, redirects are not followed any more. The redirect response is sent back
to the browser, which can choose to follow the redirect (handled automatically by the browser).

The requested URL is available in the X-Request-URL response header.
The final URL, after following all redirects, is available in the X-Final-URL response header.

To prevent the use of the proxy for casual browsing, the API requires either the Origin
or the X-Requested-With header to be set. To avoid unnecessary preflight (OPTIONS) requests,
it's recommended to not manually set these headers in your code.
`
