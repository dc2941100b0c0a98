package logger

/*
	Traffic Log

	Access lines of proxied requests, tagged with a per-request id

*/
import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"imuslab.com/corsgate/mod/netutils"
)

type requestIDKey struct{}

// WithRequestID attach a newly generated request id to the context
func WithRequestID(ctx context.Context) context.Context {
	return context.WithValue(ctx, requestIDKey{}, uuid.NewString())
}

// RequestIDFromContext return the request id, or "-" if none was attached
func RequestIDFromContext(ctx context.Context) string {
	id, ok := ctx.Value(requestIDKey{}).(string)
	if !ok || id == "" {
		return "-"
	}
	return id
}

// accessLine render one proxied request in the access log format
func accessLine(t time.Time, r *http.Request, reqclass string, statusCode int) string {
	return "[" + t.Format("2006-01-02 15:04:05.000000") + "] [router:" + reqclass + "]" +
		" [id:" + RequestIDFromContext(r.Context()) + "]" +
		" [origin:" + r.Header.Get("Origin") + "]" +
		" [client " + netutils.GetRequesterIP(r) + "]" +
		" [useragent " + r.UserAgent() + "] " +
		r.Method + " " + r.RequestURI + " " + strconv.Itoa(statusCode)
}

// LogHTTPRequest append an access line to the log file. The write happens
// in background so the proxy handler is never blocked on disk. Nothing is
// written for STDOUT-only loggers
func (l *Logger) LogHTTPRequest(r *http.Request, reqclass string, statusCode int) {
	line := accessLine(l.now(), r, reqclass, statusCode)
	go l.writeRaw(line)
}
