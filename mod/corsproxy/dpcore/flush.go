package dpcore

/*
	Flush.go

	Streaming support for proxied response bodies. Event streams
	and bodies without a known length are flushed on every write,
	everything else is flushed at most once per FlushInterval.
*/

import (
	"io"
	"mime"
	"net/http"
	"sync"
	"time"
)

// Pick a flush interval for the response. Negative means flush on every write
func (f *Forwarder) flushIntervalFor(res *http.Response) time.Duration {
	mediaType, _, _ := mime.ParseMediaType(res.Header.Get("Content-Type"))
	if mediaType == "text/event-stream" {
		return -1
	}

	if res.ContentLength == -1 {
		//Chunked or streamed upstream, do not hold back data
		return -1
	}

	return f.Option.FlushInterval
}

// periodicFlusher wraps the client writer and flushes it on a timer
type periodicFlusher struct {
	dst     io.Writer
	flusher http.Flusher
	every   time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	pending bool
}

func newPeriodicFlusher(dst io.Writer, flusher http.Flusher, every time.Duration) *periodicFlusher {
	return &periodicFlusher{
		dst:     dst,
		flusher: flusher,
		every:   every,
	}
}

func (p *periodicFlusher) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, err := p.dst.Write(b)
	if p.every < 0 {
		p.flusher.Flush()
		return n, err
	}

	if p.pending {
		return n, err
	}

	if p.timer == nil {
		p.timer = time.AfterFunc(p.every, p.onTimer)
	} else {
		p.timer.Reset(p.every)
	}
	p.pending = true
	return n, err
}

func (p *periodicFlusher) onTimer() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.pending {
		//stop() won the race
		return
	}
	p.flusher.Flush()
	p.pending = false
}

func (p *periodicFlusher) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = false
	if p.timer != nil {
		p.timer.Stop()
	}
}
