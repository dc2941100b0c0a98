package ratelimit

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

/*
	ratelimit.go

	Per origin host request counter. The counters are
	cleared in one go every period (hard reset, not a
	sliding window).

	Spec string:
	<max requests> <period minutes> [unlimited hosts or /regex/ ...]
	e.g. "50 3 my.example.com /(.*\.)?trusted\.org/"
*/

var (
	ErrInvalidSpec = errors.New("invalid rate limit spec")
)

var (
	specPattern   = regexp.MustCompile(`^(\d+) (\d+)(?:\s*$|\s+([\s\S]+)$)`)
	schemePattern = regexp.MustCompile(`(?i)^[\w\-]+://`)
)

type Limiter struct {
	MaxRequestsPerPeriod int64
	PeriodInMinutes      int64

	unlimited *regexp.Regexp   //Hosts that are never limited, nil if none
	table     map[string]int64 //Host to request count in current period
	mu        sync.Mutex
	message   string
	ticker    *time.Ticker
	stopChan  chan bool
	closeOnce sync.Once
	permitAll bool //Malformed spec, never reject
}

// NewLimiter create a rate limiter from the spec string.
// Return nil if the spec is empty (rate limit disabled)
func NewLimiter(spec string) (*Limiter, error) {
	if spec == "" {
		return nil, nil
	}

	match := specPattern.FindStringSubmatch(spec)
	if match == nil {
		//Unknown format. Install a limiter that never rejects
		return &Limiter{permitAll: true, table: map[string]int64{}}, nil
	}

	//Out of range numbers or a zero period are treated like an unknown format
	maxRequests, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return &Limiter{permitAll: true, table: map[string]int64{}}, nil
	}
	periodInMinutes, err := strconv.ParseInt(match[2], 10, 64)
	if err != nil || periodInMinutes <= 0 {
		return &Limiter{permitAll: true, table: map[string]int64{}}, nil
	}

	unlimited, err := compileUnlimitedPattern(match[3])
	if err != nil {
		return nil, err
	}

	thisLimiter := Limiter{
		MaxRequestsPerPeriod: maxRequests,
		PeriodInMinutes:      periodInMinutes,
		unlimited:            unlimited,
		table:                map[string]int64{},
		message:              rateLimitMessage(maxRequests, periodInMinutes),
		stopChan:             make(chan bool),
	}

	thisLimiter.startResetTicker(time.Duration(periodInMinutes) * time.Minute)
	return &thisLimiter, nil
}

// PermitsAll return true if the spec was not understood and nothing is ever limited
func (l *Limiter) PermitsAll() bool {
	return l == nil || l.permitAll
}

// compileUnlimitedPattern OR-combine all unlimited host tokens into one
// anchored, case-insensitive pattern
func compileUnlimitedPattern(unlimitedHosts string) (*regexp.Regexp, error) {
	unlimitedHosts = strings.TrimSpace(unlimitedHosts)
	if unlimitedHosts == "" {
		return nil, nil
	}

	parts := []string{}
	for i, unlimitedHost := range strings.Fields(unlimitedHosts) {
		startsWithSlash := strings.HasPrefix(unlimitedHost, "/")
		endsWithSlash := strings.HasSuffix(unlimitedHost, "/")
		if startsWithSlash || endsWithSlash {
			if len(unlimitedHost) == 1 || !startsWithSlash || !endsWithSlash {
				return nil, fmt.Errorf("%w: regex at index %d must start and end with a slash (\"/\")", ErrInvalidSpec, i)
			}
			unlimitedHost = unlimitedHost[1 : len(unlimitedHost)-1]
			if _, err := regexp.Compile(unlimitedHost); err != nil {
				return nil, fmt.Errorf("%w: regex at index %d: %v", ErrInvalidSpec, i, err)
			}
		} else {
			unlimitedHost = regexp.QuoteMeta(unlimitedHost)
		}
		parts = append(parts, unlimitedHost)
	}

	return regexp.Compile(`(?i)^(?:` + strings.Join(parts, "|") + `)$`)
}

func rateLimitMessage(maxRequests int64, periodInMinutes int64) string {
	period := " per " + strconv.FormatInt(periodInMinutes, 10) + " minutes"
	if periodInMinutes == 1 {
		period = " per minute"
	}
	return "The number of requests is limited to " + strconv.FormatInt(maxRequests, 10) + period + ". " +
		"Please self-host this proxy if you need more quota."
}

// Check the origin against the limit. Return a non-empty message if the
// request must be rejected
func (l *Limiter) Check(origin string) string {
	if l == nil || l.permitAll {
		return ""
	}

	host := schemePattern.ReplaceAllString(origin, "")
	if l.unlimited != nil && l.unlimited.MatchString(host) {
		return ""
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	count := l.table[host] + 1
	if count > l.MaxRequestsPerPeriod {
		return l.message
	}
	l.table[host] = count
	return ""
}

// Reset clear all counters, start a new period
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.table = map[string]int64{}
}

// Stats return a copy of the counters in current period
func (l *Limiter) Stats() map[string]int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	results := make(map[string]int64, len(l.table))
	for host, count := range l.table {
		results[host] = count
	}
	return results
}

func (l *Limiter) startResetTicker(period time.Duration) {
	ticker := time.NewTicker(period)
	l.ticker = ticker
	go func() {
		for {
			select {
			case <-l.stopChan:
				return
			case <-ticker.C:
				l.Reset()
			}
		}
	}()
}

// Close stop the reset ticker
func (l *Limiter) Close() {
	if l == nil {
		return
	}
	l.closeOnce.Do(func() {
		if l.ticker != nil {
			l.ticker.Stop()
		}
		if l.stopChan != nil {
			close(l.stopChan)
		}
	})
}
