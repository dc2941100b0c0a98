package ratelimit

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLimiterDisabled(t *testing.T) {
	l, err := NewLimiter("")
	require.NoError(t, err)
	assert.Nil(t, l)

	//A nil limiter always permits
	assert.Equal(t, "", l.Check("http://example.com"))
	l.Close()
}

func TestNewLimiterMalformedPermitsAll(t *testing.T) {
	for _, spec := range []string{"abc", "10", "10  5", "-1 5", "10 5x", "5 0", "99999999999999999999 5", "5 99999999999999999999"} {
		l, err := NewLimiter(spec)
		require.NoError(t, err, "spec: %q", spec)
		require.NotNil(t, l, "spec: %q", spec)
		assert.True(t, l.PermitsAll())
		for i := 0; i < 100; i++ {
			assert.Equal(t, "", l.Check("http://example.com"))
		}
		l.Close()
	}
}

func TestNewLimiterInvalidRegex(t *testing.T) {
	for _, spec := range []string{"1 1 /(/", "1 1 /", "1 1 /abc", "1 1 abc/"} {
		_, err := NewLimiter(spec)
		assert.ErrorIs(t, err, ErrInvalidSpec, "spec: %q", spec)
	}
}

func TestCheckCountsPerHost(t *testing.T) {
	l, err := NewLimiter("3 5")
	require.NoError(t, err)
	defer l.Close()

	for i := 0; i < 3; i++ {
		assert.Equal(t, "", l.Check("http://example.com"), "call %d", i+1)
	}
	for i := 0; i < 3; i++ {
		assert.NotEqual(t, "", l.Check("http://example.com"))
	}

	//Other hosts have their own counter
	assert.Equal(t, "", l.Check("http://other.com"))

	//Scheme is stripped before counting
	assert.NotEqual(t, "", l.Check("https://example.com"))
	assert.NotEqual(t, "", l.Check("example.com"))

	//Rejected calls are not persisted
	assert.Equal(t, int64(3), l.Stats()["example.com"])
}

func TestCheckResetStartsNewPeriod(t *testing.T) {
	l, err := NewLimiter("2 1")
	require.NoError(t, err)
	defer l.Close()

	assert.Equal(t, "", l.Check("a.com"))
	assert.Equal(t, "", l.Check("a.com"))
	assert.NotEqual(t, "", l.Check("a.com"))

	l.Reset()
	assert.Equal(t, "", l.Check("a.com"))
	assert.Equal(t, "", l.Check("a.com"))
	assert.NotEqual(t, "", l.Check("a.com"))
}

func TestCheckUnlimitedHosts(t *testing.T) {
	l, err := NewLimiter("1 5 example.com /(.*\\.)?trusted\\.org/")
	require.NoError(t, err)
	defer l.Close()

	for i := 0; i < 5; i++ {
		assert.Equal(t, "", l.Check("http://example.com"))
		assert.Equal(t, "", l.Check("https://EXAMPLE.COM"))
		assert.Equal(t, "", l.Check("http://api.trusted.org"))
	}

	//Literal tokens are escaped, the dot is not a wildcard
	assert.Equal(t, "", l.Check("http://exampleXcom"))
	assert.NotEqual(t, "", l.Check("http://exampleXcom"))

	//Anchored match
	assert.Equal(t, "", l.Check("http://sub.example.com"))
	assert.NotEqual(t, "", l.Check("http://sub.example.com"))
}

func TestCheckScenarioFromConfig(t *testing.T) {
	l, err := NewLimiter("1 5 example.com")
	require.NoError(t, err)
	defer l.Close()

	assert.Equal(t, "", l.Check("other.com"))
	assert.NotEqual(t, "", l.Check("other.com"))

	assert.Equal(t, "", l.Check("http://example.com"))
	assert.Equal(t, "", l.Check("http://example.com"))
}

func TestRateLimitMessage(t *testing.T) {
	l, err := NewLimiter("10 1")
	require.NoError(t, err)
	defer l.Close()
	assert.Equal(t, "The number of requests is limited to 10 per minute. Please self-host this proxy if you need more quota.", l.message)

	l2, err := NewLimiter("10 3")
	require.NoError(t, err)
	defer l2.Close()
	assert.Contains(t, l2.message, "limited to 10 per 3 minutes.")
}

func TestCheckConcurrent(t *testing.T) {
	l, err := NewLimiter("100 5")
	require.NoError(t, err)
	defer l.Close()

	var wg sync.WaitGroup
	var mu sync.Mutex
	permitted := 0
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Check("http://busy.com") == "" {
				mu.Lock()
				permitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, permitted)
}

func TestCloseIsIdempotent(t *testing.T) {
	l, err := NewLimiter("1 1")
	require.NoError(t, err)
	l.Close()
	l.Close()
}
