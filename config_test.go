package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvOrDefault(t *testing.T) {
	t.Setenv("CORSGATE_TEST_VALUE", "  value ")
	assert.Equal(t, "value", envOrDefault("CORSGATE_TEST_VALUE", "default"))

	t.Setenv("CORSGATE_TEST_VALUE", "")
	assert.Equal(t, "default", envOrDefault("CORSGATE_TEST_VALUE", "default"))
}

func TestEnvIntOrDefault(t *testing.T) {
	t.Setenv("CORSGATE_TEST_INT", "12")
	assert.Equal(t, 12, envIntOrDefault("CORSGATE_TEST_INT", 5))

	t.Setenv("CORSGATE_TEST_INT", "twelve")
	assert.Equal(t, 5, envIntOrDefault("CORSGATE_TEST_INT", 5))
}

func TestBuildProxyOptions(t *testing.T) {
	*originBlack = "https://a.test, ,https://b.test"
	*originWhite = ""
	*setHeader = "X-Api-Key:k,broken"
	*requireHeader = ""
	*maxRedirects = 2
	defer func() {
		*originBlack = ""
		*setHeader = ""
		*requireHeader = DEFAULT_REQUIRE_HEADER
		*maxRedirects = 5
	}()

	opts := buildProxyOptions()
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, opts.OriginBlacklist)
	assert.Empty(t, opts.OriginWhitelist)
	assert.Empty(t, opts.RequireHeader)
	assert.Equal(t, map[string]string{"X-Api-Key": "k"}, opts.SetHeaders)
	assert.Equal(t, 2, opts.MaxRedirects)
	assert.Contains(t, opts.RemoveHeaders, "cookie")
	assert.Nil(t, opts.RateLimiter)
	assert.Nil(t, opts.ProxyResolver)
}
