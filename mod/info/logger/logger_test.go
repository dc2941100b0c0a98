package logger

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogWritesToMonthlyFile(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLogger("cg", dir)
	require.NoError(t, err)
	defer l.Close()

	l.Log("proxy", "hello", nil, false)
	l.Log("proxy", "failed", errors.New("boom"), false)

	content, err := os.ReadFile(l.CurrentLogFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "[proxy] [system:info] hello")
	assert.Contains(t, lines[1], "[proxy] [system:error] failed: boom")
}

func TestFmtLoggerDoesNotPanic(t *testing.T) {
	l := NewFmtLogger()
	l.Log("proxy", "stdout only", nil, false)
	l.Close()
}

func TestRequestIDFromContext(t *testing.T) {
	assert.Equal(t, "-", RequestIDFromContext(context.Background()))

	ctx := WithRequestID(context.Background())
	id := RequestIDFromContext(ctx)
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
	assert.NotEqual(t, id, RequestIDFromContext(WithRequestID(context.Background())))
}

func TestLogSwitchesFileOnNewMonth(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLogger("cg", dir)
	require.NoError(t, err)
	defer l.Close()

	l.now = func() time.Time { return time.Date(2026, time.January, 31, 23, 59, 0, 0, time.UTC) }
	l.Log("proxy", "january", nil, false)
	assert.Equal(t, filepath.Join(dir, "cg_2026-1.log"), l.CurrentLogFile)

	l.now = func() time.Time { return time.Date(2026, time.February, 1, 0, 0, 1, 0, time.UTC) }
	l.Log("proxy", "february", nil, false)
	assert.Equal(t, filepath.Join(dir, "cg_2026-2.log"), l.CurrentLogFile)

	jan, err := os.ReadFile(filepath.Join(dir, "cg_2026-1.log"))
	require.NoError(t, err)
	assert.Contains(t, string(jan), "january")
	assert.NotContains(t, string(jan), "february")
}

func TestAccessLine(t *testing.T) {
	r := httptest.NewRequest("GET", "/http://example.com/", nil)
	r.Header.Set("Origin", "http://site.test")
	r.RemoteAddr = "10.0.0.1:4321"
	r = r.WithContext(WithRequestID(r.Context()))

	line := accessLine(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), r, "corsproxy", 200)
	assert.True(t, strings.HasPrefix(line, "[2026-03-01 00:00:00.000000] [router:corsproxy]"))
	assert.Contains(t, line, "[origin:http://site.test]")
	assert.Contains(t, line, "[client 10.0.0.1]")
	assert.True(t, strings.HasSuffix(line, "GET /http://example.com/ 200"))
}
