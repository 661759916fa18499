package vaultd

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOriginPatterns(t *testing.T) {
	require.Nil(t, originPatterns(nil))
	require.Equal(t, []string{"app.example.com", "localhost:3000"},
		originPatterns([]string{"https://app.example.com", "http://localhost:3000"}))
	require.Equal(t, []string{"*"}, originPatterns([]string{"https://app.example.com", "*"}))
	require.Equal(t, []string{"*.example.com"}, originPatterns([]string{"*.example.com"}))
}

func upgradeRequest(origin string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "http://vaultd.local/v1/vaults/x/events", nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Sec-WebSocket-Version", "13")
	req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
	req.Header.Set("Origin", origin)
	return req
}

func TestEventStreamRejectsUnlistedOrigin(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b := NewBroadcaster(4)

	rec := httptest.NewRecorder()
	serveEventStream(rec, upgradeRequest("https://evil.example"), b, []string{"https://app.example.com"}, "x", logger)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	serveEventStream(rec, upgradeRequest("https://evil.example"), b, nil, "x", logger)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Zero(t, b.Subscribers())
}
