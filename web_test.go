/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, cfg *Config) *httptest.Server {
	t.Helper()

	srv, _ := newTestServerWithVisits(t, cfg)

	return srv
}

func newTestServerWithVisits(t *testing.T, cfg *Config) (*httptest.Server, *VisitManager) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	mux, vm, err := newRouter(ctx, cfg, newMetrics(), make(chan error, 64))
	require.NoError(t, err)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv, vm
}

func dialCard(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, string(body)
}

func TestServeCard(t *testing.T) {
	srv := newTestServer(t, testConfig())

	resp, body := get(t, srv.URL+"/")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Security-Policy"), "img-src 'self' data:")
	assert.Contains(t, body, `src="/assets/dudu.svg"`)
	assert.Contains(t, body, `src="/assets/app.js"`)
	assert.Contains(t, body, "Will You Be My Valentine?")
	assert.Contains(t, body, `maxlength="64"`)
	assert.Contains(t, body, `id="disconnected"`)
}

func TestServeCardWithPrefix(t *testing.T) {
	cfg := testConfig()
	cfg.prefix = "/love"
	srv := newTestServer(t, cfg)

	resp, body := get(t, srv.URL+"/love/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `data-prefix="/love"`)
	assert.Contains(t, body, `src="/love/assets/dudu.svg"`)

	resp, _ = get(t, srv.URL+"/love/assets/app.css")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = get(t, srv.URL+"/assets/app.css")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServeAssets(t *testing.T) {
	srv := newTestServer(t, testConfig())

	tests := []struct {
		path        string
		contentType string
	}{
		{"/assets/app.js", "text/javascript; charset=utf-8"},
		{"/assets/app.css", "text/css; charset=utf-8"},
		{"/assets/dudu.svg", "image/svg+xml"},
		{"/favicons/favicon.svg", "image/svg+xml"},
		{"/favicons/site.webmanifest", "application/manifest+json"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, body := get(t, srv.URL+tt.path)

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, tt.contentType, resp.Header.Get("Content-Type"))
			assert.NotEmpty(t, body)
		})
	}

	resp, _ := get(t, srv.URL+"/assets/missing.js")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServeTextEndpoints(t *testing.T) {
	srv := newTestServer(t, testConfig())

	resp, body := get(t, srv.URL+"/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Ok\n", body)

	resp, body = get(t, srv.URL+"/version")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "sweetheart v"+releaseVersion+"\n", body)

	resp, body = get(t, srv.URL+"/robots.txt")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Disallow: /")
}

func TestServeQR(t *testing.T) {
	srv := newTestServer(t, testConfig())

	resp, body := get(t, srv.URL+"/qr")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.True(t, strings.HasPrefix(body, "\x89PNG"))
}

func TestCardURL(t *testing.T) {
	cfg := testConfig()
	cfg.prefix = "/love"

	r := httptest.NewRequest(http.MethodGet, "http://card.example/love/qr", nil)
	assert.Equal(t, "http://card.example/love/", cardURL(cfg, r))

	r.Header.Set("X-Forwarded-Proto", "https")
	assert.Equal(t, "https://card.example/love/", cardURL(cfg, r))
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, testConfig())

	resp, _ := get(t, srv.URL+"/metrics")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	cfg := testConfig()
	cfg.metrics = true
	srv = newTestServer(t, cfg)

	resp, body := get(t, srv.URL+"/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "sweetheart_visits_live")
}

func TestProfileEndpoint(t *testing.T) {
	cfg := testConfig()
	cfg.profile = true
	srv := newTestServer(t, cfg)

	resp, _ := get(t, srv.URL+"/pprof/heap")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))

	return msg
}

func TestWebsocketFlow(t *testing.T) {
	srv := newTestServer(t, testConfig())

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	info := readMessage(t, conn)
	assert.Equal(t, "session_info", info["type"])
	assert.NotEmpty(t, info["visit_id"])

	step := readMessage(t, conn)
	assert.Equal(t, "step", step["type"])
	assert.Equal(t, "entry", step["step"])

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "submit_name", Name: "Bob"}))
	rejected := readMessage(t, conn)
	assert.Equal(t, "name_rejected", rejected["type"])
	assert.Equal(t, nameRejectedMessage, rejected["message"])

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "submit_name", Name: "  Bubu "}))
	step = readMessage(t, conn)
	assert.Equal(t, "question", step["step"])
	assert.Equal(t, "Bubu", step["name"])

	docked := readMessage(t, conn)
	assert.Equal(t, "evasion", docked["type"])
	assert.Nil(t, docked["position"])

	for i := 1; i <= 3; i++ {
		require.NoError(t, conn.WriteJSON(ClientMessage{Type: "evade", Width: 400, Height: 300}))

		ev := readMessage(t, conn)
		assert.Equal(t, "evasion", ev["type"])
		assert.InDelta(t, 1+0.25*float64(i), ev["affirm_scale"], 1e-9)
		assert.Equal(t, true, ev["pulse"])

		pos, ok := ev["position"].(map[string]any)
		require.True(t, ok)
		assert.LessOrEqual(t, pos["x"], 280.0)
		assert.LessOrEqual(t, pos["y"], 240.0)
	}

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "affirm"}))
	step = readMessage(t, conn)
	assert.Equal(t, "celebration", step["step"])

	frames := 0
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	for {
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		require.Equal(t, "confetti", msg["type"])
		frames++
	}

	assert.GreaterOrEqual(t, frames, 1)
	assert.LessOrEqual(t, frames, 4)
}

func TestWebsocketKeepaliveSurvivesReaper(t *testing.T) {
	cfg := testConfig()
	cfg.pingInterval = 100 * time.Millisecond
	cfg.sessionTimeout = 400 * time.Millisecond
	require.NoError(t, cfg.validate())

	srv, vm := newTestServerWithVisits(t, cfg)
	conn := dialCard(t, srv)

	// Reading lets the client answer pings, as a browser does.
	msgs := make(chan map[string]any, 16)
	go func() {
		defer close(msgs)
		for {
			var msg map[string]any
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			msgs <- msg
		}
	}()

	// Well past the session timeout without sending a single message.
	time.Sleep(1200 * time.Millisecond)
	require.Equal(t, 1, vm.count())

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "submit_name", Name: "celia"}))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg, ok := <-msgs:
			require.True(t, ok, "connection closed")
			if msg["type"] == "step" && msg["step"] == "question" {
				return
			}
		case <-deadline:
			t.Fatal("no question step after idle wait")
		}
	}
}

func TestWebsocketSilentPeerIsDropped(t *testing.T) {
	cfg := testConfig()
	cfg.pingInterval = 100 * time.Millisecond
	cfg.sessionTimeout = 400 * time.Millisecond

	srv, vm := newTestServerWithVisits(t, cfg)

	// Never reads, so never answers a ping.
	_ = dialCard(t, srv)

	require.Eventually(t, func() bool { return vm.count() == 1 }, time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return vm.count() == 0 }, 3*time.Second, 20*time.Millisecond)
}
