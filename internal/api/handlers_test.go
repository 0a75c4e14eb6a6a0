package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/codahale/gubbins/assert"

	"santa.share/config"
	"santa.share/internal/links"
	"santa.share/internal/logging"
	"santa.share/internal/notify"
	"santa.share/internal/store"
)

var quiet = logging.Logger{Out: io.Discard, Err: io.Discard}

type okSender struct{}

func (okSender) Send(ctx context.Context, msg notify.Message) error {
	if strings.HasPrefix(msg.To, "bounce") {
		return errors.New("550 no such user")
	}
	return nil
}

func newServer(t *testing.T, backend links.Backend, sender notify.Sender, mutate func(*config.Config)) *httptest.Server {
	t.Helper()

	cfg := config.Default()
	cfg.RateLimit.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}

	srv := httptest.NewServer(SetupRouter(backend, notify.NewMailer(sender, quiet), cfg, quiet))
	t.Cleanup(srv.Close)
	return srv
}

func memoryBackend(t *testing.T) links.Backend {
	t.Helper()

	mem := store.NewMemoryStore(time.Hour)
	t.Cleanup(func() { mem.Close() })
	return links.NewStoreBackend(mem, time.Hour)
}

func post(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()

	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	return resp, decode(t, resp)
}

func get(t *testing.T, url string) (*http.Response, map[string]any) {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	return resp, decode(t, resp)
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	return out
}

func TestHealth(t *testing.T) {
	srv := newServer(t, nil, nil, nil)

	resp, body := get(t, srv.URL+"/health")
	assert.Equal(t, "status", http.StatusOK, resp.StatusCode)
	assert.Equal(t, "body", "ok", body["status"])
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing request id")
	}
}

func TestStoreAndRevealOnce(t *testing.T) {
	srv := newServer(t, memoryBackend(t), nil, nil)

	resp, body := post(t, srv.URL+"/api/store", `{"matches":[{"id":"abc","encryptedMatch":"AQID","iv":"__4"}]}`)
	assert.Equal(t, "store status", http.StatusOK, resp.StatusCode)
	assert.Equal(t, "stored", float64(1), body["stored"])

	resp, body = get(t, srv.URL+"/api/reveal?id=abc")
	assert.Equal(t, "first reveal", http.StatusOK, resp.StatusCode)
	assert.Equal(t, "encryptedMatch", "AQID", body["encryptedMatch"])
	assert.Equal(t, "iv", "__4", body["iv"])

	resp, body = get(t, srv.URL+"/api/reveal?id=abc")
	assert.Equal(t, "second reveal", http.StatusGone, resp.StatusCode)
	assert.Equal(t, "error", "This match has already been viewed or does not exist.", body["error"])
}

func TestStoreRejectsBadInput(t *testing.T) {
	srv := newServer(t, memoryBackend(t), nil, nil)

	for _, body := range []string{
		`{}`,
		`{"matches":"nope"}`,
		`{"matches":[{"encryptedMatch":"AQID","iv":"__4"}]}`,
		`not json`,
	} {
		resp, _ := post(t, srv.URL+"/api/store", body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: got %d", body, resp.StatusCode)
		}
	}

	resp, _ := get(t, srv.URL+"/api/reveal")
	assert.Equal(t, "missing id", http.StatusBadRequest, resp.StatusCode)
}

func TestStorageDisabled(t *testing.T) {
	srv := newServer(t, nil, nil, nil)

	resp, _ := post(t, srv.URL+"/api/store", `{"matches":[]}`)
	assert.Equal(t, "store", http.StatusNotImplemented, resp.StatusCode)

	resp, _ = get(t, srv.URL+"/api/reveal?id=abc")
	assert.Equal(t, "reveal", http.StatusNotImplemented, resp.StatusCode)
}

func TestNotify(t *testing.T) {
	srv := newServer(t, nil, okSender{}, nil)

	resp, body := post(t, srv.URL+"/api/notify", `{"notifications":[
		{"name":"Alice","email":"alice@example.com","link":"https://x/reveal/a#k"},
		{"name":"Bob","email":"bounce@example.com","link":"https://x/reveal/b#k"},
		{"name":"Carol","link":"https://x/reveal/c#k"}
	]}`)

	assert.Equal(t, "status", http.StatusOK, resp.StatusCode)
	assert.Equal(t, "sent", float64(1), body["sent"])
	assert.Equal(t, "sent_to", []any{"alice@example.com"}, body["sent_to"])
	assert.Equal(t, "failed", []any{map[string]any{"email": "bounce@example.com", "error": "550 no such user"}}, body["failed"])
}

func TestNotifyNotConfigured(t *testing.T) {
	srv := newServer(t, nil, nil, nil)

	resp, _ := post(t, srv.URL+"/api/notify", `{"notifications":[]}`)
	assert.Equal(t, "status", http.StatusServiceUnavailable, resp.StatusCode)

	resp, _ = post(t, srv.URL+"/api/notify", `{"nope":1}`)
	assert.Equal(t, "bad payload", http.StatusBadRequest, resp.StatusCode)
}

func TestJSONOnly(t *testing.T) {
	srv := newServer(t, memoryBackend(t), nil, nil)

	resp, err := http.Post(srv.URL+"/api/store", "text/plain", strings.NewReader(`{"matches":[]}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	assert.Equal(t, "status", http.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestRevealRateLimit(t *testing.T) {
	srv := newServer(t, memoryBackend(t), nil, func(c *config.Config) {
		c.RateLimit.Enabled = true
		c.RateLimit.RevealPerMin = 2
	})

	codes := make([]int, 3)
	for i := range codes {
		resp, _ := get(t, srv.URL+"/api/reveal?id=missing")
		codes[i] = resp.StatusCode
	}

	assert.Equal(t, "codes", []int{http.StatusGone, http.StatusGone, http.StatusTooManyRequests}, codes)
}

func TestRevealPage(t *testing.T) {
	srv := newServer(t, nil, nil, nil)

	resp, err := http.Get(srv.URL + "/reveal/abc?data=x")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "status", http.StatusOK, resp.StatusCode)
	assert.Equal(t, "referrer policy", "no-referrer", resp.Header.Get("Referrer-Policy"))
	if !strings.Contains(string(body), "Reveal My Match") {
		t.Error("reveal page not served")
	}
}

func TestCORS(t *testing.T) {
	srv := newServer(t, nil, nil, nil)

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/store", nil)
	req.Header.Set("Origin", "http://localhost:8080")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	assert.Equal(t, "status", http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "origin", "http://localhost:8080", resp.Header.Get("Access-Control-Allow-Origin"))
}
