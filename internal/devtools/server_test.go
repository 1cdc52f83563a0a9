package devtools

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTarget struct {
	mu      sync.Mutex
	navs    []string
	reloads int
}

func (f *fakeTarget) TargetID() string { return "T1" }
func (f *fakeTarget) URL() string      { return "https://example.test/" }
func (f *fakeTarget) Title() string    { return "Example" }
func (f *fakeTarget) Evaluate(_ context.Context, expr string) (string, error) {
	if expr == "boom" {
		return "", errors.New("ReferenceError: boom is not defined")
	}
	return "value:" + expr, nil
}
func (f *fakeTarget) Navigate(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navs = append(f.navs, url)
}
func (f *fakeTarget) Reload() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reloads++
}

type fakeRegistry struct{ targets []Target }

func (r fakeRegistry) Targets() []Target { return r.targets }

func newTestServer(t *testing.T) (*Server, *fakeTarget, *httptest.Server) {
	t.Helper()
	target := &fakeTarget{}
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "offscreen_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()
	s := New(fakeRegistry{targets: []Target{target}}, reg, "offscreen/test", nil)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, target, ts
}

func TestVersionAndList(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/json/version")
	require.NoError(t, err)
	var version map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&version))
	resp.Body.Close()
	assert.Equal(t, "offscreen/test", version["Browser"])
	assert.Equal(t, ProtocolVersion, version["Protocol-Version"])

	resp, err = http.Get(ts.URL + "/json/list")
	require.NoError(t, err)
	var list []targetInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	resp.Body.Close()
	require.Len(t, list, 1)
	assert.Equal(t, "T1", list[0].ID)
	assert.Equal(t, "Example", list[0].Title)
	assert.True(t, strings.HasSuffix(list[0].WebSocketDebuggerURL, "/devtools/page/T1"))
}

func TestMetricsEndpoint(t *testing.T) {
	_, _, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "offscreen_test_total 1")
}

func TestUnknownTargetIs404(t *testing.T) {
	_, _, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/devtools/page/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/devtools/page/T1", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, msg string) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(msg)))
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestSocketCommands(t *testing.T) {
	_, target, ts := newTestServer(t)
	conn := dial(t, ts)

	out := roundTrip(t, conn, `{"id":1,"method":"Runtime.evaluate","params":{"expression":"1+1"}}`)
	assert.EqualValues(t, 1, out["id"])
	result := out["result"].(map[string]any)["result"].(map[string]any)
	assert.Equal(t, "value:1+1", result["value"])

	out = roundTrip(t, conn, `{"id":2,"method":"Runtime.evaluate","params":{"expression":"boom"}}`)
	assert.Contains(t, out["result"].(map[string]any), "exceptionDetails")

	out = roundTrip(t, conn, `{"id":3,"method":"Page.navigate","params":{"url":"https://other.test/"}}`)
	assert.EqualValues(t, 3, out["id"])
	out = roundTrip(t, conn, `{"id":4,"method":"Page.reload"}`)
	assert.EqualValues(t, 4, out["id"])
	out = roundTrip(t, conn, `{"id":5,"method":"Network.enable"}`)
	assert.Contains(t, out, "error")

	target.mu.Lock()
	defer target.mu.Unlock()
	assert.Equal(t, []string{"https://other.test/"}, target.navs)
	assert.Equal(t, 1, target.reloads)
}

func TestPublishReachesSubscriber(t *testing.T) {
	s, _, ts := newTestServer(t)
	conn := dial(t, ts)
	require.Eventually(t, func() bool { return s.Hub().Subscribers() == 1 }, 2*time.Second, 5*time.Millisecond)

	s.Publish("other", "Page.loadEventFired", nil)
	s.Publish("T1", "Page.frameNavigated", map[string]any{"url": "https://example.test/"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var ev event
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, "Page.frameNavigated", ev.Method)
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	h := NewHub()
	sub := h.subscribe("T1")
	for i := 0; i < subscriberBuffer+5; i++ {
		h.Publish("T1", "Runtime.consoleAPICalled", nil)
	}
	assert.Len(t, sub.ch, subscriberBuffer)
	assert.EqualValues(t, 5, h.Dropped())
	h.unsubscribe(sub)
	assert.Equal(t, 0, h.Subscribers())
}
