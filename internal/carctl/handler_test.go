package carctl

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larsks/carcontrol/internal/api"
	"github.com/larsks/carcontrol/internal/cli"
	"github.com/larsks/carcontrol/internal/pindriver"
	"github.com/larsks/carcontrol/internal/registry"
)

// syncBuffer is a bytes.Buffer safe for use from the watch goroutine.
type syncBuffer struct {
	mutex sync.Mutex
	buf   bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Reset() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.buf.Reset()
}

func startServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := api.NewConfig()
	cfg.Driver = pindriver.BackendSimulated
	cfg.Switches = registry.DefaultDefinitions()

	srv, err := api.NewServer(cfg)
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func newTestHandler(serverURL string) (*Handler, *syncBuffer) {
	out := &syncBuffer{}
	h := &Handler{stdout: out}
	h.config = &Config{ServerURL: serverURL, Timeout: 5 * time.Second}
	return h, out
}

func run(h *Handler, args ...string) error {
	return h.Execute(&cli.CommandArgs{
		Command: cli.CommandStart,
		Config:  h.config,
		Args:    args,
	})
}

func TestExecute_Help(t *testing.T) {
	h, out := newTestHandler("http://unused")

	require.NoError(t, run(h))
	assert.Contains(t, out.String(), "Usage: carctl")

	out.Reset()
	require.NoError(t, h.Execute(&cli.CommandArgs{Command: cli.CommandHelp, Config: h.config}))
	assert.Contains(t, out.String(), "all-off")
}

func TestExecute_Errors(t *testing.T) {
	h, _ := newTestHandler("http://unused")

	assert.ErrorIs(t, run(h, "explode"), ErrUnknownCommand)
	assert.ErrorIs(t, run(h, "toggle"), ErrUsage)
	assert.ErrorIs(t, run(h, "status", "a", "b"), ErrUsage)
	assert.ErrorIs(t, run(h, "list", "extra"), ErrUsage)

	err := h.Execute(&cli.CommandArgs{Command: cli.CommandStart, Config: &struct{ cli.Configurable }{}})
	assert.Error(t, err)
}

func TestCommands(t *testing.T) {
	ts := startServer(t)
	h, out := newTestHandler(ts.URL)

	steps := []struct {
		args []string
		want []string
	}{
		{[]string{"list"}, []string{"Switches (8 total):", "  switch1: off (Front Lights)", "  switch8: off"}},
		{[]string{"toggle", "switch1"}, []string{"Switch switch1 is now on"}},
		{[]string{"status", "switch1"}, []string{"Switch: switch1", "Pin: 18", "Status: on"}},
		{[]string{"on", "switch1"}, []string{"Switch already on: switch1"}},
		{[]string{"off", "switch1"}, []string{"Switch turned off: switch1"}},
		{[]string{"on", "switch3"}, []string{"Switch turned on: switch3"}},
		{[]string{"all-off"}, []string{"All switches turned off (1 changed)"}},
		{[]string{"health"}, []string{"Status: ok", "Driver: simulated", "Switches: 8"}},
	}

	for _, step := range steps {
		t.Run(strings.Join(step.args, " "), func(t *testing.T) {
			out.Reset()
			require.NoError(t, run(h, step.args...))
			for _, want := range step.want {
				assert.Contains(t, out.String(), want)
			}
		})
	}
}

func TestOnWithDuration(t *testing.T) {
	ts := startServer(t)
	h, out := newTestHandler(ts.URL)
	h.duration = 30

	require.NoError(t, run(h, "on", "switch2"))
	assert.Contains(t, out.String(), "Switch turned on: switch2 (off again in 30 seconds)")

	// --duration only applies to on.
	out.Reset()
	require.NoError(t, run(h, "off", "switch2"))
	assert.Contains(t, out.String(), "Switch turned off: switch2")
}

func TestUnknownSwitch(t *testing.T) {
	ts := startServer(t)
	h, _ := newTestHandler(ts.URL)

	err := run(h, "status", "switch99")
	require.ErrorIs(t, err, ErrAPI)
	assert.Contains(t, err.Error(), "switch99")

	assert.ErrorIs(t, run(h, "toggle", "switch99"), ErrAPI)
}

type mockHTTPClient struct {
	resp *http.Response
	err  error
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return m.resp, m.err
}

func TestAPIRequestFailures(t *testing.T) {
	t.Run("connection error", func(t *testing.T) {
		h, _ := newTestHandler("http://unused")
		h.httpClient = &mockHTTPClient{err: errors.New("connection refused")}

		err := run(h, "list")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to make request")
	})

	t.Run("non-json error", func(t *testing.T) {
		h, _ := newTestHandler("http://unused")
		h.httpClient = &mockHTTPClient{resp: &http.Response{
			StatusCode: http.StatusBadGateway,
			Body:       io.NopCloser(strings.NewReader("bad gateway")),
		}}

		err := run(h, "health")
		require.ErrorIs(t, err, ErrAPI)
		assert.Contains(t, err.Error(), "status 502")
	})

	t.Run("invalid body", func(t *testing.T) {
		h, _ := newTestHandler("http://unused")
		h.httpClient = &mockHTTPClient{resp: &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader("{")),
		}}

		err := run(h, "list")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "error parsing response")
	})
}

func TestWatch(t *testing.T) {
	ts := startServer(t)
	h, out := newTestHandler(ts.URL)
	h.count = 3

	done := make(chan error, 1)
	go func() {
		done <- run(h, "watch")
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "initial-state")
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, out.String(), "switch1=off")

	ctl, _ := newTestHandler(ts.URL)
	require.NoError(t, run(ctl, "toggle", "switch4"))
	require.NoError(t, run(ctl, "all-off"))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("watch did not exit")
	}
	assert.Contains(t, out.String(), "switch4 on")
	assert.Contains(t, out.String(), "switch4 off")
}

func TestWatch_ConnectFailure(t *testing.T) {
	h, _ := newTestHandler("http://127.0.0.1:1")
	err := run(h, "watch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect")
}

func TestWebsocketURL(t *testing.T) {
	tests := map[string]string{
		"http://localhost:3000":  "ws://localhost:3000/ws",
		"http://localhost:3000/": "ws://localhost:3000/ws",
		"https://car.example":    "wss://car.example/ws",
	}
	for in, want := range tests {
		assert.Equal(t, want, websocketURL(in), in)
	}
}
