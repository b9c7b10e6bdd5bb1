package bridge

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWSHubSendWithoutRemote(t *testing.T) {
	h := NewWSHub(zerolog.Nop(), 0)
	if err := h.Send(testCtx(t), LoadCommand{EngineID: "a"}); !errors.Is(err, ErrDisconnected) {
		t.Fatalf("expected ErrDisconnected, got %v", err)
	}
	if h.Connected() {
		t.Fatalf("expected not connected")
	}
}

func TestWSHubRoundTrip(t *testing.T) {
	h := NewWSHub(zerolog.Nop(), 8)
	states := make(chan bool, 4)
	h.OnConnection(func(c bool) { states <- c })
	srv := httptest.NewServer(h)
	defer srv.Close()

	c := dialHub(t, srv)
	if got := <-states; !got {
		t.Fatalf("expected attach callback")
	}
	waitFor(t, h.Connected)

	ctx := testCtx(t)
	if err := h.Send(ctx, LoadCommand{EngineID: "m-q4-MLC"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := c.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	cmd, err := DecodeCommand(data)
	if err != nil || cmd != (LoadCommand{EngineID: "m-q4-MLC"}) {
		t.Fatalf("cmd=%#v err=%v", cmd, err)
	}

	frames := []string{
		`{"type":"progress","model_slug":"m-q4-MLC","progress":0.1,"text":"a"}`,
		`garbage`,
		`{"type":"progress","model_slug":"m-q4-MLC","progress":0.2,"text":"b"}`,
		`{"type":"loaded","model_slug":"m-q4-MLC"}`,
	}
	for _, f := range frames {
		if err := c.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if ev := nextEvent(t, h.Events()).(ProgressEvent); ev.Text != "a" {
		t.Fatalf("first=%#v", ev)
	}
	if ev := nextEvent(t, h.Events()).(ProgressEvent); ev.Text != "b" {
		t.Fatalf("second=%#v", ev)
	}
	if ev := nextEvent(t, h.Events()); ev != (LoadedEvent{EngineID: "m-q4-MLC"}) {
		t.Fatalf("third=%#v", ev)
	}

	_ = c.Close()
	if got := <-states; got {
		t.Fatalf("expected detach callback")
	}
	waitFor(t, func() bool { return !h.Connected() })
}

func TestWSHubNewestConnectionWins(t *testing.T) {
	h := NewWSHub(zerolog.Nop(), 8)
	srv := httptest.NewServer(h)
	defer srv.Close()

	first := dialHub(t, srv)
	waitFor(t, h.Connected)
	second := dialHub(t, srv)

	// first connection gets closed by the hub
	_ = first.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := first.ReadMessage(); err == nil {
		t.Fatalf("expected replaced connection to be closed")
	}
	waitFor(t, h.Connected)
	if err := h.Send(testCtx(t), RunningCommand{Running: true}); err != nil {
		t.Fatalf("send: %v", err)
	}
	_ = second.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, data, err := second.ReadMessage(); err != nil || !strings.Contains(string(data), `"running":true`) {
		t.Fatalf("second read %q %v", data, err)
	}
}
