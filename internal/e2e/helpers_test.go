package e2e

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"webllmd/internal/bridge"
	"webllmd/internal/catalog"
	"webllmd/internal/httpapi"
	"webllmd/internal/manager"
)

const (
	smallModel  = "Qwen2.5-0.5B-Instruct-q4f16_1-MLC"
	brokenModel = "Phi-3.5-mini-instruct-q4f16_1-MLC"
)

// newServer starts the full stack with the websocket hub mounted at /bridge.
func newServer(t *testing.T) (*httptest.Server, *manager.Manager) {
	t.Helper()
	hub := bridge.NewWSHub(zerolog.Nop(), 0)
	events := manager.NewBroadcaster()
	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Channel:      hub,
		Catalog:      catalog.NewStore(catalog.Default()),
		DefaultModel: smallModel,
		LoadTimeout:  2 * time.Second,
		ChunkTimeout: 2 * time.Second,
		Publisher:    events,
	})
	hub.OnConnection(mgr.HostConnection)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = mgr.Run(ctx) }()
	srv := httptest.NewServer(httpapi.NewMux(mgr, httpapi.Options{Bridge: hub, Events: events}))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
		cancel()
	})
	return srv, mgr
}

// browser plays the engine host page over a real websocket. It caches
// loaded engines, fails loads listed in failLoad and streams the words of
// the last user message back as chunks.
type browser struct {
	t    *testing.T
	conn *websocket.Conn
	done chan struct{}

	mu       sync.Mutex
	commands []bridge.Command
	engines  map[string]bool
	failLoad map[string]string
}

func attachBrowser(t *testing.T, srv *httptest.Server, mgr *manager.Manager) *browser {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/bridge"
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial bridge: %v", err)
	}
	b := &browser{t: t, conn: c, engines: map[string]bool{}, failLoad: map[string]string{}, done: make(chan struct{})}
	t.Cleanup(b.detach)
	go b.serve()
	waitUntil(t, mgr.Connected)
	return b
}

func (b *browser) detach() {
	_ = b.conn.Close()
	<-b.done
}

func (b *browser) serve() {
	defer close(b.done)
	for {
		_, data, err := b.conn.ReadMessage()
		if err != nil {
			return
		}
		cmd, err := bridge.DecodeCommand(data)
		if err != nil {
			continue
		}
		b.mu.Lock()
		b.commands = append(b.commands, cmd)
		b.mu.Unlock()
		switch c := cmd.(type) {
		case bridge.LoadCommand:
			b.load(c.EngineID)
		case bridge.CompleteCommand:
			b.complete(c)
		}
	}
}

func (b *browser) load(id string) {
	b.mu.Lock()
	msg, fail := b.failLoad[id]
	b.mu.Unlock()
	if fail {
		b.emit(bridge.ErrorEvent{EngineID: id, Message: msg})
		return
	}
	b.mu.Lock()
	cached := b.engines[id]
	b.engines[id] = true
	b.mu.Unlock()
	if !cached {
		b.emit(bridge.ProgressEvent{EngineID: id, Progress: 0.5, Text: "Fetching param cache[1/2]"})
	}
	b.emit(bridge.LoadedEvent{EngineID: id})
}

func (b *browser) complete(c bridge.CompleteCommand) {
	last := ""
	for _, m := range c.Messages {
		if m.Role == "user" {
			last = m.Content
		}
	}
	words := strings.Fields(last)
	for i, w := range words {
		if i > 0 {
			w = " " + w
		}
		ch := bridge.Chunk{Role: "assistant", Delta: w}
		if i == len(words)-1 {
			ch.FinishReason = bridge.FinishStop
		}
		b.emit(bridge.ChunkEvent{RunID: c.RunID, Chunk: ch})
	}
}

func (b *browser) emit(ev bridge.Event) {
	data, err := bridge.EncodeEvent(ev)
	if err != nil {
		b.t.Errorf("encode event: %v", err)
		return
	}
	_ = b.conn.WriteMessage(websocket.TextMessage, data)
}

// failOn makes loads of id report msg.
func (b *browser) failOn(id, msg string) {
	b.mu.Lock()
	b.failLoad[id] = msg
	b.mu.Unlock()
}

// sent returns the commands received so far.
func (b *browser) sent() []bridge.Command {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]bridge.Command(nil), b.commands...)
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPostJSON(t *testing.T, url string, payload string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewBufferString(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}
