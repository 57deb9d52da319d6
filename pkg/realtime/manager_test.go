package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/stormloop-dev/stormloop/pkg/errors"
)

// fakeGateway is a websocket endpoint capturing inbound frames and allowing
// the test to push outbound ones.
type fakeGateway struct {
	upgrader websocket.Upgrader

	mu       sync.Mutex
	conns    []*websocket.Conn
	received []frame
}

func newFakeGateway(t *testing.T) (*fakeGateway, *httptest.Server, string) {
	t.Helper()
	gw := &fakeGateway{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := gw.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		gw.mu.Lock()
		gw.conns = append(gw.conns, ws)
		gw.mu.Unlock()
		for {
			var f frame
			if err := ws.ReadJSON(&f); err != nil {
				return
			}
			gw.mu.Lock()
			gw.received = append(gw.received, f)
			gw.mu.Unlock()
		}
	}))
	t.Cleanup(srv.Close)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	return gw, srv, wsURL
}

func (g *fakeGateway) push(t *testing.T, ev string, data string) {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	require.NotEmpty(t, g.conns)
	ws := g.conns[len(g.conns)-1]
	require.NoError(t, ws.WriteJSON(frame{Event: ev, Data: json.RawMessage(data)}))
}

func (g *fakeGateway) frames() []frame {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]frame, len(g.received))
	copy(out, g.received)
	return out
}

func (g *fakeGateway) dropConns() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, ws := range g.conns {
		ws.Close()
	}
	g.conns = nil
}

func (g *fakeGateway) connCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.conns)
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

func TestManager_ConnectAndEmit(t *testing.T) {
	gw, _, url := newFakeGateway(t)
	m := NewManager(Options{URL: url, BackoffBase: time.Millisecond, MaxAttempts: 2})
	defer m.DisconnectAll()

	conn, err := m.Connect(context.Background(), BrainstormNamespace, nil)
	require.NoError(t, err)
	assert.True(t, m.IsConnected(BrainstormNamespace))

	require.NoError(t, conn.Join(42))
	waitFor(t, func() bool { return len(gw.frames()) == 1 }, "join frame")

	got := gw.frames()[0]
	assert.Equal(t, outRoomJoin, got.Event)
	assert.JSONEq(t, `{"sessionId": 42}`, string(got.Data))
}

func TestManager_SingleConnectionPerNamespace(t *testing.T) {
	gw, _, url := newFakeGateway(t)
	m := NewManager(Options{URL: url, BackoffBase: time.Millisecond, MaxAttempts: 2})
	defer m.DisconnectAll()

	first, err := m.Connect(context.Background(), BrainstormNamespace, nil)
	require.NoError(t, err)
	second, err := m.Connect(context.Background(), BrainstormNamespace, nil)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, gw.connCount())
}

func TestManager_ConcurrentConnectsShareOneSocket(t *testing.T) {
	gw, _, url := newFakeGateway(t)
	m := NewManager(Options{URL: url, BackoffBase: time.Millisecond, MaxAttempts: 2})
	defer m.DisconnectAll()

	const callers = 8
	conns := make([]*Conn, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conns[i], errs[i] = m.Connect(context.Background(), BrainstormNamespace, nil)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, conns[0], conns[i])
	}
	assert.Equal(t, 1, gw.connCount())
}

func TestManager_InboundFramesReachHandler(t *testing.T) {
	gw, _, url := newFakeGateway(t)
	m := NewManager(Options{URL: url, BackoffBase: time.Millisecond, MaxAttempts: 2})
	defer m.DisconnectAll()

	var mu sync.Mutex
	var events []string
	handler := func(ev string, _ json.RawMessage) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	}

	_, err := m.Connect(context.Background(), BrainstormNamespace, handler)
	require.NoError(t, err)

	gw.push(t, "session:started", `{"sessionId": 1}`)
	gw.push(t, "agent:result", `{"sessionId": 1, "agentId": 2, "result": {"content": "x"}}`)

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 2
	}, "two frames delivered")

	mu.Lock()
	assert.Equal(t, []string{"session:started", "agent:result"}, events)
	mu.Unlock()
}

func TestManager_ReconnectsAfterLoss(t *testing.T) {
	gw, _, url := newFakeGateway(t)

	var mu sync.Mutex
	var statuses []Status
	m := NewManager(Options{
		URL:         url,
		BackoffBase: time.Millisecond,
		BackoffCap:  4 * time.Millisecond,
		MaxAttempts: 5,
		OnStatus: func(_ string, s Status) {
			mu.Lock()
			statuses = append(statuses, s)
			mu.Unlock()
		},
	})
	defer m.DisconnectAll()

	_, err := m.Connect(context.Background(), BrainstormNamespace, nil)
	require.NoError(t, err)

	gw.dropConns()

	waitFor(t, func() bool { return gw.connCount() == 1 }, "reconnected")
	waitFor(t, func() bool { return m.IsConnected(BrainstormNamespace) }, "connected status")

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, statuses, StatusReconnecting)
	assert.Equal(t, StatusConnected, statuses[len(statuses)-1])
}

func TestManager_ExplicitDisconnectStopsReconnect(t *testing.T) {
	gw, _, url := newFakeGateway(t)
	m := NewManager(Options{URL: url, BackoffBase: time.Millisecond, MaxAttempts: 5})

	_, err := m.Connect(context.Background(), BrainstormNamespace, nil)
	require.NoError(t, err)

	m.Disconnect(BrainstormNamespace)
	assert.False(t, m.IsConnected(BrainstormNamespace))

	// Give any stray reconnect loop a chance to run; none should.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, gw.connCount()) // only the original, now-closed conn
	_ = gw
}

func TestManager_ConnectFailureAfterRetryBudget(t *testing.T) {
	// A server that immediately closes: no websocket endpoint here.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	m := NewManager(Options{URL: url, BackoffBase: time.Millisecond, MaxAttempts: 3})

	_, err := m.Connect(context.Background(), BrainstormNamespace, nil)

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConnection))
	assert.False(t, m.IsConnected(BrainstormNamespace))
}

func TestManager_ConnectCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	m := NewManager(Options{URL: url, BackoffBase: time.Hour, MaxAttempts: 10})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := m.Connect(ctx, BrainstormNamespace, nil)
		done <- err
	}()

	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConnection))
	case <-time.After(3 * time.Second):
		t.Fatal("cancelled connect did not return")
	}
}

func TestConn_EmitWhenDisconnected(t *testing.T) {
	gw, _, url := newFakeGateway(t)
	m := NewManager(Options{URL: url, BackoffBase: time.Millisecond, MaxAttempts: 2})

	conn, err := m.Connect(context.Background(), BrainstormNamespace, nil)
	require.NoError(t, err)
	m.Disconnect(BrainstormNamespace)

	err = conn.Emit(outStart, startPayload{SessionID: 1, Topic: "t", AgentIDs: []int{1, 2}})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConnection))
	_ = gw
}
