package protocol

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// stubHub upgrades one connection, verifies the join frame, answers with the
// given handshake reply and then hands the connection to serve.
func stubHub(t *testing.T, reply *Frame, serve func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var join Frame
		if err := conn.ReadJSON(&join); err != nil || join.Type != TypeJoin {
			return
		}
		if err := conn.WriteJSON(reply); err != nil {
			return
		}
		if serve != nil {
			serve(conn)
		}
	}))
}

func hubWSURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func TestConnectWaitsForJoinAck(t *testing.T) {
	hold := make(chan struct{})
	ts := stubHub(t, &Frame{Type: TypeJoined}, func(conn *websocket.Conn) { <-hold })
	defer ts.Close()
	defer close(hold)

	c := NewClient(hubWSURL(ts), "alice", "Alice")
	if err := c.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if !c.IsConnected() {
		t.Error("client not connected after acknowledged handshake")
	}
	c.Disconnect()
}

func TestConnectRejectedByHub(t *testing.T) {
	reply := &Frame{Type: TypeError, Error: &ErrorPayload{Op: TypeJoin, Reason: "join frame required"}}
	ts := stubHub(t, reply, nil)
	defer ts.Close()

	c := NewClient(hubWSURL(ts), "alice", "Alice")
	if err := c.Connect(); err == nil {
		t.Fatal("connect succeeded despite a rejected join")
	}
	if c.IsConnected() {
		t.Error("client reports connected after a rejected join")
	}
}

func TestFramesDispatchedInOrder(t *testing.T) {
	const frames = 100

	hold := make(chan struct{})
	ts := stubHub(t, &Frame{Type: TypeJoined}, func(conn *websocket.Conn) {
		// Alternating start/stop typing signals: a last-event-wins consumer
		// only works if they arrive in transmission order.
		for i := 0; i < frames; i++ {
			f := &Frame{Type: TypeTyping, Typing: &TypingPayload{PeerID: "bob", IsTyping: i%2 == 0}}
			if err := conn.WriteJSON(f); err != nil {
				return
			}
		}
		<-hold
	})
	defer ts.Close()
	defer close(hold)

	var mu sync.Mutex
	var got []bool
	done := make(chan struct{})

	c := NewClient(hubWSURL(ts), "alice", "Alice")
	c.OnFrame(TypeTyping, func(f *Frame) {
		mu.Lock()
		got = append(got, f.Typing.IsTyping)
		if len(got) == frames {
			close(done)
		}
		mu.Unlock()
	})

	if err := c.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Disconnect()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		mu.Lock()
		n := len(got)
		mu.Unlock()
		t.Fatalf("timed out after %d of %d frames", n, frames)
	}

	mu.Lock()
	defer mu.Unlock()
	for i, isTyping := range got {
		if isTyping != (i%2 == 0) {
			t.Fatalf("frame %d applied out of order: isTyping=%v", i, isTyping)
		}
	}
}
