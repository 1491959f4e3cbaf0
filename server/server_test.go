package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"educhat/config"
	"educhat/db"
	"educhat/models"
	"educhat/protocol"

	"github.com/gorilla/websocket"
)

// setupTestServer creates a hub backed by a throwaway database and serves it
// over httptest.
func setupTestServer(t *testing.T) (*Server, *httptest.Server, func()) {
	t.Helper()

	tmpfile, err := os.CreateTemp("", "test-*.db")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	tmpfile.Close()
	os.Remove(tmpfile.Name()) // SQLite recreates it

	database, err := db.New(tmpfile.Name())
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}

	srv := New(database, &config.Config{WriteTimeout: 10})
	ts := httptest.NewServer(srv.Handler())

	cleanup := func() {
		ts.Close()
		database.Close()
		os.Remove(tmpfile.Name())
	}

	return srv, ts, cleanup
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

// dialAndJoin connects a websocket client and completes the join handshake.
func dialAndJoin(t *testing.T, ts *httptest.Server, userID, userName string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}

	join := &protocol.Frame{Type: protocol.TypeJoin, Join: &protocol.JoinPayload{
		UserID:   userID,
		UserName: userName,
	}}
	if err := conn.WriteJSON(join); err != nil {
		t.Fatalf("Failed to send join: %v", err)
	}

	// The hub acknowledges once the session is registered; returning before
	// the ack would let frames sent to this user race the registration.
	readFrame(t, conn, protocol.TypeJoined)

	return conn
}

// readFrame reads frames until one of the wanted type arrives, skipping
// presence notifications that interleave with the frame under test.
func readFrame(t *testing.T, conn *websocket.Conn, wantType string) *protocol.Frame {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var f protocol.Frame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("Failed to read %s frame: %v", wantType, err)
		}
		if f.Type == wantType {
			return &f
		}
		if f.Type != protocol.TypePresence {
			t.Fatalf("Expected %s frame, got %s", wantType, f.Type)
		}
	}
}

func TestJoinRequired(t *testing.T) {
	_, ts, cleanup := setupTestServer(t)
	defer cleanup()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	defer conn.Close()

	// A send before join must be rejected.
	err = conn.WriteJSON(&protocol.Frame{Type: protocol.TypeSend, Send: &protocol.SendPayload{
		ReceiverID: "bob",
		Content:    "hello",
	}})
	if err != nil {
		t.Fatalf("Failed to send frame: %v", err)
	}

	f := readFrame(t, conn, protocol.TypeError)
	if f.Error == nil || f.Error.Op != protocol.TypeJoin {
		t.Errorf("Expected join error, got %+v", f.Error)
	}
}

func TestSendDeliversToBothParties(t *testing.T) {
	_, ts, cleanup := setupTestServer(t)
	defer cleanup()

	alice := dialAndJoin(t, ts, "alice", "Alice")
	defer alice.Close()
	bob := dialAndJoin(t, ts, "bob", "Bob")
	defer bob.Close()

	err := alice.WriteJSON(&protocol.Frame{Type: protocol.TypeSend, Send: &protocol.SendPayload{
		CourseID:   "course-1",
		ReceiverID: "bob",
		Content:    "Hello, World!",
	}})
	if err != nil {
		t.Fatalf("Failed to send msg: %v", err)
	}

	toBob := readFrame(t, bob, protocol.TypeBatch)
	if len(toBob.Batch) != 1 {
		t.Fatalf("Expected 1 message in batch, got %d", len(toBob.Batch))
	}
	got := toBob.Batch[0]
	if got.SenderID != "alice" || got.Content != "Hello, World!" {
		t.Errorf("Wrong message delivered: %+v", got)
	}
	if got.ID == "" || got.SentAt == "" {
		t.Errorf("Message missing id or timestamp: %+v", got)
	}

	// The sender's echo carries the same canonical id.
	toAlice := readFrame(t, alice, protocol.TypeBatch)
	if len(toAlice.Batch) != 1 || toAlice.Batch[0].ID != got.ID {
		t.Errorf("Sender echo does not match: %+v", toAlice.Batch)
	}
}

func TestSendValidation(t *testing.T) {
	_, ts, cleanup := setupTestServer(t)
	defer cleanup()

	alice := dialAndJoin(t, ts, "alice", "Alice")
	defer alice.Close()

	err := alice.WriteJSON(&protocol.Frame{Type: protocol.TypeSend, Send: &protocol.SendPayload{
		ReceiverID: "bob",
	}})
	if err != nil {
		t.Fatalf("Failed to send frame: %v", err)
	}

	f := readFrame(t, alice, protocol.TypeError)
	if f.Error == nil || f.Error.Op != protocol.TypeSend {
		t.Errorf("Expected send error, got %+v", f.Error)
	}
}

func TestTypingRelay(t *testing.T) {
	_, ts, cleanup := setupTestServer(t)
	defer cleanup()

	alice := dialAndJoin(t, ts, "alice", "Alice")
	defer alice.Close()
	bob := dialAndJoin(t, ts, "bob", "Bob")
	defer bob.Close()

	err := alice.WriteJSON(&protocol.Frame{Type: protocol.TypeTyping, Typing: &protocol.TypingPayload{
		PeerID:   "bob",
		IsTyping: true,
	}})
	if err != nil {
		t.Fatalf("Failed to send typing: %v", err)
	}

	f := readFrame(t, bob, protocol.TypeTyping)
	// The peer field is rewritten to identify the typist.
	if f.Typing == nil || f.Typing.PeerID != "alice" || !f.Typing.IsTyping {
		t.Errorf("Wrong typing relay: %+v", f.Typing)
	}
}

func TestDeleteBroadcast(t *testing.T) {
	_, ts, cleanup := setupTestServer(t)
	defer cleanup()

	alice := dialAndJoin(t, ts, "alice", "Alice")
	defer alice.Close()
	bob := dialAndJoin(t, ts, "bob", "Bob")
	defer bob.Close()

	err := alice.WriteJSON(&protocol.Frame{Type: protocol.TypeSend, Send: &protocol.SendPayload{
		CourseID:   "course-1",
		ReceiverID: "bob",
		Content:    "regret this",
	}})
	if err != nil {
		t.Fatalf("Failed to send msg: %v", err)
	}
	sent := readFrame(t, alice, protocol.TypeBatch).Batch[0]
	readFrame(t, bob, protocol.TypeBatch)

	err = alice.WriteJSON(&protocol.Frame{Type: protocol.TypeDelete, Delete: &protocol.DeletePayload{
		MessageID: sent.ID,
	}})
	if err != nil {
		t.Fatalf("Failed to send delete: %v", err)
	}

	toAlice := readFrame(t, alice, protocol.TypeDeleted)
	toBob := readFrame(t, bob, protocol.TypeDeleted)
	if toAlice.Deleted.MessageID != sent.ID || toBob.Deleted.MessageID != sent.ID {
		t.Errorf("Deleted broadcast mismatch: %v / %v", toAlice.Deleted, toBob.Deleted)
	}
}

func TestDeleteUnknownMessage(t *testing.T) {
	_, ts, cleanup := setupTestServer(t)
	defer cleanup()

	alice := dialAndJoin(t, ts, "alice", "Alice")
	defer alice.Close()

	err := alice.WriteJSON(&protocol.Frame{Type: protocol.TypeDelete, Delete: &protocol.DeletePayload{
		MessageID: "nonexistent",
	}})
	if err != nil {
		t.Fatalf("Failed to send delete: %v", err)
	}

	f := readFrame(t, alice, protocol.TypeError)
	if f.Error == nil || f.Error.Op != protocol.TypeDelete {
		t.Errorf("Expected delete error, got %+v", f.Error)
	}
}

func TestDeleteOnlyBySender(t *testing.T) {
	_, ts, cleanup := setupTestServer(t)
	defer cleanup()

	alice := dialAndJoin(t, ts, "alice", "Alice")
	defer alice.Close()
	bob := dialAndJoin(t, ts, "bob", "Bob")
	defer bob.Close()

	err := alice.WriteJSON(&protocol.Frame{Type: protocol.TypeSend, Send: &protocol.SendPayload{
		CourseID:   "course-1",
		ReceiverID: "bob",
		Content:    "mine",
	}})
	if err != nil {
		t.Fatalf("Failed to send msg: %v", err)
	}
	readFrame(t, alice, protocol.TypeBatch)
	sent := readFrame(t, bob, protocol.TypeBatch).Batch[0]

	// Bob tries to delete Alice's message.
	err = bob.WriteJSON(&protocol.Frame{Type: protocol.TypeDelete, Delete: &protocol.DeletePayload{
		MessageID: sent.ID,
	}})
	if err != nil {
		t.Fatalf("Failed to send delete: %v", err)
	}

	f := readFrame(t, bob, protocol.TypeError)
	if f.Error == nil || f.Error.Op != protocol.TypeDelete {
		t.Errorf("Expected delete error, got %+v", f.Error)
	}
}

func TestPresenceBroadcast(t *testing.T) {
	_, ts, cleanup := setupTestServer(t)
	defer cleanup()

	alice := dialAndJoin(t, ts, "alice", "Alice")
	defer alice.Close()

	bob := dialAndJoin(t, ts, "bob", "Bob")

	f := readFrame(t, alice, protocol.TypePresence)
	if f.Presence.PeerID != "bob" || !f.Presence.Online {
		t.Errorf("Expected bob online, got %+v", f.Presence)
	}

	bob.Close()

	f = readFrame(t, alice, protocol.TypePresence)
	if f.Presence.PeerID != "bob" || f.Presence.Online {
		t.Errorf("Expected bob offline, got %+v", f.Presence)
	}
	if f.Presence.LastSeen == "" {
		t.Error("Offline presence must carry last_seen")
	}
}

func TestHistoryEndpoint(t *testing.T) {
	srv, ts, cleanup := setupTestServer(t)
	defer cleanup()

	seed := []models.Message{
		{ID: "m1", CourseID: "course-1", SenderID: "alice", SenderName: "Alice",
			ReceiverID: "bob", ReceiverName: "Bob", Content: "Hello", SentAt: "2024-01-01T12:00:00.000000"},
		{ID: "m2", CourseID: "course-1", SenderID: "bob", SenderName: "Bob",
			ReceiverID: "alice", ReceiverName: "Alice", Content: "Hi there", SentAt: "2024-01-01T12:05:00.000000"},
	}
	for _, m := range seed {
		if err := srv.db.SaveMessage(m); err != nil {
			t.Fatalf("Failed to save message: %v", err)
		}
	}

	resp, err := http.Get(ts.URL + "/history?course=course-1&user=alice&peer=bob&page=0")
	if err != nil {
		t.Fatalf("Failed to fetch history: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var messages []models.Message
	if err := json.NewDecoder(resp.Body).Decode(&messages); err != nil {
		t.Fatalf("Failed to decode history: %v", err)
	}

	if len(messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(messages))
	}
	// Oldest first, both directions.
	if messages[0].ID != "m1" || messages[1].ID != "m2" {
		t.Errorf("Wrong order: %s, %s", messages[0].ID, messages[1].ID)
	}
}

func TestHistoryRequiresParties(t *testing.T) {
	_, ts, cleanup := setupTestServer(t)
	defer cleanup()

	resp, err := http.Get(ts.URL + "/history?course=course-1")
	if err != nil {
		t.Fatalf("Failed to fetch history: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
}

func TestPeersEndpoint(t *testing.T) {
	srv, ts, cleanup := setupTestServer(t)
	defer cleanup()

	if err := srv.db.UpsertPeer("bob", "Bob", "2024-01-01T12:00:00.000000"); err != nil {
		t.Fatalf("Failed to upsert peer: %v", err)
	}
	err := srv.db.SaveMessage(models.Message{
		ID: "m1", CourseID: "course-1", SenderID: "alice", SenderName: "Alice",
		ReceiverID: "bob", ReceiverName: "Bob", Content: "Hello", SentAt: "2024-01-01T12:00:00.000000",
	})
	if err != nil {
		t.Fatalf("Failed to save message: %v", err)
	}

	resp, err := http.Get(ts.URL + "/peers?user=alice")
	if err != nil {
		t.Fatalf("Failed to fetch peers: %v", err)
	}
	defer resp.Body.Close()

	var peers []models.Peer
	if err := json.NewDecoder(resp.Body).Decode(&peers); err != nil {
		t.Fatalf("Failed to decode peers: %v", err)
	}

	if len(peers) != 1 || peers[0].ID != "bob" || peers[0].Name != "Bob" {
		t.Errorf("Wrong roster: %+v", peers)
	}
	if peers[0].Online {
		t.Error("Bob is not connected and must not be online")
	}
}

func TestDeletedMessageScrubbedInHistory(t *testing.T) {
	srv, ts, cleanup := setupTestServer(t)
	defer cleanup()

	err := srv.db.SaveMessage(models.Message{
		ID: "m1", CourseID: "course-1", SenderID: "alice", SenderName: "Alice",
		ReceiverID: "bob", ReceiverName: "Bob", Content: "secret", SentAt: "2024-01-01T12:00:00.000000",
	})
	if err != nil {
		t.Fatalf("Failed to save message: %v", err)
	}
	if err := srv.db.MarkDeleted("m1"); err != nil {
		t.Fatalf("Failed to mark deleted: %v", err)
	}

	resp, err := http.Get(ts.URL + "/history?course=course-1&user=alice&peer=bob")
	if err != nil {
		t.Fatalf("Failed to fetch history: %v", err)
	}
	defer resp.Body.Close()

	var messages []models.Message
	if err := json.NewDecoder(resp.Body).Decode(&messages); err != nil {
		t.Fatalf("Failed to decode history: %v", err)
	}

	if len(messages) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(messages))
	}
	if !messages[0].IsDeleted || messages[0].Content != models.DeletedContent {
		t.Errorf("Deleted content leaked: %+v", messages[0])
	}
}
