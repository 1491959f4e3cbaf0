package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"educhat/db"
	"educhat/models"
	"educhat/protocol"

	"github.com/google/uuid"
)

// sentAtLayout is the hub's storage and wire timestamp format. It carries no
// zone marker; hub timestamps are always UTC and clients are expected to
// treat zoneless values as such.
const sentAtLayout = "2006-01-02T15:04:05.000000"

func (s *Server) handleSend(session *Session, f *protocol.Frame) {
	if f.Send == nil || f.Send.ReceiverID == "" {
		s.sendError(session, protocol.TypeSend, "receiver required")
		return
	}
	if f.Send.Content == "" {
		s.sendError(session, protocol.TypeSend, "content required")
		return
	}

	receiverName := f.Send.ReceiverID
	if peer, ok := s.getSession(f.Send.ReceiverID); ok {
		receiverName = peer.UserName
	}

	m := models.Message{
		ID:           uuid.NewString(),
		CourseID:     f.Send.CourseID,
		SenderID:     session.UserID,
		SenderName:   session.UserName,
		ReceiverID:   f.Send.ReceiverID,
		ReceiverName: receiverName,
		Content:      f.Send.Content,
		SentAt:       time.Now().UTC().Format(sentAtLayout),
	}

	if err := s.db.SaveMessage(m); err != nil {
		log.Printf("Send error: %v", err)
		s.sendError(session, protocol.TypeSend, "internal error")
		return
	}

	// Both parties get the stored message; the sender's copy carries the
	// canonical id and reconciles the optimistic record client-side.
	batch := &protocol.Frame{Type: protocol.TypeBatch, Batch: []models.Message{m}}
	s.send(session, batch)
	if m.ReceiverID != session.UserID {
		s.sendTo(m.ReceiverID, batch)
	}
}

func (s *Server) handleTyping(session *Session, f *protocol.Frame) {
	if f.Typing == nil || f.Typing.PeerID == "" {
		return
	}

	// Relayed with the peer field rewritten to the typist.
	s.sendTo(f.Typing.PeerID, &protocol.Frame{Type: protocol.TypeTyping, Typing: &protocol.TypingPayload{
		PeerID:   session.UserID,
		IsTyping: f.Typing.IsTyping,
	}})
}

func (s *Server) handleDelete(session *Session, f *protocol.Frame) {
	if f.Delete == nil || f.Delete.MessageID == "" {
		s.sendError(session, protocol.TypeDelete, "message id required")
		return
	}

	m, err := s.db.GetMessage(f.Delete.MessageID)
	if err == db.ErrNoRows {
		s.sendError(session, protocol.TypeDelete, "message not found")
		return
	}
	if err != nil {
		log.Printf("Delete error: %v", err)
		s.sendError(session, protocol.TypeDelete, "internal error")
		return
	}

	if m.SenderID != session.UserID {
		s.sendError(session, protocol.TypeDelete, "not the sender")
		return
	}

	if err := s.db.MarkDeleted(m.ID); err != nil {
		log.Printf("Delete error: %v", err)
		s.sendError(session, protocol.TypeDelete, "internal error")
		return
	}

	deleted := &protocol.Frame{Type: protocol.TypeDeleted, Deleted: &protocol.DeletedPayload{MessageID: m.ID}}
	s.send(session, deleted)
	if m.ReceiverID != session.UserID {
		s.sendTo(m.ReceiverID, deleted)
	}
}

// broadcastPresence tells everyone else that a user came or went.
func (s *Server) broadcastPresence(userID string, online bool, lastSeen string) {
	frame := &protocol.Frame{Type: protocol.TypePresence, Presence: &protocol.PresencePayload{
		PeerID:   userID,
		Online:   online,
		LastSeen: lastSeen,
	}}

	s.mu.RLock()
	sessions := make([]*Session, 0, len(s.sessions))
	for id, sess := range s.sessions {
		if id != userID {
			sessions = append(sessions, sess)
		}
	}
	s.mu.RUnlock()

	for _, sess := range sessions {
		s.send(sess, frame)
	}
}

// sendRosterPresence tells a fresh session who is already online.
func (s *Server) sendRosterPresence(session *Session) {
	s.mu.RLock()
	online := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		if id != session.UserID {
			online = append(online, id)
		}
	}
	s.mu.RUnlock()

	for _, id := range online {
		s.send(session, &protocol.Frame{Type: protocol.TypePresence, Presence: &protocol.PresencePayload{
			PeerID: id,
			Online: true,
		}})
	}
}

// REST handlers

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	courseID := r.URL.Query().Get("course")
	user := r.URL.Query().Get("user")
	peer := r.URL.Query().Get("peer")
	if user == "" || peer == "" {
		http.Error(w, "user and peer required", http.StatusBadRequest)
		return
	}

	page := 0
	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		p, err := strconv.Atoi(pageStr)
		if err != nil || p < 0 {
			http.Error(w, "invalid page", http.StatusBadRequest)
			return
		}
		page = p
	}

	messages, err := s.db.GetMessages(courseID, user, peer, page)
	if err != nil {
		log.Printf("History error: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	writeJSON(w, messages)
}

func (s *Server) handlePeers(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	if user == "" {
		http.Error(w, "user required", http.StatusBadRequest)
		return
	}

	peers, err := s.db.GetPeers(user)
	if err != nil {
		log.Printf("Peers error: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if peers == nil {
		peers = []models.Peer{}
	}

	// Mark who is online right now.
	s.mu.RLock()
	for i := range peers {
		if _, ok := s.sessions[peers[i].ID]; ok {
			peers[i].Online = true
		}
	}
	s.mu.RUnlock()

	writeJSON(w, peers)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Encode error: %v", err)
	}
}
