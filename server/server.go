package server

import (
	"log"
	"net/http"
	"sync"
	"time"

	"educhat/config"
	"educhat/db"
	"educhat/protocol"

	"github.com/gorilla/websocket"
)

type Server struct {
	db           *db.DB
	config       *config.Config
	sessions     map[string]*Session
	mu           sync.RWMutex
	upgrader     websocket.Upgrader
	httpSrv      *http.Server
	writeTimeout time.Duration
}

type Session struct {
	UserID   string
	UserName string
	conn     *websocket.Conn
	mu       sync.Mutex
}

func New(database *db.DB, cfg *config.Config) *Server {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 30
	}

	return &Server{
		db:       database,
		config:   cfg,
		sessions: make(map[string]*Session),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		writeTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
	}
}

// Handler returns the hub's HTTP routes: the websocket endpoint plus the
// REST history and roster endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/history", s.handleHistory)
	mux.HandleFunc("/peers", s.handlePeers)
	return mux
}

func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:    s.config.Addr,
		Handler: s.Handler(),
	}

	log.Printf("educhat hub started on %s", s.config.Addr)
	return s.httpSrv.ListenAndServe()
}

// Shutdown tells every connected client why the hub is going away and closes
// the listener.
func (s *Server) Shutdown(reason string) {
	s.mu.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	closeMsg := websocket.FormatCloseMessage(websocket.CloseGoingAway, reason)
	for _, sess := range sessions {
		sess.mu.Lock()
		sess.conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second))
		sess.conn.Close()
		sess.mu.Unlock()
	}

	if s.httpSrv != nil {
		s.httpSrv.Close()
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}
	defer conn.Close()

	// The first frame on a connection must declare the user.
	var joinFrame protocol.Frame
	if err := conn.ReadJSON(&joinFrame); err != nil {
		return
	}
	if joinFrame.Type != protocol.TypeJoin || joinFrame.Join == nil || joinFrame.Join.UserID == "" {
		s.writeConn(conn, &protocol.Frame{Type: protocol.TypeError, Error: &protocol.ErrorPayload{
			Op:     protocol.TypeJoin,
			Reason: "join frame required",
		}})
		return
	}

	session := &Session{
		UserID:   joinFrame.Join.UserID,
		UserName: joinFrame.Join.UserName,
		conn:     conn,
	}

	s.addSession(session)
	log.Printf("Client %s joined from %s", session.UserID, r.RemoteAddr)

	// Acknowledge once the session is registered: frames sent to this user
	// after the client observes the ack cannot miss the session.
	s.send(session, &protocol.Frame{Type: protocol.TypeJoined})

	if err := s.db.UpsertPeer(session.UserID, session.UserName, ""); err != nil {
		log.Printf("Failed to upsert peer %s: %v", session.UserID, err)
	}
	s.broadcastPresence(session.UserID, true, "")
	s.sendRosterPresence(session)

	for {
		var f protocol.Frame
		if err := conn.ReadJSON(&f); err != nil {
			break
		}
		s.handleFrame(session, &f)
	}

	s.removeSession(session.UserID, session)

	lastSeen := time.Now().UTC().Format(sentAtLayout)
	if err := s.db.UpsertPeer(session.UserID, session.UserName, lastSeen); err != nil {
		log.Printf("Failed to update last_seen for %s: %v", session.UserID, err)
	}
	s.broadcastPresence(session.UserID, false, lastSeen)
	log.Printf("Client %s disconnected from %s", session.UserID, r.RemoteAddr)
}

func (s *Server) handleFrame(session *Session, f *protocol.Frame) {
	switch f.Type {
	case protocol.TypeSend:
		s.handleSend(session, f)
	case protocol.TypeTyping:
		s.handleTyping(session, f)
	case protocol.TypeDelete:
		s.handleDelete(session, f)
	default:
		s.sendError(session, f.Type, "unknown frame type")
	}
}

func (s *Server) addSession(session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// A reconnect replaces the old session; the dead connection's read loop
	// cleans itself up without touching the new entry.
	if old, ok := s.sessions[session.UserID]; ok {
		old.conn.Close()
	}
	s.sessions[session.UserID] = session
}

func (s *Server) removeSession(userID string, session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.sessions[userID]; ok && current == session {
		delete(s.sessions, userID)
	}
}

func (s *Server) getSession(userID string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[userID]
	return session, ok
}

func (s *Server) send(session *Session, f *protocol.Frame) {
	session.mu.Lock()
	defer session.mu.Unlock()
	session.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	if err := session.conn.WriteJSON(f); err != nil {
		log.Printf("Error writing to %s: %v", session.UserID, err)
	}
}

// writeConn is for pre-session connections that failed the join handshake.
func (s *Server) writeConn(conn *websocket.Conn, f *protocol.Frame) {
	conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	conn.WriteJSON(f)
}

func (s *Server) sendTo(userID string, f *protocol.Frame) {
	if session, ok := s.getSession(userID); ok {
		s.send(session, f)
	}
}

func (s *Server) sendError(session *Session, op, reason string) {
	s.send(session, &protocol.Frame{Type: protocol.TypeError, Error: &protocol.ErrorPayload{
		Op:     op,
		Reason: reason,
	}})
}
