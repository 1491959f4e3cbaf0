package protocol

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	dialTimeout  = 10 * time.Second
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// Client is a hub connection. It satisfies the conversation engine's
// Transport interface; inbound frames are dispatched to handlers registered
// with OnFrame.
type Client struct {
	wsURL    string
	userID   string
	userName string

	handlerMu sync.Mutex
	handlers  map[string][]func(*Frame)

	sendMu sync.Mutex

	mu         sync.Mutex
	conn       *websocket.Conn
	done       chan struct{}
	connected  bool
	pingTicker *time.Ticker
}

// NewClient creates a client for the hub websocket endpoint. The user
// identity is declared in the join frame on every connect.
func NewClient(wsURL, userID, userName string) *Client {
	return &Client{
		wsURL:    wsURL,
		userID:   userID,
		userName: userName,
		handlers: make(map[string][]func(*Frame)),
	}
}

// OnFrame registers a handler for a frame type. Handlers run on the read
// loop goroutine in registration order, so inbound frames are applied in
// transmission order.
func (c *Client) OnFrame(frameType string, handler func(*Frame)) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.handlers[frameType] = append(c.handlers[frameType], handler)
}

// Connect dials the hub and announces the user. Idempotent: connecting while
// connected is a no-op.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		return nil
	}

	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.Dial(c.wsURL, nil)
	if err != nil {
		return err
	}

	join := &Frame{Type: TypeJoin, Join: &JoinPayload{UserID: c.userID, UserName: c.userName}}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(join); err != nil {
		conn.Close()
		return err
	}

	// The hub acknowledges the join once the session is registered. Frames
	// written after the ack cannot race the registration.
	conn.SetReadDeadline(time.Now().Add(dialTimeout))
	var ack Frame
	if err := conn.ReadJSON(&ack); err != nil {
		conn.Close()
		return err
	}
	if ack.Type != TypeJoined {
		conn.Close()
		if ack.Type == TypeError && ack.Error != nil {
			return fmt.Errorf("join rejected: %s", ack.Error.Reason)
		}
		return fmt.Errorf("unexpected handshake frame %q", ack.Type)
	}
	conn.SetReadDeadline(time.Time{})

	c.conn = conn
	c.done = make(chan struct{})
	c.connected = true
	c.pingTicker = time.NewTicker(pingInterval)

	go c.pingLoop(conn, c.done, c.pingTicker)
	go c.readLoop(conn)

	return nil
}

// Disconnect closes the connection. Idempotent.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil
	}
	c.connected = false
	conn := c.conn
	close(c.done)
	c.pingTicker.Stop()
	c.mu.Unlock()

	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return conn.Close()
}

// IsConnected returns connection status.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Send dispatches a new message.
func (c *Client) Send(courseID, receiverID, content string) error {
	return c.writeFrame(&Frame{Type: TypeSend, Send: &SendPayload{
		CourseID:   courseID,
		ReceiverID: receiverID,
		Content:    content,
	}})
}

// NotifyTyping sends an outbound typing signal.
func (c *Client) NotifyTyping(peerID string, isTyping bool) error {
	return c.writeFrame(&Frame{Type: TypeTyping, Typing: &TypingPayload{
		PeerID:   peerID,
		IsTyping: isTyping,
	}})
}

// DeleteMessage requests tombstoning. The hub answers with a deleted frame on
// success, or an error frame.
func (c *Client) DeleteMessage(messageID string) error {
	return c.writeFrame(&Frame{Type: TypeDelete, Delete: &DeletePayload{MessageID: messageID}})
}

func (c *Client) writeFrame(f *Frame) error {
	c.mu.Lock()
	connected := c.connected
	conn := c.conn
	c.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(f)
}

func (c *Client) pingLoop(conn *websocket.Conn, done chan struct{}, ticker *time.Ticker) {
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
		}
	}
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			c.mu.Lock()
			wasConnected := c.connected && c.conn == conn
			if wasConnected {
				c.connected = false
				close(c.done)
				c.pingTicker.Stop()
			}
			c.mu.Unlock()
			if wasConnected {
				c.notify(&Frame{Type: TypeClosed})
			}
			return
		}
		c.notify(&f)
	}
}

// notify runs handlers inline on the read loop goroutine. Dispatching frames
// asynchronously would let same-type frames apply out of order, which breaks
// last-event-wins consumers like the typing indicator.
func (c *Client) notify(f *Frame) {
	c.handlerMu.Lock()
	handlers := c.handlers[f.Type]
	c.handlerMu.Unlock()

	for _, h := range handlers {
		h(f)
	}
}
