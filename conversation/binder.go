package conversation

import (
	"sync"
	"time"

	"educhat/models"
)

// Transport is the realtime hub connection as the engine consumes it.
// Connect and Disconnect are idempotent.
type Transport interface {
	Connect() error
	Disconnect() error
	Send(courseID, receiverID, content string) error
	NotifyTyping(peerID string, isTyping bool) error
	DeleteMessage(messageID string) error
}

// HistoryFetcher loads one page of conversation history from the backend.
type HistoryFetcher interface {
	FetchHistory(courseID, peerID string, page int) ([]models.Message, error)
}

// DisconnectDebounce delays transport teardown on peer deselection so that
// rapid peer switching reuses the connection instead of rebuilding it.
const DisconnectDebounce = 1500 * time.Millisecond

// Binder ties the active conversation to the transport: it connects on peer
// selection, loads history exactly once per conversation, and tears the
// connection down with a debounce on deselection. Connection failures are
// surfaced only through OnStatus; there is no automatic reconnect.
type Binder struct {
	// OnStatus and OnHistory must be assigned before the first Bind call.
	OnStatus  func(connected bool)
	OnHistory func(peerID string, history []models.Message)

	mu        sync.Mutex
	transport Transport
	history   HistoryFetcher
	debounce  time.Duration

	gen       int // bumped on every bind/unbind; stale async results are dropped
	loaded    map[string]bool
	discTimer *time.Timer
	connected bool
}

// NewBinder creates a binder. A zero debounce selects DisconnectDebounce.
func NewBinder(transport Transport, history HistoryFetcher, debounce time.Duration) *Binder {
	if debounce <= 0 {
		debounce = DisconnectDebounce
	}
	return &Binder{
		transport: transport,
		history:   history,
		debounce:  debounce,
		loaded:    make(map[string]bool),
	}
}

// Bind activates the conversation with the given peer: cancels any pending
// disconnect, connects if needed, and fetches the first history page unless
// this conversation was already loaded. Connect and fetch run on a background
// goroutine; Bind itself never blocks on the network, so it is safe to call
// from the UI event loop.
func (b *Binder) Bind(courseID, peerID string) {
	b.mu.Lock()
	b.gen++
	gen := b.gen
	if b.discTimer != nil {
		b.discTimer.Stop()
		b.discTimer = nil
	}
	needConnect := !b.connected
	if needConnect {
		b.connected = true
	}
	key := courseID + "/" + peerID
	needFetch := !b.loaded[key]
	if needFetch {
		b.loaded[key] = true
	}
	b.mu.Unlock()

	go func() {
		if needConnect {
			if err := b.transport.Connect(); err != nil {
				b.mu.Lock()
				b.connected = false
				if needFetch {
					// Roll back only the guard this call set; a
					// conversation loaded earlier stays loaded.
					delete(b.loaded, key)
				}
				b.mu.Unlock()
				b.notifyStatus(false)
				return
			}
			b.notifyStatus(true)
		}

		if !needFetch {
			return
		}

		msgs, err := b.history.FetchHistory(courseID, peerID, 0)

		b.mu.Lock()
		if b.gen != gen {
			// The view moved on while the fetch was in flight. Drop the
			// result and let a later rebind fetch again.
			delete(b.loaded, key)
			b.mu.Unlock()
			return
		}
		if err != nil {
			delete(b.loaded, key)
			b.mu.Unlock()
			return
		}
		b.mu.Unlock()

		if b.OnHistory != nil {
			b.OnHistory(peerID, msgs)
		}
	}()
}

// Unbind schedules a debounced disconnect. A Bind within the debounce window
// cancels it and keeps the connection alive.
func (b *Binder) Unbind() {
	b.mu.Lock()
	b.gen++
	if b.discTimer != nil {
		b.discTimer.Stop()
	}
	b.discTimer = time.AfterFunc(b.debounce, b.disconnectNow)
	b.mu.Unlock()
}

// Shutdown disconnects immediately, bypassing the debounce. Used on app exit.
func (b *Binder) Shutdown() {
	b.mu.Lock()
	b.gen++
	b.mu.Unlock()
	b.disconnectNow()
}

// Reconnect is the manual reconnect affordance exposed to the user.
func (b *Binder) Reconnect() {
	b.mu.Lock()
	if b.connected {
		b.mu.Unlock()
		return
	}
	b.connected = true
	b.mu.Unlock()

	if err := b.transport.Connect(); err != nil {
		b.mu.Lock()
		b.connected = false
		b.mu.Unlock()
		b.notifyStatus(false)
		return
	}
	b.notifyStatus(true)
}

// ConnectionLost records an unexpected transport drop observed by the read
// loop. Reconnection is left to the user.
func (b *Binder) ConnectionLost() {
	b.mu.Lock()
	wasConnected := b.connected
	b.connected = false
	b.mu.Unlock()
	if wasConnected {
		b.notifyStatus(false)
	}
}

func (b *Binder) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

func (b *Binder) disconnectNow() {
	b.mu.Lock()
	if b.discTimer != nil {
		b.discTimer.Stop()
		b.discTimer = nil
	}
	wasConnected := b.connected
	b.connected = false
	b.mu.Unlock()

	if wasConnected {
		b.transport.Disconnect()
		b.notifyStatus(false)
	}
}

func (b *Binder) notifyStatus(connected bool) {
	if b.OnStatus != nil {
		b.OnStatus(connected)
	}
}
