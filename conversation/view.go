package conversation

import (
	"sync"
	"time"

	"educhat/models"
)

// View owns all conversation state for one open chat: the message store, the
// pending-send tracker, and typing state for both directions. Transport
// callbacks, UI actions and timers all funnel through its lock; the store is
// never shared across views.
type View struct {
	mu        sync.RWMutex
	selfID    string
	selfName  string
	courseID  string
	peer      models.Peer
	store     *Store
	notifier  *Notifier
	transport Transport

	peerTyping bool
	now        func() time.Time
}

func NewView(selfID, selfName, courseID string, peer models.Peer, transport Transport) *View {
	v := &View{
		selfID:    selfID,
		selfName:  selfName,
		courseID:  courseID,
		peer:      peer,
		store:     NewStore(selfID),
		transport: transport,
		now:       time.Now,
	}
	v.notifier = NewNotifier(func(isTyping bool) {
		// Typing signals are best effort; a lost one only stales the
		// peer's indicator.
		_ = transport.NotifyTyping(peer.ID, isTyping)
	})
	return v
}

// FormatSentAt serializes a locally created instant in the hub's timestamp
// shape (milliseconds, explicit UTC).
func FormatSentAt(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000") + "Z"
}

// SeedHistory installs the fetched history; a no-op once the view has content.
func (v *View) SeedHistory(history []models.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.store.Seed(history)
}

// ApplyBatch merges pushed messages, reconciling echoes of our own sends.
func (v *View) ApplyBatch(batch []models.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.store.MergeIncoming(batch)
}

// ApplyDeleted tombstones a message announced as deleted by the hub.
func (v *View) ApplyDeleted(messageID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.store.MarkDeleted(messageID)
}

// Send inserts an optimistic message and dispatches it. On transport failure
// the optimistic record stays visible as unconfirmed; the error is returned
// for the UI to surface if it wants to.
func (v *View) Send(content string) error {
	if content == "" {
		return nil
	}
	msg := models.Message{
		ID:           NewTempID(),
		CourseID:     v.courseID,
		SenderID:     v.selfID,
		SenderName:   v.selfName,
		ReceiverID:   v.peer.ID,
		ReceiverName: v.peer.Name,
		Content:      content,
		SentAt:       FormatSentAt(v.now()),
	}

	v.mu.Lock()
	v.store.InsertOptimistic(msg)
	v.mu.Unlock()

	return v.transport.Send(v.courseID, v.peer.ID, content)
}

// Delete requests tombstoning. The local record is only mutated when the hub
// broadcasts the deletion back (via ApplyDeleted).
func (v *View) Delete(messageID string) error {
	return v.transport.DeleteMessage(messageID)
}

// SetInput observes the input box content and emits edge-triggered typing
// signals.
func (v *View) SetInput(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.notifier.Input(text)
}

// SetPeerTyping records an inbound typing event; last event wins.
func (v *View) SetPeerTyping(isTyping bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.peerTyping = isTyping
}

func (v *View) PeerTyping() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.peerTyping
}

// Items returns the render projection of the current message list.
func (v *View) Items() []Item {
	v.mu.RLock()
	msgs := v.store.Messages()
	v.mu.RUnlock()
	return Segment(msgs, v.selfID)
}

// Messages returns a copy of the ordered message list.
func (v *View) Messages() []models.Message {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.store.Messages()
}

func (v *View) Peer() models.Peer {
	return v.peer
}

// Close releases the view on peer switch or teardown, emitting a typing stop
// if one is outstanding.
func (v *View) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.notifier.Reset()
	v.peerTyping = false
}
