package conversation

import (
	"time"

	"github.com/google/uuid"

	"educhat/models"
)

// ReconcileWindow bounds how long a pending send waits for the hub's echo.
// The hub does not echo client ids, so matching is by content and receiver;
// the narrow window limits false positives from rapid identical messages.
const ReconcileWindow = 7 * time.Second

// TempIDPrefix marks client-generated message ids. An optimistic message that
// never reconciles keeps its temp id and stays visible as unconfirmed.
const TempIDPrefix = "tmp-"

// NewTempID returns a fresh temporary message id.
func NewTempID() string {
	return TempIDPrefix + uuid.NewString()
}

type pendingSend struct {
	tempID     string
	content    string
	receiverID string
	createdAt  time.Time
}

// pendingTracker holds the side table of optimistic sends awaiting their hub
// echo. Entries are scanned in registration order; the first match wins.
type pendingTracker struct {
	now     func() time.Time
	entries []pendingSend
}

func newPendingTracker(now func() time.Time) *pendingTracker {
	return &pendingTracker{now: now}
}

func (p *pendingTracker) register(tempID, content, receiverID string) {
	p.sweep(p.now())
	p.entries = append(p.entries, pendingSend{
		tempID:     tempID,
		content:    content,
		receiverID: receiverID,
		createdAt:  p.now(),
	})
}

// sweep drops entries older than the reconcile window. Their temporary
// messages remain in the store, permanently unconfirmed; no retry is made.
func (p *pendingTracker) sweep(now time.Time) {
	kept := p.entries[:0]
	for _, e := range p.entries {
		if now.Sub(e.createdAt) <= ReconcileWindow {
			kept = append(kept, e)
		}
	}
	p.entries = kept
}

// tryReconcile matches an incoming echo of the local user's own send against
// the pending set. On a match the temporary record is replaced in place by the
// confirmed message, exactly once. Reports whether a match occurred. The
// caller has already checked that the sender is the local user.
func (p *pendingTracker) tryReconcile(s *Store, incoming models.Message) bool {
	now := p.now()
	p.sweep(now)

	for i, e := range p.entries {
		if e.receiverID != incoming.ReceiverID || e.content != incoming.Content {
			continue
		}
		p.entries = append(p.entries[:i], p.entries[i+1:]...)
		if !s.replace(e.tempID, incoming) {
			// Temporary record already gone; keep the confirmed message.
			s.upsert(incoming)
		}
		return true
	}
	return false
}

func (p *pendingTracker) pendingCount() int {
	return len(p.entries)
}
