package conversation

import (
	"sort"
	"time"

	"educhat/models"
	"educhat/timeutil"
)

// maxStored bounds per-conversation memory; oldest records are evicted first.
const maxStored = 500

// Store is the ordered, deduplicated message list for one conversation. It is
// owned by a single View and relies on the View's lock for concurrent access.
type Store struct {
	selfID  string
	records []record
	index   map[string]int // message id -> position in records
	pending *pendingTracker
}

type record struct {
	msg models.Message
	at  time.Time
}

func NewStore(selfID string) *Store {
	return &Store{
		selfID:  selfID,
		index:   make(map[string]int),
		pending: newPendingTracker(time.Now),
	}
}

func wrap(m models.Message) record {
	return record{msg: m, at: timeutil.Normalize(m.SentAt)}
}

// Seed installs the initial history, sorted by instant. It is a no-op when the
// store already holds records, so a late-arriving fetch cannot clobber
// optimistic entries inserted in the meantime.
func (s *Store) Seed(history []models.Message) {
	if len(s.records) > 0 {
		return
	}
	for _, m := range history {
		s.upsert(m)
	}
	s.finish()
}

// MergeIncoming applies a batch of pushed messages. Echoes of the local user's
// own sends are first offered to the pending tracker; everything else is
// inserted or overwritten by id. The whole batch is applied before re-sorting
// and trimming.
func (s *Store) MergeIncoming(batch []models.Message) {
	for _, m := range batch {
		if m.SenderID == s.selfID && s.pending.tryReconcile(s, m) {
			continue
		}
		s.upsert(m)
	}
	s.finish()
}

// InsertOptimistic appends a locally originated, not-yet-confirmed message and
// registers it for reconciliation. A fresh send is always chronologically last,
// so no re-sort is needed.
func (s *Store) InsertOptimistic(m models.Message) {
	if _, ok := s.index[m.ID]; ok {
		return
	}
	s.index[m.ID] = len(s.records)
	s.records = append(s.records, wrap(m))
	s.pending.register(m.ID, m.Content, m.ReceiverID)
}

// MarkDeleted tombstones a message in place. Idempotent; unknown ids are
// ignored (a delete may race ahead of history).
func (s *Store) MarkDeleted(id string) {
	if i, ok := s.index[id]; ok {
		s.records[i].msg.IsDeleted = true
		s.records[i].msg.Content = models.DeletedContent
	}
}

// Messages returns a copy of the current ordered message list.
func (s *Store) Messages() []models.Message {
	out := make([]models.Message, len(s.records))
	for i, r := range s.records {
		out[i] = r.msg
	}
	return out
}

func (s *Store) Len() int {
	return len(s.records)
}

// upsert inserts a record or overwrites the existing one with the same id.
func (s *Store) upsert(m models.Message) {
	if i, ok := s.index[m.ID]; ok {
		s.records[i] = wrap(m)
		return
	}
	s.index[m.ID] = len(s.records)
	s.records = append(s.records, wrap(m))
}

// replace swaps the temporary record for the confirmed one, keeping its
// position in the sequence. Reports false if the temporary record is gone
// (already evicted or reconciled).
func (s *Store) replace(tempID string, m models.Message) bool {
	i, ok := s.index[tempID]
	if !ok {
		return false
	}
	if _, dup := s.index[m.ID]; dup {
		// Confirmed copy already present; just drop the temporary record.
		delete(s.index, tempID)
		s.removeAt(i)
		return true
	}
	delete(s.index, tempID)
	s.records[i] = wrap(m)
	s.index[m.ID] = i
	return true
}

func (s *Store) removeAt(i int) {
	s.records = append(s.records[:i], s.records[i+1:]...)
	s.reindex()
}

// finish restores the store invariants after a batch of mutations: stable
// sort by normalized instant, then trim to the newest maxStored records.
func (s *Store) finish() {
	sort.SliceStable(s.records, func(i, j int) bool {
		return s.records[i].at.Before(s.records[j].at)
	})
	if len(s.records) > maxStored {
		evicted := s.records[:len(s.records)-maxStored]
		for _, r := range evicted {
			delete(s.index, r.msg.ID)
		}
		s.records = s.records[len(s.records)-maxStored:]
	}
	s.reindex()
}

func (s *Store) reindex() {
	for i, r := range s.records {
		s.index[r.msg.ID] = i
	}
}
