package conversation

import (
	"fmt"
	"testing"
	"time"

	"educhat/models"
	"educhat/timeutil"
)

func TestMain(m *testing.M) {
	// Day-boundary assertions in segment tests are written against UTC.
	time.Local = time.UTC
	m.Run()
}

func msg(id, sender, receiver, content, sentAt string) models.Message {
	return models.Message{
		ID:         id,
		CourseID:   "course-1",
		SenderID:   sender,
		ReceiverID: receiver,
		Content:    content,
		SentAt:     sentAt,
	}
}

func assertOrdered(t *testing.T, s *Store) {
	t.Helper()
	msgs := s.Messages()
	for i := 1; i < len(msgs); i++ {
		prev := timeutil.Normalize(msgs[i-1].SentAt)
		cur := timeutil.Normalize(msgs[i].SentAt)
		if prev.After(cur) {
			t.Fatalf("messages out of order at %d: %s after %s", i, msgs[i-1].SentAt, msgs[i].SentAt)
		}
	}
}

func assertUniqueIDs(t *testing.T, s *Store) {
	t.Helper()
	seen := make(map[string]bool)
	for _, m := range s.Messages() {
		if seen[m.ID] {
			t.Fatalf("duplicate id %s in store", m.ID)
		}
		seen[m.ID] = true
	}
}

func TestSeedSortsByInstant(t *testing.T) {
	s := NewStore("alice")
	s.Seed([]models.Message{
		msg("m2", "bob", "alice", "second", "2024-05-01T10:05:00Z"),
		msg("m1", "alice", "bob", "first", "2024-05-01T10:00:00Z"),
		msg("m3", "bob", "alice", "third", "2024-05-01T10:10:00Z"),
	})

	msgs := s.Messages()
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[0].ID != "m1" || msgs[2].ID != "m3" {
		t.Errorf("seed did not sort: got %s, %s, %s", msgs[0].ID, msgs[1].ID, msgs[2].ID)
	}
	assertOrdered(t, s)
}

func TestSeedIdempotent(t *testing.T) {
	history := []models.Message{
		msg("m1", "bob", "alice", "hello", "2024-05-01T10:00:00Z"),
		msg("m2", "alice", "bob", "hi", "2024-05-01T10:01:00Z"),
	}

	s := NewStore("alice")
	s.Seed(history)
	s.Seed(history)

	if s.Len() != 2 {
		t.Errorf("double seed changed the store: %d messages", s.Len())
	}
	assertUniqueIDs(t, s)
	assertOrdered(t, s)
}

func TestSeedDoesNotClobberOptimistic(t *testing.T) {
	s := NewStore("alice")
	s.InsertOptimistic(msg(NewTempID(), "alice", "bob", "pending", "2024-05-01T10:00:00Z"))

	s.Seed([]models.Message{
		msg("m1", "bob", "alice", "old", "2024-05-01T09:00:00Z"),
	})

	if s.Len() != 1 {
		t.Fatalf("late seed overwrote optimistic entries: %d messages", s.Len())
	}
	if s.Messages()[0].Content != "pending" {
		t.Errorf("optimistic message lost, got %q", s.Messages()[0].Content)
	}
}

func TestMergeIncomingDedupByID(t *testing.T) {
	s := NewStore("alice")
	s.MergeIncoming([]models.Message{
		msg("m1", "bob", "alice", "hello", "2024-05-01T10:00:00Z"),
	})
	s.MergeIncoming([]models.Message{
		msg("m1", "bob", "alice", "hello edited", "2024-05-01T10:00:00Z"),
		msg("m2", "bob", "alice", "again", "2024-05-01T10:01:00Z"),
	})

	if s.Len() != 2 {
		t.Fatalf("expected 2 messages, got %d", s.Len())
	}
	if s.Messages()[0].Content != "hello edited" {
		t.Errorf("duplicate id did not overwrite: %q", s.Messages()[0].Content)
	}
	assertUniqueIDs(t, s)
}

func TestMergeIncomingSortsAcrossBatches(t *testing.T) {
	s := NewStore("alice")
	// Batches arrive out of chronological order.
	s.MergeIncoming([]models.Message{
		msg("m3", "bob", "alice", "c", "2024-05-01T10:10:00Z"),
	})
	s.MergeIncoming([]models.Message{
		msg("m1", "bob", "alice", "a", "2024-05-01T10:00:00Z"),
		msg("m2", "bob", "alice", "b", "2024-05-01T10:05:00Z"),
	})

	msgs := s.Messages()
	if msgs[0].ID != "m1" || msgs[1].ID != "m2" || msgs[2].ID != "m3" {
		t.Errorf("display order not instant-sorted: %s, %s, %s", msgs[0].ID, msgs[1].ID, msgs[2].ID)
	}
	assertOrdered(t, s)
}

func TestCapacityBound(t *testing.T) {
	s := NewStore("alice")
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	var batch []models.Message
	for i := 0; i < 600; i++ {
		batch = append(batch, msg(
			fmt.Sprintf("m%03d", i), "bob", "alice", "x",
			base.Add(time.Duration(i)*time.Minute).Format(time.RFC3339),
		))
	}
	s.MergeIncoming(batch)

	if s.Len() != maxStored {
		t.Fatalf("expected %d messages after eviction, got %d", maxStored, s.Len())
	}
	// The oldest 100 are evicted; the newest 500 remain.
	if got := s.Messages()[0].ID; got != "m100" {
		t.Errorf("oldest surviving message = %s, want m100", got)
	}
	if got := s.Messages()[s.Len()-1].ID; got != "m599" {
		t.Errorf("newest message = %s, want m599", got)
	}
	assertUniqueIDs(t, s)
	assertOrdered(t, s)
}

func TestMarkDeleted(t *testing.T) {
	s := NewStore("alice")
	s.MergeIncoming([]models.Message{
		msg("m1", "bob", "alice", "secret", "2024-05-01T10:00:00Z"),
	})

	s.MarkDeleted("m1")
	s.MarkDeleted("m1") // idempotent
	s.MarkDeleted("missing")

	got := s.Messages()[0]
	if !got.IsDeleted {
		t.Error("tombstone flag not set")
	}
	if got.Content != models.DeletedContent {
		t.Errorf("content = %q, want deletion sentinel", got.Content)
	}
}
