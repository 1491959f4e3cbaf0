package conversation

import (
	"time"

	"educhat/models"
	"educhat/timeutil"
)

// clusterGapMinutes collapses the timestamp of a message when the next one is
// from the same sender within this many minutes.
const clusterGapMinutes = 5

type ItemKind int

const (
	KindDaySeparator ItemKind = iota
	KindMessage
)

// Item is one render-ready element of a conversation: either a day separator
// or a message with its display attributes resolved.
type Item struct {
	Kind     ItemKind
	Label    string // day separator label
	Message  models.Message
	Mine     bool
	ShowTime bool
	Time     string // HH:mm, empty when the instant is invalid
}

// Segment projects the ordered message list into render items. It is a pure
// function of its input: a day separator precedes the first message of each
// calendar day, and consecutive same-sender messages within the cluster gap
// suppress all but the last timestamp.
func Segment(messages []models.Message, selfID string) []Item {
	items := make([]Item, 0, len(messages))
	var day time.Time
	haveDay := false

	for i, m := range messages {
		at := timeutil.Normalize(m.SentAt)

		// An invalid instant can never label a separator; the message is
		// rendered under the preceding day instead.
		if timeutil.IsValid(at) && (!haveDay || !timeutil.SameDay(day, at)) {
			items = append(items, Item{Kind: KindDaySeparator, Label: timeutil.DayLabel(at)})
			day = at
			haveDay = true
		}

		showTime := true
		if i+1 < len(messages) {
			next := messages[i+1]
			if next.SenderID == m.SenderID &&
				timeutil.MinutesApart(at, timeutil.Normalize(next.SentAt)) <= clusterGapMinutes {
				showTime = false
			}
		}

		items = append(items, Item{
			Kind:     KindMessage,
			Message:  m,
			Mine:     m.SenderID == selfID,
			ShowTime: showTime,
			Time:     timeutil.Clock(at),
		})
	}
	return items
}
