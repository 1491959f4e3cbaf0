package conversation

// Notifier turns input-box content changes into edge-triggered typing
// signals: one start when the box goes empty to non-empty, one stop when it
// goes back to empty, on peer switch, or on teardown. Keystrokes in between
// emit nothing.
type Notifier struct {
	typing bool
	emit   func(isTyping bool)
}

func NewNotifier(emit func(isTyping bool)) *Notifier {
	return &Notifier{emit: emit}
}

// Input observes the current content of the input box.
func (n *Notifier) Input(text string) {
	nonEmpty := text != ""
	if nonEmpty == n.typing {
		return
	}
	n.typing = nonEmpty
	if n.emit != nil {
		n.emit(nonEmpty)
	}
}

// Reset emits a stop signal if a start is outstanding. Called when the view
// is torn down or the peer selection changes.
func (n *Notifier) Reset() {
	if !n.typing {
		return
	}
	n.typing = false
	if n.emit != nil {
		n.emit(false)
	}
}
