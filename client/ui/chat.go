package ui

import (
	"fmt"
	"strings"

	"educhat/conversation"
	"educhat/models"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

func (a *App) openChat(peer models.Peer) {
	a.mu.Lock()
	a.currentChat = peer.ID
	a.unreadCounts[peer.ID] = 0
	a.mu.Unlock()

	a.viewFor(peer)

	chatPage := a.createChatPage(peer)
	a.pages.AddPage("chat", chatPage, true, true)
	a.pages.SwitchToPage("chat")

	// Update roster to reflect cleared unread count
	a.updatePeersList()

	// Connects if needed and loads history once per conversation
	a.binder.Bind(a.courseID, peer.ID)
	a.refreshChatView()
}

func (a *App) getChatTitle(peerID string) string {
	a.mu.RLock()
	name := peerID
	online := false
	for _, p := range a.peers {
		if p.ID == peerID {
			if p.Name != "" {
				name = p.Name
			}
			online = p.Online
			break
		}
	}
	v := a.views[peerID]
	a.mu.RUnlock()

	status := "○ offline"
	if online {
		status = "● online"
	}
	if v != nil && v.PeerTyping() {
		status += " ─ typing..."
	}
	return fmt.Sprintf(" %s ─ %s ", name, status)
}

func (a *App) updateChatTitle() {
	if a.chatView != nil && a.currentChat != "" {
		a.chatView.SetTitle(a.getChatTitle(a.currentChat))
	}
}

func (a *App) createChatPage(peer models.Peer) tview.Primitive {
	// Chat history view
	a.chatView = tview.NewTextView()
	a.chatView.SetBorder(true)
	a.chatView.SetBorderColor(ColorBorder)
	a.chatView.SetBackgroundColor(ColorBg)
	a.chatView.SetTitle(a.getChatTitle(peer.ID))
	a.chatView.SetTitleColor(ColorTitle)
	a.chatView.SetTextColor(ColorFg)
	a.chatView.SetDynamicColors(true)
	a.chatView.SetScrollable(true)
	a.chatView.ScrollToEnd()

	// Message input
	a.messageInput = tview.NewInputField()
	a.messageInput.SetLabel("> ")
	a.messageInput.SetFieldWidth(0)
	a.messageInput.SetBackgroundColor(ColorBg)
	a.messageInput.SetFieldBackgroundColor(tcell.NewRGBColor(0, 0, 64))
	a.messageInput.SetFieldTextColor(ColorFg)
	a.messageInput.SetLabelColor(ColorHighlight)
	a.messageInput.SetBorder(true)
	a.messageInput.SetBorderColor(ColorBorder)
	a.messageInput.SetTitle(" Message ")
	a.messageInput.SetTitleColor(ColorTitle)

	// Every edit feeds the typing notifier; it only emits on transitions
	// between empty and non-empty.
	a.messageInput.SetChangedFunc(func(text string) {
		if v := a.currentView(); v != nil {
			v.SetInput(text)
		}
	})

	a.messageInput.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			text := a.messageInput.GetText()
			if text != "" {
				a.sendMessage(text)
				a.messageInput.SetText("")
			}
		}
	})

	// Status bar
	chatStatus := tview.NewTextView()
	chatStatus.SetBackgroundColor(tcell.NewRGBColor(0, 128, 128))
	chatStatus.SetTextColor(ColorTitle)
	chatStatus.SetTextAlign(tview.AlignCenter)
	chatStatus.SetText(" Enter:Send | Tab:Scroll | F8:Delete last | Esc:Back ")

	// Layout
	mainFlex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.chatView, 0, 1, false).
		AddItem(a.messageInput, 3, 0, true).
		AddItem(chatStatus, 1, 0, false)
	mainFlex.SetBackgroundColor(ColorBg)

	// Track focus on chat view for scrolling
	chatViewFocused := false

	// Handle keyboard
	mainFlex.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEsc:
			if chatViewFocused {
				chatViewFocused = false
				a.app.SetFocus(a.messageInput)
				chatStatus.SetText(" Enter:Send | Tab:Scroll | F8:Delete last | Esc:Back ")
				return nil
			}
			a.closeChat()
			return nil
		case tcell.KeyTab:
			chatViewFocused = !chatViewFocused
			if chatViewFocused {
				a.app.SetFocus(a.chatView)
				chatStatus.SetText(" ↑↓/PgUp/PgDn:Scroll | Home:Top | End:Bottom | Tab/Esc:Input ")
			} else {
				a.app.SetFocus(a.messageInput)
				chatStatus.SetText(" Enter:Send | Tab:Scroll | F8:Delete last | Esc:Back ")
			}
			return nil
		case tcell.KeyF8:
			a.deleteLastOwnMessage()
			return nil
		case tcell.KeyPgUp:
			row, col := a.chatView.GetScrollOffset()
			a.chatView.ScrollTo(row-10, col)
			return nil
		case tcell.KeyPgDn:
			row, col := a.chatView.GetScrollOffset()
			a.chatView.ScrollTo(row+10, col)
			return nil
		case tcell.KeyUp:
			if chatViewFocused {
				row, col := a.chatView.GetScrollOffset()
				a.chatView.ScrollTo(row-1, col)
				return nil
			}
		case tcell.KeyDown:
			if chatViewFocused {
				row, col := a.chatView.GetScrollOffset()
				a.chatView.ScrollTo(row+1, col)
				return nil
			}
		case tcell.KeyHome:
			if chatViewFocused {
				a.chatView.ScrollToBeginning()
				return nil
			}
		case tcell.KeyEnd:
			if chatViewFocused {
				a.chatView.ScrollToEnd()
				return nil
			}
		}
		return event
	})

	return mainFlex
}

func (a *App) refreshChatView() {
	if a.chatView == nil {
		return
	}
	v := a.currentView()
	if v == nil {
		return
	}

	// Get chat view width for centered separators
	_, _, width, _ := a.chatView.GetInnerRect()
	if width < 10 {
		width = 80 // Default width
	}

	a.chatView.Clear()
	var sb strings.Builder

	for _, item := range v.Items() {
		if item.Kind == conversation.KindDaySeparator {
			padding := (width - len(item.Label)) / 2
			if padding < 0 {
				padding = 0
			}
			sb.WriteString(fmt.Sprintf("[gray]%s%s[-]\n", strings.Repeat(" ", padding), item.Label))
			continue
		}

		msg := item.Message
		timeStr := strings.Repeat(" ", 5)
		if item.ShowTime && item.Time != "" {
			timeStr = item.Time
		}

		text := msg.Content
		if msg.IsDeleted {
			text = "[gray]" + models.DeletedContent + "[-]"
		}

		if item.Mine {
			// Pending sends show a hollow marker until the hub echo
			// replaces the temp record.
			statusIcon := "[green]✓[-]"
			if strings.HasPrefix(msg.ID, conversation.TempIDPrefix) {
				statusIcon = "[gray]○[-]"
			}
			sb.WriteString(fmt.Sprintf("[gray]%s[-] [white]→ %s[-] %s\n", timeStr, text, statusIcon))
		} else {
			sb.WriteString(fmt.Sprintf("[gray]%s[-] [yellow]← %s[-]\n", timeStr, text))
		}
	}

	a.chatView.SetText(sb.String())
	a.chatView.ScrollToEnd()
}

func (a *App) sendMessage(text string) {
	v := a.currentView()
	if v == nil {
		return
	}

	// The optimistic record is inserted regardless of transport outcome;
	// a failed dispatch just leaves it unconfirmed.
	if err := v.Send(text); err != nil {
		a.setConnectionError(fmt.Sprintf("Send failed: %v", err))
	}

	a.refreshChatView()
}

// deleteLastOwnMessage asks the hub to tombstone the newest confirmed message
// the user sent. The view only updates when the deletion is broadcast back.
func (a *App) deleteLastOwnMessage() {
	v := a.currentView()
	if v == nil {
		return
	}

	msgs := v.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.SenderID != a.userID || m.IsDeleted {
			continue
		}
		if strings.HasPrefix(m.ID, conversation.TempIDPrefix) {
			// Unconfirmed sends have no hub-side id to delete yet.
			continue
		}
		if err := v.Delete(m.ID); err != nil {
			a.setConnectionError(fmt.Sprintf("Delete failed: %v", err))
		}
		return
	}
}

func (a *App) closeChat() {
	if v := a.currentView(); v != nil {
		v.Close()
	}
	a.mu.Lock()
	a.currentChat = ""
	a.mu.Unlock()
	a.chatView = nil
	a.messageInput = nil
	a.binder.Unbind()
	a.pages.RemovePage("chat")
	a.pages.SwitchToPage("main")
	a.app.SetFocus(a.peersList)
}
