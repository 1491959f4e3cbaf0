package ui

import (
	"fmt"

	"educhat/conversation"
	"educhat/models"
	"educhat/protocol"
)

func (a *App) setupHandlers() {
	// Pushed messages: route each one to its conversation view. The view's
	// store reconciles echoes of our own optimistic sends.
	a.client.OnFrame(protocol.TypeBatch, func(f *protocol.Frame) {
		// Group by conversation first; each view only ever sees its own
		// peer's messages.
		byPeer := make(map[string][]models.Message)
		for _, m := range f.Batch {
			peerID := m.SenderID
			if peerID == a.userID {
				peerID = m.ReceiverID
			}
			byPeer[peerID] = append(byPeer[peerID], m)
		}

		touched := make(map[string]bool)
		unknownSender := false

		for peerID, msgs := range byPeer {
			a.mu.Lock()
			v := a.views[peerID]
			for _, m := range msgs {
				if m.SenderID != a.userID && a.currentChat != peerID {
					a.unreadCounts[peerID]++
				}
			}
			known := false
			for _, p := range a.peers {
				if p.ID == peerID {
					known = true
					break
				}
			}
			a.mu.Unlock()

			if v != nil {
				v.ApplyBatch(msgs)
			}
			if !known {
				unknownSender = true
			}
			touched[peerID] = true
		}

		// A first message from someone new pulls them into the roster.
		if unknownSender {
			a.loadPeers()
		}

		a.app.QueueUpdateDraw(func() {
			if touched[a.currentChat] && a.chatView != nil {
				a.refreshChatView()
			}
			a.updatePeersList()
		})
	})

	// Typing relay; last event wins.
	a.client.OnFrame(protocol.TypeTyping, func(f *protocol.Frame) {
		if f.Typing == nil {
			return
		}
		a.mu.RLock()
		v := a.views[f.Typing.PeerID]
		a.mu.RUnlock()
		if v == nil {
			return
		}
		v.SetPeerTyping(f.Typing.IsTyping)
		a.app.QueueUpdateDraw(func() {
			if a.currentChat == f.Typing.PeerID {
				a.updateChatTitle()
			}
		})
	})

	// Deletion broadcast. The conversation is not identified in the frame,
	// so every view gets the tombstone; unknown ids are ignored.
	a.client.OnFrame(protocol.TypeDeleted, func(f *protocol.Frame) {
		if f.Deleted == nil {
			return
		}
		a.mu.RLock()
		views := make([]*conversation.View, 0, len(a.views))
		for _, v := range a.views {
			views = append(views, v)
		}
		a.mu.RUnlock()

		for _, v := range views {
			v.ApplyDeleted(f.Deleted.MessageID)
		}
		a.app.QueueUpdateDraw(func() {
			if a.chatView != nil {
				a.refreshChatView()
			}
		})
	})

	// Presence updates for the roster and the open chat's title.
	a.client.OnFrame(protocol.TypePresence, func(f *protocol.Frame) {
		if f.Presence == nil {
			return
		}
		a.setPeerPresence(f.Presence.PeerID, f.Presence.Online, f.Presence.LastSeen)
		a.app.QueueUpdateDraw(func() {
			a.updatePeersList()
			if a.currentChat == f.Presence.PeerID {
				a.updateChatTitle()
			}
		})
	})

	// Hub-reported operation failures.
	a.client.OnFrame(protocol.TypeError, func(f *protocol.Frame) {
		if f.Error == nil {
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.setConnectionError(fmt.Sprintf("%s: %s", f.Error.Op, f.Error.Reason))
		})
	})

	// The read loop died; reconnection is left to the user (F6).
	a.client.OnFrame(protocol.TypeClosed, func(f *protocol.Frame) {
		a.binder.ConnectionLost()
		a.app.QueueUpdateDraw(func() {
			a.updateConnectionStatus()
			a.updateStatusBarText()
		})
	})
}
