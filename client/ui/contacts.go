package ui

import (
	"fmt"
)

// loadPeers fetches the roster from the hub's REST endpoint: everyone the
// user has exchanged messages with, plus their presence.
func (a *App) loadPeers() {
	go func() {
		peers, err := a.history.Peers()
		if err != nil {
			a.app.QueueUpdateDraw(func() {
				a.setConnectionError(fmt.Sprintf("Roster fetch failed: %v", err))
			})
			return
		}

		a.mu.Lock()
		// Keep presence already observed over the websocket; the REST
		// snapshot may lag behind live presence frames.
		for i := range peers {
			for _, old := range a.peers {
				if old.ID == peers[i].ID {
					peers[i].Online = peers[i].Online || old.Online
					break
				}
			}
		}
		a.peers = peers
		a.mu.Unlock()

		a.app.QueueUpdateDraw(func() {
			a.updatePeersList()
		})
	}()
}

// setPeerPresence applies a live presence frame to the roster. Unknown peers
// are ignored until the next roster reload picks them up.
func (a *App) setPeerPresence(peerID string, online bool, lastSeen string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.peers {
		if a.peers[i].ID == peerID {
			a.peers[i].Online = online
			if lastSeen != "" {
				a.peers[i].LastSeen = lastSeen
			}
			return
		}
	}
}

func (a *App) updatePeersList() {
	if a.peersList == nil {
		return
	}
	a.mu.RLock()
	defer a.mu.RUnlock()

	currentIdx := a.peersList.GetCurrentItem()
	a.peersList.Clear()

	for _, peer := range a.peers {
		name := peer.Name
		if name == "" {
			name = peer.ID
		}

		var mainText string
		unread := a.unreadCounts[peer.ID]

		if peer.Online {
			if unread > 0 {
				mainText = fmt.Sprintf("[green]●[white] %s [gray](%s) [red](%d)", name, peer.ID, unread)
			} else {
				mainText = fmt.Sprintf("[green]●[white] %s [gray](%s)", name, peer.ID)
			}
		} else {
			lastSeenStr := ""
			if formatted := formatLastSeen(peer.LastSeen); formatted != "" {
				lastSeenStr = fmt.Sprintf(" [gray]— %s", formatted)
			}

			if unread > 0 {
				mainText = fmt.Sprintf("[gray]○[white] %s [gray](%s)%s [red](%d)", name, peer.ID, lastSeenStr, unread)
			} else {
				mainText = fmt.Sprintf("[gray]○[white] %s [gray](%s)%s", name, peer.ID, lastSeenStr)
			}
		}

		a.peersList.AddItem(mainText, "", 0, nil)
	}

	if currentIdx >= 0 && currentIdx < a.peersList.GetItemCount() {
		a.peersList.SetCurrentItem(currentIdx)
	}
}
