package ui

import (
	"fmt"
	"time"
)

func (a *App) updateConnectionStatus() {
	if a.connectionView == nil {
		return
	}
	if a.client != nil && a.client.IsConnected() {
		a.connectionView.SetText(fmt.Sprintf("[green]● Connected to %s[-]", a.serverAddr))
	} else {
		a.connectionView.SetText(fmt.Sprintf("[red]○ Disconnected from %s[-]", a.serverAddr))
	}
}

// startStatusTicker keeps relative last-seen labels in the roster fresh.
func (a *App) startStatusTicker() {
	if a.statusTicker != nil {
		return
	}
	a.statusTickerDone = make(chan struct{})
	a.statusTicker = time.NewTicker(30 * time.Second)
	go func() {
		for {
			select {
			case <-a.statusTickerDone:
				return
			case <-a.statusTicker.C:
				a.app.QueueUpdateDraw(func() {
					a.updatePeersList()
				})
			}
		}
	}()
}

func (a *App) stopStatusTicker() {
	if a.statusTicker != nil {
		a.statusTicker.Stop()
		close(a.statusTickerDone)
		a.statusTicker = nil
	}
}

func (a *App) setConnectionError(err string) {
	if a.connectionView == nil {
		return
	}
	a.connectionView.SetText(fmt.Sprintf("[red]✗ Error: %s[-]", err))
}

func (a *App) updateStatusBarText() {
	if a.statusBar == nil {
		return
	}
	if a.client != nil && a.client.IsConnected() {
		a.statusBar.SetText(" F1:Help | F5:Refresh | F6:Disconnect | F10:Quit ")
	} else {
		a.statusBar.SetText(" F1:Help | F6:Connect | F10:Quit ")
	}
}

func (a *App) toggleConnection() {
	if a.client.IsConnected() {
		a.connectionView.SetText("[yellow]Disconnecting...[-]")
		a.binder.Shutdown()
		a.client.Disconnect()
		a.resetPresence()
		a.updateConnectionStatus()
		a.updateStatusBarText()
		a.updatePeersList()
	} else {
		a.connectionView.SetText("[yellow]Connecting...[-]")
		go func() {
			a.binder.Reconnect()
			a.app.QueueUpdateDraw(func() {
				a.updateConnectionStatus()
				a.updateStatusBarText()
				if a.client.IsConnected() {
					a.loadPeers()
				}
			})
		}()
	}
}

// resetPresence marks everyone offline; presence frames rebuild the picture
// after the next connect.
func (a *App) resetPresence() {
	a.mu.Lock()
	for i := range a.peers {
		a.peers[i].Online = false
	}
	for k := range a.unreadCounts {
		delete(a.unreadCounts, k)
	}
	a.mu.Unlock()
}
