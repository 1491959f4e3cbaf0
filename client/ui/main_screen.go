package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

func (a *App) showMainScreen() {
	// Remove join dialog and background
	a.pages.RemovePage("join")
	a.pages.RemovePage("background")

	// Create and add main page
	mainPage := a.createMainPage()
	a.pages.AddPage("main", mainPage, true, true)

	// Update title with current user
	a.peersList.SetTitle(fmt.Sprintf(" Classmates [%s] ", a.userID))

	// Start ticker that keeps last-seen labels fresh
	a.startStatusTicker()

	// Update connection status
	a.updateConnectionStatus()
	a.updateStatusBarText()

	// Load the roster
	a.loadPeers()

	// Focus on peers list
	a.app.SetFocus(a.peersList)
}

func (a *App) createMainPage() tview.Primitive {
	// Peers list on the left
	a.peersList = tview.NewList()
	a.peersList.SetBorder(true)
	a.peersList.SetBorderColor(ColorBorder)
	a.peersList.SetBackgroundColor(ColorBg)
	a.peersList.SetTitle(" Classmates ")
	a.peersList.SetTitleColor(ColorTitle)
	a.peersList.SetMainTextColor(ColorFg)
	a.peersList.SetMainTextStyle(tcell.StyleDefault.Foreground(ColorFg).Background(ColorBg))
	a.peersList.SetSelectedTextColor(ColorTitle)
	a.peersList.SetSelectedBackgroundColor(tcell.NewRGBColor(0, 128, 128))
	a.peersList.SetHighlightFullLine(true)
	a.peersList.ShowSecondaryText(false)

	a.peersList.SetSelectedFunc(func(index int, mainText, secondaryText string, shortcut rune) {
		a.mu.RLock()
		if index < len(a.peers) {
			peer := a.peers[index]
			a.mu.RUnlock()
			a.openChat(peer)
		} else {
			a.mu.RUnlock()
		}
	})

	// Connection status view
	a.connectionView = tview.NewTextView()
	a.connectionView.SetBorder(true)
	a.connectionView.SetBorderColor(ColorBorder)
	a.connectionView.SetBackgroundColor(ColorBg)
	a.connectionView.SetTitle(" Connection ")
	a.connectionView.SetTitleColor(ColorTitle)
	a.connectionView.SetTextColor(ColorFg)
	a.connectionView.SetDynamicColors(true)
	a.connectionView.SetTextAlign(tview.AlignCenter)
	a.updateConnectionStatus()

	// Status bar at bottom
	a.statusBar = tview.NewTextView()
	a.statusBar.SetBackgroundColor(tcell.NewRGBColor(0, 128, 128))
	a.statusBar.SetTextColor(ColorTitle)
	a.statusBar.SetTextAlign(tview.AlignCenter)
	a.updateStatusBarText()

	// Main layout
	mainFlex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.peersList, 0, 1, true).
		AddItem(a.connectionView, 3, 0, false).
		AddItem(a.statusBar, 1, 0, false)
	mainFlex.SetBackgroundColor(ColorBg)

	// Handle keyboard
	mainFlex.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyF1:
			a.showHelp()
			return nil
		case tcell.KeyF5:
			a.loadPeers()
			return nil
		case tcell.KeyF6:
			a.toggleConnection()
			return nil
		case tcell.KeyF10:
			a.quit()
			return nil
		case tcell.KeyEsc:
			a.quit()
			return nil
		}
		return event
	})

	return mainFlex
}
