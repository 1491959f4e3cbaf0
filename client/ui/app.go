package ui

import (
	"sync"
	"time"

	"educhat/conversation"
	"educhat/models"
	"educhat/protocol"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// App is the main application
type App struct {
	app   *tview.Application
	pages *tview.Pages

	client  *protocol.Client
	history *protocol.HistoryClient
	binder  *conversation.Binder

	serverAddr string
	userID     string
	userName   string
	courseID   string

	mu           sync.RWMutex
	peers        []models.Peer
	unreadCounts map[string]int
	views        map[string]*conversation.View
	currentChat  string

	peersList        *tview.List
	chatView         *tview.TextView
	messageInput     *tview.InputField
	statusBar        *tview.TextView
	connectionView   *tview.TextView
	statusTicker     *time.Ticker
	statusTickerDone chan struct{}
}

// NewApp creates a new application instance
func NewApp(serverAddr, userID, userName, courseID string) *App {
	return &App{
		serverAddr:   serverAddr,
		userID:       userID,
		userName:     userName,
		courseID:     courseID,
		unreadCounts: make(map[string]int),
		views:        make(map[string]*conversation.View),
	}
}

// Run starts the application
func (a *App) Run() error {
	a.app = tview.NewApplication()
	a.pages = tview.NewPages()

	// Create empty background
	background := tview.NewBox()
	background.SetBackgroundColor(tcell.NewRGBColor(64, 64, 64))
	a.pages.AddPage("background", background, true, true)

	// Show join dialog on top
	a.showJoinDialog()

	return a.app.SetRoot(a.pages, true).EnableMouse(false).Run()
}

// currentView returns the view of the open chat, if any.
func (a *App) currentView() *conversation.View {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.currentChat == "" {
		return nil
	}
	return a.views[a.currentChat]
}

// viewFor returns the conversation view for a peer, creating it on first use.
func (a *App) viewFor(peer models.Peer) *conversation.View {
	a.mu.Lock()
	defer a.mu.Unlock()
	if v, ok := a.views[peer.ID]; ok {
		return v
	}
	v := conversation.NewView(a.userID, a.userName, a.courseID, peer, a.client)
	a.views[peer.ID] = v
	return v
}

// quit exits the application
func (a *App) quit() {
	a.stopStatusTicker()
	if v := a.currentView(); v != nil {
		v.Close()
	}
	if a.binder != nil {
		a.binder.Shutdown()
	}
	if a.client != nil {
		a.client.Disconnect()
	}
	a.app.Stop()
}
