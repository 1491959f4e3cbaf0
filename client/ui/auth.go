package ui

import (
	"fmt"

	"educhat/conversation"
	"educhat/models"
	"educhat/protocol"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

func (a *App) showJoinDialog() {
	// Form container
	form := tview.NewForm()
	form.SetBackgroundColor(ColorBg)
	form.SetFieldBackgroundColor(tcell.NewRGBColor(0, 0, 64))
	form.SetFieldTextColor(ColorFg)
	form.SetLabelColor(ColorHighlight)
	form.SetButtonBackgroundColor(tcell.NewRGBColor(0, 128, 128))
	form.SetButtonTextColor(ColorTitle)
	form.SetBorder(true)
	form.SetBorderColor(ColorBorder)
	form.SetTitle(" educhat ")
	form.SetTitleColor(ColorTitle)

	var userField, nameField *tview.InputField
	var statusText *tview.TextView

	statusText = tview.NewTextView()
	statusText.SetBackgroundColor(ColorBg)
	statusText.SetTextColor(tcell.ColorRed)
	statusText.SetTextAlign(tview.AlignCenter)
	statusText.SetDynamicColors(true)

	userField = tview.NewInputField()
	userField.SetLabel("User ID: ")
	userField.SetFieldWidth(30)
	userField.SetText(a.userID)
	userField.SetBackgroundColor(ColorBg)

	nameField = tview.NewInputField()
	nameField.SetLabel("Name: ")
	nameField.SetFieldWidth(30)
	nameField.SetText(a.userName)
	nameField.SetBackgroundColor(ColorBg)

	form.AddFormItem(userField)
	form.AddFormItem(nameField)

	form.AddButton("Join", func() {
		userID := userField.GetText()
		name := nameField.GetText()
		if userID == "" {
			statusText.SetText("[red]Please enter a user id[-]")
			return
		}
		if name == "" {
			name = userID
		}
		a.doJoin(userID, name, statusText)
	})

	form.AddButton("Quit", func() {
		a.app.Stop()
	})

	// Center the form
	formFlex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(form, 0, 1, true).
		AddItem(statusText, 1, 0, false)

	// Create modal-like container
	width := 54
	height := 11

	modal := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().
			AddItem(nil, 0, 1, false).
			AddItem(formFlex, width, 0, true).
			AddItem(nil, 0, 1, false), height, 0, true).
		AddItem(nil, 0, 1, false)

	a.pages.AddPage("join", modal, true, true)
	a.app.SetFocus(form)
}

func (a *App) doJoin(userID, userName string, statusText *tview.TextView) {
	statusText.SetText("Connecting...")

	a.userID = userID
	a.userName = userName
	a.client = protocol.NewClient("ws://"+a.serverAddr+"/ws", userID, userName)
	a.history = protocol.NewHistoryClient("http://"+a.serverAddr, userID)
	a.binder = conversation.NewBinder(a.client, a.history, 0)

	a.binder.OnStatus = func(connected bool) {
		a.app.QueueUpdateDraw(func() {
			a.updateConnectionStatus()
			a.updateStatusBarText()
		})
	}
	a.binder.OnHistory = func(peerID string, history []models.Message) {
		a.mu.RLock()
		v := a.views[peerID]
		a.mu.RUnlock()
		if v == nil {
			return
		}
		v.SeedHistory(history)
		a.app.QueueUpdateDraw(func() {
			if a.currentChat == peerID && a.chatView != nil {
				a.refreshChatView()
			}
		})
	}

	a.setupHandlers()

	// Run connection in goroutine to avoid blocking UI
	go func() {
		if err := a.client.Connect(); err != nil {
			a.app.QueueUpdateDraw(func() {
				statusText.SetText(fmt.Sprintf("Connection failed: %v", err))
			})
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.showMainScreen()
		})
	}()
}
