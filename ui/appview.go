package ui

import (
	"context"
	"sync/atomic"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"suptui/config"
	"suptui/model"
	"suptui/render"
	"suptui/syncer"
)

// pinnedSurface mirrors the viewport's bottom-pinned state into a value
// the engine goroutine can read without touching bubbletea state. The
// shell refreshes it after every Update.
type pinnedSurface struct {
	pinned atomic.Bool
}

func (s *pinnedSurface) AtBottom() bool { return s.pinned.Load() }

type AppView struct {
	cfg      *config.Config
	engine   *syncer.Engine
	surface  *pinnedSurface
	notifier Notifier

	// UI Components
	viewport viewport.Model
	input    textinput.Model

	// Window state
	width  int
	height int
	ready  bool

	// Widget state
	open           bool
	groups         []render.DayGroup
	operatorTyping bool
	statusError    string

	// Message search overlay
	showSearch        bool
	searchInput       textinput.Model
	searchResults     []searchMatch
	selectedSearchIdx int
}

func NewAppView(cfg *config.Config, client syncer.APIClient, store syncer.SessionStore) AppView {
	surface := &pinnedSurface{}
	surface.pinned.Store(true)

	engine := syncer.New(client, store, surface)
	engine.PollInterval = cfg.PollInterval()
	engine.TypingDebounce = cfg.TypingDebounce()

	input := textinput.New()
	input.Placeholder = "Type a message..."
	input.Prompt = "> "
	input.CharLimit = 2000

	searchInput := textinput.New()
	searchInput.Placeholder = "Search..."
	searchInput.Prompt = "/ "

	return AppView{
		cfg:         cfg,
		engine:      engine,
		surface:     surface,
		notifier:    TerminalBell{},
		input:       input,
		searchInput: searchInput,
	}
}

func (a AppView) Init() tea.Cmd {
	return waitForEngineEvent(a.engine)
}

// waitForEngineEvent blocks on the engine's channel and republishes the
// next event as a tea message. Re-armed after every delivery.
func waitForEngineEvent(engine *syncer.Engine) tea.Cmd {
	return func() tea.Msg {
		return EngineEventMsg{Event: <-engine.Events}
	}
}

func (a AppView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return a.handleResize(msg)

	case tea.KeyMsg:
		return a.handleKey(msg)

	case EngineEventMsg:
		return a.handleEngineEvent(msg)

	case WidgetOpenedMsg:
		if msg.Err != nil {
			a.statusError = msg.Err.Error()
			debugf("widget open failed: %v", msg.Err)
		}
		return a, nil

	case MessageSentMsg:
		if msg.Err != nil {
			a.statusError = msg.Err.Error()
			debugf("send failed: %v", msg.Err)
		} else {
			a.statusError = ""
		}
		return a, nil

	case ClipboardResultMsg:
		if msg.Err != nil {
			a.statusError = "clipboard: " + msg.Err.Error()
		}
		return a, nil
	}

	return a, nil
}

func (a AppView) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	a.width = msg.Width
	a.height = msg.Height

	// Title(1) + typing(1) + input(1) + footer(1)
	viewportHeight := msg.Height - 4
	if viewportHeight < 1 {
		viewportHeight = 1
	}

	if !a.ready {
		a.viewport = viewport.New(msg.Width, viewportHeight)
		a.ready = true
	} else {
		a.viewport.Width = msg.Width
		a.viewport.Height = viewportHeight
	}
	a.input.Width = msg.Width - 4

	a.updateViewportContent(a.viewport.AtBottom())
	a.surface.pinned.Store(a.viewport.AtBottom())
	return a, nil
}

func (a AppView) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.showSearch {
		return a.updateSearch(msg)
	}

	switch msg.String() {
	case "ctrl+c", "alt+q":
		a.engine.Close()
		return a, tea.Quit
	}

	if !a.open {
		switch msg.String() {
		case "o", "enter":
			return a.expand()
		}
		return a, nil
	}

	switch msg.String() {
	case "esc":
		// Collapse: stop polling, keep the painted conversation.
		a.engine.Close()
		a.open = false
		a.operatorTyping = false
		return a, nil

	case "enter":
		engine := a.engine
		text := a.input.Value()
		return a, func() tea.Msg {
			return MessageSentMsg{Err: engine.SendMessage(context.Background(), text)}
		}

	case "alt+f":
		a.showSearch = true
		a.searchInput.Reset()
		a.searchInput.Focus()
		a.searchResults = nil
		a.selectedSearchIdx = 0
		return a, nil

	case "alt+y":
		return a.copyNewestReply()

	case "up", "down", "pgup", "pgdown", "home", "end":
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		a.surface.pinned.Store(a.viewport.AtBottom())
		return a, cmd
	}

	before := a.input.Value()
	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	if a.input.Value() != before {
		a.engine.InputChanged(context.Background())
	}
	return a, cmd
}

func (a AppView) expand() (tea.Model, tea.Cmd) {
	a.open = true
	a.statusError = ""
	a.input.Focus()

	engine := a.engine
	return a, func() tea.Msg {
		return WidgetOpenedMsg{Err: engine.Open(context.Background())}
	}
}

func (a AppView) handleEngineEvent(msg EngineEventMsg) (tea.Model, tea.Cmd) {
	switch ev := msg.Event.(type) {
	case syncer.RenderEvent:
		a.groups = ev.Groups
		a.updateViewportContent(ev.Repin)
		if ev.Sound && a.cfg.SoundEnabled {
			a.notifier.Notify()
		}

	case syncer.TypingEvent:
		a.operatorTyping = ev.Operator

	case syncer.InputClearedEvent:
		a.input.Reset()
	}

	a.surface.pinned.Store(a.viewport.AtBottom())
	return a, waitForEngineEvent(a.engine)
}

func (a AppView) copyNewestReply() (tea.Model, tea.Cmd) {
	text := newestReply(a.groups)
	if text == "" {
		a.statusError = "no reply to copy"
		return a, nil
	}
	return a, func() tea.Msg {
		return ClipboardResultMsg{Err: clipboard.WriteAll(text)}
	}
}

// newestReply returns the text of the most recent operator message, or
// "" when the operator has not replied yet.
func newestReply(groups []render.DayGroup) string {
	for i := len(groups) - 1; i >= 0; i-- {
		msgs := groups[i].Messages
		for j := len(msgs) - 1; j >= 0; j-- {
			if msgs[j].Sender == model.SenderOperator {
				return msgs[j].Text
			}
		}
	}
	return ""
}

func debugf(format string, args ...any) {
	if config.DebugLog != nil {
		config.DebugLog.Printf(format, args...)
	}
}
