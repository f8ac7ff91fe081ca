package ui

import "suptui/syncer"

// EngineEventMsg wraps one event drained from the sync engine's channel
// into the bubbletea message stream.
type EngineEventMsg struct {
	Event syncer.Event
}

// WidgetOpenedMsg reports the outcome of expanding the widget (session
// resolution plus poll-loop start).
type WidgetOpenedMsg struct {
	Err error
}

// MessageSentMsg reports the outcome of posting the input line.
type MessageSentMsg struct {
	Err error
}

// ClipboardResultMsg reports the outcome of copying a reply.
type ClipboardResultMsg struct {
	Err error
}
