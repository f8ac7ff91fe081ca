// Package syncer runs the polling loop that keeps the widget's view of
// the conversation current: fetch snapshots on an interval, repaint only
// when the message count changes, propagate typing state both ways.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"suptui/config"
	"suptui/model"
	"suptui/render"
	"suptui/session"
)

// APIClient is the slice of the chat API the engine needs. *api.Client
// satisfies it; tests substitute fakes.
type APIClient interface {
	StartChat(ctx context.Context) (string, error)
	FetchChat(ctx context.Context, chatID string) ([]model.Message, error)
	SendMessage(ctx context.Context, chatID, text string) error
	OperatorTyping(ctx context.Context, chatID string) (bool, error)
	SetTyping(ctx context.Context, chatID string, role model.Sender, isTyping bool) error
}

// SessionStore persists the chat identifier across runs. *session.Store
// satisfies it.
type SessionStore interface {
	Get() (string, error)
	Set(chatID string) error
}

// Surface is the part of the shell the engine reads before each fetch:
// whether the viewport is pinned to the newest message. The answer is
// captured before the network round trip so that a user who scrolled up
// mid-flight is not yanked back down.
type Surface interface {
	AtBottom() bool
}

// Event is a notification from the engine to the shell: one of
// RenderEvent, TypingEvent or InputClearedEvent.
type Event any

// RenderEvent carries a freshly grouped snapshot. The shell repaints the
// viewport from Groups, scrolls to bottom when Repin is set, and rings
// the bell when Sound is set.
type RenderEvent struct {
	Groups []render.DayGroup
	Repin  bool
	Sound  bool
}

// TypingEvent reports the operator's typing flag, emitted on every
// successful poll whether or not it changed.
type TypingEvent struct {
	Operator bool
}

// InputClearedEvent tells the shell to empty the input line after a
// message was accepted by the server.
type InputClearedEvent struct{}

// Engine owns the poll loop for one conversation. Construct with New,
// then Open/Close as the widget expands and collapses; the last painted
// message count survives Close so a reopen does not repaint an unchanged
// conversation.
type Engine struct {
	client  APIClient
	store   SessionStore
	surface Surface

	// Intervals are fields rather than constants so tests can shrink them.
	PollInterval   time.Duration
	TypingDebounce time.Duration

	// Events is drained by the shell. Sends never block the poll loop; if
	// the shell falls behind, events are dropped and logged.
	Events chan Event

	mu                sync.Mutex
	chatID            string
	seq               uint64
	lastRenderedCount int
	running           bool
	stop              chan struct{}
	typingTimer       *time.Timer
	typingActive      bool
}

func New(client APIClient, store SessionStore, surface Surface) *Engine {
	return &Engine{
		client:         client,
		store:          store,
		surface:        surface,
		PollInterval:   2 * time.Second,
		TypingDebounce: 2 * time.Second,
		Events:         make(chan Event, 16),
	}
}

// Open resolves the chat identifier (reusing the stored one, or
// allocating a new chat server-side) and starts the poll loop. Calling
// Open while the loop is already running is a no-op; there is never more
// than one ticker goroutine.
func (e *Engine) Open(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil
	}
	needID := e.chatID == ""
	e.mu.Unlock()

	if needID {
		id, err := e.resolveChatID(ctx)
		if err != nil {
			return err
		}
		e.mu.Lock()
		e.chatID = id
		e.mu.Unlock()
	}

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = true
	e.stop = make(chan struct{})
	stop := e.stop
	e.mu.Unlock()

	go e.loop(ctx, stop)
	return nil
}

// Close stops the poll loop and the typing debounce timer. In-flight
// responses from this session are fenced off and will not emit events or
// touch the rendered count. Idempotent.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	e.running = false
	e.seq++
	close(e.stop)
	e.stop = nil
	if e.typingTimer != nil {
		e.typingTimer.Stop()
		e.typingTimer = nil
	}
	e.typingActive = false
}

// SendMessage posts a visitor message. Whitespace-only input is rejected
// silently before any network traffic. On success the engine clears the
// visitor's typing flag, asks the shell to empty the input line, and
// forces one immediate poll so the sent message appears without waiting
// for the next tick.
func (e *Engine) SendMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	chatID := e.chatID
	e.typingActive = false
	if e.typingTimer != nil {
		e.typingTimer.Stop()
		e.typingTimer = nil
	}
	e.mu.Unlock()

	if err := e.client.SetTyping(ctx, chatID, model.SenderVisitor, false); err != nil {
		debugf("failed to clear typing flag: %v", err)
	}

	if err := e.client.SendMessage(ctx, chatID, text); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	e.emit(InputClearedEvent{})
	e.poll(ctx)
	return nil
}

// InputChanged is called for every keystroke in the input line. Each
// keystroke publishes typing=true (keeping the server-side expiry
// fresh) and resets the single debounce timer that publishes
// typing=false after the debounce interval of silence.
func (e *Engine) InputChanged(ctx context.Context) {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	chatID := e.chatID
	e.typingActive = true
	if e.typingTimer != nil {
		e.typingTimer.Stop()
	}
	e.typingTimer = time.AfterFunc(e.TypingDebounce, e.typingExpired)
	e.mu.Unlock()

	// Fire and forget; a keystroke must never wait on the network.
	go func() {
		if err := e.client.SetTyping(ctx, chatID, model.SenderVisitor, true); err != nil {
			debugf("failed to set typing flag: %v", err)
		}
	}()
}

func (e *Engine) typingExpired() {
	e.mu.Lock()
	if !e.typingActive {
		e.mu.Unlock()
		return
	}
	e.typingActive = false
	e.typingTimer = nil
	chatID := e.chatID
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.client.SetTyping(ctx, chatID, model.SenderVisitor, false); err != nil {
		debugf("failed to clear typing flag: %v", err)
	}
}

func (e *Engine) resolveChatID(ctx context.Context) (string, error) {
	id, err := e.store.Get()
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, session.ErrNoSession) {
		return "", fmt.Errorf("failed to load session: %w", err)
	}

	id, err = e.client.StartChat(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to start chat: %w", err)
	}
	if err := e.store.Set(id); err != nil {
		return "", fmt.Errorf("failed to persist session: %w", err)
	}
	return id, nil
}

func (e *Engine) loop(ctx context.Context, stop chan struct{}) {
	e.poll(ctx)

	ticker := time.NewTicker(e.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.poll(ctx)
		}
	}
}

// poll runs one sync tick. The sequence number issued at the start
// fences the tick: Close (and any later tick) bumps the counter, and a
// response that comes back under an old number is discarded wholesale.
func (e *Engine) poll(ctx context.Context) {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.seq++
	seq := e.seq
	chatID := e.chatID
	e.mu.Unlock()

	pinned := e.surface.AtBottom()

	msgs, err := e.client.FetchChat(ctx, chatID)
	if err != nil {
		debugf("poll: fetch failed: %v", err)
		return
	}
	now := time.Now()

	e.mu.Lock()
	if seq != e.seq {
		e.mu.Unlock()
		return
	}
	changed := len(msgs) != e.lastRenderedCount
	if changed {
		e.lastRenderedCount = len(msgs)
	}
	e.mu.Unlock()

	if changed {
		sound := len(msgs) > 0 && msgs[len(msgs)-1].Sender == model.SenderOperator
		e.emit(RenderEvent{
			Groups: render.Group(msgs, now),
			Repin:  pinned,
			Sound:  sound,
		})
	}

	typing, err := e.client.OperatorTyping(ctx, chatID)
	if err != nil {
		debugf("poll: typing fetch failed: %v", err)
		return
	}

	e.mu.Lock()
	stale := seq != e.seq
	e.mu.Unlock()
	if stale {
		return
	}
	e.emit(TypingEvent{Operator: typing})
}

func (e *Engine) emit(ev Event) {
	select {
	case e.Events <- ev:
	default:
		debugf("event dropped: %T", ev)
	}
}

func debugf(format string, args ...any) {
	if config.DebugLog != nil {
		config.DebugLog.Printf(format, args...)
	}
}
