// Package chatclient keeps a local, optimistically updated copy of one
// group's message log on top of a Transport.
package chatclient

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"studygroup-service/internal/logging"
	"studygroup-service/internal/models"
)

// Palette is the set of reactions offered to users. The server accepts any
// symbol.
var Palette = []string{"👍", "❤️", "😂", "😮"}

var (
	ErrEmptyMessage   = errors.New("chatclient: message text is empty")
	ErrUnknownMessage = errors.New("chatclient: message is not in the local log")
	ErrNotLoaded      = errors.New("chatclient: room is not loaded")
)

// State is where a locally composed message is in its lifecycle.
type State int

const (
	Displayed State = iota
	Confirmed
	RolledBack
)

func (s State) String() string {
	switch s {
	case Displayed:
		return "displayed"
	case Confirmed:
		return "confirmed"
	case RolledBack:
		return "rolled-back"
	default:
		return "unknown"
	}
}

// Entry is one rendered message.
type Entry struct {
	Message models.Message
	State   State
	// Local entries are never sent to the server.
	Local bool
}

type EventKind int

const (
	EventRendered EventKind = iota
	EventConfirmed
	EventRolledBack
	EventReplaced
	EventAssistantPending
	EventAssistantDone
	EventError
)

// Event is delivered to the Renderer on every visible change.
type Event struct {
	Kind  EventKind
	Entry Entry
	Err   error
}

type Renderer func(Event)

type Option func(*Room)

func WithRenderer(fn Renderer) Option {
	return func(r *Room) { r.render = fn }
}

func WithAssistantTimeout(d time.Duration) Option {
	return func(r *Room) { r.assistantTimeout = d }
}

func withClock(now func() time.Time) Option {
	return func(r *Room) { r.now = now }
}

func withIDs(newID func() string) Option {
	return func(r *Room) { r.newID = newID }
}

// Room is the client view of a single group.
type Room struct {
	transport Transport
	groupID   string
	username  string

	render           Renderer
	assistantTimeout time.Duration
	now              func() time.Time
	newID            func() string

	mu        sync.Mutex
	loaded    bool
	groupName string
	entries   []Entry
	pendingAI int

	errs chan error
	wg   sync.WaitGroup
}

func NewRoom(transport Transport, groupID, username string, opts ...Option) *Room {
	r := &Room{
		transport:        transport,
		groupID:          groupID,
		username:         username,
		render:           func(Event) {},
		assistantTimeout: 90 * time.Second,
		now:              time.Now,
		newID:            uuid.NewString,
		errs:             make(chan error, 16),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WelcomeText is shown in place of an empty log.
func WelcomeText(groupName string) string {
	return "Welcome to " + groupName + "! Say hello, or type '" + models.AssistantPrefix +
		"' followed by a question to get help from the AI assistant."
}

// Load fetches the group and its log, replacing anything held locally.
func (r *Room) Load(ctx context.Context) error {
	group, err := r.transport.GetGroup(ctx, r.groupID)
	if err != nil {
		return err
	}
	msgs, err := r.transport.ListMessages(ctx, r.groupID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.loaded = true
	r.groupName = group.GroupName
	r.entries = make([]Entry, 0, len(msgs))
	for _, m := range msgs {
		r.entries = append(r.entries, Entry{Message: m, State: Confirmed})
	}
	snapshot := r.entriesLocked()
	r.mu.Unlock()

	for _, e := range snapshot {
		r.render(Event{Kind: EventRendered, Entry: e})
	}
	return nil
}

// Refresh merges the server log into the local one. Messages still awaiting
// confirmation stay at the end.
func (r *Room) Refresh(ctx context.Context) error {
	msgs, err := r.transport.ListMessages(ctx, r.groupID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	seen := make(map[string]struct{}, len(msgs))
	next := make([]Entry, 0, len(msgs)+len(r.entries))
	for _, m := range msgs {
		seen[m.ID] = struct{}{}
		next = append(next, Entry{Message: m, State: Confirmed})
	}
	for _, e := range r.entries {
		if _, ok := seen[e.Message.ID]; !ok && e.State == Displayed {
			next = append(next, e)
		}
	}
	r.entries = next
	r.mu.Unlock()
	return nil
}

// Send composes a message from text, shows it immediately and submits it.
// On failure the message is removed again and the error returned. A message
// addressed to the assistant also starts a background assistant request
// once the append has settled, whether or not it succeeded.
func (r *Room) Send(ctx context.Context, text, parentID string) (models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Message{}, ErrEmptyMessage
	}

	msg := models.Message{
		ID:        "msg-" + r.newID(),
		Sender:    r.username,
		Text:      text,
		Timestamp: models.FormatTimestamp(r.now()),
		ParentID:  parentID,
	}

	r.mu.Lock()
	if !r.loaded {
		r.mu.Unlock()
		return models.Message{}, ErrNotLoaded
	}
	entry := Entry{Message: msg, State: Displayed}
	r.entries = append(r.entries, entry)
	r.mu.Unlock()
	r.render(Event{Kind: EventRendered, Entry: entry})

	question, addressed := models.StripAssistantPrefix(text)
	addressed = addressed && question != ""

	stored, err := r.transport.AppendMessage(ctx, r.groupID, msg)
	if err != nil {
		r.mu.Lock()
		r.removeLocked(msg.ID)
		r.mu.Unlock()
		r.render(Event{Kind: EventRolledBack, Entry: Entry{Message: msg, State: RolledBack}, Err: err})
		r.report(err)
		if addressed {
			r.askAssistant(ctx, text)
		}
		return models.Message{}, err
	}

	r.mu.Lock()
	if i := r.indexLocked(msg.ID); i >= 0 {
		r.entries[i] = Entry{Message: stored, State: Confirmed}
	}
	r.mu.Unlock()
	r.render(Event{Kind: EventConfirmed, Entry: Entry{Message: stored, State: Confirmed}})

	if addressed {
		r.askAssistant(ctx, text)
	}
	return stored, nil
}

func (r *Room) askAssistant(ctx context.Context, prompt string) {
	r.mu.Lock()
	r.pendingAI++
	r.mu.Unlock()
	r.render(Event{Kind: EventAssistantPending})

	requestID := r.newID()
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.assistantTimeout)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cancel()

		reply, err := r.transport.AskAssistant(actx, r.groupID, prompt, requestID)

		r.mu.Lock()
		r.pendingAI--
		if err != nil {
			r.mu.Unlock()
			logging.Log.Warn("assistant request failed",
				zap.String("group_id", r.groupID),
				zap.String("request_id", requestID),
				zap.Error(err),
			)
			r.render(Event{Kind: EventAssistantDone, Err: err})
			r.report(err)
			return
		}
		entry := Entry{Message: reply, State: Confirmed}
		if r.indexLocked(reply.ID) < 0 {
			r.entries = append(r.entries, entry)
		}
		r.mu.Unlock()
		r.render(Event{Kind: EventAssistantDone, Entry: entry})
	}()
}

// ToggleReaction flips the user's reaction locally, then adopts the
// server's copy of the message. A failed call restores the previous copy.
func (r *Room) ToggleReaction(ctx context.Context, messageID, emoji string) (models.Message, error) {
	r.mu.Lock()
	i := r.indexLocked(messageID)
	if i < 0 || r.entries[i].State != Confirmed {
		r.mu.Unlock()
		return models.Message{}, ErrUnknownMessage
	}
	prev := r.entries[i].Message.Clone()
	next := prev.Clone()
	next.Reactions, _ = next.Reactions.Toggle(emoji, r.username)
	r.entries[i].Message = next
	r.mu.Unlock()
	r.render(Event{Kind: EventReplaced, Entry: Entry{Message: next, State: Confirmed}})

	stored, err := r.transport.ToggleReaction(ctx, r.groupID, messageID, emoji)
	r.mu.Lock()
	i = r.indexLocked(messageID)
	if err != nil {
		if i >= 0 {
			r.entries[i].Message = prev
		}
		r.mu.Unlock()
		r.render(Event{Kind: EventReplaced, Entry: Entry{Message: prev, State: Confirmed}, Err: err})
		r.report(err)
		return models.Message{}, err
	}
	if i >= 0 {
		r.entries[i].Message = stored
	}
	r.mu.Unlock()
	r.render(Event{Kind: EventReplaced, Entry: Entry{Message: stored, State: Confirmed}})
	return stored, nil
}

// Entries returns what should be on screen, including the welcome notice
// for an empty log.
func (r *Room) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entriesLocked()
}

// Messages returns the messages of Entries.
func (r *Room) Messages() []models.Message {
	entries := r.Entries()
	out := make([]models.Message, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out
}

// AssistantPending reports whether an assistant reply is outstanding.
func (r *Room) AssistantPending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pendingAI > 0
}

// Errors carries asynchronous failures. Errors are dropped when nobody reads.
func (r *Room) Errors() <-chan error {
	return r.errs
}

// Wait blocks until background assistant requests finish.
func (r *Room) Wait() {
	r.wg.Wait()
}

func (r *Room) report(err error) {
	r.render(Event{Kind: EventError, Err: err})
	select {
	case r.errs <- err:
	default:
	}
}

func (r *Room) entriesLocked() []Entry {
	if !r.loaded {
		return nil
	}
	if len(r.entries) == 0 {
		return []Entry{{
			Message: models.Message{
				ID:        "welcome-" + r.groupID,
				Sender:    models.SenderSystem,
				Text:      WelcomeText(r.groupName),
				Timestamp: models.FormatTimestamp(r.now()),
			},
			State: Confirmed,
			Local: true,
		}}
	}
	out := make([]Entry, len(r.entries))
	for i, e := range r.entries {
		out[i] = Entry{Message: e.Message.Clone(), State: e.State, Local: e.Local}
	}
	return out
}

func (r *Room) indexLocked(id string) int {
	for i, e := range r.entries {
		if e.Message.ID == id {
			return i
		}
	}
	return -1
}

func (r *Room) removeLocked(id string) {
	if i := r.indexLocked(id); i >= 0 {
		r.entries = append(r.entries[:i], r.entries[i+1:]...)
	}
}
