package chatclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studygroup-service/internal/models"
)

// fakeTransport keeps a server-side log in memory. Hooks let tests fail or
// block individual calls.
type fakeTransport struct {
	mu       sync.Mutex
	group    models.Group
	log      []models.Message
	appended []models.Message

	appendErr error
	toggleErr error
	askErr    error
	askGate   chan struct{}
	asked     []string
}

func newFakeTransport(name string, log ...models.Message) *fakeTransport {
	return &fakeTransport{group: models.Group{ID: "group-1", GroupName: name}, log: log}
}

func (f *fakeTransport) GetGroup(context.Context, string) (models.Group, error) {
	return f.group, nil
}

func (f *fakeTransport) ListMessages(context.Context, string) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Message(nil), f.log...), nil
}

func (f *fakeTransport) AppendMessage(_ context.Context, _ string, msg models.Message) (models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended = append(f.appended, msg)
	if f.appendErr != nil {
		return models.Message{}, f.appendErr
	}
	f.log = append(f.log, msg)
	return msg, nil
}

func (f *fakeTransport) ToggleReaction(_ context.Context, _, messageID, emoji string) (models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.toggleErr != nil {
		return models.Message{}, f.toggleErr
	}
	for i, m := range f.log {
		if m.ID == messageID {
			f.log[i].Reactions, _ = m.Reactions.Toggle(emoji, "alice")
			return f.log[i].Clone(), nil
		}
	}
	return models.Message{}, errors.New("message not found")
}

func (f *fakeTransport) AskAssistant(ctx context.Context, _, prompt, requestID string) (models.Message, error) {
	if f.askGate != nil {
		select {
		case <-f.askGate:
		case <-ctx.Done():
			return models.Message{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asked = append(f.asked, prompt)
	if f.askErr != nil {
		return models.Message{}, f.askErr
	}
	reply := models.Message{ID: "msg-ai-" + requestID, Sender: models.SenderAssistant, Text: "answer"}
	f.log = append(f.log, reply)
	return reply, nil
}

func newTestRoom(t *testing.T, tr Transport, opts ...Option) *Room {
	t.Helper()
	n := 0
	var mu sync.Mutex
	ids := func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id%d", n)
	}
	clock := func() time.Time { return time.Date(2024, 5, 1, 14, 5, 0, 0, time.UTC) }
	opts = append([]Option{withIDs(ids), withClock(clock)}, opts...)
	room := NewRoom(tr, "group-1", "alice", opts...)
	require.NoError(t, room.Load(context.Background()))
	return room
}

func TestLoadEmptyLogShowsWelcome(t *testing.T) {
	tr := newFakeTransport("Algo Avengers")
	room := newTestRoom(t, tr)

	entries := room.Entries()
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Local)
	assert.Equal(t, models.SenderSystem, entries[0].Message.Sender)
	assert.Equal(t, "Welcome to Algo Avengers! Say hello, or type '@ai' followed by a question to get help from the AI assistant.", entries[0].Message.Text)
	assert.Empty(t, tr.appended)
}

func TestSendConfirms(t *testing.T) {
	tr := newFakeTransport("Algo Avengers")
	var events []EventKind
	room := newTestRoom(t, tr, WithRenderer(func(e Event) { events = append(events, e.Kind) }))
	events = nil

	msg, err := room.Send(context.Background(), "  hello  ", "")
	require.NoError(t, err)
	assert.Equal(t, "msg-id1", msg.ID)
	assert.Equal(t, "alice", msg.Sender)
	assert.Equal(t, "hello", msg.Text)
	assert.Equal(t, "02:05 PM", msg.Timestamp)

	entries := room.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, Confirmed, entries[0].State)
	assert.False(t, entries[0].Local)
	assert.Equal(t, []EventKind{EventRendered, EventConfirmed}, events)
}

func TestSendFailureRollsBack(t *testing.T) {
	tr := newFakeTransport("Algo Avengers", models.Message{ID: "m1", Sender: "bob", Text: "hey"})
	tr.appendErr = errors.New("network down")
	var rolledBack []Entry
	room := newTestRoom(t, tr, WithRenderer(func(e Event) {
		if e.Kind == EventRolledBack {
			rolledBack = append(rolledBack, e.Entry)
		}
	}))

	_, err := room.Send(context.Background(), "will fail", "m1")
	require.Error(t, err)

	msgs := room.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].ID)
	require.Len(t, rolledBack, 1)
	assert.Equal(t, RolledBack, rolledBack[0].State)
	assert.Equal(t, "m1", rolledBack[0].Message.ParentID)

	select {
	case got := <-room.Errors():
		assert.EqualError(t, got, "network down")
	default:
		t.Fatal("expected an error on the error channel")
	}
	assert.Len(t, tr.appended, 1, "no retry after failure")
}

func TestSendEmptyAndBeforeLoad(t *testing.T) {
	tr := newFakeTransport("Algo Avengers")
	room := NewRoom(tr, "group-1", "alice")

	_, err := room.Send(context.Background(), "hi", "")
	assert.ErrorIs(t, err, ErrNotLoaded)

	require.NoError(t, room.Load(context.Background()))
	_, err = room.Send(context.Background(), "   ", "")
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestAssistantReplyAppendedAfterUserMessage(t *testing.T) {
	tr := newFakeTransport("Algo Avengers")
	tr.askGate = make(chan struct{})
	room := newTestRoom(t, tr)

	_, err := room.Send(context.Background(), "@AI what is a heap?", "")
	require.NoError(t, err)
	assert.True(t, room.AssistantPending())

	close(tr.askGate)
	room.Wait()

	assert.False(t, room.AssistantPending())
	msgs := room.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "alice", msgs[0].Sender)
	assert.Equal(t, models.SenderAssistant, msgs[1].Sender)
	assert.Equal(t, "msg-ai-id2", msgs[1].ID)
	assert.Equal(t, []string{"@AI what is a heap?"}, tr.asked)
}

func TestAssistantFailureKeepsUserMessage(t *testing.T) {
	tr := newFakeTransport("Algo Avengers")
	tr.askErr = errors.New("gateway timeout")
	room := newTestRoom(t, tr)

	_, err := room.Send(context.Background(), "@ai help", "")
	require.NoError(t, err)
	room.Wait()

	assert.False(t, room.AssistantPending())
	entries := room.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, Confirmed, entries[0].State)
	assert.EqualError(t, <-room.Errors(), "gateway timeout")
}

func TestAssistantAskedWhenSendRollsBack(t *testing.T) {
	tr := newFakeTransport("Algo Avengers")
	tr.appendErr = errors.New("boom")
	var kinds []EventKind
	var mu sync.Mutex
	room := newTestRoom(t, tr, WithRenderer(func(e Event) {
		mu.Lock()
		kinds = append(kinds, e.Kind)
		mu.Unlock()
	}))

	_, err := room.Send(context.Background(), "@ai explain heaps", "")
	require.EqualError(t, err, "boom")
	room.Wait()

	assert.Equal(t, []string{"@ai explain heaps"}, tr.asked)
	assert.False(t, room.AssistantPending())
	msgs := room.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, models.SenderAssistant, msgs[0].Sender)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []EventKind{EventRendered, EventRolledBack, EventAssistantPending, EventAssistantDone}, kinds[len(kinds)-4:])
}

func TestAssistantNotCalledForPlainOrBarePrefix(t *testing.T) {
	tr := newFakeTransport("Algo Avengers")
	room := newTestRoom(t, tr)

	_, err := room.Send(context.Background(), "hello @ai", "")
	require.NoError(t, err)
	_, err = room.Send(context.Background(), "@ai", "")
	require.NoError(t, err)
	room.Wait()

	assert.Empty(t, tr.asked)
}

func TestToggleReactionAdoptsServerCopy(t *testing.T) {
	tr := newFakeTransport("Algo Avengers", models.Message{ID: "m1", Sender: "bob", Text: "hey"})
	room := newTestRoom(t, tr)

	msg, err := room.ToggleReaction(context.Background(), "m1", "👍")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, msg.Reactions["👍"])
	assert.Equal(t, []string{"alice"}, room.Messages()[0].Reactions["👍"])

	msg, err = room.ToggleReaction(context.Background(), "m1", "👍")
	require.NoError(t, err)
	assert.Empty(t, msg.Reactions)
}

func TestToggleReactionFailureRestores(t *testing.T) {
	tr := newFakeTransport("Algo Avengers", models.Message{ID: "m1", Sender: "bob", Text: "hey", Reactions: models.Reactions{"❤️": {"bob"}}})
	tr.toggleErr = errors.New("forbidden")
	room := newTestRoom(t, tr)

	_, err := room.ToggleReaction(context.Background(), "m1", "❤️")
	require.Error(t, err)
	assert.Equal(t, models.Reactions{"❤️": {"bob"}}, room.Messages()[0].Reactions)

	_, err = room.ToggleReaction(context.Background(), "missing", "❤️")
	assert.ErrorIs(t, err, ErrUnknownMessage)
}

func TestRefreshPicksUpOtherSenders(t *testing.T) {
	tr := newFakeTransport("Algo Avengers")
	room := newTestRoom(t, tr)

	tr.mu.Lock()
	tr.log = append(tr.log, models.Message{ID: "m9", Sender: "bob", Text: "anyone here?"})
	tr.mu.Unlock()

	require.NoError(t, room.Refresh(context.Background()))
	msgs := room.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "m9", msgs[0].ID)
}
