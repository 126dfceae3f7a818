package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"studygroup-service/internal/ai"
	"studygroup-service/internal/apperr"
	"studygroup-service/internal/mocks"
	"studygroup-service/internal/models"
	"studygroup-service/internal/services"
)

func newAssistantFixture(t *testing.T) (*services.AssistantService, *services.MessageService, *mocks.ReplierMock, string) {
	t.Helper()
	messages, groupID := newMessageFixture(t)
	replier := new(mocks.ReplierMock)
	return services.NewAssistantService(messages, replier), messages, replier, groupID
}

func TestStripAssistantPrefix(t *testing.T) {
	q, ok := models.StripAssistantPrefix("  @AI  what is a heap? ")
	assert.True(t, ok)
	assert.Equal(t, "what is a heap?", q)

	q, ok = models.StripAssistantPrefix("hello @ai")
	assert.False(t, ok)
	assert.Equal(t, "hello @ai", q)
}

func TestAskPostsReplyAsAI(t *testing.T) {
	ctx := context.Background()
	svc, messages, replier, groupID := newAssistantFixture(t)
	_, _, err := messages.Append(ctx, "alice", groupID, models.Message{ID: "u1", Sender: "alice", Text: "@ai explain heaps"})
	require.NoError(t, err)

	replier.On("Reply", mock.Anything, mock.MatchedBy(func(h []models.Message) bool { return len(h) == 1 }), "explain heaps").
		Return("A heap is a tree.", nil).Once()

	msg, err := svc.Ask(ctx, "alice", groupID, "@ai explain heaps", "req-1")
	require.NoError(t, err)
	assert.Equal(t, services.AssistantMessageID("req-1"), msg.ID)
	assert.Equal(t, models.SenderAssistant, msg.Sender)
	assert.Equal(t, "A heap is a tree.", msg.Text)

	log, err := messages.List(ctx, groupID)
	require.NoError(t, err)
	assert.Len(t, log, 2)
	replier.AssertExpectations(t)
}

func TestAskFailurePostsFallback(t *testing.T) {
	ctx := context.Background()
	svc, _, replier, groupID := newAssistantFixture(t)
	replier.On("Reply", mock.Anything, mock.Anything, "help").Return("", errors.New("quota")).Once()

	msg, err := svc.Ask(ctx, "bob", groupID, "@ai help", "req-2")
	require.NoError(t, err)
	assert.Equal(t, ai.FallbackReply, msg.Text)
	replier.AssertExpectations(t)
}

func TestAskRetryWithSameRequestIDDoesNotCallModelAgain(t *testing.T) {
	ctx := context.Background()
	svc, messages, replier, groupID := newAssistantFixture(t)
	replier.On("Reply", mock.Anything, mock.Anything, "help").Return("answer", nil).Once()

	first, err := svc.Ask(ctx, "bob", groupID, "@ai help", "req-3")
	require.NoError(t, err)
	second, err := svc.Ask(ctx, "bob", groupID, "@ai help", "req-3")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	log, err := messages.List(ctx, groupID)
	require.NoError(t, err)
	assert.Len(t, log, 1)
	replier.AssertExpectations(t)
}

func TestConcurrentAsksWithSameRequestIDCoalesce(t *testing.T) {
	ctx := context.Background()
	svc, messages, replier, groupID := newAssistantFixture(t)

	release := make(chan struct{})
	replier.On("Reply", mock.Anything, mock.Anything, "help").
		Run(func(mock.Arguments) { <-release }).
		Return("answer", nil).Once()

	var wg sync.WaitGroup
	results := make([]models.Message, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg, err := svc.Ask(ctx, "alice", groupID, "@ai help", "req-4")
			assert.NoError(t, err)
			results[i] = msg
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, services.AssistantMessageID("req-4"), r.ID)
	}
	log, err := messages.List(ctx, groupID)
	require.NoError(t, err)
	assert.Len(t, log, 1)
	replier.AssertExpectations(t)
}

func TestAskValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, replier, groupID := newAssistantFixture(t)

	_, err := svc.Ask(ctx, "alice", groupID, "@ai   ", "req-5")
	assert.True(t, apperr.Is(err, apperr.CodeInvalidArgument))

	_, err = svc.Ask(ctx, "mallory", groupID, "@ai hi", "req-5")
	assert.True(t, apperr.Is(err, apperr.CodePermissionDenied))

	replier.AssertNotCalled(t, "Reply", mock.Anything, mock.Anything, mock.Anything)
}
