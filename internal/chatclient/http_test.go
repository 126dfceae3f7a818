package chatclient_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"studygroup-service/internal/ai"
	"studygroup-service/internal/chatclient"
	"studygroup-service/internal/handlers"
	"studygroup-service/internal/middleware"
	"studygroup-service/internal/mocks"
	"studygroup-service/internal/models"
	"studygroup-service/internal/repositories"
	"studygroup-service/internal/services"
	"studygroup-service/internal/session"
)

func startServer(t *testing.T, gen ai.Generator) string {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repositories.NewMemoryStore()
	accounts := services.NewAccountService(store, store, session.NewMemoryStore(time.Hour))
	groups := services.NewGroupService(store)
	messages := services.NewMessageService(store, store)
	assistant := services.NewAssistantService(messages, ai.NewAssistant(gen))
	suggestions := services.NewSuggestionService(store, store, ai.NewSuggester(gen))

	seeded, err := services.NewSeeder(accounts, store, store, store).Seed(context.Background())
	require.NoError(t, err)
	require.True(t, seeded)

	router := gin.New()
	handlers.Routes{
		Auth:        handlers.NewAuthHandler(accounts, nil),
		Groups:      handlers.NewGroupHandler(groups, nil),
		Messages:    handlers.NewMessageHandler(messages, assistant, nil),
		Suggestions: handlers.NewSuggestionHandler(suggestions, nil),
		RequireAuth: middleware.AuthMiddleware(accounts),
	}.Register(router.Group("/api"))

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv.URL + "/api"
}

func TestRoomOverHTTP(t *testing.T) {
	ctx := context.Background()
	gen := new(mocks.GeneratorMock)
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(req ai.GenerateRequest) bool { return req.Schema == nil })).
		Return("A heap keeps the smallest item on top.", nil).Once()
	baseURL := startServer(t, gen)

	tr := chatclient.NewHTTPTransport(baseURL, 5*time.Second)
	_, err := tr.Login(ctx, "alice", "password123")
	require.NoError(t, err)

	room := chatclient.NewRoom(tr, "group-algo-avengers", "alice")
	require.NoError(t, room.Load(ctx))
	require.Len(t, room.Messages(), 2)

	sent, err := room.Send(ctx, "@ai what is a heap?", "m1")
	require.NoError(t, err)
	room.Wait()

	msgs := room.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, sent.ID, msgs[2].ID)
	assert.Equal(t, "m1", msgs[2].ParentID)
	assert.Equal(t, models.SenderAssistant, msgs[3].Sender)
	assert.Equal(t, "A heap keeps the smallest item on top.", msgs[3].Text)

	// A second client sees the same log, and a replay does not duplicate.
	again, err := tr.AppendMessage(ctx, "group-algo-avengers", sent)
	require.NoError(t, err)
	assert.Equal(t, sent, again)
	server, err := tr.ListMessages(ctx, "group-algo-avengers")
	require.NoError(t, err)
	assert.Len(t, server, 4)

	reacted, err := room.ToggleReaction(ctx, "m1", "👍")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, reacted.Reactions["👍"])
	gen.AssertExpectations(t)
}

func TestRoomRollsBackWhenNotMember(t *testing.T) {
	ctx := context.Background()
	baseURL := startServer(t, ai.Unconfigured{})

	tr := chatclient.NewHTTPTransport(baseURL, 5*time.Second)
	_, err := tr.Login(ctx, "bob", "password123")
	require.NoError(t, err)

	room := chatclient.NewRoom(tr, "group-algo-avengers", "bob")
	require.NoError(t, room.Load(ctx))

	_, err = room.Send(ctx, "let me in", "")
	var apiErr *chatclient.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "PERMISSION_DENIED", apiErr.Code)
	assert.Len(t, room.Messages(), 2)

	_, err = tr.JoinGroup(ctx, "group-algo-avengers")
	require.NoError(t, err)
	_, err = room.Send(ctx, "let me in", "")
	require.NoError(t, err)
	assert.Len(t, room.Messages(), 3)
}

func TestHTTPTransportUnauthenticated(t *testing.T) {
	baseURL := startServer(t, ai.Unconfigured{})
	tr := chatclient.NewHTTPTransport(baseURL, 5*time.Second)

	_, err := tr.AppendMessage(context.Background(), "group-algo-avengers", models.Message{ID: "x", Text: "hi"})
	var apiErr *chatclient.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)

	_, err = tr.Login(context.Background(), "alice", "wrong")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}

func TestSuggestionsWithoutModelIsBadGateway(t *testing.T) {
	ctx := context.Background()
	baseURL := startServer(t, ai.Unconfigured{})
	tr := chatclient.NewHTTPTransport(baseURL, 5*time.Second)
	_, err := tr.Login(ctx, "diana", "password123")
	require.NoError(t, err)

	_, err = tr.Suggestions(ctx)
	var apiErr *chatclient.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
}
