package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"studygroup-service/internal/apperr"
	"studygroup-service/internal/middleware"
	"studygroup-service/internal/mocks"
	"studygroup-service/internal/models"
	"studygroup-service/internal/services"
	"studygroup-service/internal/telemetry"
)

type fixture struct {
	accounts    *mocks.AccountServiceMock
	groups      *mocks.GroupServiceMock
	messages    *mocks.MessageServiceMock
	assistant   *mocks.AssistantServiceMock
	suggestions *mocks.SuggestionServiceMock
	publisher   *mocks.PublisherMock
	router      *gin.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &fixture{
		accounts:    new(mocks.AccountServiceMock),
		groups:      new(mocks.GroupServiceMock),
		messages:    new(mocks.MessageServiceMock),
		assistant:   new(mocks.AssistantServiceMock),
		suggestions: new(mocks.SuggestionServiceMock),
		publisher:   new(mocks.PublisherMock),
	}
	f.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	audit := telemetry.NewAuditEmitter(f.publisher, "audit.chat", "studygroup-service", "test")

	fakeAuth := func(c *gin.Context) {
		user := c.GetHeader("X-Test-User")
		if user == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization", "code": apperr.CodeUnauthenticated})
			return
		}
		c.Set(middleware.UsernameKey, user)
		c.Set(middleware.TokenKey, "tok-"+user)
		c.Next()
	}

	f.router = gin.New()
	Routes{
		Auth:        NewAuthHandler(f.accounts, audit),
		Groups:      NewGroupHandler(f.groups, audit),
		Messages:    NewMessageHandler(f.messages, f.assistant, audit),
		Suggestions: NewSuggestionHandler(f.suggestions, audit),
		RequireAuth: fakeAuth,
	}.Register(f.router.Group("/api"))
	return f
}

func (f *fixture) do(method, path, user, body string) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error, body.Code
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	f.accounts.On("Register", mock.Anything, "erin", "pw").Return(models.Student{ID: "s-1", Username: "erin"}, nil).Once()
	f.accounts.On("Register", mock.Anything, "erin", "again").Return(nil, apperr.AlreadyExists("Username already exists.")).Once()

	rec := f.do(http.MethodPost, "/api/register", "", `{"username":"erin","password":"pw"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"message":"User registered successfully","userId":"s-1"}`, rec.Body.String())

	rec = f.do(http.MethodPost, "/api/register", "", `{"username":"erin","password":"again"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	msg, code := decodeError(t, rec)
	assert.Equal(t, "Username already exists.", msg)
	assert.Equal(t, string(apperr.CodeAlreadyExists), code)

	rec = f.do(http.MethodPost, "/api/register", "", `{"username":5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	f.accounts.AssertExpectations(t)
}

func TestLoginAndLogout(t *testing.T) {
	f := newFixture(t)
	f.accounts.On("Login", mock.Anything, "erin", "pw").Return(models.Student{Username: "erin"}, "token-1", nil).Once()
	f.accounts.On("Login", mock.Anything, "erin", "bad").Return(nil, "", apperr.Unauthenticated("Invalid username or password.")).Once()
	f.accounts.On("Logout", mock.Anything, "tok-erin").Return(nil).Once()

	rec := f.do(http.MethodPost, "/api/login", "", `{"username":"erin","password":"pw"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Student models.Student `json:"student"`
		Token   string         `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "erin", body.Student.Username)
	assert.Equal(t, "token-1", body.Token)

	rec = f.do(http.MethodPost, "/api/login", "", `{"username":"erin","password":"bad"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodPost, "/api/logout", "erin", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(http.MethodPost, "/api/logout", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	f.accounts.AssertExpectations(t)
}

func TestUpdateStudentPassesCaller(t *testing.T) {
	f := newFixture(t)
	name := "Erin"
	f.accounts.On("UpdateProfile", mock.Anything, "erin", "erin", services.ProfileUpdate{Name: &name}).
		Return(models.Student{Username: "erin", Name: "Erin"}, nil).Once()
	f.accounts.On("UpdateProfile", mock.Anything, "frank", "erin", mock.Anything).
		Return(nil, apperr.Forbidden("You can only edit your own profile.")).Once()

	rec := f.do(http.MethodPut, "/api/students/erin", "erin", `{"name":"Erin"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodPut, "/api/students/erin", "frank", `{"name":"Erin"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	f.accounts.AssertExpectations(t)
}

func TestCreateGroupUsesCallerAsAdmin(t *testing.T) {
	f := newFixture(t)
	in := services.CreateGroupInput{GroupName: "Graph Gang", Members: []string{"bob"}}
	f.groups.On("Create", mock.Anything, "alice", in).
		Return(models.Group{ID: "group-1", GroupName: "Graph Gang", Admin: "alice", Members: []string{"alice", "bob"}, Version: 1}, nil).Once()

	rec := f.do(http.MethodPost, "/api/groups", "alice", `{"groupName":"Graph Gang","members":["bob"]}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var group models.Group
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &group))
	assert.Equal(t, "alice", group.Admin)
	f.groups.AssertExpectations(t)
	f.publisher.AssertCalled(t, "Publish", mock.Anything, "audit.chat.group.create", mock.MatchedBy(func(e telemetry.AuditEnvelope) bool {
		return e.Username == "alice" && e.Payload.Action == "group.create"
	}))
}

func TestGroupErrorStatuses(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   apperr.Code
	}{
		{"not found", apperr.NotFound("Group not found."), http.StatusNotFound, apperr.CodeNotFound},
		{"stale version", apperr.AlreadyExists("The group was changed by someone else."), http.StatusConflict, apperr.CodeAlreadyExists},
		{"not admin", apperr.Forbidden("Only the admin can rename the group."), http.StatusForbidden, apperr.CodePermissionDenied},
		{"invalid", apperr.InvalidArg("A group needs at least one member."), http.StatusBadRequest, apperr.CodeInvalidArgument},
		{"store failure", errors.New("connection reset"), http.StatusInternalServerError, apperr.CodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.groups.On("Update", mock.Anything, "alice", "group-1", mock.Anything).Return(nil, tc.err).Once()

			rec := f.do(http.MethodPut, "/api/groups/group-1", "alice", `{"groupName":"x","admin":"alice","members":["alice"],"version":3}`)
			require.Equal(t, tc.status, rec.Code)
			msg, code := decodeError(t, rec)
			assert.Equal(t, string(tc.code), code)
			if tc.status == http.StatusInternalServerError {
				assert.NotContains(t, msg, "connection reset")
			}
		})
	}
}

func TestUpdateGroupForwardsVersion(t *testing.T) {
	f := newFixture(t)
	f.groups.On("Update", mock.Anything, "alice", "group-1", mock.MatchedBy(func(s services.GroupSnapshot) bool {
		return s.Version != nil && *s.Version == 3 && s.Messages == nil
	})).Return(models.Group{ID: "group-1", Version: 4}, nil).Once()

	rec := f.do(http.MethodPut, "/api/groups/group-1", "alice", `{"groupName":"x","admin":"alice","members":["alice"],"version":3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	f.groups.AssertExpectations(t)
}

func TestLeaveGroup(t *testing.T) {
	f := newFixture(t)
	f.groups.On("Leave", mock.Anything, "group-1", "alice").
		Return(models.Group{ID: "group-1", Admin: "bob", Members: []string{"bob"}}, false, nil).Once()
	f.groups.On("Leave", mock.Anything, "group-1", "bob").Return(nil, true, nil).Once()

	rec := f.do(http.MethodPost, "/api/groups/group-1/leave", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var group models.Group
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &group))
	assert.Equal(t, "bob", group.Admin)

	rec = f.do(http.MethodPost, "/api/groups/group-1/leave", "bob", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
	f.groups.AssertExpectations(t)
}

func TestDeleteGroup(t *testing.T) {
	f := newFixture(t)
	f.groups.On("Delete", mock.Anything, "alice", "group-1").Return(nil).Once()
	f.groups.On("Delete", mock.Anything, "bob", "group-1").Return(apperr.Forbidden("Only the group admin can delete the group.")).Once()

	rec := f.do(http.MethodDelete, "/api/groups/group-1", "bob", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodDelete, "/api/groups/group-1", "alice", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	f.groups.AssertExpectations(t)
}

func TestListGroupsIsPublic(t *testing.T) {
	f := newFixture(t)
	f.groups.On("List", mock.Anything).Return([]models.Group{{ID: "group-1"}, {ID: "group-2"}}, nil).Once()

	rec := f.do(http.MethodGet, "/api/groups", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var groups []models.Group
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &groups))
	assert.Len(t, groups, 2)
}

func TestPostMessageCreatedAndReplay(t *testing.T) {
	f := newFixture(t)
	msg := models.Message{ID: "m1", Sender: "alice", Text: "hi", Timestamp: "10:30 AM"}
	f.messages.On("Append", mock.Anything, "alice", "group-1", msg).Return(msg, true, nil).Once()
	f.messages.On("Append", mock.Anything, "alice", "group-1", msg).Return(msg, false, nil).Once()

	body := `{"id":"m1","sender":"alice","text":"hi","timestamp":"10:30 AM"}`
	rec := f.do(http.MethodPost, "/api/groups/group-1/messages", "alice", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(http.MethodPost, "/api/groups/group-1/messages", "alice", body)
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, msg, got)
	f.messages.AssertExpectations(t)
}

func TestPostMessageRequiresAuth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/api/groups/group-1/messages", "", `{"id":"m1","text":"hi"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	f.messages.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestListMessagesUnknownGroup(t *testing.T) {
	f := newFixture(t)
	f.messages.On("List", mock.Anything, "nope").Return(nil, apperr.NotFound("Group not found.")).Once()

	rec := f.do(http.MethodGet, "/api/groups/nope/messages", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestToggleReaction(t *testing.T) {
	f := newFixture(t)
	f.messages.On("ToggleReaction", mock.Anything, "group-1", "m1", "👍", "bob").
		Return(models.Message{ID: "m1", Reactions: models.Reactions{"👍": {"bob"}}}, nil).Once()

	rec := f.do(http.MethodPost, "/api/groups/group-1/messages/m1/reactions", "bob", `{"emoji":"👍"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []string{"bob"}, got.Reactions["👍"])
	f.messages.AssertExpectations(t)
}

func TestAskAssistant(t *testing.T) {
	f := newFixture(t)
	f.assistant.On("Ask", mock.Anything, "alice", "group-1", "@ai what is a heap?", "req-1").
		Return(models.Message{ID: "msg-ai-req-1", Sender: models.SenderAssistant, Text: "A tree."}, nil).Once()

	rec := f.do(http.MethodPost, "/api/groups/group-1/assistant", "alice", `{"prompt":"@ai what is a heap?","requestId":"req-1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var got models.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "msg-ai-req-1", got.ID)
	f.assistant.AssertExpectations(t)
}

func TestSuggestUpstreamFailure(t *testing.T) {
	f := newFixture(t)
	f.suggestions.On("Suggest", mock.Anything, "alice").
		Return(nil, apperr.Upstream("Failed to parse the AI's response. The data might be malformed.", errors.New("bad json"))).Once()

	rec := f.do(http.MethodPost, "/api/suggestions", "alice", "")
	require.Equal(t, http.StatusBadGateway, rec.Code)
	msg, code := decodeError(t, rec)
	assert.Equal(t, "Failed to parse the AI's response. The data might be malformed.", msg)
	assert.Equal(t, string(apperr.CodeUpstream), code)
}

func TestDebugRoutesDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterDebugRoutes(r, nil, false)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/audit-test", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDebugAuditRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	publisher := new(mocks.PublisherMock)
	publisher.On("Publish", mock.Anything, "audit.chat.debug.test", mock.MatchedBy(func(e telemetry.AuditEnvelope) bool {
		return e.RequestID == "req-42" && e.Payload.Text == "audit test"
	})).Return(nil).Once()

	r := gin.New()
	RegisterDebugRoutes(r, telemetry.NewAuditEmitter(publisher, "audit.chat", "studygroup-service", "test"), true)

	req := httptest.NewRequest(http.MethodGet, "/debug/audit-test", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	publisher.AssertExpectations(t)
}
