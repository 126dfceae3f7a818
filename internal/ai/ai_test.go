package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studygroup-service/internal/models"
)

type generatorFunc func(ctx context.Context, req GenerateRequest) (string, error)

func (f generatorFunc) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	return f(ctx, req)
}

func TestAssistantPromptSkipsSystemMessages(t *testing.T) {
	var captured GenerateRequest
	gen := generatorFunc(func(_ context.Context, req GenerateRequest) (string, error) {
		captured = req
		return "  Try dynamic programming.  ", nil
	})

	history := []models.Message{
		{Sender: models.SenderSystem, Text: "Welcome!"},
		{Sender: "alice", Text: "What is memoization?"},
		{Sender: models.SenderAssistant, Text: "Caching results."},
	}
	reply, err := NewAssistant(gen).Reply(context.Background(), history, "@ai how do I start?")
	require.NoError(t, err)

	assert.Equal(t, "Try dynamic programming.", reply)
	assert.Equal(t, float32(0.7), captured.Temperature)
	assert.Nil(t, captured.Schema)
	assert.Contains(t, captured.Prompt, "alice: What is memoization?\nAI: Caching results.")
	assert.NotContains(t, captured.Prompt, "Welcome!")
	assert.Contains(t, captured.SystemInstruction, "StudyBot")
}

func TestAssistantEmptyReplyIsAnError(t *testing.T) {
	gen := generatorFunc(func(context.Context, GenerateRequest) (string, error) { return "   ", nil })
	_, err := NewAssistant(gen).Reply(context.Background(), nil, "hi")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestSuggesterMergesStoredGroups(t *testing.T) {
	var captured GenerateRequest
	gen := generatorFunc(func(_ context.Context, req GenerateRequest) (string, error) {
		captured = req
		return `{
			"matchedStudents": [{"name":"Bob","username":"bob","reasoning":"shares CS101","courses":["CS101"],"cgpa":"3.5"}],
			"matchedGroups": [
				{"id":"g1","groupName":"stale name","members":["x"],"focusCourses":[],"reasoning":"good fit","reason":"","suggestedTimes":[]},
				{"id":"unknown","groupName":"Invented","members":["y"],"focusCourses":["MA1"],"reasoning":"maybe","reason":"r","suggestedTimes":["Mon"]}
			],
			"onlineResources": {"summary":"Enjoy","resources":[{"title":"T","description":"D","url":"https://example.com","category":"Documentation","youtubeVideoId":""}]}
		}`, nil
	})

	stored := models.Group{ID: "g1", GroupName: "Algo Avengers", Admin: "alice", Members: []string{"alice", "charlie"}}
	me := models.Student{Name: "Alice", Username: "alice", Courses: []string{"CS101"}}

	out, err := NewSuggester(gen).Suggest(context.Background(), me, []models.Student{{Name: "Bob", Username: "bob"}}, []models.Group{stored})
	require.NoError(t, err)

	require.Len(t, out.MatchedGroups, 2)
	assert.Equal(t, "Algo Avengers", out.MatchedGroups[0].GroupName)
	assert.Equal(t, []string{"alice", "charlie"}, out.MatchedGroups[0].Members)
	assert.Equal(t, "good fit", out.MatchedGroups[0].Reasoning)
	assert.Equal(t, "Invented", out.MatchedGroups[1].GroupName)
	require.Len(t, out.MatchedStudents, 1)
	assert.Equal(t, "bob", out.MatchedStudents[0].Username)
	assert.Equal(t, "Enjoy", out.OnlineResources.Summary)

	assert.Equal(t, float32(0.8), captured.Temperature)
	require.NotNil(t, captured.Schema)
	assert.Contains(t, captured.Prompt, "Algo Avengers")
	assert.Contains(t, captured.Prompt, "for the user, Alice.")
}

func TestSuggesterErrors(t *testing.T) {
	upstream := errors.New("quota exceeded")
	cases := []struct {
		name  string
		reply string
		err   error
		want  error
	}{
		{name: "empty", reply: " ", want: ErrEmptyResponse},
		{name: "malformed", reply: "not json", want: ErrMalformedReply},
		{name: "upstream", err: upstream, want: upstream},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gen := generatorFunc(func(context.Context, GenerateRequest) (string, error) { return tc.reply, tc.err })
			_, err := NewSuggester(gen).Suggest(context.Background(), models.Student{}, nil, nil)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestUnconfiguredGenerator(t *testing.T) {
	_, err := Unconfigured{}.Generate(context.Background(), GenerateRequest{})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewGeminiClient(context.Background(), "", "model", 0)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
