package ai

import (
	"context"
	"fmt"
	"strings"

	"studygroup-service/internal/models"
)

// FallbackReply is posted in place of a model answer when the call fails.
const FallbackReply = "Sorry, I encountered an error and couldn't process your request right now."

const assistantInstruction = `You are a helpful and friendly AI study assistant integrated into a group chat. Your name is 'StudyBot'. Analyze the provided chat history for context and answer the user's question directly. Keep your answers concise, informative, and encouraging. Address the user's query about their study topics.`

const assistantTemperature = 0.7

// Assistant answers questions asked inside a group chat.
type Assistant struct {
	gen Generator
}

func NewAssistant(gen Generator) *Assistant {
	return &Assistant{gen: gen}
}

// Reply asks the model to answer prompt given the group's history.
func (a *Assistant) Reply(ctx context.Context, history []models.Message, prompt string) (string, error) {
	text, err := a.gen.Generate(ctx, GenerateRequest{
		SystemInstruction: assistantInstruction,
		Prompt:            assistantPrompt(history, prompt),
		Temperature:       assistantTemperature,
	})
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func assistantPrompt(history []models.Message, prompt string) string {
	lines := make([]string, 0, len(history))
	for _, m := range history {
		if m.Sender == models.SenderSystem {
			continue
		}
		lines = append(lines, m.Sender+": "+m.Text)
	}
	return fmt.Sprintf("Here is the recent chat history for context:\n---\n%s\n---\n\nNow, a user has asked for your help.\nUser's message: %q\n\nPlease provide a helpful response.\n",
		strings.Join(lines, "\n"), prompt)
}
