package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"studygroup-service/internal/models"
)

const suggestionInstruction = `You are the Lead Facilitator of a small crew of AI agents dedicated to academic collaboration. Your crew has three members:
1. Academic Analyst: compares the current student's courses, CGPA and availability against other students to find ideal peer matches, preferring shared courses and compatible performance.
2. Community Manager: evaluates existing study groups and finds those whose focus courses match the student's needs.
3. Resource Curator: recommends high quality online learning resources for the student's courses, preferring YouTube videos.

Synthesize the crew's findings into a single JSON object that conforms to the provided schema. The reasoning for every match should reflect the crew's analysis. Respond with raw JSON only, no extra text or markdown.`

const suggestionTemperature = 0.8

// Suggester asks the model for peer, group and resource recommendations.
type Suggester struct {
	gen Generator
}

func NewSuggester(gen Generator) *Suggester {
	return &Suggester{gen: gen}
}

type suggestedGroup struct {
	ID             string   `json:"id"`
	GroupName      string   `json:"groupName"`
	Members        []string `json:"members"`
	FocusCourses   []string `json:"focusCourses"`
	SuggestedTimes []string `json:"suggestedTimes"`
	Reason         string   `json:"reason"`
	Reasoning      string   `json:"reasoning"`
}

type suggestionReply struct {
	MatchedStudents []models.MatchedStudent `json:"matchedStudents"`
	MatchedGroups   []suggestedGroup        `json:"matchedGroups"`
	OnlineResources models.OnlineResources  `json:"onlineResources"`
}

// Suggest builds the matchmaking prompt for me and parses the structured
// reply. Groups the model names are merged with the stored copy when one
// exists so callers always see authoritative membership.
func (s *Suggester) Suggest(ctx context.Context, me models.Student, others []models.Student, groups []models.Group) (models.Suggestions, error) {
	prompt, err := suggestionPrompt(me, others, groups)
	if err != nil {
		return models.Suggestions{}, err
	}

	text, err := s.gen.Generate(ctx, GenerateRequest{
		SystemInstruction: suggestionInstruction,
		Prompt:            prompt,
		Temperature:       suggestionTemperature,
		Schema:            suggestionSchema(),
	})
	if err != nil {
		return models.Suggestions{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Suggestions{}, ErrEmptyResponse
	}

	var reply suggestionReply
	if err := json.Unmarshal([]byte(text), &reply); err != nil {
		return models.Suggestions{}, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}

	byID := make(map[string]models.Group, len(groups))
	for _, g := range groups {
		byID[g.ID] = g
	}
	out := models.Suggestions{
		MatchedStudents: reply.MatchedStudents,
		MatchedGroups:   make([]models.MatchedGroup, 0, len(reply.MatchedGroups)),
		OnlineResources: reply.OnlineResources,
	}
	if out.MatchedStudents == nil {
		out.MatchedStudents = []models.MatchedStudent{}
	}
	if out.OnlineResources.Resources == nil {
		out.OnlineResources.Resources = []models.OnlineResourceItem{}
	}
	for _, sg := range reply.MatchedGroups {
		if stored, ok := byID[sg.ID]; ok {
			out.MatchedGroups = append(out.MatchedGroups, models.MatchedGroup{Group: stored.Clone(), Reasoning: sg.Reasoning})
			continue
		}
		out.MatchedGroups = append(out.MatchedGroups, models.MatchedGroup{
			Group: models.Group{
				ID:             sg.ID,
				GroupName:      sg.GroupName,
				Members:        sg.Members,
				FocusCourses:   sg.FocusCourses,
				SuggestedTimes: sg.SuggestedTimes,
				Reason:         sg.Reason,
			},
			Reasoning: sg.Reasoning,
		})
	}
	return out, nil
}

func suggestionPrompt(me models.Student, others []models.Student, groups []models.Group) (string, error) {
	profile, err := json.MarshalIndent(map[string]any{
		"name":         me.Name,
		"courses":      me.Courses,
		"cgpa":         me.CGPA,
		"availability": me.Availability,
	}, "", "  ")
	if err != nil {
		return "", err
	}

	peers := make([]map[string]any, 0, len(others))
	for _, o := range others {
		peers = append(peers, map[string]any{
			"name":     o.Name,
			"username": o.Username,
			"courses":  o.Courses,
			"cgpa":     o.CGPA,
		})
	}
	peerJSON, err := json.MarshalIndent(peers, "", "  ")
	if err != nil {
		return "", err
	}

	directory := make([]map[string]any, 0, len(groups))
	for _, g := range groups {
		directory = append(directory, map[string]any{
			"id":           g.ID,
			"groupName":    g.GroupName,
			"members":      g.Members,
			"focusCourses": g.FocusCourses,
		})
	}
	groupJSON, err := json.MarshalIndent(directory, "", "  ")
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("Lead Facilitator, here is the data for your crew's analysis:\n\n")
	b.WriteString("Current User Profile:\n")
	b.Write(profile)
	b.WriteString("\n\nList of Other Students Available for the Academic Analyst:\n")
	b.Write(peerJSON)
	b.WriteString("\n\nList of Existing Groups for the Community Manager:\n")
	b.Write(groupJSON)
	fmt.Fprintf(&b, "\n\nPlease orchestrate your crew and generate the final JSON output with comprehensive suggestions for the user, %s.\n", me.Name)
	return b.String(), nil
}

func stringSchema(description string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeString, Description: description}
}

func stringList() *genai.Schema {
	return &genai.Schema{Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}}
}

func suggestionSchema() *genai.Schema {
	student := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"name":      stringSchema("The name of the matched student."),
			"username":  stringSchema("The unique username of the matched student."),
			"reasoning": stringSchema("Why this student is a good match: shared courses, similar CGPA and compatible availability."),
			"courses":   stringList(),
			"cgpa":      stringSchema("The student's CGPA."),
		},
		Required: []string{"name", "username", "reasoning", "courses", "cgpa"},
	}
	group := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"id":             stringSchema("The unique ID of the existing group."),
			"groupName":      stringSchema(""),
			"members":        stringList(),
			"focusCourses":   stringList(),
			"reasoning":      stringSchema("Why this group is a good fit for the current user."),
			"reason":         stringSchema(""),
			"suggestedTimes": stringList(),
		},
		Required: []string{"id", "groupName", "members", "focusCourses", "reasoning", "reason", "suggestedTimes"},
	}
	resources := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"summary": stringSchema("A brief, encouraging summary (2-3 sentences) introducing the resources."),
			"resources": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"title":          stringSchema(""),
						"description":    stringSchema("A brief one-sentence description."),
						"url":            stringSchema(""),
						"category":       stringSchema("A category like 'YouTube Video', 'Interactive Platform', 'Documentation'."),
						"youtubeVideoId": stringSchema("The 11-character YouTube video ID, or an empty string if not applicable."),
					},
					Required: []string{"title", "description", "url", "category", "youtubeVideoId"},
				},
			},
		},
		Required: []string{"summary", "resources"},
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"matchedStudents": {Type: genai.TypeArray, Items: student},
			"matchedGroups":   {Type: genai.TypeArray, Items: group},
			"onlineResources": resources,
		},
		Required: []string{"matchedStudents", "matchedGroups", "onlineResources"},
	}
}
