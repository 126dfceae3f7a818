package models

import "time"

// Group is a study group with its member set and an owned message log.
type Group struct {
	ID             string    `json:"id"`
	GroupName      string    `json:"groupName"`
	Admin          string    `json:"admin"`
	Members        []string  `json:"members"`
	FocusCourses   []string  `json:"focusCourses"`
	SuggestedTimes []string  `json:"suggestedTimes"`
	Reason         string    `json:"reason"`
	Version        int64     `json:"version"`
	CreatedAt      time.Time `json:"createdAt"`

	// Messages is only populated when a caller replaces the whole log.
	Messages []Message `json:"messages,omitempty"`
}

// HasMember reports whether username belongs to the group.
func (g Group) HasMember(username string) bool {
	for _, m := range g.Members {
		if m == username {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can mutate slices freely.
func (g Group) Clone() Group {
	out := g
	out.Members = append([]string(nil), g.Members...)
	out.FocusCourses = append([]string(nil), g.FocusCourses...)
	out.SuggestedTimes = append([]string(nil), g.SuggestedTimes...)
	if g.Messages != nil {
		out.Messages = make([]Message, len(g.Messages))
		for i, m := range g.Messages {
			out.Messages[i] = m.Clone()
		}
	}
	return out
}
