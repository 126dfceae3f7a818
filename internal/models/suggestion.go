package models

// MatchedStudent is a peer recommended by the suggestion model.
type MatchedStudent struct {
	Name      string   `json:"name"`
	Username  string   `json:"username"`
	Reasoning string   `json:"reasoning"`
	Courses   []string `json:"courses"`
	CGPA      string   `json:"cgpa"`
}

// MatchedGroup is an existing group with the model's reasoning attached.
type MatchedGroup struct {
	Group
	Reasoning string `json:"reasoning"`
}

type OnlineResourceItem struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	URL            string `json:"url"`
	Category       string `json:"category"`
	YoutubeVideoID string `json:"youtubeVideoId,omitempty"`
}

type OnlineResources struct {
	Summary   string               `json:"summary"`
	Resources []OnlineResourceItem `json:"resources"`
}

// Suggestions is the bundle returned to a student asking for matches.
type Suggestions struct {
	MatchedStudents []MatchedStudent `json:"matchedStudents"`
	MatchedGroups   []MatchedGroup   `json:"matchedGroups"`
	OnlineResources OnlineResources  `json:"onlineResources"`
}
