package models

// Comment is an entry in a post's comments array. UserName and UserAvatar
// are snapshots of the author's profile at comment time.
type Comment struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	UserID     string `json:"userId"`
	UserName   string `json:"userName"`
	UserAvatar string `json:"userAvatar"`
	Timestamp  string `json:"timestamp"` // ISO-8601
}

// Map renders the comment as an embedded store value.
func (c Comment) Map() map[string]any {
	return map[string]any{
		"id":         c.ID,
		"text":       c.Text,
		"userId":     c.UserID,
		"userName":   c.UserName,
		"userAvatar": c.UserAvatar,
		"timestamp":  c.Timestamp,
	}
}

func commentFromMap(data map[string]any) Comment {
	return Comment{
		ID:         docString(data, "id"),
		Text:       docString(data, "text"),
		UserID:     docString(data, "userId"),
		UserName:   docString(data, "userName"),
		UserAvatar: docString(data, "userAvatar"),
		Timestamp:  docString(data, "timestamp"),
	}
}
