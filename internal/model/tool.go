package model

import "time"

// Tool status values. Tools are retired, never deleted, once votes reference them.
const (
	ToolActive  = "active"
	ToolRetired = "retired"
	ToolPending = "pending"
)

// Tool is an AI content generator registered in the content registry.
type Tool struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Slug   string `json:"slug"`
	Status string `json:"status"`
}

// IsActive reports whether the tool may enter new matchups.
func (t *Tool) IsActive() bool {
	return t.Status == ToolActive
}

// Post is a generated content item attributed to exactly one tool.
type Post struct {
	ID        int64     `json:"id"`
	ToolID    int64     `json:"toolId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"createdAt"`
}

// ToolRef is the public identity of a tool once it has been revealed.
type ToolRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Ref returns the public reference for t.
func (t *Tool) Ref() ToolRef {
	return ToolRef{ID: t.ID, Name: t.Name, Slug: t.Slug}
}
