package store

import "time"

type User struct {
	ID          string
	Subject     string
	Email       string
	DisplayName string
	CreatedAt   time.Time
}

type Project struct {
	ID          string
	Name        string
	Slug        string
	Description string
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Member struct {
	ProjectID string
	UserID    string
	Role      string
	CreatedAt time.Time
	// Joined fields for API responses
	UserEmail string
	UserName  string
}

type Document struct {
	ID          string
	ProjectID   string
	ParentID    *string
	Title       string
	Content     string
	IsFolder    bool
	IsPublished bool
	SortOrder   int
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type DocumentVersion struct {
	ID            int64
	DocumentID    string
	VersionNumber int
	Content       string
	CreatedBy     string
	CreatedAt     time.Time
}

// PublishedDocument is one entry of a Publish record's metadata payload.
type PublishedDocument struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Slug  string `json:"slug"`
}

type Publish struct {
	ID            string
	ProjectID     string
	Version       string
	StoragePath   string
	PreviewURL    string
	PublishedBy   string
	DocumentCount int
	Documents     []PublishedDocument
	CreatedAt     time.Time
}
