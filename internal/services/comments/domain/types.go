// Package domain holds the read-side shapes of the comment pipeline
package domain

import (
	"backtalk/internal/adapters/discourse"
)

// Page is one served page of comments plus navigation metadata. Navigation
// is computed at read time against the current stream so a stale cached page
// still paginates correctly after the stream grows.
type Page struct {
	TopicID    int64            `json:"topicId"`
	Page       int              `json:"page"`
	TotalPages int              `json:"totalPages"`
	NextPage   *int             `json:"nextPage"`
	PrevPage   *int             `json:"prevPage"`
	Posts      []discourse.Post `json:"posts"`
}

// Replies is the hydrated reply list for one post
type Replies struct {
	PostID int64            `json:"postId"`
	Posts  []discourse.Post `json:"posts"`
}

// RefreshInput is the body of a forced refresh request
type RefreshInput struct {
	Username string `json:"username" validate:"omitempty,max=120"`
}

// RefreshAccepted acknowledges a queued refresh
type RefreshAccepted struct {
	JobID string `json:"jobId"`
}
