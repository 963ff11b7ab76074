package domain

import (
	"context"

	"backtalk/internal/adapters/discourse"
	courier "backtalk/internal/services/courier/domain"
)

// ReaderPort is the cache-or-queue read surface. Every method that can miss
// returns (nil, nil) on a miss after enqueueing the job that will fill it;
// clients treat the nil payload as the pending sentinel and poll.
type ReaderPort interface {
	Page(ctx context.Context, topicID int64, page int, username string) (*Page, error)
	Map(ctx context.Context, topicID int64, username string) (*discourse.TopicMap, error)
	PostReplies(ctx context.Context, topicID, postID int64, postNumber int, username string) (*Replies, error)
	Permissions(ctx context.Context, topicID int64, username string) (*discourse.Permissions, error)

	// Result consumes a one-shot job completion record; reading it deletes it.
	// A record not yet written is a pending miss, not an error
	Result(ctx context.Context, jobID string) (*courier.Result, error)

	Categories(ctx context.Context) ([]discourse.Category, error)

	// Refresh forces a stream refresh regardless of cache state and returns
	// the job id for result polling
	Refresh(ctx context.Context, topicID int64, username string) (string, error)
}
