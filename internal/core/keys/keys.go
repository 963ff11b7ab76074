// Package keys builds the cache key strings shared by every producer and
// consumer of the comment pipeline. Each domain owns a distinct leading
// namespace joined with ":" so no two domains can collide for any valid id.
package keys

import (
	"fmt"
	"strconv"
)

// Cache key namespaces. One per domain, never reused.
const (
	nsPostStream  = "postStream"
	nsComments    = "comments"
	nsComment     = "comment"
	nsCommentsMap = "commentsMap"
	nsPostReplies = "postReplies"
	nsReplyIDs    = "replyIds"
	nsJobResult   = "apiResponse"
	nsPermissions = "topicPermissions"
	nsFanout      = "streamFanout"
)

// PostStreamCurrent addresses the pointer to the live stream version for a
// topic. Readers always resolve through this key; writers repoint it after
// the versioned stream body is fully written, so a reader never observes a
// partially written stream.
func PostStreamCurrent(topicID int64) string {
	return nsPostStream + ":" + strconv.FormatInt(topicID, 10) + ":current"
}

// PostStreamVersion addresses one immutable stream snapshot for a topic
func PostStreamVersion(topicID, version int64) string {
	return fmt.Sprintf("%s:%d:v%d", nsPostStream, topicID, version)
}

// CommentsPage addresses one cached page of normalized posts
func CommentsPage(topicID int64, page int) string {
	return fmt.Sprintf("%s:%d:%d", nsComments, topicID, page)
}

// Comment addresses a single cached post, updated by like/edit webhook events
func Comment(topicID, postID int64) string {
	return fmt.Sprintf("%s:%d:%d", nsComment, topicID, postID)
}

// CommentsMap addresses the per-topic summary metadata
func CommentsMap(topicID int64) string {
	return nsCommentsMap + ":" + strconv.FormatInt(topicID, 10)
}

// PostReplies addresses the hydrated reply list for one post
func PostReplies(postID int64) string {
	return nsPostReplies + ":" + strconv.FormatInt(postID, 10)
}

// ReplyIDs addresses the reply id set for (topic, post number)
func ReplyIDs(topicID int64, postNumber int) string {
	return fmt.Sprintf("%s:%d:%d", nsReplyIDs, topicID, postNumber)
}

// JobResult addresses a one-shot async job result, deleted after first read
func JobResult(jobID string) string {
	return nsJobResult + ":" + jobID
}

// TopicPermissions addresses cached permission flags for (topic, username)
func TopicPermissions(topicID int64, username string) string {
	return fmt.Sprintf("%s:%d:%s", nsPermissions, topicID, username)
}

// StreamFanout addresses the idempotency marker for the page fan-out of one
// stream refresh. SetNX on this key decides whether a completion hook may
// enqueue page jobs for (topic, version).
func StreamFanout(topicID, version int64) string {
	return fmt.Sprintf("%s:%d:v%d", nsFanout, topicID, version)
}
