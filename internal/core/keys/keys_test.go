package keys_test

import (
	"strings"
	"testing"

	"backtalk/internal/core/keys"
)

func TestKeyShapes(t *testing.T) {
	cases := []struct {
		got  string
		want string
	}{
		{keys.PostStreamCurrent(42), "postStream:42:current"},
		{keys.PostStreamVersion(42, 7), "postStream:42:v7"},
		{keys.CommentsPage(42, 3), "comments:42:3"},
		{keys.Comment(42, 900), "comment:42:900"},
		{keys.CommentsMap(42), "commentsMap:42"},
		{keys.PostReplies(900), "postReplies:900"},
		{keys.ReplyIDs(42, 11), "replyIds:42:11"},
		{keys.JobResult("abc-123"), "apiResponse:abc-123"},
		{keys.TopicPermissions(42, "eviltrout"), "topicPermissions:42:eviltrout"},
		{keys.StreamFanout(42, 7), "streamFanout:42:v7"},
	}
	for _, c := range cases {
		if c.got != c.want {
			t.Fatalf("key mismatch: got %q want %q", c.got, c.want)
		}
	}
}

// Namespaces must stay disjoint: no key from one builder may be producible
// by another for any valid ids.
func TestNamespacesDisjoint(t *testing.T) {
	ks := []string{
		keys.PostStreamCurrent(1),
		keys.PostStreamVersion(1, 1),
		keys.CommentsPage(1, 1),
		keys.Comment(1, 1),
		keys.CommentsMap(1),
		keys.PostReplies(1),
		keys.ReplyIDs(1, 1),
		keys.JobResult("1"),
		keys.TopicPermissions(1, "1"),
		keys.StreamFanout(1, 1),
	}
	seen := map[string]bool{}
	prefixes := map[string]bool{}
	for _, k := range ks {
		if seen[k] {
			t.Fatalf("duplicate key %q across namespaces", k)
		}
		seen[k] = true
		ns := strings.SplitN(k, ":", 2)[0]
		prefixes[ns] = true
	}
	// current and versioned streams intentionally share one namespace
	if len(prefixes) != len(ks)-1 {
		t.Fatalf("expected %d distinct namespaces, got %d", len(ks)-1, len(prefixes))
	}
}
