package domain_test

import (
	"testing"

	"backtalk/internal/services/courier/domain"
)

func TestTaskRoundTripPreservesVariant(t *testing.T) {
	tasks := []domain.Task{
		domain.CachePostStream{TopicID: 42, Username: "sam"},
		domain.CacheComments{TopicID: 42, Page: 3},
		domain.CacheCommentsMap{TopicID: 42},
		domain.CachePostReplies{TopicID: 42, PostID: 900, PostNumber: 5},
	}
	for _, in := range tasks {
		b, err := domain.EncodeTask(in)
		if err != nil {
			t.Fatalf("encode %T: %v", in, err)
		}
		out, err := domain.DecodeTask(in.Kind(), b)
		if err != nil {
			t.Fatalf("decode %T: %v", in, err)
		}
		if out != in {
			t.Fatalf("round trip changed the task: in=%#v out=%#v", in, out)
		}
	}
}

func TestUnknownKindDecodesToNil(t *testing.T) {
	task, err := domain.DecodeTask("sendCarrierPigeon", []byte(`{}`))
	if err != nil {
		t.Fatalf("unknown kind must not error: %v", err)
	}
	if task != nil {
		t.Fatalf("unknown kind must decode to nil, got %#v", task)
	}
}

func TestKindStringsAreStable(t *testing.T) {
	// queue rows written by older binaries depend on these exact values
	cases := map[domain.JobKind]string{
		domain.KindCachePostStream:  "cacheTopicPostStream",
		domain.KindCacheComments:    "cacheTopicComments",
		domain.KindCacheCommentsMap: "cacheCommentsMap",
		domain.KindCachePostReplies: "cachePostReplies",
	}
	for kind, want := range cases {
		if string(kind) != want {
			t.Fatalf("kind %q drifted from %q", kind, want)
		}
	}
}
