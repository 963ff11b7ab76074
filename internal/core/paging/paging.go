// Package paging decides page boundaries over an ordered post-id stream
package paging

import (
	perr "backtalk/internal/platform/errors"
)

// ChunkSize is the fixed number of posts per page
const ChunkSize = 20

// TotalPages returns ceil(streamLen/ChunkSize), defaulting to 1 when the
// stream length is unknown or zero
func TotalPages(streamLen int) int {
	if streamLen <= 0 {
		return 1
	}
	return (streamLen + ChunkSize - 1) / ChunkSize
}

// Slice returns the ids covered by page, indices [page*20, page*20+19]
// clipped to the stream end. An empty result is an error: it means the
// stream is stale or the page index is out of range, and callers must not
// cache an empty page as if it were real.
func Slice(ids []int64, page int) ([]int64, error) {
	if page < 0 {
		return nil, perr.InvalidArgf("negative page index %d", page)
	}
	start := page * ChunkSize
	if start >= len(ids) {
		return nil, perr.NotFoundf("no post ids found for page %d", page)
	}
	end := start + ChunkSize
	if end > len(ids) {
		end = len(ids)
	}
	return ids[start:end], nil
}

// Next returns the following page index, ok=false on the last page
func Next(page, streamLen int) (int, bool) {
	if page+1 < TotalPages(streamLen) {
		return page + 1, true
	}
	return 0, false
}

// Prev returns the preceding page index, ok=false on the first page
func Prev(page int) (int, bool) {
	if page-1 >= 0 {
		return page - 1, true
	}
	return 0, false
}

// ForPostNumber maps a post number to the page that should contain it.
// This assumes stream position tracks post number, which drifts once posts
// are deleted upstream. Known approximation; do not "fix" without a product
// decision on jump-to-post behavior.
func ForPostNumber(postNumber int) int {
	if postNumber < 0 {
		return 0
	}
	return postNumber / ChunkSize
}
