package discourse

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Topic fetches a topic's metadata, full post-id stream, and first page of
// posts in one round trip. username is the acting identity; empty means the
// system account.
func (c *Client) Topic(ctx context.Context, topicID int64, username string) (*Topic, error) {
	raw, err := getJSON[rawTopic](ctx, c, fmt.Sprintf("/t/-/%d.json", topicID), username)
	if err != nil {
		return nil, err
	}
	return c.transformTopic(raw, actingUser(username, c.opts.SystemUsername))
}

// PostsByIDs fetches specific posts of a topic by explicit post-id list
func (c *Client) PostsByIDs(ctx context.Context, topicID int64, postIDs []int64, username string) ([]Post, error) {
	q := url.Values{}
	for _, id := range postIDs {
		q.Add("post_ids[]", strconv.FormatInt(id, 10))
	}
	path := fmt.Sprintf("/t/%d/posts.json?%s", topicID, q.Encode())
	raw, err := getJSON[rawPosts](ctx, c, path, username)
	if err != nil {
		return nil, err
	}
	return c.transformPosts(raw.PostStream.Posts)
}

// Replies fetches the replies to one post
func (c *Client) Replies(ctx context.Context, postID int64, username string) ([]Post, error) {
	raw, err := getJSON[[]rawPost](ctx, c, fmt.Sprintf("/posts/%d/replies.json", postID), username)
	if err != nil {
		return nil, err
	}
	return c.transformPosts(raw)
}

// Categories returns upstream category data through the TTL cache, so the
// hot path for category names costs one upstream call per TTL window
func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	return c.cats.GetOrFetch(ctx, "categories", func(ctx context.Context) ([]Category, error) {
		raw, err := getJSON[rawCategoryList](ctx, c, "/categories.json", "")
		if err != nil {
			return nil, err
		}
		return raw.CategoryList.Categories, nil
	})
}

// CategoryName resolves a category id to its name, empty when unknown
func (c *Client) CategoryName(ctx context.Context, id int64) string {
	cats, err := c.Categories(ctx)
	if err != nil {
		c.log.Warn().Err(err).Int64("category_id", id).Msg("category lookup failed")
		return ""
	}
	for _, cat := range cats {
		if cat.ID == id {
			return cat.Name
		}
	}
	return ""
}

func actingUser(username, system string) string {
	if strings.TrimSpace(username) == "" {
		return system
	}
	return username
}
