package discourse

import (
	"time"

	perr "backtalk/internal/platform/errors"
)

// Normalized shapes. These are the units the pipeline caches and serves;
// upstream field names stop at this boundary.

// Post is one normalized comment
type Post struct {
	ID                int64      `json:"id"`
	Username          string     `json:"username"`
	AvatarURL         string     `json:"avatarUrl"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
	BodyHTML          string     `json:"bodyHtml"`
	PostNumber        int        `json:"postNumber"`
	ReplyCount        int        `json:"replyCount"`
	ReplyToPostNumber *int       `json:"replyToPostNumber,omitempty"`
	TopicID           int64      `json:"topicId"`
	Reactions         []Reaction `json:"reactions,omitempty"`
}

// Reaction is one reaction tally on a post
type Reaction struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// UserBrief is a light user reference on topic metadata
type UserBrief struct {
	Username  string `json:"username"`
	AvatarURL string `json:"avatarUrl"`
}

// Participant is a topic participant with their post tally
type Participant struct {
	Username  string `json:"username"`
	AvatarURL string `json:"avatarUrl"`
	PostCount int    `json:"postCount"`
}

// TopicMap is the per-topic summary rendered before any page of comments
type TopicMap struct {
	TopicID      int64         `json:"topicId"`
	Title        string        `json:"title"`
	Slug         string        `json:"slug"`
	PostsCount   int           `json:"postsCount"`
	CategoryID   int64         `json:"categoryId"`
	CategoryName string        `json:"categoryName,omitempty"`
	CreatedBy    UserBrief     `json:"createdBy"`
	LastPoster   UserBrief     `json:"lastPoster"`
	Participants []Participant `json:"participants"`
}

// Permissions are the cached per-user permission flags for a topic
type Permissions struct {
	Username      string `json:"username"`
	CanCreatePost bool   `json:"canCreatePost"`
}

// Topic bundles everything one /t/-/{id}.json fetch yields
type Topic struct {
	Map         TopicMap
	Stream      []int64
	FirstPage   []Post
	Permissions Permissions
}

func (c *Client) transformPost(p rawPost) (Post, error) {
	created, err := parseWhen(p.CreatedAt)
	if err != nil {
		return Post{}, perr.Validationf("post %d: bad created_at %q", p.ID, p.CreatedAt)
	}
	updated := created
	if p.UpdatedAt != "" {
		if updated, err = parseWhen(p.UpdatedAt); err != nil {
			return Post{}, perr.Validationf("post %d: bad updated_at %q", p.ID, p.UpdatedAt)
		}
	}
	out := Post{
		ID:                p.ID,
		Username:          p.Username,
		AvatarURL:         AvatarURL(p.AvatarTemplate, c.opts.BaseURL),
		CreatedAt:         created,
		UpdatedAt:         updated,
		BodyHTML:          p.Cooked,
		PostNumber:        p.PostNumber,
		ReplyCount:        p.ReplyCount,
		ReplyToPostNumber: p.ReplyToPostNumber,
		TopicID:           p.TopicID,
	}
	for _, r := range p.Reactions {
		out.Reactions = append(out.Reactions, Reaction{ID: r.ID, Type: r.Type, Count: r.Count})
	}
	return out, nil
}

func (c *Client) transformPosts(raws []rawPost) ([]Post, error) {
	out := make([]Post, 0, len(raws))
	for _, rp := range raws {
		p, err := c.transformPost(rp)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (c *Client) transformTopic(t rawTopic, username string) (*Topic, error) {
	posts, err := c.transformPosts(t.PostStream.Posts)
	if err != nil {
		return nil, err
	}
	m := TopicMap{
		TopicID:    t.ID,
		Title:      t.Title,
		Slug:       t.Slug,
		PostsCount: t.PostsCount,
		CategoryID: t.CategoryID,
		CreatedBy:  c.userBrief(t.Details.CreatedBy),
		LastPoster: c.userBrief(t.Details.LastPoster),
	}
	for _, p := range t.Details.Participants {
		m.Participants = append(m.Participants, Participant{
			Username:  p.Username,
			AvatarURL: AvatarURL(p.AvatarTemplate, c.opts.BaseURL),
			PostCount: p.PostCount,
		})
	}
	return &Topic{
		Map:       m,
		Stream:    t.PostStream.Stream,
		FirstPage: posts,
		Permissions: Permissions{
			Username:      username,
			CanCreatePost: t.Details.CanCreatePost,
		},
	}, nil
}

func (c *Client) userBrief(u rawUser) UserBrief {
	return UserBrief{
		Username:  u.Username,
		AvatarURL: AvatarURL(u.AvatarTemplate, c.opts.BaseURL),
	}
}

// parseWhen accepts the RFC3339 timestamps the upstream emits, with or
// without sub-second precision
func parseWhen(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
