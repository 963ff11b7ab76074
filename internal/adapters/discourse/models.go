package discourse

// Raw wire shapes for the upstream forum API. Validation tags are the schema
// contract: a response that fails them is a contract change, not an outage.

type rawPost struct {
	ID                int64         `json:"id" validate:"required"`
	Username          string        `json:"username" validate:"required"`
	AvatarTemplate    string        `json:"avatar_template"`
	CreatedAt         string        `json:"created_at" validate:"required"`
	UpdatedAt         string        `json:"updated_at"`
	Cooked            string        `json:"cooked"`
	PostNumber        int           `json:"post_number" validate:"required,min=1"`
	ReplyCount        int           `json:"reply_count"`
	ReplyToPostNumber *int          `json:"reply_to_post_number"`
	TopicID           int64         `json:"topic_id" validate:"required"`
	Reactions         []rawReaction `json:"reactions"`
}

type rawReaction struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Count int    `json:"count"`
}

type rawUser struct {
	ID             int64  `json:"id"`
	Username       string `json:"username" validate:"required"`
	AvatarTemplate string `json:"avatar_template"`
}

type rawParticipant struct {
	ID             int64  `json:"id"`
	Username       string `json:"username" validate:"required"`
	AvatarTemplate string `json:"avatar_template"`
	PostCount      int    `json:"post_count"`
}

type rawTopicDetails struct {
	CreatedBy     rawUser          `json:"created_by"`
	LastPoster    rawUser          `json:"last_poster"`
	Participants  []rawParticipant `json:"participants" validate:"dive"`
	CanCreatePost bool             `json:"can_create_post"`
}

// rawTopic is the /t/-/{id}.json payload: topic metadata plus the full post
// stream and the first page of hydrated posts
type rawTopic struct {
	ID         int64           `json:"id" validate:"required"`
	Title      string          `json:"title" validate:"required"`
	Slug       string          `json:"slug"`
	PostsCount int             `json:"posts_count"`
	CategoryID int64           `json:"category_id"`
	PostStream rawPostStream   `json:"post_stream" validate:"required"`
	Details    rawTopicDetails `json:"details"`
}

type rawPostStream struct {
	Posts  []rawPost `json:"posts" validate:"dive"`
	Stream []int64   `json:"stream"`
}

// rawPosts is the /t/{id}/posts.json payload for explicit post-id fetches
type rawPosts struct {
	PostStream rawPostStream `json:"post_stream" validate:"required"`
}

type rawCategoryList struct {
	CategoryList struct {
		Categories []Category `json:"categories" validate:"dive"`
	} `json:"category_list" validate:"required"`
}

// Category is upstream category data, cached with a TTL rather than through
// the pipeline's explicit-invalidation store
type Category struct {
	ID    int64  `json:"id" validate:"required"`
	Name  string `json:"name" validate:"required"`
	Slug  string `json:"slug"`
	Color string `json:"color"`
}
