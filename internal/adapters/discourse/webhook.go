package discourse

import (
	"encoding/json"

	perr "backtalk/internal/platform/errors"
	"backtalk/internal/platform/net/http/bind"
)

// webhookPayload is the body of post_* webhook events
type webhookPayload struct {
	Post rawPost `json:"post"`
}

// ParseWebhookPost decodes and normalizes the post carried by a post_*
// webhook event, using the same schema checks and avatar resolution as the
// fetch path
func (c *Client) ParseWebhookPost(body []byte) (Post, error) {
	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return Post{}, perr.JSONErrf("invalid webhook payload: %v", err)
	}
	if err := bind.Check(p.Post); err != nil {
		return Post{}, perr.Wrap(err, perr.ErrorCodeValidation, "webhook post failed schema check")
	}
	return c.transformPost(p.Post)
}
