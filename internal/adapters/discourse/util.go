package discourse

import "strings"

// defaultAvatarSize is the pixel size substituted into avatar templates
const defaultAvatarSize = "48"

// AvatarURL expands an avatar template into an absolute URL.
// Upstream hands back either an absolute URL or a site-relative template
// containing a {size} placeholder; relative templates are resolved against
// baseURL and {size} is fixed at 48. Absolute templates only get the size
// substitution.
func AvatarURL(template, baseURL string) string {
	if template == "" {
		return ""
	}
	out := strings.ReplaceAll(template, "{size}", defaultAvatarSize)
	if strings.HasPrefix(out, "http://") || strings.HasPrefix(out, "https://") {
		return out
	}
	base := strings.TrimSuffix(baseURL, "/")
	if !strings.HasPrefix(out, "/") {
		out = "/" + out
	}
	return base + out
}
