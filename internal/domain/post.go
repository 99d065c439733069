package domain

// Post is a normalized fediverse status as stored in the graph. Content is
// plain text with all HTML markup removed.
type Post struct {
	// ID is the source-assigned status id, unique per origin instance.
	ID string `json:"id"`

	// Author is the account's username (handle without domain).
	Author string `json:"author"`

	// Avatar is the author's avatar URL as seen on this post.
	Avatar string `json:"avatar"`

	// Content is the status body with HTML stripped.
	Content string `json:"content"`

	// CreatedAt is the source timestamp in RFC 3339 form.
	CreatedAt string `json:"createdAt"`

	// Engagement counters reported by the source at ingestion time.
	Favourites int `json:"favourites"`
	Reblogs    int `json:"reblogs"`
	Replies    int `json:"replies"`

	// Tags are the hashtag names (without the leading #).
	Tags []string `json:"tags"`

	// Mentions are the usernames of accounts mentioned in the post.
	Mentions []string `json:"mentions"`

	// MediaAttachments is the number of attached media items.
	MediaAttachments int `json:"mediaAttachments"`

	// InReplyTo is the id of the parent post, empty if not a reply.
	InReplyTo string `json:"inReplyTo,omitempty"`

	// URL is the canonical URL of the post.
	URL string `json:"url"`
}

// HashtagPost is a lightweight summary of a post found by the hashtag
// poller. It is broadcast for display only and never stored in the graph.
type HashtagPost struct {
	ID        string `json:"id"`
	Author    string `json:"author"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt"`
	URL       string `json:"url"`
}

// Connection links a reply to its parent post when both ends of the chain
// have been seen recently.
type Connection struct {
	From       string `json:"from"`
	To         string `json:"to"`
	FromAuthor string `json:"fromAuthor"`
	ToAuthor   string `json:"toAuthor"`
}
