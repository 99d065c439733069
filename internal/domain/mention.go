package domain

// Webmention is a fetch-verified claim that a remote page links to one of
// our pages. Unverifiable claims are never stored, so Verified is always
// true once a mention exists. Approved starts false and flips to true when
// a moderator approves the mention; rejection removes it entirely.
type Webmention struct {
	// ID is a sequential integer assigned at verification time. IDs are
	// monotonic and never reused, even after rejection.
	ID int `json:"id"`

	// Source is the remote page claiming to link to Target.
	Source string `json:"source"`

	// Target is the local URL the source page links to.
	Target string `json:"target"`

	Verified bool `json:"verified"`
	Approved bool `json:"approved"`

	// Timestamp is the verification time in RFC 3339 form.
	Timestamp string `json:"timestamp"`

	// Content is a markup-stripped snippet of the source page surrounding
	// the first occurrence of the target URL.
	Content string `json:"content"`
}
