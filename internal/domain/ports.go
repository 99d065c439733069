package domain

// Publisher fans out events to live viewers. Implementations must never
// block the caller on a slow consumer.
type Publisher interface {
	Publish(event Event)
}

// GraphRecorder accepts write operations from the stream ingestor.
type GraphRecorder interface {
	// RecordPost upserts the post and its author, records tag and mention
	// edges, and applies the engagement-derived influence delta.
	RecordPost(post Post) error

	// RecordReblog records a strong orbit from reblogger to originalAuthor
	// and applies the fixed reblog influence bonus.
	RecordReblog(reblogger, originalAuthor, postID string) error
}
