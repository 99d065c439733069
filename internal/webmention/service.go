// Package webmention verifies inbound mention claims and tracks their
// moderation state.
package webmention

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mvdveer/fediviz/internal/domain"
	"github.com/mvdveer/fediviz/internal/htmltext"
)

// snippetRadius is how many characters around the first occurrence of the
// target URL are kept as the mention's content snippet.
const snippetRadius = 200

// maxSourceBytes caps how much of a claimed source page we read.
const maxSourceBytes = 2 << 20

// Service verifies mention claims by fetching the claimed source page and
// owns the resulting collection. Mention ids are sequential and never
// reused, even after rejection.
type Service struct {
	client *http.Client
	hub    domain.Publisher
	logger *slog.Logger

	mu       sync.Mutex
	mentions []domain.Webmention
	lastID   int
}

// NewService creates a webmention service publishing to hub. If client is
// nil a default client with a 30-second timeout is used.
func NewService(hub domain.Publisher, logger *slog.Logger, client *http.Client) *Service {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Service{
		client: client,
		hub:    hub,
		logger: logger,
	}
}

// Verify fetches source and checks that it contains the literal target URL.
// On success the mention is stored as pending (verified, not yet approved)
// and a webmention-pending event is published. The caller is held until
// verification completes; failures are reported as domain errors.
func (s *Service) Verify(ctx context.Context, source, target string) (domain.Webmention, error) {
	if source == "" || target == "" {
		return domain.Webmention{}, fmt.Errorf("%w: source and target are required", domain.ErrMissingParameter)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return domain.Webmention{}, fmt.Errorf("%w: %s", domain.ErrUnreachableSource, source)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("webmention source fetch failed", "source", source, "error", err)
		return domain.Webmention{}, fmt.Errorf("%w: %s", domain.ErrUnreachableSource, source)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Warn("webmention source returned error status", "source", source, "status", resp.StatusCode)
		return domain.Webmention{}, fmt.Errorf("%w: %s returned status %d", domain.ErrUnreachableSource, source, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceBytes))
	if err != nil {
		return domain.Webmention{}, fmt.Errorf("%w: %s", domain.ErrUnreachableSource, source)
	}

	html := string(body)
	if !strings.Contains(html, target) {
		return domain.Webmention{}, fmt.Errorf("%w: %s", domain.ErrLinkNotFound, target)
	}

	s.mu.Lock()
	s.lastID++
	mention := domain.Webmention{
		ID:        s.lastID,
		Source:    source,
		Target:    target,
		Verified:  true,
		Approved:  false,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Content:   extractSnippet(html, target),
	}
	s.mentions = append(s.mentions, mention)
	s.mu.Unlock()

	s.logger.Info("webmention verified, awaiting approval", "id", mention.ID, "source", source)
	s.hub.Publish(domain.NewWebmentionPendingEvent(mention))

	return mention, nil
}

// extractSnippet returns the markup-stripped text surrounding the first
// occurrence of target in html.
func extractSnippet(html, target string) string {
	index := strings.Index(html, target)
	if index < 0 {
		return ""
	}
	start := index - snippetRadius
	if start < 0 {
		start = 0
	}
	end := index + snippetRadius
	if end > len(html) {
		end = len(html)
	}
	return htmltext.Strip(html[start:end])
}

// Approve marks the mention as publicly visible and re-broadcasts it.
// Approving an already-approved mention leaves state unchanged but still
// publishes the event.
func (s *Service) Approve(id int) (domain.Webmention, error) {
	s.mu.Lock()
	index := s.indexOf(id)
	if index < 0 {
		s.mu.Unlock()
		return domain.Webmention{}, fmt.Errorf("webmention %d: %w", id, domain.ErrNotFound)
	}
	s.mentions[index].Approved = true
	mention := s.mentions[index]
	s.mu.Unlock()

	s.logger.Info("webmention approved", "id", id)
	s.hub.Publish(domain.NewWebmentionEvent(mention))
	return mention, nil
}

// Reject permanently removes the mention. Nothing is broadcast: the mention
// was never publicly visible, and its id is never reused.
func (s *Service) Reject(id int) (domain.Webmention, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index := s.indexOf(id)
	if index < 0 {
		return domain.Webmention{}, fmt.Errorf("webmention %d: %w", id, domain.ErrNotFound)
	}
	mention := s.mentions[index]
	s.mentions = append(s.mentions[:index], s.mentions[index+1:]...)

	s.logger.Info("webmention rejected", "id", id)
	return mention, nil
}

// All returns every stored mention, pending and approved. Privileged.
func (s *Service) All() []domain.Webmention {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Webmention, len(s.mentions))
	copy(out, s.mentions)
	return out
}

// Approved returns only moderator-approved mentions.
func (s *Service) Approved() []domain.Webmention {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Webmention, 0, len(s.mentions))
	for _, m := range s.mentions {
		if m.Approved {
			out = append(out, m)
		}
	}
	return out
}

// CreateTest stores a synthetic mention and broadcasts it, exercising the
// display pipeline without a remote page. Approved test mentions emit a
// webmention event, pending ones a webmention-pending event.
func (s *Service) CreateTest(approved bool) domain.Webmention {
	s.mu.Lock()
	s.lastID++
	mention := domain.Webmention{
		ID:        s.lastID,
		Source:    fmt.Sprintf("https://example.com/test-post-%d", time.Now().UnixMilli()),
		Target:    "http://localhost:3000/",
		Verified:  true,
		Approved:  approved,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Content:   "Test webmention!",
	}
	s.mentions = append(s.mentions, mention)
	s.mu.Unlock()

	if approved {
		s.hub.Publish(domain.NewWebmentionEvent(mention))
	} else {
		s.hub.Publish(domain.NewWebmentionPendingEvent(mention))
	}
	return mention
}

// indexOf returns the slice index for id, or -1. Callers must hold the lock.
func (s *Service) indexOf(id int) int {
	for i, m := range s.mentions {
		if m.ID == id {
			return i
		}
	}
	return -1
}
