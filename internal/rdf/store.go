// Package rdf implements the in-memory graph store: an indexed triple table
// plus derived influence and orbit indices kept in sync with insertion.
package rdf

import (
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/mvdveer/fediviz/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS triples (
	subject    TEXT NOT NULL,
	predicate  TEXT NOT NULL,
	object     TEXT NOT NULL,
	object_iri INTEGER NOT NULL DEFAULT 0,
	datatype   TEXT NOT NULL DEFAULT '',
	UNIQUE (subject, predicate, object)
);
CREATE INDEX IF NOT EXISTS idx_triples_predicate ON triples (predicate, object);
CREATE INDEX IF NOT EXISTS idx_triples_object ON triples (object);
`

// Store owns the triple table and the derived influence bookkeeping. All
// mutation is serialized behind one mutex; reads take the shared lock.
type Store struct {
	db *sql.DB

	mu        sync.RWMutex
	influence map[string]int
	firstSeen map[string]int
	seq       int
	orbits    map[string]map[string]domain.OrbitStrength // target -> orbiter -> strength
}

// Open creates a fresh in-memory store. The caller should call Close when
// the store is no longer needed.
func Open() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	// A single connection keeps the in-memory database alive and serializes
	// statement execution.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{
		db:        db,
		influence: make(map[string]int),
		firstSeen: make(map[string]int),
		orbits:    make(map[string]map[string]domain.OrbitStrength),
	}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func add(tx *sql.Tx, subject, predicate string, object term) error {
	objectIRI := 0
	if object.iri {
		objectIRI = 1
	}
	_, err := tx.Exec(`
		INSERT OR IGNORE INTO triples (subject, predicate, object, object_iri, datatype)
		VALUES (?, ?, ?, ?, ?)`,
		subject, predicate, object.value, objectIRI, object.datatype,
	)
	return err
}

// replace removes all triples matching (subject, predicate, *) and inserts
// the new object, so re-ingestion overwrites instead of accumulating.
func replace(tx *sql.Tx, subject, predicate string, object term) error {
	if _, err := tx.Exec(`DELETE FROM triples WHERE subject = ? AND predicate = ?`, subject, predicate); err != nil {
		return err
	}
	return add(tx, subject, predicate, object)
}

// RecordPost upserts the post and its author, records tag and mention edges,
// and adds the engagement-derived delta to the author's influence score. The
// delta is re-added on every call for the same post id; repeated stream
// delivery therefore accumulates.
func (s *Store) RecordPost(post domain.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	pIRI := postIRI(post.ID)
	aIRI := userIRI(post.Author)

	if err := add(tx, pIRI, rdfType, iriTerm(asNote)); err != nil {
		return fmt.Errorf("add post type: %w", err)
	}
	if err := add(tx, pIRI, asAttributedTo, iriTerm(aIRI)); err != nil {
		return fmt.Errorf("add attribution: %w", err)
	}
	if err := replace(tx, pIRI, asContent, litTerm(post.Content)); err != nil {
		return fmt.Errorf("add content: %w", err)
	}
	if err := add(tx, pIRI, asPublished, typedTerm(post.CreatedAt, xsdDateTime)); err != nil {
		return fmt.Errorf("add published: %w", err)
	}
	if post.URL != "" {
		if err := add(tx, pIRI, asURL, iriTerm(post.URL)); err != nil {
			return fmt.Errorf("add url: %w", err)
		}
	}
	if err := add(tx, pIRI, schemaDateCreated, litTerm(post.CreatedAt)); err != nil {
		return fmt.Errorf("add dateCreated: %w", err)
	}

	counters := []struct {
		predicate string
		value     int
	}{
		{fediFavouritesCount, post.Favourites},
		{fediReblogsCount, post.Reblogs},
		{fediRepliesCount, post.Replies},
	}
	for _, c := range counters {
		if err := replace(tx, pIRI, c.predicate, typedTerm(strconv.Itoa(c.value), xsdInteger)); err != nil {
			return fmt.Errorf("add counter: %w", err)
		}
	}

	if err := add(tx, aIRI, rdfType, iriTerm(asPerson)); err != nil {
		return fmt.Errorf("add author type: %w", err)
	}
	if err := add(tx, aIRI, asPreferredUsername, litTerm(post.Author)); err != nil {
		return fmt.Errorf("add username: %w", err)
	}
	if post.Avatar != "" {
		// Last-seen avatar wins.
		if err := replace(tx, aIRI, asIcon, iriTerm(post.Avatar)); err != nil {
			return fmt.Errorf("add avatar: %w", err)
		}
	}

	for _, tag := range post.Tags {
		tIRI := tagIRI(tag)
		if err := add(tx, pIRI, asTag, iriTerm(tIRI)); err != nil {
			return fmt.Errorf("add tag edge: %w", err)
		}
		if err := add(tx, tIRI, rdfType, iriTerm(asHashtag)); err != nil {
			return fmt.Errorf("add tag type: %w", err)
		}
		if err := add(tx, tIRI, asName, litTerm("#"+tag)); err != nil {
			return fmt.Errorf("add tag name: %w", err)
		}
	}

	for _, mentioned := range post.Mentions {
		mIRI := userIRI(mentioned)
		if err := add(tx, pIRI, asTag, iriTerm(mIRI)); err != nil {
			return fmt.Errorf("add mention edge: %w", err)
		}
		if err := add(tx, mIRI, rdfType, iriTerm(asMention)); err != nil {
			return fmt.Errorf("add mention type: %w", err)
		}
		if err := add(tx, aIRI, fediOrbits, iriTerm(mIRI)); err != nil {
			return fmt.Errorf("add orbit edge: %w", err)
		}
	}

	if post.InReplyTo != "" {
		if err := add(tx, pIRI, asInReplyTo, iriTerm(postIRI(post.InReplyTo))); err != nil {
			return fmt.Errorf("add reply edge: %w", err)
		}
	}

	delta := post.Reblogs*3 + post.Favourites*2 + post.Replies
	score := s.influence[post.Author] + delta
	if err := replace(tx, aIRI, fediInfluenceScore, typedTerm(strconv.Itoa(score), xsdInteger)); err != nil {
		return fmt.Errorf("add influence score: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	// Derived indices only change once the triples are committed.
	s.touchAuthor(post.Author)
	s.influence[post.Author] = score
	for _, mentioned := range post.Mentions {
		s.addOrbit(mentioned, post.Author, domain.OrbitWeak)
	}

	return nil
}

// RecordReblog records a strong orbit from reblogger to originalAuthor and
// adds the fixed reblog bonus to the original author's influence. A prior
// weak orbit is upgraded, never the reverse.
func (s *Store) RecordReblog(reblogger, originalAuthor, postID string) error {
	const reblogBonus = 5

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	rIRI := userIRI(reblogger)
	oIRI := userIRI(originalAuthor)

	if err := add(tx, rIRI, asAnnounce, iriTerm(postIRI(postID))); err != nil {
		return fmt.Errorf("add announce: %w", err)
	}
	if err := add(tx, rIRI, fediOrbits, iriTerm(oIRI)); err != nil {
		return fmt.Errorf("add orbit edge: %w", err)
	}
	if err := add(tx, rIRI, fediOrbitStrength, litTerm(string(domain.OrbitStrong))); err != nil {
		return fmt.Errorf("add orbit strength: %w", err)
	}

	score := s.influence[originalAuthor] + reblogBonus
	if err := replace(tx, oIRI, fediInfluenceScore, typedTerm(strconv.Itoa(score), xsdInteger)); err != nil {
		return fmt.Errorf("add influence score: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.touchAuthor(originalAuthor)
	s.influence[originalAuthor] = score
	s.addOrbit(originalAuthor, reblogger, domain.OrbitStrong)

	return nil
}

// touchAuthor records first-seen order for ranking tie-breaks. Callers must
// hold the write lock.
func (s *Store) touchAuthor(author string) {
	if _, ok := s.firstSeen[author]; !ok {
		s.firstSeen[author] = s.seq
		s.seq++
	}
	if _, ok := s.influence[author]; !ok {
		s.influence[author] = 0
	}
}

// addOrbit registers orbiter around target. Strength only ever upgrades.
// Callers must hold the write lock.
func (s *Store) addOrbit(target, orbiter string, strength domain.OrbitStrength) {
	set, ok := s.orbits[target]
	if !ok {
		set = make(map[string]domain.OrbitStrength)
		s.orbits[target] = set
	}
	if set[orbiter] != domain.OrbitStrong {
		set[orbiter] = strength
	}
}

// OrbitStrength reports the strength of the orbiter→target edge, and
// whether such an edge exists.
func (s *Store) OrbitStrength(target, orbiter string) (domain.OrbitStrength, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	strength, ok := s.orbits[target][orbiter]
	return strength, ok
}

// TopInfluencers returns at most limit authors ordered by descending
// influence score, ties broken by first-seen order.
func (s *Store) TopInfluencers(limit int) ([]domain.Influencer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.topInfluencersLocked(limit)
}

func (s *Store) topInfluencersLocked(limit int) ([]domain.Influencer, error) {
	type ranked struct {
		author string
		score  int
		seen   int
	}

	all := make([]ranked, 0, len(s.influence))
	for author, score := range s.influence {
		all = append(all, ranked{author: author, score: score, seen: s.firstSeen[author]})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		return all[i].seen < all[j].seen
	})
	if limit >= 0 && len(all) > limit {
		all = all[:limit]
	}

	result := make([]domain.Influencer, 0, len(all))
	for _, r := range all {
		avatar, err := s.objectOf(userIRI(r.author), asIcon)
		if err != nil {
			return nil, err
		}
		result = append(result, domain.Influencer{
			Author:    r.author,
			Avatar:    avatar,
			Influence: r.score,
			Orbiters:  s.orbitersLocked(r.author),
		})
	}
	return result, nil
}

func (s *Store) orbitersLocked(author string) []string {
	orbiters := make([]string, 0, len(s.orbits[author]))
	for orbiter := range s.orbits[author] {
		orbiters = append(orbiters, orbiter)
	}
	sort.Strings(orbiters)
	return orbiters
}

func (s *Store) objectOf(subject, predicate string) (string, error) {
	var object string
	err := s.db.QueryRow(
		`SELECT object FROM triples WHERE subject = ? AND predicate = ? LIMIT 1`,
		subject, predicate,
	).Scan(&object)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup %s: %w", predicate, err)
	}
	return object, nil
}

// InfluenceGraph returns the top 20 influencers as nodes plus the orbit
// edges between them and any orbiter with positive influence.
func (s *Store) InfluenceGraph() (*domain.InfluenceGraph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes, err := s.topInfluencersLocked(20)
	if err != nil {
		return nil, err
	}

	edges := make([]domain.InfluenceEdge, 0)
	for _, node := range nodes {
		for _, orbiter := range node.Orbiters {
			orbiterScore := s.influence[orbiter]
			if orbiterScore <= 0 {
				continue
			}
			strength := float64(orbiterScore) / 10
			if strength > 10 {
				strength = 10
			}
			edges = append(edges, domain.InfluenceEdge{
				From:     orbiter,
				To:       node.Author,
				Strength: strength,
			})
		}
	}

	return &domain.InfluenceGraph{Nodes: nodes, Edges: edges}, nil
}

// Stats summarizes the store size.
func (s *Store) Stats() (domain.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var triples int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM triples`).Scan(&triples); err != nil {
		return domain.Stats{}, fmt.Errorf("count triples: %w", err)
	}

	var posts int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM triples WHERE predicate = ? AND object = ?`,
		rdfType, asNote,
	).Scan(&posts)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("count posts: %w", err)
	}

	return domain.Stats{
		Triples: triples,
		Authors: len(s.influence),
		Posts:   posts,
	}, nil
}
