package rdf

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mvdveer/fediviz/internal/domain"
)

func TestQueryOrbitersOfAuthor(t *testing.T) {
	store := newTestStore(t)

	// carol mentions alice (weak orbit), bob reblogs alice (strong orbit),
	// dave orbits nobody.
	require.NoError(t, store.RecordPost(domain.Post{ID: "1", Author: "carol", Mentions: []string{"alice"}}))
	require.NoError(t, store.RecordReblog("bob", "alice", "9"))
	require.NoError(t, store.RecordPost(domain.Post{ID: "2", Author: "dave"}))

	results, err := store.Query(`
		PREFIX fedi: <https://fedivisualizer.local/ontology#>
		SELECT ?orbiter WHERE {
			?orbiter fedi:orbits <https://mastodon.social/users/alice> .
		}`)
	require.NoError(t, err)

	var orbiters []string
	for _, binding := range results {
		orbiters = append(orbiters, binding["orbiter"])
	}
	require.ElementsMatch(t, []string{
		"https://mastodon.social/users/carol",
		"https://mastodon.social/users/bob",
	}, orbiters)
}

func TestQueryJoinOnUsername(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.RecordPost(domain.Post{ID: "1", Author: "carol", Mentions: []string{"alice"}}))

	results, err := store.Query(`
		PREFIX as: <https://www.w3.org/ns/activitystreams#>
		PREFIX fedi: <https://fedivisualizer.local/ontology#>
		SELECT ?name WHERE {
			?orbiter fedi:orbits <https://mastodon.social/users/alice> .
			?orbiter as:preferredUsername ?name .
		}`)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "carol", results[0]["name"])
}

func TestQueryLiteralConstraint(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.RecordPost(domain.Post{ID: "1", Author: "alice"}))
	require.NoError(t, store.RecordPost(domain.Post{ID: "2", Author: "bob"}))

	results, err := store.Query(`
		PREFIX as: <https://www.w3.org/ns/activitystreams#>
		SELECT ?who WHERE {
			?who as:preferredUsername "bob" .
		}`)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "https://mastodon.social/users/bob", results[0]["who"])
}

func TestQuerySelectStar(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.RecordPost(domain.Post{ID: "1", Author: "alice", Tags: []string{"go"}}))

	results, err := store.Query(`
		PREFIX rdf: <http://www.w3.org/1999/02/22-rdf-syntax-ns#>
		PREFIX as: <https://www.w3.org/ns/activitystreams#>
		SELECT * WHERE {
			?tag rdf:type as:Hashtag .
			?tag as:name ?label .
		}`)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "https://mastodon.social/tags/go", results[0]["tag"])
	require.Equal(t, "#go", results[0]["label"])
}

func TestQueryTypeKeywordShorthand(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.RecordPost(domain.Post{ID: "1", Author: "alice"}))

	results, err := store.Query(`
		PREFIX as: <https://www.w3.org/ns/activitystreams#>
		SELECT ?post WHERE { ?post a as:Note . }`)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestQueryNoMatches(t *testing.T) {
	store := newTestStore(t)

	results, err := store.Query(`
		PREFIX fedi: <https://fedivisualizer.local/ontology#>
		SELECT ?x WHERE { ?x fedi:orbits <https://mastodon.social/users/nobody> . }`)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestQueryMalformed(t *testing.T) {
	store := newTestStore(t)

	cases := []string{
		"",
		"SELECT",
		"SELECT ?x",
		"SELECT ?x WHERE {",
		"SELECT ?x WHERE { ?x }",
		"SELECT WHERE { ?x ?y ?z . }",
		"PREFIX broken SELECT ?x WHERE { ?x ?y ?z . }",
		"SELECT ?x WHERE { ?x unknown:pred ?z . }",
		"SELECT ?missing WHERE { ?x ?y ?z . }",
		`SELECT ?x WHERE { ?x <unterminated ?z . }`,
	}

	for _, query := range cases {
		_, err := store.Query(query)
		var queryErr *domain.QueryError
		require.ErrorAs(t, err, &queryErr, "query %q should be rejected", query)
	}
}
