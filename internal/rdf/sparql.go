package rdf

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/mvdveer/fediviz/internal/domain"
)

// The query surface is a constrained SPARQL subset: PREFIX declarations
// followed by SELECT over basic graph patterns. That covers every query this
// system issues; the translation to SQL below can grow with new needs.
//
//	PREFIX as: <https://www.w3.org/ns/activitystreams#>
//	SELECT ?orbiter WHERE {
//	  ?orbiterUri fedi:orbits <https://mastodon.social/users/alice> .
//	  ?orbiterUri as:preferredUsername ?orbiter .
//	}

type patternTerm struct {
	isVar bool
	value string // variable name without '?', or resolved IRI / literal text
}

type triplePattern struct {
	s, p, o patternTerm
}

type parsedQuery struct {
	selectAll bool
	vars      []string
	patterns  []triplePattern
}

// Query executes a pattern query and returns one binding set per match.
// Malformed input yields a *domain.QueryError.
func (s *Store) Query(query string) ([]map[string]string, error) {
	parsed, err := parseQuery(query)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sqlText, args, outVars, err := compileQuery(parsed)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	results := make([]map[string]string, 0)
	values := make([]string, len(outVars))
	scan := make([]any, len(outVars))
	for i := range values {
		scan[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(scan...); err != nil {
			return nil, fmt.Errorf("scan binding: %w", err)
		}
		binding := make(map[string]string, len(outVars))
		for i, name := range outVars {
			binding[name] = values[i]
		}
		results = append(results, binding)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bindings: %w", err)
	}

	return results, nil
}

func queryErr(format string, args ...any) error {
	return &domain.QueryError{Reason: fmt.Sprintf(format, args...)}
}

// compileQuery turns the parsed patterns into one self-join over the triples
// table. Each pattern becomes a table alias; shared variables become join
// conditions, constants become equality filters.
func compileQuery(q *parsedQuery) (sqlText string, args []any, outVars []string, err error) {
	type column struct {
		alias int
		field string
	}

	firstUse := make(map[string]column)
	var conds []string

	bind := func(alias int, field string, t patternTerm) {
		if !t.isVar {
			conds = append(conds, fmt.Sprintf("t%d.%s = ?", alias, field))
			args = append(args, t.value)
			return
		}
		if prev, ok := firstUse[t.value]; ok {
			conds = append(conds, fmt.Sprintf("t%d.%s = t%d.%s", alias, field, prev.alias, prev.field))
			return
		}
		firstUse[t.value] = column{alias: alias, field: field}
	}

	var from []string
	for i, p := range q.patterns {
		from = append(from, fmt.Sprintf("triples t%d", i))
		bind(i, "subject", p.s)
		bind(i, "predicate", p.p)
		bind(i, "object", p.o)
	}

	if q.selectAll {
		// Project every variable in first-appearance order.
		seen := make(map[string]bool)
		for _, p := range q.patterns {
			for _, t := range []patternTerm{p.s, p.p, p.o} {
				if t.isVar && !seen[t.value] {
					seen[t.value] = true
					outVars = append(outVars, t.value)
				}
			}
		}
	} else {
		outVars = q.vars
	}
	if len(outVars) == 0 {
		return "", nil, nil, queryErr("query selects no variables")
	}

	var selects []string
	for _, name := range outVars {
		col, ok := firstUse[name]
		if !ok {
			return "", nil, nil, queryErr("selected variable ?%s does not appear in the pattern", name)
		}
		selects = append(selects, fmt.Sprintf("t%d.%s", col.alias, col.field))
	}

	sqlText = "SELECT DISTINCT " + strings.Join(selects, ", ") + " FROM " + strings.Join(from, ", ")
	if len(conds) > 0 {
		sqlText += " WHERE " + strings.Join(conds, " AND ")
	}
	return sqlText, args, outVars, nil
}

func parseQuery(query string) (*parsedQuery, error) {
	tokens, err := tokenize(query)
	if err != nil {
		return nil, err
	}

	pos := 0
	next := func() (string, bool) {
		if pos >= len(tokens) {
			return "", false
		}
		t := tokens[pos]
		pos++
		return t, true
	}
	peek := func() string {
		if pos >= len(tokens) {
			return ""
		}
		return tokens[pos]
	}

	prefixes := make(map[string]string)

	for strings.EqualFold(peek(), "PREFIX") {
		next()
		name, ok := next()
		if !ok || !strings.HasSuffix(name, ":") {
			return nil, queryErr("PREFIX requires a name ending in ':'")
		}
		iri, ok := next()
		if !ok || !strings.HasPrefix(iri, "<") {
			return nil, queryErr("PREFIX %s requires an IRI", name)
		}
		prefixes[strings.TrimSuffix(name, ":")] = strings.Trim(iri, "<>")
	}

	if kw, ok := next(); !ok || !strings.EqualFold(kw, "SELECT") {
		return nil, queryErr("expected SELECT")
	}

	q := &parsedQuery{}
	for {
		t := peek()
		if t == "" {
			return nil, queryErr("unexpected end of query after SELECT")
		}
		if strings.EqualFold(t, "WHERE") {
			break
		}
		next()
		switch {
		case t == "*":
			q.selectAll = true
		case strings.HasPrefix(t, "?"):
			q.vars = append(q.vars, strings.TrimPrefix(t, "?"))
		default:
			return nil, queryErr("unexpected token %q in SELECT clause", t)
		}
	}
	if !q.selectAll && len(q.vars) == 0 {
		return nil, queryErr("SELECT clause names no variables")
	}

	next() // WHERE
	if t, ok := next(); !ok || t != "{" {
		return nil, queryErr("expected '{' after WHERE")
	}

	resolve := func(t string) (patternTerm, error) {
		switch {
		case strings.HasPrefix(t, "?"):
			name := strings.TrimPrefix(t, "?")
			if name == "" {
				return patternTerm{}, queryErr("empty variable name")
			}
			return patternTerm{isVar: true, value: name}, nil
		case strings.HasPrefix(t, "<"):
			return patternTerm{value: strings.Trim(t, "<>")}, nil
		case strings.HasPrefix(t, `"`):
			return patternTerm{value: strings.Trim(t, `"`)}, nil
		case t == "a":
			return patternTerm{value: rdfType}, nil
		default:
			name, local, ok := strings.Cut(t, ":")
			if !ok {
				return patternTerm{}, queryErr("unexpected term %q", t)
			}
			ns, known := prefixes[name]
			if !known {
				return patternTerm{}, queryErr("unknown prefix %q", name)
			}
			return patternTerm{value: ns + local}, nil
		}
	}

	for {
		t := peek()
		if t == "" {
			return nil, queryErr("unterminated pattern block, expected '}'")
		}
		if t == "}" {
			next()
			break
		}

		var terms [3]patternTerm
		for i := 0; i < 3; i++ {
			raw, ok := next()
			if !ok || raw == "}" || raw == "." {
				return nil, queryErr("incomplete triple pattern")
			}
			term, err := resolve(raw)
			if err != nil {
				return nil, err
			}
			terms[i] = term
		}
		q.patterns = append(q.patterns, triplePattern{s: terms[0], p: terms[1], o: terms[2]})

		if peek() == "." {
			next()
		}
	}

	if len(q.patterns) == 0 {
		return nil, queryErr("empty pattern block")
	}
	if t, ok := next(); ok {
		return nil, queryErr("unexpected trailing token %q", t)
	}
	return q, nil
}

// tokenize splits a query into IRIs, quoted literals, punctuation and bare
// words. IRIs and literals keep their delimiters so the parser can tell the
// term kinds apart.
func tokenize(query string) ([]string, error) {
	var tokens []string
	runes := []rune(query)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '{' || r == '}' || r == '.' || r == '*':
			tokens = append(tokens, string(r))
			i++
		case r == '<':
			end := i + 1
			for end < len(runes) && runes[end] != '>' {
				end++
			}
			if end >= len(runes) {
				return nil, queryErr("unterminated IRI")
			}
			tokens = append(tokens, string(runes[i:end+1]))
			i = end + 1
		case r == '"':
			end := i + 1
			for end < len(runes) && runes[end] != '"' {
				if runes[end] == '\\' {
					end++
				}
				end++
			}
			if end >= len(runes) {
				return nil, queryErr("unterminated string literal")
			}
			tokens = append(tokens, string(runes[i:end+1]))
			i = end + 1
		default:
			end := i
			for end < len(runes) && !unicode.IsSpace(runes[end]) &&
				!strings.ContainsRune("{}<>\"", runes[end]) &&
				!(runes[end] == '.' && (end+1 >= len(runes) || unicode.IsSpace(runes[end+1]) || runes[end+1] == '}')) {
				end++
			}
			if end == i {
				return nil, queryErr("unexpected character %q", string(r))
			}
			tokens = append(tokens, string(runes[i:end]))
			i = end
		}
	}
	return tokens, nil
}
