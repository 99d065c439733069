package rdf

import (
	"encoding/json"
	"fmt"
	"strings"
)

// prefixTable maps the namespaces we mint to their Turtle/JSON-LD prefixes.
var prefixTable = []struct {
	prefix string
	ns     string
}{
	{"rdf", nsRDF},
	{"as", nsAS},
	{"schema", nsSchema},
	{"fedi", nsFedi},
	{"xsd", nsXSD},
}

type triple struct {
	subject   string
	predicate string
	object    term
}

func (s *Store) allTriples() ([]triple, error) {
	rows, err := s.db.Query(`
		SELECT subject, predicate, object, object_iri, datatype
		FROM triples
		ORDER BY subject, predicate, object`)
	if err != nil {
		return nil, fmt.Errorf("query triples: %w", err)
	}
	defer rows.Close()

	var triples []triple
	for rows.Next() {
		var t triple
		var objectIRI int
		if err := rows.Scan(&t.subject, &t.predicate, &t.object.value, &objectIRI, &t.object.datatype); err != nil {
			return nil, fmt.Errorf("scan triple: %w", err)
		}
		t.object.iri = objectIRI != 0
		triples = append(triples, t)
	}
	return triples, rows.Err()
}

// SerializeTurtle renders the full graph as Turtle, grouping predicates per
// subject and abbreviating known namespaces.
func (s *Store) SerializeTurtle() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	triples, err := s.allTriples()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, p := range prefixTable {
		fmt.Fprintf(&b, "@prefix %s: <%s> .\n", p.prefix, p.ns)
	}

	var subject string
	first := true
	for _, t := range triples {
		if t.subject != subject {
			if !first {
				b.WriteString(" .\n")
			}
			b.WriteString("\n" + formatIRI(t.subject))
			subject = t.subject
			first = false
		} else {
			b.WriteString(" ;")
		}
		b.WriteString("\n    " + formatIRI(t.predicate) + " " + formatObject(t.object))
	}
	if !first {
		b.WriteString(" .\n")
	}
	return b.String(), nil
}

func formatIRI(iri string) string {
	for _, p := range prefixTable {
		if rest, ok := strings.CutPrefix(iri, p.ns); ok && rest != "" && !strings.ContainsAny(rest, "/#:") {
			return p.prefix + ":" + rest
		}
	}
	return "<" + iri + ">"
}

func formatObject(o term) string {
	if o.iri {
		return formatIRI(o.value)
	}
	escaped := strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
		"\n", `\n`,
		"\r", `\r`,
		"\t", `\t`,
	).Replace(o.value)
	out := `"` + escaped + `"`
	if o.datatype != "" {
		out += "^^" + formatIRI(o.datatype)
	}
	return out
}

// SerializeJSONLD renders the full graph as JSON-LD with a prefix context
// and one node object per subject.
func (s *Store) SerializeJSONLD() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	triples, err := s.allTriples()
	if err != nil {
		return "", err
	}

	context := make(map[string]string, len(prefixTable))
	for _, p := range prefixTable {
		context[p.prefix] = p.ns
	}

	var graph []map[string]any
	nodes := make(map[string]map[string]any)
	for _, t := range triples {
		node, ok := nodes[t.subject]
		if !ok {
			node = map[string]any{"@id": t.subject}
			nodes[t.subject] = node
			graph = append(graph, node)
		}

		key := formatIRI(t.predicate)
		var value any
		switch {
		case t.object.iri:
			value = map[string]any{"@id": t.object.value}
		case t.object.datatype != "":
			value = map[string]any{"@value": t.object.value, "@type": t.object.datatype}
		default:
			value = t.object.value
		}

		switch existing := node[key].(type) {
		case nil:
			node[key] = value
		case []any:
			node[key] = append(existing, value)
		default:
			node[key] = []any{existing, value}
		}
	}

	doc := map[string]any{
		"@context": context,
		"@graph":   graph,
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal json-ld: %w", err)
	}
	return string(out), nil
}
