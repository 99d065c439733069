package rdf

// Vocabulary namespaces used throughout the graph. The fedi namespace holds
// the project ontology (orbit relations, influence bookkeeping).
const (
	nsRDF    = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	nsAS     = "https://www.w3.org/ns/activitystreams#"
	nsSchema = "https://schema.org/"
	nsFedi   = "https://fedivisualizer.local/ontology#"
	nsXSD    = "http://www.w3.org/2001/XMLSchema#"
)

const (
	rdfType = nsRDF + "type"

	asNote              = nsAS + "Note"
	asPerson            = nsAS + "Person"
	asHashtag           = nsAS + "Hashtag"
	asMention           = nsAS + "Mention"
	asAnnounce          = nsAS + "Announce"
	asAttributedTo      = nsAS + "attributedTo"
	asContent           = nsAS + "content"
	asPublished         = nsAS + "published"
	asURL               = nsAS + "url"
	asTag               = nsAS + "tag"
	asName              = nsAS + "name"
	asIcon              = nsAS + "icon"
	asInReplyTo         = nsAS + "inReplyTo"
	asPreferredUsername = nsAS + "preferredUsername"

	schemaDateCreated = nsSchema + "dateCreated"

	fediOrbits          = nsFedi + "orbits"
	fediOrbitStrength   = nsFedi + "orbitStrength"
	fediInfluenceScore  = nsFedi + "influenceScore"
	fediFavouritesCount = nsFedi + "favouritesCount"
	fediReblogsCount    = nsFedi + "reblogsCount"
	fediRepliesCount    = nsFedi + "repliesCount"

	xsdInteger  = nsXSD + "integer"
	xsdDateTime = nsXSD + "dateTime"
)

// baseIRI roots the resource identifiers minted for posts, users and tags.
const baseIRI = "https://mastodon.social"

func postIRI(id string) string   { return baseIRI + "/posts/" + id }
func userIRI(user string) string { return baseIRI + "/users/" + user }
func tagIRI(tag string) string   { return baseIRI + "/tags/" + tag }

// term is a triple object: either an IRI or a (possibly typed) literal.
type term struct {
	value    string
	iri      bool
	datatype string
}

func iriTerm(v string) term             { return term{value: v, iri: true} }
func litTerm(v string) term             { return term{value: v} }
func typedTerm(v, datatype string) term { return term{value: v, datatype: datatype} }
