package domain

// OrbitStrength classifies how strongly an orbiter is bound to the author
// it orbits. A mention creates a weak orbit, a reblog a strong one; once
// strong an orbit is never downgraded.
type OrbitStrength string

const (
	OrbitWeak   OrbitStrength = "weak"
	OrbitStrong OrbitStrength = "strong"
)

// Influencer is one entry in the influence ranking.
type Influencer struct {
	Author    string   `json:"author"`
	Avatar    string   `json:"avatar"`
	Influence int      `json:"influence"`
	Orbiters  []string `json:"orbiters"`
}

// InfluenceEdge is a directed edge from an orbiter to the influencer it
// orbits. Strength is derived from the orbiter's own influence, capped
// at 10.
type InfluenceEdge struct {
	From     string  `json:"from"`
	To       string  `json:"to"`
	Strength float64 `json:"strength"`
}

// InfluenceGraph is the node/edge view over the top influencers, shaped
// for the orbital visualization.
type InfluenceGraph struct {
	Nodes []Influencer    `json:"nodes"`
	Edges []InfluenceEdge `json:"edges"`
}

// Stats summarizes the size of the graph store.
type Stats struct {
	Triples int `json:"triples"`
	Authors int `json:"authors"`
	Posts   int `json:"posts"`
}
