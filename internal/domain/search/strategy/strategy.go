package strategy

// Strategy tags how a result, or a whole response, was retrieved.
type Strategy string

// Retrieval strategies.
const (
	Vector Strategy = "vector"
	Graph  Strategy = "graph"
	Hybrid Strategy = "hybrid"
)

// IsValid checks if the strategy is one of the supported values.
func (s Strategy) IsValid() bool {
	return s == Vector || s == Graph || s == Hybrid
}

// Combine returns the strategy covering both s and o.
// The zero value acts as identity.
func (s Strategy) Combine(o Strategy) Strategy {
	switch {
	case s == "":
		return o
	case o == "" || s == o:
		return s
	}
	return Hybrid
}

// Of reports the strategy given which retrieval paths contributed.
func Of(vectorHits, graphHits bool) Strategy {
	switch {
	case vectorHits && graphHits:
		return Hybrid
	case graphHits:
		return Graph
	}
	return Vector
}
