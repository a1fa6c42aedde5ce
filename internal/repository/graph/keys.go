package graph

import "strings"

// Key layout:
//
//	n:{id}                 node JSON
//	e:{from}|{type}|{to}   edge JSON
//	r:{to}|{type}|{from}   reverse adjacency, empty value
//
// Derived identifiers never contain '|'.
const (
	nodePrefix    = "n:"
	edgePrefix    = "e:"
	reversePrefix = "r:"
	sep           = "|"
)

func nodeKey(id string) []byte {
	return []byte(nodePrefix + id)
}

func edgeKey(from, rel, to string) []byte {
	return []byte(edgePrefix + from + sep + rel + sep + to)
}

func reverseKey(to, rel, from string) []byte {
	return []byte(reversePrefix + to + sep + rel + sep + from)
}

func outPrefix(id string) []byte {
	return []byte(edgePrefix + id + sep)
}

func inPrefix(id string) []byte {
	return []byte(reversePrefix + id + sep)
}

// splitAdjacency parses the {type}|{other} tail of an adjacency key.
func splitAdjacency(key, prefix []byte) (rel, other string, ok bool) {
	tail := string(key[len(prefix):])
	rel, other, ok = strings.Cut(tail, sep)
	return rel, other, ok && rel != "" && other != ""
}
