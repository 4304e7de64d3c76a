package cfa

import "math"

// Reachable returns the locations reachable from start, following call edges
// into callees and return edges back to call sites.
func Reachable(start *Node) map[int]*Node {
	visited := map[int]*Node{start.ID: start}
	queue := []*Node{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, e := range current.leaving {
			if _, seen := visited[e.To.ID]; seen {
				continue
			}
			visited[e.To.ID] = e.To
			queue = append(queue, e.To)
		}
	}
	return visited
}

// DistancesToError computes, for every location, the number of edges on the
// shortest path to an error location. Locations that cannot reach an error
// get math.MaxInt.
func DistancesToError(c *CFA) map[int]int {
	dist := make(map[int]int, len(c.nodes))
	var queue []*Node
	for _, n := range c.nodes {
		if n.Error {
			dist[n.ID] = 0
			queue = append(queue, n)
		}
	}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, e := range current.entering {
			if _, seen := dist[e.From.ID]; seen {
				continue
			}
			dist[e.From.ID] = dist[current.ID] + 1
			queue = append(queue, e.From)
		}
	}
	for _, n := range c.nodes {
		if _, ok := dist[n.ID]; !ok {
			dist[n.ID] = math.MaxInt
		}
	}
	return dist
}
