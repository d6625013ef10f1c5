package storygraph

// Invalidate resets every non-idle node reachable downstream of id back to
// idle and returns the ids it reset, in visit order.
//
// Already-idle nodes stop the walk along that path. Each node is visited at
// most once per call, so cycles terminate.
func (g *Graph) Invalidate(id string) []string {
	reset := []string{}
	visited := map[string]bool{id: true}

	var walk func(src string)
	walk = func(src string) {
		for _, e := range g.Edges {
			if e.Source != src || visited[e.Target] {
				continue
			}
			n, ok := g.Nodes[e.Target]
			if !ok || n.Status == StatusIdle {
				continue
			}
			visited[e.Target] = true
			if err := n.reset(); err != nil {
				continue
			}
			reset = append(reset, n.ID)
			walk(n.ID)
		}
	}
	walk(id)
	return reset
}
