package supergraph

// RouteTypeToLocations finds, for each reachable goal location, the chain of
// resolver hops that carries an object of the type from start to the goal.
// Unreachable goals are absent from the result.
func (sg *Supergraph) RouteTypeToLocations(typeName, start string, goals []string) map[string][]*Resolver {
	switch len(sg.keysByType[typeName]) {
	case 0:
		out := make(map[string][]*Resolver, len(goals))
		for _, goal := range goals {
			out[goal] = []*Resolver{VirtualHop(goal)}
		}
		return out
	case 1:
		out := map[string][]*Resolver{}
		for _, r := range sg.resolversByType[typeName] {
			if _, done := out[r.Location]; done || !contains(goals, r.Location) {
				continue
			}
			out[r.Location] = []*Resolver{r}
		}
		return out
	default:
		return sg.searchRoutes(typeName, start, goals)
	}
}

type routeNode struct {
	location string
	key      string
	cost     int
	hops     []*Resolver
}

func (n *routeNode) visited(location string) bool {
	for _, h := range n.hops {
		if h.Location == location {
			return true
		}
	}
	return false
}

// searchRoutes runs a best-first search over (location, key) states. Passing
// through a location that is not a goal costs one; ties prefer fewer hops.
func (sg *Supergraph) searchRoutes(typeName, start string, goals []string) map[string][]*Resolver {
	results := map[string][]*Resolver{}
	resultCost := map[string]int{}
	costs := map[string]int{start: 0}

	var frontier []*routeNode
	for _, key := range sg.possibleKeys(typeName, start) {
		frontier = append(frontier, &routeNode{location: start, key: key})
	}

	for len(frontier) > 0 {
		node := popCheapest(&frontier)

		for _, r := range sg.resolversByType[typeName] {
			if r.Key.String() != node.key {
				continue
			}
			next := r.Location
			if next == start || node.visited(next) {
				continue
			}
			if best, ok := costs[next]; ok && best < node.cost {
				continue
			}

			hops := make([]*Resolver, len(node.hops), len(node.hops)+1)
			copy(hops, node.hops)
			hops = append(hops, r)

			cost := node.cost
			if contains(goals, next) {
				prev, found := results[next]
				if !found || cost < resultCost[next] || (cost == resultCost[next] && len(hops) < len(prev)) {
					results[next] = hops
					resultCost[next] = cost
				}
			} else {
				cost++
			}
			if best, ok := costs[next]; !ok || cost < best {
				costs[next] = cost
			}

			for _, key := range sg.possibleKeys(typeName, next) {
				frontier = append(frontier, &routeNode{location: next, key: key, cost: cost, hops: hops})
			}
		}
	}
	return results
}

func popCheapest(frontier *[]*routeNode) *routeNode {
	nodes := *frontier
	best := 0
	for i := 1; i < len(nodes); i++ {
		a, b := nodes[i], nodes[best]
		if a.cost < b.cost || (a.cost == b.cost && len(a.hops) < len(b.hops)) {
			best = i
		}
	}
	n := nodes[best]
	*frontier = append(nodes[:best], nodes[best+1:]...)
	return n
}

func contains(list []string, v string) bool {
	for _, e := range list {
		if e == v {
			return true
		}
	}
	return false
}
