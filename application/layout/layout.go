// Package layout computes left-to-right layered positions for a canvas
// graph. The pipeline is the classic Sugiyama sequence: break cycles, rank
// by longest path, reduce crossings with barycenter sweeps, then assign
// coordinates. Results are deterministic for a given input order.
package layout

import (
	"sort"
)

// Config sets the box and gap dimensions of the layout.
type Config struct {
	NodeWidth  float64
	NodeHeight float64
	NodeSep    float64 // vertical gap between boxes in a rank
	RankSep    float64 // horizontal gap between ranks
}

// DefaultConfig matches the editor's node card dimensions.
func DefaultConfig() Config {
	return Config{
		NodeWidth:  180,
		NodeHeight: 90,
		NodeSep:    40,
		RankSep:    80,
	}
}

// Position is a computed top-left coordinate for one node.
type Position struct {
	X float64
	Y float64
}

// Edge is a directed edge between two node IDs.
type Edge struct {
	From string
	To   string
}

type layoutNode struct {
	id    string
	index int // position in the caller's node slice, the stable tie-break
	rank  int
	order int
	in    []*layoutNode
	out   []*layoutNode
}

const orderingSweeps = 4

// Compute lays out the graph and returns a position per node ID. Edges
// referencing unknown nodes are ignored. An empty node list yields an empty
// map.
func Compute(nodeIDs []string, edges []Edge, cfg Config) map[string]Position {
	positions := make(map[string]Position, len(nodeIDs))
	if len(nodeIDs) == 0 {
		return positions
	}

	byID := make(map[string]*layoutNode, len(nodeIDs))
	nodes := make([]*layoutNode, 0, len(nodeIDs))
	for i, id := range nodeIDs {
		if _, dup := byID[id]; dup {
			continue
		}
		n := &layoutNode{id: id, index: i}
		byID[id] = n
		nodes = append(nodes, n)
	}

	for _, e := range edges {
		from, to := byID[e.From], byID[e.To]
		if from == nil || to == nil || from == to {
			continue
		}
		from.out = append(from.out, to)
		to.in = append(to.in, from)
	}

	dropBackEdges(nodes)
	rankLongestPath(nodes)
	ranks := buildRanks(nodes)
	orderRanks(ranks)
	assignCoordinates(ranks, cfg, positions)
	return positions
}

// dropBackEdges removes edges that close a cycle, found by DFS in input
// order. The remaining graph is acyclic.
func dropBackEdges(nodes []*layoutNode) {
	const (
		white = iota
		gray
		black
	)
	state := make(map[*layoutNode]int, len(nodes))

	var visit func(n *layoutNode)
	visit = func(n *layoutNode) {
		state[n] = gray
		kept := n.out[:0]
		for _, next := range n.out {
			if state[next] == gray {
				next.in = removeNode(next.in, n)
				continue
			}
			kept = append(kept, next)
			if state[next] == white {
				visit(next)
			}
		}
		n.out = kept
		state[n] = black
	}

	for _, n := range nodes {
		if state[n] == white {
			visit(n)
		}
	}
}

func removeNode(list []*layoutNode, target *layoutNode) []*layoutNode {
	for i, n := range list {
		if n == target {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// rankLongestPath assigns each node the length of the longest incoming path
// from a source, so every edge points to a strictly higher rank.
func rankLongestPath(nodes []*layoutNode) {
	indegree := make(map[*layoutNode]int, len(nodes))
	queue := make([]*layoutNode, 0, len(nodes))
	for _, n := range nodes {
		indegree[n] = len(n.in)
		if len(n.in) == 0 {
			queue = append(queue, n)
		}
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, next := range n.out {
			if n.rank+1 > next.rank {
				next.rank = n.rank + 1
			}
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
}

func buildRanks(nodes []*layoutNode) [][]*layoutNode {
	maxRank := 0
	for _, n := range nodes {
		if n.rank > maxRank {
			maxRank = n.rank
		}
	}
	ranks := make([][]*layoutNode, maxRank+1)
	for _, n := range nodes {
		ranks[n.rank] = append(ranks[n.rank], n)
	}
	for _, rank := range ranks {
		for i, n := range rank {
			n.order = i
		}
	}
	return ranks
}

// orderRanks runs alternating barycenter sweeps to reduce edge crossings.
// Nodes without neighbors in the fixed rank keep their slot; ties fall back
// to input order.
func orderRanks(ranks [][]*layoutNode) {
	for sweep := 0; sweep < orderingSweeps; sweep++ {
		if sweep%2 == 0 {
			for r := 1; r < len(ranks); r++ {
				sortByBarycenter(ranks[r], true)
			}
		} else {
			for r := len(ranks) - 2; r >= 0; r-- {
				sortByBarycenter(ranks[r], false)
			}
		}
	}
}

func sortByBarycenter(rank []*layoutNode, useIncoming bool) {
	type keyed struct {
		node *layoutNode
		key  float64
	}
	keys := make([]keyed, len(rank))
	for i, n := range rank {
		neighbors := n.out
		if useIncoming {
			neighbors = n.in
		}
		if len(neighbors) == 0 {
			keys[i] = keyed{node: n, key: float64(n.order)}
			continue
		}
		sum := 0.0
		for _, m := range neighbors {
			sum += float64(m.order)
		}
		keys[i] = keyed{node: n, key: sum / float64(len(neighbors))}
	}
	sort.SliceStable(keys, func(a, b int) bool {
		if keys[a].key != keys[b].key {
			return keys[a].key < keys[b].key
		}
		return keys[a].node.index < keys[b].node.index
	})
	for i, k := range keys {
		rank[i] = k.node
		k.node.order = i
	}
}

// assignCoordinates turns ranks and orders into pixel positions. Each rank
// is centered vertically on the tallest rank.
func assignCoordinates(ranks [][]*layoutNode, cfg Config, out map[string]Position) {
	maxCount := 0
	for _, rank := range ranks {
		if len(rank) > maxCount {
			maxCount = len(rank)
		}
	}
	rowPitch := cfg.NodeHeight + cfg.NodeSep
	totalHeight := float64(maxCount)*rowPitch - cfg.NodeSep

	for r, rank := range ranks {
		rankHeight := float64(len(rank))*rowPitch - cfg.NodeSep
		top := (totalHeight - rankHeight) / 2
		x := float64(r) * (cfg.NodeWidth + cfg.RankSep)
		for i, n := range rank {
			out[n.id] = Position{
				X: x,
				Y: top + float64(i)*rowPitch,
			}
		}
	}
}
