package community

import (
	"sort"
)

// Edge is an undirected weighted edge between two node names.
type Edge struct {
	A, B   string
	Weight int
}

// LabelPropagation detects communities with the label propagation algorithm.
type LabelPropagation struct {
	MaxIterations int
}

func NewLabelPropagation() *LabelPropagation {
	return &LabelPropagation{MaxIterations: 20}
}

// Detect returns the communities of two or more nodes, each sorted by name,
// largest community first.
func (d *LabelPropagation) Detect(nodes []string, edges []Edge) [][]string {
	if len(nodes) == 0 {
		return nil
	}

	adj := make(map[string]map[string]int, len(nodes))
	for _, n := range nodes {
		adj[n] = make(map[string]int)
	}
	for _, e := range edges {
		if e.A == e.B {
			continue
		}
		if _, ok := adj[e.A]; !ok {
			continue
		}
		if _, ok := adj[e.B]; !ok {
			continue
		}
		w := e.Weight
		if w <= 0 {
			w = 1
		}
		adj[e.A][e.B] += w
		adj[e.B][e.A] += w
	}

	// Every node starts in its own community.
	labels := make(map[string]string, len(nodes))
	for _, n := range nodes {
		labels[n] = n
	}

	order := append([]string(nil), nodes...)
	sort.Strings(order)

	for iter := 0; iter < d.MaxIterations; iter++ {
		changed := 0
		for _, u := range order {
			neighbors := adj[u]
			if len(neighbors) == 0 {
				continue
			}

			counts := make(map[string]int)
			maxCount := 0
			for v, w := range neighbors {
				counts[labels[v]] += w
				if counts[labels[v]] > maxCount {
					maxCount = counts[labels[v]]
				}
			}

			// Ties keep the current label, otherwise the largest label wins.
			if counts[labels[u]] == maxCount {
				continue
			}
			best := ""
			for label, c := range counts {
				if c == maxCount && label > best {
					best = label
				}
			}
			labels[u] = best
			changed++
		}
		if changed == 0 {
			break
		}
	}

	groups := make(map[string][]string)
	for n, label := range labels {
		groups[label] = append(groups[label], n)
	}

	var communities [][]string
	for _, g := range groups {
		if len(g) >= 2 {
			sort.Strings(g)
			communities = append(communities, g)
		}
	}
	sort.Slice(communities, func(i, j int) bool {
		if len(communities[i]) != len(communities[j]) {
			return len(communities[i]) > len(communities[j])
		}
		return communities[i][0] < communities[j][0]
	})
	return communities
}
