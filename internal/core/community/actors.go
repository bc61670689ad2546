package community

import "sort"

// Link ties a threat actor to an entity key such as "Malware:X-Agent".
type Link struct {
	Actor  string `json:"actor"`
	Entity string `json:"entity"`
}

// Cluster is a group of threat actors and the entities they have in common.
type Cluster struct {
	Actors []string `json:"actors"`
	Shared []string `json:"shared"`
}

// ActorClusters groups actors that share at least minShared entities with a
// neighbour, then reports the entities linked to two or more cluster members.
func ActorClusters(links []Link, minShared int) []Cluster {
	if minShared <= 0 {
		minShared = 1
	}

	byEntity := make(map[string]map[string]bool)
	actorSet := make(map[string]bool)
	for _, l := range links {
		if l.Actor == "" || l.Entity == "" {
			continue
		}
		if byEntity[l.Entity] == nil {
			byEntity[l.Entity] = make(map[string]bool)
		}
		byEntity[l.Entity][l.Actor] = true
		actorSet[l.Actor] = true
	}

	type pair struct{ a, b string }
	shared := make(map[pair]int)
	for _, actors := range byEntity {
		names := sortedKeys(actors)
		for i := 0; i < len(names); i++ {
			for j := i + 1; j < len(names); j++ {
				shared[pair{names[i], names[j]}]++
			}
		}
	}

	var edges []Edge
	for p, n := range shared {
		if n >= minShared {
			edges = append(edges, Edge{A: p.a, B: p.b, Weight: n})
		}
	}

	communities := NewLabelPropagation().Detect(sortedKeys(actorSet), edges)
	clusters := make([]Cluster, 0, len(communities))
	for _, members := range communities {
		in := make(map[string]bool, len(members))
		for _, m := range members {
			in[m] = true
		}
		var common []string
		for entity, actors := range byEntity {
			n := 0
			for a := range actors {
				if in[a] {
					n++
				}
			}
			if n >= 2 {
				common = append(common, entity)
			}
		}
		sort.Strings(common)
		clusters = append(clusters, Cluster{Actors: members, Shared: common})
	}
	return clusters
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
