package seo

import (
	"math"

	"github.com/fyrsmithlabs/linkd/internal/catalog"
)

// PageRank parameters.
const (
	dampingFactor   = 0.85
	pillarBoost     = 1.2
	maxIterations   = 50
	convergenceEps  = 1e-4
	topicIterations = 10
)

// globalPageRank runs iterative PageRank over the whole link graph and
// normalizes ranks to 0-100 (the best-ranked article scores 100).
func globalPageRank(articles map[int]*catalog.Article, graph map[int][]int) map[int]int {
	nodes := make([]int, 0, len(articles))
	for id := range articles {
		nodes = append(nodes, id)
	}
	return iterate(nodes, articles, graph, maxIterations, true)
}

// topicPageRank runs PageRank on the induced subgraph of each topic
// cluster with at least two members, for a fixed iteration count.
func topicPageRank(articles map[int]*catalog.Article, graph map[int][]int) map[string]map[int]int {
	clusters := make(map[string][]int)
	for id, a := range articles {
		if a.TopicCluster == "" {
			continue
		}
		clusters[a.TopicCluster] = append(clusters[a.TopicCluster], id)
	}

	out := make(map[string]map[int]int)
	for cluster, members := range clusters {
		if len(members) < 2 {
			continue
		}
		memberSet := make(map[int]struct{}, len(members))
		for _, id := range members {
			memberSet[id] = struct{}{}
		}
		sub := make(map[int][]int)
		for _, id := range members {
			for _, t := range graph[id] {
				if _, in := memberSet[t]; in {
					sub[id] = append(sub[id], t)
				}
			}
		}
		out[cluster] = iterate(members, articles, sub, topicIterations, false)
	}
	return out
}

// iterate runs the PageRank recurrence over the given nodes and edges.
// When early is set, iteration stops once the max per-node delta drops
// below the convergence epsilon.
func iterate(nodes []int, articles map[int]*catalog.Article, graph map[int][]int, rounds int, early bool) map[int]int {
	n := len(nodes)
	if n == 0 {
		return map[int]int{}
	}

	nodeSet := make(map[int]struct{}, n)
	for _, id := range nodes {
		nodeSet[id] = struct{}{}
	}

	// Inbound adjacency and out-degrees restricted to the node set.
	inbound := make(map[int][]int, n)
	outdeg := make(map[int]int, n)
	for _, s := range nodes {
		for _, t := range graph[s] {
			if _, in := nodeSet[t]; !in {
				continue
			}
			inbound[t] = append(inbound[t], s)
			outdeg[s]++
		}
	}

	rank := make(map[int]float64, n)
	for _, id := range nodes {
		rank[id] = 1.0 / float64(n)
	}

	base := (1 - dampingFactor) / float64(n)
	for i := 0; i < rounds; i++ {
		next := make(map[int]float64, n)
		maxDelta := 0.0
		for _, p := range nodes {
			sum := 0.0
			for _, s := range inbound[p] {
				sum += rank[s] / float64(outdeg[s])
			}
			r := base + dampingFactor*sum
			if a, ok := articles[p]; ok && a.IsPillar {
				r *= pillarBoost
			}
			next[p] = r
			if d := math.Abs(r - rank[p]); d > maxDelta {
				maxDelta = d
			}
		}
		rank = next
		if early && maxDelta < convergenceEps {
			break
		}
	}

	maxRank := 0.0
	for _, r := range rank {
		if r > maxRank {
			maxRank = r
		}
	}

	out := make(map[int]int, n)
	if maxRank == 0 {
		for _, id := range nodes {
			out[id] = 0
		}
		return out
	}
	for id, r := range rank {
		out[id] = int(math.Round(r / maxRank * 100))
	}
	return out
}
