//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package graph

// Plan is the result of scheduling one run.
type Plan struct {
	// Order holds every schedulable node exactly once, predecessors first.
	Order []string
	// Starved holds, in node order, the nodes whose in-degree never reached
	// zero: members of a cycle and everything downstream of one.
	Starved []string
	// Successors is the adjacency derived from the edges, one entry per edge.
	Successors map[string][]string
	// InDegree is the number of edges targeting each node.
	InDegree map[string]int
}

// Acyclic reports whether every node made it into the order.
func (p *Plan) Acyclic() bool {
	return len(p.Starved) == 0
}

// Schedule orders nodeIDs with Kahn's algorithm. Each edge adds one unit of
// in-degree to its target regardless of port. Ties among ready nodes follow
// the order of nodeIDs. Edges that mention unknown nodes are ignored.
func Schedule(nodeIDs []string, edges []Edge) *Plan {
	known := make(map[string]bool, len(nodeIDs))
	for _, id := range nodeIDs {
		known[id] = true
	}
	succ := make(map[string][]string, len(nodeIDs))
	indeg := make(map[string]int, len(nodeIDs))
	for _, id := range nodeIDs {
		indeg[id] = 0
	}
	for _, e := range edges {
		if !known[e.SourceNodeID] || !known[e.TargetNodeID] {
			continue
		}
		succ[e.SourceNodeID] = append(succ[e.SourceNodeID], e.TargetNodeID)
		indeg[e.TargetNodeID]++
	}

	remaining := make(map[string]int, len(indeg))
	queue := make([]string, 0, len(nodeIDs))
	for _, id := range nodeIDs {
		remaining[id] = indeg[id]
		if indeg[id] == 0 {
			queue = append(queue, id)
		}
	}
	order := make([]string, 0, len(nodeIDs))
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		order = append(order, u)
		for _, v := range succ[u] {
			remaining[v]--
			if remaining[v] == 0 {
				queue = append(queue, v)
			}
		}
	}

	var starved []string
	if len(order) < len(nodeIDs) {
		placed := make(map[string]bool, len(order))
		for _, id := range order {
			placed[id] = true
		}
		for _, id := range nodeIDs {
			if !placed[id] {
				starved = append(starved, id)
			}
		}
	}
	return &Plan{Order: order, Starved: starved, Successors: succ, InDegree: indeg}
}
