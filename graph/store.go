//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Store holds the nodes and edges of one graph for the lifetime of a session.
// It is safe for concurrent use. There is no delete operation.
type Store struct {
	mu        sync.RWMutex
	nodes     map[string]*Node
	nodeOrder []string
	edges     map[string]*Edge
	edgeOrder []string

	newID     func() string
	unchecked bool
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithIDGenerator overrides the identity allocator (uuid by default).
func WithIDGenerator(gen func() string) StoreOption {
	return func(s *Store) {
		s.newID = gen
	}
}

// WithUncheckedEdges makes AddEdge store edges unconditionally, without
// checking node existence, handle ownership or self loops.
func WithUncheckedEdges() StoreOption {
	return func(s *Store) {
		s.unchecked = true
	}
}

// NewStore creates an empty store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		nodes: make(map[string]*Node),
		edges: make(map[string]*Edge),
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateNode allocates a node of type nt at pos and adds it to the store.
func (s *Store) CreateNode(nt NodeType, pos Position) (*Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, err := NewNode(s.newID(), nt, pos)
	if err != nil {
		return nil, err
	}
	s.nodes[node.ID] = node
	s.nodeOrder = append(s.nodeOrder, node.ID)
	return node.Clone(), nil
}

// UpdateNodeData merges patch into the node's data. It reports whether the
// node exists; an absent id is a no-op.
func (s *Store) UpdateNodeData(id string, patch DataPatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, ok := s.nodes[id]
	if !ok {
		return false
	}
	patch.apply(&node.Data)
	return true
}

// SetPosition moves a node on the canvas.
func (s *Store) SetPosition(id string, pos Position) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, ok := s.nodes[id]
	if !ok {
		return false
	}
	node.Position = pos
	return true
}

// AddEdge connects an output port of srcNode to an input port of dstNode.
func (s *Store) AddEdge(srcNode, srcHandle, dstNode, dstHandle string) (*Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.unchecked {
		if err := s.checkEdge(srcNode, srcHandle, dstNode, dstHandle); err != nil {
			return nil, err
		}
	}
	edge := &Edge{
		ID:             s.newID(),
		SourceNodeID:   srcNode,
		SourceHandleID: srcHandle,
		TargetNodeID:   dstNode,
		TargetHandleID: dstHandle,
	}
	s.edges[edge.ID] = edge
	s.edgeOrder = append(s.edgeOrder, edge.ID)
	c := *edge
	return &c, nil
}

func (s *Store) checkEdge(srcNode, srcHandle, dstNode, dstHandle string) error {
	if srcNode == dstNode {
		return fmt.Errorf("%w: %s", ErrSelfLoop, srcNode)
	}
	src, ok := s.nodes[srcNode]
	if !ok {
		return fmt.Errorf("%w: source %s", ErrNodeNotFound, srcNode)
	}
	dst, ok := s.nodes[dstNode]
	if !ok {
		return fmt.Errorf("%w: target %s", ErrNodeNotFound, dstNode)
	}
	if _, ok := src.Output(srcHandle); !ok {
		return fmt.Errorf("%w: output %s on %s", ErrHandleNotOwned, srcHandle, srcNode)
	}
	if _, ok := dst.Input(dstHandle); !ok {
		return fmt.Errorf("%w: input %s on %s", ErrHandleNotOwned, dstHandle, dstNode)
	}
	return nil
}

// Node returns a copy of the node with the given id.
func (s *Store) Node(id string) (*Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	node, ok := s.nodes[id]
	if !ok {
		return nil, false
	}
	return node.Clone(), true
}

// Nodes returns copies of all nodes in creation order.
func (s *Store) Nodes() []*Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Node, 0, len(s.nodeOrder))
	for _, id := range s.nodeOrder {
		out = append(out, s.nodes[id].Clone())
	}
	return out
}

// NodeIDs returns all node ids in creation order.
func (s *Store) NodeIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.nodeOrder...)
}

// Edges returns copies of all edges in insertion order.
func (s *Store) Edges() []Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Edge, 0, len(s.edgeOrder))
	for _, id := range s.edgeOrder {
		out = append(out, *s.edges[id])
	}
	return out
}

// EdgesInto returns the edges targeting nodeID in insertion order.
func (s *Store) EdgesInto(nodeID string) []Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Edge
	for _, id := range s.edgeOrder {
		if e := s.edges[id]; e.TargetNodeID == nodeID {
			out = append(out, *e)
		}
	}
	return out
}

// Len returns the number of nodes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodeOrder)
}

// Reset puts every node back to idle and clears error messages. Content is
// cleared except on input-capture nodes.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.nodeOrder {
		node := s.nodes[id]
		node.Data.Status = StatusIdle
		node.Data.ErrorMessage = ""
		if !node.Type.IsInputCapture() {
			node.Data.Content = nil
		}
	}
}
