//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package graph provides the workflow graph model, its store, the topological
// scheduler and the executor that runs a graph node by node.
package graph

// NodeType is the closed set of node variants a graph can hold.
type NodeType string

// Node type constants.
const (
	NodeTypeTextInput          NodeType = "TEXT_INPUT"
	NodeTypeImageInput         NodeType = "IMAGE_INPUT"
	NodeTypeTextGenerator      NodeType = "TEXT_GENERATOR"
	NodeTypeImageEditor        NodeType = "IMAGE_EDITOR"
	NodeTypeVideoGenerator     NodeType = "VIDEO_GENERATOR"
	NodeTypeOutputDisplay      NodeType = "OUTPUT_DISPLAY"
	NodeTypeProduct            NodeType = "PRODUCT"
	NodeTypeSocialPost         NodeType = "SOCIAL_POST_GENERATOR"
	NodeTypeExporter           NodeType = "EXPORTER"
	NodeTypeProductImageLoader NodeType = "PRODUCT_IMAGE_LOADER"
)

// String returns the string representation of the node type.
func (nt NodeType) String() string {
	return string(nt)
}

// IsInputCapture reports whether nodes of this type hold user supplied
// content that survives the reset phase of a run.
func (nt NodeType) IsInputCapture() bool {
	switch nt {
	case NodeTypeTextInput, NodeTypeImageInput, NodeTypeProduct:
		return true
	default:
		return false
	}
}

// Status is the per-run state of a node.
type Status string

// Status constants.
const (
	StatusIdle       Status = "IDLE"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusError      Status = "ERROR"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// Terminal reports whether the status ends a node's part in a run.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// DataKind is the kind of value a port carries.
type DataKind string

// Data kind constants.
const (
	KindText  DataKind = "text"
	KindImage DataKind = "image"
	KindVideo DataKind = "video"
	KindAny   DataKind = "any"
)

// Port is a typed connection point on a node.
type Port struct {
	ID    string   `json:"id"`
	Label string   `json:"label"`
	Kind  DataKind `json:"type"`
}

// Position is the canvas position of a node. The engine never reads it.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Progress is the transient content of a node while it is processing.
type Progress struct {
	Progress string `json:"progress"`
}

// NodeData holds the mutable part of a node.
type NodeData struct {
	Label        string  `json:"label"`
	Inputs       []Port  `json:"inputs"`
	Outputs      []Port  `json:"outputs"`
	Content      any     `json:"content"`
	Status       Status  `json:"status"`
	ErrorMessage string  `json:"errorMessage,omitempty"`
	Scale        float64 `json:"scale,omitempty"`
}

// Node is a typed unit of work with declared ports.
type Node struct {
	ID       string   `json:"id"`
	Type     NodeType `json:"type"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// Clone returns a copy of the node whose port slices are not shared.
// Content is copied by reference.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	c.Data.Inputs = append([]Port(nil), n.Data.Inputs...)
	c.Data.Outputs = append([]Port(nil), n.Data.Outputs...)
	return &c
}

// Input returns the input port with the given id.
func (n *Node) Input(id string) (Port, bool) {
	return findPort(n.Data.Inputs, id)
}

// Output returns the output port with the given id.
func (n *Node) Output(id string) (Port, bool) {
	return findPort(n.Data.Outputs, id)
}

func findPort(ports []Port, id string) (Port, bool) {
	for _, p := range ports {
		if p.ID == id {
			return p, true
		}
	}
	return Port{}, false
}

// Edge is a directed connection from an output port to an input port.
type Edge struct {
	ID             string `json:"id"`
	SourceNodeID   string `json:"sourceNodeId"`
	SourceHandleID string `json:"sourceHandleId"`
	TargetNodeID   string `json:"targetNodeId"`
	TargetHandleID string `json:"targetHandleId"`
}

// DataPatch is a merge-style update of NodeData. Only non-nil fields are
// applied. Ports are fixed at creation and cannot be patched.
type DataPatch struct {
	Label        *string
	Content      *any
	Status       *Status
	ErrorMessage *string
	Scale        *float64
}

// SetContent returns a patch that replaces the content.
func SetContent(content any) DataPatch {
	return DataPatch{Content: &content}
}

// SetStatus returns a patch that replaces the status.
func SetStatus(status Status) DataPatch {
	return DataPatch{Status: &status}
}

// WithContent adds a content replacement to the patch.
func (p DataPatch) WithContent(content any) DataPatch {
	p.Content = &content
	return p
}

// WithError adds an error message replacement to the patch.
func (p DataPatch) WithError(msg string) DataPatch {
	p.ErrorMessage = &msg
	return p
}

func (p DataPatch) apply(d *NodeData) {
	if p.Label != nil {
		d.Label = *p.Label
	}
	if p.Content != nil {
		d.Content = *p.Content
	}
	if p.Status != nil {
		d.Status = *p.Status
	}
	if p.ErrorMessage != nil {
		d.ErrorMessage = *p.ErrorMessage
	}
	if p.Scale != nil {
		d.Scale = *p.Scale
	}
}
