//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package graph

import "fmt"

// Port id suffixes. A port id is the owning node id followed by one of these.
const (
	SuffixInput        = "-input"
	SuffixInputImage   = "-input-image"
	SuffixInputText    = "-input-text"
	SuffixInputProduct = "-input-product"
	SuffixInputStyle   = "-input-style"
	SuffixOutput       = "-output"
	SuffixOutputImage  = "-output-image"
	SuffixOutputText   = "-output-text"
	SuffixOutputInfo   = "-output-info"
)

type portDef struct {
	suffix string
	label  string
	kind   DataKind
}

type template struct {
	label   string
	inputs  []portDef
	outputs []portDef
}

var templates = map[NodeType]template{
	NodeTypeTextInput: {
		label:   "Text Input",
		outputs: []portDef{{SuffixOutput, "Text", KindText}},
	},
	NodeTypeImageInput: {
		label:   "Image Input",
		outputs: []portDef{{SuffixOutput, "Image", KindImage}},
	},
	NodeTypeTextGenerator: {
		label:   "Text Generator",
		inputs:  []portDef{{SuffixInput, "Prompt", KindText}},
		outputs: []portDef{{SuffixOutput, "Text", KindText}},
	},
	NodeTypeImageEditor: {
		label: "Image Editor",
		inputs: []portDef{
			{SuffixInputImage, "Image", KindImage},
			{SuffixInputText, "Prompt", KindText},
		},
		outputs: []portDef{
			{SuffixOutputImage, "Image", KindImage},
			{SuffixOutputText, "Text", KindText},
		},
	},
	NodeTypeVideoGenerator: {
		label: "Video Generator",
		inputs: []portDef{
			{SuffixInputImage, "Image (Opt.)", KindImage},
			{SuffixInputText, "Prompt", KindText},
		},
		outputs: []portDef{{SuffixOutput, "Video", KindVideo}},
	},
	NodeTypeProduct: {
		label:   "Hispania Product",
		outputs: []portDef{{SuffixOutput, "Product", KindAny}},
	},
	NodeTypeSocialPost: {
		label: "Social Post Generator",
		inputs: []portDef{
			{SuffixInputProduct, "Product", KindAny},
			{SuffixInputStyle, "Style (opt.)", KindText},
		},
		outputs: []portDef{{SuffixOutput, "Posts JSON", KindText}},
	},
	NodeTypeProductImageLoader: {
		label:  "Product Image Loader",
		inputs: []portDef{{SuffixInputProduct, "Product", KindAny}},
		outputs: []portDef{
			{SuffixOutputImage, "Image", KindImage},
			{SuffixOutputInfo, "Info", KindText},
		},
	},
	NodeTypeExporter: {
		label:   "Exporter",
		inputs:  []portDef{{SuffixInput, "Data", KindAny}},
		outputs: []portDef{{SuffixOutput, "Pass-through", KindAny}},
	},
	NodeTypeOutputDisplay: {
		label:  "Output",
		inputs: []portDef{{SuffixInput, "Input", KindAny}},
	},
}

// NodeTypes returns every known node type in palette order.
func NodeTypes() []NodeType {
	return []NodeType{
		NodeTypeTextInput,
		NodeTypeImageInput,
		NodeTypeTextGenerator,
		NodeTypeImageEditor,
		NodeTypeVideoGenerator,
		NodeTypeProduct,
		NodeTypeSocialPost,
		NodeTypeProductImageLoader,
		NodeTypeExporter,
		NodeTypeOutputDisplay,
	}
}

// Valid reports whether nt belongs to the closed set of node types.
func (nt NodeType) Valid() bool {
	_, ok := templates[nt]
	return ok
}

// PortID builds the id of a port owned by nodeID.
func PortID(nodeID, suffix string) string {
	return nodeID + suffix
}

// NewNode builds a node of the given type with its port template, idle
// status and no content. It fails only for unknown types.
func NewNode(id string, nt NodeType, pos Position) (*Node, error) {
	tpl, ok := templates[nt]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNodeType, nt)
	}
	return &Node{
		ID:       id,
		Type:     nt,
		Position: pos,
		Data: NodeData{
			Label:   tpl.label,
			Inputs:  buildPorts(id, tpl.inputs),
			Outputs: buildPorts(id, tpl.outputs),
			Status:  StatusIdle,
			Scale:   1,
		},
	}, nil
}

func buildPorts(id string, specs []portDef) []Port {
	ports := make([]Port, 0, len(specs))
	for _, s := range specs {
		ports = append(ports, Port{ID: PortID(id, s.suffix), Label: s.label, Kind: s.kind})
	}
	return ports
}
