//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package graph

// PortRouter is implemented by composite outputs that carry one sub-value per
// data kind, such as an image together with its caption.
type PortRouter interface {
	PortValue(kind DataKind) (any, bool)
}

// routeOutputs computes the value published on each output port of node.
// A composite output is split per port only when the node declares output
// ports of differing kinds; otherwise every port gets the whole output.
func routeOutputs(node *Node, output any) map[string]any {
	values := make(map[string]any, len(node.Data.Outputs))
	router, composite := output.(PortRouter)
	split := composite && mixedKinds(node.Data.Outputs)
	for _, p := range node.Data.Outputs {
		if !split {
			values[p.ID] = output
			continue
		}
		if v, ok := router.PortValue(p.Kind); ok {
			values[p.ID] = v
		} else {
			values[p.ID] = output
		}
	}
	return values
}

func mixedKinds(ports []Port) bool {
	if len(ports) < 2 {
		return false
	}
	for _, p := range ports[1:] {
		if p.Kind != ports[0].Kind {
			return true
		}
	}
	return false
}
