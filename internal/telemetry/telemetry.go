//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package telemetry holds the names and attribute helpers shared by the
// tracing and metric packages.
package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// telemetry service constants.
const (
	ServiceName      = "telemetry"
	ServiceVersion   = "v0.1.0"
	ServiceNamespace = "trpc-go-workflow"
	InstrumentName   = "trpc.workflow.go"

	SpanNameRun           = "workflow.run"
	SpanNamePrefixNode    = "workflow.node"
	MetricNodeExecutions  = "workflow.node.executions"
	MetricRunDuration     = "workflow.run.duration"
	MetricRunDurationUnit = "s"
)

const (
	// ProtocolGRPC uses gRPC protocol for OTLP exporter.
	ProtocolGRPC string = "grpc"
	// ProtocolHTTP uses HTTP protocol for OTLP exporter.
	ProtocolHTTP string = "http"
)

// telemetry attributes constants.
var (
	KeyRunID      = "trpc.go.workflow.run_id"
	KeyNodeID     = "trpc.go.workflow.node_id"
	KeyNodeType   = "trpc.go.workflow.node_type"
	KeyNodeStatus = "trpc.go.workflow.node_status"
	KeyNodeCount  = "trpc.go.workflow.node_count"
	KeyErrorType  = "trpc.go.workflow.error_type"
	KeyRunOutcome = "trpc.go.workflow.run_outcome"
)

// NewNodeSpanName returns the span name of a node execution.
func NewNodeSpanName(nodeType string) string {
	if nodeType == "" {
		return SpanNamePrefixNode
	}
	return fmt.Sprintf("%s %s", SpanNamePrefixNode, nodeType)
}

// TraceRun sets the attributes of a run span.
func TraceRun(span trace.Span, runID string, nodeCount int) {
	span.SetAttributes(
		attribute.String(KeyRunID, runID),
		attribute.Int(KeyNodeCount, nodeCount),
	)
}

// TraceNode sets the attributes of a node span.
func TraceNode(span trace.Span, runID, nodeID, nodeType string) {
	span.SetAttributes(
		attribute.String(KeyRunID, runID),
		attribute.String(KeyNodeID, nodeID),
		attribute.String(KeyNodeType, nodeType),
	)
}

// NodeResultAttributes are the metric attributes of a finished node.
func NodeResultAttributes(nodeType, status, errorType string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(KeyNodeType, nodeType),
		attribute.String(KeyNodeStatus, status),
	}
	if errorType != "" {
		attrs = append(attrs, attribute.String(KeyErrorType, errorType))
	}
	return attrs
}

// NewGRPCConn creates a new gRPC connection to the OpenTelemetry Collector.
func NewGRPCConn(endpoint string) (*grpc.ClientConn, error) {
	// Note the use of insecure transport here. TLS is recommended in production.
	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection to collector: %w", err)
	}
	return conn, nil
}
