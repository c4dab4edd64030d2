// Package otel wires OpenTelemetry tracing into the HTTP surfaces. Spans
// are recorded against the global tracer provider; exporter setup is left
// to the embedding environment.
package otel

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/agentmesh/agentmesh"

// Middleware instruments an HTTP handler tree with server spans.
func Middleware(operation string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, operation)
	}
}

// Tracer returns the service tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// AgentAttr labels a span with the target agent name.
func AgentAttr(name string) attribute.KeyValue {
	return attribute.String("agentmesh.agent", name)
}

// TaskAttr labels a span with the task id.
func TaskAttr(id string) attribute.KeyValue {
	return attribute.String("agentmesh.task_id", id)
}
