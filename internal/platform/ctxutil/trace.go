// Package ctxutil carries correlation ids across HTTP requests, job attempts
// and agent processes.
package ctxutil

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// Agent processes receive the ids of the job that spawned them through these
// variables.
const (
	EnvTraceID = "SEOFLOW_TRACE_ID"
	EnvJobID   = "SEOFLOW_JOB_ID"
)

type traceDataKey struct{}

type TraceData struct {
	TraceID   string
	RequestID string
	JobID     string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if td, ok := ctx.Value(traceDataKey{}).(*TraceData); ok {
		return td
	}
	return nil
}

// SpanTraceID returns the trace id of the span active in ctx, or "".
func SpanTraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// ForJob returns ctx with trace data naming jobID. The request id of an
// enclosing request is kept; the trace id falls back to the active span.
func ForJob(ctx context.Context, jobID string) context.Context {
	td := &TraceData{JobID: jobID}
	if prev := GetTraceData(ctx); prev != nil {
		td.TraceID, td.RequestID = prev.TraceID, prev.RequestID
	}
	if tid := SpanTraceID(ctx); tid != "" {
		td.TraceID = tid
	}
	return WithTraceData(ctx, td)
}

// Fields lists the non-empty ids as logger key/value pairs.
func (td *TraceData) Fields() []interface{} {
	if td == nil {
		return nil
	}
	var out []interface{}
	if td.TraceID != "" {
		out = append(out, "trace_id", td.TraceID)
	}
	if td.RequestID != "" {
		out = append(out, "request_id", td.RequestID)
	}
	if td.JobID != "" {
		out = append(out, "job_id", td.JobID)
	}
	return out
}

// Env renders the trace and job ids as KEY=value pairs for a child process.
func (td *TraceData) Env() []string {
	if td == nil {
		return nil
	}
	var out []string
	if td.TraceID != "" {
		out = append(out, EnvTraceID+"="+td.TraceID)
	}
	if td.JobID != "" {
		out = append(out, EnvJobID+"="+td.JobID)
	}
	return out
}

// FromEnv reads the ids a parent passed with Env. Nil when neither is set.
func FromEnv(getenv func(string) string) *TraceData {
	td := &TraceData{TraceID: getenv(EnvTraceID), JobID: getenv(EnvJobID)}
	if td.TraceID == "" && td.JobID == "" {
		return nil
	}
	return td
}
