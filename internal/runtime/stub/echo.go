// Package stub provides a trivial runtime used by dispatcher tests and by
// cmd/dispatchd when no real model plugin is configured for a discovered
// model.
package stub

import (
	"context"

	"github.com/galemind/dispatch-core/internal/modelid"
	"github.com/galemind/dispatch-core/internal/runtime"
)

// EchoRuntime answers every request with a success response whose single
// output carries the caller's request id back as string data.
type EchoRuntime struct {
	id modelid.ModelID
}

// New creates an EchoRuntime for the given model id.
func New(id modelid.ModelID) *EchoRuntime {
	return &EchoRuntime{id: id}
}

func (e *EchoRuntime) ModelID() modelid.ModelID {
	return e.id
}

func (e *EchoRuntime) ProcessSingle(_ context.Context, req runtime.InferenceRequest) runtime.InferenceResponse {
	return e.respond(req)
}

func (e *EchoRuntime) ProcessBatch(_ context.Context, reqs []runtime.InferenceRequest) []runtime.InferenceResponse {
	resp := make([]runtime.InferenceResponse, len(reqs))
	for i, req := range reqs {
		resp[i] = e.respond(req)
	}
	return resp
}

func (e *EchoRuntime) respond(req runtime.InferenceRequest) runtime.InferenceResponse {
	return runtime.NewSuccess([]runtime.Output{
		{
			Name:     "request_id",
			Shape:    []uint64{1},
			Datatype: "string",
			Data:     runtime.NewStringParam(req.RequestID),
		},
	})
}
