package runtime

import (
	"context"

	"github.com/galemind/dispatch-core/internal/modelid"
)

// Runtime is the abstract capability every pluggable model implements.
// Implementations must be safe to call concurrently from multiple
// goroutines; the dispatcher shares one Runtime handle across every
// flush for a given model.
type Runtime interface {
	// ModelID identifies the model this runtime serves.
	ModelID() modelid.ModelID

	// ProcessSingle runs one request outside of batching. It is total: it
	// never panics to the caller, returning a failure response instead.
	ProcessSingle(ctx context.Context, req InferenceRequest) InferenceResponse

	// ProcessBatch runs a batch of requests and must return a response per
	// input, aligned to input order. If the runtime cannot honor a
	// request it still emits a failure response for it rather than
	// shortening the result.
	ProcessBatch(ctx context.Context, reqs []InferenceRequest) []InferenceResponse
}
