// Package runtime defines the inference request/response data model and the
// pluggable runtime contract every per-model executor implements. The
// engine treats parameters and outputs opaquely; it never interprets them.
package runtime

import (
	"encoding/json"
	"fmt"
)

// ParamKind tags the type carried by a ParamValue.
type ParamKind int

const (
	ParamBool ParamKind = iota
	ParamInt64
	ParamFloat64
	ParamString
)

// ParamValue is a tagged scalar used for request parameters and output
// payload data, mirroring the dual OpenAI/native schemas the (out of
// scope) HTTP front-end translates from.
type ParamValue struct {
	Kind   ParamKind
	Bool   bool
	Int64  int64
	Float  float64
	String string
}

func NewBoolParam(v bool) ParamValue     { return ParamValue{Kind: ParamBool, Bool: v} }
func NewInt64Param(v int64) ParamValue   { return ParamValue{Kind: ParamInt64, Int64: v} }
func NewFloatParam(v float64) ParamValue { return ParamValue{Kind: ParamFloat64, Float: v} }
func NewStringParam(v string) ParamValue { return ParamValue{Kind: ParamString, String: v} }

type jsonParamValue struct {
	Kind  string   `json:"kind"`
	Bool  *bool    `json:"bool,omitempty"`
	Int64 *int64   `json:"int64,omitempty"`
	Float *float64 `json:"float64,omitempty"`
	Str   *string  `json:"string,omitempty"`
}

// MarshalJSON encodes the tagged value as a small discriminated object,
// the same envelope idiom the teacher uses for models.ServerMsg.
func (p ParamValue) MarshalJSON() ([]byte, error) {
	switch p.Kind {
	case ParamBool:
		return json.Marshal(jsonParamValue{Kind: "bool", Bool: &p.Bool})
	case ParamInt64:
		return json.Marshal(jsonParamValue{Kind: "int64", Int64: &p.Int64})
	case ParamFloat64:
		return json.Marshal(jsonParamValue{Kind: "float64", Float: &p.Float})
	case ParamString:
		return json.Marshal(jsonParamValue{Kind: "string", Str: &p.String})
	default:
		return nil, fmt.Errorf("runtime: unknown ParamKind %d", p.Kind)
	}
}

func (p *ParamValue) UnmarshalJSON(data []byte) error {
	var raw jsonParamValue
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch raw.Kind {
	case "bool":
		if raw.Bool == nil {
			return fmt.Errorf("runtime: missing bool value")
		}
		*p = NewBoolParam(*raw.Bool)
	case "int64":
		if raw.Int64 == nil {
			return fmt.Errorf("runtime: missing int64 value")
		}
		*p = NewInt64Param(*raw.Int64)
	case "float64":
		if raw.Float == nil {
			return fmt.Errorf("runtime: missing float64 value")
		}
		*p = NewFloatParam(*raw.Float)
	case "string":
		if raw.Str == nil {
			return fmt.Errorf("runtime: missing string value")
		}
		*p = NewStringParam(*raw.Str)
	default:
		return fmt.Errorf("runtime: unknown ParamKind %q", raw.Kind)
	}
	return nil
}

// InferenceRequest carries everything the engine pushes through a model's
// buffer. ModelVersion is optional; Parameters and Outputs are opaque to
// the core.
type InferenceRequest struct {
	ModelName    string
	ModelVersion *string
	RequestID    string
	Parameters   map[string]ParamValue
	Outputs      []string
}

// ErrorInfo describes a failed inference response.
type ErrorInfo struct {
	Code    string
	Message string
}

// Output carries one named tensor result: shape, element datatype tag,
// opaque parameters, and payload data.
type Output struct {
	Name     string
	Shape    []uint64
	Datatype string
	Params   map[string]ParamValue
	Data     ParamValue
}

// InferenceResponse is a tagged union of {success(outputs), failure(error)}.
// A nil Error means success; Outputs is only meaningful on success.
type InferenceResponse struct {
	Outputs []Output
	Error   *ErrorInfo
}

// Success reports whether this response represents a successful inference.
func (r InferenceResponse) Success() bool {
	return r.Error == nil
}

// NewFailure builds a failure response with the given error code/message.
func NewFailure(code, message string) InferenceResponse {
	return InferenceResponse{Error: &ErrorInfo{Code: code, Message: message}}
}

// NewSuccess builds a successful response carrying the given outputs.
func NewSuccess(outputs []Output) InferenceResponse {
	return InferenceResponse{Outputs: outputs}
}
