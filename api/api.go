// Package api includes the small set of value-encoding helpers and
// decoupling interfaces shared between end users of wrtcore and its
// internal packages.
//
// Adapted from wazero's api/wasm.go (ExternType/ValueType constants, the
// EncodeX/DecodeX uint64<->Go-type helpers, and the Module/Function/
// Memory/Global decoupling-interface shape), rebound to wrtcore's own
// concrete types (internal/interp.Instance, internal/memory.Instance)
// instead of wazero's ModuleBuilder/Runtime, and trimmed to what this
// runtime's Component Model scope actually needs.
package api

import (
	"context"
	"fmt"
	"math"
)

// ExternType classifies imports and exports with their respective types.
type ExternType = byte

const (
	ExternTypeFunc   ExternType = 0x00
	ExternTypeTable  ExternType = 0x01
	ExternTypeMemory ExternType = 0x02
	ExternTypeGlobal ExternType = 0x03
)

// ValueType is a core Wasm value's type tag, re-exported from
// internal/module so embedders never need to import an internal package
// to describe a function signature.
type ValueType = byte

const (
	ValueTypeI32       ValueType = 0x7f
	ValueTypeI64       ValueType = 0x7e
	ValueTypeF32       ValueType = 0x7d
	ValueTypeF64       ValueType = 0x7c
	ValueTypeExternref ValueType = 0x6f
)

// ValueTypeName returns the Wasm text-format name of t, or "unknown".
func ValueTypeName(t ValueType) string {
	switch t {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	case ValueTypeExternref:
		return "externref"
	default:
		return "unknown"
	}
}

// EncodeI32 encodes input as the uint64 register representation the
// interpreter's value stack uses for a ValueTypeI32.
func EncodeI32(input int32) uint64 { return uint64(uint32(input)) }

// EncodeI64 encodes input as a ValueTypeI64 register value.
func EncodeI64(input int64) uint64 { return uint64(input) }

// EncodeF32 encodes input as a ValueTypeF32 register value.
func EncodeF32(input float32) uint64 { return uint64(math.Float32bits(input)) }

// DecodeF32 decodes a ValueTypeF32 register value.
func DecodeF32(input uint64) float32 { return math.Float32frombits(uint32(input)) }

// EncodeF64 encodes input as a ValueTypeF64 register value.
func EncodeF64(input float64) uint64 { return math.Float64bits(input) }

// DecodeF64 decodes a ValueTypeF64 register value.
func DecodeF64(input uint64) float64 { return math.Float64frombits(input) }

// Closer releases resources held by an instantiated module.
type Closer interface {
	Close(context.Context) error
}

// Function is a callable export, the embedder-facing wrapper around
// internal/interp.Instance.Call for one fixed function index.
type Function interface {
	fmt.Stringer

	// ParamTypes are the value types this function accepts, in order.
	ParamTypes() []ValueType

	// ResultTypes are the value types this function returns, in order.
	ResultTypes() []ValueType

	// Call invokes the function, fuel-metered against the context's
	// active task if one is present (see internal/async.Task).
	Call(ctx context.Context, params ...uint64) ([]uint64, error)
}
