// Copyright 2026 the Tapevm Authors
// SPDX-License-Identifier: Apache-2.0

package tapevm

import "context"

// AbiValueRef is a borrowed view of an argument passed to a host call
// (§4.4). Bytes and Str are views over arena-backed storage; the host must
// not retain them past the call. Agg is an opaque handle the host may pass
// back into the VM (e.g. as a later argument) but cannot inspect directly.
type AbiValueRef struct {
	Kind ValueKind

	I64     int64
	U64     uint64
	F64     float64
	Bool    bool
	Decimal Decimal
	Bytes   []byte
	Str     string
	Agg     AggHandle
}

// OwnedValue is a value returned from a host call. Unlike AbiValueRef, Bytes
// and Str are owned by the caller and get copied into the run's arenas by
// the VM on return (§4.3.4); the host is free to reuse its own buffers
// afterward.
type OwnedValue struct {
	Kind ValueKind

	I64     int64
	U64     uint64
	F64     float64
	Bool    bool
	Decimal Decimal
	Bytes   []byte
	Str     string
	Agg     AggHandle
}

// EffectToken is the linear capability threaded through call/host_call to
// order host-visible side effects (§4.3.3, §5). It carries no data of its
// own; its only role is forcing the VM to serialize host calls one at a
// time per run.
type EffectToken struct{}

// HostError is the opaque failure a Host implementation may return from
// Call. The VM wraps it into a Trap of kind TrapHostError without
// interpreting it.
type HostError struct {
	Code    string
	Message string
}

func (e *HostError) Error() string {
	if e.Message == "" {
		return "tapevm: host error: " + e.Code
	}
	return "tapevm: host error: " + e.Code + ": " + e.Message
}

// ResourceKey identifies an external input or piece of host state a host
// call observed, recorded via AccessSink so a caller (e.g. a graph executor
// layered on top of the VM) can track dependencies across runs.
type ResourceKey struct {
	Kind ResourceKeyKind

	// Input.
	InputName string
	// TapeOutput.
	Node   uint64
	Output uint32
	// HostState.
	Op  HostSigId
	Key []byte
}

type ResourceKeyKind uint8

const (
	ResourceKeyInput ResourceKeyKind = iota
	ResourceKeyTapeOutput
	ResourceKeyHostState
)

// AccessSink receives ResourceKey entries pushed by the host during a call.
// The VM passes it through to Host.Call and records no entries of its own
// (no Input/TapeOutput edges). A nil AccessSink is valid;
// callers that don't need dependency tracking simply pass nil and the VM
// skips recording.
type AccessSink interface {
	Record(key ResourceKey)
}

// Host is the embedder-provided implementation of host_call (§4.4). Call
// must be safe to invoke synchronously from inside the VM's hot loop: there
// is never more than one in-flight call per VM, since the effect token is
// linear.
type Host interface {
	Call(ctx context.Context, sig HostSigId, args []AbiValueRef, effect EffectToken, access AccessSink) (EffectToken, []OwnedValue, error)
}

// HostFunc adapts a plain function with Host.Call's signature to the Host
// interface, for small embeddings where a full struct implementation would
// be overkill.
type HostFunc func(ctx context.Context, sig HostSigId, args []AbiValueRef, effect EffectToken, access AccessSink) (EffectToken, []OwnedValue, error)

func (f HostFunc) Call(ctx context.Context, sig HostSigId, args []AbiValueRef, effect EffectToken, access AccessSink) (EffectToken, []OwnedValue, error) {
	return f(ctx, sig, args, effect, access)
}
