// Copyright 2026 the Tapevm Authors
// SPDX-License-Identifier: Apache-2.0

package tapevm

import "fmt"

// TraceMask selects which classes of trace events a TraceSink wants to
// receive (§4.3.5). The VM checks the mask before building an event, so a
// sink that only wants CALL events costs nothing on the host_call and trap
// paths.
type TraceMask uint8

const (
	TraceCall TraceMask = 1 << iota
	TraceHostCall
	TraceTrap
)

func (m TraceMask) has(bit TraceMask) bool { return m&bit != 0 }

// ScopeKind identifies what a scope_enter/scope_exit pair brackets.
type ScopeKind uint8

const (
	ScopeCallFrame ScopeKind = iota
	ScopeHostCall
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeCallFrame:
		return "call_frame"
	case ScopeHostCall:
		return "host_call"
	default:
		return fmt.Sprintf("scopekind(%d)", uint8(k))
	}
}

// TraceSink receives scope_enter/scope_exit pairs and trap notifications
// from the hot loop. Events carry ids, pcs, depths and the *Trap; no
// arena-backed Bytes/Str data is passed to the sink.
type TraceSink interface {
	Mask() TraceMask
	ScopeEnter(prog *VerifiedProgram, kind ScopeKind, depth int, fn FuncId, hostSig HostSigId, pc uint32)
	ScopeExit(prog *VerifiedProgram, kind ScopeKind, depth int, fn FuncId, hostSig HostSigId, pc uint32)
	Trap(prog *VerifiedProgram, trap *Trap, depth int)
}

// ProgramSymbolResolver resolves call-frame labels from a program's symbol
// table when functions carry debug names (host-call labels are id-based,
// "host:sig=N"), caching each lookup
// since a sink may ask for the same label on every call into a hot
// function.
type ProgramSymbolResolver struct {
	prog          *Program
	callFrameSeen map[FuncId]string
	hostCallSeen  map[HostSigId]string
}

func NewProgramSymbolResolver(prog *Program) *ProgramSymbolResolver {
	return &ProgramSymbolResolver{
		prog:          prog,
		callFrameSeen: make(map[FuncId]string),
		hostCallSeen:  make(map[HostSigId]string),
	}
}

func (r *ProgramSymbolResolver) CallFrameLabel(fn FuncId, _ *VerifiedProgram) (string, bool) {
	if label, ok := r.callFrameSeen[fn]; ok {
		return label, true
	}
	name, ok := r.prog.FunctionName(fn)
	if !ok {
		return "", false
	}
	label := "func:" + name
	r.callFrameSeen[fn] = label
	return label, true
}

func (r *ProgramSymbolResolver) HostCallLabel(sig HostSigId, _ *VerifiedProgram) (string, bool) {
	if label, ok := r.hostCallSeen[sig]; ok {
		return label, true
	}
	if int(sig) >= len(r.prog.HostSigs) {
		return "", false
	}
	label := fmt.Sprintf("host:sig=%d", sig)
	r.hostCallSeen[sig] = label
	return label, true
}