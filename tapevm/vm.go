// Copyright 2026 the Tapevm Authors
// SPDX-License-Identifier: Apache-2.0

package tapevm

import (
	"context"
	"fmt"
	"math"
	"unicode/utf8"
)

// frame is one call's class-split register storage (§3.4, §4.3.1). Only
// classes the function actually uses get non-empty slices; RegLayout.Counts
// sizes each array exactly, so there's no tag check on access - every VReg
// indexes straight into the right array.
type frame struct {
	fn     *VerifiedFunction
	fnID   FuncId
	pc     int
	retDst []VReg // where the caller wants this call's return values written

	bools    []bool
	i64s     []int64
	u64s     []uint64
	f64s     []float64
	decimals []Decimal
	bytes    []BytesHandle
	strs     []StrHandle
	aggs     []AggHandle
}

func newFrame(fn *VerifiedFunction, fnID FuncId, retDst []VReg) *frame {
	c := fn.Layout.Counts
	return &frame{
		fn: fn, fnID: fnID, retDst: retDst,
		bools:    make([]bool, c.Bool),
		i64s:     make([]int64, c.I64),
		u64s:     make([]uint64, c.U64),
		f64s:     make([]float64, c.F64),
		decimals: make([]Decimal, c.Decimal),
		bytes:    make([]BytesHandle, c.Bytes),
		strs:     make([]StrHandle, c.Str),
		aggs:     make([]AggHandle, c.Agg),
	}
}

func (f *frame) readValue(arenas *runArenas, r VReg) Value {
	switch r.Class {
	case RegClassUnit:
		return ValueUnit()
	case RegClassBool:
		return ValueBool(f.bools[r.Index])
	case RegClassI64:
		return ValueI64(f.i64s[r.Index])
	case RegClassU64:
		return ValueU64(f.u64s[r.Index])
	case RegClassF64:
		return ValueF64(f.f64s[r.Index])
	case RegClassDecimal:
		d := f.decimals[r.Index]
		return ValueDecimal(d.Mantissa, d.Scale)
	case RegClassBytes:
		return ValueBytes(arenas.bytes.get(f.bytes[r.Index]))
	case RegClassStr:
		return ValueStr(arenas.strs.get(f.strs[r.Index]))
	case RegClassAgg:
		return Value{Kind: KindAgg, Agg: f.aggs[r.Index]}
	default:
		panic(fmt.Sprintf("tapevm: unhandled RegClass %v", r.Class))
	}
}

func (f *frame) writeValue(arenas *runArenas, r VReg, v Value) {
	switch r.Class {
	case RegClassUnit:
	case RegClassBool:
		f.bools[r.Index] = v.Bool
	case RegClassI64:
		f.i64s[r.Index] = v.I64
	case RegClassU64:
		f.u64s[r.Index] = v.U64
	case RegClassF64:
		f.f64s[r.Index] = v.F64
	case RegClassDecimal:
		f.decimals[r.Index] = v.Decimal
	case RegClassBytes:
		f.bytes[r.Index] = arenas.bytes.intern(v.Bytes)
	case RegClassStr:
		f.strs[r.Index] = arenas.strs.intern(v.Str)
	case RegClassAgg:
		f.aggs[r.Index] = v.Agg
	default:
		panic(fmt.Sprintf("tapevm: unhandled RegClass %v", r.Class))
	}
}

// RunOptions configures one Vm.Run invocation (§6.3).
type RunOptions struct {
	TraceMask  TraceMask
	TraceSink  TraceSink
	Host       Host
	AccessSink AccessSink
	Budgets    Budgets
	// Cancelled is polled between instructions; a nil func means no
	// external cancellation signal.
	Cancelled func() bool
	MaxCallDepth int
}

// Vm executes a VerifiedProgram. A Vm is not safe for concurrent use from
// multiple goroutines; create one Vm per concurrent run (§5).
type Vm struct {
	prog   *VerifiedProgram
	arenas *runArenas
	stack  []*frame
	opts   RunOptions

	instrCount uint64
}

func NewVm(prog *VerifiedProgram) *Vm {
	return &Vm{prog: prog, arenas: newRunArenas()}
}

// Run executes entry with args and returns its return values, or the Trap
// that ended the run (§6.3). Each call to Run starts a fresh set of arenas
// and an empty call stack; a Vm may be reused across Run calls.
func (vm *Vm) Run(ctx context.Context, entry FuncId, args []Value, opts RunOptions) ([]Value, error) {
	if int(entry) >= len(vm.prog.Functions) {
		return nil, &Trap{Kind: TrapUnreachable, Detail: fmt.Sprintf("entry func %d out of range", entry)}
	}
	vm.arenas = newRunArenas()
	vm.stack = nil
	vm.opts = opts
	vm.instrCount = 0
	if vm.opts.MaxCallDepth == 0 {
		vm.opts.MaxCallDepth = DefaultConfig().MaxCallStackDepth
	}

	fn := &vm.prog.Functions[entry]
	if len(args) != len(fn.ArgTypes) {
		return nil, &Trap{Kind: TrapUnreachable, Func: entry, Detail: "entry argument count mismatch"}
	}

	f := newFrame(fn, entry, nil)
	// r0 is the effect token (Unit); args start at r1.
	for i, v := range args {
		f.writeValue(vm.arenas, fn.Layout.RegMap[i+1], v)
	}
	vm.stack = append(vm.stack, f)

	rets, trap := vm.runLoop(ctx)
	if trap != nil {
		return nil, trap
	}
	return rets, nil
}

// runLoop drives frames on vm.stack until the entry frame returns, surfacing
// the first trap encountered (§4.3.1).
func (vm *Vm) runLoop(ctx context.Context) ([]Value, *Trap) {
	for {
		cur := vm.stack[len(vm.stack)-1]
		if cur.pc >= len(cur.fn.Instrs) {
			return nil, &Trap{Kind: TrapUnreachable, Func: cur.fnID, PC: cur.fn.InstrPC[len(cur.fn.InstrPC)-1], Detail: "fell off end of function"}
		}

		if trap := vm.checkBudgets(ctx, cur); trap != nil {
			return nil, trap
		}

		vi := &cur.fn.Instrs[cur.pc]
		pc := cur.fn.InstrPC[cur.pc]

		rets, done, trap := vm.step(ctx, cur, vi, pc)
		if trap != nil {
			trap.Func = cur.fnID
			trap.PC = pc
			vm.traceTrap(trap)
			return nil, trap
		}
		if done {
			vm.stack = vm.stack[:len(vm.stack)-1]
			vm.traceExitCallFrame(cur, pc)
			if len(vm.stack) == 0 {
				return rets, nil
			}
			caller := vm.stack[len(vm.stack)-1]
			for i, dst := range cur.retDst {
				caller.writeValue(vm.arenas, dst, rets[i])
			}
			continue
		}
	}
}

func (vm *Vm) checkBudgets(ctx context.Context, cur *frame) *Trap {
	if vm.opts.Cancelled != nil && vm.opts.Cancelled() {
		return &Trap{Kind: TrapCancelled}
	}
	select {
	case <-ctx.Done():
		return &Trap{Kind: TrapCancelled, Detail: ctx.Err().Error()}
	default:
	}
	vm.instrCount++
	if vm.opts.Budgets.MaxInstructions > 0 && vm.instrCount > vm.opts.Budgets.MaxInstructions {
		return &Trap{Kind: TrapInstructionQuotaExceeded}
	}
	if vm.opts.Budgets.MaxArenaBytes > 0 && vm.arenas.totalBytes() > vm.opts.Budgets.MaxArenaBytes {
		return &Trap{Kind: TrapMemoryQuotaExceeded}
	}
	return nil
}

// step executes one instruction. The three return values mirror the three
// ways an instruction can end a frame: normal fall-through (done=false),
// ret (done=true, rets populated), or a trap.
func (vm *Vm) step(ctx context.Context, f *frame, vi *VerifiedInstr, pc uint32) ([]Value, bool, *Trap) {
	switch vi.Opcode {
	case OpNop:
		f.pc++
		return nil, false, nil
	case OpTrap:
		return nil, false, &Trap{Kind: TrapUnreachable}

	case OpJmp:
		f.pc = vi.PCTarget
		return nil, false, nil
	case OpBr:
		if f.bools[vi.Cond.Index] {
			f.pc = vi.PCTrue
		} else {
			f.pc = vi.PCFalse
		}
		return nil, false, nil

	case OpRet:
		rets := make([]Value, len(vi.Rets))
		for i, r := range vi.Rets {
			rets[i] = f.readValue(vm.arenas, r)
		}
		return rets, true, nil

	case OpCall:
		return nil, false, vm.doCall(f, vi, pc)
	case OpHostCall:
		return nil, false, vm.doHostCall(ctx, f, vi, pc)

	case OpMov:
		f.writeValue(vm.arenas, vi.Dst, f.readValue(vm.arenas, vi.A))
		f.pc++
		return nil, false, nil
	case OpConst:
		vm.loadConst(f, vi)
		f.pc++
		return nil, false, nil

	default:
		if trap := vm.stepPure(f, vi); trap != nil {
			return nil, false, trap
		}
		f.pc++
		return nil, false, nil
	}
}

func (vm *Vm) loadConst(f *frame, vi *VerifiedInstr) {
	e := vm.prog.Consts[vi.ConstID]
	switch e.Type.Kind {
	case KindI64:
		f.i64s[vi.Dst.Index] = e.I64
	case KindU64:
		f.u64s[vi.Dst.Index] = e.U64
	case KindF64:
		f.f64s[vi.Dst.Index] = math.Float64frombits(e.F64Bits)
	case KindBool:
		f.bools[vi.Dst.Index] = e.Bool
	case KindUnit:
	case KindDecimal:
		f.decimals[vi.Dst.Index] = Decimal{Mantissa: e.Mantissa, Scale: e.Type.Scale}
	case KindBytes:
		b := vm.prog.ConstBlob(e)
		f.bytes[vi.Dst.Index] = vm.arenas.bytes.intern(append([]byte(nil), b...))
	case KindStr:
		b := vm.prog.ConstBlob(e)
		f.strs[vi.Dst.Index] = vm.arenas.strs.intern(string(b))
	}
}

func (vm *Vm) doCall(f *frame, vi *VerifiedInstr, pc uint32) *Trap {
	if len(vm.stack) >= vm.opts.MaxCallDepth {
		return &Trap{Kind: TrapCallDepthExceeded}
	}
	callee := &vm.prog.Functions[vi.FuncID]
	nf := newFrame(callee, vi.FuncID, vi.Rets)
	for i, arg := range vi.Args {
		nf.writeValue(vm.arenas, callee.Layout.RegMap[i+1], f.readValue(vm.arenas, arg))
	}
	f.pc++
	vm.stack = append(vm.stack, nf)
	vm.traceEnterCallFrame(nf, pc)
	return nil
}

func (vm *Vm) doHostCall(ctx context.Context, f *frame, vi *VerifiedInstr, pc uint32) *Trap {
	if vm.opts.Host == nil {
		return &Trap{Kind: TrapHostError, Detail: "no host configured"}
	}
	sig := vm.prog.HostSigs[vi.HostSigID]
	args := make([]AbiValueRef, len(vi.Args))
	for i, a := range vi.Args {
		args[i] = toAbiValueRef(f.readValue(vm.arenas, a))
	}

	vm.traceEnterHostCall(vi.HostSigID, pc)
	_, rets, err := vm.opts.Host.Call(ctx, vi.HostSigID, args, EffectToken{}, vm.opts.AccessSink)
	vm.traceExitHostCall(vi.HostSigID, pc)
	if err != nil {
		return &Trap{Kind: TrapHostError, Cause: err}
	}
	if len(rets) != len(sig.RetTypes) {
		return &Trap{Kind: TrapHostError, Detail: "host returned wrong number of values"}
	}
	for i, r := range rets {
		if r.Kind != sig.RetTypes[i].Kind {
			return &Trap{Kind: TrapHostError, Detail: "host return type mismatch"}
		}
		if r.Kind == KindStr && !utf8.ValidString(r.Str) {
			return &Trap{Kind: TrapInvalidUtf8}
		}
		f.writeValue(vm.arenas, vi.Rets[i], ownedToValue(r))
	}
	f.pc++
	return nil
}

func toAbiValueRef(v Value) AbiValueRef {
	return AbiValueRef{Kind: v.Kind, I64: v.I64, U64: v.U64, F64: v.F64, Bool: v.Bool, Decimal: v.Decimal, Bytes: v.Bytes, Str: v.Str, Agg: v.Agg}
}

func ownedToValue(v OwnedValue) Value {
	return Value{Kind: v.Kind, I64: v.I64, U64: v.U64, F64: v.F64, Bool: v.Bool, Decimal: v.Decimal, Bytes: v.Bytes, Str: v.Str, Agg: v.Agg}
}

func (vm *Vm) traceEnterCallFrame(f *frame, pc uint32) {
	if vm.opts.TraceSink == nil || !vm.opts.TraceMask.has(TraceCall) {
		return
	}
	vm.opts.TraceSink.ScopeEnter(vm.prog, ScopeCallFrame, len(vm.stack), f.fnID, 0, pc)
}

func (vm *Vm) traceExitCallFrame(f *frame, pc uint32) {
	if vm.opts.TraceSink == nil || !vm.opts.TraceMask.has(TraceCall) {
		return
	}
	vm.opts.TraceSink.ScopeExit(vm.prog, ScopeCallFrame, len(vm.stack), f.fnID, 0, pc)
}

func (vm *Vm) traceEnterHostCall(sig HostSigId, pc uint32) {
	if vm.opts.TraceSink == nil || !vm.opts.TraceMask.has(TraceHostCall) {
		return
	}
	vm.opts.TraceSink.ScopeEnter(vm.prog, ScopeHostCall, len(vm.stack), 0, sig, pc)
}

func (vm *Vm) traceExitHostCall(sig HostSigId, pc uint32) {
	if vm.opts.TraceSink == nil || !vm.opts.TraceMask.has(TraceHostCall) {
		return
	}
	vm.opts.TraceSink.ScopeExit(vm.prog, ScopeHostCall, len(vm.stack), 0, sig, pc)
}

func (vm *Vm) traceTrap(trap *Trap) {
	if vm.opts.TraceSink == nil || !vm.opts.TraceMask.has(TraceTrap) {
		return
	}
	vm.opts.TraceSink.Trap(vm.prog, trap, len(vm.stack))
}
