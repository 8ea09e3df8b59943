// Copyright 2026 the Tapevm Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strings"

	"github.com/tapevm/tapevm/repl"
	"github.com/tapevm/tapevm/tapevm"
)

// stdoutTraceSink prints scope_enter/scope_exit/trap events to stdout,
// indented by call depth, resolving labels through a ProgramSymbolResolver
// when the program carries debug names.
type stdoutTraceSink struct {
	resolver *tapevm.ProgramSymbolResolver
}

func (s *stdoutTraceSink) Mask() tapevm.TraceMask {
	return tapevm.TraceCall | tapevm.TraceHostCall | tapevm.TraceTrap
}

func (s *stdoutTraceSink) ScopeEnter(prog *tapevm.VerifiedProgram, kind tapevm.ScopeKind, depth int, fn tapevm.FuncId, hostSig tapevm.HostSigId, pc uint32) {
	fmt.Printf("%s-> %s @pc=%d\n", indent(depth), s.label(kind, fn, hostSig), pc)
}

func (s *stdoutTraceSink) ScopeExit(prog *tapevm.VerifiedProgram, kind tapevm.ScopeKind, depth int, fn tapevm.FuncId, hostSig tapevm.HostSigId, pc uint32) {
	fmt.Printf("%s<- %s @pc=%d\n", indent(depth), s.label(kind, fn, hostSig), pc)
}

func (s *stdoutTraceSink) Trap(prog *tapevm.VerifiedProgram, trap *tapevm.Trap, depth int) {
	fmt.Println(repl.Red(fmt.Sprintf("%strap: %v", indent(depth), trap)))
}

func (s *stdoutTraceSink) label(kind tapevm.ScopeKind, fn tapevm.FuncId, hostSig tapevm.HostSigId) string {
	if s.resolver != nil {
		switch kind {
		case tapevm.ScopeCallFrame:
			if label, ok := s.resolver.CallFrameLabel(fn, nil); ok {
				return label
			}
		case tapevm.ScopeHostCall:
			if label, ok := s.resolver.HostCallLabel(hostSig, nil); ok {
				return label
			}
		}
	}
	switch kind {
	case tapevm.ScopeCallFrame:
		return fmt.Sprintf("func:%d", fn)
	case tapevm.ScopeHostCall:
		return fmt.Sprintf("host:sig=%d", hostSig)
	default:
		return kind.String()
	}
}

func indent(depth int) string {
	return strings.Repeat("  ", depth)
}
