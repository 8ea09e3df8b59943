// Copyright 2026 the Tapevm Authors
// SPDX-License-Identifier: Apache-2.0

package repl

import (
	"fmt"
	"strings"

	"github.com/tapevm/tapevm/tapevm"
)

// traceSink prints scope_enter/scope_exit/trap events while TRACE is on,
// indented by call depth.
type traceSink struct {
	resolver *tapevm.ProgramSymbolResolver
}

func (s *traceSink) Mask() tapevm.TraceMask {
	return tapevm.TraceCall | tapevm.TraceHostCall | tapevm.TraceTrap
}

func (s *traceSink) ScopeEnter(prog *tapevm.VerifiedProgram, kind tapevm.ScopeKind, depth int, fn tapevm.FuncId, hostSig tapevm.HostSigId, pc uint32) {
	fmt.Printf("%s-> %s\n", strings.Repeat("  ", depth), s.label(kind, fn, hostSig))
}

func (s *traceSink) ScopeExit(prog *tapevm.VerifiedProgram, kind tapevm.ScopeKind, depth int, fn tapevm.FuncId, hostSig tapevm.HostSigId, pc uint32) {
	fmt.Printf("%s<- %s\n", strings.Repeat("  ", depth), s.label(kind, fn, hostSig))
}

func (s *traceSink) Trap(prog *tapevm.VerifiedProgram, trap *tapevm.Trap, depth int) {
	fmt.Println(Red(fmt.Sprintf("%strap: %v", strings.Repeat("  ", depth), trap)))
}

func (s *traceSink) label(kind tapevm.ScopeKind, fn tapevm.FuncId, hostSig tapevm.HostSigId) string {
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
