// Copyright 2026 the Tapevm Authors
// SPDX-License-Identifier: Apache-2.0

// Package repl implements an interactive shell for loading, verifying, and
// running tapevm containers, in the teacher's LOAD/INVOKE/GET/LIST idiom.
package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/tapevm/tapevm/tapeconfig"
	"github.com/tapevm/tapevm/tapevm"
)

const prompt = "tapevm> "

var (
	errNoProgramLoaded  = errors.New("no program loaded; use LOAD first")
	errFunctionNotFound = errors.New("function not found")
)

type UsageError struct{}

func (e *UsageError) Error() string { return "wrong command usage" }

func NewUsageError() error { return &UsageError{} }

type Command struct {
	Usage   string
	Handler func(r *Repl, args []string) error
}

// Repl holds the single loaded program. Unlike the teacher's REPL, which
// keeps a table of named module instances, a tapevm container has no
// notion of named instances, so LOAD simply replaces whatever was loaded
// before.
type Repl struct {
	path     string
	prog     *tapevm.Program
	verified *tapevm.VerifiedProgram
	cfg      tapevm.Config
	traceOn  bool

	scanner  *bufio.Scanner
	commands map[string]Command
}

func NewRepl() *Repl {
	return &Repl{
		cfg:     tapevm.DefaultConfig(),
		scanner: bufio.NewScanner(os.Stdin),
		commands: map[string]Command{
			"LOAD": {
				Usage:   "LOAD <path-to-container>",
				Handler: (*Repl).handleLoad,
			},
			"RUN": {
				Usage:   "RUN <function> [args...]",
				Handler: (*Repl).handleRun,
			},
			"GET": {
				Usage:   "GET <function>",
				Handler: (*Repl).handleGet,
			},
			"TRACE": {
				Usage:   "TRACE on|off",
				Handler: (*Repl).handleTrace,
			},
			"DISASM": {
				Usage:   "DISASM <function>",
				Handler: (*Repl).handleDisasm,
			},
			"LIST": {
				Usage:   "LIST",
				Handler: (*Repl).handleList,
			},
			"/help": {
				Usage:   "/help",
				Handler: (*Repl).handleHelp,
			},
			"/clear": {
				Usage:   "/clear",
				Handler: (*Repl).handleClear,
			},
			"/quit": {
				Usage:   "/quit",
				Handler: (*Repl).handleQuit,
			},
		},
	}
}

func Start() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		fmt.Println("\nBye!")
		os.Exit(0)
	}()

	NewRepl().run()
}

func (r *Repl) run() {
	fmt.Print(prompt)

	for r.scanner.Scan() {
		line := r.scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			fmt.Print(prompt)
			continue
		}

		cmdName := parts[0]
		args := parts[1:]

		if cmd, ok := r.commands[cmdName]; ok {
			if err := cmd.Handler(r, args); err != nil {
				var usageErr *UsageError
				if errors.As(err, &usageErr) {
					fmt.Fprintln(os.Stderr, Red(fmt.Sprintf("Usage: %s", cmd.Usage)))
				} else {
					fmt.Fprintln(os.Stderr, Red(fmt.Sprintf("Error: %s", err)))
				}
			}
		} else {
			fmt.Fprintln(os.Stderr, Red(fmt.Sprintf("Error: unknown command: %s", cmdName)))
		}
		fmt.Print(prompt)
	}
}

func (r *Repl) handleLoad(args []string) error {
	if len(args) != 1 {
		return NewUsageError()
	}
	path := args[0]

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	prog, err := tapevm.DecodeProgram(data)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	cfg, err := tapeconfig.Load()
	if err != nil {
		return err
	}
	verified, err := tapevm.Verify(prog, cfg)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}

	r.path = path
	r.prog = prog
	r.verified = verified
	r.cfg = cfg
	fmt.Println(Green(fmt.Sprintf("'%s' loaded and verified.", path)))
	return nil
}

func (r *Repl) handleRun(args []string) error {
	if r.verified == nil {
		return errNoProgramLoaded
	}
	if len(args) < 1 {
		return NewUsageError()
	}

	id, fn, err := r.resolveFunction(args[0])
	if err != nil {
		return err
	}

	rawArgs := args[1:]
	if len(rawArgs) != len(fn.ArgTypes) {
		return fmt.Errorf("%s expects %d argument(s), got %d", args[0], len(fn.ArgTypes), len(rawArgs))
	}
	callArgs := make([]tapevm.Value, len(rawArgs))
	for i, t := range fn.ArgTypes {
		v, err := parseArg(rawArgs[i], t)
		if err != nil {
			return err
		}
		callArgs[i] = v
	}

	opts := tapevm.RunOptions{Budgets: r.cfg.Budgets, MaxCallDepth: r.cfg.MaxCallStackDepth}
	if r.traceOn {
		opts.TraceSink = &traceSink{resolver: tapevm.NewProgramSymbolResolver(r.prog)}
		opts.TraceMask = tapevm.TraceCall | tapevm.TraceHostCall | tapevm.TraceTrap
	}

	vm := tapevm.NewVm(r.verified)
	rets, err := vm.Run(context.Background(), id, callArgs, opts)
	if err != nil {
		return err
	}
	for _, v := range rets {
		fmt.Println(Green(v.String()))
	}
	return nil
}

func (r *Repl) handleGet(args []string) error {
	if r.prog == nil {
		return errNoProgramLoaded
	}
	if len(args) != 1 {
		return NewUsageError()
	}
	id, fn, err := r.resolveFunction(args[0])
	if err != nil {
		return err
	}
	name, _ := r.prog.FunctionName(id)
	fmt.Println(Green(fmt.Sprintf("%s: args=%v rets=%v", name, fn.ArgTypes, fn.RetTypes)))
	return nil
}

func (r *Repl) handleTrace(args []string) error {
	if len(args) != 1 {
		return NewUsageError()
	}
	switch args[0] {
	case "on":
		r.traceOn = true
	case "off":
		r.traceOn = false
	default:
		return NewUsageError()
	}
	return nil
}

func (r *Repl) handleDisasm(args []string) error {
	if r.prog == nil {
		return errNoProgramLoaded
	}
	if len(args) != 1 {
		return NewUsageError()
	}
	id, _, err := r.resolveFunction(args[0])
	if err != nil {
		return err
	}
	code, err := r.prog.FunctionBytecode(id)
	if err != nil {
		return err
	}
	instrs, err := tapevm.DecodeFunctionInstructions(code)
	if err != nil {
		return err
	}
	for _, d := range instrs {
		fmt.Printf("%6d  %s\n", d.PC, d.Instr.Opcode.String())
	}
	return nil
}

func (r *Repl) handleList(args []string) error {
	if r.prog == nil {
		return errNoProgramLoaded
	}
	for i := range r.prog.Functions {
		id := tapevm.FuncId(i)
		name, ok := r.prog.FunctionName(id)
		if !ok {
			name = fmt.Sprintf("func%d", i)
		}
		fmt.Println(name)
	}
	return nil
}

func (r *Repl) handleHelp(args []string) error {
	for _, cmd := range r.commands {
		fmt.Println(cmd.Usage)
	}
	return nil
}

func (r *Repl) handleClear(args []string) error {
	fmt.Print("\033[H\033[2J")
	r.prog = nil
	r.verified = nil
	r.path = ""
	return nil
}

func (r *Repl) handleQuit(args []string) error {
	os.Exit(0)
	return nil
}

func (r *Repl) resolveFunction(ref string) (tapevm.FuncId, *tapevm.VerifiedFunction, error) {
	if idx, err := strconv.Atoi(ref); err == nil {
		if idx < 0 || idx >= len(r.verified.Functions) {
			return 0, nil, fmt.Errorf("function index %d out of range", idx)
		}
		return tapevm.FuncId(idx), &r.verified.Functions[idx], nil
	}
	for i := range r.prog.Functions {
		name, ok := r.prog.FunctionName(tapevm.FuncId(i))
		if ok && name == ref {
			return tapevm.FuncId(i), &r.verified.Functions[i], nil
		}
	}
	return 0, nil, errFunctionNotFound
}

func parseArg(raw string, t tapevm.ValueType) (tapevm.Value, error) {
	switch t.Kind {
	case tapevm.KindI64:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return tapevm.Value{}, fmt.Errorf("failed to parse arg %s as i64: %w", raw, err)
		}
		return tapevm.ValueI64(v), nil
	case tapevm.KindU64:
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return tapevm.Value{}, fmt.Errorf("failed to parse arg %s as u64: %w", raw, err)
		}
		return tapevm.ValueU64(v), nil
	case tapevm.KindF64:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return tapevm.Value{}, fmt.Errorf("failed to parse arg %s as f64: %w", raw, err)
		}
		return tapevm.ValueF64(v), nil
	case tapevm.KindBool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return tapevm.Value{}, fmt.Errorf("failed to parse arg %s as bool: %w", raw, err)
		}
		return tapevm.ValueBool(v), nil
	case tapevm.KindUnit:
		return tapevm.ValueUnit(), nil
	case tapevm.KindStr:
		return tapevm.ValueStr(raw), nil
	default:
		return tapevm.Value{}, fmt.Errorf("unsupported arg type: %v", t.Kind)
	}
}
