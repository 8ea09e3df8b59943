// Copyright 2026 the Tapevm Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/tapevm/tapevm/disasm"
	"github.com/tapevm/tapevm/tapecache"
	"github.com/tapevm/tapevm/tapeconfig"
	"github.com/tapevm/tapevm/tapevm"
)

var log = commonlog.GetLogger("tapevm")

func cmdDecode(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: tapevm decode <container>")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	p, err := tapevm.DecodeProgram(data)
	if err != nil {
		return err
	}
	fmt.Printf("symbols:    %d\n", len(p.Symbols))
	fmt.Printf("consts:     %d\n", len(p.Consts))
	fmt.Printf("types:      %d\n", len(p.Types))
	fmt.Printf("functions:  %d\n", len(p.Functions))
	fmt.Printf("host sigs:  %d\n", len(p.HostSigs))
	fmt.Printf("bytecode:   %d bytes\n", len(p.Bytecode))
	fmt.Printf("blob:       %d bytes\n", len(p.Blob))
	for i, fn := range p.Functions {
		name, ok := p.FunctionName(tapevm.FuncId(i))
		if !ok {
			name = fmt.Sprintf("func%d", i)
		}
		fmt.Printf("  [%d] %s (argc=%d retc=%d regs=%d)\n", i, name, fn.ArgCount, fn.RetCount, fn.RegCount)
	}
	return nil
}

func cmdVerify(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a tapevm.toml config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: tapevm verify [-config path] <container>")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	p, err := tapevm.DecodeProgram(data)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if _, err := tapevm.Verify(p, cfg); err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	fmt.Println("ok")
	return nil
}

func cmdRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a tapevm.toml config file")
	trace := fs.Bool("trace", false, "print a trace of call frames, host calls, and traps")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return fmt.Errorf("usage: tapevm run [-trace] [-config path] <container> <func> [args...]")
	}

	runID := uuid.New()
	log.Infof("run %s: starting", runID)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	p, err := tapevm.DecodeProgram(data)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	vp, err := tapevm.Verify(p, cfg)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}

	entry, fn, err := resolveFunction(p, vp, fs.Arg(1))
	if err != nil {
		return err
	}

	rawArgs := fs.Args()[2:]
	if len(rawArgs) != len(fn.ArgTypes) {
		return fmt.Errorf("%s expects %d argument(s), got %d", fs.Arg(1), len(fn.ArgTypes), len(rawArgs))
	}
	callArgs := make([]tapevm.Value, len(rawArgs))
	for i, t := range fn.ArgTypes {
		v, err := parseValue(rawArgs[i], t)
		if err != nil {
			return fmt.Errorf("argument %d: %w", i, err)
		}
		callArgs[i] = v
	}

	opts := tapevm.RunOptions{Budgets: cfg.Budgets, MaxCallDepth: cfg.MaxCallStackDepth}
	if *trace {
		opts.TraceSink = &stdoutTraceSink{resolver: tapevm.NewProgramSymbolResolver(p)}
		opts.TraceMask = tapevm.TraceCall | tapevm.TraceHostCall | tapevm.TraceTrap
	}

	vm := tapevm.NewVm(vp)
	rets, err := vm.Run(context.Background(), entry, callArgs, opts)
	if err != nil {
		log.Errorf("run %s: trapped: %v", runID, err)
		return err
	}
	log.Infof("run %s: completed", runID)
	for _, r := range rets {
		fmt.Println(r)
	}
	return nil
}

func cmdDisasm(args []string) error {
	fs := flag.NewFlagSet("disasm", flag.ContinueOnError)
	verified := fs.Bool("verified", false, "disassemble the verified, register-typed form")
	configPath := fs.String("config", "", "path to a tapevm.toml config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: tapevm disasm [-verified] [-config path] <container>")
	}
	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	p, err := tapevm.DecodeProgram(data)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if !*verified {
		fmt.Print(disasm.Program(p))
		return nil
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	vp, err := tapevm.Verify(p, cfg)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	fmt.Print(disasm.Verified(vp))
	return nil
}

func cmdCache(args []string) error {
	fs := flag.NewFlagSet("cache", flag.ContinueOnError)
	dbPath := fs.String("db", defaultCachePath(), "path to the cache database")
	configPath := fs.String("config", "", "path to a tapevm.toml config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: tapevm cache [-db path] [-config path] <container>")
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	store, err := tapecache.Open(*dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	key := tapecache.Key{ContentHash: tapecache.HashContainer(data), ConfigHash: tapecache.HashConfig(cfg)}
	fmt.Printf("content hash: %s\n", key.ContentHash)
	fmt.Printf("config hash:  %s\n", key.ConfigHash)

	_, hit, err := store.Lookup(key)
	if err != nil {
		return err
	}
	if hit {
		fmt.Println("status: hit")
		return nil
	}
	fmt.Println("status: miss (verifying and storing)")
	if _, err := store.LoadVerified(data, cfg); err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	return nil
}

func loadConfig(path string) (tapevm.Config, error) {
	if path == "" {
		return tapeconfig.Load()
	}
	return tapeconfig.Load(path)
}

func defaultCachePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "tapevm-cache.db"
	}
	return filepath.Join(home, ".tapevm", "cache.db")
}

func resolveFunction(p *tapevm.Program, vp *tapevm.VerifiedProgram, ref string) (tapevm.FuncId, *tapevm.VerifiedFunction, error) {
	if idx, err := strconv.Atoi(ref); err == nil {
		if idx < 0 || idx >= len(vp.Functions) {
			return 0, nil, fmt.Errorf("function index %d out of range", idx)
		}
		return tapevm.FuncId(idx), &vp.Functions[idx], nil
	}
	for i := range p.Functions {
		if name, ok := p.FunctionName(tapevm.FuncId(i)); ok && name == ref {
			return tapevm.FuncId(i), &vp.Functions[i], nil
		}
	}
	return 0, nil, fmt.Errorf("function %q not found", ref)
}
