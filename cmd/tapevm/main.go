// Copyright 2026 the Tapevm Authors
// SPDX-License-Identifier: Apache-2.0

// Command tapevm decodes, verifies, runs, and disassembles tapevm
// containers, and inspects the on-disk program cache.
package main

import (
	"fmt"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/tapevm/tapevm/repl"
)

func main() {
	commonlog.Configure(1, nil)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "decode":
		err = cmdDecode(args)
	case "verify":
		err = cmdVerify(args)
	case "run":
		err = cmdRun(args)
	case "disasm":
		err = cmdDisasm(args)
	case "cache":
		err = cmdCache(args)
	case "repl":
		repl.Start()
		return
	case "help", "-h", "-help", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "tapevm: unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "tapevm: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: tapevm <command> [args]

Commands:
  decode <container>                        parse and summarize a container
  verify [-config path] <container>         run the static verifier
  run <container> <func> [args...]          run a function and print its results
  disasm [-verified] <container>            print an instruction listing
  cache [-db path] <container>              show the container's cache key and cache status
  repl                                       start an interactive session`)
}
