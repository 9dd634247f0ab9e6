// Copyright 2025 The xonevm Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/svenslaggare/xonevm/exec"
	"github.com/svenslaggare/xonevm/validate"
	"github.com/svenslaggare/xonevm/vm"
	"github.com/svenslaggare/xonevm/xast"
)

var (
	flagInterp    bool
	flagOptimize  bool
	flagIntRegs   int
	flagFloatRegs int
	flagBench     int
	flagVerbose   bool
)

func main() {
	log.SetPrefix("xone-run: ")
	log.SetFlags(0)

	root := &cobra.Command{
		Use:   "xone-run [flags] program.xas",
		Short: "Compile a program to native code and execute its main function",
		Args:  cobra.ExactArgs(1),
		RunE:  run,
	}

	fs := root.Flags()
	fs.BoolVar(&flagInterp, "interp", false, "interpret the program instead of compiling it")
	fs.BoolVar(&flagOptimize, "opt", true, "keep values in hardware registers instead of stack slots")
	fs.IntVar(&flagIntRegs, "int-regs", exec.DefaultConfig().NumIntRegisters, "size of the integer register pool")
	fs.IntVar(&flagFloatRegs, "float-regs", exec.DefaultConfig().NumFloatRegisters, "size of the float register pool")
	fs.IntVar(&flagBench, "bench", 0, "invoke the entry point this many times and report timings")
	fs.BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	validate.PrintDebugInfo = flagVerbose
	exec.PrintDebugInfo = flagVerbose

	assembly, err := xast.ParseFile(args[0])
	if err != nil {
		return err
	}
	for _, fn := range assembly.Functions {
		fn.Optimize = flagOptimize
	}

	container := exec.NewVM(exec.Config{
		NumIntRegisters:   flagIntRegs,
		NumFloatRegisters: flagFloatRegs,
	})
	defer container.Close()

	if err := container.LoadAssembly(assembly); err != nil {
		return err
	}

	if flagInterp {
		return interpret(container, assembly)
	}

	if err := container.Compile(); err != nil {
		return err
	}
	entry, err := container.EntryPoint()
	if err != nil {
		return err
	}

	if flagBench > 0 {
		return bench(func() int32 { return entry() })
	}
	fmt.Printf("main() => %d\n", entry())
	return nil
}

func interpret(container *exec.VM, assembly *vm.Assembly) error {
	for _, fn := range assembly.Functions {
		if err := validate.VerifyFunction(container.Binder(), fn); err != nil {
			return err
		}
	}
	interp := container.Interpreter()

	if flagBench > 0 {
		return bench(func() int32 {
			result, err := interp.RunMain()
			if err != nil {
				log.Fatal(err)
			}
			return result
		})
	}
	result, err := interp.RunMain()
	if err != nil {
		return err
	}
	fmt.Printf("main() => %d\n", result)
	return nil
}

func bench(invoke func() int32) error {
	var result int32
	start := time.Now()
	for i := 0; i < flagBench; i++ {
		result = invoke()
	}
	elapsed := time.Since(start)
	fmt.Printf("main() => %d\n", result)
	fmt.Printf("%d iterations in %v (%v per call)\n",
		flagBench, elapsed, elapsed/time.Duration(flagBench))
	return nil
}
