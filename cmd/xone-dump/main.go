// Copyright 2025 The xonevm Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"github.com/svenslaggare/xonevm/disasm"
	"github.com/svenslaggare/xonevm/exec"
	"github.com/svenslaggare/xonevm/xast"
)

var (
	flagOptimize bool
	flagIntRegs  int
	flagVerbose  bool
)

func main() {
	log.SetPrefix("xone-dump: ")
	log.SetFlags(0)

	root := &cobra.Command{
		Use:   "xone-dump [flags] program.xas",
		Short: "Compile a program and print its bytecode and native-code listing",
		Args:  cobra.ExactArgs(1),
		RunE:  dump,
	}

	fs := root.Flags()
	fs.BoolVar(&flagOptimize, "opt", true, "keep values in hardware registers instead of stack slots")
	fs.IntVar(&flagIntRegs, "int-regs", exec.DefaultConfig().NumIntRegisters, "size of the integer register pool")
	fs.BoolVarP(&flagVerbose, "verbose", "v", false, "also dump the raw function state")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func dump(cmd *cobra.Command, args []string) error {
	assembly, err := xast.ParseFile(args[0])
	if err != nil {
		return err
	}
	for _, fn := range assembly.Functions {
		fn.Optimize = flagOptimize
	}

	config := exec.DefaultConfig()
	config.NumIntRegisters = flagIntRegs
	container := exec.NewVM(config)
	defer container.Close()

	if err := container.LoadAssembly(assembly); err != nil {
		return err
	}
	if err := container.Compile(); err != nil {
		return err
	}

	for i, fn := range assembly.Functions {
		if i > 0 {
			fmt.Println()
		}
		if err := disasm.Fprint(os.Stdout, fn); err != nil {
			return err
		}
		if flagVerbose {
			spew.Fdump(os.Stdout, fn)
		}
	}
	return nil
}
