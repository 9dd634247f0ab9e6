// Copyright 2025 The xonevm Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package xast parses the textual assembly form of bytecode programs:
//
//	; integer maximum
//	func max(Int Int) Int {
//	    LoadArgument 0
//	    LoadArgument 1
//	    BranchGreaterThan 4
//	    LoadArgument 1
//	    Ret
//	    LoadArgument 0
//	    Ret
//	}
//
//	func main() Int {
//	    locals Int
//	    LoadInt 4
//	    StoreLocal 0
//	    LoadLocal 0
//	    LoadInt 2
//	    Call max(Int Int)
//	    Ret
//	}
//
// Branch targets are instruction indices. Instructions appear one per
// line with their mnemonic spelled exactly as the bytecode model names
// them.
package xast

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/svenslaggare/xonevm/vm"
)

type program struct {
	Functions []*function `@@*`
}

type function struct {
	Name   string       `"func" @Ident`
	Params []string     `"(" @Ident* ")"`
	Return string       `@Ident "{"`
	Locals []string     `("locals" @("Int" | "Float" | "Void")+)?`
	Body   []*statement `@@* "}"`
}

type statement struct {
	Op    string   `@Ident`
	Call  *callRef `( @@`
	Float *float32 `| @Float`
	Int   *int     `| @Int )?`
}

type callRef struct {
	Name   string   `@Ident`
	Params []string `"(" @Ident* ")"`
}

var assemblyLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `;[^\n]*`},
	{Name: "Float", Pattern: `[-+]?\d+\.\d+`},
	{Name: "Int", Pattern: `[-+]?\d+`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Punct", Pattern: `[(){}]`},
	{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
})

var parser = participle.MustBuild[program](
	participle.Lexer(assemblyLexer),
	participle.Elide("Comment", "Whitespace"),
	participle.UseLookahead(2),
)

var typeNames = map[string]vm.Type{
	"Int":   vm.TypeInt,
	"Float": vm.TypeFloat,
	"Void":  vm.TypeVoid,
}

var opcodes = func() map[string]vm.OpCode {
	m := make(map[string]vm.OpCode)
	for op := vm.OpPop; op <= vm.OpBranchLessOrEqual; op++ {
		m[op.String()] = op
	}
	return m
}()

// Parse reads a program in assembly text form.
func Parse(name string, r io.Reader) (*vm.Assembly, error) {
	source, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return ParseString(name, string(source))
}

// ParseFile parses the program stored at path; the file name becomes
// the assembly name.
func ParseFile(path string) (*vm.Assembly, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(path, f)
}

// ParseString parses a program held in a string.
func ParseString(name, source string) (*vm.Assembly, error) {
	parsed, err := parser.ParseString(name, source)
	if err != nil {
		return nil, err
	}

	assembly := vm.NewAssembly(name)
	for _, decl := range parsed.Functions {
		fn, err := convertFunction(decl)
		if err != nil {
			return nil, err
		}
		assembly.Functions = append(assembly.Functions, fn)
	}
	return assembly, nil
}

func convertTypes(names []string, fnName string) ([]vm.Type, error) {
	if len(names) == 0 {
		return nil, nil
	}
	types := make([]vm.Type, len(names))
	for i, name := range names {
		t, ok := typeNames[name]
		if !ok {
			return nil, fmt.Errorf("xast: %s: unknown type %q", fnName, name)
		}
		types[i] = t
	}
	return types, nil
}

func convertFunction(decl *function) (*vm.Function, error) {
	params, err := convertTypes(decl.Params, decl.Name)
	if err != nil {
		return nil, err
	}
	returnType, ok := typeNames[decl.Return]
	if !ok {
		return nil, fmt.Errorf("xast: %s: unknown type %q", decl.Name, decl.Return)
	}
	locals, err := convertTypes(decl.Locals, decl.Name)
	if err != nil {
		return nil, err
	}

	instructions := make([]vm.Instruction, 0, len(decl.Body))
	for index, stmt := range decl.Body {
		instruction, err := convertStatement(decl.Name, index, stmt)
		if err != nil {
			return nil, err
		}
		instructions = append(instructions, instruction)
	}

	definition := vm.NewFunctionDefinition(decl.Name, params, returnType)
	return vm.NewFunction(definition, instructions, locals), nil
}

func convertStatement(fnName string, index int, stmt *statement) (vm.Instruction, error) {
	op, ok := opcodes[stmt.Op]
	if !ok {
		return vm.Instruction{}, fmt.Errorf("xast: %s:%d: unknown mnemonic %q", fnName, index, stmt.Op)
	}

	switch {
	case op == vm.OpCall:
		if stmt.Call == nil {
			return vm.Instruction{}, fmt.Errorf("xast: %s:%d: Call requires a callee signature", fnName, index)
		}
		params, err := convertTypes(stmt.Call.Params, fnName)
		if err != nil {
			return vm.Instruction{}, err
		}
		return vm.NewCallInstruction(stmt.Call.Name, params), nil

	case op == vm.OpLoadFloat:
		switch {
		case stmt.Float != nil:
			return vm.NewFloatInstruction(op, *stmt.Float), nil
		case stmt.Int != nil:
			return vm.NewFloatInstruction(op, float32(*stmt.Int)), nil
		default:
			return vm.Instruction{}, fmt.Errorf("xast: %s:%d: %s requires a float operand", fnName, index, stmt.Op)
		}

	case op == vm.OpLoadInt || op == vm.OpLoadArgument ||
		op == vm.OpLoadLocal || op == vm.OpStoreLocal || op.IsBranch():
		if stmt.Int == nil {
			return vm.Instruction{}, fmt.Errorf("xast: %s:%d: %s requires an integer operand", fnName, index, stmt.Op)
		}
		return vm.NewIntInstruction(op, *stmt.Int), nil

	default:
		if stmt.Int != nil || stmt.Float != nil || stmt.Call != nil {
			return vm.Instruction{}, fmt.Errorf("xast: %s:%d: %s takes no operand", fnName, index, stmt.Op)
		}
		return vm.NewInstruction(op), nil
	}
}
