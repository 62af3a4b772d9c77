package main

import (
	"fmt"
	"strings"

	"poly/pkg/ast"
)

type ProgramInsights struct {
	Functions []FunctionInfo
	Classes   []ClassInfo
	Imports   []string
}

type FunctionInfo struct {
	Name       string
	Parameters []string
	Line       int
}

type ClassInfo struct {
	Name    string
	Parent  string
	Methods []string
	Line    int
}

func analyzeProgram(program *ast.Program) ProgramInsights {
	insights := ProgramInsights{}
	for _, stmt := range program.Statements {
		walk(stmt, func(node ast.Statement) {
			switch n := node.(type) {
			case *ast.FunctionStatement:
				insights.Functions = append(insights.Functions, describeFunction(n))
			case *ast.ClassStatement:
				info := ClassInfo{Name: n.Name.Value, Line: n.Line()}
				if n.Parent != nil {
					info.Parent = n.Parent.Value
				}
				for _, m := range n.Methods {
					info.Methods = append(info.Methods, m.Name.Value)
				}
				insights.Classes = append(insights.Classes, info)
			case *ast.ImportStatement:
				insights.Imports = append(insights.Imports, n.Module)
			case *ast.FromImportStatement:
				insights.Imports = append(insights.Imports, n.Module+" ("+strings.Join(n.Names, ", ")+")")
			}
		})
	}
	return insights
}

func describeFunction(fn *ast.FunctionStatement) FunctionInfo {
	params := make([]string, 0, len(fn.Parameters))
	for _, p := range fn.Parameters {
		params = append(params, p.String())
	}
	return FunctionInfo{Name: fn.Name.Value, Parameters: params, Line: fn.Line()}
}

// walk visits stmt and every statement nested in its blocks. Class methods
// are reported with their class, not as functions.
func walk(stmt ast.Statement, visitor func(ast.Statement)) {
	if stmt == nil {
		return
	}

	visitor(stmt)

	switch n := stmt.(type) {
	case *ast.BlockStatement:
		for _, s := range n.Statements {
			walk(s, visitor)
		}
	case *ast.FunctionStatement:
		walkBlock(n.Body, visitor)
	case *ast.IfStatement:
		walkBlock(n.Consequence, visitor)
		for _, elif := range n.Elifs {
			walkBlock(elif.Body, visitor)
		}
		walkBlock(n.Alternative, visitor)
	case *ast.WhileStatement:
		walkBlock(n.Body, visitor)
	case *ast.ForStatement:
		walkBlock(n.Body, visitor)
	case *ast.TryStatement:
		walkBlock(n.Body, visitor)
		walkBlock(n.Handler, visitor)
		walkBlock(n.Finally, visitor)
	}
}

func walkBlock(block *ast.BlockStatement, visitor func(ast.Statement)) {
	if block == nil {
		return
	}
	for _, s := range block.Statements {
		walk(s, visitor)
	}
}

func printFunctionInsights(functions []FunctionInfo) {
	fmt.Printf("Functions (%d)\n", len(functions))
	if len(functions) == 0 {
		fmt.Println("  · No function definitions found.")
		return
	}
	for _, fn := range functions {
		fmt.Printf("  · def %s(%s)  line %d\n", fn.Name, strings.Join(fn.Parameters, ", "), fn.Line)
	}
}

func printClassInsights(classes []ClassInfo) {
	fmt.Printf("Classes (%d)\n", len(classes))
	for _, c := range classes {
		name := c.Name
		if c.Parent != "" {
			name += "(" + c.Parent + ")"
		}
		fmt.Printf("  · class %s  line %d\n", name, c.Line)
		for _, m := range c.Methods {
			fmt.Printf("      %s\n", m)
		}
	}
}

func printImportInsights(imports []string) {
	fmt.Printf("Imports (%d)\n", len(imports))
	for _, imp := range imports {
		fmt.Printf("  · %s\n", imp)
	}
}
