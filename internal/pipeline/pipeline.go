// Package pipeline drives the decompiler core over a module: combing,
// bit-liveness, and data-layout reconstruction per function. Each
// function is all-or-nothing: a fatal error drops that function's
// results and moves on to the next.
package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"k8s.io/klog/v2"

	"github.com/pfez/revng-c/internal/ast"
	"github.com/pfez/revng-c/internal/bitliveness"
	"github.com/pfez/revng-c/internal/config"
	"github.com/pfez/revng-c/internal/dla"
	"github.com/pfez/revng-c/internal/flowgraph"
	"github.com/pfez/revng-c/internal/ir"
	"github.com/pfez/revng-c/internal/restructure"
)

// FunctionResult holds everything the core derives for one function.
type FunctionResult struct {
	Function *ir.Function
	AST      *ast.Tree
	Liveness *bitliveness.Result
	Err      error
}

// Result is the outcome of a module run.
type Result struct {
	Functions []FunctionResult
	Layouts   dla.ValueLayoutMap
}

// Pipeline runs the core passes.
type Pipeline struct {
	cfg config.Config
}

// New returns a pipeline with the given configuration.
func New(cfg config.Config) *Pipeline {
	return &Pipeline{cfg: cfg}
}

// Run processes every function of the module and, when a layout type
// system is supplied, materialises its layouts. A per-function error
// aborts only that function.
func (p *Pipeline) Run(m *ir.Module, ts *dla.TypeSystem, values []ir.ValueID) (*Result, error) {
	res := &Result{}

	for _, f := range m.Functions {
		fr := p.runFunction(f)
		if fr.Err != nil {
			klog.Warningf("function %s dropped: %v", f.Name, fr.Err)
		}
		res.Functions = append(res.Functions, fr)
	}

	if ts != nil && !p.cfg.SkipLayouts {
		lv := dla.NewLayoutVector()
		ordered, err := dla.MakeLayouts(ts, lv)
		if err != nil {
			return nil, err
		}
		res.Layouts = dla.MakeLayoutMap(values, ordered, ts.EqClasses())
	}
	return res, nil
}

func (p *Pipeline) runFunction(f *ir.Function) FunctionResult {
	fr := FunctionResult{Function: f}

	if p.cfg.DumpDir != "" {
		p.dumpCFG(f)
	}

	tree, err := restructure.Restructure(f, restructure.Options{
		DuplicateWhileConditionInBody: p.cfg.DuplicateWhileConditionInBody,
		MaxInflation:                  p.cfg.MaxInflation,
	})
	if err != nil {
		fr.Err = fmt.Errorf("restructuring %s: %w", f.Name, err)
		return fr
	}
	fr.AST = tree

	if p.cfg.DumpDir != "" {
		p.dumpAST(f, tree)
	}

	if !p.cfg.SkipBitLiveness {
		fr.Liveness = bitliveness.Analyze(f)
	}
	return fr
}

func (p *Pipeline) dumpCFG(f *ir.Function) {
	path := filepath.Join(p.cfg.DumpDir, f.Name+".cfg.dot")
	w, err := os.Create(path)
	if err != nil {
		klog.Warningf("cannot dump %s: %v", path, err)
		return
	}
	defer w.Close()
	if err := flowgraph.FromFunction(f).WriteDot(w); err != nil {
		klog.Warningf("cannot dump %s: %v", path, err)
	}
}

func (p *Pipeline) dumpAST(f *ir.Function, tree *ast.Tree) {
	path := filepath.Join(p.cfg.DumpDir, f.Name+".ast.dot")
	w, err := os.Create(path)
	if err != nil {
		klog.Warningf("cannot dump %s: %v", path, err)
		return
	}
	defer w.Close()
	if err := tree.WriteDot(w); err != nil {
		klog.Warningf("cannot dump %s: %v", path, err)
	}
}
