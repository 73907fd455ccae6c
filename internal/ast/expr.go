package ast

import "github.com/pfez/revng-c/internal/ir"

// Expr is a small boolean expression DAG over atomic basic-block
// conditions. Leaves are shared: cloning an AST keeps pointing at the
// same atoms, and dispatcher simplification reuses sub-expressions
// freely.
type Expr interface {
	exprNode()
}

// AtomExpr is the branch condition computed by one basic block.
type AtomExpr struct {
	BB   *ir.Block
	Cond ir.Operand
}

func (e *AtomExpr) exprNode() {}

// NotExpr negates its operand.
type NotExpr struct {
	X Expr
}

func (e *NotExpr) exprNode() {}

// AndExpr is a short-circuit conjunction.
type AndExpr struct {
	L, R Expr
}

func (e *AndExpr) exprNode() {}

// OrExpr is a short-circuit disjunction.
type OrExpr struct {
	L, R Expr
}

func (e *OrExpr) exprNode() {}

// StateEqualsExpr compares the dispatcher state variable against a
// constant; it only appears in ifs promoted from dispatcher switches.
type StateEqualsExpr struct {
	Value uint64
}

func (e *StateEqualsExpr) exprNode() {}

// Not returns the negation of e, cancelling double negations.
func Not(e Expr) Expr {
	if n, ok := e.(*NotExpr); ok {
		return n.X
	}
	return &NotExpr{X: e}
}

// ExprEqual reports structural equality of two condition expressions.
// Atoms compare by identity of their basic block and operand.
func ExprEqual(a, b Expr) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case *AtomExpr:
		y, ok := b.(*AtomExpr)
		return ok && x.BB == y.BB && x.Cond == y.Cond
	case *NotExpr:
		y, ok := b.(*NotExpr)
		return ok && ExprEqual(x.X, y.X)
	case *AndExpr:
		y, ok := b.(*AndExpr)
		return ok && ExprEqual(x.L, y.L) && ExprEqual(x.R, y.R)
	case *OrExpr:
		y, ok := b.(*OrExpr)
		return ok && ExprEqual(x.L, y.L) && ExprEqual(x.R, y.R)
	case *StateEqualsExpr:
		y, ok := b.(*StateEqualsExpr)
		return ok && x.Value == y.Value
	}
	return false
}
