package ir

import "github.com/pfez/revng-c/internal/model"

// Instr is the base interface for IR instructions.
type Instr interface {
	irInstr()
	// Result returns the defined SSA value, or InvalidValue for
	// instructions without a result.
	Result() ValueID
	// Operands returns the instruction inputs in operand order.
	Operands() []Operand
}

// Opcode enumerates binary operators.
type Opcode int

const (
	And Opcode = iota
	Or
	Xor
	Add
	Sub
	Mul
	Shl
	LShr
	AShr
	CmpEQ
	CmpNE
	CmpULT
	CmpSLT
)

var opcodeNames = [...]string{
	"and", "or", "xor", "add", "sub", "mul",
	"shl", "lshr", "ashr",
	"cmp.eq", "cmp.ne", "cmp.ult", "cmp.slt",
}

func (op Opcode) String() string { return opcodeNames[op] }

// Binary performs a binary operation.
type Binary struct {
	Res   ValueID
	Op    Opcode
	Left  Operand
	Right Operand
	Type  model.QualifiedType
}

func (b *Binary) irInstr()            {}
func (b *Binary) Result() ValueID     { return b.Res }
func (b *Binary) Operands() []Operand { return []Operand{b.Left, b.Right} }

// CastKind enumerates width-changing conversions.
type CastKind int

const (
	Trunc CastKind = iota
	ZExt
	SExt
)

var castKindNames = [...]string{"trunc", "zext", "sext"}

func (k CastKind) String() string { return castKindNames[k] }

// Cast converts a value to another integer width.
type Cast struct {
	Res  ValueID
	Kind CastKind
	X    Operand
	Type model.QualifiedType
}

func (c *Cast) irInstr()            {}
func (c *Cast) Result() ValueID     { return c.Res }
func (c *Cast) Operands() []Operand { return []Operand{c.X} }

// Load reads a value from a pointer.
type Load struct {
	Res  ValueID
	Addr Operand
	Type model.QualifiedType
}

func (l *Load) irInstr()            {}
func (l *Load) Result() ValueID     { return l.Res }
func (l *Load) Operands() []Operand { return []Operand{l.Addr} }

// Store writes a value to a pointer.
type Store struct {
	Addr  Operand
	Value Operand
}

func (s *Store) irInstr()            {}
func (s *Store) Result() ValueID     { return InvalidValue }
func (s *Store) Operands() []Operand { return []Operand{s.Addr, s.Value} }

// Call represents a direct function call.
type Call struct {
	Res      ValueID
	Target   string
	Tags     TagSet
	Args     []Operand
	Type     model.QualifiedType
	Isolated bool
}

func (c *Call) irInstr()            {}
func (c *Call) Result() ValueID     { return c.Res }
func (c *Call) Operands() []Operand { return c.Args }

// ResultType returns the type of the value defined by ins, or nil when
// ins defines none.
func ResultType(ins Instr) model.QualifiedType {
	switch t := ins.(type) {
	case *Binary:
		return t.Type
	case *Cast:
		return t.Type
	case *Load:
		return t.Type
	case *Call:
		return t.Type
	}
	return nil
}

// HasSideEffects reports whether ins must be preserved regardless of
// its result being observed.
func HasSideEffects(ins Instr) bool {
	switch ins.(type) {
	case *Store, *Call:
		return true
	}
	return false
}
