package ir

import "github.com/pfez/revng-c/internal/model"

// Builder constructs IR functions block by block. It exists for the
// tests and the CLI fixtures; a real lifter produces Modules directly.
type Builder struct {
	fn      *Function
	current *Block
}

// NewBuilder starts a function with an empty entry block.
func NewBuilder(name string) *Builder {
	b := &Builder{fn: &Function{Name: name, nextValue: 1}}
	b.current = b.Block("entry")
	return b
}

// Block creates a block with the given name, or returns the existing
// one. Targets may be created before their instructions.
func (b *Builder) Block(name string) *Block {
	for _, blk := range b.fn.Blocks {
		if blk.Name == name {
			return blk
		}
	}
	blk := &Block{ID: BlockID(len(b.fn.Blocks)), Name: name}
	b.fn.Blocks = append(b.fn.Blocks, blk)
	return blk
}

// SetBlock switches the insertion point.
func (b *Builder) SetBlock(blk *Block) {
	b.current = blk
}

// Current returns the insertion block.
func (b *Builder) Current() *Block {
	return b.current
}

func (b *Builder) nextID() ValueID {
	id := b.fn.nextValue
	b.fn.nextValue++
	return id
}

func (b *Builder) emit(ins Instr) {
	b.current.Instrs = append(b.current.Instrs, ins)
}

// Binary emits a binary operation of the given integer width.
func (b *Builder) Binary(op Opcode, left, right Operand, bits uint32) Operand {
	t := model.IntType{Bits: bits}
	res := b.nextID()
	b.emit(&Binary{Res: res, Op: op, Left: left, Right: right, Type: t})
	return Val(res, t)
}

// Cast emits a width conversion.
func (b *Builder) Cast(kind CastKind, x Operand, bits uint32) Operand {
	t := model.IntType{Bits: bits}
	res := b.nextID()
	b.emit(&Cast{Res: res, Kind: kind, X: x, Type: t})
	return Val(res, t)
}

// Load emits a load of an integer of the given width.
func (b *Builder) Load(addr Operand, bits uint32) Operand {
	t := model.IntType{Bits: bits}
	res := b.nextID()
	b.emit(&Load{Res: res, Addr: addr, Type: t})
	return Val(res, t)
}

// Store emits a store.
func (b *Builder) Store(addr, value Operand) {
	b.emit(&Store{Addr: addr, Value: value})
}

// Call emits a call returning an integer of the given width; bits == 0
// yields a void call.
func (b *Builder) Call(target string, tags TagSet, bits uint32, args ...Operand) Operand {
	var t model.QualifiedType = model.VoidType{}
	res := InvalidValue
	if bits > 0 {
		t = model.IntType{Bits: bits}
		res = b.nextID()
	}
	b.emit(&Call{Res: res, Target: target, Tags: tags, Args: args, Type: t})
	return Val(res, t)
}

// Param introduces a fresh SSA value of the given width without an
// instruction, standing in for a function parameter.
func (b *Builder) Param(bits uint32) Operand {
	t := model.IntType{Bits: bits}
	return Val(b.nextID(), t)
}

// Ret terminates the current block with a return.
func (b *Builder) Ret(value ...Operand) {
	r := &Ret{}
	if len(value) > 0 {
		r.Value = value[0]
		r.HasValue = true
	}
	b.current.Term = r
}

// Br terminates the current block with an unconditional branch.
func (b *Builder) Br(target *Block) {
	b.current.Term = &Br{Target: target}
}

// CondBr terminates the current block with a conditional branch.
func (b *Builder) CondBr(cond Operand, then, els *Block) {
	b.current.Term = &CondBr{Cond: cond, Then: then, Else: els}
}

// CondBrNegated is CondBr with the condition logically complemented.
func (b *Builder) CondBrNegated(cond Operand, then, els *Block) {
	b.current.Term = &CondBr{Cond: cond, Negated: true, Then: then, Else: els}
}

// Switch terminates the current block with a switch.
func (b *Builder) Switch(cond Operand, def *Block, cases ...SwitchCase) {
	b.current.Term = &Switch{Cond: cond, Cases: cases, Default: def}
}

// Function finishes construction and returns the function.
func (b *Builder) Function() *Function {
	return b.fn
}
