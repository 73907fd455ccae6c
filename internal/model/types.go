// Package model holds the slice of the binary model the decompiler core
// consumes: qualified value types and the target architecture. The full
// model lives upstream; the core only relies on the interfaces below.
package model

// QualifiedType describes the type of an IR value.
type QualifiedType interface {
	// IsScalar reports whether the type is a scalar (integer or float).
	IsScalar() bool
	// IsVoid reports whether the type carries no value.
	IsVoid() bool
	// IsPointer reports whether the type is a pointer.
	IsPointer() bool
	// Size returns the size in bytes, when known.
	Size() (uint64, bool)
}

// Architecture describes the decompilation target.
type Architecture struct {
	// PointerSize is the pointer width in bytes.
	PointerSize uint64
}

// IntType is an integer of a fixed bit width.
type IntType struct {
	Bits uint32
}

func (t IntType) IsScalar() bool  { return true }
func (t IntType) IsVoid() bool    { return false }
func (t IntType) IsPointer() bool { return false }

func (t IntType) Size() (uint64, bool) {
	return uint64(t.Bits+7) / 8, true
}

// FloatType is a floating-point scalar.
type FloatType struct {
	Bits uint32
}

func (t FloatType) IsScalar() bool  { return true }
func (t FloatType) IsVoid() bool    { return false }
func (t FloatType) IsPointer() bool { return false }

func (t FloatType) Size() (uint64, bool) {
	return uint64(t.Bits+7) / 8, true
}

// PointerType is a pointer on the given architecture.
type PointerType struct {
	Arch Architecture
}

func (t PointerType) IsScalar() bool  { return false }
func (t PointerType) IsVoid() bool    { return false }
func (t PointerType) IsPointer() bool { return true }

func (t PointerType) Size() (uint64, bool) {
	return t.Arch.PointerSize, true
}

// VoidType carries no value.
type VoidType struct{}

func (t VoidType) IsScalar() bool       { return false }
func (t VoidType) IsVoid() bool         { return true }
func (t VoidType) IsPointer() bool      { return false }
func (t VoidType) Size() (uint64, bool) { return 0, false }

// IntBits returns the bit width of an integer type, or false for any
// other type.
func IntBits(t QualifiedType) (uint32, bool) {
	it, ok := t.(IntType)
	if !ok {
		return 0, false
	}
	return it.Bits, true
}
