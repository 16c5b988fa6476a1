// Package types implements the type descriptor model: base kinds,
// qualifiers, pointer/array composition, sizing and compatibility.
package types

import "strings"

// BaseKind enumerates the base kinds a Type can carry.
type BaseKind int

const (
	Invalid BaseKind = iota
	Void
	Char
	Short
	Int
	Long
	Float
	Double
	Pointer
	Array
	Struct
	Union
	Enum
	Function
	Process
	Semaphore
	Pid
	Unknown
)

func (b BaseKind) String() string {
	switch b {
	case Void:
		return "void"
	case Char:
		return "char"
	case Short:
		return "short"
	case Int:
		return "int"
	case Long:
		return "long"
	case Float:
		return "float"
	case Double:
		return "double"
	case Pointer:
		return "pointer"
	case Array:
		return "array"
	case Struct:
		return "struct"
	case Union:
		return "union"
	case Enum:
		return "enum"
	case Function:
		return "function"
	case Process:
		return "process"
	case Semaphore:
		return "semaphore"
	case Pid:
		return "pid"
	case Unknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Qualifier is a single bit in the qualifier bitset.
type Qualifier uint8

const (
	QConst Qualifier = 1 << iota
	QVolatile
	QUnsigned
	QSigned
	QStatic
	QExtern
	QRegister
)

const MaxArrayDims = 8

// Type is a type descriptor: a base kind, a qualifier bitset, pointer
// depth, array dimensions, and optional pointee/return/parameter
// types.
//
// Clone produces a deep copy of a type. The parser does not clone: a
// declaration and the symbol it defines share one descriptor.
type Type struct {
	Base       BaseKind
	Quals      Qualifier
	PtrDepth   int
	ArrayDims  int
	ArraySizes [MaxArrayDims]int

	Pointee    *Type
	ReturnType *Type
	Params     []*Type

	StructName string // for Struct/Union/Enum
}

func Basic(b BaseKind) *Type { return &Type{Base: b} }

// NewPointer builds a pointer type. A pointer type always has a
// non-nil pointee and depth >= 1.
func NewPointer(pointee *Type) *Type {
	depth := 1
	if pointee != nil && pointee.Base == Pointer {
		depth = pointee.PtrDepth + 1
	}
	return &Type{Base: Pointer, Pointee: pointee, PtrDepth: depth}
}

// NewArray builds an array type with one additional outermost dimension
// of the given size prepended to elem's existing dimensions (if elem is
// itself an array). size == -1 marks the outermost unknown-size case.
func NewArray(elem *Type, size int) *Type {
	t := &Type{Base: Array, Pointee: elem}
	if elem != nil && elem.Base == Array {
		t.ArrayDims = elem.ArrayDims + 1
		t.ArraySizes[0] = size
		for i := 0; i < elem.ArrayDims && i+1 < MaxArrayDims; i++ {
			t.ArraySizes[i+1] = elem.ArraySizes[i]
		}
	} else {
		t.ArrayDims = 1
		t.ArraySizes[0] = size
	}
	return t
}

// Clone performs the deep copy the ownership model requires.
func (t *Type) Clone() *Type {
	if t == nil {
		return nil
	}
	c := *t
	c.Pointee = t.Pointee.Clone()
	c.ReturnType = t.ReturnType.Clone()
	if t.Params != nil {
		c.Params = make([]*Type, len(t.Params))
		for i, p := range t.Params {
			c.Params[i] = p.Clone()
		}
	}
	return &c
}

func baseSize(b BaseKind) int {
	switch b {
	case Char:
		return 1
	case Short:
		return 2
	case Int:
		return 4
	case Long:
		return 8
	case Float:
		return 4
	case Double:
		return 8
	case Pointer:
		return 4
	case Pid:
		return 4
	case Semaphore:
		return 4
	case Void:
		return 0
	default:
		return 0
	}
}

// Size computes size(t) in bytes: the base-kind size times the
// product of the array dimensions.
func (t *Type) Size() int {
	if t == nil {
		return 0
	}
	if t.Base == Array {
		// ArraySizes already lists every nested dimension, so size the
		// innermost non-array element rather than the nested array.
		elem := t.Pointee
		for elem != nil && elem.Base == Array {
			elem = elem.Pointee
		}
		elemSize := 0
		if elem != nil {
			elemSize = elem.Size()
		}
		product := 1
		for i := 0; i < t.ArrayDims; i++ {
			n := t.ArraySizes[i]
			if n > 0 {
				product *= n
			}
		}
		return elemSize * product
	}
	if t.Base == Pointer {
		return baseSize(Pointer)
	}
	return baseSize(t.Base)
}

// IsPointer, IsArray report the composition of t.
func (t *Type) IsPointer() bool { return t != nil && t.Base == Pointer }
func (t *Type) IsArray() bool   { return t != nil && t.Base == Array }

func (t *Type) HasQual(q Qualifier) bool { return t != nil && t.Quals&q != 0 }

// Compatible implements the loose structural compatibility the parser
// and emitter rely on: identical base kind, matching pointer depth,
// and (for arrays/pointers) compatible element types. Qualifiers do
// not affect compatibility; there is no type checking beyond what
// parsing infers.
func Compatible(a, b *Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Base != b.Base {
		// Integral base kinds are mutually compatible.
		return isIntegral(a.Base) && isIntegral(b.Base)
	}
	switch a.Base {
	case Pointer:
		return a.PtrDepth == b.PtrDepth && Compatible(a.Pointee, b.Pointee)
	case Array:
		return Compatible(a.Pointee, b.Pointee)
	case Struct, Union, Enum:
		return a.StructName == b.StructName
	default:
		return true
	}
}

func isIntegral(b BaseKind) bool {
	switch b {
	case Char, Short, Int, Long, Pid, Semaphore:
		return true
	default:
		return false
	}
}

// String renders a debug-friendly type name, used by -dump-symbols.
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	var b strings.Builder
	if t.HasQual(QConst) {
		b.WriteString("const ")
	}
	if t.HasQual(QUnsigned) {
		b.WriteString("unsigned ")
	}
	switch t.Base {
	case Pointer:
		b.WriteString(t.Pointee.String())
		b.WriteString(strings.Repeat("*", t.PtrDepth))
	case Array:
		b.WriteString(t.Pointee.String())
		for i := 0; i < t.ArrayDims; i++ {
			if t.ArraySizes[i] > 0 {
				b.WriteString("[")
				b.WriteString(itoa(t.ArraySizes[i]))
				b.WriteString("]")
			} else {
				b.WriteString("[]")
			}
		}
	case Struct, Union, Enum:
		b.WriteString(t.Base.String())
		b.WriteString(" ")
		b.WriteString(t.StructName)
	default:
		b.WriteString(t.Base.String())
	}
	return b.String()
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits [20]byte
	i := len(digits)
	for n > 0 {
		i--
		digits[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		digits[i] = '-'
	}
	return string(digits[i:])
}
