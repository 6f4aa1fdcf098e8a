// Package interp implements the stack-machine interpreter: a
// frame-based dispatch loop over internal/llir's packed instruction
// stream, with an exception unwind/finally/fault/filter protocol.
package interp

import (
	"github.com/leanclr/leanclr/internal/object"
)

// Kind tags a Slot's active representation.
type Kind int

const (
	KindI4 Kind = iota
	KindI8
	KindR4
	KindR8
	KindRef
)

// Slot is one stack-object unit: an argument, a local, or an
// evaluation-stack element. Value types wider than one stack-object unit
// are represented by Ref pointing at a boxed carrier — full N-slot value
// type layout on the raw stack is future work (see DESIGN.md).
type Slot struct {
	Kind Kind
	I32  int32
	I64  int64
	F32  float32
	F64  float64
	Ref  interface{} // *object.Object, *object.Array, *object.String, or nil
}

func i4(v int32) Slot        { return Slot{Kind: KindI4, I32: v} }
func i8(v int64) Slot        { return Slot{Kind: KindI8, I64: v} }
func r4(v float32) Slot      { return Slot{Kind: KindR4, F32: v} }
func r8(v float64) Slot      { return Slot{Kind: KindR8, F64: v} }
func ref(v interface{}) Slot { return Slot{Kind: KindRef, Ref: v} }

// asObject extracts the *object.Object a reference-kind slot carries, or
// nil for a null reference / non-object reference kind.
func asObject(s Slot) *object.Object {
	if s.Kind != KindRef {
		return nil
	}
	o, _ := s.Ref.(*object.Object)
	return o
}

// asArray extracts the *object.Array a reference-kind slot carries, or nil
// for a null reference / non-array reference kind.
func asArray(s Slot) *object.Array {
	if s.Kind != KindRef {
		return nil
	}
	a, _ := s.Ref.(*object.Array)
	return a
}

// Frame is one active method invocation: the argument/local/eval-stack
// region (, all in stack-object units), the current
// instruction cursor, and exception-unwind bookkeeping.
type Frame struct {
	Method *boundMethod
	Slots  []Slot
	SP     int // next free eval-stack slot index; starts at ArgLocalStackObjSize
	IP     int // current index into Method.IR.Instrs

	Caller *Frame

	// pendingFinally/leaveTarget drive a leave-with-finally chain: the
	// remaining clause indices to execute (innermost first), and the
	// byte offset to jump to once they're exhausted.
	pendingFinally []int
	leaveTarget    uint32

	// caught is the currently-propagating/caught exception reference,
	// valid inside a catch or filter clause for `rethrow`.
	caught *object.Object
}

func (f *Frame) push(s Slot) { f.Slots[f.SP] = s; f.SP++ }
func (f *Frame) pop() Slot   { f.SP--; return f.Slots[f.SP] }
func (f *Frame) top() Slot   { return f.Slots[f.SP-1] }
