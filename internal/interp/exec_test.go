package interp

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/leanclr/leanclr/internal/llir"
	"github.com/leanclr/leanclr/internal/object"
	"github.com/leanclr/leanclr/internal/vm"
)

func newTestContext() *Context {
	return &Context{Monitors: vm.NewMonitorTable(), Width: llir.Width64, StackBudget: 0}
}

func bindDirect(ir *llir.Method) (*boundMethod, *vm.Method) {
	decl := &vm.Method{Name: "Test", InvokerKind: vm.InvokerInterpreter}
	bm := &boundMethod{Decl: decl, IR: ir}
	decl.InterpBody = bm
	return bm, decl
}

// TestArithmeticAdd exercises a hand-assembled loop-free addition sequence
// (3 + 4): arg load, I4 add, and return.
func TestArithmeticAdd(t *testing.T) {
	ir := &llir.Method{
		ArgLocalStackObjSize: 2,
		MaxStack:             2,
		Instrs: []llir.Instr{
			{Op: llir.OpLdArg, Offset: 0, Slot: 0},
			{Op: llir.OpLdArg, Offset: 1, Slot: 1},
			{Op: llir.OpAddI4, Offset: 2},
			{Op: llir.OpRet, Offset: 3},
		},
	}
	bm, _ := bindDirect(ir)

	ctx := newTestContext()
	result, hasResult, err := runMethod(ctx, bm, []Slot{i4(3), i4(4)})
	assert.NoError(t, err)
	assert.True(t, hasResult)
	assert.Equal(t, int32(7), result.I32)
}

// TestBranchSkipsWhenFalse grounds the brfalse opcode: a zero argument must
// skip straight to the "false" path's constant.
func TestBranchSkipsWhenFalse(t *testing.T) {
	ir := &llir.Method{
		ArgLocalStackObjSize: 1,
		MaxStack:             1,
		Instrs: []llir.Instr{
			{Op: llir.OpLdArg, Offset: 0, Slot: 0},
			{Op: llir.OpBrfalse, Offset: 1, BranchTarget: 4},
			{Op: llir.OpLdcI4, Offset: 2, ImmI64: 1},
			{Op: llir.OpRet, Offset: 3},
			{Op: llir.OpLdcI4, Offset: 4, ImmI64: 99},
			{Op: llir.OpRet, Offset: 5},
		},
	}
	bm, _ := bindDirect(ir)

	ctx := newTestContext()
	result, _, err := runMethod(ctx, bm, []Slot{i4(0)})
	assert.NoError(t, err)
	assert.Equal(t, int32(99), result.I32)
}

// TestTryCatchFinallyOrdering: a throw inside a protected region is
// caught, the catch handler runs, and the handler's
// `leave` drives the sibling finally clause before control reaches the
// post-try code. Ordering is observed through loc0's accumulated value:
// 1 (try body) -> 2 (catch body) -> 12 (+10 in the finally body).
func TestTryCatchFinallyOrdering(t *testing.T) {
	// Offsets double as instruction indices here for readability; nothing
	// in this test round-trips them through a real byte encoding. Slot 0
	// holds the exception argument (so `throw` has a non-null object to
	// propagate, per spec's catch-matching rule); slot 1 is loc0.
	ir := &llir.Method{
		ArgLocalStackObjSize: 2,
		MaxStack:             2,
		Instrs: []llir.Instr{
			{Op: llir.OpLdcI4, Offset: 0, ImmI64: 1}, // 0: push 1
			{Op: llir.OpStLoc, Offset: 1, Slot: 1},   // 1: loc0 = 1
			{Op: llir.OpLdArg, Offset: 2, Slot: 0},   // 2: push exception arg
			{Op: llir.OpThrow, Offset: 3},            // 3: throw
			{Op: llir.OpPop, Offset: 4},              // 4 (catch start): discard exception
			{Op: llir.OpLdcI4, Offset: 5, ImmI64: 2}, // 5: push 2
			{Op: llir.OpStLoc, Offset: 6, Slot: 1},   // 6: loc0 = 2
			{Op: llir.OpLeaveCatchWithFinally, Offset: 7, BranchTarget: 13, FinallyClauses: []int{1}}, // 7
			{Op: llir.OpLdLoc, Offset: 8, Slot: 1},                                                    // 8 (finally start): push loc0
			{Op: llir.OpLdcI4, Offset: 9, ImmI64: 10},                                                 // 9: push 10
			{Op: llir.OpAddI4, Offset: 10},                                                            // 10: add
			{Op: llir.OpStLoc, Offset: 11, Slot: 1},                                                   // 11: loc0 = loc0+10
			{Op: llir.OpEndfinally, Offset: 12},                                                       // 12
			{Op: llir.OpLdLoc, Offset: 13, Slot: 1},                                                   // 13 (after leave): push loc0
			{Op: llir.OpRet, Offset: 14},                                                              // 14
		},
		Clauses: []llir.ExceptionClause{
			{Kind: llir.ClauseCatch, TryStart: 0, TryEnd: 4, HandlerStart: 4, HandlerEnd: 8, CatchClassResolved: -1},
			{Kind: llir.ClauseFinally, TryStart: 0, TryEnd: 4, HandlerStart: 8, HandlerEnd: 13},
		},
	}
	bm, _ := bindDirect(ir)

	excObj := &object.Object{Header: object.Header{Class: &vm.Class{Name: "MyException"}}}
	ctx := newTestContext()
	result, hasResult, err := runMethod(ctx, bm, []Slot{ref(excObj)})
	assert.NoError(t, err)
	assert.True(t, hasResult)
	assert.Equal(t, int32(12), result.I32)
}

// TestDivideByZeroUncaught grounds the DivideByZero engine fault escaping a
// frame with no enclosing handler.
func TestDivideByZeroUncaught(t *testing.T) {
	ir := &llir.Method{
		ArgLocalStackObjSize: 0,
		MaxStack:             2,
		Instrs: []llir.Instr{
			{Op: llir.OpLdcI4, Offset: 0, ImmI64: 1},
			{Op: llir.OpLdcI4, Offset: 1, ImmI64: 0},
			{Op: llir.OpDivI4, Offset: 2},
			{Op: llir.OpRet, Offset: 3},
		},
	}
	bm, _ := bindDirect(ir)

	ctx := newTestContext()
	_, _, err := runMethod(ctx, bm, nil)
	assert.Error(t, err)
}
