package interp

import (
	"github.com/leanclr/leanclr/internal/hlir"
	"github.com/leanclr/leanclr/internal/icall"
	"github.com/leanclr/leanclr/internal/llir"
	"github.com/leanclr/leanclr/internal/rterror"
	"github.com/leanclr/leanclr/internal/vm"
)

// boundMethod pairs a vm.Method's static metadata with its lowered LL-IR
// body, cached on vm.Method.InterpBody (declared there as interface{} to
// avoid an import cycle, per its own doc comment).
type boundMethod struct {
	Decl *vm.Method
	IR   *llir.Method
}

// Bind lowers hl (the HL-IR already produced by internal/hlir from m's
// decoded bytecode) through internal/llir and caches the result on m, so
// later Invoke calls skip re-lowering. Re-binding replaces any prior body,
// matching the re-lower-per-inflation model .8 describes for
// generic methods.
func Bind(m *vm.Method, hl *hlir.Method, width llir.Width) error {
	ir, err := llir.Transform(hl, width)
	if err != nil {
		return err
	}
	m.InterpBody = &boundMethod{Decl: m, IR: ir}
	return nil
}

// Context is the ambient state shared by every frame in one thread's call
// chain: the object monitor table and this thread's identity tag.
type Context struct {
	Monitors  *vm.MonitorTable
	Width     llir.Width
	ThreadTag int64

	// StackBudget is the maximum combined stack-object count (across all
	// active frames) this thread may use before StackOverflow, checked at
	// call entry.
	StackBudget int
	used        int
}

// Invoke dispatches m per its InvokerKind (the call-entry/return
// protocol for interpreted bodies; the intrinsic/internal-call
// recognition for the rest). args excludes nothing — callers include the
// receiver as args[0] for non-static methods.
func Invoke(ctx *Context, m *vm.Method, args []Slot) (Slot, bool, error) {
	switch m.InvokerKind {
	case vm.InvokerInterpreter, vm.InvokerInterpreterVirtualAdjustThunk:
		bm, ok := m.InterpBody.(*boundMethod)
		if !ok || bm == nil {
			return Slot{}, false, rterror.New(rterror.ExecutionEngine, "method %s has no bound interpreter body", m.Name)
		}
		return runMethod(ctx, bm, args)

	case vm.InvokerInternalCall, vm.InvokerRuntimeImpl, vm.InvokerNewObj:
		iargs := make([]icall.Value, len(args))
		for i, s := range args {
			iargs[i] = slotToValue(s)
		}
		v, err := icall.Dispatch(m, ctx.Monitors, ctx.ThreadTag, iargs)
		if err != nil {
			return Slot{}, false, err
		}
		if m.ReturnType == nil {
			return Slot{}, false, nil
		}
		return valueToSlot(v), true, nil

	case vm.InvokerIntrinsic:
		// Reached only when a method is invoked directly rather than
		// through a call site the LL transformer already intrinsified;
		// Object..ctor is the only intrinsic with no return value this
		// runtime exposes as a standalone entry point.
		return Slot{}, false, nil

	default:
		return Slot{}, false, rterror.New(rterror.NotImplemented, "no invoker strategy for method %s", m.Name)
	}
}

func slotToValue(s Slot) icall.Value {
	switch s.Kind {
	case KindI4:
		return icall.Value{I64: int64(s.I32)}
	case KindI8:
		return icall.Value{I64: s.I64}
	case KindR4:
		return icall.Value{F64: float64(s.F32)}
	case KindR8:
		return icall.Value{F64: s.F64}
	default:
		return icall.Value{Ref: s.Ref}
	}
}

func valueToSlot(v icall.Value) Slot {
	if v.Ref != nil {
		return ref(v.Ref)
	}
	return i8(v.I64)
}
