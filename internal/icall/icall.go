// Package icall implements the internal-call dispatch table: the small
// set of corlib methods whose bodies are runtime-provided Go code rather
// than interpreted bytecode.
package icall

import (
	"github.com/leanclr/leanclr/internal/rterror"
	"github.com/leanclr/leanclr/internal/vm"
)

// Value is the internal-call boundary's argument/return representation —
// deliberately independent of internal/interp.Slot so this package has no
// dependency on the interpreter; internal/interp converts at the call site.
type Value struct {
	I64 int64
	F64 float64
	Ref interface{}
}

// Func is one internal call's Go implementation. tag identifies the
// calling thread, for Monitor's recursive-ownership bookkeeping.
type Func func(monitors *vm.MonitorTable, tag int64, args []Value) (Value, error)

type key struct{ owner, name string }

var table = map[key]Func{
	{"Monitor", "Enter"}:       monitorEnter,
	{"Monitor", "Exit"}:        monitorExit,
	{"Monitor", "TryEnter"}:    monitorTryEnter,
	{"GC", "Collect"}:          gcCollect,
	{"GC", "SuppressFinalize"}: gcNop,
	{"Object", ".ctor"}:        objectCtor,
}

// Lookup returns the internal-call implementation for (ownerName,
// methodName), grounded on a *vm.Method's owning class/name, or false if
// none is registered — callers surface MissingMethod in that case.
func Lookup(ownerName, methodName string) (Func, bool) {
	fn, ok := table[key{ownerName, methodName}]
	return fn, ok
}

// Dispatch resolves and invokes the internal call for m, backing both
// internal-call/intrinsic recognition and the Monitor resource model.
func Dispatch(m *vm.Method, monitors *vm.MonitorTable, tag int64, args []Value) (Value, error) {
	owner := ""
	if m.Owner != nil {
		owner = m.Owner.Name
	}
	fn, ok := Lookup(owner, m.Name)
	if !ok {
		return Value{}, rterror.New(rterror.MissingMethod, "no internal call registered for %s.%s", owner, m.Name)
	}
	return fn(monitors, tag, args)
}

// monitorEnter/monitorExit/monitorTryEnter implement System.Threading.
// Monitor's icalls: args[0] is the locked object's reference, whose
// object.Header.MonitorIndex (already resolved by the caller into args[1]
// as the monitor-table slot) identifies the Monitor instance.
func monitorEnter(monitors *vm.MonitorTable, tag int64, args []Value) (Value, error) {
	idx := uint32(args[1].I64)
	monitors.Get(idx).Enter(tag)
	return Value{}, nil
}

func monitorExit(monitors *vm.MonitorTable, tag int64, args []Value) (Value, error) {
	idx := uint32(args[1].I64)
	monitors.Get(idx).Exit(tag)
	return Value{}, nil
}

func monitorTryEnter(monitors *vm.MonitorTable, tag int64, args []Value) (Value, error) {
	idx := uint32(args[1].I64)
	ok := monitors.Get(idx).TryEnter(tag)
	v := int64(0)
	if ok {
		v = 1
	}
	return Value{I64: v}, nil
}

// gcCollect/gcNop: this runtime has no generational collector of its own;
// System.GC's icalls are accepted and ignored, mirroring a host with no
// collector configured.
func gcCollect(_ *vm.MonitorTable, _ int64, _ []Value) (Value, error) { return Value{}, nil }
func gcNop(_ *vm.MonitorTable, _ int64, _ []Value) (Value, error)     { return Value{}, nil }

// objectCtor is System.Object's constructor: no fields, no base call.
// Normally the LL transformer already recognizes this as an intrinsic nop
// and never reaches this table; kept for the path where a
// method is invoked directly rather than through a lowered call site.
func objectCtor(_ *vm.MonitorTable, _ int64, _ []Value) (Value, error) { return Value{}, nil }
