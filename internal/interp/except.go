package interp

import (
	"github.com/leanclr/leanclr/internal/llir"
	"github.com/leanclr/leanclr/internal/object"
	"github.com/leanclr/leanclr/internal/rterror"
	"github.com/leanclr/leanclr/internal/vm"
)

// throwErr packages a thrown managed exception reference as the *rterror.
// RtErr this package propagates through step/runMethod:
// engine-raised faults (DivideByZero, NullReference, ...) and explicit
// `throw`/`rethrow` share one propagation channel, distinguished by
// whether Managed is populated.
func throwErr(obj *object.Object) error {
	e := rterror.New(rterror.ExecutionEngine, "managed exception thrown")
	e.Managed = obj
	return e
}

// unwindFrame runs the unwind search for f at its current IP:
// walk f.Method.IR.Clauses innermost-first, running any finally/fault
// clauses passed over along the way, until a catch or accepting filter is
// found (handled=true, f.IP now at the handler) or the search is exhausted
// (handled=false — f's finally/fault clauses have all still run, and the
// exception is the caller's to handle).
func unwindFrame(ctx *Context, f *Frame, cause error, ip uint32) (bool, error) {
	obj := managedOf(cause)

	var pendingCleanup []int
	clauses := f.Method.IR.Clauses

	type match struct {
		idx int
		c   llir.ExceptionClause
	}
	var enclosing []match
	for i, c := range clauses {
		if ip >= c.TryStart && ip < c.TryEnd {
			enclosing = append(enclosing, match{i, c})
		}
	}
	// Innermost first: smallest try range.
	for i := 0; i < len(enclosing); i++ {
		for j := i + 1; j < len(enclosing); j++ {
			wi := enclosing[i].c.TryEnd - enclosing[i].c.TryStart
			wj := enclosing[j].c.TryEnd - enclosing[j].c.TryStart
			if wj < wi {
				enclosing[i], enclosing[j] = enclosing[j], enclosing[i]
			}
		}
	}

	runCleanup := func() error {
		for _, idx := range pendingCleanup {
			if err := runHandlerToEndfinally(ctx, f, clauses[idx]); err != nil {
				return err
			}
		}
		pendingCleanup = nil
		return nil
	}

	for _, m := range enclosing {
		switch m.c.Kind {
		case llir.ClauseCatch:
			if obj == nil {
				continue
			}
			target := classOf(f, m.c)
			if target != nil && !assignableObj(obj, target) {
				continue
			}
			if err := runCleanup(); err != nil {
				return false, err
			}
			f.caught = obj
			f.SP = int(f.Method.IR.ArgLocalStackObjSize)
			f.push(ref(obj))
			f.IP = f.Method.IR.InstrAt(m.c.HandlerStart)
			return true, nil

		case llir.ClauseFilter:
			if obj == nil {
				continue
			}
			accept, err := runFilter(ctx, f, m.c, obj)
			if err != nil {
				return false, err
			}
			if !accept {
				continue
			}
			if err := runCleanup(); err != nil {
				return false, err
			}
			f.caught = obj
			f.SP = int(f.Method.IR.ArgLocalStackObjSize)
			f.push(ref(obj))
			f.IP = f.Method.IR.InstrAt(m.c.HandlerStart)
			return true, nil

		case llir.ClauseFinally, llir.ClauseFault:
			pendingCleanup = append(pendingCleanup, m.idx)
		}
	}

	if err := runCleanup(); err != nil {
		return false, err
	}
	return false, nil
}

// runHandlerToEndfinally executes a finally/fault clause's body from its
// HandlerStart until it reaches OpEndfinally, saving and restoring the
// frame's normal instruction cursor.
func runHandlerToEndfinally(ctx *Context, f *Frame, c llir.ExceptionClause) error {
	savedIP, savedSP := f.IP, f.SP
	f.IP = f.Method.IR.InstrAt(c.HandlerStart)
	for {
		if f.Method.IR.Instrs[f.IP].Op == llir.OpEndfinally {
			break
		}
		_, _, done, err := step(ctx, f)
		if err != nil {
			return err
		}
		if done {
			break
		}
	}
	f.IP, f.SP = savedIP, savedSP
	return nil
}

// runFilter executes a filter clause's evaluation code from FilterStart,
// with the exception pushed as its sole input, stopping at OpEndfilter and
// reading its I4 result rather than falling through the main dispatch path
// ( the filter's outcome decides whether its sibling handler
// accepts the exception, without ever truly transferring control to it).
func runFilter(ctx *Context, f *Frame, c llir.ExceptionClause, obj *object.Object) (bool, error) {
	savedIP, savedSP := f.IP, f.SP
	f.SP = int(f.Method.IR.ArgLocalStackObjSize)
	f.push(ref(obj))
	f.IP = f.Method.IR.InstrAt(c.FilterStart)
	var result int32
	for {
		if f.Method.IR.Instrs[f.IP].Op == llir.OpEndfilter {
			result = f.top().I32
			break
		}
		_, _, done, err := step(ctx, f)
		if err != nil {
			f.IP, f.SP = savedIP, savedSP
			return false, err
		}
		if done {
			break
		}
	}
	f.IP, f.SP = savedIP, savedSP
	return result != 0, nil
}

func classOf(f *Frame, c llir.ExceptionClause) *vm.Class {
	if c.CatchClassResolved < 0 {
		return nil
	}
	return f.Method.IR.Pool.Entries()[c.CatchClassResolved].Class
}

func managedOf(err error) *object.Object {
	rt, ok := err.(*rterror.RtErr)
	if !ok || rt.Managed == nil {
		return nil
	}
	o, _ := rt.Managed.(*object.Object)
	return o
}
