package interp

import (
	"github.com/leanclr/leanclr/internal/llir"
	"github.com/leanclr/leanclr/internal/object"
	"github.com/leanclr/leanclr/internal/rterror"
	"github.com/leanclr/leanclr/internal/vm"
)

// runMethod executes bm's IR from offset 0 in a fresh frame: a stack-budget
// check, a new frame at
// the first argument slot, zero-initialized locals when InitLocals, then
// dispatch from IR offset 0.
func runMethod(ctx *Context, bm *boundMethod, args []Slot) (Slot, bool, error) {
	need := int(bm.IR.ArgLocalStackObjSize + bm.IR.MaxStack)
	if ctx.StackBudget > 0 && ctx.used+need > ctx.StackBudget {
		return Slot{}, false, rterror.Wrap(rterror.StackOverflow, rterror.ErrStackOverflow,
			"method %s needs %d stack objects, budget exhausted", bm.Decl.Name, need)
	}
	ctx.used += need
	defer func() { ctx.used -= need }()

	f := &Frame{
		Method: bm,
		Slots:  make([]Slot, need),
		SP:     int(bm.IR.ArgLocalStackObjSize),
	}
	copy(f.Slots, args)
	// InitLocals zero-fills local storage beyond the copied arguments;
	// make's zero value already satisfies this, so nothing further is
	// required when InitLocals is set. When it is not set, locals are
	// formally allowed to start uninitialized; this runtime still zeroes
	// them (a Go slice has no uninitialized-memory concept to exploit),
	// a conservative, always-safe deviation.

	for {
		faultOffset := f.Method.IR.Instrs[f.IP].Offset
		result, hasResult, done, err := step(ctx, f)
		if err != nil {
			handled, herr := unwindFrame(ctx, f, err, faultOffset)
			if herr != nil {
				return Slot{}, false, herr
			}
			if !handled {
				return Slot{}, false, err
			}
			continue
		}
		if done {
			return result, hasResult, nil
		}
	}
}

// step executes the instruction at f.IP, returning (result, hasResult,
// done, err): done is true only for OpRet, at which point result/hasResult
// carry the method's return value.
func step(ctx *Context, f *Frame) (Slot, bool, bool, error) {
	in := &f.Method.IR.Instrs[f.IP]
	pool := f.Method.IR.Pool

	advance := true
	defer func() {
		if advance {
			f.IP++
		}
	}()

	switch in.Op {
	case llir.OpNop:
	case llir.OpDup:
		f.push(f.top())
	case llir.OpPop:
		f.pop()

	case llir.OpLdcI4:
		f.push(i4(int32(in.ImmI64)))
	case llir.OpLdcI8:
		f.push(i8(in.ImmI64))
	case llir.OpLdcR4:
		f.push(r4(float32(in.ImmF64)))
	case llir.OpLdcR8:
		f.push(r8(in.ImmF64))
	case llir.OpLdStr:
		f.push(ref(pool.Entries()[in.Resolved].Str))
	case llir.OpLdNull:
		f.push(ref(nil))

	case llir.OpLdArg, llir.OpLdLoc:
		f.push(f.Slots[in.Slot])
	case llir.OpLdArga, llir.OpLdLoca:
		f.push(ref(&f.Slots[in.Slot]))
	case llir.OpStArg, llir.OpStLoc:
		f.Slots[in.Slot] = f.pop()

	case llir.OpLdFld:
		obj := asObject(f.pop())
		if obj == nil {
			return Slot{}, false, false, rterror.Wrap(rterror.NullReference, rterror.ErrNullReference, "ldfld on null reference")
		}
		fld := pool.Entries()[in.Resolved].Field
		f.push(readField(obj, fld))
	case llir.OpLdFlda:
		obj := asObject(f.pop())
		if obj == nil {
			return Slot{}, false, false, rterror.Wrap(rterror.NullReference, rterror.ErrNullReference, "ldflda on null reference")
		}
		fld := pool.Entries()[in.Resolved].Field
		f.push(ref(&fieldAddr{obj, fld}))
	case llir.OpStFld:
		val := f.pop()
		obj := asObject(f.pop())
		if obj == nil {
			return Slot{}, false, false, rterror.Wrap(rterror.NullReference, rterror.ErrNullReference, "stfld on null reference")
		}
		fld := pool.Entries()[in.Resolved].Field
		writeField(obj, fld, val)

	case llir.OpLdSFld:
		fld := pool.Entries()[in.Resolved].Field
		f.push(readStaticField(fld))
	case llir.OpStSFld:
		fld := pool.Entries()[in.Resolved].Field
		writeStaticField(fld, f.pop())

	case llir.OpLdLen:
		arr := asArray(f.pop())
		if arr == nil {
			return Slot{}, false, false, rterror.Wrap(rterror.NullReference, rterror.ErrNullReference, "ldlen on null reference")
		}
		f.push(i4(arr.Lengths[0]))

	case llir.OpLdElem:
		cls := pool.Entries()[in.Resolved].Class
		idx := f.pop()
		arr := asArray(f.pop())
		if arr == nil {
			return Slot{}, false, false, rterror.Wrap(rterror.NullReference, rterror.ErrNullReference, "ldelem on null reference")
		}
		v, err := readArrayElem(arr, idx.I32, cls)
		if err != nil {
			return Slot{}, false, false, err
		}
		f.push(v)
	case llir.OpStElem:
		val := f.pop()
		idx := f.pop()
		arr := asArray(f.pop())
		if arr == nil {
			return Slot{}, false, false, rterror.Wrap(rterror.NullReference, rterror.ErrNullReference, "stelem on null reference")
		}
		cls := pool.Entries()[in.Resolved].Class
		if isReferenceElem(cls) {
			if err := object.CheckStore(arr, classRefOfSlot(val), assignableClassRef); err != nil {
				return Slot{}, false, false, err
			}
		}
		if err := writeArrayElem(arr, idx.I32, cls, val); err != nil {
			return Slot{}, false, false, err
		}
	case llir.OpNewArr:
		elemCls := pool.Entries()[in.Resolved].Class
		n := f.pop()
		arrCls := vm.ArrayClassOf(elemCls)
		arr, err := object.NewSZArray(arrCls, elemCls, arrayElemSize(elemCls), n.I32)
		if err != nil {
			return Slot{}, false, false, err
		}
		f.push(ref(arr))

	case llir.OpNewObj:
		ctor := pool.Entries()[in.Resolved].Method
		n := int(in.ArgCount)
		ctorArgs := make([]Slot, n)
		for i := n - 1; i >= 0; i-- {
			ctorArgs[i] = f.pop()
		}
		obj := object.New(ctor.Owner)
		callArgs := append([]Slot{ref(obj)}, ctorArgs...)
		if _, _, err := Invoke(ctx, ctor, callArgs); err != nil {
			return Slot{}, false, false, err
		}
		f.push(ref(obj))

	case llir.OpBox:
		cls := pool.Entries()[in.Resolved].Class
		v := f.pop()
		o, err := object.Box(cls, slotBytes(v))
		if err != nil {
			return Slot{}, false, false, err
		}
		f.push(ref(o))
	case llir.OpUnbox:
		cls := pool.Entries()[in.Resolved].Class
		obj := asObject(f.pop())
		b, err := object.Unbox(obj, cls)
		if err != nil {
			return Slot{}, false, false, err
		}
		f.push(bytesToSlot(b))
	case llir.OpCastclass, llir.OpIsinst:
		cls := pool.Entries()[in.Resolved].Class
		obj := asObject(f.pop())
		ok := obj == nil || assignableObj(obj, cls)
		if in.Op == llir.OpCastclass {
			if !ok {
				return Slot{}, false, false, rterror.New(rterror.InvalidCast, "cannot cast to %s", cls.Name)
			}
			f.push(ref(obj))
		} else {
			if ok {
				f.push(ref(obj))
			} else {
				f.push(ref(nil))
			}
		}

	case llir.OpAddI4, llir.OpSubI4, llir.OpMulI4, llir.OpDivI4, llir.OpRemI4,
		llir.OpAddOvfI4, llir.OpAndI4, llir.OpOrI4, llir.OpXorI4, llir.OpShlI4, llir.OpShrI4:
		r, l := f.pop(), f.pop()
		v, err := binopI4(in.Op, l.I32, r.I32)
		if err != nil {
			return Slot{}, false, false, err
		}
		f.push(i4(v))
	case llir.OpAddI8, llir.OpSubI8, llir.OpMulI8, llir.OpDivI8, llir.OpRemI8,
		llir.OpAddOvfI8, llir.OpAndI8, llir.OpOrI8, llir.OpXorI8, llir.OpShlI8, llir.OpShrI8:
		r, l := f.pop(), f.pop()
		v, err := binopI8(in.Op, l.I64, r.I64)
		if err != nil {
			return Slot{}, false, false, err
		}
		f.push(i8(v))
	case llir.OpAddR4, llir.OpSubR4, llir.OpMulR4, llir.OpDivR4, llir.OpRemR4:
		r, l := f.pop(), f.pop()
		f.push(r4(binopR4(in.Op, l.F32, r.F32)))
	case llir.OpAddR8, llir.OpSubR8, llir.OpMulR8, llir.OpDivR8, llir.OpRemR8:
		r, l := f.pop(), f.pop()
		f.push(r8(binopR8(in.Op, l.F64, r.F64)))
	case llir.OpNegI4:
		v := f.pop()
		f.push(i4(-v.I32))
	case llir.OpNegI8:
		v := f.pop()
		f.push(i8(-v.I64))
	case llir.OpNegR4:
		v := f.pop()
		f.push(r4(-v.F32))
	case llir.OpNegR8:
		v := f.pop()
		f.push(r8(-v.F64))

	case llir.OpCeq, llir.OpClt, llir.OpCgt:
		r, l := f.pop(), f.pop()
		f.push(i4(compare(in.Op, l, r)))

	case llir.OpConvI4:
		f.push(i4(toI32(f.pop())))
	case llir.OpConvI8:
		f.push(i8(toI64(f.pop())))
	case llir.OpConvR4:
		f.push(r4(toF32(f.pop())))
	case llir.OpConvR8:
		f.push(r8(toF64(f.pop())))

	case llir.OpCall, llir.OpCallvirt:
		entry := pool.Entries()[in.Resolved]
		target := entry.Method
		n := int(in.ArgCount)
		args := make([]Slot, n)
		for i := n - 1; i >= 0; i-- {
			args[i] = f.pop()
		}
		if in.Op == llir.OpCallvirt && target.IsVirtual {
			recv := asObject(args[0])
			if recv == nil {
				return Slot{}, false, false, rterror.Wrap(rterror.NullReference, rterror.ErrNullReference, "callvirt on null reference")
			}
			recvClass, _ := recv.Class.(*vm.Class)
			impl, err := vm.ResolveCall(target, recvClass)
			if err != nil {
				return Slot{}, false, false, err
			}
			target = impl
		}
		res, hasRes, err := Invoke(ctx, target, args)
		if err != nil {
			return Slot{}, false, false, err
		}
		if hasRes {
			f.push(res)
		}

	case llir.OpIntrinsicNop:
		// Arguments (including `this`) are already evaluated and
		// discarded; the intrinsic itself (Object..ctor, etc.) has no
		// observable effect.
		for i := int32(0); i < in.ArgCount; i++ {
			f.pop()
		}
	case llir.OpIntrinsicConv:
		v := f.pop()
		f.push(i8(toI64(v)))
	case llir.OpIntrinsicOffsetToStringData:
		f.pop()
		f.push(i4(object.StringHeaderSize))

	case llir.OpRet:
		if f.SP > int(f.Method.IR.ArgLocalStackObjSize) {
			v := f.pop()
			advance = false
			return v, true, true, nil
		}
		advance = false
		return Slot{}, false, true, nil

	case llir.OpBrtrue:
		v := f.pop()
		if truthy(v) {
			f.IP = f.Method.IR.InstrAt(in.BranchTarget)
			advance = false
		}
	case llir.OpBrfalse:
		v := f.pop()
		if !truthy(v) {
			f.IP = f.Method.IR.InstrAt(in.BranchTarget)
			advance = false
		}
	case llir.OpBeq, llir.OpBne, llir.OpBlt, llir.OpBle, llir.OpBgt, llir.OpBge:
		r, l := f.pop(), f.pop()
		if branchTaken(in.Op, l, r) {
			f.IP = f.Method.IR.InstrAt(in.BranchTarget)
			advance = false
		}
	case llir.OpBr:
		f.IP = f.Method.IR.InstrAt(in.BranchTarget)
		advance = false
	case llir.OpSwitch:
		v := f.pop()
		idx := v.I32
		if idx >= 0 && int(idx) < len(in.SwitchTargets) {
			f.IP = f.Method.IR.InstrAt(in.SwitchTargets[idx])
			advance = false
		}

	case llir.OpLeavePlain:
		f.IP = f.Method.IR.InstrAt(in.BranchTarget)
		advance = false
	case llir.OpLeaveCatchWithoutFinally:
		f.caught = nil
		f.IP = f.Method.IR.InstrAt(in.BranchTarget)
		advance = false
	case llir.OpLeaveTryWithFinally, llir.OpLeaveCatchWithFinally:
		if in.Op == llir.OpLeaveCatchWithFinally {
			f.caught = nil
		}
		f.pendingFinally = append([]int(nil), in.FinallyClauses...)
		f.leaveTarget = in.BranchTarget
		advance = false
		advanceIntoNextFinally(f)

	case llir.OpEndfinally:
		advance = false
		if len(f.pendingFinally) > 0 {
			f.pendingFinally = f.pendingFinally[1:]
		}
		advanceIntoNextFinally(f)

	case llir.OpThrow:
		obj := asObject(f.pop())
		return Slot{}, false, false, throwErr(obj)
	case llir.OpRethrow:
		return Slot{}, false, false, throwErr(f.caught)

	case llir.OpEndfilter:
		// Consumed by the unwind filter-execution loop, which stops
		// before this instruction executes through the normal dispatch
		// path; reaching it here means a filter ran to completion without
		// the unwind driver intercepting it, an engine invariant failure.
		return Slot{}, false, false, rterror.New(rterror.ExecutionEngine, "endfilter reached outside filter evaluation")

	default:
		return Slot{}, false, false, rterror.New(rterror.NotImplemented, "interpreter: unhandled opcode %v", in.Op)
	}

	return Slot{}, false, false, nil
}

// advanceIntoNextFinally jumps f.IP to the next pending finally clause's
// handler start, or to the leave target once the chain is exhausted.
func advanceIntoNextFinally(f *Frame) {
	if len(f.pendingFinally) == 0 {
		f.IP = f.Method.IR.InstrAt(f.leaveTarget)
		return
	}
	c := f.Method.IR.Clauses[f.pendingFinally[0]]
	f.IP = f.Method.IR.InstrAt(c.HandlerStart)
}
