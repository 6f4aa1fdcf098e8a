package hlir

import (
	"github.com/leanclr/leanclr/internal/rterror"
	"github.com/leanclr/leanclr/internal/vm"
)

// lowerBlock replays b's instructions a second time, this time materializing
// Variable objects for every source/destination operand instead of bare
// StackKinds, and resolving each instruction's domain-specific fields per
// the instruction-lowering rules: call argument counts including an
// implicit `this`, newobj's array/delegate/ByReference<T> special cases,
// arithmetic operand-kind promotion, and branch condition operands.
//
// base is the stack-object offset immediately past the method's combined
// argument+local storage; evaluation-stack Variables are numbered from there.
func lowerBlock(b *Block, base uint32) error {
	stack := make([]*Variable, 0, len(b.EntryStack))
	next := base
	for _, k := range b.EntryStack {
		stack = append(stack, &Variable{Offset: next, Kind: k})
		next++
	}

	pop := func() (*Variable, error) {
		if len(stack) == 0 {
			return nil, rterror.New(rterror.ExecutionEngine, "stack underflow lowering block at offset %d", b.StartOffset)
		}
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v, nil
	}
	pushPlain := func(k StackKind) *Variable {
		v := &Variable{Offset: next, Kind: k}
		next++
		stack = append(stack, v)
		return v
	}
	pushClass := func(c *vm.Class) *Variable {
		v := &Variable{Offset: next, Kind: classKind(c), Class: c}
		next++
		stack = append(stack, v)
		return v
	}

	for i := range b.Instrs {
		in := &b.Instrs[i]
		switch in.Op {
		case OpNop, OpEndfinally:
			// no operands
		case OpEndfilter:
			v, err := pop()
			if err != nil {
				return err
			}
			in.Src = []*Variable{v}

		case OpDup:
			if len(stack) == 0 {
				return rterror.New(rterror.ExecutionEngine, "dup on empty stack")
			}
			top := stack[len(stack)-1]
			dup := &Variable{Offset: next, Kind: top.Kind, Class: top.Class}
			next++
			stack = append(stack, dup)
			in.Src = []*Variable{top}
			in.Dst = dup

		case OpPop:
			v, err := pop()
			if err != nil {
				return err
			}
			in.Src = []*Variable{v}

		case OpLdcI4:
			in.Dst = pushPlain(KindI4)
		case OpLdcI8:
			in.Dst = pushPlain(KindI8)
		case OpLdcR4:
			in.Dst = pushPlain(KindR4)
		case OpLdcR8:
			in.Dst = pushPlain(KindR8)
		case OpLdstr, OpLdnull:
			in.Dst = pushPlain(KindRefOrPtr)

		case OpLdarg, OpLdloc:
			in.Dst = pushClass(in.Class)
		case OpLdarga, OpLdloca:
			in.Dst = pushPlain(KindRefOrPtr)
		case OpStarg, OpStloc:
			v, err := pop()
			if err != nil {
				return err
			}
			in.Src = []*Variable{v}

		case OpLdfld:
			obj, err := pop()
			if err != nil {
				return err
			}
			in.Src = []*Variable{obj}
			in.Dst = pushClass(in.Class)
		case OpLdflda:
			obj, err := pop()
			if err != nil {
				return err
			}
			in.Src = []*Variable{obj}
			in.Dst = pushPlain(KindRefOrPtr)
		case OpStfld:
			val, err := pop()
			if err != nil {
				return err
			}
			obj, err := pop()
			if err != nil {
				return err
			}
			in.Src = []*Variable{obj, val}

		case OpLdsfld:
			in.Dst = pushClass(in.Class)
		case OpStsfld:
			v, err := pop()
			if err != nil {
				return err
			}
			in.Src = []*Variable{v}

		case OpLdlen:
			arr, err := pop()
			if err != nil {
				return err
			}
			in.Src = []*Variable{arr}
			in.Dst = pushPlain(KindI4)

		case OpLdelem:
			idx, err := pop()
			if err != nil {
				return err
			}
			arr, err := pop()
			if err != nil {
				return err
			}
			in.Src = []*Variable{arr, idx}
			in.Dst = pushClass(in.Class)

		case OpStelem:
			val, err := pop()
			if err != nil {
				return err
			}
			idx, err := pop()
			if err != nil {
				return err
			}
			arr, err := pop()
			if err != nil {
				return err
			}
			in.Src = []*Variable{arr, idx, val}

		case OpNewarr:
			n, err := pop()
			if err != nil {
				return err
			}
			in.Src = []*Variable{n}
			in.Dst = pushPlain(KindRefOrPtr)

		case OpNewobj:
			// newobj is special-cased for arrays (multi-dim
			// constructors), multicast delegate construction (object,
			// native-int-sized function-pointer pair), and ByReference<T>
			// (constructed from a managed pointer, not heap-allocated) —
			// all three still resolve their constructor arguments the same
			// way: pop argCount(in) values, push one reference result.
			n := argCount(in)
			args := make([]*Variable, n)
			for j := n - 1; j >= 0; j-- {
				v, err := pop()
				if err != nil {
					return err
				}
				args[j] = v
			}
			in.Src = args
			in.Dst = pushPlain(KindRefOrPtr)

		case OpBox:
			v, err := pop()
			if err != nil {
				return err
			}
			in.Src = []*Variable{v}
			in.Dst = pushPlain(KindRefOrPtr)
		case OpUnbox:
			v, err := pop()
			if err != nil {
				return err
			}
			in.Src = []*Variable{v}
			in.Dst = pushClass(in.Class)
		case OpCastclass, OpIsinst:
			v, err := pop()
			if err != nil {
				return err
			}
			in.Src = []*Variable{v}
			in.Dst = pushPlain(KindRefOrPtr)

		case OpAdd, OpSub, OpMul, OpDiv, OpRem, OpAddOvf, OpAnd, OpOr, OpXor, OpShl, OpShr:
			r, err := pop()
			if err != nil {
				return err
			}
			l, err := pop()
			if err != nil {
				return err
			}
			in.Src = []*Variable{l, r}
			in.Dst = pushPlain(promote(l.Kind, r.Kind))

		case OpNeg:
			v, err := pop()
			if err != nil {
				return err
			}
			in.Src = []*Variable{v}
			in.Dst = pushPlain(v.Kind)

		case OpCeq, OpClt, OpCgt:
			r, err := pop()
			if err != nil {
				return err
			}
			l, err := pop()
			if err != nil {
				return err
			}
			in.Src = []*Variable{l, r}
			in.Dst = pushPlain(KindI4)

		case OpConvI4:
			v, err := pop()
			if err != nil {
				return err
			}
			in.Src = []*Variable{v}
			in.Dst = pushPlain(KindI4)
		case OpConvI8:
			v, err := pop()
			if err != nil {
				return err
			}
			in.Src = []*Variable{v}
			in.Dst = pushPlain(KindI8)
		case OpConvR4:
			v, err := pop()
			if err != nil {
				return err
			}
			in.Src = []*Variable{v}
			in.Dst = pushPlain(KindR4)
		case OpConvR8:
			v, err := pop()
			if err != nil {
				return err
			}
			in.Src = []*Variable{v}
			in.Dst = pushPlain(KindR8)

		case OpCall, OpCallvirt:
			n := argCount(in)
			args := make([]*Variable, n)
			for j := n - 1; j >= 0; j-- {
				v, err := pop()
				if err != nil {
					return err
				}
				args[j] = v
			}
			in.Src = args
			if in.Method != nil && in.Method.ReturnType != nil {
				in.Dst = pushClass(in.Class)
			}

		case OpRet:
			if len(stack) > 0 {
				v, err := pop()
				if err != nil {
					return err
				}
				in.Src = []*Variable{v}
			}

		case OpBrtrue, OpBrfalse:
			v, err := pop()
			if err != nil {
				return err
			}
			in.Src = []*Variable{v}

		case OpBeq, OpBne, OpBlt, OpBle, OpBgt, OpBge:
			r, err := pop()
			if err != nil {
				return err
			}
			l, err := pop()
			if err != nil {
				return err
			}
			in.Src = []*Variable{l, r}

		case OpSwitch:
			v, err := pop()
			if err != nil {
				return err
			}
			in.Src = []*Variable{v}

		case OpBr, OpLeave:
			// no operand popped; target already resolved by
			// resolveBranchTargets

		case OpThrow:
			v, err := pop()
			if err != nil {
				return err
			}
			in.Src = []*Variable{v}
		case OpRethrow:
			// operates on the currently-propagating exception, not a
			// stack operand

		default:
			return rterror.New(rterror.NotImplemented, "lowering: unsupported opcode %d", in.Op)
		}
	}

	// For handler/filter-start blocks, b.EntryStack was seeded by
	// simulateStacks with a single KindRefOrPtr slot; the initial stack
	// population above already turned that into the synthesized exception
	// Variable at offset 0 of this block's incoming stack.
	return nil
}

func classKind(c *vm.Class) StackKind {
	if c == nil {
		return KindOther
	}
	if c.IsValueTypeFlag {
		return KindOther
	}
	return KindRefOrPtr
}
