package hlir

import "github.com/leanclr/leanclr/internal/rterror"

// simulateStacks walks blocks in a worklist fixed-point, propagating the
// symbolic stack shape from each block's exit to its successors' entry.
// On a join, an already-visited successor's recorded entry stack must
// agree element-wise in kind with the newly arriving one — mismatch is a
// verification failure.
func simulateStacks(m *Method) error {
	if len(m.Blocks) == 0 {
		return nil
	}
	entry := m.Blocks[0]
	entry.EntryStack = []StackKind{}

	visited := map[*Block]bool{}
	worklist := []*Block{entry}

	for len(worklist) > 0 {
		b := worklist[0]
		worklist = worklist[1:]

		exit, err := simulateOneBlock(b)
		if err != nil {
			return err
		}
		b.ExitStack = exit

		for _, s := range b.Succs {
			if !visited[s] {
				s.EntryStack = append([]StackKind(nil), exit...)
				visited[s] = true
				worklist = append(worklist, s)
				continue
			}
			if !stacksEqual(s.EntryStack, exit) {
				return errStackJoinMismatch
			}
		}
	}

	// Blocks unreached by straight-line successor analysis (handler/filter
	// starts reached only via exception dispatch) start with a single
	// synthesized exception slot.
	for _, b := range m.Blocks {
		if (b.IsHandlerStart || b.IsFilterStart) && b.EntryStack == nil {
			b.EntryStack = []StackKind{KindRefOrPtr}
			exit, err := simulateOneBlock(b)
			if err != nil {
				return err
			}
			b.ExitStack = exit
		}
	}
	return nil
}

func stacksEqual(a, b []StackKind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// simulateOneBlock replays b's instructions against an abstract stack
// starting from b.EntryStack, returning the resulting exit stack. It tracks
// kinds only; the instructions' Dst/Src Variables are assigned later, by
// lowerBlock.
func simulateOneBlock(b *Block) ([]StackKind, error) {
	stack := append([]StackKind(nil), b.EntryStack...)

	pop := func() (StackKind, error) {
		if len(stack) == 0 {
			return 0, rterror.New(rterror.ExecutionEngine, "stack underflow in block at offset %d", b.StartOffset)
		}
		k := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return k, nil
	}
	push := func(k StackKind) { stack = append(stack, k) }

	for i := range b.Instrs {
		in := &b.Instrs[i]
		switch in.Op {
		case OpNop, OpEndfinally, OpEndfilter:
			// no stack effect beyond endfilter's pop, handled below
			if in.Op == OpEndfilter {
				if _, err := pop(); err != nil {
					return nil, err
				}
			}
		case OpDup:
			if len(stack) == 0 {
				return nil, rterror.New(rterror.ExecutionEngine, "dup on empty stack")
			}
			push(stack[len(stack)-1])
		case OpPop, OpStloc, OpStarg, OpStsfld, OpThrow, OpRethrow:
			if in.Op != OpRethrow {
				if _, err := pop(); err != nil {
					return nil, err
				}
			}
		case OpLdcI4, OpLdarg, OpLdloc, OpLdsfld:
			push(kindForLoad(in))
		case OpLdcI8:
			push(KindI8)
		case OpLdcR4:
			push(KindR4)
		case OpLdcR8:
			push(KindR8)
		case OpLdstr, OpLdnull, OpLdarga, OpLdloca, OpLdflda, OpNewobj, OpNewarr, OpBox, OpCastclass, OpIsinst:
			if in.Op == OpBox || in.Op == OpCastclass || in.Op == OpIsinst {
				if _, err := pop(); err != nil {
					return nil, err
				}
			}
			if in.Op == OpNewobj {
				for range argCount(in) {
					if _, err := pop(); err != nil {
						return nil, err
					}
				}
			}
			if in.Op == OpNewarr {
				if _, err := pop(); err != nil {
					return nil, err
				}
			}
			push(KindRefOrPtr)
		case OpLdfld, OpUnbox:
			if _, err := pop(); err != nil {
				return nil, err
			}
			push(kindForLoad(in))
		case OpStfld:
			if _, err := pop(); err != nil {
				return nil, err
			}
			if _, err := pop(); err != nil {
				return nil, err
			}
		case OpLdlen:
			if _, err := pop(); err != nil {
				return nil, err
			}
			push(KindI4)
		case OpLdelem:
			if _, err := pop(); err != nil {
				return nil, err
			}
			if _, err := pop(); err != nil {
				return nil, err
			}
			push(kindForLoad(in))
		case OpStelem:
			if _, err := pop(); err != nil {
				return nil, err
			}
			if _, err := pop(); err != nil {
				return nil, err
			}
			if _, err := pop(); err != nil {
				return nil, err
			}
		case OpAdd, OpSub, OpMul, OpDiv, OpRem, OpAddOvf, OpAnd, OpOr, OpXor, OpShl, OpShr:
			r, err := pop()
			if err != nil {
				return nil, err
			}
			l, err := pop()
			if err != nil {
				return nil, err
			}
			push(promote(l, r))
		case OpNeg:
			k, err := pop()
			if err != nil {
				return nil, err
			}
			push(k)
		case OpCeq, OpClt, OpCgt:
			if _, err := pop(); err != nil {
				return nil, err
			}
			if _, err := pop(); err != nil {
				return nil, err
			}
			push(KindI4)
		case OpConvI4:
			if _, err := pop(); err != nil {
				return nil, err
			}
			push(KindI4)
		case OpConvI8:
			if _, err := pop(); err != nil {
				return nil, err
			}
			push(KindI8)
		case OpConvR4:
			if _, err := pop(); err != nil {
				return nil, err
			}
			push(KindR4)
		case OpConvR8:
			if _, err := pop(); err != nil {
				return nil, err
			}
			push(KindR8)
		case OpBrtrue, OpBrfalse:
			if _, err := pop(); err != nil {
				return nil, err
			}
		case OpBeq, OpBne, OpBlt, OpBle, OpBgt, OpBge:
			if _, err := pop(); err != nil {
				return nil, err
			}
			if _, err := pop(); err != nil {
				return nil, err
			}
		case OpBr, OpLeave, OpSwitch:
			if in.Op == OpSwitch {
				if _, err := pop(); err != nil {
					return nil, err
				}
			}
		case OpCall, OpCallvirt:
			n := argCount(in)
			for j := 0; j < n; j++ {
				if _, err := pop(); err != nil {
					return nil, err
				}
			}
			if in.Method != nil && in.Method.ReturnType != nil {
				push(kindForReturn(in))
			}
		case OpRet:
			// pop is handled by the caller context (void vs non-void);
			// left to internal/interp's call-return machinery, which
			// already knows the owning method's return kind.
		default:
			return nil, rterror.New(rterror.NotImplemented, "unsupported opcode %d in stack simulation", in.Op)
		}
	}
	return stack, nil
}

func argCount(in *Instr) int {
	if in.Method == nil {
		return 0
	}
	n := len(in.Method.ParamTypes)
	if !in.Method.IsStatic {
		n++
	}
	return n
}

func kindForLoad(in *Instr) StackKind {
	if in.Class != nil {
		return classKind(in.Class)
	}
	return KindI4
}

func kindForReturn(in *Instr) StackKind {
	if in.Class != nil {
		return classKind(in.Class)
	}
	return KindI4
}

// promote applies the standard CLI binary-numeric-operator promotion
// rules: I4+I4→I4, I4+I8→I8, I4+RefOrPtr→RefOrPtr (native int
// width, platform-dependent at the LL stage), etc.
func promote(l, r StackKind) StackKind {
	if l == r {
		return l
	}
	if l == KindRefOrPtr || r == KindRefOrPtr {
		return KindRefOrPtr
	}
	if l == KindI8 || r == KindI8 {
		return KindI8
	}
	if l == KindR8 || r == KindR8 {
		return KindR8
	}
	if l == KindR4 || r == KindR4 {
		return KindR4
	}
	return KindI4
}
