package llir

import (
	"github.com/leanclr/leanclr/internal/hlir"
	"github.com/leanclr/leanclr/internal/rterror"
)

// intrinsics maps a corlib method's (owner type name, method name) to its
// intrinsic lowering. ByReference<T> accessors and the
// IntPtr/UIntPtr family collapse to a conversion or a nop instead of a
// real call.
var intrinsics = map[[2]string]Op{
	{"Object", ".ctor"}:                      OpIntrinsicNop,
	{"IntPtr", ".ctor"}:                      OpIntrinsicConv,
	{"IntPtr", "op_Explicit"}:                OpIntrinsicConv,
	{"IntPtr", "op_Implicit"}:                OpIntrinsicConv,
	{"UIntPtr", ".ctor"}:                     OpIntrinsicConv,
	{"UIntPtr", "op_Explicit"}:               OpIntrinsicConv,
	{"RuntimeHelpers", "OffsetToStringData"}: OpIntrinsicOffsetToStringData,
	{"ByReference`1", "get_Value"}:           OpIntrinsicConv,
}

// Transform lowers one HL-IR method into packed LL-IR:
// opcode selection by operand type/size, resolved-data interning, leave
// expansion, and basic-block offset assignment.
func Transform(hm *hlir.Method, width Width) (*Method, error) {
	pool := newPool()
	m := &Method{Pool: pool, ArgLocalStackObjSize: hm.ArgLocalStackObjSize, InitLocals: hm.InitLocals}

	// blockFirstInstr records each HL block's first LL instruction index, so
	// branch/leave targets (which reference HL blocks) can be resolved to
	// LL instructions before byte offsets are known.
	blockFirstInstr := map[*hlir.Block]int{}

	for _, b := range hm.Blocks {
		blockFirstInstr[b] = len(m.Instrs)
		for i := range b.Instrs {
			in := &b.Instrs[i]
			lowered, err := lowerInstr(in, pool, width)
			if err != nil {
				return nil, err
			}
			m.Instrs = append(m.Instrs, lowered...)
		}
	}

	if err := resolveTargets(hm, m, blockFirstInstr); err != nil {
		return nil, err
	}
	if err := expandLeaves(hm, m, blockFirstInstr); err != nil {
		return nil, err
	}

	assignOffsets(m)

	clauses, err := lowerClauses(hm.Clauses, m, blockFirstInstr, pool)
	if err != nil {
		return nil, err
	}
	m.Clauses = clauses

	m.MaxStack = hm.MaxStack
	return m, nil
}

// lowerInstr selects the concrete opcode(s) for one HL instruction. Most
// opcodes lower 1:1; intrinsic calls stay 1:1 but swap the Op.
func lowerInstr(in *hlir.Instr, pool *Pool, width Width) ([]Instr, error) {
	switch in.Op {
	case hlir.OpNop:
		return one(Instr{Op: OpNop})
	case hlir.OpDup:
		return one(Instr{Op: OpDup})
	case hlir.OpPop:
		return one(Instr{Op: OpPop})
	case hlir.OpLdcI4:
		return one(Instr{Op: OpLdcI4, ImmI64: in.ImmI64})
	case hlir.OpLdcI8:
		return one(Instr{Op: OpLdcI8, ImmI64: in.ImmI64})
	case hlir.OpLdcR4:
		return one(Instr{Op: OpLdcR4, ImmF64: in.ImmF64})
	case hlir.OpLdcR8:
		return one(Instr{Op: OpLdcR8, ImmF64: in.ImmF64})
	case hlir.OpLdstr:
		return one(Instr{Op: OpLdStr, Resolved: pool.String(in.Str)})
	case hlir.OpLdnull:
		return one(Instr{Op: OpLdNull})

	case hlir.OpLdarg:
		return one(Instr{Op: OpLdArg, Slot: slotOf(in)})
	case hlir.OpLdarga:
		return one(Instr{Op: OpLdArga, Slot: slotOf(in)})
	case hlir.OpStarg:
		return one(Instr{Op: OpStArg, Slot: slotOf(in)})
	case hlir.OpLdloc:
		return one(Instr{Op: OpLdLoc, Slot: slotOf(in)})
	case hlir.OpLdloca:
		return one(Instr{Op: OpLdLoca, Slot: slotOf(in)})
	case hlir.OpStloc:
		return one(Instr{Op: OpStLoc, Slot: slotOf(in)})

	case hlir.OpLdfld:
		return one(Instr{Op: OpLdFld, Resolved: pool.Field(in.Field), Unaligned: in.Prefixes.Unaligned, Volatile: in.Prefixes.Volatile})
	case hlir.OpLdflda:
		return one(Instr{Op: OpLdFlda, Resolved: pool.Field(in.Field), Unaligned: in.Prefixes.Unaligned})
	case hlir.OpStfld:
		return one(Instr{Op: OpStFld, Resolved: pool.Field(in.Field), Unaligned: in.Prefixes.Unaligned, Volatile: in.Prefixes.Volatile})
	case hlir.OpLdsfld:
		return one(Instr{Op: OpLdSFld, Resolved: pool.Field(in.Field), Volatile: in.Prefixes.Volatile})
	case hlir.OpStsfld:
		return one(Instr{Op: OpStSFld, Resolved: pool.Field(in.Field), Volatile: in.Prefixes.Volatile})

	case hlir.OpLdlen:
		return one(Instr{Op: OpLdLen})
	case hlir.OpLdelem:
		return one(Instr{Op: OpLdElem, Resolved: pool.Class(in.Class)})
	case hlir.OpStelem:
		return one(Instr{Op: OpStElem, Resolved: pool.Class(in.Class)})
	case hlir.OpNewarr:
		return one(Instr{Op: OpNewArr, Resolved: pool.Class(in.Class)})

	case hlir.OpNewobj:
		if op, ok := intrinsicOp(in); ok {
			return one(Instr{Op: op, Resolved: pool.Method(in.Method), ArgCount: int32(len(in.Src))})
		}
		return one(Instr{Op: OpNewObj, Resolved: pool.Method(in.Method), ArgCount: int32(len(in.Src))})

	case hlir.OpBox:
		return one(Instr{Op: OpBox, Resolved: pool.Class(in.Class)})
	case hlir.OpUnbox:
		return one(Instr{Op: OpUnbox, Resolved: pool.Class(in.Class)})
	case hlir.OpCastclass:
		return one(Instr{Op: OpCastclass, Resolved: pool.Class(in.Class)})
	case hlir.OpIsinst:
		return one(Instr{Op: OpIsinst, Resolved: pool.Class(in.Class)})

	case hlir.OpCall, hlir.OpCallvirt:
		if op, ok := intrinsicOp(in); ok {
			return one(Instr{Op: op, Resolved: pool.Method(in.Method), ArgCount: int32(len(in.Src))})
		}
		op := OpCall
		if in.Op == hlir.OpCallvirt {
			op = OpCallvirt
		}
		return one(Instr{Op: op, Resolved: pool.Method(in.Method), ArgCount: int32(len(in.Src))})

	case hlir.OpRet:
		return one(Instr{Op: OpRet})

	case hlir.OpBr:
		return one(Instr{Op: OpBr, Wide: true})
	case hlir.OpBrtrue:
		return one(Instr{Op: OpBrtrue, Wide: true})
	case hlir.OpBrfalse:
		return one(Instr{Op: OpBrfalse, Wide: true})
	case hlir.OpBeq:
		return one(Instr{Op: OpBeq, Wide: true})
	case hlir.OpBne:
		return one(Instr{Op: OpBne, Wide: true})
	case hlir.OpBlt:
		return one(Instr{Op: OpBlt, Wide: true})
	case hlir.OpBle:
		return one(Instr{Op: OpBle, Wide: true})
	case hlir.OpBgt:
		return one(Instr{Op: OpBgt, Wide: true})
	case hlir.OpBge:
		return one(Instr{Op: OpBge, Wide: true})
	case hlir.OpSwitch:
		return one(Instr{Op: OpSwitch})

	case hlir.OpAdd:
		return one(Instr{Op: arithOp(kindOf(in), addOps, width)})
	case hlir.OpAddOvf:
		return one(Instr{Op: ovfAddOp(kindOf(in))})
	case hlir.OpSub:
		return one(Instr{Op: arithOp(kindOf(in), subOps, width)})
	case hlir.OpMul:
		return one(Instr{Op: arithOp(kindOf(in), mulOps, width)})
	case hlir.OpDiv:
		return one(Instr{Op: arithOp(kindOf(in), divOps, width)})
	case hlir.OpRem:
		return one(Instr{Op: arithOp(kindOf(in), remOps, width)})
	case hlir.OpAnd:
		return one(Instr{Op: intOp(kindOf(in), OpAndI4, OpAndI8, width)})
	case hlir.OpOr:
		return one(Instr{Op: intOp(kindOf(in), OpOrI4, OpOrI8, width)})
	case hlir.OpXor:
		return one(Instr{Op: intOp(kindOf(in), OpXorI4, OpXorI8, width)})
	case hlir.OpShl:
		return one(Instr{Op: intOp(kindOf(in), OpShlI4, OpShlI8, width)})
	case hlir.OpShr:
		return one(Instr{Op: intOp(kindOf(in), OpShrI4, OpShrI8, width)})
	case hlir.OpNeg:
		return one(Instr{Op: arithOp(kindOf(in), negOps, width)})

	case hlir.OpCeq:
		return one(Instr{Op: OpCeq})
	case hlir.OpClt:
		return one(Instr{Op: OpClt})
	case hlir.OpCgt:
		return one(Instr{Op: OpCgt})

	case hlir.OpConvI4:
		return one(Instr{Op: OpConvI4})
	case hlir.OpConvI8:
		return one(Instr{Op: OpConvI8})
	case hlir.OpConvR4:
		return one(Instr{Op: OpConvR4})
	case hlir.OpConvR8:
		return one(Instr{Op: OpConvR8})

	case hlir.OpThrow:
		return one(Instr{Op: OpThrow})
	case hlir.OpRethrow:
		return one(Instr{Op: OpRethrow})
	case hlir.OpEndfinally:
		return one(Instr{Op: OpEndfinally})
	case hlir.OpEndfilter:
		return one(Instr{Op: OpEndfilter})
	case hlir.OpLeave:
		// expandLeaves rewrites this placeholder once clause membership is
		// known; kept as OpLeavePlain here so resolveTargets can still
		// chase in.Target.
		return one(Instr{Op: OpLeavePlain, Wide: true})

	default:
		return nil, rterror.New(rterror.NotImplemented, "LL lowering: unsupported HL opcode %d", in.Op)
	}
}

func one(i Instr) ([]Instr, error) { return []Instr{i}, nil }

func slotOf(in *hlir.Instr) int32 {
	if in.Dst != nil {
		return int32(in.Dst.Offset)
	}
	if len(in.Src) > 0 {
		return int32(in.Src[0].Offset)
	}
	return 0
}

func kindOf(in *hlir.Instr) hlir.StackKind {
	if in.Dst != nil {
		return in.Dst.Kind
	}
	if len(in.Src) > 0 {
		return in.Src[0].Kind
	}
	return hlir.KindI4
}

type opQuad struct{ i4, i8, r4, r8 Op }

var addOps = opQuad{OpAddI4, OpAddI8, OpAddR4, OpAddR8}
var subOps = opQuad{OpSubI4, OpSubI8, OpSubR4, OpSubR8}
var mulOps = opQuad{OpMulI4, OpMulI8, OpMulR4, OpMulR8}
var divOps = opQuad{OpDivI4, OpDivI8, OpDivR4, OpDivR8}
var remOps = opQuad{OpRemI4, OpRemI8, OpRemR4, OpRemR8}
var negOps = opQuad{OpNegI4, OpNegI8, OpNegR4, OpNegR8}

func arithOp(k hlir.StackKind, q opQuad, width Width) Op {
	switch k {
	case hlir.KindI8:
		return q.i8
	case hlir.KindR4:
		return q.r4
	case hlir.KindR8:
		return q.r8
	case hlir.KindRefOrPtr:
		if width == Width64 {
			return q.i8
		}
		return q.i4
	default:
		return q.i4
	}
}

func ovfAddOp(k hlir.StackKind) Op {
	if k == hlir.KindI8 {
		return OpAddOvfI8
	}
	return OpAddOvfI4
}

func intOp(k hlir.StackKind, i4, i8 Op, width Width) Op {
	if k == hlir.KindI8 {
		return i8
	}
	if k == hlir.KindRefOrPtr {
		if width == Width64 {
			return i8
		}
		return i4
	}
	return i4
}

func intrinsicOp(in *hlir.Instr) (Op, bool) {
	if in.Method == nil || in.Method.Owner == nil {
		return 0, false
	}
	op, ok := intrinsics[[2]string{in.Method.Owner.Name, in.Method.Name}]
	return op, ok
}
