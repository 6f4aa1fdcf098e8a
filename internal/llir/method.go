package llir

// Instr is one packed LL instruction. Not every field is meaningful for
// every Op; the interpreter's dispatch switch only reads the fields its own
// opcode defines.
type Instr struct {
	Op     Op
	Offset uint32 // this instruction's byte offset in the method's IR

	ImmI64 int64
	ImmF64 float64

	// Resolved is an index into the owning Method's Pool, or -1.
	Resolved int32

	// Slot is an argument/local index for LdArg/StArg/LdLoc/StLoc and
	// variants, or an element size for LdElem/StElem/NewArr.
	Slot int32

	// Unaligned marks the unaligned-prefix variant of a field/element
	// access (.8 size-targeted encodings).
	Unaligned bool
	Volatile  bool

	// BranchTarget/SwitchTargets are IR byte offsets, filled in by the
	// offset-assignment pass.
	BranchTarget  uint32
	HasBranch     bool
	SwitchTargets []uint32

	// FinallyClauses is the ordered list of clause indices (into
	// Method.Clauses) a Leave* opcode must run before jumping.
	FinallyClauses []int

	// ArgCount is the number of stack-object arguments (including `this`)
	// a Call/Callvirt/NewObj consumes.
	ArgCount int32

	// Wide marks a branch/leave instruction using the 4-byte target form;
	// the offset-assignment fixed point in offsets.go flips this to false
	// (1-byte relative form) where the displacement allows, per the
	// short-vs-wide immediates rule. Starts true and only shrinks.
	Wide bool
}

// Size returns the instruction's encoded byte length, used by the
// offset-assignment fixed-point pass.
func (in *Instr) Size() uint32 {
	const opByte = 1
	switch in.Op {
	case OpNop, OpDup, OpPop, OpRet, OpEndfinally, OpEndfilter, OpThrow, OpRethrow,
		OpAddI4, OpAddI8, OpAddR4, OpAddR8, OpAddOvfI4, OpAddOvfI8,
		OpSubI4, OpSubI8, OpSubR4, OpSubR8, OpMulI4, OpMulI8, OpMulR4, OpMulR8,
		OpDivI4, OpDivI8, OpDivR4, OpDivR8, OpRemI4, OpRemI8, OpRemR4, OpRemR8,
		OpAndI4, OpAndI8, OpOrI4, OpOrI8, OpXorI4, OpXorI8,
		OpShlI4, OpShlI8, OpShrI4, OpShrI8,
		OpNegI4, OpNegI8, OpNegR4, OpNegR8,
		OpCeq, OpClt, OpCgt, OpConvI4, OpConvI8, OpConvR4, OpConvR8,
		OpIntrinsicNop:
		return opByte
	case OpLdcI4, OpLdcR4:
		return opByte + 4
	case OpLdcI8, OpLdcR8:
		return opByte + 8
	case OpLdArg, OpStArg, OpLdLoc, OpStLoc, OpLdArga, OpLdLoca:
		return opByte + 2
	case OpLdStr, OpLdNull, OpLdSFld, OpStSFld, OpLdElem, OpStElem,
		OpLdLen, OpNewArr, OpBox, OpUnbox, OpCastclass, OpIsinst,
		OpIntrinsicConv, OpIntrinsicOffsetToStringData:
		return opByte + 2
	case OpLdFld, OpLdFlda, OpStFld:
		n := opByte + uint32(2)
		if in.Unaligned {
			n++
		}
		return n
	case OpNewObj, OpCall, OpCallvirt:
		return opByte + 2 + 2 // resolved index + arg count
	case OpBr, OpLeavePlain, OpBrtrue, OpBrfalse, OpBeq, OpBne, OpBlt, OpBle, OpBgt, OpBge:
		if in.Wide {
			return opByte + 4
		}
		return opByte + 1
	case OpSwitch:
		return opByte + 4 + 4*uint32(len(in.SwitchTargets))
	case OpLeaveCatchWithoutFinally:
		return opByte + 4
	case OpLeaveTryWithFinally, OpLeaveCatchWithFinally:
		return opByte + 4 + 4 + 4*uint32(len(in.FinallyClauses))
	default:
		return opByte
	}
}

// ExceptionClauseKind mirrors hlir.ExceptionClauseKind; duplicated here (not
// imported) because the LL form carries IR-offset fields and a resolved
// catch-class pool index instead of hlir's source-offset/raw-class fields.
type ExceptionClauseKind int

const (
	ClauseCatch ExceptionClauseKind = iota
	ClauseFilter
	ClauseFinally
	ClauseFault
)

// ExceptionClause is the LL-IR form: all offsets are IR byte offsets.
type ExceptionClause struct {
	Kind               ExceptionClauseKind
	TryStart           uint32
	TryEnd             uint32
	HandlerStart       uint32
	HandlerEnd         uint32
	FilterStart        uint32
	CatchClassResolved int32 // index into Method.Pool, catch clauses only
}

// Method is the fully lowered LL-IR form of one method body, ready for
// internal/interp's dispatch loop.
type Method struct {
	Instrs               []Instr
	Pool                 *Pool
	Clauses              []ExceptionClause
	MaxStack             uint32
	ArgLocalStackObjSize uint32
	InitLocals           bool

	// instrTargets is lowering-time bookkeeping (instruction-index branch
	// targets, resolved to byte offsets by assignOffsets) and carries no
	// meaning once Transform returns.
	instrTargets []branchTarget
}

// InstrAt returns the index into Instrs of the instruction at the given
// byte offset, via binary search (Instrs is offset-ordered by
// construction). Used by the interpreter to turn a branch's byte-offset
// target into a dispatchable instruction index.
func (m *Method) InstrAt(offset uint32) int {
	lo, hi := 0, len(m.Instrs)
	for lo < hi {
		mid := (lo + hi) / 2
		if m.Instrs[mid].Offset < offset {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
