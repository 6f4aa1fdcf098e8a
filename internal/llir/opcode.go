// Package llir implements the LL transformer: pass 2 of the two-stage
// bytecode lowering pipeline. It takes HL IR from internal/hlir and selects
// concrete, type/size-specialized opcodes, interns every metadata pointer an
// instruction references into a per-method resolved-data pool, expands
// `leave` into its finally-aware variants, and assigns final byte offsets.
package llir

// Op is a concrete LL opcode: type- and size-specialized, ready for the
// interpreter's dispatch switch.
type Op byte

const (
	OpNop Op = iota
	OpDup
	OpPop

	OpLdcI4
	OpLdcI8
	OpLdcR4
	OpLdcR8
	OpLdStr
	OpLdNull

	OpLdArg
	OpLdArga
	OpStArg
	OpLdLoc
	OpLdLoca
	OpStLoc

	OpLdFld
	OpLdFlda
	OpStFld
	OpLdSFld
	OpStSFld

	OpLdLen
	OpLdElem
	OpStElem
	OpNewArr
	OpNewObj
	OpBox
	OpUnbox
	OpCastclass
	OpIsinst

	OpCall
	OpCallvirt
	OpRet

	OpBr
	OpBrtrue
	OpBrfalse
	OpBeq
	OpBne
	OpBlt
	OpBle
	OpBgt
	OpBge
	OpSwitch

	OpAddI4
	OpAddI8
	OpAddR4
	OpAddR8
	OpAddOvfI4
	OpAddOvfI8
	OpSubI4
	OpSubI8
	OpSubR4
	OpSubR8
	OpMulI4
	OpMulI8
	OpMulR4
	OpMulR8
	OpDivI4
	OpDivI8
	OpDivR4
	OpDivR8
	OpRemI4
	OpRemI8
	OpRemR4
	OpRemR8
	OpAndI4
	OpAndI8
	OpOrI4
	OpOrI8
	OpXorI4
	OpXorI8
	OpShlI4
	OpShlI8
	OpShrI4
	OpShrI8
	OpNegI4
	OpNegI8
	OpNegR4
	OpNegR8

	OpCeq
	OpClt
	OpCgt

	OpConvI4
	OpConvI8
	OpConvR4
	OpConvR8

	OpThrow
	OpRethrow
	OpEndfinally
	OpEndfilter

	// Leave expansions: a `leave` originating inside a
	// protected region is rewritten to one of these, carrying the ordered
	// finally-clause indices to run before the final jump.
	OpLeavePlain
	OpLeaveTryWithFinally
	OpLeaveCatchWithFinally
	OpLeaveCatchWithoutFinally

	// Intrinsics: recognized corlib methods lower to a nop, a
	// conversion, or an inline store instead of a real call.
	OpIntrinsicNop
	OpIntrinsicConv
	OpIntrinsicOffsetToStringData
)

// Width is the native pointer width the RefOrPtr kind resolves to: I4 on a
// 32-bit target, I8 on a 64-bit one.
type Width int

const (
	Width32 Width = 4
	Width64 Width = 8
)

// ResolvedKind classifies one entry of a method's resolved-data pool.
type ResolvedKind int

const (
	ResClass ResolvedKind = iota
	ResMethod
	ResField
	ResString
)
