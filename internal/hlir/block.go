package hlir

import (
	"github.com/leanclr/leanclr/internal/rterror"
	"github.com/leanclr/leanclr/internal/vm"
)

// Variable is a storage slot: an argument, a local, or an evaluation-stack
// element, each given a stack-object offset and a kind.
type Variable struct {
	Offset uint32
	Kind   StackKind
	Size   uint32    // not set by lowering; it stays 0 for every Variable
	Class  *vm.Class // non-nil when Kind is a reference/value-type carrying a class
}

// Instr is one high-level instruction: an opcode plus resolved operands.
// Not every field is meaningful for every opcode; lowering sets only the
// fields the instruction's own opcode uses.
type Instr struct {
	Op       Opcode
	Prefixes PrefixSet

	ImmI64 int64
	ImmF64 float64
	Str    string

	Src []*Variable
	Dst *Variable

	Target  *Block   // branch target
	Targets []*Block // switch targets

	// branchTo carries the raw source-bytecode target offsets through from
	// RawInstr until resolveBranchTargets translates them into Target/Targets.
	branchTo []uint32

	Method *vm.Method
	Field  *vm.Field
	Class  *vm.Class

	// ILOffset is the originating bytecode offset, carried through for
	// exception-clause range translation in internal/llir.
	ILOffset uint32
}

// Block is one basic block: a leader offset, its instruction list, and the
// stack schema observed at entry/exit.
type Block struct {
	StartOffset uint32
	EndOffset   uint32
	Instrs      []Instr

	EntryStack []StackKind
	ExitStack  []StackKind

	Preds []*Block
	Succs []*Block

	// IsHandlerStart / IsFilterStart mark blocks that begin a catch/
	// filter/finally/fault handler or filter, seeded with a synthesized
	// exception Variable at stack-entry.
	IsHandlerStart bool
	IsFilterStart  bool
}

// ExceptionClauseKind mirrors the ExceptionClause.Kind.
type ExceptionClauseKind int

const (
	ClauseCatch ExceptionClauseKind = iota
	ClauseFilter
	ClauseFinally
	ClauseFault
)

// ExceptionClause is the HL-IR form: offsets still in source-bytecode
// space; internal/llir translates them to IR-offset space.
type ExceptionClause struct {
	Kind         ExceptionClauseKind
	TryStart     uint32
	TryEnd       uint32
	HandlerStart uint32
	HandlerEnd   uint32
	FilterStart  uint32    // filter only
	CatchClass   *vm.Class // catch only
}

// Method is the HL-IR result of lowering one method body: its basic
// blocks plus raw exception clauses and total stack requirements.
type Method struct {
	Blocks               []*Block
	Clauses              []ExceptionClause
	MaxStack             uint32
	ArgLocalStackObjSize uint32
	InitLocals           bool
}

// nestingValid checks the exception-clause invariant: clauses are
// either disjoint or one fully contains another.
func nestingValid(clauses []ExceptionClause) bool {
	for i := range clauses {
		for j := range clauses {
			if i == j {
				continue
			}
			a, b := clauses[i], clauses[j]
			disjoint := a.TryEnd <= b.TryStart || b.TryEnd <= a.TryStart
			aContainsB := a.TryStart <= b.TryStart && b.TryEnd <= a.TryEnd
			bContainsA := b.TryStart <= a.TryStart && a.TryEnd <= b.TryEnd
			if !disjoint && !aContainsB && !bContainsA {
				return false
			}
		}
	}
	return true
}

// ValidateClauseNesting returns a BadImageFormat error if clauses overlap
// illegally.
func ValidateClauseNesting(clauses []ExceptionClause) error {
	if !nestingValid(clauses) {
		return rterror.New(rterror.BadImageFormat, "exception clauses are neither disjoint nor nested")
	}
	return nil
}
