package hlir

import (
	"github.com/leanclr/leanclr/internal/rterror"
	"github.com/leanclr/leanclr/internal/vm"
)

// RawInstr is one decoded source-bytecode instruction: the micro-decode
// step (opcode + raw operand bytes, resolving metadata tokens into the
// running method/field/class already loaded by internal/vm) has already
// happened by the time the HL transformer sees it; this is the seam
// between that raw decode and the stack-simulation/block-splitting work
// this package actually implements.
type RawInstr struct {
	Op       Opcode
	Offset   uint32
	Len      uint32 // total encoded length, used to compute fall-through/next offsets
	ImmI64   int64
	ImmF64   float64
	Str      string
	BranchTo []uint32 // one target for conditional/unconditional branches, many for switch
	Method   *vm.Method
	Field    *vm.Field
	Class    *vm.Class
	Prefix   PrefixSet
}

func isBranch(op Opcode) bool {
	switch op {
	case OpBr, OpBrtrue, OpBrfalse, OpBeq, OpBne, OpBlt, OpBle, OpBgt, OpBge, OpSwitch, OpLeave:
		return true
	}
	return false
}

func isTerminator(op Opcode) bool {
	switch op {
	case OpRet, OpThrow, OpRethrow, OpEndfinally, OpEndfilter:
		return true
	}
	return isBranch(op)
}

// findLeaders computes basic-block leader offsets: offset
// 0, every branch target, the instruction after every branch/return/
// throw/leave/switch case, every handler start, every filter start, and
// every protected-region boundary.
func findLeaders(instrs []RawInstr, clauses []ExceptionClause) map[uint32]bool {
	leaders := map[uint32]bool{}
	if len(instrs) > 0 {
		leaders[instrs[0].Offset] = true
	}
	for i, in := range instrs {
		if isBranch(in.Op) {
			for _, t := range in.BranchTo {
				leaders[t] = true
			}
		}
		if isTerminator(in.Op) && i+1 < len(instrs) {
			leaders[instrs[i+1].Offset] = true
		}
	}
	for _, c := range clauses {
		leaders[c.TryStart] = true
		leaders[c.TryEnd] = true
		leaders[c.HandlerStart] = true
		leaders[c.HandlerEnd] = true
		if c.Kind == ClauseFilter {
			leaders[c.FilterStart] = true
		}
	}
	return leaders
}

// Transform runs the HL transformer over a method's decoded instruction
// stream, producing basic blocks with a validated, typed evaluation-stack
// schema and a resolved exception-clause list.
func Transform(instrs []RawInstr, clauses []ExceptionClause, numArgs, numLocals int) (*Method, error) {
	if err := ValidateClauseNesting(clauses); err != nil {
		return nil, err
	}

	leaders := findLeaders(instrs, clauses)
	blocks := splitBlocks(instrs, leaders)
	if err := resolveBranchTargets(blocks); err != nil {
		return nil, err
	}
	linkSuccessors(blocks)
	markHandlers(blocks, clauses)

	m := &Method{Blocks: blocks, Clauses: clauses}

	if err := simulateStacks(m); err != nil {
		return nil, err
	}

	base := uint32(numArgs + numLocals)
	for _, b := range m.Blocks {
		if err := lowerBlock(b, base); err != nil {
			return nil, err
		}
	}

	m.MaxStack = computeMaxStack(m)
	m.ArgLocalStackObjSize = base
	return m, nil
}

func splitBlocks(instrs []RawInstr, leaders map[uint32]bool) []*Block {
	var blocks []*Block
	var cur *Block
	for i, in := range instrs {
		if leaders[in.Offset] || cur == nil {
			if cur != nil {
				cur.EndOffset = in.Offset
			}
			cur = &Block{StartOffset: in.Offset}
			blocks = append(blocks, cur)
		}
		cur.Instrs = append(cur.Instrs, Instr{
			Op: in.Op, Prefixes: in.Prefix, ImmI64: in.ImmI64, ImmF64: in.ImmF64,
			Str: in.Str, Method: in.Method, Field: in.Field, Class: in.Class,
			ILOffset: in.Offset, branchTo: in.BranchTo,
		})
		if i == len(instrs)-1 {
			cur.EndOffset = in.Offset + in.Len
		}
	}
	return blocks
}

// resolveBranchTargets fills in Instr.Target/Targets for every branching
// instruction, resolving each RawInstr.BranchTo offset against the split
// block boundaries. Must run after splitBlocks, before linkSuccessors.
func resolveBranchTargets(blocks []*Block) error {
	for _, b := range blocks {
		for i := range b.Instrs {
			in := &b.Instrs[i]
			if !isBranch(in.Op) {
				continue
			}
			offs := in.branchTo
			if len(offs) == 0 {
				continue
			}
			if in.Op == OpSwitch {
				in.Targets = make([]*Block, 0, len(offs))
				for _, o := range offs {
					t := blockAt(blocks, o)
					if t == nil {
						return rterror.New(rterror.BadImageFormat, "switch target at offset %d has no block", o)
					}
					in.Targets = append(in.Targets, t)
				}
				continue
			}
			t := blockAt(blocks, offs[0])
			if t == nil {
				return rterror.New(rterror.BadImageFormat, "branch target at offset %d has no block", offs[0])
			}
			in.Target = t
		}
	}
	return nil
}

func blockAt(blocks []*Block, offset uint32) *Block {
	for _, b := range blocks {
		if b.StartOffset == offset {
			return b
		}
	}
	return nil
}

// linkSuccessors wires Block.Succs/Preds from each block's terminating
// instruction, using the Target/Targets already resolved by
// resolveBranchTargets.
func linkSuccessors(blocks []*Block) {
	link := func(from, to *Block) {
		for _, s := range from.Succs {
			if s == to {
				return
			}
		}
		from.Succs = append(from.Succs, to)
		to.Preds = append(to.Preds, from)
	}

	for i, b := range blocks {
		if len(b.Instrs) == 0 {
			continue
		}
		last := &b.Instrs[len(b.Instrs)-1]
		switch {
		case last.Op == OpBr || last.Op == OpLeave:
			if last.Target != nil {
				link(b, last.Target)
			}
		case isBranch(last.Op):
			// conditional branch or switch: falls through to the next
			// block in addition to every explicit target.
			if last.Target != nil {
				link(b, last.Target)
			}
			for _, t := range last.Targets {
				link(b, t)
			}
			if i+1 < len(blocks) {
				link(b, blocks[i+1])
			}
		case isTerminator(last.Op):
			// ret/throw/rethrow/endfinally/endfilter have no fall-through
			// successor.
		default:
			if i+1 < len(blocks) {
				link(b, blocks[i+1])
			}
		}
	}
}

func markHandlers(blocks []*Block, clauses []ExceptionClause) {
	for _, c := range clauses {
		if h := blockAt(blocks, c.HandlerStart); h != nil {
			h.IsHandlerStart = true
		}
		if c.Kind == ClauseFilter {
			if f := blockAt(blocks, c.FilterStart); f != nil {
				f.IsFilterStart = true
			}
		}
	}
}

func computeMaxStack(m *Method) uint32 {
	var max uint32
	for _, b := range m.Blocks {
		if uint32(len(b.ExitStack)) > max {
			max = uint32(len(b.ExitStack))
		}
		if uint32(len(b.EntryStack)) > max {
			max = uint32(len(b.EntryStack))
		}
	}
	return max
}

var errStackJoinMismatch = rterror.New(rterror.ExecutionEngine,
	"evaluation stack shapes disagree at a block join")
