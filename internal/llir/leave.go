package llir

import (
	"sort"

	"github.com/leanclr/leanclr/internal/hlir"
)

// expandLeaves rewrites each placeholder OpLeavePlain into its finally-aware
// form: a leave originating inside a try block with
// enclosing finally clauses becomes LeaveTryWithFinally; one originating
// inside a catch handler becomes LeaveCatchWithFinally (enclosing finally
// clauses exist) or LeaveCatchWithoutFinally (none do); a leave with no
// enclosing finally clauses and not inside a catch stays a plain jump.
func expandLeaves(hm *hlir.Method, m *Method, blockFirstInstr map[*hlir.Block]int) error {
	idx := 0
	for _, b := range hm.Blocks {
		for i := range b.Instrs {
			in := &b.Instrs[i]
			if in.Op != hlir.OpLeave {
				idx++
				continue
			}
			ll := &m.Instrs[idx]

			finallyIdx := enclosingFinally(hm.Clauses, in.ILOffset)
			inCatch := insideCatchHandler(hm.Clauses, in.ILOffset)

			switch {
			case inCatch && len(finallyIdx) > 0:
				ll.Op = OpLeaveCatchWithFinally
				ll.FinallyClauses = finallyIdx
			case inCatch:
				ll.Op = OpLeaveCatchWithoutFinally
			case len(finallyIdx) > 0:
				ll.Op = OpLeaveTryWithFinally
				ll.FinallyClauses = finallyIdx
			default:
				ll.Op = OpLeavePlain
			}
			idx++
		}
	}
	return nil
}

// enclosingFinally returns the indices (into hm.Clauses) of every finally
// clause whose try range contains off, ordered innermost-first — the order
// a leave must run them in.
func enclosingFinally(clauses []hlir.ExceptionClause, off uint32) []int {
	var idx []int
	for i, c := range clauses {
		if c.Kind == hlir.ClauseFinally && c.TryStart <= off && off < c.TryEnd {
			idx = append(idx, i)
		}
	}
	sort.Slice(idx, func(a, b int) bool {
		ca, cb := clauses[idx[a]], clauses[idx[b]]
		return (ca.TryEnd - ca.TryStart) < (cb.TryEnd - cb.TryStart)
	})
	return idx
}

func insideCatchHandler(clauses []hlir.ExceptionClause, off uint32) bool {
	for _, c := range clauses {
		if (c.Kind == hlir.ClauseCatch || c.Kind == hlir.ClauseFilter) &&
			c.HandlerStart <= off && off < c.HandlerEnd {
			return true
		}
	}
	return false
}
