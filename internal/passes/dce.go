package passes

import "github.com/standardbeagle/solis/internal/cfg"

// DCE removes unused pure instructions and empties unreachable blocks.
// Storage stores are never removed, even when the variable is never
// read: a future contract version may read them. Block numbering is
// preserved; unreachable blocks become empty with an Unreachable
// terminator so indices in surviving jumps stay valid.
func DCE(g *cfg.Graph) {
	reachable := g.Reachable()

	// Liveness: a slot is live when a reachable impure instruction,
	// terminator, or live instruction uses it. Iterate to fixpoint;
	// the graphs are small.
	live := map[int]bool{}
	mark := func(o cfg.Operand) {
		if v, ok := o.(cfg.Var); ok {
			live[v.ID] = true
		}
	}
	for changed := true; changed; {
		changed = false
		before := len(live)
		for no, blk := range g.Blocks {
			if !reachable[no] {
				continue
			}
			for _, instr := range blk.Instrs {
				needed := !instr.Pure()
				for _, r := range instr.Results() {
					if live[r.ID] {
						needed = true
					}
				}
				if needed {
					for _, u := range instr.Uses() {
						mark(u)
					}
				}
			}
			switch t := blk.Term.(type) {
			case cfg.CondJump:
				mark(t.Cond)
			case cfg.Return:
				for _, v := range t.Values {
					mark(v)
				}
			case cfg.Revert:
				for _, v := range t.Args {
					mark(v)
				}
			case cfg.SelfDestruct:
				mark(t.Recipient)
			}
		}
		if len(live) != before {
			changed = true
		}
	}

	for no, blk := range g.Blocks {
		if !reachable[no] {
			blk.Instrs = nil
			blk.Term = cfg.Unreachable{}
			continue
		}
		kept := blk.Instrs[:0]
		for _, instr := range blk.Instrs {
			if instr.Pure() {
				used := false
				for _, r := range instr.Results() {
					if live[r.ID] {
						used = true
					}
				}
				if !used {
					continue
				}
			}
			kept = append(kept, instr)
		}
		blk.Instrs = kept
	}
}
