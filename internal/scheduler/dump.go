package scheduler

import (
	"fmt"
	"io"
	"strings"

	"github.com/roach88/gatesched/internal/ir"
)

// Dump writes a human-readable listing of cfg: one header per block with its
// immediate dominator, predecessors and successors, then the block's gates in
// emission order. The format is diagnostic only.
func Dump(w io.Writer, g ir.Graph, cfg ControlFlowGraph) error {
	var sb strings.Builder
	for i := range cfg {
		b := &cfg[i]
		fmt.Fprintf(&sb, "B%d idom=B%d preds=%s succs=%s\n", b.Index, b.IDom, blockList(b.Preds), blockList(b.Succs))
		for _, ref := range b.EmissionOrder() {
			fmt.Fprintf(&sb, "    %s", ir.Label(g, ref))
			if ins := g.GetIns(ref); len(ins) > 0 {
				sb.WriteString(" [")
				for j, in := range ins {
					if j > 0 {
						sb.WriteByte(' ')
					}
					fmt.Fprintf(&sb, "%d", in)
				}
				sb.WriteByte(']')
			}
			sb.WriteByte('\n')
		}
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func blockList(bs []int) string {
	parts := make([]string, len(bs))
	for i, b := range bs {
		parts[i] = fmt.Sprintf("B%d", b)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
