package cli

import (
	"fmt"
	"io"
	"strings"
)

// ─── Progress Bar ───────────────────────────────────────────────────────────
// Renders progress toward the next milestone:
//   Week Warrior  [=================>............]  5 / 7 days

const barWidth = 30 // Characters for the progress bar

// bar draws cur/target as a fixed-width ASCII bar.
func bar(cur, target int) string {
	if target <= 0 {
		return strings.Repeat("=", barWidth)
	}
	pct := float64(cur) / float64(target)
	if pct < 0 {
		pct = 0
	}
	if pct > 1 {
		pct = 1
	}

	filled := int(pct * float64(barWidth))
	empty := barWidth - filled

	switch {
	case filled == barWidth:
		return strings.Repeat("=", filled)
	case filled > 0:
		return strings.Repeat("=", filled-1) + ">" + strings.Repeat(".", empty)
	default:
		return strings.Repeat(".", barWidth)
	}
}

// writeProgress prints one labelled bar line.
func writeProgress(w io.Writer, label string, cur, target int, unit string) {
	fmt.Fprintf(w, "  %-18s [%s] %3d / %d %s\n", label, bar(cur, target), cur, target, unit)
}
