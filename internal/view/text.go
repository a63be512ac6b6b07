package view

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Legend describes the WriteText glyphs.
const Legend = "# blocked  R ranger start  0-4 patrol route  * animal  ^ high risk  ~ medium risk  . low risk"

var routeANSI = [...]string{"\033[31m", "\033[32m", "\033[34m", "\033[35m", "\033[36m"}

const ansiReset = "\033[0m"

// WriteText renders the board as one line per row. With colour set, route
// glyphs are tinted with ANSI escapes.
func (b *Board) WriteText(w io.Writer, colour bool) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	bw := bufio.NewWriter(w)
	for _, row := range b.cells {
		for col, cell := range row {
			if col > 0 {
				bw.WriteByte(' ')
			}
			glyph, route := cellGlyph(cell)
			if colour && route >= 0 {
				fmt.Fprintf(bw, "%s%c%s", routeANSI[route], glyph, ansiReset)
			} else {
				bw.WriteByte(glyph)
			}
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// cellGlyph picks the character for a cell and, for patrolled cells, the
// route colour index (or -1).
func cellGlyph(c *Cell) (byte, int) {
	route := -1
	for _, cls := range c.classes {
		if n, ok := strings.CutPrefix(cls, "route-"); ok {
			if idx, err := strconv.Atoi(n); err == nil && idx < len(routeANSI) {
				route = idx
			}
		}
	}

	switch {
	case c.Has(ClassRanger):
		return 'R', route
	case c.Has(ClassPatrol) && route >= 0:
		return byte('0' + route), route
	case c.Has(ClassTerrain):
		return '#', -1
	case c.Has(ClassAnimal):
		return '*', -1
	case c.Has(ClassRiskHigh):
		return '^', -1
	case c.Has(ClassRiskMedium):
		return '~', -1
	}
	return '.', -1
}

// String renders the board without colour.
func (b *Board) String() string {
	var sb strings.Builder
	_ = b.WriteText(&sb, false)
	return sb.String()
}
