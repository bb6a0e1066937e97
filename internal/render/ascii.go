package render

import (
	"bufio"
	"fmt"
	"io"
	"math"

	"github.com/dyluth/easel/pkg/board"
)

// Terminal cell size in screen units.
const (
	CellWidth  = 8.0
	CellHeight = 16.0
)

type grid struct {
	cols, rows int
	cells      [][]rune
}

func newGrid(cols, rows int) *grid {
	g := &grid{cols: cols, rows: rows, cells: make([][]rune, rows)}
	for r := range g.cells {
		g.cells[r] = make([]rune, cols)
		for c := range g.cells[r] {
			g.cells[r][c] = ' '
		}
	}
	return g
}

func (g *grid) set(col, row int, ch rune) {
	if col < 0 || row < 0 || col >= g.cols || row >= g.rows {
		return
	}
	g.cells[row][col] = ch
}

// maxCell bounds cell coordinates so far-off geometry converts to int safely.
const maxCell = 1 << 30

func cell(x, y float64) (int, int) {
	return toCell(x / CellWidth), toCell(y / CellHeight)
}

func toCell(v float64) int {
	return int(math.Floor(math.Max(-maxCell, math.Min(maxCell, v))))
}

// line draws with Bresenham between two cells, after clipping the segment to
// the grid plus a one-cell margin so work is bounded by the grid size.
func (g *grid) line(c0, r0, c1, r1 int, ch rune) {
	x0, y0, x1, y1, ok := g.clip(float64(c0), float64(r0), float64(c1), float64(r1))
	if !ok {
		return
	}
	c0, r0, c1, r1 = int(math.Round(x0)), int(math.Round(y0)), int(math.Round(x1)), int(math.Round(y1))

	dc, dr := abs(c1-c0), -abs(r1-r0)
	sc, sr := sign(c1-c0), sign(r1-r0)
	e := dc + dr
	for {
		g.set(c0, r0, ch)
		if c0 == c1 && r0 == r1 {
			return
		}
		e2 := 2 * e
		if e2 >= dr {
			e += dr
			c0 += sc
		}
		if e2 <= dc {
			e += dc
			r0 += sr
		}
	}
}

// clip is Liang-Barsky against [-1, cols] x [-1, rows].
func (g *grid) clip(x0, y0, x1, y1 float64) (float64, float64, float64, float64, bool) {
	dx, dy := x1-x0, y1-y0
	t0, t1 := 0.0, 1.0
	edges := [4][2]float64{
		{-dx, x0 + 1},
		{dx, float64(g.cols) - x0},
		{-dy, y0 + 1},
		{dy, float64(g.rows) - y0},
	}
	for _, e := range edges {
		p, q := e[0], e[1]
		if p == 0 {
			if q < 0 {
				return 0, 0, 0, 0, false
			}
			continue
		}
		t := q / p
		if p < 0 {
			t0 = math.Max(t0, t)
		} else {
			t1 = math.Min(t1, t)
		}
		if t0 > t1 {
			return 0, 0, 0, 0, false
		}
	}
	return x0 + t0*dx, y0 + t0*dy, x0 + t1*dx, y0 + t1*dy, true
}

// span clamps the inclusive cell range lo..hi to 0..n-1.
func span(lo, hi, n int) (int, int) {
	return max(lo, 0), min(hi, n-1)
}

func (g *grid) box(r Rect, edge, corner, fill rune) {
	c0, r0 := cell(r.Min.X, r.Min.Y)
	c1, r1 := cell(r.Max.X, r.Max.Y)
	rowLo, rowHi := span(r0, r1, g.rows)
	colLo, colHi := span(c0, c1, g.cols)
	for row := rowLo; row <= rowHi; row++ {
		for col := colLo; col <= colHi; col++ {
			switch {
			case (row == r0 || row == r1) && (col == c0 || col == c1):
				g.set(col, row, corner)
			case row == r0 || row == r1:
				g.set(col, row, edge)
			case col == c0 || col == c1:
				g.set(col, row, '|')
			case fill != 0:
				g.set(col, row, fill)
			}
		}
	}
}

// ellipse plots the outline where it crosses each column and row center of
// the grid, so the cost follows the grid, not the ellipse.
func (g *grid) ellipse(r Rect) {
	cx, cy := (r.Min.X+r.Max.X)/2, (r.Min.Y+r.Max.Y)/2
	rx, ry := r.Width()/2, r.Height()/2
	if rx <= 0 || ry <= 0 {
		c0, r0 := cell(r.Min.X, r.Min.Y)
		c1, r1 := cell(r.Max.X, r.Max.Y)
		g.line(c0, r0, c1, r1, 'o')
		return
	}

	for col := 0; col < g.cols; col++ {
		u := ((float64(col)+0.5)*CellWidth - cx) / rx
		if math.Abs(u) > 1 {
			continue
		}
		dy := ry * math.Sqrt(1-u*u)
		_, top := cell(0, cy-dy)
		_, bottom := cell(0, cy+dy)
		g.set(col, top, 'o')
		g.set(col, bottom, 'o')
	}
	for row := 0; row < g.rows; row++ {
		v := ((float64(row)+0.5)*CellHeight - cy) / ry
		if math.Abs(v) > 1 {
			continue
		}
		dx := rx * math.Sqrt(1-v*v)
		left, _ := cell(cx-dx, 0)
		right, _ := cell(cx+dx, 0)
		g.set(left, row, 'o')
		g.set(right, row, 'o')
	}
}

// text writes s left to right from a cell, clipped at maxCol.
func (g *grid) text(col, row, maxCol int, s string) {
	if row < 0 || row >= g.rows {
		return
	}
	maxCol = min(maxCol, g.cols-1)
	for _, ch := range s {
		if col > maxCol {
			return
		}
		g.set(col, row, ch)
		col++
	}
}

// WriteASCII rasterizes the frame onto a cols x rows character grid, one cell
// per CellWidth x CellHeight screen units, followed by a cursor legend.
func (f Frame) WriteASCII(w io.Writer, cols, rows int) error {
	if cols <= 0 || rows <= 0 {
		return fmt.Errorf("grid must be at least 1x1, got %dx%d", cols, rows)
	}
	g := newGrid(cols, rows)

	for _, it := range f.Items {
		switch it.Kind {
		case board.KindStroke:
			for i, p := range it.Points {
				c, r := cell(p.X, p.Y)
				if i == 0 {
					g.set(c, r, '*')
					continue
				}
				pc, pr := cell(it.Points[i-1].X, it.Points[i-1].Y)
				g.line(pc, pr, c, r, '*')
			}
		case board.KindRectangle:
			g.box(it.Bounds, '-', '+', 0)
		case board.KindEllipse:
			g.ellipse(it.Bounds)
		case board.KindText:
			c, r := cell(it.Bounds.Min.X, it.Bounds.Min.Y)
			mc, _ := cell(it.Bounds.Max.X, it.Bounds.Max.Y)
			g.text(c, r, mc, it.Text)
		case board.KindSticky:
			g.box(it.Bounds, '=', '+', '.')
			c, r := cell(it.Bounds.Min.X, it.Bounds.Min.Y)
			mc, _ := cell(it.Bounds.Max.X, it.Bounds.Max.Y)
			g.text(c+1, r+1, mc-1, it.Text)
		}
	}
	for _, cur := range f.Cursors {
		c, r := cell(cur.X, cur.Y)
		g.set(c, r, '@')
	}

	bw := bufio.NewWriter(w)
	for _, row := range g.cells {
		if _, err := bw.WriteString(string(row) + "\n"); err != nil {
			return err
		}
	}
	for _, cur := range f.Cursors {
		if _, err := fmt.Fprintf(bw, "@ %s (%s) at %.0f,%.0f\n", cur.DisplayName, cur.UserID, cur.X, cur.Y); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
