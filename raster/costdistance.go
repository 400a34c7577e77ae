package raster

import (
	"container/heap"
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r2"
)

var (
	// ErrNoSource is returned when no source cell lies on a valid cost cell.
	ErrNoSource = errors.New("no source cell on valid cost surface")
	// ErrUnreachable is returned when a destination has no accumulated cost.
	ErrUnreachable = errors.New("destination not reachable from source")
	// ErrDegeneratePath is returned when a traced path has fewer than two cells.
	ErrDegeneratePath = errors.New("least-cost path has fewer than two cells")
)

// Backlink codes, clockwise from east. A source cell holds 0.
var neighbours = [8][2]int{
	{1, 0},   // 1 E
	{1, 1},   // 2 SE
	{0, 1},   // 3 S
	{-1, 1},  // 4 SW
	{-1, 0},  // 5 W
	{-1, -1}, // 6 NW
	{0, -1},  // 7 N
	{1, -1},  // 8 NE
}

type queued struct {
	index int
	dist  float64
}

type costQueue []queued

func (q costQueue) Len() int            { return len(q) }
func (q costQueue) Less(i, j int) bool  { return q[i].dist < q[j].dist }
func (q costQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *costQueue) Push(x interface{}) { *q = append(*q, x.(queued)) }
func (q *costQueue) Pop() interface{} {
	old := *q
	item := old[len(old)-1]
	*q = old[:len(old)-1]
	return item
}

// CostDistance accumulates the least cost from the nearest source over an
// 8-connected cost surface. Moving between two cells costs the mean of their
// values times the step length (one cell, or √2 cells on a diagonal). Null
// and negative cost cells are barriers. The backlink grid holds, for every
// reached cell, the code of the neighbour to step to on the way back.
func CostDistance(cost *Grid, sources [][2]int) (dist, back *Grid, err error) {
	dist = NewLike(cost)
	back = NewLike(cost)
	done := make([]bool, len(cost.Cells))
	queue := &costQueue{}

	for _, src := range sources {
		col, row := src[0], src[1]
		if !cost.InBounds(col, row) {
			continue
		}
		v := cost.At(col, row)
		if IsNull(v) || v < 0 {
			continue
		}
		i := row*cost.Cols + col
		dist.Cells[i] = 0
		back.Cells[i] = 0
		heap.Push(queue, queued{index: i, dist: 0})
	}
	if queue.Len() == 0 {
		return nil, nil, ErrNoSource
	}

	for queue.Len() > 0 {
		item := heap.Pop(queue).(queued)
		if done[item.index] {
			continue
		}
		done[item.index] = true
		col, row := item.index%cost.Cols, item.index/cost.Cols
		here := cost.Cells[item.index]

		for code, step := range neighbours {
			nc, nr := col+step[0], row+step[1]
			if !cost.InBounds(nc, nr) {
				continue
			}
			j := nr*cost.Cols + nc
			if done[j] {
				continue
			}
			there := cost.Cells[j]
			if IsNull(there) || there < 0 {
				continue
			}
			length := cost.CellSize
			if step[0] != 0 && step[1] != 0 {
				length *= math.Sqrt2
			}
			d := item.dist + (here+there)/2*length
			if IsNull(dist.Cells[j]) || d < dist.Cells[j] {
				dist.Cells[j] = d
				// Step back from j towards the cell we came from
				back.Cells[j] = float64((code+4)%8 + 1)
				heap.Push(queue, queued{index: j, dist: d})
			}
		}
	}
	return dist, back, nil
}

// CostPath traces the least-cost route from dest back to a source cell. The
// returned vertices are cell centers ordered from dest to the source.
func CostPath(dist, back *Grid, dest r2.Point) ([]r2.Point, error) {
	col, row, ok := dist.CellOf(dest)
	if !ok || IsNull(dist.At(col, row)) {
		return nil, fmt.Errorf("%w: %s", ErrUnreachable, formatPoint(dest))
	}

	path := []r2.Point{dist.Center(col, row)}
	for steps := 0; steps <= len(back.Cells); steps++ {
		code := back.At(col, row)
		if IsNull(code) {
			return nil, fmt.Errorf("%w: broken backlink at cell %d,%d", ErrUnreachable, col, row)
		}
		if code == 0 {
			if len(path) < 2 {
				return nil, ErrDegeneratePath
			}
			return path, nil
		}
		step := neighbours[int(code)-1]
		col, row = col+step[0], row+step[1]
		if !back.InBounds(col, row) {
			return nil, fmt.Errorf("%w: backlink leaves grid", ErrUnreachable)
		}
		path = append(path, dist.Center(col, row))
	}
	return nil, fmt.Errorf("%w: backlink cycle", ErrUnreachable)
}

func formatPoint(p r2.Point) string {
	return fmt.Sprintf("X %.3f, Y %.3f", p.X, p.Y)
}
