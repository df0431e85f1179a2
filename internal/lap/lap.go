// Package lap solves the dense linear assignment problem (LAP): given an
// n×n real cost matrix, find the row→column permutation minimizing total
// cost. It implements the Jonker–Volgenant primal-dual algorithm in three
// phases — column reduction, augmenting row reduction, and shortest
// augmenting path — the same structure used by the classic dense lapjv
// solvers this package's rectangular wrapper is styled after.
package lap

import "math"

// sentinel stands in for "forbidden" in internal arithmetic. Using an
// actual +Inf here would turn subtractions between two forbidden entries
// into NaN, so any caller-supplied +Inf cost is clamped to this value
// before the solver runs.
const sentinel = 1e15

// Solve finds a minimum-cost perfect matching over the square cost matrix.
// It returns rowToCol (rowToCol[i] is the column assigned to row i) and
// colToRow (its inverse), with rowToCol[i]==j iff colToRow[j]==i for all
// i, j. cost must be square; entries may be +Inf to forbid a pairing.
//
// Panics if the augmenting-path search fails to terminate, which can only
// happen if the cost matrix is malformed (e.g. contains NaN) — an
// invariant violation, not a recoverable runtime condition.
func Solve(cost [][]float64) (rowToCol, colToRow []int) {
	n := len(cost)
	if n == 0 {
		return nil, nil
	}
	if n == 1 {
		return []int{0}, []int{0}
	}

	c := make([][]float64, n)
	for i := range cost {
		row := make([]float64, n)
		for j, v := range cost[i] {
			if math.IsInf(v, 1) || v > sentinel {
				v = sentinel
			}
			row[j] = v
		}
		c[i] = row
	}

	x := make([]int, n) // row -> col
	y := make([]int, n) // col -> row
	v := make([]float64, n)

	free := ccrrtDense(n, c, x, y, v)
	for i := 0; i < 2 && len(free) > 0; i++ {
		free = carrDense(n, c, free, x, y, v)
	}
	if len(free) > 0 {
		caDense(n, c, free, x, y, v)
	}
	return x, y
}

// SolveRectangular solves an m×k (possibly non-square) assignment by
// padding to n=max(m,k) with the sentinel cost, then rejects any pairing
// whose original cost exceeds threshold (the caller's match-acceptance
// cutoff) as "no match" (-1), exactly like the rectangular-wrapping
// convention over the square dense kernel.
func SolveRectangular(cost [][]float64, threshold float64) (rowToCol, colToRow []int) {
	m := len(cost)
	if m == 0 {
		return nil, nil
	}
	k := len(cost[0])
	if k == 0 {
		rowToCol = make([]int, m)
		for i := range rowToCol {
			rowToCol[i] = -1
		}
		return rowToCol, nil
	}

	n := m
	if k > n {
		n = k
	}
	square := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, n)
		for j := 0; j < n; j++ {
			if i < m && j < k {
				row[j] = cost[i][j]
			} else {
				row[j] = sentinel
			}
		}
		square[i] = row
	}

	x, y := Solve(square)

	rowToCol = make([]int, m)
	for i := 0; i < m; i++ {
		j := x[i]
		if j < 0 || j >= k || cost[i][j] > threshold {
			rowToCol[i] = -1
		} else {
			rowToCol[i] = j
		}
	}
	colToRow = make([]int, k)
	for j := 0; j < k; j++ {
		i := y[j]
		if i < 0 || i >= m || cost[i][j] > threshold {
			colToRow[j] = -1
		} else {
			colToRow[j] = i
		}
	}
	return rowToCol, colToRow
}

// ccrrtDense is phase 1: column reduction plus reduction transfer. It
// initializes the column duals to the column minima, claims a tentative
// row for each column, and for rows that claimed a column uniquely,
// tightens that column's dual by the row's second-best reduced cost.
// Returns the list of rows left unclaimed (free).
func ccrrtDense(n int, cost [][]float64, x, y []int, v []float64) []int {
	for i := range x {
		x[i] = -1
	}
	for j := range v {
		v[j] = sentinel
		y[j] = 0
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if c := cost[i][j]; c < v[j] {
				v[j] = c
				y[j] = i
			}
		}
	}

	unique := make([]bool, n)
	for i := range unique {
		unique[i] = true
	}
	for j := n - 1; j >= 0; j-- {
		i := y[j]
		if x[i] < 0 {
			x[i] = j
		} else {
			unique[i] = false
			y[j] = -1
		}
	}

	var free []int
	for i := 0; i < n; i++ {
		switch {
		case x[i] < 0:
			free = append(free, i)
		case unique[i]:
			j := x[i]
			min := sentinel
			for j2 := 0; j2 < n; j2++ {
				if j2 == j {
					continue
				}
				if c := cost[i][j2] - v[j2]; c < min {
					min = c
				}
			}
			v[j] -= min
		}
	}
	return free
}

// carrDense is phase 2: augmenting row reduction, one pass over the free
// row list. Solve calls this at most twice before falling back to the
// augmenting-path phase. For each free row it finds the two smallest
// reduced costs and either tightens the column dual or reassigns, guarded
// against pathological loops by rr_cnt < current*n.
func carrDense(n int, cost [][]float64, freeRows []int, x, y []int, v []float64) []int {
	current := 0
	var newFree []int
	rrCnt := 0

	for current < len(freeRows) {
		rrCnt++
		freeI := freeRows[current]
		current++

		j1 := 0
		v1 := cost[freeI][0] - v[0]
		j2 := -1
		v2 := sentinel
		for j := 1; j < n; j++ {
			c := cost[freeI][j] - v[j]
			if c < v2 {
				if c >= v1 {
					v2 = c
					j2 = j
				} else {
					v2 = v1
					v1 = c
					j2 = j1
					j1 = j
				}
			}
		}

		i0 := y[j1]
		v1New := v[j1] - (v2 - v1)
		v1Lowers := v1New < v[j1]

		if rrCnt < current*n {
			if v1Lowers {
				v[j1] = v1New
			} else if i0 >= 0 && j2 >= 0 {
				j1 = j2
				i0 = y[j2]
			}
			if i0 >= 0 {
				if v1Lowers {
					current--
					freeRows[current] = i0
				} else {
					newFree = append(newFree, i0)
				}
			}
		} else if i0 >= 0 {
			newFree = append(newFree, i0)
		}

		x[freeI] = j1
		y[j1] = freeI
	}
	return newFree
}

// caDense is phase 3: for each still-free row, find a shortest augmenting
// path via findPathDense and flip the alternating path along it.
func caDense(n int, cost [][]float64, freeRows []int, x, y []int, v []float64) {
	pred := make([]int, n)
	for _, freeI := range freeRows {
		j := findPathDense(n, cost, freeI, y, v, pred)
		i := -1
		for i != freeI {
			i = pred[j]
			y[j] = i
			x[i], j = j, x[i]
		}
	}
}

// findPathDense runs a Dijkstra-like search for the shortest augmenting
// path starting at row startI, returning the first unassigned column it
// reaches. pred[j] records the predecessor row for path reconstruction.
func findPathDense(n int, cost [][]float64, startI int, y []int, v []float64, pred []int) int {
	cols := make([]int, n)
	d := make([]float64, n)
	for i := 0; i < n; i++ {
		cols[i] = i
		pred[i] = startI
		d[i] = cost[startI][i] - v[i]
	}

	lo, hi, nReady := 0, 0, 0
	finalJ := -1

	for iterations := 0; finalJ == -1; iterations++ {
		if iterations > n {
			panic("lap: augmenting path search did not terminate")
		}
		if lo == hi {
			nReady = lo
			hi = findDense(n, lo, d, cols)
			for k := lo; k < hi; k++ {
				if j := cols[k]; y[j] < 0 {
					finalJ = j
				}
			}
		}
		if finalJ == -1 {
			finalJ = scanDense(n, cost, &lo, &hi, d, cols, pred, y, v)
		}
		if finalJ == -1 {
			mind := d[cols[lo]]
			for k := lo; k < hi; k++ {
				v[cols[k]] += d[cols[k]] - mind
			}
		}
	}

	mind := d[cols[lo]]
	for i := 0; i < nReady; i++ {
		j := cols[i]
		v[j] += d[j] - mind
	}
	return finalJ
}

// findDense extracts the next frontier of smallest-distance columns
// starting at index lo, partitioning cols[lo:hi) as the new minimal band.
// Ties prefer the lower-index column already within the band.
func findDense(n, lo int, d []float64, cols []int) int {
	hi := lo + 1
	mind := d[cols[lo]]
	for k := hi; k < n; k++ {
		j := cols[k]
		if d[j] <= mind {
			if d[j] < mind {
				hi = lo
				mind = d[j]
			}
			cols[k] = cols[hi]
			cols[hi] = j
			hi++
		}
	}
	return hi
}

// scanDense relaxes distances from the row frontier [lo,hi) over the
// remaining columns, recording predecessors, and returns the first
// unassigned column whose distance hits the current minimum, or -1 if
// the frontier is exhausted without finding one.
func scanDense(n int, cost [][]float64, lo, hi *int, d []float64, cols, pred, y []int, v []float64) int {
	l, h := *lo, *hi
	for l != h {
		j := cols[l]
		l++
		i := y[j]
		mind := d[j]
		hVal := cost[i][j] - v[j] - mind

		for k := h; k < n; k++ {
			j2 := cols[k]
			credIJ := cost[i][j2] - v[j2] - hVal
			if credIJ < d[j2] {
				d[j2] = credIJ
				pred[j2] = i
				if credIJ == mind {
					if y[j2] < 0 {
						*lo, *hi = l, h
						return j2
					}
					cols[k] = cols[h]
					cols[h] = j2
					h++
				}
			}
		}
	}
	*lo, *hi = l, h
	return -1
}
