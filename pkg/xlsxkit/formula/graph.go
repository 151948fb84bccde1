package formula

import (
	"strings"

	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/cellref"
	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/errs"
)

// CellKey identifies a cell across sheets.
type CellKey struct {
	Sheet string
	Ref   cellref.Ref
}

func (k CellKey) String() string {
	return cellref.FormatAddress(k.Sheet, cellref.CellRange(k.Ref))
}

type graphNode struct {
	key  CellKey
	deps []Reference
}

// Graph records which cells each formula cell reads, and orders formula
// cells so that every cell comes after the formula cells it depends on.
type Graph struct {
	nodes []graphNode
	index map[graphKey]int
}

type graphKey struct {
	sheet string
	ref   cellref.Ref
}

func keyOf(sheet string, ref cellref.Ref) graphKey {
	return graphKey{sheet: cellref.FoldSheetName(sheet), ref: ref}
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{index: make(map[graphKey]int)}
}

// Add registers a formula cell and the references it reads. References
// without a sheet belong to the cell's own sheet. Adding a cell twice
// replaces its dependencies.
func (g *Graph) Add(cell CellKey, deps []Reference) {
	resolved := make([]Reference, 0, len(deps))
	for _, d := range deps {
		if d.External {
			continue
		}
		if d.Sheet == "" {
			d.Sheet = cell.Sheet
		}
		resolved = append(resolved, d)
	}
	k := keyOf(cell.Sheet, cell.Ref)
	if i, ok := g.index[k]; ok {
		g.nodes[i].deps = resolved
		return
	}
	g.index[k] = len(g.nodes)
	g.nodes = append(g.nodes, graphNode{key: cell, deps: resolved})
}

// Len returns the number of formula cells.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Order returns the formula cells in evaluation order. Cells with no
// ordering constraint between them keep the order they were added in.
// A cycle is reported as a formula error naming every cell on or behind
// it, and no order is returned.
func (g *Graph) Order() ([]CellKey, error) {
	n := len(g.nodes)
	// users[i] lists the formula cells that read cell i.
	users := make([][]int, n)
	indegree := make([]int, n)

	bySheet := make(map[string][]int)
	for i, node := range g.nodes {
		s := cellref.FoldSheetName(node.key.Sheet)
		bySheet[s] = append(bySheet[s], i)
	}
	for i, node := range g.nodes {
		seen := make(map[int]bool)
		for _, d := range node.deps {
			if d.Range.IsCell() {
				if j, ok := g.index[keyOf(d.Sheet, d.Range.Start)]; ok && !seen[j] {
					seen[j] = true
					users[j] = append(users[j], i)
					indegree[i]++
				}
				continue
			}
			for _, j := range bySheet[cellref.FoldSheetName(d.Sheet)] {
				if !seen[j] && d.Range.Contains(g.nodes[j].key.Ref) {
					seen[j] = true
					users[j] = append(users[j], i)
					indegree[i]++
				}
			}
		}
	}

	order := make([]CellKey, 0, n)
	queue := make([]int, 0, n)
	for i := range g.nodes {
		if indegree[i] == 0 {
			queue = append(queue, i)
		}
	}
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		order = append(order, g.nodes[i].key)
		for _, u := range users[i] {
			indegree[u]--
			if indegree[u] == 0 {
				queue = append(queue, u)
			}
		}
	}
	if len(order) == n {
		return order, nil
	}

	var cells []string
	for i, node := range g.nodes {
		if indegree[i] > 0 {
			cells = append(cells, node.key.String())
		}
	}
	return nil, errs.New(errs.Formula, errs.ErrCircularReference, "%s", strings.Join(cells, ", "))
}
