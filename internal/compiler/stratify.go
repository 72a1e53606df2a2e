package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/factlog/internal/ir"
)

// Stratum is one evaluation layer: the predicates it defines and the rules
// whose heads it owns. Rules keep source order.
type Stratum struct {
	Index      int
	Predicates []string
	Rules      []ir.Rule
}

// Stratification is the ordered layering of a program.
type Stratification struct {
	Strata    []Stratum
	Of        map[string]int  // predicate -> stratum index
	Recursive map[string]bool // predicate lies on a dependency cycle
}

// RecursionNote reports a positive recursive component.
// Recursion is legal; the note helps when reading strata output.
type RecursionNote struct {
	Path    []string `json:"path"`    // ["reachable", "reachable"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // always "info"
}

// edge is a dependency from a rule head to a body predicate.
type edge struct {
	to       string
	negative bool
}

// dependencyGraph maps head predicate -> body predicates, deduplicated and sorted.
type dependencyGraph map[string][]edge

// Stratify computes the minimal stratum of every predicate.
//
// The algorithm:
//  1. Build the head -> body dependency graph, one node per predicate
//  2. Find strongly connected components with Tarjan's algorithm
//  3. Fail with StratificationError if a negative edge lies inside a component
//  4. Assign strata by longest path over the condensation: a positive edge
//     requires the same or a later stratum, a negative edge a strictly later one
//
// Base predicates land at stratum 0. Output is deterministic for a given
// program regardless of map iteration order.
func Stratify(preds []string, rules []ir.Rule) (*Stratification, error) {
	graph := buildDependencyGraph(preds, rules)
	sccs := tarjanSCC(graph)

	component := make(map[string]int, len(graph))
	for i, scc := range sccs {
		for _, p := range scc {
			component[p] = i
		}
	}

	// Tarjan emits a component only after every component it reaches, so
	// dependencies are always assigned before their dependents.
	level := make([]int, len(sccs))
	recursive := make(map[string]bool)
	for i, scc := range sccs {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			for _, p := range scc {
				recursive[p] = true
			}
		}
		for _, p := range scc {
			for _, e := range graph[p] {
				j := component[e.to]
				if j == i {
					if e.negative {
						return nil, negativeCycleError(scc, p, e.to, graph)
					}
					continue
				}
				need := level[j]
				if e.negative {
					need++
				}
				level[i] = max(level[i], need)
			}
		}
	}

	st := &Stratification{
		Of:        make(map[string]int, len(graph)),
		Recursive: recursive,
	}
	top := 0
	for i, scc := range sccs {
		for _, p := range scc {
			st.Of[p] = level[i]
		}
		top = max(top, level[i])
	}

	st.Strata = make([]Stratum, top+1)
	for i := range st.Strata {
		st.Strata[i].Index = i
	}
	for _, p := range sortedNodes(graph) {
		s := st.Of[p]
		st.Strata[s].Predicates = append(st.Strata[s].Predicates, p)
	}
	for _, r := range rules {
		s := st.Of[r.Head.Predicate]
		st.Strata[s].Rules = append(st.Strata[s].Rules, r)
	}
	return st, nil
}

// AnalyzeRecursion lists positive recursive components, for diagnostics.
func AnalyzeRecursion(preds []string, rules []ir.Rule) []RecursionNote {
	graph := buildDependencyGraph(preds, rules)
	var notes []RecursionNote
	for _, scc := range tarjanSCC(graph) {
		if len(scc) == 1 && !hasSelfLoop(scc[0], graph) {
			continue
		}
		slices.Sort(scc)
		var path []string
		if len(scc) == 1 {
			path = []string{scc[0], scc[0]}
		} else {
			path = reconstructCyclePath(scc, graph)
		}
		notes = append(notes, RecursionNote{
			Path:    path,
			Message: fmt.Sprintf("recursive component: %s", strings.Join(path, " → ")),
			Level:   "info",
		})
	}
	slices.SortFunc(notes, func(a, b RecursionNote) int {
		return strings.Compare(a.Path[0], b.Path[0])
	})
	return notes
}

func buildDependencyGraph(preds []string, rules []ir.Rule) dependencyGraph {
	graph := make(dependencyGraph, len(preds))
	for _, p := range preds {
		if graph[p] == nil {
			graph[p] = []edge{}
		}
	}
	for _, r := range rules {
		head := r.Head.Predicate
		if graph[head] == nil {
			graph[head] = []edge{}
		}
		for _, lit := range r.Body {
			if graph[lit.Predicate] == nil {
				graph[lit.Predicate] = []edge{}
			}
			graph[head] = append(graph[head], edge{to: lit.Predicate, negative: lit.Negated()})
		}
	}
	for p, edges := range graph {
		slices.SortFunc(edges, func(a, b edge) int {
			if c := strings.Compare(a.to, b.to); c != 0 {
				return c
			}
			// negative sorts first so a duplicate pair keeps the negative edge
			switch {
			case a.negative && !b.negative:
				return -1
			case !a.negative && b.negative:
				return 1
			}
			return 0
		})
		graph[p] = slices.CompactFunc(edges, func(a, b edge) bool { return a.to == b.to && a.negative == b.negative })
	}
	return graph
}

func sortedNodes(graph dependencyGraph) []string {
	nodes := make([]string, 0, len(graph))
	for n := range graph {
		nodes = append(nodes, n)
	}
	slices.Sort(nodes)
	return nodes
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph dependencyGraph) bool {
	for _, e := range graph[node] {
		if e.to == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Nodes are visited in sorted order, so the component order is stable.
// Components come out in reverse topological order: every component is
// emitted after all components it has edges into.
func tarjanSCC(graph dependencyGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, e := range graph[v] {
			w := e.to
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range sortedNodes(graph) {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// negativeCycleError builds the error for the negative edge from -> to inside scc.
// The path runs from -> to and back to from through the component.
func negativeCycleError(scc []string, from, to string, graph dependencyGraph) *StratificationError {
	cycle := slices.Clone(scc)
	slices.Sort(cycle)

	path := []string{from}
	if from == to {
		path = append(path, from)
	} else {
		back := shortestPath(to, from, cycle, graph)
		path = append(path, back...)
	}
	return &StratificationError{Cycle: cycle, Path: path}
}

// shortestPath returns the nodes from start to goal (both included) using
// only edges inside members. Breadth-first over sorted edges keeps it stable.
func shortestPath(start, goal string, members []string, graph dependencyGraph) []string {
	inSCC := make(map[string]bool, len(members))
	for _, m := range members {
		inSCC[m] = true
	}
	prev := map[string]string{start: ""}
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == goal {
			break
		}
		for _, e := range graph[cur] {
			if !inSCC[e.to] {
				continue
			}
			if _, seen := prev[e.to]; seen {
				continue
			}
			prev[e.to] = cur
			queue = append(queue, e.to)
		}
	}
	if _, ok := prev[goal]; !ok {
		return []string{start, goal}
	}
	var path []string
	for n := goal; n != ""; n = prev[n] {
		path = append(path, n)
		if n == start {
			break
		}
	}
	slices.Reverse(path)
	return path
}

// reconstructCyclePath builds a cycle path from an SCC.
//
// Strategy: start at the first node, follow edges to other members,
// continue until we return to the start node.
func reconstructCyclePath(scc []string, graph dependencyGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	sccSet := make(map[string]bool)
	for _, node := range scc {
		sccSet[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, e := range graph[current] {
			if sccSet[e.to] && (!visited[e.to] || e.to == start) {
				next = e.to
				break
			}
		}

		if next == "" {
			break
		}

		path = append(path, next)

		if next == start {
			break
		}

		current = next
	}

	return path
}
