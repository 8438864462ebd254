package resolve

import (
	"sort"

	"github.com/aonanj/citation-verifier/internal/model"
	"github.com/aonanj/citation-verifier/internal/util"
)

// idOrSupra is the lookup key every full citation registers so that an id.
// or supra inside a string citation binds to the closest full before it.
const idOrSupra = "__ID_OR_SUPRA__"

// Move records one short form reassigned by string-local correction
type Move struct {
	Node    int
	From    string
	To      string
	GroupID string
}

// Assignment is the final bucket assignment after correction
type Assignment struct {
	graph   *Graph
	order   []string
	buckets map[string][]int
	Moves   []Move
}

// Graph returns the phase-one graph the assignment was built from
func (a *Assignment) Graph() *Graph {
	return a.graph
}

// Keys returns the non-empty bucket keys in first-seen order
func (a *Assignment) Keys() []string {
	keys := make([]string, 0, len(a.order))
	for _, k := range a.order {
		if len(a.buckets[k]) > 0 {
			keys = append(keys, k)
		}
	}
	return keys
}

// ResourceKey returns the structured key for a key string
func (a *Assignment) ResourceKey(key string) model.ResourceKey {
	k, _ := a.graph.Key(key)
	return k
}

// Nodes returns a bucket's nodes in document order
func (a *Assignment) Nodes(key string) []Node {
	idx := a.buckets[key]
	nodes := make([]Node, len(idx))
	for i, n := range idx {
		nodes[i] = a.graph.Nodes[n]
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].Token.Loc.Span.Start < nodes[j].Token.Loc.Span.Start
	})
	return nodes
}

// Resource returns the canonical fields bound to a key
func (a *Assignment) Resource(key string) model.Fields {
	return a.graph.Resources[key]
}

// Correct moves short forms inside each string citation to the bucket of
// the closest preceding full citation in the same string that they name.
// Groups with a single citation are left alone. g is not modified.
func Correct(g *Graph) *Assignment {
	order, buckets := g.Buckets()
	a := &Assignment{graph: g, order: order, buckets: buckets}

	where := make([]string, len(g.Nodes))
	groups := make(map[string][]int)
	var groupOrder []string
	for i, n := range g.Nodes {
		where[i] = n.Key.String()
		if n.GroupID == "" {
			continue
		}
		if _, ok := groups[n.GroupID]; !ok {
			groupOrder = append(groupOrder, n.GroupID)
		}
		groups[n.GroupID] = append(groups[n.GroupID], i)
	}

	for _, groupID := range groupOrder {
		members := groups[groupID]
		if len(members) < 2 {
			continue
		}
		sort.SliceStable(members, func(i, j int) bool {
			pi, pj := position(g.Nodes[members[i]]), position(g.Nodes[members[j]])
			if pi != pj {
				return pi < pj
			}
			return g.Nodes[members[i]].Token.Loc.Span.Start < g.Nodes[members[j]].Token.Loc.Span.Start
		})

		local := make(map[string]int)
		for _, n := range members {
			tok := g.Nodes[n].Token
			if tok.Category.IsFull() {
				for _, k := range fullLookupKeys(tok) {
					local[k] = n
				}
				continue
			}

			k := shortLookupKey(tok)
			if k == "" {
				continue
			}
			antecedent, ok := local[k]
			if !ok {
				continue
			}
			target := where[antecedent]
			if target == where[n] {
				continue
			}
			a.move(n, where[n], target, groupID)
			where[n] = target
		}
	}
	return a
}

func (a *Assignment) move(node int, from, to, groupID string) {
	src := a.buckets[from]
	for i, n := range src {
		if n == node {
			a.buckets[from] = append(src[:i:i], src[i+1:]...)
			break
		}
	}
	a.buckets[to] = append(a.buckets[to], node)
	a.Moves = append(a.Moves, Move{Node: node, From: from, To: to, GroupID: groupID})
}

func position(n Node) int {
	if n.Position == nil {
		return 0
	}
	return *n.Position
}

func fullLookupKeys(tok model.Token) []string {
	keys := []string{idOrSupra}
	f := tok.Fields
	switch tok.Kind {
	case model.KindCase:
		if k := FirstParty(f.CaseName); k != "" {
			keys = append(keys, k)
		}
	case model.KindLaw:
		if f.Reporter != "" && f.Section != "" {
			keys = append(keys, util.CleanString(f.Reporter)+"::"+util.CleanString(f.Section))
		}
	case model.KindJournal:
		keys = append(keys, f.Volume+"::"+f.Journal+"::"+f.Page)
	case model.KindSecondary, model.KindOther:
	}
	return keys
}

func shortLookupKey(tok model.Token) string {
	switch tok.Category {
	case model.CategoryShort:
		name := tok.Fields.Plaintiff
		if name == "" {
			name = tok.Fields.AntecedentGuess
		}
		return util.NormalizeForCompare(name)
	case model.CategoryID, model.CategorySupra:
		return idOrSupra
	case model.CategoryFull, model.CategoryReference:
	}
	return ""
}

// Uncorrected returns the provisional buckets of g unchanged
func Uncorrected(g *Graph) *Assignment {
	order, buckets := g.Buckets()
	return &Assignment{graph: g, order: order, buckets: buckets}
}
