package tree

import (
	"math"
	"strconv"
	"strings"

	"github.com/evolbioinfo/gotree/io/newick"
	gotree "github.com/evolbioinfo/gotree/tree"

	"github.com/matzehuels/treesearch/pkg/errors"
)

// ParseNewick parses a single Newick tree.
//
// If taxa is nil the taxa set is built from the leaf labels in the order they
// appear. Otherwise every leaf label must belong to taxa and every taxon must
// appear exactly once.
func ParseNewick(s string, taxa *Taxa, rooted bool) (*Tree, error) {
	stmts := splitNewick(s)
	if len(stmts) != 1 {
		return nil, errors.New(errors.ErrCodeInvalidNewick, "expected one tree, found %d", len(stmts))
	}
	return parseStatement(stmts[0], taxa, rooted)
}

// MustParseNewick is like ParseNewick but panics on error. Intended for tests
// and fixed fixtures.
func MustParseNewick(s string, taxa *Taxa, rooted bool) *Tree {
	t, err := ParseNewick(s, taxa, rooted)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseNewickBlock parses every ';'-terminated tree in text. A bracket
// comment directly before a tree, such as [Tree 1], becomes its name.
//
// If taxa is nil the first tree defines the taxa set used for the others.
// The returned taxa set is the one all trees share.
func ParseNewickBlock(text string, taxa *Taxa, rooted bool) ([]*Tree, *Taxa, error) {
	stmts := splitNewick(text)
	if len(stmts) == 0 {
		return nil, nil, errors.New(errors.ErrCodeInvalidNewick, "no trees found")
	}
	trees := make([]*Tree, 0, len(stmts))
	for i, st := range stmts {
		t, err := parseStatement(st, taxa, rooted)
		if err != nil {
			return nil, nil, errors.Wrap(errors.GetCode(err), err, "tree %d", i+1)
		}
		taxa = t.taxa
		trees = append(trees, t)
	}
	return trees, taxa, nil
}

type statement struct {
	name string
	body string
}

// splitNewick splits text into tree statements, stripping bracket comments
// outside quoted labels.
func splitNewick(text string) []statement {
	var (
		out     []statement
		body    strings.Builder
		comment strings.Builder
		name    string
		quoted  bool
		depth   int
	)
	for _, r := range text {
		switch {
		case depth > 0:
			switch r {
			case '[':
				depth++
			case ']':
				depth--
				if depth == 0 && strings.TrimSpace(body.String()) == "" {
					name = strings.TrimSpace(comment.String())
				}
			default:
				comment.WriteRune(r)
			}
		case quoted:
			body.WriteRune(r)
			if r == '\'' {
				quoted = false
			}
		case r == '\'':
			quoted = true
			body.WriteRune(r)
		case r == '[':
			depth = 1
			comment.Reset()
		case r == ';':
			if b := strings.TrimSpace(body.String()); b != "" {
				out = append(out, statement{name: name, body: b + ";"})
			}
			body.Reset()
			name = ""
		default:
			body.WriteRune(r)
		}
	}
	if b := strings.TrimSpace(body.String()); b != "" {
		out = append(out, statement{name: name, body: b + ";"})
	}
	return out
}

func parseStatement(st statement, taxa *Taxa, rooted bool) (*Tree, error) {
	gt, err := newick.NewParser(strings.NewReader(st.body)).Parse()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidNewick, err, "parse newick")
	}

	if taxa == nil {
		var labels []string
		collectLabels(gt.Root(), nil, &labels)
		if taxa, err = NewTaxa(labels); err != nil {
			return nil, err
		}
	}

	b := &converter{taxa: taxa}
	root, err := b.convert(gt.Root(), nil, math.NaN())
	if err != nil {
		return nil, err
	}
	raw := &Tree{taxa: taxa, nodes: b.nodes, root: root, rooted: rooted}
	if err := raw.validate(); err != nil {
		return nil, err
	}
	return assemble(taxa, rooted, st.name, b.nodes, root), nil
}

func childrenOf(n, prev *gotree.Node) ([]*gotree.Node, []*gotree.Edge) {
	var nodes []*gotree.Node
	var edges []*gotree.Edge
	for i, nb := range n.Neigh() {
		if nb == prev {
			continue
		}
		nodes = append(nodes, nb)
		edges = append(edges, n.Edges()[i])
	}
	return nodes, edges
}

func collectLabels(n, prev *gotree.Node, out *[]string) {
	children, _ := childrenOf(n, prev)
	if len(children) == 0 {
		*out = append(*out, unquoteLabel(n.Name()))
		return
	}
	for _, c := range children {
		collectLabels(c, n, out)
	}
}

type converter struct {
	taxa  *Taxa
	nodes []node
}

func (b *converter) convert(n, prev *gotree.Node, length float64) (NodeID, error) {
	id := NodeID(len(b.nodes))
	b.nodes = append(b.nodes, node{parent: NoNode, taxon: -1, length: length})

	children, edges := childrenOf(n, prev)
	if len(children) == 0 {
		label := unquoteLabel(n.Name())
		if label == "" {
			return NoNode, errors.New(errors.ErrCodeInvalidNewick, "leaf without label")
		}
		idx, ok := b.taxa.Index(label)
		if !ok {
			return NoNode, errors.New(errors.ErrCodeInvalidTree, "unknown taxon %q", label)
		}
		b.nodes[id].taxon = idx
		return id, nil
	}

	ids := make([]NodeID, 0, len(children))
	for i, c := range children {
		l := math.NaN()
		if el := edges[i].Length(); el >= 0 {
			l = el
		}
		cid, err := b.convert(c, n, l)
		if err != nil {
			return NoNode, err
		}
		b.nodes[cid].parent = id
		ids = append(ids, cid)
	}
	b.nodes[id].children = ids
	return id, nil
}

// =============================================================================
// Writing
// =============================================================================

// Newick formats the tree as a ';'-terminated Newick string.
func (t *Tree) Newick() string {
	var b strings.Builder
	t.writeNewick(&b, t.root)
	b.WriteByte(';')
	return b.String()
}

func (t *Tree) writeNewick(b *strings.Builder, id NodeID) {
	n := t.nodes[id]
	if n.taxon >= 0 {
		b.WriteString(quoteLabel(t.taxa.Label(n.taxon)))
	} else {
		b.WriteByte('(')
		for i, c := range n.children {
			if i > 0 {
				b.WriteByte(',')
			}
			t.writeNewick(b, c)
		}
		b.WriteByte(')')
	}
	if !math.IsNaN(n.length) {
		b.WriteByte(':')
		b.WriteString(strconv.FormatFloat(n.length, 'g', -1, 64))
	}
}

// unquoteLabel strips the outer quotes of a quoted Newick label and turns
// doubled quotes back into single ones.
func unquoteLabel(l string) string {
	if len(l) < 2 || l[0] != '\'' || l[len(l)-1] != '\'' {
		return l
	}
	return strings.ReplaceAll(l[1:len(l)-1], "''", "'")
}

func quoteLabel(l string) string {
	if !strings.ContainsAny(l, " '[]\t") {
		return l
	}
	return "'" + strings.ReplaceAll(l, "'", "''") + "'"
}
