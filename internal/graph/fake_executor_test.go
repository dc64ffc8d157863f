package graph

import (
	"context"
	"fmt"
	"regexp"
	"sync"
)

var (
	nodeMergePattern = regexp.MustCompile(`MERGE \(n:(\w+) \{(\w+): row\.\w+\}\)`)
	edgeMatchPattern = regexp.MustCompile(`MATCH \(a:(\w+) \{(\w+): row\.from\}\)\s+MATCH \(b:(\w+) \{(\w+): row\.to\}\)\s+MERGE \(a\)-\[r:(\w+)\]->\(b\)`)
	nodeCountPattern = regexp.MustCompile(`^MATCH \(n:(\w+)\) RETURN count\(n\)`)
	edgeCountPattern = regexp.MustCompile(`^MATCH \(\)-\[r:(\w+)\]->\(\) RETURN count\(r\)`)
)

type edgeKey struct {
	rel, from, to string
}

// fakeGraph is an in-memory store that understands the statements the
// upserter and counters emit. Each Execute is atomic.
type fakeGraph struct {
	mu    sync.Mutex
	nodes map[string]map[string]map[string]any // label -> key value -> props
	edges map[edgeKey]bool

	statements []Statement
	failOn     int // 1-based call number to fail, 0 never
	failErr    error
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{
		nodes: make(map[string]map[string]map[string]any),
		edges: make(map[edgeKey]bool),
	}
}

func (g *fakeGraph) Execute(ctx context.Context, stmt Statement) ([]Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.statements = append(g.statements, stmt)
	if g.failOn > 0 && len(g.statements) == g.failOn {
		return nil, g.failErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, _ := stmt.Params["rows"].([]any)

	if m := nodeMergePattern.FindStringSubmatch(stmt.Cypher); m != nil {
		label, key := m[1], m[2]
		if g.nodes[label] == nil {
			g.nodes[label] = make(map[string]map[string]any)
		}
		for _, r := range rows {
			row := r.(map[string]any)
			id := fmt.Sprint(row[key])
			props := g.nodes[label][id]
			if props == nil {
				props = make(map[string]any)
				g.nodes[label][id] = props
			}
			for k, v := range row {
				if v == nil {
					delete(props, k)
				} else {
					props[k] = v
				}
			}
		}
		return []Record{{"applied": int64(len(rows))}}, nil
	}

	if m := edgeMatchPattern.FindStringSubmatch(stmt.Cypher); m != nil {
		fromLabel, toLabel, rel := m[1], m[3], m[5]
		var applied int64
		for _, r := range rows {
			row := r.(map[string]any)
			from, to := row["from"].(string), row["to"].(string)
			if g.nodes[fromLabel][from] == nil || g.nodes[toLabel][to] == nil {
				continue
			}
			g.edges[edgeKey{rel, from, to}] = true
			applied++
		}
		return []Record{{"applied": applied}}, nil
	}

	if m := nodeCountPattern.FindStringSubmatch(stmt.Cypher); m != nil {
		return []Record{{"count": int64(len(g.nodes[m[1]]))}}, nil
	}

	if m := edgeCountPattern.FindStringSubmatch(stmt.Cypher); m != nil {
		var n int64
		for k := range g.edges {
			if k.rel == m[1] {
				n++
			}
		}
		return []Record{{"count": n}}, nil
	}

	// schema and anything else succeed with no records
	return nil, nil
}

func (g *fakeGraph) node(label, id string) map[string]any {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.nodes[label][id]
}
