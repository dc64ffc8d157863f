package graph

import (
	"fmt"
	"regexp"
)

var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// NodeSpec names a node label and the property that identifies it.
type NodeSpec struct {
	Label string
	Key   string
}

// EdgeSpec names a relationship and the node specs at either end.
type EdgeSpec struct {
	Label string
	From  NodeSpec
	To    NodeSpec
}

// EdgeRow carries the key values of both endpoints
type EdgeRow struct {
	From string
	To   string
}

func (s NodeSpec) validate() error {
	if !isValidIdentifier(s.Label) {
		return fmt.Errorf("invalid node label: %q (must be alphanumeric + underscore)", s.Label)
	}
	if !isValidIdentifier(s.Key) {
		return fmt.Errorf("invalid key property for %s: %q", s.Label, s.Key)
	}
	return nil
}

func (s EdgeSpec) validate() error {
	if !isValidIdentifier(s.Label) {
		return fmt.Errorf("invalid relationship type: %q (must be alphanumeric + underscore)", s.Label)
	}
	if err := s.From.validate(); err != nil {
		return err
	}
	return s.To.validate()
}

// buildNodeUpsert renders the UNWIND batch upsert for a node label. Every
// row property is SET, so null values clear what a previous run wrote.
func buildNodeUpsert(spec NodeSpec) (string, error) {
	if err := spec.validate(); err != nil {
		return "", err
	}
	return fmt.Sprintf(`UNWIND $rows AS row
MERGE (n:%s {%s: row.%s})
SET n += row
RETURN count(n) AS applied`, spec.Label, spec.Key, spec.Key), nil
}

// buildEdgeUpsert renders the UNWIND batch upsert for a relationship type.
// Rows whose endpoints do not exist match nothing and are skipped.
func buildEdgeUpsert(spec EdgeSpec) (string, error) {
	if err := spec.validate(); err != nil {
		return "", err
	}
	return fmt.Sprintf(`UNWIND $rows AS row
MATCH (a:%s {%s: row.from})
MATCH (b:%s {%s: row.to})
MERGE (a)-[r:%s]->(b)
RETURN count(r) AS applied`,
		spec.From.Label, spec.From.Key,
		spec.To.Label, spec.To.Key,
		spec.Label), nil
}

func buildNodeCount(label string) (string, error) {
	if !isValidIdentifier(label) {
		return "", fmt.Errorf("invalid node label: %q", label)
	}
	return fmt.Sprintf("MATCH (n:%s) RETURN count(n) AS count", label), nil
}

func buildEdgeCount(relType string) (string, error) {
	if !isValidIdentifier(relType) {
		return "", fmt.Errorf("invalid relationship type: %q", relType)
	}
	return fmt.Sprintf("MATCH ()-[r:%s]->() RETURN count(r) AS count", relType), nil
}

// isValidIdentifier reports whether s can be spliced into Cypher as a
// label, relationship type or property name.
func isValidIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}
