package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/refjoin/internal/ir"
)

const testWorkspace = "default"

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestNode creates a node record with no properties.
func createTestNode(id, parentID, path, primaryType string, seq int64) ir.NodeRecord {
	name := ""
	if path != "/" {
		name = path[lastSlash(path)+1:]
	}
	return ir.NodeRecord{
		ID:          id,
		Workspace:   testWorkspace,
		ParentID:    parentID,
		Name:        name,
		Path:        path,
		PrimaryType: primaryType,
		Seq:         seq,
		Properties:  map[string]ir.PropertyRecord{},
	}
}

func lastSlash(path string) int {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return i
		}
	}
	return -1
}

// withProperty adds a property to a test node and returns it.
func withProperty(n ir.NodeRecord, name string, typ ir.ValueType, multiple bool, values ...ir.Value) ir.NodeRecord {
	if values == nil {
		values = []ir.Value{}
	}
	n.Properties[name] = ir.PropertyRecord{Name: name, Type: typ, Multiple: multiple, Values: values}
	return n
}

// seedTree writes a root, one artifact and one relationship below it.
func seedTree(t *testing.T, s *Store) {
	t.Helper()
	root := createTestNode("root", "", "/", "nt:unstructured", 1)
	a := withProperty(createTestNode("a", "root", "/artifact-a", "sramp:artifact", 2),
		"sramp:name", ir.TypeString, false, ir.String("A"))
	rel := withProperty(createTestNode("rel", "a", "/artifact-a/relatesTo", "sramp:relationship", 3),
		"sramp:target", ir.TypeReference, true, ir.Reference("b"), ir.Reference("c"))

	err := s.Apply(t.Context(), ChangeSet{Workspace: testWorkspace, Nodes: []ir.NodeRecord{root, a, rel}})
	if err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}
}
