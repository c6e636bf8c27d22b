package store

import (
	"errors"
	"testing"

	"github.com/roach88/refjoin/internal/ir"
)

func TestApply_PersistsTree(t *testing.T) {
	s := createTestStore(t)
	seedTree(t, s)
	ctx := t.Context()

	rel, err := s.ReadNodeByPath(ctx, testWorkspace, "/artifact-a/relatesTo")
	if err != nil {
		t.Fatalf("ReadNodeByPath() failed: %v", err)
	}
	if rel.ParentID != "a" || rel.Name != "relatesTo" || rel.PrimaryType != "sramp:relationship" {
		t.Errorf("unexpected node: %+v", rel)
	}

	target, ok := rel.Properties["sramp:target"]
	if !ok {
		t.Fatal("sramp:target missing")
	}
	if !target.Multiple || target.Type != ir.TypeReference {
		t.Errorf("target = %+v", target)
	}
	got := ir.Strings(target.Values)
	if len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Errorf("target values = %v, want [b c]", got)
	}
}

func TestApply_EmptyMultiValuedPropertyStaysPresent(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()

	root := withProperty(createTestNode("root", "", "/", "nt:unstructured", 1),
		"tags", ir.TypeString, true)
	if err := s.Apply(ctx, ChangeSet{Workspace: testWorkspace, Nodes: []ir.NodeRecord{root}}); err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}

	n, err := s.ReadNode(ctx, testWorkspace, "root")
	if err != nil {
		t.Fatalf("ReadNode() failed: %v", err)
	}
	p, ok := n.Properties["tags"]
	if !ok {
		t.Fatal("empty property should be present")
	}
	if len(p.Values) != 0 {
		t.Errorf("values = %v, want none", p.Values)
	}
}

func TestApply_ReplacesProperties(t *testing.T) {
	s := createTestStore(t)
	seedTree(t, s)
	ctx := t.Context()

	rel := withProperty(createTestNode("rel", "a", "/artifact-a/relatesTo", "sramp:relationship", 3),
		"sramp:target", ir.TypeReference, true, ir.Reference("c"))
	if err := s.Apply(ctx, ChangeSet{Workspace: testWorkspace, Nodes: []ir.NodeRecord{rel}}); err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}

	n, err := s.ReadNode(ctx, testWorkspace, "rel")
	if err != nil {
		t.Fatalf("ReadNode() failed: %v", err)
	}
	if got := ir.Strings(n.Properties["sramp:target"].Values); len(got) != 1 || got[0] != "c" {
		t.Errorf("target values = %v, want [c]", got)
	}
	if n.Seq != 3 {
		t.Errorf("seq changed on update: %d", n.Seq)
	}
}

func TestApply_RemoveCascades(t *testing.T) {
	s := createTestStore(t)
	seedTree(t, s)
	ctx := t.Context()

	if err := s.Apply(ctx, ChangeSet{Workspace: testWorkspace, Removed: []string{"a"}}); err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}

	for _, id := range []string{"a", "rel"} {
		if _, err := s.ReadNode(ctx, testWorkspace, id); !errors.Is(err, ErrNotFound) {
			t.Errorf("ReadNode(%s) error = %v, want ErrNotFound", id, err)
		}
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM property_values").Scan(&count); err != nil {
		t.Fatalf("count values: %v", err)
	}
	if count != 0 {
		t.Errorf("property_values has %d orphan rows", count)
	}
}

func TestApply_AtomicOnFailure(t *testing.T) {
	s := createTestStore(t)
	seedTree(t, s)
	ctx := t.Context()

	b := createTestNode("b", "root", "/artifact-b", "sramp:artifact", 4)
	dup := createTestNode("dup", "root", "/artifact-a", "sramp:artifact", 5) // path taken

	err := s.Apply(ctx, ChangeSet{Workspace: testWorkspace, Nodes: []ir.NodeRecord{b, dup}})
	if err == nil {
		t.Fatal("Apply() should fail on duplicate path")
	}

	if _, err := s.ReadNode(ctx, testWorkspace, "b"); !errors.Is(err, ErrNotFound) {
		t.Errorf("partial change set was committed: %v", err)
	}
}

func TestChangeSet_Empty(t *testing.T) {
	if !(ChangeSet{Workspace: testWorkspace}).Empty() {
		t.Error("change set without nodes should be empty")
	}
	if (ChangeSet{Removed: []string{"x"}}).Empty() {
		t.Error("change set with removals is not empty")
	}
}

func TestWriteNamespaceAndNodeTypes(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()

	ns := ir.Namespace{Prefix: "sramp", URI: "http://s-ramp.org/xmlns/2010/s-ramp#"}
	if err := s.WriteNamespace(ctx, ns); err != nil {
		t.Fatalf("WriteNamespace() failed: %v", err)
	}
	if err := s.WriteNamespace(ctx, ns); err != nil {
		t.Fatalf("WriteNamespace() should be idempotent: %v", err)
	}

	rel := ir.NodeType{
		Name:       "sramp:relationship",
		Supertypes: []string{"nt:base"},
		Properties: []ir.PropertyDefinition{
			{Name: "sramp:target", Type: ir.TypeReference, Multiple: true},
			{Name: "sramp:type", Type: ir.TypeString, Mandatory: true},
		},
	}
	if err := s.WriteNodeTypes(ctx, []ir.NodeType{rel}); err != nil {
		t.Fatalf("WriteNodeTypes() failed: %v", err)
	}
	rel.Properties[1].Mandatory = false
	if err := s.WriteNodeTypes(ctx, []ir.NodeType{rel}); err != nil {
		t.Fatalf("WriteNodeTypes() update failed: %v", err)
	}

	namespaces, err := s.ReadNamespaces(ctx)
	if err != nil {
		t.Fatalf("ReadNamespaces() failed: %v", err)
	}
	if len(namespaces) != 1 || namespaces[0] != ns {
		t.Errorf("namespaces = %v", namespaces)
	}

	types, err := s.ReadNodeTypes(ctx)
	if err != nil {
		t.Fatalf("ReadNodeTypes() failed: %v", err)
	}
	if len(types) != 1 {
		t.Fatalf("got %d node types, want 1", len(types))
	}
	got := types[0]
	if got.Name != rel.Name || len(got.Properties) != 2 || got.Children != nil {
		t.Errorf("node type = %+v", got)
	}
	if got.Properties[0].Type != ir.TypeReference || !got.Properties[0].Multiple {
		t.Errorf("target definition = %+v", got.Properties[0])
	}
	if got.Properties[1].Mandatory {
		t.Error("update did not replace the definition")
	}
}
