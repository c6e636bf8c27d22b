package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/refjoin/internal/ir"
)

const srampSchema = `
namespace: sramp: "http://s-ramp.org/xmlns/2010/s-ramp#"

nodetype: "sramp:artifact": {
	supertypes: ["nt:base", "mix:referenceable"]
	property: "sramp:uuid": type:  "string"
	property: "sramp:name": type:  "string"
	property: "sramp:model": type: "string"
	property: "sramp:type": type:  "string"
	child: "*": type: "sramp:relationship"
}

nodetype: "sramp:relationship": {
	supertypes: ["nt:base"]
	property: "sramp:type": {type: "string", mandatory: true}
	property: "sramp:target": {type: "reference", multiple: true}
}
`

func TestCompileSramp(t *testing.T) {
	defs, err := Compile([]byte(srampSchema), "sramp.cue")
	require.NoError(t, err)

	require.Len(t, defs.Namespaces, 1)
	assert.Equal(t, "sramp", defs.Namespaces[0].Prefix)
	assert.Equal(t, "http://s-ramp.org/xmlns/2010/s-ramp#", defs.Namespaces[0].URI)

	require.Len(t, defs.NodeTypes, 2)
	artifact := defs.NodeTypes[0]
	assert.Equal(t, "sramp:artifact", artifact.Name)
	assert.Equal(t, []string{"nt:base", "mix:referenceable"}, artifact.Supertypes)

	names := make([]string, len(artifact.Properties))
	for i, pd := range artifact.Properties {
		names[i] = pd.Name
	}
	assert.Equal(t, []string{"sramp:model", "sramp:name", "sramp:type", "sramp:uuid"}, names, "properties sorted by name")
	require.Len(t, artifact.Children, 1)
	assert.Equal(t, ir.ChildDefinition{Name: "*", RequiredType: "sramp:relationship"}, artifact.Children[0])

	rel := defs.NodeTypes[1]
	target, ok := rel.Property("sramp:target")
	require.True(t, ok)
	assert.Equal(t, ir.TypeReference, target.Type)
	assert.True(t, target.Multiple)

	typ, ok := rel.Property("sramp:type")
	require.True(t, ok)
	assert.True(t, typ.Mandatory)

	assert.True(t, defs.Pos("sramp:artifact").IsValid())
}

func TestCompileChildDefaultsToBase(t *testing.T) {
	defs, err := Compile([]byte(`
		nodetype: "folder": child: "*": {}
	`), "folder.cue")
	require.NoError(t, err)
	require.Len(t, defs.NodeTypes, 1)
	assert.Equal(t, ir.NodeTypeBase, defs.NodeTypes[0].Children[0].RequiredType)
}

func TestCompileUnknownValueType(t *testing.T) {
	_, err := Compile([]byte(`
		nodetype: "doc": property: "size": type: "double"
	`), "bad.cue")
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Field, "size")
	assert.Contains(t, ce.Message, "double")
}

func TestCompileSyntaxError(t *testing.T) {
	_, err := Compile([]byte(`nodetype: {`), "broken.cue")
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.True(t, ce.Pos.IsValid())
	assert.Contains(t, err.Error(), "broken.cue")
}

func TestCompileEmptySchema(t *testing.T) {
	_, err := Compile([]byte(`other: 1`), "empty.cue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no namespaces and no node types")
}

func TestCompileNamespacesOnly(t *testing.T) {
	defs, err := Compile([]byte(`namespace: ex: "http://example.com/ns"`), "ns.cue")
	require.NoError(t, err)
	assert.Len(t, defs.Namespaces, 1)
	assert.Empty(t, defs.NodeTypes)
}
