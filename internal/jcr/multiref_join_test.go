package jcr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/refjoin/internal/ir"
)

const (
	relatesToTargetsQuery = "SELECT relationship.[sramp:target] AS target_jcr_uuid\r\n" +
		"FROM [sramp:artifact] AS artifact \r\n" +
		"JOIN [sramp:relationship] AS relationship ON ISCHILDNODE(relationship, artifact) \r\n" +
		"WHERE artifact.[sramp:name] = 'A'\r\n" +
		"AND relationship.[sramp:type] = 'relatesTo'\r\n"

	artifactsBCQuery = "SELECT artifact.[jcr:uuid]\r\n" +
		"FROM [sramp:artifact] AS artifact \r\n" +
		"WHERE artifact.[sramp:name] = 'B'\r\n" +
		"OR artifact.[sramp:name] = 'C'\r\n"

	relatedArtifactsQuery = "SELECT artifact2.* FROM [sramp:artifact] AS artifact1\r\n" +
		"JOIN [sramp:relationship] AS relationship1 ON ISCHILDNODE(relationship1, artifact1)\r\n" +
		"JOIN [sramp:artifact] AS artifact2 ON relationship1.[sramp:target] = artifact2.[jcr:uuid]\r\n" +
		"WHERE artifact1.[sramp:name] = 'A'\r\n" +
		"AND relationship1.[sramp:type] = 'relatesTo'\r\n"
)

// seedArtifacts builds the fixture content in two saves:
//
//	A relates to B and C, and is documented by C
//	B covets C
//	C has no relationships
func seedArtifacts(t *testing.T, repo *Repository) {
	t.Helper()
	session := login(t, repo)

	a := addArtifact(t, session, "artifact-a", "1", "A")
	b := addArtifact(t, session, "artifact-b", "2", "B")
	c := addArtifact(t, session, "artifact-c", "3", "C")
	require.NoError(t, session.Save(t.Context()))

	addRelationship(t, session, a, "relatesTo", "relatesTo", b, c)
	addRelationship(t, session, a, "isDocumentedBy", "isDocumentedBy", c)
	addRelationship(t, session, b, "relationship-b-1", "covets", c)
	require.NoError(t, session.Save(t.Context()))

	session.Logout()
}

func TestMultiReferencePropertyJoin(t *testing.T) {
	ctx := t.Context()

	cfg, err := ReadConfiguration("testdata/inmemory-config.json")
	require.NoError(t, err)
	problems := cfg.Validate()
	require.False(t, problems.HasErrors(), problems.String())

	repo, err := New(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	registerSchema(t, repo)
	seedArtifacts(t, repo)

	session := login(t, repo)

	// Query 1: the relatesTo relationship of A, projecting its targets.
	result := executeQuery(t, session, relatesToTargetsQuery)
	nodes, err := result.Nodes()
	require.NoError(t, err)
	require.Len(t, nodes, 1, "one relationship node, however many targets it has")

	target, err := nodes[0].Property("sramp:target")
	require.NoError(t, err)
	assert.True(t, target.IsMultiple())
	targets := target.Values()
	require.Len(t, targets, 2)

	targetIDs := make(map[string]bool)
	for _, v := range targets {
		targetIDs[v.String()] = true
	}

	// Query 2: B and C by name; their identifiers are exactly the targets.
	result = executeQuery(t, session, artifactsBCQuery)
	nodes, err = result.Nodes()
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	for _, n := range nodes {
		uuid, err := n.Property("jcr:uuid")
		require.NoError(t, err)
		v, err := uuid.Value()
		require.NoError(t, err)
		assert.True(t, targetIDs[v.String()], "%s is not a target of A's relatesTo", v)
	}

	// Query 3: the artifacts A relates to, through the reference join.
	result = executeQuery(t, session, relatedArtifactsQuery)
	nodes, err = result.Nodes()
	require.NoError(t, err)
	assert.Len(t, nodes, 2)
	assert.Equal(t, []string{"/artifact-b", "/artifact-c"}, nodePaths(nodes))
}

func newSeededRepository(t *testing.T) (*Repository, *Session) {
	t.Helper()
	repo := newTestRepository(t)
	registerSchema(t, repo)
	seedArtifacts(t, repo)
	return repo, login(t, repo)
}

func TestProjection_SingleReferenceIsOneElementList(t *testing.T) {
	_, session := newSeededRepository(t)

	result := executeQuery(t, session, "SELECT relationship.[sramp:target] AS target FROM [sramp:artifact] AS artifact "+
		"JOIN [sramp:relationship] AS relationship ON ISCHILDNODE(relationship, artifact) "+
		"WHERE artifact.[sramp:name] = 'A' AND relationship.[sramp:type] = 'isDocumentedBy'")

	require.Equal(t, 1, result.Size())
	row := result.Rows()[0]
	require.True(t, row.Has("target"))
	assert.Len(t, row.Values("target"), 1)

	_, err := row.Value("target")
	assert.True(t, IsCode(err, ErrCodeValueFormat), "a multi-valued column has no single value: %v", err)

	nodes, err := result.Nodes()
	require.NoError(t, err)
	prop, err := nodes[0].Property("sramp:target")
	require.NoError(t, err)
	assert.True(t, prop.IsMultiple())
	assert.Len(t, prop.Values(), 1)
}

func TestProjection_TargetsAreTheReferencedNodes(t *testing.T) {
	_, session := newSeededRepository(t)
	ctx := t.Context()

	b, err := session.Node(ctx, "/artifact-b")
	require.NoError(t, err)
	c, err := session.Node(ctx, "/artifact-c")
	require.NoError(t, err)

	result := executeQuery(t, session, relatesToTargetsQuery)
	require.Equal(t, 1, result.Size())
	got := ir.Strings(result.Rows()[0].Values("target_jcr_uuid"))
	assert.ElementsMatch(t, []string{b.Identifier(), c.Identifier()}, got)

	rel, err := session.Node(ctx, "/artifact-a/relatesTo")
	require.NoError(t, err)
	prop, err := rel.Property("sramp:target")
	require.NoError(t, err)
	resolved, err := prop.Nodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"/artifact-b", "/artifact-c"}, nodePaths(resolved))
}

func TestProjectionAndJoinCardinalityDiffer(t *testing.T) {
	_, session := newSeededRepository(t)

	projected := executeQuery(t, session, relatesToTargetsQuery)
	joined := executeQuery(t, session, relatedArtifactsQuery)

	assert.Equal(t, 1, projected.Size(), "projection keeps the value set on one row")
	assert.Equal(t, 2, joined.Size(), "the join fans out per referenced node")

	for _, row := range joined.Rows() {
		rel, err := row.Node("relationship1")
		require.NoError(t, err)
		assert.Equal(t, "/artifact-a/relatesTo", rel.Path())
	}
}

func TestProjectionIsRepeatable(t *testing.T) {
	_, session := newSeededRepository(t)

	q, err := session.Workspace().QueryManager().CreateQuery(relatesToTargetsQuery, JCRSQL2)
	require.NoError(t, err)

	first, err := q.Execute(t.Context())
	require.NoError(t, err)
	second, err := q.Execute(t.Context())
	require.NoError(t, err)

	require.Equal(t, first.Size(), second.Size())
	assert.Equal(t, first.Rows()[0].Values("target_jcr_uuid"), second.Rows()[0].Values("target_jcr_uuid"))
	assert.Equal(t, first.String(), second.String())
}

func TestNoMatchingRelationshipIsEmptyResult(t *testing.T) {
	_, session := newSeededRepository(t)

	result := executeQuery(t, session, "SELECT relationship.[sramp:target] AS target_jcr_uuid "+
		"FROM [sramp:artifact] AS artifact "+
		"JOIN [sramp:relationship] AS relationship ON ISCHILDNODE(relationship, artifact) "+
		"WHERE artifact.[sramp:name] = 'A' AND relationship.[sramp:type] = 'covets'")

	assert.Equal(t, 0, result.Size())
	nodes, err := result.Nodes()
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestQueriesSeeOnlySavedContent(t *testing.T) {
	repo, session := newSeededRepository(t)
	ctx := t.Context()

	addArtifact(t, session, "artifact-d", "4", "D")
	const byName = "SELECT a.[sramp:name] FROM [sramp:artifact] AS a WHERE a.[sramp:name] = 'D'"

	assert.Equal(t, 0, executeQuery(t, session, byName).Size(), "pending node is not visible")

	other := login(t, repo)
	assert.Equal(t, 0, executeQuery(t, other, byName).Size())

	require.NoError(t, session.Save(ctx))
	assert.Equal(t, 1, executeQuery(t, session, byName).Size())
	assert.Equal(t, 1, executeQuery(t, other, byName).Size())
}
