package jcr

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/refjoin/internal/ir"
)

const (
	srampPrefix              = "sramp"
	srampNS                  = "http://s-ramp.org/xmlns/2010/s-ramp#"
	srampPropertiesPrefix    = "sramp-properties"
	srampPropertiesNS        = "http://s-ramp.org/xmlns/2010/s-ramp#properties"
	srampRelationshipsPrefix = "sramp-relationships"
	srampRelationshipsNS     = "http://s-ramp.org/xmlns/2010/s-ramp#relationships"
)

func testConfig() *Configuration {
	cfg, _ := ParseConfiguration([]byte(`name: test`))
	return cfg
}

// newTestRepository starts an in-memory repository that is closed when
// the test ends.
func newTestRepository(t *testing.T, opts ...Option) *Repository {
	t.Helper()
	repo, err := New(t.Context(), testConfig(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func login(t *testing.T, repo *Repository) *Session {
	t.Helper()
	session, err := repo.Login(t.Context(), "")
	require.NoError(t, err)
	t.Cleanup(session.Logout)
	return session
}

// registerSchema registers the S-RAMP namespaces and node types the way a
// deployment does on first start.
func registerSchema(t *testing.T, repo *Repository) {
	t.Helper()
	ctx := t.Context()
	session := login(t, repo)

	nr := session.Workspace().NamespaceRegistry()
	require.NoError(t, nr.RegisterNamespace(ctx, srampPrefix, srampNS))
	require.NoError(t, nr.RegisterNamespace(ctx, srampPropertiesPrefix, srampPropertiesNS))
	require.NoError(t, nr.RegisterNamespace(ctx, srampRelationshipsPrefix, srampRelationshipsNS))

	f, err := os.Open("testdata/sramp.cue")
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, session.Workspace().NodeTypeManager().RegisterNodeTypes(ctx, f, true))

	session.Logout()
}

// addArtifact creates an artifact below the root with the standard
// properties.
func addArtifact(t *testing.T, session *Session, nodeName, uuid, name string) *Node {
	t.Helper()
	root, err := session.RootNode(t.Context())
	require.NoError(t, err)

	n, err := root.AddNode(t.Context(), nodeName, "sramp:artifact")
	require.NoError(t, err)
	require.NoError(t, n.SetProperty("sramp:uuid", ir.String(uuid)))
	require.NoError(t, n.SetProperty("sramp:name", ir.String(name)))
	require.NoError(t, n.SetProperty("sramp:model", ir.String("core")))
	require.NoError(t, n.SetProperty("sramp:type", ir.String("Document")))
	return n
}

// addRelationship creates a relationship child of source targeting the
// given artifacts.
func addRelationship(t *testing.T, session *Session, source *Node, nodeName, relType string, targets ...*Node) *Node {
	t.Helper()
	rel, err := source.AddNode(t.Context(), nodeName, "sramp:relationship")
	require.NoError(t, err)
	require.NoError(t, rel.SetProperty("sramp:type", ir.String(relType)))

	vf := session.ValueFactory()
	refs := make([]ir.Value, len(targets))
	for i, target := range targets {
		refs[i], err = vf.Reference(target)
		require.NoError(t, err)
	}
	require.NoError(t, rel.SetProperty("sramp:target", refs...))
	return rel
}

func executeQuery(t *testing.T, session *Session, statement string) *QueryResult {
	t.Helper()
	q, err := session.Workspace().QueryManager().CreateQuery(statement, JCRSQL2)
	require.NoError(t, err)
	result, err := q.Execute(t.Context())
	require.NoError(t, err)
	return result
}

func nodePaths(nodes []*Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Path()
	}
	return out
}
