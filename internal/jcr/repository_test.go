package jcr

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/refjoin/internal/ir"
)

func TestNew_RejectsInvalidConfiguration(t *testing.T) {
	cfg, err := ParseConfiguration([]byte(`{"storage": {"type": "file"}}`))
	require.NoError(t, err)

	_, err = New(t.Context(), cfg)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeConfiguration))
	assert.Contains(t, err.Error(), "name")
	assert.Contains(t, err.Error(), "storage.path")
}

func TestNew_RegistersConfiguredSchema(t *testing.T) {
	cfg := testConfig()
	cfg.NodeTypes = []string{"testdata/sramp.cue"}

	repo, err := New(t.Context(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	session := login(t, repo)
	ntm := session.Workspace().NodeTypeManager()
	assert.True(t, ntm.HasNodeType("sramp:artifact"))
	assert.True(t, ntm.HasNodeType("sramp:relationship"))

	uri, err := session.Workspace().NamespaceRegistry().URI("sramp")
	require.NoError(t, err)
	assert.Equal(t, srampNS, uri)
}

func TestNew_BadSchemaFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.cue")
	require.NoError(t, os.WriteFile(path, []byte(`nodetype: "x:thing": {}`), 0o644))

	cfg := testConfig()
	cfg.NodeTypes = []string{path}

	_, err := New(t.Context(), cfg)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeNodeTypeDefinition), "got %v", err)
}

func TestLogin(t *testing.T) {
	repo := newTestRepository(t)

	session, err := repo.Login(t.Context(), "")
	require.NoError(t, err)
	assert.Equal(t, DefaultWorkspace, session.Workspace().Name())
	assert.True(t, session.IsLive())

	root, err := session.RootNode(t.Context())
	require.NoError(t, err)
	assert.Equal(t, ir.RootPath, root.Path())
	assert.Equal(t, ir.NodeTypeUnstructured, root.PrimaryType())

	_, err = repo.Login(t.Context(), "missing")
	assert.True(t, IsCode(err, ErrCodeNoSuchWorkspace))
}

func TestLogin_PredefinedWorkspacesAreIsolated(t *testing.T) {
	cfg := testConfig()
	cfg.Workspaces.Predefined = []string{"archive"}
	repo, err := New(t.Context(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	registerSchema(t, repo)

	def := login(t, repo)
	addArtifact(t, def, "artifact-a", "1", "A")
	require.NoError(t, def.Save(t.Context()))

	archive, err := repo.Login(t.Context(), "archive")
	require.NoError(t, err)
	t.Cleanup(archive.Logout)

	_, err = archive.Node(t.Context(), "/artifact-a")
	assert.True(t, IsCode(err, ErrCodePathNotFound))
	assert.Equal(t, 0, executeQuery(t, archive, "SELECT a.* FROM [sramp:artifact] AS a").Size())
}

func TestRepository_ReopenFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repo.db")
	cfg := testConfig()
	cfg.Storage = StorageConfig{Type: StorageFile, Path: path}
	ctx := t.Context()

	repo, err := New(ctx, cfg, WithIdentifierGenerator(NewFixedGenerator("root", "id-a", "id-b")))
	require.NoError(t, err)
	registerSchema(t, repo)
	session := login(t, repo)
	a := addArtifact(t, session, "artifact-a", "1", "A")
	require.NoError(t, session.Save(ctx))
	require.Equal(t, "id-a", a.Identifier())
	session.Logout()
	require.NoError(t, repo.Close())

	repo, err = New(ctx, cfg, WithIdentifierGenerator(NewFixedGenerator("id-b")))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	session = login(t, repo)
	assert.True(t, session.Workspace().NodeTypeManager().HasNodeType("sramp:artifact"), "node types restored")
	uri, err := session.Workspace().NamespaceRegistry().URI(srampPropertiesPrefix)
	require.NoError(t, err)
	assert.Equal(t, srampPropertiesNS, uri)

	a, err = session.Node(ctx, "/artifact-a")
	require.NoError(t, err)
	assert.Equal(t, "id-a", a.Identifier())

	b := addArtifact(t, session, "artifact-b", "2", "B")
	require.NoError(t, session.Save(ctx))

	result := executeQuery(t, session, "SELECT a.[sramp:name] FROM [sramp:artifact] AS a")
	nodes, err := result.Nodes()
	require.NoError(t, err)
	assert.Equal(t, []string{"/artifact-a", "/artifact-b"}, nodePaths(nodes), "creation order resumes after the stored seq")
	assert.Equal(t, "id-b", b.Identifier())
}

func TestRepository_Close(t *testing.T) {
	repo, err := New(t.Context(), testConfig())
	require.NoError(t, err)
	session, err := repo.Login(t.Context(), "")
	require.NoError(t, err)

	require.NoError(t, repo.Close())
	require.NoError(t, repo.Close(), "second close is a no-op")

	assert.False(t, session.IsLive())
	_, err = session.RootNode(t.Context())
	assert.True(t, IsCode(err, ErrCodeSessionClosed))

	_, err = repo.Login(t.Context(), "")
	assert.True(t, IsCode(err, ErrCodeRepository))
}

func TestRepository_LogsStartup(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	repo := newTestRepository(t, WithLogger(logger))
	registerSchema(t, repo)

	out := buf.String()
	assert.True(t, strings.Contains(out, "repository started"), out)
	assert.True(t, strings.Contains(out, "node types registered"), out)
}
