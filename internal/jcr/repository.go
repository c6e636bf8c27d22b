package jcr

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/roach88/refjoin/internal/engine"
	"github.com/roach88/refjoin/internal/ir"
	"github.com/roach88/refjoin/internal/schema"
	"github.com/roach88/refjoin/internal/store"
)

// Repository is a content repository backed by one SQLite store.
//
// Thread-safety: Repository is safe for concurrent use. Sessions are not;
// give each goroutine its own session.
type Repository struct {
	cfg      *Configuration
	store    *store.Store
	registry *schema.Registry
	engine   *engine.Engine
	order    *creationOrder
	ids      IdentifierGenerator
	logger   *slog.Logger

	// mu serializes saves and schema registration.
	mu         sync.Mutex
	workspaces map[string]bool
	closed     atomic.Bool
}

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Repository) {
		r.logger = l
	}
}

// WithIdentifierGenerator sets the node identifier generator.
// Default: UUIDv7Generator.
func WithIdentifierGenerator(g IdentifierGenerator) Option {
	return func(r *Repository) {
		r.ids = g
	}
}

// New starts a repository from a configuration.
//
// The configuration is validated first; any error-level problem fails
// startup. Persisted namespaces and node types are restored, configured
// schema files are registered (updating existing types) and each
// configured workspace gets a root node if it has none.
func New(ctx context.Context, cfg *Configuration, opts ...Option) (*Repository, error) {
	if problems := cfg.Validate(); problems.HasErrors() {
		return nil, newError(ErrCodeConfiguration, "", "invalid configuration:\n%s", problems)
	}

	r := &Repository{
		cfg:        cfg,
		registry:   schema.NewRegistry(),
		ids:        UUIDv7Generator{},
		logger:     slog.Default(),
		workspaces: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}

	path := store.MemoryPath
	if cfg.Storage.Type == StorageFile {
		path = cfg.Storage.Path
	}
	s, err := store.Open(path)
	if err != nil {
		return nil, wrapError(ErrCodeRepository, "", err, "open store")
	}
	r.store = s

	if err := r.start(ctx); err != nil {
		s.Close()
		return nil, err
	}

	r.engine = engine.New(s, r.registry, engine.WithLogger(r.logger))
	r.logger.Info("repository started",
		"name", cfg.Name,
		"storage", cfg.Storage.Type,
		"workspaces", cfg.WorkspaceNames(),
		"node_types", len(r.registry.CustomNodeTypes()))
	return r, nil
}

func (r *Repository) start(ctx context.Context) error {
	namespaces, err := r.store.ReadNamespaces(ctx)
	if err != nil {
		return wrapError(ErrCodeRepository, "", err, "restore namespaces")
	}
	types, err := r.store.ReadNodeTypes(ctx)
	if err != nil {
		return wrapError(ErrCodeRepository, "", err, "restore node types")
	}
	r.registry.Restore(namespaces, types)

	seq, err := r.store.MaxSeq(ctx)
	if err != nil {
		return wrapError(ErrCodeRepository, "", err, "read creation order")
	}
	r.order = resumeCreationOrder(seq)

	for _, p := range r.cfg.NodeTypePaths() {
		src, err := os.ReadFile(p)
		if err != nil {
			return wrapError(ErrCodeConfiguration, p, err, "read node type schema")
		}
		if err := r.registerNodeTypes(ctx, src, p, true); err != nil {
			return err
		}
	}

	for _, ws := range r.cfg.WorkspaceNames() {
		if err := r.ensureRoot(ctx, ws); err != nil {
			return err
		}
		r.workspaces[ws] = true
	}
	return nil
}

// ensureRoot creates the root node of a workspace if it does not exist.
func (r *Repository) ensureRoot(ctx context.Context, workspace string) error {
	_, err := r.store.ReadNodeByPath(ctx, workspace, ir.RootPath)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return wrapError(ErrCodeRepository, ir.RootPath, err, "read root of workspace %q", workspace)
	}

	root := ir.NodeRecord{
		ID:          r.ids.Generate(),
		Workspace:   workspace,
		Path:        ir.RootPath,
		PrimaryType: ir.NodeTypeUnstructured,
		Seq:         r.order.stamp(),
		Properties:  map[string]ir.PropertyRecord{},
	}
	if err := r.apply(ctx, store.ChangeSet{Workspace: workspace, Nodes: []ir.NodeRecord{root}}); err != nil {
		return err
	}
	r.logger.Debug("workspace created", "workspace", workspace, "root", root.ID)
	return nil
}

// Login opens a session on a workspace. An empty name selects the default
// workspace.
func (r *Repository) Login(ctx context.Context, workspace string) (*Session, error) {
	if r.closed.Load() {
		return nil, newError(ErrCodeRepository, "", "repository is closed")
	}
	if workspace == "" {
		workspace = r.cfg.Workspaces.Default
	}
	if !r.workspaces[workspace] {
		return nil, newError(ErrCodeNoSuchWorkspace, "", "workspace %q does not exist", workspace)
	}
	if err := ctx.Err(); err != nil {
		return nil, wrapError(ErrCodeRepository, "", err, "login")
	}

	r.logger.Debug("session opened", "workspace", workspace)
	return newSession(r, workspace), nil
}

// Name returns the configured repository name.
func (r *Repository) Name() string {
	return r.cfg.Name
}

// Close releases the store. Open sessions become unusable.
// Safe to call more than once.
func (r *Repository) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	if err := r.store.Close(); err != nil {
		return wrapError(ErrCodeRepository, "", err, "close store")
	}
	r.logger.Debug("repository closed", "name", r.cfg.Name)
	return nil
}

// apply writes one change set atomically.
func (r *Repository) apply(ctx context.Context, cs store.ChangeSet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed.Load() {
		return newError(ErrCodeRepository, "", "repository is closed")
	}
	if err := r.store.Apply(ctx, cs); err != nil {
		return wrapError(ErrCodeRepository, "", err, "save")
	}
	return nil
}

func (r *Repository) registerNamespace(ctx context.Context, prefix, uri string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.registry.RegisterNamespace(prefix, uri); err != nil {
		return wrapError(ErrCodeNamespace, "", err, "register namespace %q", prefix)
	}
	if err := r.store.WriteNamespace(ctx, ir.Namespace{Prefix: prefix, URI: uri}); err != nil {
		return wrapError(ErrCodeRepository, "", err, "persist namespace %q", prefix)
	}
	r.logger.Debug("namespace registered", "prefix", prefix, "uri", uri)
	return nil
}

// registerNodeTypes compiles a CUE schema, registers it and persists the
// resulting namespaces and node types.
func (r *Repository) registerNodeTypes(ctx context.Context, src []byte, filename string, allowUpdate bool) error {
	defs, err := schema.Compile(src, filename)
	if err != nil {
		return wrapError(ErrCodeNodeTypeDefinition, filename, err, "compile node types")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.registry.RegisterNodeTypes(defs, allowUpdate); err != nil {
		return wrapError(ErrCodeNodeTypeDefinition, filename, err, "register node types")
	}
	for _, ns := range defs.Namespaces {
		if err := r.store.WriteNamespace(ctx, ns); err != nil {
			return wrapError(ErrCodeRepository, filename, err, "persist namespace %q", ns.Prefix)
		}
	}
	if err := r.store.WriteNodeTypes(ctx, defs.NodeTypes); err != nil {
		return wrapError(ErrCodeRepository, filename, err, "persist node types")
	}

	names := make([]string, len(defs.NodeTypes))
	for i, nt := range defs.NodeTypes {
		names[i] = nt.Name
	}
	r.logger.Debug("node types registered", "source", filename, "types", names, "allow_update", allowUpdate)
	return nil
}
