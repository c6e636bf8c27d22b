package jcr

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"

	"github.com/roach88/refjoin/internal/ir"
	"github.com/roach88/refjoin/internal/store"
)

// Session is a unit of work on one workspace.
//
// Changes made through a session's nodes stay pending until Save, which
// writes them in one transaction. Queries never see pending changes; they
// read only what has been saved.
//
// Thread-safety: a Session must be used by one goroutine at a time.
type Session struct {
	repo      *Repository
	workspace string
	logger    *slog.Logger

	// items caches every node this session has read or created, by id.
	items map[string]*ir.NodeRecord
	// dirty holds ids of new or modified nodes.
	dirty map[string]bool
	// removed maps removed node ids to their paths.
	removed map[string]string
	closed  bool
}

func newSession(r *Repository, workspace string) *Session {
	return &Session{
		repo:      r,
		workspace: workspace,
		logger:    r.logger.With("workspace", workspace),
		items:     make(map[string]*ir.NodeRecord),
		dirty:     make(map[string]bool),
		removed:   make(map[string]string),
	}
}

// Workspace returns the session's workspace.
func (s *Session) Workspace() *Workspace {
	return &Workspace{session: s}
}

// ValueFactory returns a factory for property values.
func (s *Session) ValueFactory() *ValueFactory {
	return &ValueFactory{session: s}
}

// IsLive reports whether the session is still logged in.
func (s *Session) IsLive() bool {
	return !s.closed && !s.repo.closed.Load()
}

// RootNode returns the root node of the workspace.
func (s *Session) RootNode(ctx context.Context) (*Node, error) {
	return s.Node(ctx, ir.RootPath)
}

// Node returns the node at an absolute path.
func (s *Session) Node(ctx context.Context, path string) (*Node, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	if !strings.HasPrefix(path, "/") {
		return nil, newError(ErrCodePathNotFound, path, "path must be absolute")
	}
	for _, rec := range s.items {
		if rec.Path == path {
			return &Node{session: s, rec: rec}, nil
		}
	}
	if s.isRemoved(path) {
		return nil, newError(ErrCodePathNotFound, path, "no node at path")
	}

	rec, err := s.repo.store.ReadNodeByPath(ctx, s.workspace, path)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(ErrCodePathNotFound, path, "no node at path")
	}
	if err != nil {
		return nil, wrapError(ErrCodeRepository, path, err, "read node")
	}
	return s.adopt(rec), nil
}

// NodeByIdentifier returns the node with the given identifier.
func (s *Session) NodeByIdentifier(ctx context.Context, id string) (*Node, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	if rec, ok := s.items[id]; ok {
		return &Node{session: s, rec: rec}, nil
	}
	if _, ok := s.removed[id]; ok {
		return nil, newError(ErrCodeItemNotFound, "", "no node with identifier %q", id)
	}

	rec, err := s.repo.store.ReadNode(ctx, s.workspace, id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && s.isRemoved(rec.Path)) {
		return nil, newError(ErrCodeItemNotFound, "", "no node with identifier %q", id)
	}
	if err != nil {
		return nil, wrapError(ErrCodeRepository, "", err, "read node %q", id)
	}
	return s.adopt(rec), nil
}

// HasPendingChanges reports whether Save would write anything.
func (s *Session) HasPendingChanges() bool {
	return len(s.dirty) > 0 || len(s.removed) > 0
}

// Save writes every pending change in one transaction.
//
// Before writing, mandatory properties of new and modified nodes are
// checked and every reference value must point at an existing
// referenceable node. On failure nothing is written and the pending
// changes are kept.
func (s *Session) Save(ctx context.Context) error {
	if err := s.check(); err != nil {
		return err
	}
	if !s.HasPendingChanges() {
		return nil
	}

	cs := store.ChangeSet{Workspace: s.workspace}
	for id := range s.dirty {
		rec := s.items[id]
		if err := s.checkMandatory(rec); err != nil {
			return err
		}
		if err := s.checkReferences(ctx, rec); err != nil {
			return err
		}
		cs.Nodes = append(cs.Nodes, *rec)
	}
	// Parents are created before their children, so seq order is also
	// insertion order.
	slices.SortFunc(cs.Nodes, func(a, b ir.NodeRecord) int {
		return cmp.Or(cmp.Compare(a.Seq, b.Seq), strings.Compare(a.ID, b.ID))
	})
	for id := range s.removed {
		cs.Removed = append(cs.Removed, id)
	}
	slices.Sort(cs.Removed)

	if err := s.repo.apply(ctx, cs); err != nil {
		return err
	}

	s.logger.Debug("session saved", "written", len(cs.Nodes), "removed", len(cs.Removed))
	clear(s.dirty)
	clear(s.removed)
	return nil
}

func (s *Session) checkMandatory(rec *ir.NodeRecord) error {
	for _, pd := range s.repo.registry.Properties(rec.PrimaryType) {
		if !pd.Mandatory || isPseudoProperty(pd.Name) {
			continue
		}
		if _, ok := rec.Properties[pd.Name]; !ok {
			return newError(ErrCodeConstraint, rec.Path, "mandatory property %q is not set", pd.Name)
		}
	}
	return nil
}

func (s *Session) checkReferences(ctx context.Context, rec *ir.NodeRecord) error {
	for _, name := range rec.PropertyNames() {
		p := rec.Properties[name]
		if p.Type != ir.TypeReference {
			continue
		}
		for _, v := range p.Values {
			target, err := s.NodeByIdentifier(ctx, v.String())
			if IsCode(err, ErrCodeItemNotFound) {
				return newError(ErrCodeConstraint, rec.Path,
					"property %q references missing node %q", name, v.String())
			}
			if err != nil {
				return err
			}
			if !s.repo.registry.IsReferenceable(target.rec.PrimaryType) {
				return newError(ErrCodeConstraint, rec.Path,
					"property %q references non-referenceable node %s", name, target.rec.Path)
			}
		}
	}
	return nil
}

// Refresh discards pending changes and cached nodes. Node handles obtained
// before Refresh become invalid.
func (s *Session) Refresh() error {
	if err := s.check(); err != nil {
		return err
	}
	clear(s.items)
	clear(s.dirty)
	clear(s.removed)
	return nil
}

// Logout ends the session, discarding pending changes. Later calls on the
// session or its nodes fail with SESSION_CLOSED.
func (s *Session) Logout() {
	if s.closed {
		return
	}
	s.closed = true
	if s.HasPendingChanges() {
		s.logger.Debug("session closed with unsaved changes", "dirty", len(s.dirty), "removed", len(s.removed))
	}
	s.items, s.dirty, s.removed = nil, nil, nil
}

func (s *Session) check() error {
	if s.closed {
		return newError(ErrCodeSessionClosed, "", "session is logged out")
	}
	if s.repo.closed.Load() {
		return newError(ErrCodeSessionClosed, "", "repository is closed")
	}
	return nil
}

// adopt returns a handle for a store record, preferring the session's
// cached copy so pending edits stay visible.
func (s *Session) adopt(rec *ir.NodeRecord) *Node {
	if cached, ok := s.items[rec.ID]; ok {
		return &Node{session: s, rec: cached}
	}
	s.items[rec.ID] = rec
	return &Node{session: s, rec: rec}
}

// isRemoved reports whether path is a removed node or lies below one.
func (s *Session) isRemoved(path string) bool {
	for _, p := range s.removed {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

func isPseudoProperty(name string) bool {
	return name == ir.PropPrimaryType || name == ir.PropUUID
}
