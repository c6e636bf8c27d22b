package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/refjoin/internal/ir"
)

// ChangeSet is everything one session save writes.
//
// Removed node ids are deleted first (their subtrees and values cascade),
// then Nodes are upserted in order. Parents must precede their children.
// Each upserted node's properties replace whatever the store held for it.
type ChangeSet struct {
	Workspace string
	Nodes     []ir.NodeRecord
	Removed   []string
}

// Empty reports whether applying the change set would write nothing.
func (cs ChangeSet) Empty() bool {
	return len(cs.Nodes) == 0 && len(cs.Removed) == 0
}

// Apply writes a change set in a single transaction. Either every change
// is visible afterwards or none is.
func (s *Store) Apply(ctx context.Context, cs ChangeSet) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("apply: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, id := range cs.Removed {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM nodes WHERE id = ? AND workspace = ?`, id, cs.Workspace); err != nil {
			return fmt.Errorf("apply: remove node %s: %w", id, err)
		}
	}

	for i := range cs.Nodes {
		if err := writeNode(ctx, tx, cs.Workspace, &cs.Nodes[i]); err != nil {
			return fmt.Errorf("apply: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("apply: commit: %w", err)
	}
	return nil
}

func writeNode(ctx context.Context, tx *sql.Tx, workspace string, n *ir.NodeRecord) error {
	var parent any
	if n.ParentID != "" {
		parent = n.ParentID
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO nodes (id, workspace, parent_id, name, path, primary_type, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			parent_id = excluded.parent_id,
			name = excluded.name,
			path = excluded.path,
			primary_type = excluded.primary_type
	`, n.ID, workspace, parent, n.Name, n.Path, n.PrimaryType, n.Seq)
	if err != nil {
		return fmt.Errorf("write node %s: %w", n.Path, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM properties WHERE node_id = ?`, n.ID); err != nil {
		return fmt.Errorf("clear properties of %s: %w", n.Path, err)
	}

	for _, name := range n.PropertyNames() {
		p := n.Properties[name]
		_, err := tx.ExecContext(ctx, `
			INSERT INTO properties (node_id, name, type, multiple)
			VALUES (?, ?, ?, ?)
		`, n.ID, name, p.Type.String(), p.Multiple)
		if err != nil {
			return fmt.Errorf("write property %s/%s: %w", n.Path, name, err)
		}
		for ordinal, v := range p.Values {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO property_values (node_id, name, ordinal, value)
				VALUES (?, ?, ?, ?)
			`, n.ID, name, ordinal, v.String())
			if err != nil {
				return fmt.Errorf("write value %s/%s[%d]: %w", n.Path, name, ordinal, err)
			}
		}
	}
	return nil
}

// WriteNamespace records a namespace binding.
// Uses ON CONFLICT(prefix) DO NOTHING - rebinding the same prefix is silently ignored;
// the registry rejects conflicting bindings before they reach the store.
func (s *Store) WriteNamespace(ctx context.Context, ns ir.Namespace) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO namespaces (prefix, uri)
		VALUES (?, ?)
		ON CONFLICT(prefix) DO NOTHING
	`, ns.Prefix, ns.URI)
	if err != nil {
		return fmt.Errorf("write namespace %s: %w", ns.Prefix, err)
	}
	return nil
}

// WriteNodeTypes records node type definitions in one transaction,
// replacing earlier definitions with the same name.
func (s *Store) WriteNodeTypes(ctx context.Context, types []ir.NodeType) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write node types: begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, nt := range types {
		def, err := marshalNodeType(nt)
		if err != nil {
			return fmt.Errorf("write node types: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO node_types (name, definition)
			VALUES (?, ?)
			ON CONFLICT(name) DO UPDATE SET definition = excluded.definition
		`, nt.Name, def)
		if err != nil {
			return fmt.Errorf("write node type %s: %w", nt.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write node types: commit: %w", err)
	}
	return nil
}
