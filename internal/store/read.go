package store

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/refjoin/internal/ir"
)

// nodeColumns is the column list scanNode expects.
const nodeColumns = `id, workspace, COALESCE(parent_id, ''), name, path, primary_type, seq`

// maxBatch bounds the number of bound parameters per IN (...) list.
const maxBatch = 500

// ReadNode retrieves a node and its properties by identifier.
// Returns ErrNotFound if the node does not exist in the workspace.
func (s *Store) ReadNode(ctx context.Context, workspace, id string) (*ir.NodeRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+nodeColumns+`
		FROM nodes
		WHERE workspace = ? AND id = ?
	`, workspace, id)
	return s.finishRow(ctx, row)
}

// ReadNodeByPath retrieves a node and its properties by absolute path.
// Returns ErrNotFound if no node has that path.
func (s *Store) ReadNodeByPath(ctx context.Context, workspace, path string) (*ir.NodeRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+nodeColumns+`
		FROM nodes
		WHERE workspace = ? AND path = ?
	`, workspace, path)
	return s.finishRow(ctx, row)
}

func (s *Store) finishRow(ctx context.Context, row *sql.Row) (*ir.NodeRecord, error) {
	n, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadProperties(ctx, []*ir.NodeRecord{n}); err != nil {
		return nil, err
	}
	return n, nil
}

// ReadChildren returns the children of a node in creation order.
// Results are ordered deterministically: ORDER BY seq ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) for a leaf node.
func (s *Store) ReadChildren(ctx context.Context, workspace, parentID string) ([]*ir.NodeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+nodeColumns+`
		FROM nodes
		WHERE workspace = ? AND parent_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, workspace, parentID)
	if err != nil {
		return nil, fmt.Errorf("query children: %w", err)
	}
	nodes, err := scanNodes(rows)
	if err != nil {
		return nil, err
	}
	if err := s.loadProperties(ctx, nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

// ReadNodes loads the given nodes with their properties.
// Results are ordered by seq ASC, id ASC COLLATE BINARY; ids that do not
// exist are skipped.
func (s *Store) ReadNodes(ctx context.Context, workspace string, ids []string) ([]*ir.NodeRecord, error) {
	nodes := []*ir.NodeRecord{}
	for start := 0; start < len(ids); start += maxBatch {
		end := min(start+maxBatch, len(ids))
		batch := ids[start:end]

		args := make([]any, 0, len(batch)+1)
		args = append(args, workspace)
		for _, id := range batch {
			args = append(args, id)
		}

		rows, err := s.db.QueryContext(ctx, `
			SELECT `+nodeColumns+`
			FROM nodes
			WHERE workspace = ? AND id IN (`+placeholders(len(batch))+`)
			ORDER BY seq ASC, id COLLATE BINARY ASC
		`, args...)
		if err != nil {
			return nil, fmt.Errorf("query nodes: %w", err)
		}
		got, err := scanNodes(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, got...)
	}

	if len(ids) > maxBatch {
		sortNodes(nodes)
	}
	if err := s.loadProperties(ctx, nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

// MaxSeq returns the highest node sequence number, or 0 for an empty store.
// Used to resume the creation order when reopening a file-backed repository.
func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM nodes`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("max seq: %w", err)
	}
	return seq, nil
}

// ReadNamespaces returns every persisted namespace ordered by prefix.
func (s *Store) ReadNamespaces(ctx context.Context) ([]ir.Namespace, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT prefix, uri FROM namespaces
		ORDER BY prefix COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query namespaces: %w", err)
	}
	defer rows.Close()

	out := []ir.Namespace{}
	for rows.Next() {
		var ns ir.Namespace
		if err := rows.Scan(&ns.Prefix, &ns.URI); err != nil {
			return nil, fmt.Errorf("scan namespace: %w", err)
		}
		out = append(out, ns)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate namespaces: %w", err)
	}
	return out, nil
}

// ReadNodeTypes returns every persisted node type ordered by name.
func (s *Store) ReadNodeTypes(ctx context.Context) ([]ir.NodeType, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT definition FROM node_types
		ORDER BY name COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query node types: %w", err)
	}
	defer rows.Close()

	out := []ir.NodeType{}
	for rows.Next() {
		var def string
		if err := rows.Scan(&def); err != nil {
			return nil, fmt.Errorf("scan node type: %w", err)
		}
		nt, err := unmarshalNodeType(def)
		if err != nil {
			return nil, err
		}
		out = append(out, nt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate node types: %w", err)
	}
	return out, nil
}

// loadProperties fills Properties for every node in nodes.
func (s *Store) loadProperties(ctx context.Context, nodes []*ir.NodeRecord) error {
	if len(nodes) == 0 {
		return nil
	}
	byID := make(map[string]*ir.NodeRecord, len(nodes))
	for _, n := range nodes {
		n.Properties = make(map[string]ir.PropertyRecord)
		byID[n.ID] = n
	}

	for start := 0; start < len(nodes); start += maxBatch {
		end := min(start+maxBatch, len(nodes))
		args := make([]any, 0, end-start)
		for _, n := range nodes[start:end] {
			args = append(args, n.ID)
		}

		// LEFT JOIN keeps properties that hold no values.
		rows, err := s.db.QueryContext(ctx, `
			SELECT p.node_id, p.name, p.type, p.multiple, v.value
			FROM properties p
			LEFT JOIN property_values v ON v.node_id = p.node_id AND v.name = p.name
			WHERE p.node_id IN (`+placeholders(end-start)+`)
			ORDER BY p.node_id COLLATE BINARY ASC, p.name COLLATE BINARY ASC, v.ordinal ASC
		`, args...)
		if err != nil {
			return fmt.Errorf("query properties: %w", err)
		}
		if err := scanProperties(rows, byID); err != nil {
			return err
		}
	}
	return nil
}

func scanProperties(rows *sql.Rows, byID map[string]*ir.NodeRecord) error {
	defer rows.Close()

	for rows.Next() {
		var (
			nodeID, name, typeName string
			multiple               bool
			raw                    sql.NullString
		)
		if err := rows.Scan(&nodeID, &name, &typeName, &multiple, &raw); err != nil {
			return fmt.Errorf("scan property: %w", err)
		}
		typ, err := ir.ParseValueType(typeName)
		if err != nil {
			return fmt.Errorf("property %s on %s: %w", name, nodeID, err)
		}

		n := byID[nodeID]
		p, ok := n.Properties[name]
		if !ok {
			p = ir.PropertyRecord{Name: name, Type: typ, Multiple: multiple, Values: []ir.Value{}}
		}
		if raw.Valid {
			v, err := ir.ParseValue(typ, raw.String)
			if err != nil {
				return fmt.Errorf("property %s on %s: %w", name, nodeID, err)
			}
			p.Values = append(p.Values, v)
		}
		n.Properties[name] = p
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate properties: %w", err)
	}
	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(row rowScanner) (*ir.NodeRecord, error) {
	var n ir.NodeRecord
	err := row.Scan(&n.ID, &n.Workspace, &n.ParentID, &n.Name, &n.Path, &n.PrimaryType, &n.Seq)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan node: %w", err)
	}
	return &n, nil
}

func scanNodes(rows *sql.Rows) ([]*ir.NodeRecord, error) {
	defer rows.Close()

	nodes := []*ir.NodeRecord{}
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nodes: %w", err)
	}
	return nodes, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// sortNodes restores seq/id order after merging batches.
func sortNodes(nodes []*ir.NodeRecord) {
	slices.SortFunc(nodes, func(a, b *ir.NodeRecord) int {
		if c := cmp.Compare(a.Seq, b.Seq); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
