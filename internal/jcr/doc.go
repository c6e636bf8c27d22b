// Package jcr is the repository API: configuration, sessions, nodes and
// properties, namespace and node type registries, and JCR-SQL2 queries.
//
// A typical flow logs in, registers the schema, writes content, saves and
// queries from a fresh session:
//
//	repo, err := jcr.New(ctx, cfg)
//	session, err := repo.Login(ctx, "default")
//	root, err := session.RootNode(ctx)
//	a, err := root.AddNode(ctx, "artifact-a", "sramp:artifact")
//	err = a.SetProperty("sramp:name", ir.String("A"))
//	err = session.Save(ctx)
//	session.Logout()
//
//	session, err = repo.Login(ctx, "default")
//	q, err := session.Workspace().QueryManager().CreateQuery(stmt, jcr.JCRSQL2)
//	result, err := q.Execute(ctx)
//
// Saved content lives in SQLite; a session's pending changes are private
// to it until Save commits them in one transaction.
package jcr
