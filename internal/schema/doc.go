// Package schema holds the declarative attribute schema of every layer kind.
//
// A base schema is declared once per kind and inherited along the kind
// hierarchy. Backends extend it by appending backend-specific attributes;
// extensions are scoped to the backend that made them. Nodes are bound to
// the schema of their backend and kind, after which attribute writes with
// undeclared keys fail.
package schema
