package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/mod/semver"
)

// ExportFormatVersion is the version stamped into every export document
// this engine produces, and the newest version Import accepts.
const ExportFormatVersion = "1"

// exportedNode/exportedEdge mirror Node/Edge with the property bag kept as
// json.RawMessage so properties round-trip byte-for-byte rather than being
// re-encoded through Go's map key ordering.
type exportedNode struct {
	ID         int64           `json:"id"`
	Type       string          `json:"type"`
	Properties json.RawMessage `json:"properties"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

type exportedEdge struct {
	ID         int64           `json:"id"`
	Type       string          `json:"type"`
	From       int64           `json:"from"`
	To         int64           `json:"to"`
	Properties json.RawMessage `json:"properties,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// ExportMetadata stamps an export document with its format version and the
// instant it was produced.
type ExportMetadata struct {
	Version    string    `json:"version"`
	ExportedAt time.Time `json:"exportedAt"`
}

// ExportDocument is the top-level JSON shape Export produces and Import
// consumes.
type ExportDocument struct {
	Nodes    []exportedNode `json:"nodes"`
	Edges    []exportedEdge `json:"edges"`
	Metadata ExportMetadata `json:"metadata"`
}

// Export serializes every node and edge to an ExportDocument, stamped with
// ExportFormatVersion and the current time.
func (db *DB) Export(ctx context.Context) (*ExportDocument, error) {
	nodeRows, err := db.sql.QueryContext(ctx,
		`SELECT id, type, properties, created_at, updated_at FROM nodes ORDER BY id`)
	if err != nil {
		return nil, wrapStorageErr("export", err)
	}
	defer nodeRows.Close()

	doc := &ExportDocument{
		Metadata: ExportMetadata{Version: ExportFormatVersion, ExportedAt: time.Now().UTC()},
	}
	for nodeRows.Next() {
		var n exportedNode
		var propJSON string
		var createdAt, updatedAt int64
		if err := nodeRows.Scan(&n.ID, &n.Type, &propJSON, &createdAt, &updatedAt); err != nil {
			return nil, wrapStorageErr("export", err)
		}
		n.Properties = json.RawMessage(propJSON)
		n.CreatedAt = timeFromUnix(createdAt)
		n.UpdatedAt = timeFromUnix(updatedAt)
		doc.Nodes = append(doc.Nodes, n)
	}
	if err := nodeRows.Err(); err != nil {
		return nil, wrapStorageErr("export", err)
	}

	edgeRows, err := db.sql.QueryContext(ctx,
		`SELECT id, type, from_id, to_id, properties, created_at FROM edges ORDER BY id`)
	if err != nil {
		return nil, wrapStorageErr("export", err)
	}
	defer edgeRows.Close()

	for edgeRows.Next() {
		var e exportedEdge
		var propJSON *string
		var createdAt int64
		if err := edgeRows.Scan(&e.ID, &e.Type, &e.From, &e.To, &propJSON, &createdAt); err != nil {
			return nil, wrapStorageErr("export", err)
		}
		if propJSON != nil {
			e.Properties = json.RawMessage(*propJSON)
		}
		e.CreatedAt = timeFromUnix(createdAt)
		doc.Edges = append(doc.Edges, e)
	}
	if err := edgeRows.Err(); err != nil {
		return nil, wrapStorageErr("export", err)
	}

	return doc, nil
}

// checkExportVersionCompatible reports whether an import document's version
// is one this build understands: same major version, no newer than
// ExportFormatVersion. Document versions are bare strings like "1";
// they are normalized to the "v"-prefixed form golang.org/x/mod/semver
// compares.
func checkExportVersionCompatible(docVersion string) error {
	normalized := docVersion
	if !strings.HasPrefix(normalized, "v") {
		normalized = "v" + normalized
	}
	if !semver.IsValid(normalized) {
		return newErr(CodeUnsupportedVersion, "import", fmt.Sprintf("malformed export version %q", docVersion))
	}
	supported := "v" + ExportFormatVersion
	if semver.Major(normalized) != semver.Major(supported) {
		return newErr(CodeUnsupportedVersion, "import",
			fmt.Sprintf("export version %s is incompatible with supported version %s", docVersion, ExportFormatVersion))
	}
	if semver.Compare(normalized, supported) > 0 {
		return newErr(CodeUnsupportedVersion, "import",
			fmt.Sprintf("export version %s is newer than this build supports (%s)", docVersion, ExportFormatVersion))
	}
	return nil
}

// Import loads an ExportDocument, inserting every node and edge inside a
// single transaction so a partially invalid document leaves the database
// unchanged. The document's node IDs are used only to resolve edge
// endpoints during the import; inserted entities get fresh IDs. Import is
// additive: importing the same document twice doubles the graph, and
// callers wanting merge-on-import must run MergeNode/MergeEdge themselves.
func (db *DB) Import(ctx context.Context, doc *ExportDocument) error {
	if err := checkExportVersionCompatible(doc.Metadata.Version); err != nil {
		return err
	}

	return db.Transaction(ctx, func(tx *Tx) error {
		idMap := make(map[int64]int64, len(doc.Nodes))
		for _, n := range doc.Nodes {
			var props Properties
			if len(n.Properties) > 0 {
				if err := json.Unmarshal(n.Properties, &props); err != nil {
					return wrapErr(CodeInvalidProperties, "import", "unmarshal node properties", err)
				}
			}
			created, err := tx.CreateNode(n.Type, props)
			if err != nil {
				return err
			}
			idMap[n.ID] = created.ID
		}

		for _, e := range doc.Edges {
			from, ok := idMap[e.From]
			if !ok {
				return newErr(CodeInvalidID, "import", fmt.Sprintf("edge references unknown node id %d", e.From))
			}
			to, ok := idMap[e.To]
			if !ok {
				return newErr(CodeInvalidID, "import", fmt.Sprintf("edge references unknown node id %d", e.To))
			}
			var props Properties
			if len(e.Properties) > 0 {
				if err := json.Unmarshal(e.Properties, &props); err != nil {
					return wrapErr(CodeInvalidProperties, "import", "unmarshal edge properties", err)
				}
			}
			if _, err := tx.CreateEdge(e.Type, from, to, props); err != nil {
				return err
			}
		}
		return nil
	})
}
