package graph

import (
	"context"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/yungbote/ufdrlab-backend/internal/platform/logger"
	"github.com/yungbote/ufdrlab-backend/internal/platform/neo4jdb"
)

// PersonNode is one canonical actor in the evidence graph.
type PersonNode struct {
	ID     string
	Label  string
	Phone  string
	Email  string
	Source string
}

// MessageRel is one MESSAGED edge. One edge per message id, so replays are
// idempotent.
type MessageRel struct {
	MessageID      string
	SenderID       string
	ReceiverID     string
	Timestamp      string
	Body           string
	ConversationID string
	Source         string
}

// ImageNode is one media item attached to the graph.
type ImageNode struct {
	ID      string
	Path    string
	Caption string
}

// ImageShareRel links media to the person it was exchanged with.
type ImageShareRel struct {
	ImageID  string
	PersonID string
}

// GraphView is the API-facing neighborhood projection.
type GraphView struct {
	Focus string      `json:"focus,omitempty"`
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

type GraphNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Kind  string `json:"kind"`
}

type GraphEdge struct {
	Source    string `json:"source"`
	Target    string `json:"target"`
	Kind      string `json:"kind"`
	MessageID string `json:"message_id,omitempty"`
	ImageID   string `json:"image_id,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

const maxBodySnippet = 280

// EnsureSchema creates uniqueness constraints. Failures are logged and
// tolerated; MERGE keys still converge without them.
func EnsureSchema(ctx context.Context, client *neo4jdb.Client, log *logger.Logger) {
	if client == nil || client.Driver == nil {
		return
	}
	session := client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: client.Database,
	})
	defer session.Close(ctx)

	stmts := []string{
		`CREATE CONSTRAINT person_id_unique IF NOT EXISTS FOR (p:Person) REQUIRE p.id IS UNIQUE`,
		`CREATE CONSTRAINT image_id_unique IF NOT EXISTS FOR (i:Image) REQUIRE i.id IS UNIQUE`,
	}
	for _, q := range stmts {
		if res, err := session.Run(ctx, q, nil); err != nil {
			if log != nil {
				log.Warn("neo4j schema init failed (continuing)", "error", err)
			}
		} else {
			_, _ = res.Consume(ctx)
		}
	}
}

// UpsertPersons merges actor nodes by canonical id. Empty labels do not
// overwrite a previously synced alias.
func UpsertPersons(ctx context.Context, client *neo4jdb.Client, persons []PersonNode) (int, error) {
	if client == nil || client.Driver == nil || len(persons) == 0 {
		return 0, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	nodes := make([]map[string]any, 0, len(persons))
	for _, p := range persons {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			continue
		}
		nodes = append(nodes, map[string]any{
			"id":        id,
			"label":     strings.TrimSpace(p.Label),
			"phone":     p.Phone,
			"email":     p.Email,
			"source":    p.Source,
			"synced_at": now,
		})
	}
	if len(nodes) == 0 {
		return 0, nil
	}

	session := client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: client.Database,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
UNWIND $persons AS p
MERGE (n:Person {id: p.id})
SET n.phone = p.phone,
    n.email = p.email,
    n.source = p.source,
    n.synced_at = p.synced_at
FOREACH (_ IN CASE WHEN p.label <> '' THEN [1] ELSE [] END |
  SET n.label = p.label
)
`, map[string]any{"persons": nodes})
		if err != nil {
			return nil, err
		}
		_, err = res.Consume(ctx)
		return nil, err
	})
	if err != nil {
		return 0, err
	}
	return len(nodes), nil
}

// UpsertMessages merges one MESSAGED edge per message id between sender and
// receiver, creating placeholder Person nodes when a side was never synced.
func UpsertMessages(ctx context.Context, client *neo4jdb.Client, rels []MessageRel) (int, error) {
	if client == nil || client.Driver == nil || len(rels) == 0 {
		return 0, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	edges := make([]map[string]any, 0, len(rels))
	for _, r := range rels {
		msgID := strings.TrimSpace(r.MessageID)
		sender := strings.TrimSpace(r.SenderID)
		receiver := strings.TrimSpace(r.ReceiverID)
		if msgID == "" || sender == "" || receiver == "" {
			continue
		}
		body := r.Body
		if len(body) > maxBodySnippet {
			body = body[:maxBodySnippet]
		}
		edges = append(edges, map[string]any{
			"message_id":      msgID,
			"sender_id":       sender,
			"receiver_id":     receiver,
			"timestamp":       r.Timestamp,
			"body":            body,
			"conversation_id": r.ConversationID,
			"source":          r.Source,
			"synced_at":       now,
		})
	}
	if len(edges) == 0 {
		return 0, nil
	}

	session := client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: client.Database,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
UNWIND $edges AS r
MERGE (a:Person {id: r.sender_id})
MERGE (b:Person {id: r.receiver_id})
MERGE (a)-[e:MESSAGED {message_id: r.message_id}]->(b)
SET e.timestamp = r.timestamp,
    e.body = r.body,
    e.conversation_id = r.conversation_id,
    e.source = r.source,
    e.synced_at = r.synced_at
`, map[string]any{"edges": edges})
		if err != nil {
			return nil, err
		}
		_, err = res.Consume(ctx)
		return nil, err
	})
	if err != nil {
		return 0, err
	}
	return len(edges), nil
}

// UpsertImages merges Image nodes and SHARED_WITH edges linking media to the
// people it is associated with.
func UpsertImages(ctx context.Context, client *neo4jdb.Client, images []ImageNode, shares []ImageShareRel) (int, error) {
	if client == nil || client.Driver == nil || len(images) == 0 {
		return 0, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	nodes := make([]map[string]any, 0, len(images))
	for _, img := range images {
		id := strings.TrimSpace(img.ID)
		if id == "" {
			continue
		}
		nodes = append(nodes, map[string]any{
			"id":        id,
			"path":      img.Path,
			"caption":   img.Caption,
			"synced_at": now,
		})
	}
	if len(nodes) == 0 {
		return 0, nil
	}

	rels := make([]map[string]any, 0, len(shares))
	for _, s := range shares {
		imgID := strings.TrimSpace(s.ImageID)
		personID := strings.TrimSpace(s.PersonID)
		if imgID == "" || personID == "" {
			continue
		}
		rels = append(rels, map[string]any{
			"image_id":  imgID,
			"person_id": personID,
			"synced_at": now,
		})
	}

	session := client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: client.Database,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
UNWIND $images AS i
MERGE (n:Image {id: i.id})
SET n.path = i.path,
    n.caption = i.caption,
    n.synced_at = i.synced_at
`, map[string]any{"images": nodes})
		if err != nil {
			return nil, err
		}
		if _, err := res.Consume(ctx); err != nil {
			return nil, err
		}

		if len(rels) == 0 {
			return nil, nil
		}
		res, err = tx.Run(ctx, `
UNWIND $rels AS r
MATCH (i:Image {id: r.image_id})
MERGE (p:Person {id: r.person_id})
MERGE (i)-[e:SHARED_WITH]->(p)
SET e.synced_at = r.synced_at
`, map[string]any{"rels": rels})
		if err != nil {
			return nil, err
		}
		_, err = res.Consume(ctx)
		return nil, err
	})
	if err != nil {
		return 0, err
	}
	return len(nodes), nil
}

// ClearAll detaches and deletes every node the sync owns.
func ClearAll(ctx context.Context, client *neo4jdb.Client) error {
	if client == nil || client.Driver == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	session := client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: client.Database,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (n) WHERE n:Person OR n:Image DETACH DELETE n`, nil)
		if err != nil {
			return nil, err
		}
		_, err = res.Consume(ctx)
		return nil, err
	})
	return err
}

// FetchGraph projects the neighborhood of the matched person, or a bounded
// sample of the whole graph when term is empty. Matching is by canonical id
// or case-insensitive label substring.
func FetchGraph(ctx context.Context, client *neo4jdb.Client, term string, limit int) (*GraphView, error) {
	if client == nil || client.Driver == nil {
		return &GraphView{Nodes: []GraphNode{}, Edges: []GraphEdge{}}, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if limit <= 0 || limit > 500 {
		limit = 200
	}

	session := client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: client.Database,
	})
	defer session.Close(ctx)

	term = strings.TrimSpace(term)
	view := &GraphView{Nodes: []GraphNode{}, Edges: []GraphEdge{}}

	_, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
MATCH (a:Person)-[e:MESSAGED]->(b:Person)
RETURN a.id AS src_id, coalesce(a.label, a.id) AS src_label,
       b.id AS dst_id, coalesce(b.label, b.id) AS dst_label,
       e.message_id AS message_id, e.timestamp AS timestamp
ORDER BY e.timestamp
LIMIT $limit
`
		params := map[string]any{"limit": limit}
		if term != "" {
			query = `
MATCH (f:Person)
WHERE f.id = $term OR toLower(coalesce(f.label, '')) CONTAINS toLower($term)
WITH f LIMIT 1
MATCH (a:Person)-[e:MESSAGED]->(b:Person)
WHERE a = f OR b = f
RETURN f.id AS focus,
       a.id AS src_id, coalesce(a.label, a.id) AS src_label,
       b.id AS dst_id, coalesce(b.label, b.id) AS dst_label,
       e.message_id AS message_id, e.timestamp AS timestamp
ORDER BY e.timestamp
LIMIT $limit
`
			params["term"] = term
		}

		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}

		seen := map[string]bool{}
		addNode := func(id, label string) {
			if id == "" || seen[id] {
				return
			}
			seen[id] = true
			view.Nodes = append(view.Nodes, GraphNode{ID: id, Label: label, Kind: "person"})
		}

		for res.Next(ctx) {
			rec := res.Record()
			if focus, ok := rec.Get("focus"); ok {
				if s, _ := focus.(string); s != "" {
					view.Focus = s
				}
			}
			srcID, _ := recordString(rec, "src_id")
			srcLabel, _ := recordString(rec, "src_label")
			dstID, _ := recordString(rec, "dst_id")
			dstLabel, _ := recordString(rec, "dst_label")
			messageID, _ := recordString(rec, "message_id")
			timestamp, _ := recordString(rec, "timestamp")

			addNode(srcID, srcLabel)
			addNode(dstID, dstLabel)
			view.Edges = append(view.Edges, GraphEdge{
				Source:    srcID,
				Target:    dstID,
				Kind:      "messaged",
				MessageID: messageID,
				Timestamp: timestamp,
			})
		}
		return nil, res.Err()
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func recordString(rec *neo4j.Record, key string) (string, bool) {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
