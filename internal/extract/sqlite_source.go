package extract

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// Field alias lists used to pick values out of arbitrary per-device schemas.
// Mirrors the column vocabularies seen across iOS/Android extraction dumps.
var (
	textFields         = []string{"text", "body", "message", "content", "value", "notes"}
	timestampFields    = []string{"timestamp", "date", "created", "sent", "received", "time", "modified"}
	senderFields       = []string{"sender", "from", "author", "handle", "address", "account", "source"}
	receiverFields     = []string{"receiver", "to", "target", "recipient", "destination"}
	conversationFields = []string{"conversation", "thread", "chat", "dialog", "room"}
	directionFields    = []string{"direction", "is_from_me", "incoming", "outgoing", "type"}
	messageTypeFields  = []string{"type", "message_type", "category", "service"}
)

type sourceTable struct {
	Name    string
	Columns []string
}

func openSourceDB(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&immutable=1", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open source db %s: %w", path, err)
	}
	return db, nil
}

func userTables(ctx context.Context, db *sql.DB) ([]sourceTable, error) {
	rows, err := db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tables := make([]sourceTable, 0, len(names))
	for _, name := range names {
		cols, err := tableColumns(ctx, db, name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, sourceTable{Name: name, Columns: cols})
	}
	return tables, nil
}

func tableColumns(ctx context.Context, db *sql.DB, table string) ([]string, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			dfltValue  sql.NullString
			primaryKey int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dfltValue, &primaryKey); err != nil {
			return nil, err
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

// scanTable reads every row of table as a lowercase-keyed map, with the
// sqlite rowid under "_rowid_".
func scanTable(ctx context.Context, db *sql.DB, table string) ([]map[string]any, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT rowid AS _rowid_, * FROM %s", quoteIdent(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[strings.ToLower(col)] = v
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func looksLikeMessageTable(columns []string) bool {
	lowered := lowerAll(columns)
	return containsAny(lowered, textFields) && containsAny(lowered, timestampFields)
}

func looksLikeContactTable(columns []string) bool {
	lowered := lowerAll(columns)
	nameish := contains(lowered, "contact") || containsAny(lowered, []string{"first", "last", "name"})
	reachable := containsAny(lowered, []string{"phone", "number", "email", "address"})
	return nameish && reachable
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func containsAny(haystack, needles []string) bool {
	for _, n := range needles {
		if contains(haystack, n) {
			return true
		}
	}
	return false
}

// pickFirst returns the first populated value among the aliased keys.
func pickFirst(row map[string]any, keys []string) string {
	for _, key := range keys {
		if v, ok := row[key]; ok {
			s := stringifyValue(v)
			if s != "" {
				return s
			}
		}
	}
	return ""
}

func stringifyValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "1"
		}
		return "0"
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
