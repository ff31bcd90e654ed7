package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// appleEpochOffset converts seconds-since-2001-01-01 (the epoch used by many
// iOS databases) to unix time.
const appleEpochOffset = 978307200

// Messages extracts message rows from a sqlite database. Every user table
// whose columns look message-like is scanned; rows without a body and
// timestamp candidate are skipped and counted.
func Messages(ctx context.Context, src SourceFile) ([]Record, Outcome) {
	outcome := Outcome{Source: src.RelPath, Kind: KindMessages}

	db, err := openSourceDB(src.Path)
	if err != nil {
		outcome.Err = err
		return nil, outcome
	}
	defer db.Close()

	tables, err := userTables(ctx, db)
	if err != nil {
		outcome.Err = fmt.Errorf("enumerate tables in %s: %w", src.RelPath, err)
		return nil, outcome
	}

	var records []Record
	for _, table := range tables {
		if !looksLikeMessageTable(table.Columns) {
			continue
		}
		rows, err := scanTable(ctx, db, table.Name)
		if err != nil {
			if outcome.Err == nil {
				outcome.Err = fmt.Errorf("scan %s.%s: %w", src.RelPath, table.Name, err)
			}
			continue
		}
		for _, row := range rows {
			body := pickFirst(row, textFields)
			tsRaw := pickFirst(row, timestampFields)
			if body == "" && tsRaw == "" {
				outcome.Skipped++
				continue
			}
			externalID := fmt.Sprintf("%s:%s:%s", filepath.Base(src.Path), table.Name, stringifyValue(row["_rowid_"]))
			records = append(records, MessageRecord{
				ExternalID:     externalID,
				ConversationID: pickFirst(row, conversationFields),
				Sender:         pickFirst(row, senderFields),
				Receiver:       pickFirst(row, receiverFields),
				Timestamp:      parseTimestamp(tsRaw),
				Body:           body,
				Direction:      pickFirst(row, directionFields),
				MessageType:    pickFirst(row, messageTypeFields),
				Attachments:    stringifyValue(row["attachments"]),
				Source:         src.RelPath,
				Raw:            row,
			})
			outcome.Parsed++
		}
	}
	return records, outcome
}

// parseTimestamp understands ISO-8601 strings, unix seconds, unix millis and
// the Apple epoch. Returns nil when the value cannot be interpreted.
func parseTimestamp(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	if numeric, err := strconv.ParseFloat(raw, 64); err == nil {
		if numeric > 1e12 {
			numeric /= 1000
		}
		if numeric > appleEpochOffset {
			numeric -= appleEpochOffset
		}
		sec := int64(numeric)
		nsec := int64((numeric - float64(sec)) * 1e9)
		t := time.Unix(sec, nsec).UTC()
		return &t
	}

	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
