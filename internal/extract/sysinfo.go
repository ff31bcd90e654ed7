package extract

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// SystemInfo flattens an XML property list into dotted key/value facts.
// Nested dicts become "a.b.c" keys and arrays become "a[0]" keys, so every
// leaf value is queryable as one row. Category is the plist file stem.
func SystemInfo(ctx context.Context, src SourceFile) ([]Record, Outcome) {
	outcome := Outcome{Source: src.RelPath, Kind: KindSystemInfo}

	f, err := os.Open(src.Path)
	if err != nil {
		outcome.Err = err
		return nil, outcome
	}
	defer f.Close()

	root, err := parsePlist(f)
	if err != nil {
		outcome.Err = fmt.Errorf("parse plist %s: %w", src.RelPath, err)
		return nil, outcome
	}

	category := strings.TrimSuffix(filepath.Base(src.Path), filepath.Ext(src.Path))
	var records []Record
	flattenPlist("", root, func(key, value string) {
		if key == "" {
			return
		}
		records = append(records, SystemInfoRecord{
			Category: category,
			Key:      key,
			Value:    value,
			Source:   src.RelPath,
		})
		outcome.Parsed++
	})
	return records, outcome
}

// parsePlist decodes the XML plist subset produced by device extractions:
// dict, array, string, integer, real, date, data, true, false.
func parsePlist(r io.Reader) (any, error) {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local != "plist" {
			return parsePlistValue(dec, start)
		}
		// descend into the single root value
		for {
			inner, err := dec.Token()
			if err != nil {
				return nil, err
			}
			if innerStart, ok := inner.(xml.StartElement); ok {
				return parsePlistValue(dec, innerStart)
			}
			if _, ok := inner.(xml.EndElement); ok {
				return nil, fmt.Errorf("plist has no root value")
			}
		}
	}
}

func parsePlistValue(dec *xml.Decoder, start xml.StartElement) (any, error) {
	switch start.Name.Local {
	case "dict":
		return parsePlistDict(dec)
	case "array":
		return parsePlistArray(dec)
	case "true":
		return "true", dec.Skip()
	case "false":
		return "false", dec.Skip()
	case "string", "integer", "real", "date", "data":
		var text string
		if err := dec.DecodeElement(&text, &start); err != nil {
			return nil, err
		}
		return strings.TrimSpace(text), nil
	default:
		return nil, fmt.Errorf("unsupported plist element <%s>", start.Name.Local)
	}
}

func parsePlistDict(dec *xml.Decoder) (map[string]any, error) {
	out := map[string]any{}
	var pendingKey string
	var haveKey bool
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "key" {
				var text string
				if err := dec.DecodeElement(&text, &t); err != nil {
					return nil, err
				}
				pendingKey = strings.TrimSpace(text)
				haveKey = true
				continue
			}
			if !haveKey {
				return nil, fmt.Errorf("plist dict value without preceding <key>")
			}
			val, err := parsePlistValue(dec, t)
			if err != nil {
				return nil, err
			}
			out[pendingKey] = val
			haveKey = false
		case xml.EndElement:
			return out, nil
		}
	}
}

func parsePlistArray(dec *xml.Decoder) ([]any, error) {
	var out []any
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			val, err := parsePlistValue(dec, t)
			if err != nil {
				return nil, err
			}
			out = append(out, val)
		case xml.EndElement:
			return out, nil
		}
	}
}

func flattenPlist(prefix string, value any, emit func(key, value string)) {
	switch v := value.(type) {
	case map[string]any:
		for key, nested := range v {
			nestedPrefix := key
			if prefix != "" {
				nestedPrefix = prefix + "." + key
			}
			flattenPlist(nestedPrefix, nested, emit)
		}
	case []any:
		for i, nested := range v {
			flattenPlist(fmt.Sprintf("%s[%d]", prefix, i), nested, emit)
		}
	case string:
		emit(prefix, v)
	default:
		emit(prefix, fmt.Sprint(v))
	}
}
