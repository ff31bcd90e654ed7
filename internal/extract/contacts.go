package extract

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Contacts extracts contact rows from a sqlite address book or a contacts
// XML export, depending on the file extension.
func Contacts(ctx context.Context, src SourceFile) ([]Record, Outcome) {
	if strings.EqualFold(filepath.Ext(src.Path), ".xml") {
		return contactsFromXML(src)
	}
	return contactsFromSQLite(ctx, src)
}

func contactsFromSQLite(ctx context.Context, src SourceFile) ([]Record, Outcome) {
	outcome := Outcome{Source: src.RelPath, Kind: KindContacts}

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
		if !looksLikeContactTable(table.Columns) {
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
			rec := ContactRecord{
				ExternalID:  fmt.Sprintf("%s:%s:%s", filepath.Base(src.Path), table.Name, stringifyValue(row["_rowid_"])),
				DisplayName: pickFirst(row, []string{"display_name", "name", "full_name", "fullname"}),
				GivenName:   pickFirst(row, []string{"first", "given", "firstname", "first_name"}),
				FamilyName:  pickFirst(row, []string{"last", "surname", "lastname", "last_name"}),
				PhoneNumber: pickFirst(row, []string{"phone", "phone_number", "number", "mobile", "msisdn", "home", "work"}),
				Email:       pickFirst(row, []string{"email", "email_address", "mail"}),
				Source:      src.RelPath,
				Raw:         row,
			}
			if rec.DisplayName == "" {
				rec.DisplayName = joinNonEmpty(" ",
					pickFirst(row, []string{"first"}),
					pickFirst(row, []string{"middle"}),
					pickFirst(row, []string{"last"}),
				)
			}
			if rec.DisplayName == "" && rec.PhoneNumber == "" && rec.Email == "" {
				outcome.Skipped++
				continue
			}
			records = append(records, rec)
			outcome.Parsed++
		}
	}
	return records, outcome
}

type xmlContact struct {
	DisplayName string `xml:"displayName"`
	FirstName   string `xml:"firstName"`
	LastName    string `xml:"lastName"`
	Phone       string `xml:"phone"`
	Email       string `xml:"email"`
}

type xmlContactList struct {
	Contacts []xmlContact `xml:"contact"`
}

func contactsFromXML(src SourceFile) ([]Record, Outcome) {
	outcome := Outcome{Source: src.RelPath, Kind: KindContacts}

	data, err := os.ReadFile(src.Path)
	if err != nil {
		outcome.Err = err
		return nil, outcome
	}

	var list xmlContactList
	if err := xml.Unmarshal(data, &list); err != nil {
		outcome.Err = fmt.Errorf("parse contacts XML %s: %w", src.RelPath, err)
		return nil, outcome
	}

	var records []Record
	for i, c := range list.Contacts {
		display := strings.TrimSpace(c.DisplayName)
		if display == "" {
			display = joinNonEmpty(" ", c.FirstName, c.LastName)
		}
		if display == "" && c.Phone == "" && c.Email == "" {
			outcome.Skipped++
			continue
		}
		records = append(records, ContactRecord{
			ExternalID:  fmt.Sprintf("%s:%d", filepath.Base(src.Path), i),
			DisplayName: display,
			GivenName:   strings.TrimSpace(c.FirstName),
			FamilyName:  strings.TrimSpace(c.LastName),
			PhoneNumber: strings.TrimSpace(c.Phone),
			Email:       strings.TrimSpace(c.Email),
			Source:      src.RelPath,
		})
		outcome.Parsed++
	}
	return records, outcome
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
