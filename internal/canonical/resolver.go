package canonical

import (
	"encoding/json"
	"strings"

	"gorm.io/datatypes"

	"github.com/yungbote/ufdrlab-backend/internal/extract"
	"github.com/yungbote/ufdrlab-backend/internal/types"
)

// Resolver merges contact records arriving from different sources into one
// identity per person, keyed by canonical phone, email or name. All lookups
// return the same *types.Contact pointer, so once the batch is persisted the
// database IDs are visible to every message that referenced the actor.
type Resolver struct {
	byIdentifier map[string]*types.Contact
	ordered      []*types.Contact
}

func NewResolver() *Resolver {
	return &Resolver{byIdentifier: map[string]*types.Contact{}}
}

// AddContact registers an extracted contact, merging it into an existing
// identity when a canonical phone or email already matched. Returns nil when
// the record carries no usable identifier.
func (r *Resolver) AddContact(rec extract.ContactRecord) *types.Contact {
	phone := NormalizePhone(rec.PhoneNumber)
	email := NormalizeEmail(rec.Email)
	display := strings.TrimSpace(rec.DisplayName)
	if display == "" {
		display = ComposeDisplayName(rec.GivenName, rec.FamilyName)
	}

	identifiers := identifierList(phone, email, display)
	if len(identifiers) == 0 {
		return nil
	}

	contact := r.existing(identifiers)
	if contact == nil {
		contact = &types.Contact{ExternalKey: identifiers[0]}
		r.ordered = append(r.ordered, contact)
	}

	mergeField(&contact.DisplayName, display)
	mergeField(&contact.GivenName, strings.TrimSpace(rec.GivenName))
	mergeField(&contact.FamilyName, strings.TrimSpace(rec.FamilyName))
	mergeField(&contact.PhoneNumber, phone)
	mergeField(&contact.Email, email)
	mergeField(&contact.Source, rec.Source)
	if len(contact.RawData) == 0 && rec.Raw != nil {
		if raw, err := json.Marshal(rec.Raw); err == nil {
			contact.RawData = datatypes.JSON(raw)
		}
	}

	for _, id := range identifiers {
		r.byIdentifier[id] = contact
	}
	return contact
}

// ResolveActor maps a raw message sender/receiver to a contact, creating a
// stub identity when no extracted contact claimed the canonical identifier.
// Returns nil for values with no identity.
func (r *Resolver) ResolveActor(raw string) *types.Contact {
	canonical := NormalizeActor(raw)
	if canonical == "" {
		return nil
	}
	if contact, ok := r.byIdentifier[canonical]; ok {
		return contact
	}
	if !strings.Contains(canonical, "@") && !hasDigit(canonical) {
		// name-only actors are indexed under the name: prefix
		if contact, ok := r.byIdentifier["name:"+canonical]; ok {
			return contact
		}
	}

	contact := &types.Contact{
		ExternalKey: canonical,
		DisplayName: strings.TrimSpace(raw),
		Source:      "derived:messages",
	}
	switch {
	case strings.Contains(canonical, "@"):
		contact.Email = canonical
	case hasDigit(canonical):
		contact.PhoneNumber = canonical
	default:
		contact.ExternalKey = "name:" + canonical
	}

	r.byIdentifier[contact.ExternalKey] = contact
	if contact.ExternalKey != canonical {
		r.byIdentifier[canonical] = contact
	}
	r.ordered = append(r.ordered, contact)
	return contact
}

// LookupActor is ResolveActor without stub creation.
func (r *Resolver) LookupActor(raw string) *types.Contact {
	canonical := NormalizeActor(raw)
	if canonical == "" {
		return nil
	}
	if contact, ok := r.byIdentifier[canonical]; ok {
		return contact
	}
	return r.byIdentifier["name:"+canonical]
}

// Contacts returns every resolved identity in first-seen order.
func (r *Resolver) Contacts() []*types.Contact {
	return r.ordered
}

func (r *Resolver) existing(identifiers []string) *types.Contact {
	for _, id := range identifiers {
		if contact, ok := r.byIdentifier[id]; ok {
			return contact
		}
	}
	return nil
}

// identifierList orders canonical identifiers by strength: phone, then
// email, then a name-derived fallback key.
func identifierList(phone, email, display string) []string {
	var ids []string
	if phone != "" {
		ids = append(ids, phone)
	}
	if email != "" {
		ids = append(ids, email)
	}
	if display != "" {
		ids = append(ids, "name:"+strings.ToLower(display))
	}
	return ids
}

func mergeField(dst *string, src string) {
	if *dst == "" && src != "" {
		*dst = src
	}
}
