package core

import "time"

// EntityKind names one of the record collections held by the state store.
type EntityKind string

const (
	EntityCampaign      EntityKind = "campaign"
	EntityLead          EntityKind = "lead"
	EntityEmailSequence EntityKind = "email_sequence"
	EntityQualification EntityKind = "qualification"
	EntityCompanyIntel  EntityKind = "company_intel"
)

// StoredAtKey is the field the store stamps onto every record it writes.
const StoredAtKey = "stored_at"

// Record is a schemaless entity: any string-keyed map.
type Record map[string]any

// Clone deep-copies nested maps and slices so the copy can diverge freely.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

// Stamped returns a clone carrying StoredAtKey set to now (RFC 3339, UTC).
func (r Record) Stamped(now time.Time) Record {
	out := r.Clone()
	if out == nil {
		out = Record{}
	}
	out[StoredAtKey] = now.UTC().Format(time.RFC3339Nano)
	return out
}

// StoredAt parses the stamp added by Stamped.
func (r Record) StoredAt() (time.Time, bool) {
	s, ok := r[StoredAtKey].(string)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Record:
		return t.Clone()
	case map[string]any:
		return map[string]any(Record(t).Clone())
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	case []Record:
		out := make([]Record, len(t))
		for i, e := range t {
			out[i] = e.Clone()
		}
		return out
	default:
		return v
	}
}
