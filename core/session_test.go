package core

import "testing"

func TestSession_MergeMetadataAndClone(t *testing.T) {
	s := NewSession("s1", "campaign", map[string]any{"campaign_id": "c1"})
	if !s.Active() || s.Context != "campaign" {
		t.Fatalf("unexpected new session: %+v", s)
	}

	before := s.LastUpdated
	s.MergeMetadata(map[string]any{"campaign_name": "Q3"})
	if s.Metadata["campaign_id"] != "c1" || s.Metadata["campaign_name"] != "Q3" {
		t.Fatalf("metadata not merged: %+v", s.Metadata)
	}
	if s.LastUpdated.Before(before) {
		t.Error("LastUpdated should not go backwards")
	}

	clone := s.Clone()
	if clone == s {
		t.Error("Clone should be a different pointer")
	}
	clone.Metadata["campaign_id"] = "changed"
	if s.Metadata["campaign_id"] != "c1" {
		t.Error("original should not see clone's metadata change")
	}
}

func TestSession_AddEventCopiedOnClone(t *testing.T) {
	s := NewSession("s2", "enrichment", nil)
	s.AddEvent(EventSummary{Kind: KindLeadEnriched, DataKeys: []string{"lead"}})
	s.AddEvent(EventSummary{Kind: KindEmailGenerated})

	clone := s.Clone()
	if len(clone.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(clone.Events))
	}
	clone.Events[0].DataKeys[0] = "changed"
	if s.Events[0].DataKeys[0] != "lead" {
		t.Error("events should be deep copied")
	}
}

func TestSession_EndIsIdempotent(t *testing.T) {
	s := NewSession("s3", "lookalike", nil)
	s.End()
	if s.Active() || s.EndedAt == nil {
		t.Fatalf("expected ended session: %+v", s)
	}
	first := *s.EndedAt
	s.End()
	if !s.EndedAt.Equal(first) {
		t.Error("second End should keep the original EndedAt")
	}
}

func TestRecord_StampedAndClone(t *testing.T) {
	r := Record{"name": "A", "tags": []any{"x"}, "nested": map[string]any{"k": "v"}}
	stamped := r.Stamped(timeFixture())
	if _, ok := r[StoredAtKey]; ok {
		t.Fatal("Stamped must not mutate the receiver")
	}
	at, ok := stamped.StoredAt()
	if !ok || !at.Equal(timeFixture()) {
		t.Fatalf("unexpected stored_at: %v %v", at, ok)
	}

	stamped["nested"].(map[string]any)["k"] = "changed"
	stamped["tags"].([]any)[0] = "y"
	if r["nested"].(map[string]any)["k"] != "v" || r["tags"].([]any)[0] != "x" {
		t.Fatal("nested values should be deep copied")
	}

	var nilRecord Record
	if nilRecord.Clone() != nil {
		t.Error("clone of nil should be nil")
	}
	if nilRecord.Stamped(timeFixture())[StoredAtKey] == nil {
		t.Error("stamping nil should produce a record")
	}
}
