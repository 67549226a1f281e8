// internal/realtime/feed_test.go
package realtime

import (
	"testing"

	"prospect-service/internal/domain/prospect"
)

func TestDecodeChange_Insert(t *testing.T) {
	payload := []byte(`{
		"op": "INSERT",
		"new": {
			"id": 42,
			"phone": "555-0042",
			"whatsapp_name": "Ana",
			"requires_attention": true
		}
	}`)

	ev, err := decodeChange(payload)
	if err != nil {
		t.Fatalf("decodeChange failed: %v", err)
	}

	if ev.Op != prospect.OpInsert {
		t.Errorf("expected INSERT, got %s", ev.Op)
	}
	if ev.Old != nil {
		t.Error("insert payload should carry no old row")
	}
	if ev.New.ID != 42 || !ev.New.RequiresAttention {
		t.Errorf("new row decoded wrong: %+v", ev.New)
	}
	if ev.New.DisplayName() != "Ana" {
		t.Errorf("expected display name Ana, got %q", ev.New.DisplayName())
	}
}

func TestDecodeChange_UpdateWithOld(t *testing.T) {
	payload := []byte(`{
		"op": "UPDATE",
		"old": {"id": 42, "phone": "555-0042", "executive_id": 10, "requires_attention": true},
		"new": {"id": 42, "phone": "555-0042", "executive_id": 11, "requires_attention": true}
	}`)

	ev, err := decodeChange(payload)
	if err != nil {
		t.Fatalf("decodeChange failed: %v", err)
	}

	if ev.Old == nil || ev.Old.ExecutiveID == nil || *ev.Old.ExecutiveID != 10 {
		t.Errorf("old row decoded wrong: %+v", ev.Old)
	}
	if ev.New.ExecutiveID == nil || *ev.New.ExecutiveID != 11 {
		t.Errorf("new row decoded wrong: %+v", ev.New)
	}
}

func TestDecodeChange_OldAbsent(t *testing.T) {
	// Replication config may omit the old version entirely.
	payload := []byte(`{"op": "UPDATE", "new": {"id": 1, "phone": "x", "requires_attention": false}}`)

	ev, err := decodeChange(payload)
	if err != nil {
		t.Fatalf("decodeChange failed: %v", err)
	}
	if ev.Old != nil {
		t.Error("expected nil old row")
	}
}

func TestDecodeChange_Rejections(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"malformed json", `{"op": "UPDATE"`},
		{"missing new", `{"op": "UPDATE"}`},
		{"delete op", `{"op": "DELETE", "new": {"id": 1}}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := decodeChange([]byte(tc.payload)); err == nil {
				t.Errorf("expected error for %s", tc.name)
			}
		})
	}
}
