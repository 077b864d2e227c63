package audit

import (
	"strings"
	"testing"
)

func TestBuildQueryAddsFiltersInOrder(t *testing.T) {
	query, args := buildQuery("tenant-1", Filter{Action: ActionPayslipCalculated, EntityID: "slip-1"})
	if len(args) != 3 {
		t.Fatalf("expected 3 args, got %d", len(args))
	}
	if !strings.Contains(query, "action = $2") || !strings.Contains(query, "entity_id = $3") {
		t.Fatalf("unexpected query: %s", query)
	}
	if strings.Contains(query, "entity_type") && strings.Contains(query, "entity_type = $") {
		t.Fatalf("did not expect entity type filter: %s", query)
	}
}

func TestMarshalOptional(t *testing.T) {
	raw, err := marshalOptional(nil)
	if err != nil || raw != nil {
		t.Fatalf("expected nil payload, got %q %v", raw, err)
	}
	raw, err = marshalOptional(map[string]string{"net": "2035.20"})
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	if string(raw) != `{"net":"2035.20"}` {
		t.Fatalf("unexpected payload %s", raw)
	}
}
