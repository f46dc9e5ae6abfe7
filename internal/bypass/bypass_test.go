package bypass

import (
	"path/filepath"
	"testing"

	"reviewcore/internal/consensus"
)

func TestCreateRejectsEmptyReason(t *testing.T) {
	path := filepath.Join(t.TempDir(), "BYPASS-AUDIT.json")
	if _, err := Create(path, "task-1", "", "alice", nil); err != ErrEmptyReason {
		t.Fatalf("expected ErrEmptyReason, got %v", err)
	}
}

func TestCreateAppendsAndLoadAuditTrail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "BYPASS-AUDIT.json")
	cs := consensus.Result{CS: 7.2, Tier: consensus.TierImportant}

	if _, err := Create(path, "task-1", "urgent hotfix", "alice", &cs); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := Create(path, "task-2", "flaky reviewer outage", "bob", nil); err != nil {
		t.Fatalf("create: %v", err)
	}

	trail, err := LoadAuditTrail(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(trail) != 2 {
		t.Fatalf("expected 2 records, got %d", len(trail))
	}
	if trail[0].TaskID != "task-1" || trail[0].CSAtBypass != 7.2 {
		t.Fatalf("unexpected first record: %+v", trail[0])
	}
	if trail[0].RecordID == "" || trail[1].RecordID == "" || trail[0].RecordID == trail[1].RecordID {
		t.Fatalf("expected distinct non-empty record ids, got %q and %q", trail[0].RecordID, trail[1].RecordID)
	}
}

func TestIsBypassed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "BYPASS-AUDIT.json")
	if _, err := Create(path, "task-1", "urgent hotfix", "alice", nil); err != nil {
		t.Fatalf("create: %v", err)
	}

	bypassed, err := IsBypassed(path, "task-1")
	if err != nil || !bypassed {
		t.Fatalf("expected task-1 bypassed, got %v err=%v", bypassed, err)
	}

	bypassed, err = IsBypassed(path, "task-2")
	if err != nil || bypassed {
		t.Fatalf("expected task-2 not bypassed, got %v err=%v", bypassed, err)
	}
}

func TestLoadAuditTrailMissingFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.json")
	trail, err := LoadAuditTrail(path)
	if err != nil || trail != nil {
		t.Fatalf("expected nil trail and no error, got %v %v", trail, err)
	}
}
