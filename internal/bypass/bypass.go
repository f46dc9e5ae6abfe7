// Package bypass implements the emergency bypass audit trail: an
// append-only JSON array of Record entries, written with
// atomic rename-on-write.
package bypass

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"reviewcore/internal/consensus"
	"reviewcore/internal/logging"
)

// ErrEmptyReason is returned when a bypass is requested without a reason.
var ErrEmptyReason = errors.New("bypass reason must not be empty")

// Record is one emergency bypass entry. RecordID is independent of TaskID
// since the same task can be bypassed more than once across retries.
type Record struct {
	RecordID     string    `json:"record_id"`
	TaskID       string    `json:"task_id"`
	Reason       string    `json:"reason"`
	BypassedBy   string    `json:"bypassed_by"`
	CSAtBypass   float64   `json:"cs_at_bypass"`
	TierAtBypass string    `json:"tier_at_bypass"`
	Timestamp    time.Time `json:"timestamp"`
}

// Create appends a new bypass record to auditPath's JSON array, atomically.
// reason must be non-empty. csResult may be nil if no consensus score was
// computed before the bypass was requested.
func Create(auditPath, taskID, reason, bypassedBy string, csResult *consensus.Result) (Record, error) {
	if reason == "" {
		return Record{}, ErrEmptyReason
	}

	record := Record{
		RecordID:   uuid.NewString(),
		TaskID:     taskID,
		Reason:     reason,
		BypassedBy: bypassedBy,
		Timestamp:  time.Now().UTC(),
	}
	if csResult != nil {
		record.CSAtBypass = csResult.CS
		record.TierAtBypass = string(csResult.Tier)
	}

	trail, err := LoadAuditTrail(auditPath)
	if err != nil {
		return Record{}, err
	}
	trail = append(trail, record)

	if err := writeAtomic(auditPath, trail); err != nil {
		return Record{}, err
	}

	logging.Bypass("recorded emergency bypass for task %s: %s", taskID, reason)
	return record, nil
}

// LoadAuditTrail returns every recorded bypass, in time order. A missing
// file is treated as an empty trail, not an error.
func LoadAuditTrail(auditPath string) ([]Record, error) {
	data, err := os.ReadFile(auditPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read audit trail: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var trail []Record
	if err := json.Unmarshal(data, &trail); err != nil {
		logging.BypassWarn("audit trail at %s is malformed, treating as empty: %v", auditPath, err)
		return nil, nil
	}
	return trail, nil
}

// IsBypassed reports whether taskID has any recorded bypass entry.
func IsBypassed(auditPath, taskID string) (bool, error) {
	trail, err := LoadAuditTrail(auditPath)
	if err != nil {
		return false, err
	}
	for _, r := range trail {
		if r.TaskID == taskID {
			return true, nil
		}
	}
	return false, nil
}

func writeAtomic(path string, trail []Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create audit directory: %w", err)
	}

	data, err := json.MarshalIndent(trail, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal audit trail: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write temp audit file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename temp audit file: %w", err)
	}
	return nil
}
