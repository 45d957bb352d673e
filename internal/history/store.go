// ABOUTME: JSON-file execution history store — the example types.ExecutionSink
// ABOUTME: One file per execution under dataDir, with simple query/cleanup helpers

package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/corewave/orchestrator/pkg/types"
)

// Store persists every ExecutionResult it receives as its own JSON file, and satisfies
// types.ExecutionSink so a Scheduler can be wired directly to it.
type Store struct {
	dataDir    string
	maxEntries int
}

// New creates a Store writing under dataDir, retaining at most maxEntries records.
func New(dataDir string, maxEntries int) *Store {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	return &Store{dataDir: dataDir, maxEntries: maxEntries}
}

// Initialize creates dataDir if it doesn't exist.
func (s *Store) Initialize() error {
	return os.MkdirAll(s.dataDir, 0o755)
}

// record is the on-disk envelope: the ExecutionResult plus the bookkeeping fields the
// result itself doesn't carry (when it was recorded, for cheap chronological listing).
type record struct {
	RecordedAt time.Time            `json:"recordedAt"`
	Result     *types.ExecutionResult `json:"result"`
}

// OnResult implements types.ExecutionSink.
func (s *Store) OnResult(ctx context.Context, result *types.ExecutionResult) error {
	if err := s.Initialize(); err != nil {
		return fmt.Errorf("creating history directory: %w", err)
	}

	rec := &record{RecordedAt: time.Now(), Result: result}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling execution record: %w", err)
	}

	path := s.recordPath(result.ExecutionID)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing execution record: %w", err)
	}

	return s.enforceRetention()
}

func (s *Store) recordPath(executionID string) string {
	return filepath.Join(s.dataDir, executionID+".json")
}

// Get loads one previously recorded execution by id.
func (s *Store) Get(executionID string) (*types.ExecutionResult, error) {
	data, err := os.ReadFile(s.recordPath(executionID))
	if err != nil {
		return nil, fmt.Errorf("reading execution record %q: %w", executionID, err)
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing execution record %q: %w", executionID, err)
	}
	return rec.Result, nil
}

// Query lists recorded executions, optionally filtered by workflow name, newest first.
func (s *Store) Query(workflowName string, limit int) ([]*types.ExecutionResult, error) {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing history directory: %w", err)
	}

	type loaded struct {
		recordedAt time.Time
		result     *types.ExecutionResult
	}
	var all []loaded
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dataDir, entry.Name()))
		if err != nil {
			continue
		}
		var rec record
		if json.Unmarshal(data, &rec) != nil || rec.Result == nil {
			continue
		}
		if workflowName != "" && rec.Result.WorkflowName != workflowName {
			continue
		}
		all = append(all, loaded{recordedAt: rec.RecordedAt, result: rec.Result})
	}

	sort.Slice(all, func(i, j int) bool { return all[i].recordedAt.After(all[j].recordedAt) })

	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	out := make([]*types.ExecutionResult, len(all))
	for i, l := range all {
		out[i] = l.result
	}
	return out, nil
}

// enforceRetention deletes the oldest records once the store exceeds maxEntries.
func (s *Store) enforceRetention() error {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return err
	}
	var jsonEntries []os.DirEntry
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
			jsonEntries = append(jsonEntries, e)
		}
	}
	if len(jsonEntries) <= s.maxEntries {
		return nil
	}

	sort.Slice(jsonEntries, func(i, j int) bool {
		ii, _ := jsonEntries[i].Info()
		jj, _ := jsonEntries[j].Info()
		if ii == nil || jj == nil {
			return false
		}
		return ii.ModTime().Before(jj.ModTime())
	})

	excess := len(jsonEntries) - s.maxEntries
	for _, e := range jsonEntries[:excess] {
		os.Remove(filepath.Join(s.dataDir, e.Name()))
	}
	return nil
}
