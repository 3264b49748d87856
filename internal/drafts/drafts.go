// Package drafts provides the durable per-report local working copy.
// Drafts survive restarts and never require connectivity; they are
// kept separate from the sync queue so editing and draining cannot
// corrupt each other. The whole draft map is persisted as one JSON
// envelope under a single well-known key.
package drafts

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/theonlywayisdigital/donedex-sub004/internal/errors"
	"github.com/theonlywayisdigital/donedex-sub004/internal/kvstore"
	"github.com/theonlywayisdigital/donedex-sub004/internal/logging"
	"github.com/theonlywayisdigital/donedex-sub004/internal/models"
)

// SchemaVersion is the envelope format this build reads and writes.
const SchemaVersion = 1

// CorruptKeySuffix is appended to the drafts key when an unreadable
// blob is preserved for inspection.
const CorruptKeySuffix = ".corrupt"

// envelope is the persisted form of the draft map.
type envelope struct {
	SchemaVersion int                               `json:"schema_version"`
	Revision      int64                             `json:"revision"`
	Drafts        map[string]models.InspectionDraft `json:"drafts"`
}

// Store owns the persisted draft map. Saves are whole-draft
// last-write-wins; field-level merging is the caller's job before
// calling Save, with MergeResponses as the offered strategy.
type Store struct {
	mu    sync.Mutex
	store kvstore.Store

	corrupted bool
	onCorrupt func(err error)
}

// New returns a draft store backed by the given store.
func New(store kvstore.Store) *Store {
	return &Store{store: store}
}

// OnCorruption registers a callback fired once when a corrupt
// persisted blob is detected and the draft map resets to empty.
func (s *Store) OnCorruption(fn func(err error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCorrupt = fn
}

// Corrupted reports whether a corrupt blob was ever detected.
func (s *Store) Corrupted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.corrupted
}

// Save stamps LastUpdated and overwrites the stored draft for its
// report. Version is observed, not enforced: a regression is logged
// and accepted, because the caller owns the monotonicity contract.
func (s *Store) Save(draft models.InspectionDraft) error {
	if draft.ReportID == "" {
		return errors.New(errors.ErrDraftInvalid, "draft missing reportId")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	env, err := s.load()
	if err != nil {
		return err
	}

	if prior, ok := env.Drafts[draft.ReportID]; ok && draft.Version < prior.Version {
		logging.Warn("draft version regression", map[string]interface{}{
			"report_id":      draft.ReportID,
			"stored_version": prior.Version,
			"saved_version":  draft.Version,
		})
	}

	draft.Touch()
	env.Drafts[draft.ReportID] = draft

	if err := s.persist(env); err != nil {
		return err
	}
	logging.Debug("draft saved", map[string]interface{}{
		"report_id": draft.ReportID,
		"version":   draft.Version,
		"responses": len(draft.Responses),
	})
	return nil
}

// Load returns the draft for a report, or nil when none is stored.
func (s *Store) Load(reportID string) (*models.InspectionDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	env, err := s.load()
	if err != nil {
		return nil, err
	}
	draft, ok := env.Drafts[reportID]
	if !ok {
		return nil, nil
	}
	return &draft, nil
}

// Delete removes the draft for a report. Deleting an absent report is
// a no-op.
func (s *Store) Delete(reportID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	env, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := env.Drafts[reportID]; !ok {
		return nil
	}
	delete(env.Drafts, reportID)

	if err := s.persist(env); err != nil {
		return err
	}
	logging.Info("draft deleted", map[string]interface{}{"report_id": reportID})
	return nil
}

// ListAll returns every stored draft ordered by report id.
func (s *Store) ListAll() ([]models.InspectionDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	env, err := s.load()
	if err != nil {
		return nil, err
	}
	drafts := make([]models.InspectionDraft, 0, len(env.Drafts))
	for _, draft := range env.Drafts {
		drafts = append(drafts, draft)
	}
	sort.Slice(drafts, func(i, j int) bool {
		return drafts[i].ReportID < drafts[j].ReportID
	})
	return drafts, nil
}

// MergeResponses merges two response lists field-by-field: for each
// template item the entry with the newer FieldUpdatedAt wins, ties
// going to base. Entries present on only one side are kept. Order
// follows base, with incoming-only entries appended in their own
// order. The store never calls this itself; callers merge before Save.
func MergeResponses(base, incoming []models.ResponseEntry) []models.ResponseEntry {
	merged := make([]models.ResponseEntry, len(base))
	copy(merged, base)

	index := make(map[string]int, len(merged))
	for i, entry := range merged {
		index[entry.TemplateItemID] = i
	}

	for _, entry := range incoming {
		i, ok := index[entry.TemplateItemID]
		if !ok {
			index[entry.TemplateItemID] = len(merged)
			merged = append(merged, entry)
			continue
		}
		if entry.FieldUpdatedAt > merged[i].FieldUpdatedAt {
			logging.Debug("merge: incoming field wins", map[string]interface{}{
				"template_item_id": entry.TemplateItemID,
				"base_updated":     merged[i].FieldUpdatedAt,
				"incoming_updated": entry.FieldUpdatedAt,
			})
			merged[i] = entry
		}
	}
	return merged
}

// load reads the stored envelope. Missing key yields an empty map. A
// corrupt blob is preserved aside and the map resets to empty.
func (s *Store) load() (envelope, error) {
	raw, err := s.store.Get(kvstore.KeyDrafts)
	if err != nil {
		return envelope{}, errors.Wrap(errors.ErrDatabase, "failed to read drafts", err)
	}
	if len(raw) == 0 {
		return emptyEnvelope(), nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.SchemaVersion != 0 {
		if env.SchemaVersion != SchemaVersion {
			return s.recoverCorrupt(raw, errors.New(errors.ErrStoreCorrupted,
				fmt.Sprintf("unsupported drafts schema version %d", env.SchemaVersion)))
		}
		if env.Drafts == nil {
			env.Drafts = make(map[string]models.InspectionDraft)
		}
		return env, nil
	}

	// Blobs written before the envelope format held the draft map
	// directly.
	var legacy map[string]models.InspectionDraft
	if err := json.Unmarshal(raw, &legacy); err == nil && legacy != nil {
		logging.Info("migrated legacy drafts blob", map[string]interface{}{"drafts": len(legacy)})
		return envelope{SchemaVersion: SchemaVersion, Drafts: legacy}, nil
	}

	return s.recoverCorrupt(raw, errors.New(errors.ErrStoreCorrupted, "drafts blob is not valid JSON"))
}

// persist bumps the revision and writes the envelope.
func (s *Store) persist(env envelope) error {
	env.SchemaVersion = SchemaVersion
	env.Revision++
	raw, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(errors.ErrInternal, "failed to encode drafts", err)
	}
	if err := s.store.Set(kvstore.KeyDrafts, raw); err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to persist drafts", err)
	}
	return nil
}

// recoverCorrupt preserves the unreadable blob for inspection, resets
// the persisted map to empty, and fires the corruption callback on
// first detection.
func (s *Store) recoverCorrupt(raw []byte, cause error) (envelope, error) {
	preserveKey := kvstore.KeyDrafts + CorruptKeySuffix
	if err := s.store.Set(preserveKey, raw); err != nil {
		logging.Error("failed to preserve corrupt drafts blob", err)
	}

	env := emptyEnvelope()
	reset, err := json.Marshal(env)
	if err == nil {
		err = s.store.Set(kvstore.KeyDrafts, reset)
	}
	if err != nil {
		return envelope{}, errors.Wrap(errors.ErrDatabase, "failed to reset corrupt drafts", err)
	}

	logging.ErrorWithCode("drafts blob corrupt, reset to empty", string(errors.ErrStoreCorrupted), cause,
		map[string]interface{}{"preserved_under": preserveKey})

	first := !s.corrupted
	s.corrupted = true
	if first && s.onCorrupt != nil {
		// The store lock is held here; the callback may call back in.
		go s.onCorrupt(cause)
	}
	return env, nil
}

func emptyEnvelope() envelope {
	return envelope{
		SchemaVersion: SchemaVersion,
		Drafts:        make(map[string]models.InspectionDraft),
	}
}
