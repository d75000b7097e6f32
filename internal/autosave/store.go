// Package autosave is the editor-side engine for per-field saves: a local
// mirror of one form's records, mutated optimistically by the coordinator
// and reconciled against persistence outcomes. A field edit is applied
// locally first, persisted asynchronously, and then confirmed, reverted, or
// resolved by a full reload; no value the server never accepted stays
// visible after reconciliation.
package autosave

import (
	"sync"

	"prequal/internal/forms/schema"
	"prequal/internal/records"
	"prequal/internal/submission"
	id "prequal/pkg/domain"
)

// Status tracks one field's save lifecycle.
type Status int

const (
	// StatusIdle is the rest state, including after the saved indicator
	// expires.
	StatusIdle Status = iota
	// StatusPending marks an optimistic value whose save is in flight.
	StatusPending
	// StatusSaved marks a confirmed save, shown transiently.
	StatusSaved
	// StatusFailed marks a save the server rejected or that never landed.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSaved:
		return "saved"
	case StatusFailed:
		return "failed"
	default:
		return "idle"
	}
}

type fieldKey struct {
	record id.RecordID
	field  string
}

type fieldState struct {
	status Status
	// gen increments per edit so a stale async outcome never clobbers a
	// later edit's state.
	gen uint64
}

// Store mirrors one form's records for a single editor. It is mutated only
// by the coordinator and by full reloads.
type Store struct {
	mu         sync.RWMutex
	form       *schema.FormDef
	submission *submission.FormSubmission
	records    map[id.RecordID]*records.Record
	order      []id.RecordID
	fields     map[fieldKey]*fieldState
}

func NewStore(form *schema.FormDef) *Store {
	return &Store{
		form:    form,
		records: make(map[id.RecordID]*records.Record),
		fields:  make(map[fieldKey]*fieldState),
	}
}

// Load replaces the mirror with a fresh snapshot. Pending field states are
// dropped; the snapshot is the new truth.
func (s *Store) Load(data *records.FormData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submission = data.Submission
	s.records = make(map[id.RecordID]*records.Record, len(data.Records))
	s.order = s.order[:0]
	for _, item := range data.Records {
		s.records[item.ID] = item.Record.Clone()
		s.order = append(s.order, item.ID)
	}
	s.fields = make(map[fieldKey]*fieldState)
}

// Locked reports the last-known lock state of the form.
func (s *Store) Locked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.submission != nil && s.submission.IsLocked
}

// Submission returns the last-known submission row, nil before first load.
func (s *Store) Submission() *submission.FormSubmission {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.submission == nil {
		return nil
	}
	return s.submission.Clone()
}

// Record returns a copy of one mirrored record.
func (s *Store) Record(recordID id.RecordID) (*records.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[recordID]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// Records returns copies of all mirrored records in load order.
func (s *Store) Records() []*records.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*records.Record, 0, len(s.order))
	for _, recID := range s.order {
		out = append(out, s.records[recID].Clone())
	}
	return out
}

// FieldStatus reports the save lifecycle state of one field.
func (s *Store) FieldStatus(recordID id.RecordID, field string) Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.fields[fieldKey{record: recordID, field: field}]; ok {
		return st.status
	}
	return StatusIdle
}

// beginEdit applies new field values optimistically and returns the previous
// values for a potential revert, plus the edit generation.
func (s *Store) beginEdit(recordID id.RecordID, field string, values schema.Fields) (schema.Fields, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[recordID]
	if !ok {
		return nil, 0, false
	}

	prev := make(schema.Fields, len(values))
	for name := range values {
		prev[name] = rec.Fields.Get(name)
	}
	for name, v := range values {
		rec.Fields[name] = v
	}

	k := fieldKey{record: recordID, field: field}
	st, ok := s.fields[k]
	if !ok {
		st = &fieldState{}
		s.fields[k] = st
	}
	st.gen++
	st.status = StatusPending
	return prev, st.gen, true
}

// resolveEdit moves a field out of pending if the outcome still belongs to
// the latest edit. Returns false for superseded outcomes.
func (s *Store) resolveEdit(recordID id.RecordID, field string, gen uint64, status Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.fields[fieldKey{record: recordID, field: field}]
	if !ok || st.gen != gen {
		return false
	}
	st.status = status
	return true
}

// expireSaved drops the transient saved indicator once its display window
// passes.
func (s *Store) expireSaved(recordID id.RecordID, field string, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.fields[fieldKey{record: recordID, field: field}]
	if !ok || st.gen != gen || st.status != StatusSaved {
		return
	}
	st.status = StatusIdle
}

// revert restores previous values after a failed save, unless a later edit
// already owns the field.
func (s *Store) revert(recordID id.RecordID, field string, gen uint64, prev schema.Fields) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.fields[fieldKey{record: recordID, field: field}]
	if !ok || st.gen != gen {
		return false
	}
	rec, ok := s.records[recordID]
	if !ok {
		return false
	}
	for name, v := range prev {
		if v.IsEmpty() {
			delete(rec.Fields, name)
			continue
		}
		rec.Fields[name] = v
	}
	st.status = StatusFailed
	return true
}

// markLocked flips the mirrored submission to locked after the server
// rejected a save on that ground.
func (s *Store) markLocked() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submission != nil {
		s.submission.IsLocked = true
	}
}
