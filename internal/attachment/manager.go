// Package attachment tracks the image attachments of one experience across
// their lifecycle: pending (spooled locally, not yet uploaded) and persisted
// (uploaded, with a metadata row). Removal is a transition, not a state.
package attachment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"experienceboard/internal/model"
	"experienceboard/internal/platform/logger"
)

type ObjectStore interface {
	Upload(ctx context.Context, path string, r io.Reader) error
	Delete(ctx context.Context, paths ...string) error
	List(ctx context.Context, prefix string) ([]string, error)
	PublicURL(path string) string
	ObjectPath(publicURL string) (string, error)
}

type MetadataStore interface {
	InsertImage(ctx context.Context, img *model.ExperienceImage) error
	DeleteByURL(ctx context.Context, experienceID, imageURL string) error
	ListURLs(ctx context.Context, experienceID string) ([]string, error)
	DeleteByExperience(ctx context.Context, experienceID string) error
}

// OrphanReporter hands storage drift to an asynchronous ledger.
type OrphanReporter interface {
	Publish(ctx context.Context, orphan model.OrphanedObject) error
}

type Deps struct {
	Objects  ObjectStore
	Metadata MetadataStore
	Orphans  OrphanReporter
	Previews PreviewPool
	Log      *logger.Logger
	Now      func() time.Time
}

type State string

const (
	Persisted State = "persisted"
	Pending   State = "pending"
)

type slot struct {
	id           string
	state        State
	experienceID string
	remoteURL    string
	displayName  string
	preview      Preview
}

// SlotView is the read-only projection of a slot.
type SlotView struct {
	ID          string `json:"id"`
	State       State  `json:"state"`
	RemoteURL   string `json:"remote_url,omitempty"`
	DisplayName string `json:"display_name"`
	Size        int64  `json:"size,omitempty"`
}

func (s *slot) view() SlotView {
	v := SlotView{ID: s.id, State: s.state, RemoteURL: s.remoteURL, DisplayName: s.displayName}
	if s.preview != nil {
		v.Size = s.preview.Size()
	}
	return v
}

// PendingFile is one user-selected binary.
type PendingFile struct {
	Name   string
	Reader io.Reader
}

// Manager owns the slots of one form. All methods are safe for concurrent use;
// Commit and RemovePersisted run to completion under the manager's lock.
type Manager struct {
	deps Deps
	log  *logger.Logger

	mu        sync.Mutex
	slots     []*slot
	lastStamp int64
	closed    bool
}

// NewManager starts with one persisted slot per existing image, in order.
func NewManager(deps Deps, existing []model.ExperienceImage) *Manager {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	m := &Manager{deps: deps, log: deps.Log.With("component", "attachment")}
	for _, img := range existing {
		m.slots = append(m.slots, &slot{
			id:           img.ID,
			state:        Persisted,
			experienceID: img.ExperienceID,
			remoteURL:    img.ImageURL,
			displayName:  img.ImageName,
		})
	}
	return m
}

func (m *Manager) Slots() []SlotView {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]SlotView, 0, len(m.slots))
	for _, s := range m.slots {
		out = append(out, s.view())
	}
	return out
}

// PendingCount is the number of slots still waiting for upload.
func (m *Manager) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, s := range m.slots {
		if s.state == Pending {
			n++
		}
	}
	return n
}

// AddPending spools every file and appends one pending slot per file. Files
// spooled before a failure stay queued.
func (m *Manager) AddPending(files ...PendingFile) ([]SlotView, error) {
	added := make([]SlotView, 0, len(files))
	for _, f := range files {
		preview, err := m.deps.Previews.Acquire(f.Name, f.Reader)
		if err != nil {
			return added, err
		}

		s := &slot{id: uuid.NewString(), state: Pending, displayName: f.Name, preview: preview}
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			preview.Release()
			return added, ErrManagerClosed
		}
		m.slots = append(m.slots, s)
		m.mu.Unlock()

		livePreviews.Inc()
		added = append(added, s.view())
	}
	return added, nil
}

// RemovePending drops a pending slot and releases its preview.
func (m *Manager) RemovePending(slotID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, s := m.find(slotID)
	if s == nil {
		return ErrSlotNotFound
	}
	if s.state != Pending {
		return fmt.Errorf("remove pending %s: %w", slotID, ErrSlotState)
	}
	defer m.release(s)

	m.slots = append(m.slots[:i:i], m.slots[i+1:]...)
	return nil
}

// OpenPreview returns the spooled content of a pending slot.
func (m *Manager) OpenPreview(slotID string) (io.ReadCloser, SlotView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, s := m.find(slotID)
	if s == nil {
		return nil, SlotView{}, ErrSlotNotFound
	}
	if s.state != Pending {
		return nil, SlotView{}, ErrSlotState
	}
	rc, err := s.preview.Open()
	if err != nil {
		return nil, SlotView{}, fmt.Errorf("open preview failed: %w", err)
	}
	return rc, s.view(), nil
}

// RemovePersisted deletes the metadata row, then the stored object. A failed
// metadata delete aborts and leaves the slot listed. Storage failures after
// that are logged and reported as orphans, never returned.
func (m *Manager) RemovePersisted(ctx context.Context, slotID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, s := m.find(slotID)
	if s == nil {
		return ErrSlotNotFound
	}
	if s.state != Persisted {
		return fmt.Errorf("remove persisted %s: %w", slotID, ErrSlotState)
	}

	if err := m.deps.Metadata.DeleteByURL(ctx, s.experienceID, s.remoteURL); err != nil {
		return fmt.Errorf("delete image metadata failed: %w", err)
	}
	m.slots = append(m.slots[:i:i], m.slots[i+1:]...)

	path, err := resolve(ctx, m.deps.Objects, s.experienceID, s.remoteURL)
	if err != nil {
		m.orphan(ctx, s.experienceID, s.remoteURL, "", "unresolved", err)
		return nil
	}
	if err := m.deps.Objects.Delete(ctx, path); err != nil {
		m.orphan(ctx, s.experienceID, s.remoteURL, path, "delete_failed", err)
	}
	return nil
}

type Outcome string

const (
	OutcomeNone     Outcome = "none"
	OutcomeComplete Outcome = "complete"
	OutcomePartial  Outcome = "partial"
	OutcomeFailed   Outcome = "failed"
)

type CommitFailure struct {
	SlotID      string `json:"slot_id"`
	DisplayName string `json:"display_name"`
	Stage       string `json:"stage"`
	Error       string `json:"error"`
}

type CommitReport struct {
	RecordID  string          `json:"record_id"`
	Committed []SlotView      `json:"committed"`
	Failed    []CommitFailure `json:"failed"`
}

func (r CommitReport) Outcome() Outcome {
	switch {
	case len(r.Committed) == 0 && len(r.Failed) == 0:
		return OutcomeNone
	case len(r.Failed) == 0:
		return OutcomeComplete
	case len(r.Committed) == 0:
		return OutcomeFailed
	default:
		return OutcomePartial
	}
}

// Commit uploads every pending slot under recordID, one after another, and
// records a metadata row for each. A file that fails is skipped and stays
// pending; the rest continue.
func (m *Manager) Commit(ctx context.Context, recordID string) (CommitReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	report := CommitReport{RecordID: recordID, Committed: []SlotView{}, Failed: []CommitFailure{}}
	if m.closed {
		return report, ErrManagerClosed
	}

	for _, s := range m.slots {
		if s.state != Pending {
			continue
		}
		stage, err := m.commitOne(ctx, recordID, s)
		if err != nil {
			m.log.Warn("attachment commit skipped file",
				"record_id", recordID,
				"slot_id", s.id,
				"stage", stage,
				"error", err,
			)
			report.Failed = append(report.Failed, CommitFailure{
				SlotID:      s.id,
				DisplayName: s.displayName,
				Stage:       stage,
				Error:       err.Error(),
			})
			continue
		}
		report.Committed = append(report.Committed, s.view())
	}

	commitOutcomes.WithLabelValues(string(report.Outcome())).Inc()
	return report, nil
}

func (m *Manager) commitOne(ctx context.Context, recordID string, s *slot) (string, error) {
	path := fmt.Sprintf("%s/%d_%s", recordID, m.stamp(), SanitizeFileName(s.displayName))

	rc, err := s.preview.Open()
	if err != nil {
		return "upload", fmt.Errorf("open preview failed: %w", err)
	}
	err = m.deps.Objects.Upload(ctx, path, rc)
	_ = rc.Close()
	if err != nil {
		return "upload", err
	}

	img := &model.ExperienceImage{
		ExperienceID: recordID,
		ImageURL:     m.deps.Objects.PublicURL(path),
		ImageName:    s.displayName,
	}
	if err := m.deps.Metadata.InsertImage(ctx, img); err != nil {
		if derr := m.deps.Objects.Delete(ctx, path); derr != nil {
			m.orphan(ctx, recordID, img.ImageURL, path, "metadata_insert_failed", derr)
		}
		return "metadata", err
	}

	m.release(s)
	s.id = img.ID
	s.state = Persisted
	s.experienceID = recordID
	s.remoteURL = img.ImageURL
	uploadedObjects.Inc()
	return "", nil
}

// DestroyReport summarizes the storage side of DestroyAll.
type DestroyReport struct {
	Metadata int `json:"metadata"`
	Deleted  int `json:"deleted"`
	Orphaned int `json:"orphaned"`
}

// DestroyAll removes every attachment of recordID: stored objects first, then
// metadata rows. Only a failure to read the metadata rows is returned; storage
// and metadata-row delete failures are logged so the caller can still delete
// the record itself.
func (m *Manager) DestroyAll(ctx context.Context, recordID string) (DestroyReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var report DestroyReport
	urls, err := m.deps.Metadata.ListURLs(ctx, recordID)
	if err != nil {
		return report, fmt.Errorf("list image metadata failed: %w", err)
	}
	report.Metadata = len(urls)

	var paths []string
	var underived []*DerivationError
	for _, u := range urls {
		p, err := m.deps.Objects.ObjectPath(u)
		if err != nil {
			underived = append(underived, &DerivationError{URL: u, Err: err})
			continue
		}
		paths = append(paths, p)
	}

	if len(paths) > 0 {
		for _, derr := range underived {
			m.orphan(ctx, recordID, derr.URL, "", "unresolved", derr)
		}
		report.Orphaned += len(underived)
	} else {
		listed, err := m.deps.Objects.List(ctx, recordID+"/")
		if err != nil {
			m.log.Warn("attachment folder listing failed", "record_id", recordID, "error", err)
		}
		if len(listed) == 0 {
			for _, derr := range underived {
				m.orphan(ctx, recordID, derr.URL, "", "unresolved", derr)
			}
			report.Orphaned += len(underived)
		}
		paths = listed
	}

	if len(paths) > 0 {
		if err := m.deps.Objects.Delete(ctx, paths...); err != nil {
			for _, p := range paths {
				m.orphan(ctx, recordID, m.deps.Objects.PublicURL(p), p, "batch_delete_failed", err)
			}
			report.Orphaned += len(paths)
		} else {
			report.Deleted = len(paths)
		}
	}

	if err := m.deps.Metadata.DeleteByExperience(ctx, recordID); err != nil {
		m.log.Warn("attachment metadata cleanup failed", "record_id", recordID, "error", err)
	}

	for _, s := range m.slots {
		m.release(s)
	}
	m.slots = nil
	return report, nil
}

// Close releases every outstanding preview. The manager rejects further
// additions and commits.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.slots {
		m.release(s)
	}
	m.slots = nil
	m.closed = true
}

func (m *Manager) find(slotID string) (int, *slot) {
	for i, s := range m.slots {
		if s.id == slotID {
			return i, s
		}
	}
	return -1, nil
}

func (m *Manager) release(s *slot) {
	if s.preview == nil {
		return
	}
	s.preview.Release()
	s.preview = nil
	livePreviews.Dec()
}

// stamp is strictly increasing per manager so two files with the same name in
// one commit never share a path.
func (m *Manager) stamp() int64 {
	now := m.deps.Now().UnixNano()
	if now <= m.lastStamp {
		now = m.lastStamp + 1
	}
	m.lastStamp = now
	return now
}

func (m *Manager) orphan(ctx context.Context, recordID, remoteURL, path, reason string, cause error) {
	orphanedObjects.WithLabelValues(reason).Inc()
	m.log.Warn("attachment storage object orphaned",
		"record_id", recordID,
		"image_url", remoteURL,
		"object_path", path,
		"reason", reason,
		"error", cause,
	)
	if m.deps.Orphans == nil {
		return
	}
	err := m.deps.Orphans.Publish(ctx, model.OrphanedObject{
		ExperienceID: recordID,
		ImageURL:     remoteURL,
		ObjectPath:   path,
		Reason:       fmt.Sprintf("%s: %v", reason, cause),
		ReportedAt:   m.deps.Now().UTC(),
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		m.log.Error("publish orphan report failed", "record_id", recordID, "error", err)
	}
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// SanitizeFileName replaces each whitespace run with a single underscore.
func SanitizeFileName(name string) string {
	return whitespaceRun.ReplaceAllString(name, "_")
}
