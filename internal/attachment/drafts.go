package attachment

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"experienceboard/internal/platform/logger"
)

// Draft holds the pending files a user has selected before submitting.
type Draft struct {
	ID      string
	UserID  string
	Manager *Manager

	touched time.Time
}

type DraftView struct {
	ID    string     `json:"id"`
	Slots []SlotView `json:"slots"`
}

func (d *Draft) View() DraftView {
	return DraftView{ID: d.ID, Slots: d.Manager.Slots()}
}

// Drafts is the process-wide registry of open drafts. Drafts idle for longer
// than ttl are closed by Sweep, which Run calls periodically.
type Drafts struct {
	deps Deps
	ttl  time.Duration
	log  *logger.Logger

	mu     sync.Mutex
	drafts map[string]*Draft
}

func NewDrafts(deps Deps, ttl time.Duration) *Drafts {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Drafts{
		deps:   deps,
		ttl:    ttl,
		log:    deps.Log.With("component", "drafts"),
		drafts: map[string]*Draft{},
	}
}

func (r *Drafts) Create(userID string) *Draft {
	d := &Draft{
		ID:      uuid.NewString(),
		UserID:  userID,
		Manager: NewManager(r.deps, nil),
		touched: r.deps.Now(),
	}

	r.mu.Lock()
	r.drafts[d.ID] = d
	r.mu.Unlock()
	return d
}

// Get returns the user's draft and marks it as recently used. Drafts of other
// users are reported as not found.
func (r *Drafts) Get(userID, draftID string) (*Draft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.drafts[draftID]
	if !ok || d.UserID != userID {
		return nil, ErrDraftNotFound
	}
	d.touched = r.deps.Now()
	return d, nil
}

// Discard removes the draft and releases all of its previews.
func (r *Drafts) Discard(userID, draftID string) error {
	r.mu.Lock()
	d, ok := r.drafts[draftID]
	if !ok || d.UserID != userID {
		r.mu.Unlock()
		return ErrDraftNotFound
	}
	delete(r.drafts, draftID)
	r.mu.Unlock()

	d.Manager.Close()
	return nil
}

func (r *Drafts) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.drafts)
}

// Sweep closes every draft idle since before now-ttl and returns how many
// were closed.
func (r *Drafts) Sweep(now time.Time) int {
	cutoff := now.Add(-r.ttl)

	r.mu.Lock()
	var expired []*Draft
	for id, d := range r.drafts {
		if d.touched.Before(cutoff) {
			expired = append(expired, d)
			delete(r.drafts, id)
		}
	}
	r.mu.Unlock()

	for _, d := range expired {
		d.Manager.Close()
	}
	if len(expired) > 0 {
		r.log.Info("expired drafts closed", "count", len(expired))
	}
	return len(expired)
}

// Run sweeps every interval until ctx is done, then closes all drafts.
func (r *Drafts) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.Close()
			return
		case <-ticker.C:
			r.Sweep(r.deps.Now())
		}
	}
}

// Close tears down every open draft.
func (r *Drafts) Close() {
	r.mu.Lock()
	drafts := r.drafts
	r.drafts = map[string]*Draft{}
	r.mu.Unlock()

	for _, d := range drafts {
		d.Manager.Close()
	}
}
