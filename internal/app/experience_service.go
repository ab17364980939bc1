package app

import (
	"context"
	"errors"
	"strings"

	"experienceboard/internal/attachment"
	"experienceboard/internal/filter"
	"experienceboard/internal/model"
	"experienceboard/internal/platform/logger"
	"experienceboard/internal/richtext"
)

var (
	ErrExperienceNotFound   = errors.New("experience not found")
	ErrImageNotFound        = errors.New("image not found")
	ErrForbidden            = errors.New("not the owner of this experience")
	ErrSubmissionInProgress = errors.New("a submission is already in progress")
)

type ExperienceStore interface {
	Create(ctx context.Context, exp *model.Experience) error
	Update(ctx context.Context, exp *model.Experience) error
	GetByID(ctx context.Context, id string) (*model.Experience, error)
	ListWithImages(ctx context.Context) ([]model.Experience, error)
	Delete(ctx context.Context, id string) error
}

type ListCache interface {
	Get(ctx context.Context) ([]model.Experience, bool, error)
	Set(ctx context.Context, list []model.Experience) error
	Invalidate(ctx context.Context) error
}

type SubmitGuard interface {
	Acquire(ctx context.Context, userID string) (release func(), ok bool, err error)
}

type ExperienceService struct {
	store       ExperienceStore
	cache       ListCache
	guard       SubmitGuard
	drafts      *attachment.Drafts
	attachments attachment.Deps
	log         *logger.Logger
}

func NewExperienceService(
	store ExperienceStore,
	cache ListCache,
	guard SubmitGuard,
	drafts *attachment.Drafts,
	attachments attachment.Deps,
	log *logger.Logger,
) *ExperienceService {
	return &ExperienceService{
		store:       store,
		cache:       cache,
		guard:       guard,
		drafts:      drafts,
		attachments: attachments,
		log:         log.With("service", "ExperienceService"),
	}
}

type SubmitResult struct {
	Experience  *model.Experience
	Attachments attachment.CommitReport
}

// Create validates, inserts the record, then commits the draft's pending
// files under the new id.
func (s *ExperienceService) Create(ctx context.Context, userID string, in ExperienceInput, draftID string) (*SubmitResult, error) {
	exp, err := buildExperience(in)
	if err != nil {
		return nil, err
	}

	release, err := s.acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	draft, err := s.draft(userID, draftID)
	if err != nil {
		return nil, err
	}

	exp.UserID = userID
	if err := s.store.Create(ctx, exp); err != nil {
		return nil, err
	}

	report := s.commit(ctx, userID, draft, exp.ID)
	exp.Images = imagesFromReport(exp.ID, report)
	s.invalidate(ctx)

	return &SubmitResult{Experience: exp, Attachments: report}, nil
}

// Update replaces the scalar fields of an owned record and appends the
// draft's pending files. The updated row is returned with its images.
func (s *ExperienceService) Update(ctx context.Context, userID, id string, in ExperienceInput, draftID string) (*SubmitResult, error) {
	exp, err := buildExperience(in)
	if err != nil {
		return nil, err
	}

	existing, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	release, err := s.acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	draft, err := s.draft(userID, draftID)
	if err != nil {
		return nil, err
	}

	exp.ID = existing.ID
	exp.UserID = existing.UserID
	exp.CreatedAt = existing.CreatedAt
	if err := s.store.Update(ctx, exp); err != nil {
		return nil, err
	}

	report := s.commit(ctx, userID, draft, exp.ID)
	s.invalidate(ctx)

	updated, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrExperienceNotFound
	}
	return &SubmitResult{Experience: sanitized(*updated), Attachments: report}, nil
}

// DeleteImage removes one persisted image of an owned record.
func (s *ExperienceService) DeleteImage(ctx context.Context, userID, experienceID, imageID string) error {
	exp, err := s.owned(ctx, userID, experienceID)
	if err != nil {
		return err
	}

	m := attachment.NewManager(s.attachments, exp.Images)
	defer m.Close()

	if err := m.RemovePersisted(ctx, imageID); err != nil {
		if errors.Is(err, attachment.ErrSlotNotFound) {
			return ErrImageNotFound
		}
		return err
	}
	s.invalidate(ctx)
	return nil
}

// Delete destroys every attachment of an owned record, then the record row.
func (s *ExperienceService) Delete(ctx context.Context, userID, id string) (attachment.DestroyReport, error) {
	exp, err := s.owned(ctx, userID, id)
	if err != nil {
		return attachment.DestroyReport{}, err
	}

	m := attachment.NewManager(s.attachments, exp.Images)
	defer m.Close()

	report, err := m.DestroyAll(ctx, exp.ID)
	if err != nil {
		return report, err
	}
	if err := s.store.Delete(ctx, exp.ID); err != nil {
		return report, err
	}

	s.invalidate(ctx)
	s.log.Info("experience deleted",
		"record_id", exp.ID,
		"user_id", userID,
		"images", report.Metadata,
		"orphaned", report.Orphaned,
	)
	return report, nil
}

type ListQuery struct {
	Search string
	// Facets holds only the facets the caller constrained.
	Facets map[string]string
}

type ListResult struct {
	Items  []model.Experience  `json:"items"`
	Total  int                 `json:"total"`
	Facets map[string][]string `json:"facets"`
}

// List filters the full record set. Facet choices always come from the
// unfiltered set.
func (s *ExperienceService) List(ctx context.Context, q ListQuery) (*ListResult, error) {
	source, err := s.source(ctx)
	if err != nil {
		return nil, err
	}

	state := filter.NewState()
	state.Search = q.Search
	for name, v := range q.Facets {
		state.Facets[name] = normalizeSelection(name, v)
	}

	items := experienceSchema.Apply(source, state)
	for i := range items {
		items[i] = *sanitized(items[i])
	}
	return &ListResult{
		Items:  items,
		Total:  len(items),
		Facets: experienceSchema.AllValues(source),
	}, nil
}

func (s *ExperienceService) Get(ctx context.Context, id string) (*model.Experience, error) {
	exp, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if exp == nil {
		return nil, ErrExperienceNotFound
	}
	return sanitized(*exp), nil
}

func (s *ExperienceService) source(ctx context.Context) ([]model.Experience, error) {
	if s.cache != nil {
		list, hit, err := s.cache.Get(ctx)
		if err != nil {
			s.log.Warn("experience list cache read failed", "error", err)
		} else if hit {
			return list, nil
		}
	}

	list, err := s.store.ListWithImages(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, list); err != nil {
			s.log.Warn("experience list cache write failed", "error", err)
		}
	}
	return list, nil
}

// owned loads id and checks that userID created it. The check compares the
// stored user_id only.
func (s *ExperienceService) owned(ctx context.Context, userID, id string) (*model.Experience, error) {
	exp, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if exp == nil {
		return nil, ErrExperienceNotFound
	}
	if exp.UserID == "" || exp.UserID != userID {
		return nil, ErrForbidden
	}
	return exp, nil
}

func (s *ExperienceService) acquire(ctx context.Context, userID string) (func(), error) {
	if s.guard == nil {
		return func() {}, nil
	}
	release, ok, err := s.guard.Acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSubmissionInProgress
	}
	return release, nil
}

func (s *ExperienceService) draft(userID, draftID string) (*attachment.Draft, error) {
	draftID = strings.TrimSpace(draftID)
	if draftID == "" || s.drafts == nil {
		return nil, nil
	}
	return s.drafts.Get(userID, draftID)
}

// commit uploads the draft's pending files. A fully committed draft is
// discarded; one with failed files is kept so they can be retried.
func (s *ExperienceService) commit(ctx context.Context, userID string, draft *attachment.Draft, recordID string) attachment.CommitReport {
	empty := attachment.CommitReport{RecordID: recordID, Committed: []attachment.SlotView{}, Failed: []attachment.CommitFailure{}}
	if draft == nil {
		return empty
	}

	report, err := draft.Manager.Commit(ctx, recordID)
	if err != nil {
		s.log.Warn("draft commit failed", "record_id", recordID, "draft_id", draft.ID, "error", err)
		return empty
	}

	switch report.Outcome() {
	case attachment.OutcomeNone, attachment.OutcomeComplete:
		if err := s.drafts.Discard(userID, draft.ID); err != nil && !errors.Is(err, attachment.ErrDraftNotFound) {
			s.log.Warn("discard draft failed", "draft_id", draft.ID, "error", err)
		}
	default:
		s.log.Warn("draft committed partially",
			"record_id", recordID,
			"draft_id", draft.ID,
			"outcome", string(report.Outcome()),
			"failed", len(report.Failed),
		)
	}
	return report
}

func (s *ExperienceService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Warn("experience list cache invalidate failed", "error", err)
	}
}

func imagesFromReport(recordID string, report attachment.CommitReport) []model.ExperienceImage {
	images := make([]model.ExperienceImage, 0, len(report.Committed))
	for _, v := range report.Committed {
		images = append(images, model.ExperienceImage{
			ID:           v.ID,
			ExperienceID: recordID,
			ImageURL:     v.RemoteURL,
			ImageName:    v.DisplayName,
		})
	}
	return images
}

// sanitized re-sanitizes stored markup on the way out.
func sanitized(e model.Experience) *model.Experience {
	e.ExperienceDescription = richtext.Sanitize(e.ExperienceDescription)
	e.AdditionalTips = richtext.SanitizePtr(e.AdditionalTips)
	return &e
}
