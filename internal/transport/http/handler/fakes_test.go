package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"experienceboard/internal/app"
	"experienceboard/internal/attachment"
	"experienceboard/internal/model"
	"experienceboard/internal/platform/logger"
	"experienceboard/internal/transport/http/middleware"
)

type memExperiences struct {
	mu   sync.Mutex
	rows map[string]model.Experience
	meta *memImages
}

func (s *memExperiences) Create(_ context.Context, exp *model.Experience) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if exp.ID == "" {
		exp.ID = uuid.NewString()
	}
	row := *exp
	row.Images = nil
	s.rows[exp.ID] = row
	return nil
}

func (s *memExperiences) Update(_ context.Context, exp *model.Experience) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := *exp
	row.Images = nil
	s.rows[exp.ID] = row
	return nil
}

func (s *memExperiences) GetByID(_ context.Context, id string) (*model.Experience, error) {
	s.mu.Lock()
	row, ok := s.rows[id]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}
	row.Images = s.meta.forExperience(id)
	return &row, nil
}

func (s *memExperiences) ListWithImages(_ context.Context) ([]model.Experience, error) {
	s.mu.Lock()
	out := make([]model.Experience, 0, len(s.rows))
	for _, row := range s.rows {
		out = append(out, row)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CompanyName < out[j].CompanyName })
	for i := range out {
		out[i].Images = s.meta.forExperience(out[i].ID)
	}
	return out, nil
}

func (s *memExperiences) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

type memImages struct {
	mu   sync.Mutex
	rows []model.ExperienceImage
}

func (m *memImages) InsertImage(_ context.Context, img *model.ExperienceImage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if img.ID == "" {
		img.ID = uuid.NewString()
	}
	m.rows = append(m.rows, *img)
	return nil
}

func (m *memImages) DeleteByURL(_ context.Context, experienceID, imageURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.rows[:0]
	for _, r := range m.rows {
		if r.ExperienceID == experienceID && r.ImageURL == imageURL {
			continue
		}
		kept = append(kept, r)
	}
	m.rows = kept
	return nil
}

func (m *memImages) ListURLs(_ context.Context, experienceID string) ([]string, error) {
	var out []string
	for _, r := range m.forExperience(experienceID) {
		out = append(out, r.ImageURL)
	}
	return out, nil
}

func (m *memImages) DeleteByExperience(_ context.Context, experienceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.rows[:0]
	for _, r := range m.rows {
		if r.ExperienceID != experienceID {
			kept = append(kept, r)
		}
	}
	m.rows = kept
	return nil
}

func (m *memImages) forExperience(id string) []model.ExperienceImage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.ExperienceImage{}
	for _, r := range m.rows {
		if r.ExperienceID == id {
			out = append(out, r)
		}
	}
	return out
}

type memObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
}

const objectBase = "https://storage.test/bucket/"

func (o *memObjects) Upload(_ context.Context, path string, r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.objects[path] = b
	return nil
}

func (o *memObjects) Delete(_ context.Context, paths ...string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, p := range paths {
		delete(o.objects, p)
	}
	return nil
}

func (o *memObjects) List(_ context.Context, prefix string) ([]string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []string
	for p := range o.objects {
		if strings.HasPrefix(p, prefix) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (o *memObjects) PublicURL(path string) string { return objectBase + path }

func (o *memObjects) ObjectPath(publicURL string) (string, error) {
	if !strings.HasPrefix(publicURL, objectBase) {
		return "", fmt.Errorf("foreign url %q", publicURL)
	}
	return strings.TrimPrefix(publicURL, objectBase), nil
}

func (o *memObjects) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.objects)
}

type noOrphans struct{}

func (noOrphans) Publish(context.Context, model.OrphanedObject) error { return nil }

type fixture struct {
	engine  *gin.Engine
	store   *memExperiences
	images  *memImages
	objects *memObjects
	drafts  *attachment.Drafts
}

// newFixture mounts the experience and draft handlers behind a stub auth
// middleware that trusts the X-User header.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	previews, err := attachment.NewTempFilePool(t.TempDir())
	require.NoError(t, err)

	images := &memImages{}
	store := &memExperiences{rows: map[string]model.Experience{}, meta: images}
	objects := &memObjects{objects: map[string][]byte{}}
	deps := attachment.Deps{
		Objects:  objects,
		Metadata: images,
		Orphans:  noOrphans{},
		Previews: previews,
		Log:      logger.Nop(),
	}
	drafts := attachment.NewDrafts(deps, 0)
	t.Cleanup(drafts.Close)

	svc := app.NewExperienceService(store, nil, nil, drafts, deps, logger.Nop())
	eh := NewExperienceHandler(svc, logger.Nop())
	dh := NewDraftHandler(drafts, logger.Nop())

	stubAuth := func(c *gin.Context) {
		c.Set(middleware.ContextUserIDKey, c.GetHeader("X-User"))
		c.Next()
	}

	r := gin.New()
	v1 := r.Group("/api/v1")
	v1.GET("/experiences", eh.List)
	v1.GET("/experiences/:id", eh.Get)
	v1.POST("/experiences", stubAuth, eh.Create)
	v1.PUT("/experiences/:id", stubAuth, eh.Update)
	v1.DELETE("/experiences/:id", stubAuth, eh.Delete)
	v1.DELETE("/experiences/:id/images/:imageId", stubAuth, eh.DeleteImage)
	d := v1.Group("/drafts", stubAuth)
	d.POST("", dh.Create)
	d.GET("/:id", dh.Get)
	d.DELETE("/:id", dh.Discard)
	d.POST("/:id/files", dh.AddFiles)
	d.GET("/:id/files/:slot", dh.Preview)
	d.DELETE("/:id/files/:slot", dh.RemoveFile)

	return &fixture{engine: r, store: store, images: images, objects: objects, drafts: drafts}
}

func jsonBody(s string) io.Reader {
	return bytes.NewBufferString(s)
}
