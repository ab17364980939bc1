package attachment

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"experienceboard/internal/model"
)

type objectStoreMock struct {
	mock.Mock
}

func (m *objectStoreMock) Upload(ctx context.Context, path string, r io.Reader) error {
	_, _ = io.Copy(io.Discard, r)
	args := m.Called(ctx, path, r)
	return args.Error(0)
}

func (m *objectStoreMock) Delete(ctx context.Context, paths ...string) error {
	args := m.Called(ctx, paths)
	return args.Error(0)
}

func (m *objectStoreMock) List(ctx context.Context, prefix string) ([]string, error) {
	args := m.Called(ctx, prefix)
	out, _ := args.Get(0).([]string)
	return out, args.Error(1)
}

func (m *objectStoreMock) PublicURL(path string) string {
	return "https://cdn.test/" + path
}

func (m *objectStoreMock) ObjectPath(publicURL string) (string, error) {
	args := m.Called(publicURL)
	return args.String(0), args.Error(1)
}

type metadataMock struct {
	mock.Mock
}

func (m *metadataMock) InsertImage(ctx context.Context, img *model.ExperienceImage) error {
	args := m.Called(ctx, img)
	return args.Error(0)
}

func (m *metadataMock) DeleteByURL(ctx context.Context, experienceID, imageURL string) error {
	args := m.Called(ctx, experienceID, imageURL)
	return args.Error(0)
}

func (m *metadataMock) ListURLs(ctx context.Context, experienceID string) ([]string, error) {
	args := m.Called(ctx, experienceID)
	out, _ := args.Get(0).([]string)
	return out, args.Error(1)
}

func (m *metadataMock) DeleteByExperience(ctx context.Context, experienceID string) error {
	args := m.Called(ctx, experienceID)
	return args.Error(0)
}

type orphanMock struct {
	mock.Mock
}

func (m *orphanMock) Publish(ctx context.Context, orphan model.OrphanedObject) error {
	args := m.Called(ctx, orphan)
	return args.Error(0)
}
