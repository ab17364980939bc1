package app

import (
	"context"
	"io"
	"time"

	"github.com/stretchr/testify/mock"

	"experienceboard/internal/identity"
	"experienceboard/internal/model"
)

type experienceStoreMock struct {
	mock.Mock
}

func (m *experienceStoreMock) Create(ctx context.Context, exp *model.Experience) error {
	return m.Called(ctx, exp).Error(0)
}

func (m *experienceStoreMock) Update(ctx context.Context, exp *model.Experience) error {
	return m.Called(ctx, exp).Error(0)
}

func (m *experienceStoreMock) GetByID(ctx context.Context, id string) (*model.Experience, error) {
	args := m.Called(ctx, id)
	exp, _ := args.Get(0).(*model.Experience)
	return exp, args.Error(1)
}

func (m *experienceStoreMock) ListWithImages(ctx context.Context) ([]model.Experience, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]model.Experience)
	return list, args.Error(1)
}

func (m *experienceStoreMock) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type guardMock struct {
	mock.Mock
}

func (m *guardMock) Acquire(ctx context.Context, userID string) (func(), bool, error) {
	args := m.Called(ctx, userID)
	return func() {}, args.Bool(0), args.Error(1)
}

type objectStoreMock struct {
	mock.Mock
}

func (m *objectStoreMock) Upload(ctx context.Context, path string, r io.Reader) error {
	_, _ = io.Copy(io.Discard, r)
	return m.Called(ctx, path, r).Error(0)
}

func (m *objectStoreMock) Delete(ctx context.Context, paths ...string) error {
	return m.Called(ctx, paths).Error(0)
}

func (m *objectStoreMock) List(ctx context.Context, prefix string) ([]string, error) {
	args := m.Called(ctx, prefix)
	out, _ := args.Get(0).([]string)
	return out, args.Error(1)
}

func (m *objectStoreMock) PublicURL(path string) string {
	return "https://storage.googleapis.com/experience-images/" + path
}

func (m *objectStoreMock) ObjectPath(publicURL string) (string, error) {
	args := m.Called(publicURL)
	return args.String(0), args.Error(1)
}

type metadataMock struct {
	mock.Mock
}

func (m *metadataMock) InsertImage(ctx context.Context, img *model.ExperienceImage) error {
	return m.Called(ctx, img).Error(0)
}

func (m *metadataMock) DeleteByURL(ctx context.Context, experienceID, imageURL string) error {
	return m.Called(ctx, experienceID, imageURL).Error(0)
}

func (m *metadataMock) ListURLs(ctx context.Context, experienceID string) ([]string, error) {
	args := m.Called(ctx, experienceID)
	out, _ := args.Get(0).([]string)
	return out, args.Error(1)
}

func (m *metadataMock) DeleteByExperience(ctx context.Context, experienceID string) error {
	return m.Called(ctx, experienceID).Error(0)
}

type orphanMock struct {
	mock.Mock
}

func (m *orphanMock) Publish(ctx context.Context, orphan model.OrphanedObject) error {
	return m.Called(ctx, orphan).Error(0)
}

type userStoreMock struct {
	mock.Mock
}

func (m *userStoreMock) Create(ctx context.Context, user *model.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *userStoreMock) Save(ctx context.Context, user *model.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *userStoreMock) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *userStoreMock) GetByID(ctx context.Context, id string) (*model.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

type verifierMock struct {
	mock.Mock
}

func (m *verifierMock) Verify(ctx context.Context, raw string) (*identity.Identity, error) {
	args := m.Called(ctx, raw)
	id, _ := args.Get(0).(*identity.Identity)
	return id, args.Error(1)
}

type sessionsMock struct {
	mock.Mock
}

func (m *sessionsMock) SignedIn(ctx context.Context, userID, tokenID string, expiresAt time.Time) error {
	return m.Called(ctx, userID, tokenID, expiresAt).Error(0)
}

func (m *sessionsMock) Revoke(ctx context.Context, userID, tokenID string, expiresAt time.Time) error {
	return m.Called(ctx, userID, tokenID, expiresAt).Error(0)
}

func (m *sessionsMock) Revoked(tokenID string) bool {
	return m.Called(tokenID).Bool(0)
}
