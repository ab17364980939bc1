package attachment

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"experienceboard/internal/model"
)

type fixture struct {
	objects  *objectStoreMock
	metadata *metadataMock
	orphans  *orphanMock
	pool     *TempFilePool
	deps     Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	pool, err := NewTempFilePool(t.TempDir())
	require.NoError(t, err)

	f := &fixture{
		objects:  &objectStoreMock{},
		metadata: &metadataMock{},
		orphans:  &orphanMock{},
		pool:     pool,
	}
	clock := time.Unix(1700000000, 0)
	f.deps = Deps{
		Objects:  f.objects,
		Metadata: f.metadata,
		Orphans:  f.orphans,
		Previews: pool,
		Now:      func() time.Time { return clock },
	}
	return f
}

func files(names ...string) []PendingFile {
	out := make([]PendingFile, 0, len(names))
	for _, n := range names {
		out = append(out, PendingFile{Name: n, Reader: strings.NewReader("bytes of " + n)})
	}
	return out
}

func TestAddPendingAppends(t *testing.T) {
	f := newFixture(t)
	m := NewManager(f.deps, []model.ExperienceImage{{ID: "img-1", ExperienceID: "r1", ImageURL: "https://cdn.test/r1/1_a.png", ImageName: "a.png"}})

	_, err := m.AddPending(files("b.png")...)
	require.NoError(t, err)
	_, err = m.AddPending(files("c.png", "d.png")...)
	require.NoError(t, err)

	slots := m.Slots()
	require.Len(t, slots, 4)
	assert.Equal(t, Persisted, slots[0].State)
	assert.Equal(t, []string{"a.png", "b.png", "c.png", "d.png"},
		[]string{slots[0].DisplayName, slots[1].DisplayName, slots[2].DisplayName, slots[3].DisplayName})
	assert.Equal(t, 3, m.PendingCount())
	assert.EqualValues(t, 3, f.pool.Live())
	f.objects.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)
}

type countingPreview struct {
	Preview
	released *int
}

func (c countingPreview) Release() {
	*c.released++
	c.Preview.Release()
}

type countingPool struct {
	*TempFilePool
	released int
}

func (p *countingPool) Acquire(name string, r io.Reader) (Preview, error) {
	pv, err := p.TempFilePool.Acquire(name, r)
	if err != nil {
		return nil, err
	}
	return countingPreview{Preview: pv, released: &p.released}, nil
}

func TestRemovePendingReleasesOnce(t *testing.T) {
	f := newFixture(t)
	pool := &countingPool{TempFilePool: f.pool}
	f.deps.Previews = pool
	m := NewManager(f.deps, nil)

	added, err := m.AddPending(files("a b.png")...)
	require.NoError(t, err)
	slotID := added[0].ID

	rc, _, err := m.OpenPreview(slotID)
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "bytes of a b.png", string(body))

	require.NoError(t, m.RemovePending(slotID))
	assert.ErrorIs(t, m.RemovePending(slotID), ErrSlotNotFound)

	assert.Equal(t, 1, pool.released)
	assert.EqualValues(t, 0, f.pool.Live())
	assert.Empty(t, m.Slots())

	entries, err := os.ReadDir(f.pool.dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRemovePendingRejectsPersisted(t *testing.T) {
	f := newFixture(t)
	m := NewManager(f.deps, []model.ExperienceImage{{ID: "img-1", ExperienceID: "r1", ImageURL: "u"}})

	assert.ErrorIs(t, m.RemovePending("img-1"), ErrSlotState)
	assert.Len(t, m.Slots(), 1)
}

func TestCommitPartialSuccess(t *testing.T) {
	f := newFixture(t)
	m := NewManager(f.deps, nil)
	_, err := m.AddPending(files("first shot.png", "second.png")...)
	require.NoError(t, err)

	f.objects.On("Upload", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.HasPrefix(p, "r1/") && strings.HasSuffix(p, "_first_shot.png")
	}), mock.Anything).Return(nil).Once()
	f.objects.On("Upload", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.HasSuffix(p, "_second.png")
	}), mock.Anything).Return(errors.New("quota exceeded")).Once()
	f.metadata.On("InsertImage", mock.Anything, mock.AnythingOfType("*model.ExperienceImage")).
		Run(func(args mock.Arguments) { args.Get(1).(*model.ExperienceImage).ID = "img-new" }).
		Return(nil).Once()

	report, err := m.Commit(context.Background(), "r1")
	require.NoError(t, err)

	assert.Equal(t, OutcomePartial, report.Outcome())
	require.Len(t, report.Committed, 1)
	assert.Equal(t, "img-new", report.Committed[0].ID)
	assert.True(t, strings.HasPrefix(report.Committed[0].RemoteURL, "https://cdn.test/r1/"))
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "second.png", report.Failed[0].DisplayName)
	assert.Equal(t, "upload", report.Failed[0].Stage)

	assert.Equal(t, 1, m.PendingCount())
	assert.EqualValues(t, 1, f.pool.Live())
	f.metadata.AssertNumberOfCalls(t, "InsertImage", 1)

	m.Close()
	assert.EqualValues(t, 0, f.pool.Live())
}

func TestCommitMetadataFailureRemovesUpload(t *testing.T) {
	f := newFixture(t)
	m := NewManager(f.deps, nil)
	_, err := m.AddPending(files("a.png")...)
	require.NoError(t, err)

	var uploaded string
	f.objects.On("Upload", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { uploaded = args.String(1) }).Return(nil)
	f.metadata.On("InsertImage", mock.Anything, mock.Anything).Return(errors.New("db down"))
	f.objects.On("Delete", mock.Anything, mock.Anything).Return(nil)

	report, err := m.Commit(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, report.Outcome())
	assert.Equal(t, "metadata", report.Failed[0].Stage)
	f.objects.AssertCalled(t, "Delete", mock.Anything, []string{uploaded})
	f.orphans.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestCommitNothingPending(t *testing.T) {
	f := newFixture(t)
	m := NewManager(f.deps, []model.ExperienceImage{{ID: "img-1", ExperienceID: "r1", ImageURL: "u"}})

	report, err := m.Commit(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNone, report.Outcome())
	f.objects.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)
	f.metadata.AssertNotCalled(t, "InsertImage", mock.Anything, mock.Anything)
}

func TestCommitSameNameGetsDistinctPaths(t *testing.T) {
	f := newFixture(t)
	m := NewManager(f.deps, nil)
	_, err := m.AddPending(files("a.png", "a.png")...)
	require.NoError(t, err)

	var paths []string
	f.objects.On("Upload", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { paths = append(paths, args.String(1)) }).Return(nil)
	f.metadata.On("InsertImage", mock.Anything, mock.Anything).Return(nil)

	report, err := m.Commit(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeComplete, report.Outcome())
	require.Len(t, paths, 2)
	assert.NotEqual(t, paths[0], paths[1])
}

func TestCommitAfterCloseFails(t *testing.T) {
	f := newFixture(t)
	m := NewManager(f.deps, nil)
	m.Close()

	_, err := m.Commit(context.Background(), "r1")
	assert.ErrorIs(t, err, ErrManagerClosed)
	_, err = m.AddPending(files("a.png")...)
	assert.ErrorIs(t, err, ErrManagerClosed)
	assert.EqualValues(t, 0, f.pool.Live())
}

func TestRemovePersistedMetadataFailureKeepsSlot(t *testing.T) {
	f := newFixture(t)
	url := "https://cdn.test/r1/1_a.png"
	m := NewManager(f.deps, []model.ExperienceImage{{ID: "img-1", ExperienceID: "r1", ImageURL: url}})
	f.metadata.On("DeleteByURL", mock.Anything, "r1", url).Return(errors.New("permission denied"))

	err := m.RemovePersisted(context.Background(), "img-1")
	require.Error(t, err)

	assert.Len(t, m.Slots(), 1)
	f.objects.AssertNotCalled(t, "ObjectPath", mock.Anything)
	f.objects.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestRemovePersistedDerivesPath(t *testing.T) {
	f := newFixture(t)
	url := "https://cdn.test/r1/1_a.png"
	m := NewManager(f.deps, []model.ExperienceImage{{ID: "img-1", ExperienceID: "r1", ImageURL: url}})
	f.metadata.On("DeleteByURL", mock.Anything, "r1", url).Return(nil)
	f.objects.On("ObjectPath", url).Return("r1/1_a.png", nil)
	f.objects.On("Delete", mock.Anything, []string{"r1/1_a.png"}).Return(nil).Once()

	require.NoError(t, m.RemovePersisted(context.Background(), "img-1"))
	assert.Empty(t, m.Slots())
	f.objects.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
	f.objects.AssertExpectations(t)
}

func TestRemovePersistedFallsBackToListing(t *testing.T) {
	f := newFixture(t)
	url := "https://cdn.test/r1/2_b.png"
	m := NewManager(f.deps, []model.ExperienceImage{{ID: "img-1", ExperienceID: "r1", ImageURL: url}})
	f.metadata.On("DeleteByURL", mock.Anything, "r1", url).Return(nil)
	f.objects.On("ObjectPath", url).Return("", errors.New("unknown prefix"))
	f.objects.On("List", mock.Anything, "r1/").Return([]string{"r1/1_a.png", "r1/2_b.png"}, nil)
	f.objects.On("Delete", mock.Anything, []string{"r1/2_b.png"}).Return(nil).Once()

	require.NoError(t, m.RemovePersisted(context.Background(), "img-1"))
	f.objects.AssertExpectations(t)
}

func TestRemovePersistedStorageFailureIsReported(t *testing.T) {
	f := newFixture(t)
	url := "https://cdn.test/r1/1_a.png"
	m := NewManager(f.deps, []model.ExperienceImage{{ID: "img-1", ExperienceID: "r1", ImageURL: url}})
	f.metadata.On("DeleteByURL", mock.Anything, "r1", url).Return(nil)
	f.objects.On("ObjectPath", url).Return("", errors.New("unknown prefix"))
	f.objects.On("List", mock.Anything, "r1/").Return([]string{}, nil)
	f.orphans.On("Publish", mock.Anything, mock.MatchedBy(func(o model.OrphanedObject) bool {
		return o.ExperienceID == "r1" && o.ImageURL == url && o.ObjectPath == ""
	})).Return(nil).Once()

	require.NoError(t, m.RemovePersisted(context.Background(), "img-1"))
	assert.Empty(t, m.Slots())
	f.objects.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	f.orphans.AssertExpectations(t)
}

func TestDestroyAllWithEmptyFallbackListing(t *testing.T) {
	f := newFixture(t)
	urls := []string{"legacy://a", "legacy://b", "legacy://c"}
	m := NewManager(f.deps, nil)

	f.metadata.On("ListURLs", mock.Anything, "r1").Return(urls, nil)
	for _, u := range urls {
		f.objects.On("ObjectPath", u).Return("", errors.New("foreign"))
	}
	f.objects.On("List", mock.Anything, "r1/").Return([]string{}, nil)
	f.orphans.On("Publish", mock.Anything, mock.Anything).Return(nil)
	f.metadata.On("DeleteByExperience", mock.Anything, "r1").Return(nil).Once()

	report, err := m.DestroyAll(context.Background(), "r1")
	require.NoError(t, err)

	assert.Equal(t, DestroyReport{Metadata: 3, Deleted: 0, Orphaned: 3}, report)
	f.objects.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	f.metadata.AssertExpectations(t)
	f.orphans.AssertNumberOfCalls(t, "Publish", 3)
}

func TestDestroyAllBatchesDerivedPaths(t *testing.T) {
	f := newFixture(t)
	m := NewManager(f.deps, nil)

	f.metadata.On("ListURLs", mock.Anything, "r1").Return([]string{"u1", "u2"}, nil)
	f.objects.On("ObjectPath", "u1").Return("r1/1_a.png", nil)
	f.objects.On("ObjectPath", "u2").Return("r1/2_b.png", nil)
	f.objects.On("Delete", mock.Anything, []string{"r1/1_a.png", "r1/2_b.png"}).Return(nil).Once()
	f.metadata.On("DeleteByExperience", mock.Anything, "r1").Return(errors.New("db blip"))

	report, err := m.DestroyAll(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Deleted)
	f.objects.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
	f.objects.AssertExpectations(t)
}

func TestDestroyAllListsFolderWhenNothingDerives(t *testing.T) {
	f := newFixture(t)
	m := NewManager(f.deps, nil)

	f.metadata.On("ListURLs", mock.Anything, "r1").Return([]string{}, nil)
	f.objects.On("List", mock.Anything, "r1/").Return([]string{"r1/9_z.png"}, nil)
	f.objects.On("Delete", mock.Anything, []string{"r1/9_z.png"}).Return(nil).Once()
	f.metadata.On("DeleteByExperience", mock.Anything, "r1").Return(nil)

	report, err := m.DestroyAll(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Deleted)
	f.objects.AssertExpectations(t)
}

func TestDestroyAllMetadataReadFailure(t *testing.T) {
	f := newFixture(t)
	m := NewManager(f.deps, nil)
	f.metadata.On("ListURLs", mock.Anything, "r1").Return(nil, errors.New("timeout"))

	_, err := m.DestroyAll(context.Background(), "r1")
	require.Error(t, err)
	f.metadata.AssertNotCalled(t, "DeleteByExperience", mock.Anything, mock.Anything)
}

func TestSanitizeFileName(t *testing.T) {
	assert.Equal(t, "my_resume_final.png", SanitizeFileName("my  resume\tfinal.png"))
	assert.Equal(t, "_lead.png", SanitizeFileName(" lead.png"))
	assert.Equal(t, "ünï(1).PNG", SanitizeFileName("ünï(1).PNG"))
}
