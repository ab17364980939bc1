package attachment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDraftsOwnership(t *testing.T) {
	f := newFixture(t)
	r := NewDrafts(f.deps, time.Minute)

	d := r.Create("u1")
	got, err := r.Get("u1", d.ID)
	require.NoError(t, err)
	assert.Same(t, d, got)

	_, err = r.Get("u2", d.ID)
	assert.ErrorIs(t, err, ErrDraftNotFound)
	assert.ErrorIs(t, r.Discard("u2", d.ID), ErrDraftNotFound)
	assert.Equal(t, 1, r.Len())
}

func TestDraftsSweepReleasesPreviews(t *testing.T) {
	f := newFixture(t)
	now := time.Unix(1700000000, 0)
	f.deps.Now = func() time.Time { return now }
	r := NewDrafts(f.deps, 10*time.Minute)

	stale := r.Create("u1")
	_, err := stale.Manager.AddPending(files("a.png", "b.png")...)
	require.NoError(t, err)

	now = now.Add(8 * time.Minute)
	fresh := r.Create("u1")
	_, err = fresh.Manager.AddPending(files("c.png")...)
	require.NoError(t, err)
	assert.EqualValues(t, 3, f.pool.Live())

	now = now.Add(5 * time.Minute)
	assert.Equal(t, 1, r.Sweep(now))
	assert.EqualValues(t, 1, f.pool.Live())

	_, err = r.Get("u1", stale.ID)
	assert.ErrorIs(t, err, ErrDraftNotFound)

	r.Close()
	assert.EqualValues(t, 0, f.pool.Live())
	assert.Equal(t, 0, r.Len())
}

func TestDraftsDiscard(t *testing.T) {
	f := newFixture(t)
	r := NewDrafts(f.deps, time.Minute)

	d := r.Create("u1")
	_, err := d.Manager.AddPending(files("a.png")...)
	require.NoError(t, err)

	require.NoError(t, r.Discard("u1", d.ID))
	assert.EqualValues(t, 0, f.pool.Live())
	assert.ErrorIs(t, r.Discard("u1", d.ID), ErrDraftNotFound)
}
