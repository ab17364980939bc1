package rabbitmq

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"experienceboard/internal/model"
)

func TestDecodeOrphanDropsStoreFields(t *testing.T) {
	resolved := time.Now()
	body, err := encodeOrphan(model.OrphanedObject{
		ID:           42,
		ExperienceID: "r1",
		ObjectPath:   "r1/1_a.png",
		Reason:       "delete_failed: boom",
		ResolvedAt:   &resolved,
	})
	require.NoError(t, err)

	got, err := DecodeOrphan(body)
	require.NoError(t, err)
	assert.Zero(t, got.ID)
	assert.Nil(t, got.ResolvedAt)
	assert.Equal(t, "r1/1_a.png", got.ObjectPath)

	_, err = DecodeOrphan([]byte("{"))
	assert.Error(t, err)
}
