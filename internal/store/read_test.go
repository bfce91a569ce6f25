package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/classver/internal/model"
)

func TestReadFile_NotFound(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.ReadFile(ctx, "class:missing", "missing.xml", 0)
	require.Error(t, err)
	assert.True(t, model.IsNotFound(err))

	require.NoError(t, s.StageWrite(ctx, "class:colors", "colors.xml", []byte("x"), createTestInfo(model.ReasonCreated, 0)))
	_, err = s.CommitStaged(ctx, "class:colors", createTestInfo(model.ReasonCreated, 0))
	require.NoError(t, err)

	_, err = s.ReadFile(ctx, "class:colors", "colors/red.xml", 0)
	assert.True(t, model.IsNotFound(err), "absent path")

	_, err = s.ReadFile(ctx, "class:colors", "colors.xml", 5)
	assert.True(t, model.IsNotFound(err), "unknown version")

	_, err = s.ReadFile(ctx, "class:colors", "colors.xml", -1)
	assert.True(t, model.IsNotFound(err), "negative version")
}

func TestRevisionInfo_RoundTripsMetadata(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	info := createTestInfo(model.ReasonRepaired, 42)

	require.NoError(t, s.StageWrite(ctx, "class:colors", "colors.xml", []byte("x"), info))
	_, err := s.CommitStaged(ctx, "class:colors", info)
	require.NoError(t, err)

	got, num, err := s.RevisionInfo(ctx, "class:colors", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), num)
	assert.Equal(t, info.Message, got.Message)
	assert.Equal(t, info.Actor, got.Actor)
	assert.True(t, info.Created.Equal(got.Created))
}

func TestVersions_OldestFirst(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	obj := "class:colors"

	for i, r := range []model.Reason{model.ReasonCreated, model.ReasonUpdated, model.ReasonDeleted} {
		info := createTestInfo(r, i)
		require.NoError(t, s.StageWrite(ctx, obj, "colors.xml", []byte{byte('a' + i)}, info))
		_, err := s.CommitStaged(ctx, obj, info)
		require.NoError(t, err)
	}

	versions, err := s.Versions(ctx, obj)
	require.NoError(t, err)
	require.Len(t, versions, 3)
	assert.Equal(t, int64(1), versions[0].Number)
	assert.Equal(t, "created", versions[0].Info.Message)
	assert.Equal(t, int64(3), versions[2].Number)
	assert.Equal(t, "deleted", versions[2].Info.Message)

	_, err = s.Versions(ctx, "class:missing")
	assert.True(t, model.IsNotFound(err))
}

func TestListObjects(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	ids, err := s.ListObjects(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{}, ids)

	for _, obj := range []string{"class:b", "class:a"} {
		require.NoError(t, s.CreateEmpty(ctx, obj, createTestInfo(model.ReasonInitialized, 0)))
	}

	ids, err = s.ListObjects(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"class:a", "class:b"}, ids)
}
