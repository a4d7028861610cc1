package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	path := ObjectPath(uuid.New(), uuid.New())

	require.NoError(t, store.Upload(ctx, path, strings.NewReader("%PDF-1.4 test content")))

	reader, err := store.Download(ctx, path)
	require.NoError(t, err)
	defer reader.Close()

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 test content", string(data))

	require.NoError(t, store.Delete(ctx, path))

	_, err = store.Download(ctx, path)
	assert.Error(t, err)

	// Deleting a missing object is not an error
	assert.NoError(t, store.Delete(ctx, path))
}

func TestObjectPath(t *testing.T) {
	userID := uuid.New()
	fileID := uuid.New()
	assert.Equal(t, userID.String()+"/"+fileID.String()+".pdf", ObjectPath(userID, fileID))
}
