package address

import (
	"context"
	"testing"

	"github.com/angelmondragon/marketplace-checkout/internal/persistence"
	pkgerrors "github.com/angelmondragon/marketplace-checkout/pkg/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveDeduplicatesByLocation(t *testing.T) {
	book := NewBook(persistence.NewMemory(), nil)
	ctx := context.Background()

	first, created, err := book.Save(ctx, "user:1", Address{Street: " Main St 5 ", City: "Berlin", PostalCode: "10115"})
	require.NoError(t, err)
	require.True(t, created)
	assert.NotEqual(t, uuid.Nil, first.ID)
	assert.Equal(t, "Main St 5", first.Street)

	again, created, err := book.Save(ctx, "user:1", Address{Street: "main  st 5", City: "BERLIN", PostalCode: "10115", Instructions: "ring twice"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	list, err := book.List(ctx, "user:1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	other, err := book.List(ctx, "user:2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSaveRejectsIncompleteAddress(t *testing.T) {
	book := NewBook(persistence.NewMemory(), nil)
	_, _, err := book.Save(context.Background(), "user:1", Address{Street: "Main St 5", City: " "})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGet(t *testing.T) {
	book := NewBook(persistence.NewMemory(), nil)
	ctx := context.Background()
	saved, _, err := book.Save(ctx, "session:abc", Address{Street: "Elm 1", City: "Paris", PostalCode: "75001"})
	require.NoError(t, err)

	got, err := book.Get(ctx, "session:abc", saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved, got)

	_, err = book.Get(ctx, "session:abc", uuid.New())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestMalformedBookReadsEmpty(t *testing.T) {
	persist := persistence.NewMemory()
	ctx := context.Background()
	require.NoError(t, persist.Save(ctx, persistence.Key(snapshotKind, "user:1"), []byte("not-json")))

	book := NewBook(persist, nil)
	list, err := book.List(ctx, "user:1")
	require.NoError(t, err)
	assert.Empty(t, list)

	_, created, err := book.Save(ctx, "user:1", Address{Street: "Elm 1", City: "Paris", PostalCode: "75001"})
	require.NoError(t, err)
	assert.True(t, created)
}

func TestBlankOwnerRejected(t *testing.T) {
	book := NewBook(persistence.NewMemory(), nil)
	if _, err := book.List(context.Background(), ""); err == nil {
		t.Fatal("expected error for blank owner")
	}
}
