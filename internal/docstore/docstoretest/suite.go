// Package docstoretest holds the behaviour every docstore backend has to satisfy.
package docstoretest

import (
	"context"
	"testing"
	"time"

	"github.com/gmbtravels/gmbservice/internal/docstore"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Vehicle struct {
	docstore.Meta `bson:",inline"`
	Make          string   `json:"make" bson:"make"`
	Model         string   `json:"model" bson:"model"`
	Capacity      int      `json:"capacity" bson:"capacity"`
	Features      []string `json:"features,omitempty" bson:"features,omitempty"`
	IsActive      bool     `json:"isActive" bson:"isActive"`
}

func fakeVehicle() Vehicle {
	return Vehicle{
		Make:     gofakeit.CarMaker(),
		Model:    gofakeit.CarModel(),
		Capacity: gofakeit.IntRange(2, 12),
		Features: []string{"AC", gofakeit.Word()},
		IsActive: true,
	}
}

// RunBackendSuite runs the shared backend behaviour against a fresh backend per subtest.
// Collection names are randomized, so one backend may be shared across subtests.
func RunBackendSuite(t *testing.T, backend docstore.Backend) {
	t.Helper()

	newColl := func() *docstore.Collection[Vehicle] {
		return docstore.NewCollection[Vehicle](backend, "vehicles_"+gofakeit.LetterN(8))
	}

	t.Run("insert and get", func(t *testing.T) {
		ctx := context.Background()
		coll := newColl()

		v := fakeVehicle()
		inserted, err := coll.Insert(ctx, v)
		require.NoError(t, err)
		require.NotEmpty(t, inserted.ID)
		assert.False(t, inserted.CreatedAt.IsZero())
		assert.True(t, inserted.CreatedAt.Equal(inserted.UpdatedAt))

		got, err := coll.Get(ctx, inserted.ID)
		require.NoError(t, err)
		assert.Equal(t, inserted.ID, got.ID)
		assert.Equal(t, v.Make, got.Make)
		assert.Equal(t, v.Model, got.Model)
		assert.Equal(t, v.Capacity, got.Capacity)
		assert.Equal(t, v.Features, got.Features)
		assert.True(t, inserted.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("insert keeps given id and rejects duplicates", func(t *testing.T) {
		ctx := context.Background()
		coll := newColl()

		v := fakeVehicle()
		v.ID = "site"
		inserted, err := coll.Insert(ctx, v)
		require.NoError(t, err)
		assert.Equal(t, "site", inserted.ID)

		_, err = coll.Insert(ctx, v)
		assert.ErrorIs(t, err, docstore.ErrDuplicateID)
	})

	t.Run("list keeps insertion order", func(t *testing.T) {
		ctx := context.Background()
		coll := newColl()

		empty, err := coll.List(ctx)
		require.NoError(t, err)
		assert.NotNil(t, empty)
		assert.Empty(t, empty)

		var ids []string
		for i := 0; i < 5; i++ {
			inserted, err := coll.Insert(ctx, fakeVehicle())
			require.NoError(t, err)
			ids = append(ids, inserted.ID)
			// distinct createdAt values for backends ordering on it
			time.Sleep(2 * time.Millisecond)
		}

		list, err := coll.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 5)
		for i, v := range list {
			assert.Equal(t, ids[i], v.ID)
		}

		count, err := coll.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(5), count)
	})

	t.Run("update merges fields and is idempotent", func(t *testing.T) {
		ctx := context.Background()
		coll := newColl()

		v := fakeVehicle()
		inserted, err := coll.Insert(ctx, v)
		require.NoError(t, err)

		time.Sleep(2 * time.Millisecond)
		fields := map[string]any{"capacity": 9, "features": []string{"WiFi"}}
		updated, err := coll.Update(ctx, inserted.ID, fields)
		require.NoError(t, err)
		assert.Equal(t, 9, updated.Capacity)
		assert.Equal(t, []string{"WiFi"}, updated.Features)
		assert.Equal(t, v.Make, updated.Make)
		assert.Equal(t, v.Model, updated.Model)
		assert.True(t, inserted.CreatedAt.Equal(updated.CreatedAt))
		assert.True(t, updated.UpdatedAt.After(inserted.UpdatedAt))

		again, err := coll.Update(ctx, inserted.ID, fields)
		require.NoError(t, err)
		assert.Equal(t, updated.Make, again.Make)
		assert.Equal(t, updated.Model, again.Model)
		assert.Equal(t, updated.Capacity, again.Capacity)
		assert.Equal(t, updated.Features, again.Features)
		assert.Equal(t, updated.IsActive, again.IsActive)

		got, err := coll.Get(ctx, inserted.ID)
		require.NoError(t, err)
		assert.Equal(t, 9, got.Capacity)

		// id and createdAt are never overwritten
		protected, err := coll.Update(ctx, inserted.ID, map[string]any{"id": "other", "createdAt": time.Unix(0, 0)})
		require.NoError(t, err)
		assert.Equal(t, inserted.ID, protected.ID)
		assert.True(t, inserted.CreatedAt.Equal(protected.CreatedAt))
	})

	t.Run("missing documents", func(t *testing.T) {
		ctx := context.Background()
		coll := newColl()

		_, err := coll.Get(ctx, "unknown-id")
		assert.ErrorIs(t, err, docstore.ErrNotFound)
		_, err = coll.Update(ctx, "unknown-id", map[string]any{"capacity": 3})
		assert.ErrorIs(t, err, docstore.ErrNotFound)
		assert.ErrorIs(t, coll.Delete(ctx, "unknown-id"), docstore.ErrNotFound)
	})

	t.Run("delete removes the document", func(t *testing.T) {
		ctx := context.Background()
		coll := newColl()

		first, err := coll.Insert(ctx, fakeVehicle())
		require.NoError(t, err)
		second, err := coll.Insert(ctx, fakeVehicle())
		require.NoError(t, err)

		require.NoError(t, coll.Delete(ctx, first.ID))

		_, err = coll.Get(ctx, first.ID)
		assert.ErrorIs(t, err, docstore.ErrNotFound)
		_, err = coll.Update(ctx, first.ID, map[string]any{"capacity": 4})
		assert.ErrorIs(t, err, docstore.ErrNotFound)
		assert.ErrorIs(t, coll.Delete(ctx, first.ID), docstore.ErrNotFound)

		list, err := coll.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, second.ID, list[0].ID)
	})
}
