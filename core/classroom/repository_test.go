package classroom_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/classroom"
	"github.com/trezcool/classroom/core/docstore"
	"github.com/trezcool/classroom/storage/docstore/memdb"
	"github.com/trezcool/classroom/tests"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestClassRepository(t *testing.T) {
	ctx := context.Background()
	store := memdb.New()
	defer store.Close()
	validate, _ := testutil.NewValidator()

	repo := classroom.NewClassRepository(store, validate, testutil.NewLogger(t))
	require.NoError(t, repo.Subscribe(ctx))
	defer repo.Close()

	t.Run("create validates before the store", func(t *testing.T) {
		_, err := repo.Create(ctx, "admin1", classroom.NewClass{Name: "   "})
		assert.Error(t, err)
		_, err = repo.Create(ctx, "", classroom.NewClass{Name: "Anatomia"})
		assert.True(t, core.IsValidationError(err))
		assert.Empty(t, repo.Items())
	})

	first, err := repo.Create(ctx, "admin1", classroom.NewClass{Name: " Anatomia ", Description: "Ossos"})
	require.NoError(t, err)
	assert.Equal(t, "Anatomia", first.Name)
	second, err := repo.Create(ctx, "admin1", classroom.NewClass{Name: "Fisiologia"})
	require.NoError(t, err)

	t.Run("live list follows writes, newest first", func(t *testing.T) {
		items := repo.Items()
		if assert.Len(t, items, 2) {
			assert.Equal(t, second.ID, items[0].ID)
			assert.Equal(t, first.ID, items[1].ID)
			assert.False(t, items[1].CreatedAt.IsZero())
		}
	})

	t.Run("update patches only given fields", func(t *testing.T) {
		require.NoError(t, repo.Update(ctx, first.ID, classroom.UpdateClass{Description: strPtr("Crânio")}))
		cls, err := repo.Get(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, "Anatomia", cls.Name)
		assert.Equal(t, "Crânio", cls.Description)
		assert.False(t, cls.UpdatedAt.IsZero())

		err = repo.Update(ctx, "missing", classroom.UpdateClass{Name: "x"})
		assert.Equal(t, docstore.ErrNotFound, errors.Cause(err))
	})

	t.Run("load is a one-shot read", func(t *testing.T) {
		classes, err := repo.Load(ctx)
		require.NoError(t, err)
		assert.Len(t, classes, 2)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, second.ID))
		require.NoError(t, repo.Delete(ctx, second.ID))
		assert.Len(t, repo.Items(), 1)
	})
}

func TestLessonRepository(t *testing.T) {
	ctx := context.Background()
	store := memdb.New()
	defer store.Close()
	validate, _ := testutil.NewValidator()

	repo := classroom.NewLessonRepository(store, validate, testutil.NewLogger(t))
	require.NoError(t, repo.Subscribe(ctx))
	defer repo.Close()

	day := time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)
	lesson, err := repo.Create(ctx, classroom.NewLesson{
		Title:   "Raio-X",
		ClassID: "c1",
		Date:    day,
		Materials: []classroom.NewMaterial{
			{Name: "Apostila", URL: "https://example.com/apostila.pdf"},
			{Name: "Vídeo", URL: "https://youtu.be/abc"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, classroom.DefaultLessonDuration, lesson.Duration)

	_, err = repo.Create(ctx, classroom.NewLesson{Title: "Tomografia", ClassID: "c1", Date: day.AddDate(0, 0, 7), Duration: 30})
	require.NoError(t, err)

	t.Run("invalid input", func(t *testing.T) {
		tests := []struct {
			name  string
			input classroom.NewLesson
		}{
			{"blank title", classroom.NewLesson{Title: " ", ClassID: "c1", Date: day}},
			{"no class", classroom.NewLesson{Title: "x", Date: day}},
			{"no date", classroom.NewLesson{Title: "x", ClassID: "c1"}},
			{"negative duration", classroom.NewLesson{Title: "x", ClassID: "c1", Date: day, Duration: -5}},
			{"material without url", classroom.NewLesson{Title: "x", ClassID: "c1", Date: day, Materials: []classroom.NewMaterial{{Name: "a"}}}},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				_, err := repo.Create(ctx, tc.input)
				assert.Error(t, err)
			})
		}
		assert.Len(t, repo.Items(), 2)
	})

	t.Run("latest date first, materials decoded", func(t *testing.T) {
		items := repo.Items()
		require.Len(t, items, 2)
		assert.Equal(t, "Tomografia", items[0].Title)
		assert.Equal(t, 30, items[0].Duration)
		got := items[1]
		assert.True(t, day.Equal(got.Date))
		if assert.Len(t, got.Materials, 2) {
			assert.Equal(t, classroom.MaterialPDF, got.Materials[0].Type)
			assert.Equal(t, "https://www.youtube.com/watch?v=abc", got.Materials[1].URL)
			assert.Equal(t, classroom.MaterialVideo, got.Materials[1].Type)
		}
	})

	t.Run("update keeps material types frozen", func(t *testing.T) {
		kept := lesson.Materials[0]
		err := repo.Update(ctx, lesson.ID, classroom.UpdateLesson{
			Duration: intPtr(45),
			Materials: &[]classroom.NewMaterial{
				{ID: kept.ID, Name: "Apostila v2", URL: "https://example.com/other.png"},
			},
		})
		require.NoError(t, err)

		got, err := repo.Get(ctx, lesson.ID)
		require.NoError(t, err)
		assert.Equal(t, "Raio-X", got.Title)
		assert.Equal(t, 45, got.Duration)
		if assert.Len(t, got.Materials, 1) {
			assert.Equal(t, kept.ID, got.Materials[0].ID)
			assert.Equal(t, "Apostila v2", got.Materials[0].Name)
			assert.Equal(t, classroom.MaterialPDF, got.Materials[0].Type)
		}
	})

	t.Run("by class", func(t *testing.T) {
		ids, err := repo.ByClass(ctx, "c1")
		require.NoError(t, err)
		assert.Len(t, ids, 2)
	})
}

func TestAttendanceRepository(t *testing.T) {
	ctx := context.Background()
	store := memdb.New()
	defer store.Close()
	validate, _ := testutil.NewValidator()

	repo := classroom.NewAttendanceRepository(store, validate, testutil.NewLogger(t))
	require.NoError(t, repo.Subscribe(ctx))
	defer repo.Close()

	t.Run("marking twice keeps one attendance", func(t *testing.T) {
		first, err := repo.Mark(ctx, "s1", "l1", "10.0.0.1")
		require.NoError(t, err)
		second, err := repo.Mark(ctx, "s1", "l1", "")
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "10.0.0.1", second.IPAddress)
		assert.Len(t, repo.Items(), 1)
	})

	t.Run("concurrent marks", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.Mark(ctx, "s2", "l1", "")
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
		assert.Len(t, repo.Items(), 2)
	})

	t.Run("unmark frees the pair", func(t *testing.T) {
		require.NoError(t, repo.Unmark(ctx, "s1", "l1"))
		require.NoError(t, repo.Unmark(ctx, "s1", "l1"))
		assert.Len(t, repo.Items(), 1)

		_, err := repo.Mark(ctx, "s1", "l1", "")
		require.NoError(t, err)
		assert.Len(t, repo.Items(), 2)
	})

	t.Run("delete by lesson", func(t *testing.T) {
		_, err := repo.Mark(ctx, "s1", "l2", "")
		require.NoError(t, err)
		n, err := repo.DeleteByLesson(ctx, "l1")
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		items := repo.Items()
		if assert.Len(t, items, 1) {
			assert.Equal(t, "l2", items[0].LessonID)
		}
	})

	t.Run("ids are required", func(t *testing.T) {
		_, err := repo.Mark(ctx, "", "l1", "")
		assert.True(t, core.IsValidationError(err))
		assert.True(t, core.IsValidationError(repo.Unmark(ctx, "s1", "")))
	})
}

func TestEnrollmentRepository(t *testing.T) {
	ctx := context.Background()
	store := memdb.New()
	defer store.Close()
	validate, _ := testutil.NewValidator()

	repo := classroom.NewEnrollmentRepository(store, validate, testutil.NewLogger(t))
	require.NoError(t, repo.Subscribe(ctx))
	defer repo.Close()

	enr, created, err := repo.Enroll(ctx, "s1", "c1")
	require.NoError(t, err)
	assert.True(t, created)
	again, created, err := repo.Enroll(ctx, "s1", "c1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, enr.ID, again.ID)

	_, _, err = repo.Enroll(ctx, "s2", "c1")
	require.NoError(t, err)
	_, _, err = repo.Enroll(ctx, "s1", "c2")
	require.NoError(t, err)
	assert.Len(t, repo.Items(), 3)

	require.NoError(t, repo.Unenroll(ctx, "s1", "c2"))
	assert.Len(t, repo.Items(), 2)

	n, err := repo.DeleteByClass(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Empty(t, repo.Items())
}

func TestRatingRepository(t *testing.T) {
	ctx := context.Background()
	store := memdb.New()
	defer store.Close()
	validate, _ := testutil.NewValidator()

	repo := classroom.NewRatingRepository(store, validate, testutil.NewLogger(t))
	require.NoError(t, repo.Subscribe(ctx))
	defer repo.Close()

	t.Run("rating out of range", func(t *testing.T) {
		for _, r := range []int{0, 6, -1} {
			_, _, err := repo.Rate(ctx, "s1", classroom.NewRating{LessonID: "l1", MaterialID: "m1", Rating: r})
			assert.Error(t, err)
		}
		assert.Empty(t, repo.Items())
	})

	t.Run("second rating overwrites", func(t *testing.T) {
		first, created, err := repo.Rate(ctx, "s1", classroom.NewRating{LessonID: "l1", MaterialID: "m1", Rating: 2})
		require.NoError(t, err)
		assert.True(t, created)
		second, created, err := repo.Rate(ctx, "s1", classroom.NewRating{LessonID: "l1", MaterialID: "m1", Rating: 5})
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first.ID, second.ID)

		items := repo.Items()
		if assert.Len(t, items, 1) {
			assert.Equal(t, 5, items[0].Rating)
		}
	})

	t.Run("delete by lesson", func(t *testing.T) {
		_, _, err := repo.Rate(ctx, "s2", classroom.NewRating{LessonID: "l1", MaterialID: "m1", Rating: 3})
		require.NoError(t, err)
		_, _, err = repo.Rate(ctx, "s2", classroom.NewRating{LessonID: "l2", MaterialID: "m9", Rating: 3})
		require.NoError(t, err)

		n, err := repo.DeleteByLesson(ctx, "l1")
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Len(t, repo.Items(), 1)
	})
}
