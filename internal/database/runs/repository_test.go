package runs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mrlokans/recall/internal/entities"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&entities.ExtractionRun{})
	require.NoError(t, err)

	return db
}

func seedRuns(t *testing.T, repo *Repository, base time.Time) {
	for i := 0; i < 15; i++ {
		run := &entities.ExtractionRun{
			BookName:  "book",
			BookID:    uint(i%3 + 1),
			Status:    entities.RunStatusCompleted,
			StartedAt: base.Add(time.Duration(i) * time.Hour),
		}
		if i%5 == 0 {
			run.Status = entities.RunStatusFailed
			run.BookID = 0
			run.FailureKind = "drm_protected"
		}
		require.NoError(t, repo.Save(run))
	}
}

func TestRepository_Save(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	run := &entities.ExtractionRun{BookName: "moby", Status: entities.RunStatusCompleted}
	require.NoError(t, repo.Save(run))
	assert.NotZero(t, run.ID)
	assert.False(t, run.StartedAt.IsZero())
}

func TestRepository_Page(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	seedRuns(t, repo, base)

	t.Run("first page", func(t *testing.T) {
		runs, total, err := repo.Page("", 10, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(15), total)
		require.Len(t, runs, 10)
		assert.True(t, runs[0].StartedAt.Equal(base.Add(14*time.Hour)))
	})

	t.Run("second page", func(t *testing.T) {
		runs, _, err := repo.Page("", 10, 10)
		require.NoError(t, err)
		assert.Len(t, runs, 5)
	})

	t.Run("by status", func(t *testing.T) {
		runs, total, err := repo.Page(entities.RunStatusFailed, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		for _, r := range runs {
			assert.Equal(t, "drm_protected", r.FailureKind)
		}
	})

	t.Run("negative offset starts at the beginning", func(t *testing.T) {
		runs, _, err := repo.Page("", 1, -4)
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.True(t, runs[0].StartedAt.Equal(base.Add(14*time.Hour)))
	})
}

func TestRepository_RecentAndForBook(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	seedRuns(t, repo, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	all, err := repo.Recent(0)
	require.NoError(t, err)
	assert.Len(t, all, 15)

	latest, err := repo.Recent(2)
	require.NoError(t, err)
	assert.Len(t, latest, 2)

	forBook, err := repo.ForBook(2)
	require.NoError(t, err)
	for _, r := range forBook {
		assert.Equal(t, uint(2), r.BookID)
	}
	assert.NotEmpty(t, forBook)
}

func TestRepository_DeleteOlderThan(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	seedRuns(t, repo, base)

	deleted, err := repo.DeleteOlderThan(base.Add(5 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(5), deleted)

	remaining, err := repo.Recent(0)
	require.NoError(t, err)
	assert.Len(t, remaining, 10)
}

func TestRepository_Prune(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	require.NoError(t, repo.Save(&entities.ExtractionRun{BookName: "old", StartedAt: time.Now().Add(-72 * time.Hour)}))
	require.NoError(t, repo.Save(&entities.ExtractionRun{BookName: "new"}))

	deleted, err := repo.Prune(48 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	remaining, err := repo.Recent(0)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "new", remaining[0].BookName)
}
