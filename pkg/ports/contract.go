package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/fixpoint/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunReportStoreContract runs a suite of tests to verify that a ReportStore implementation
// adheres to the defined interface contract.
func RunReportStoreContract(t *testing.T, store ReportStore) {
	ctx := context.Background()
	reportID := "contract-test-report-" + time.Now().Format("20060102150405")

	newReport := func(id string) *domain.Report {
		return &domain.Report{
			ID:         id,
			Program:    "contract.yaml",
			Status:     domain.StatusCompleted,
			StartedAt:  time.Now().UTC().Truncate(time.Second),
			FinishedAt: time.Now().UTC().Truncate(time.Second),
			Iterations: 7,
			Reached:    5,
			Targets:    []string{"(ERR, {x=1})"},
			Cache:      &domain.CacheStats{Lookups: 3, Hits: 1, Misses: 2},
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		report := newReport(reportID)

		err := store.Save(ctx, report)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, reportID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, report.Status, loaded.Status)
		assert.Equal(t, report.Iterations, loaded.Iterations)
		assert.Equal(t, report.Targets, loaded.Targets)
		require.NotNil(t, loaded.Cache)
		assert.Equal(t, 1, loaded.Cache.Hits)
		assert.True(t, report.StartedAt.Equal(loaded.StartedAt))
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+reportID)
		assert.ErrorIs(t, err, domain.ErrReportNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, newReport(reportID))
		require.NoError(t, err)

		err = store.Delete(ctx, reportID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, reportID)
		assert.ErrorIs(t, err, domain.ErrReportNotFound, "Load after Delete should return ErrReportNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := reportID + "-1"
		id2 := reportID + "-2"
		_ = store.Save(ctx, newReport(id1))
		_ = store.Save(ctx, newReport(id2))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		reports, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, reports, id1)
		assert.Contains(t, reports, id2)
	})
}
