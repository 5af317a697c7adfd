package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/marketsync/internal/domain/fiscal"
	"github.com/erp/marketsync/internal/domain/order"
)

func TestGormFiscalJobRepository(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	setup := func(t *testing.T, n int) (*GormOrderRepository, *GormFiscalJobRepository, []*fiscal.Job) {
		db := setupTestDB(t)
		orders := NewGormOrderRepository(db)
		jobs := make([]*fiscal.Job, 0, n)
		for i := 0; i < n; i++ {
			o := newTestOrder(t, uuid.NewString(), base)
			job := fiscal.NewJob(o.ID, base.Add(time.Duration(i)*time.Minute))
			inserted, err := orders.Insert(ctx, o, job)
			require.NoError(t, err)
			require.True(t, inserted)
			jobs = append(jobs, job)
		}
		return orders, NewGormFiscalJobRepository(db), jobs
	}

	t.Run("FindUnprocessed returns oldest first up to limit", func(t *testing.T) {
		_, repo, jobs := setup(t, 4)

		found, err := repo.FindUnprocessed(ctx, 3)
		require.NoError(t, err)
		require.Len(t, found, 3)
		assert.Equal(t, jobs[0].ID, found[0].ID)
		assert.Equal(t, jobs[2].ID, found[2].ID)

		none, err := repo.FindUnprocessed(ctx, 0)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("FindUnprocessed puts failed jobs behind fresh ones", func(t *testing.T) {
		_, repo, jobs := setup(t, 3)
		jobs[0].RecordFailure(errors.New("order missing"))
		require.NoError(t, repo.RecordFailure(ctx, jobs[0]))

		found, err := repo.FindUnprocessed(ctx, 3)
		require.NoError(t, err)
		require.Len(t, found, 3)
		assert.Equal(t, []uuid.UUID{jobs[1].ID, jobs[2].ID, jobs[0].ID},
			[]uuid.UUID{found[0].ID, found[1].ID, found[2].ID})

		first, err := repo.FindUnprocessed(ctx, 1)
		require.NoError(t, err)
		require.Len(t, first, 1)
		assert.Equal(t, jobs[1].ID, first[0].ID)
	})

	t.Run("FindUnprocessed breaks timestamp ties by id", func(t *testing.T) {
		db := setupTestDB(t)
		orders := NewGormOrderRepository(db)
		var ids []uuid.UUID
		for i := 0; i < 3; i++ {
			o := newTestOrder(t, uuid.NewString(), base)
			job := fiscal.NewJob(o.ID, base)
			_, err := orders.Insert(ctx, o, job)
			require.NoError(t, err)
			ids = append(ids, job.ID)
		}
		repo := NewGormFiscalJobRepository(db)

		for i := 0; i < 3; i++ {
			found, err := repo.FindUnprocessed(ctx, 3)
			require.NoError(t, err)
			require.Len(t, found, 3)
			for k := 1; k < len(found); k++ {
				assert.Less(t, found[k-1].ID.String(), found[k].ID.String())
			}
		}
	})

	t.Run("Complete attaches result and marks processed", func(t *testing.T) {
		orders, repo, jobs := setup(t, 1)
		job := jobs[0]
		result := order.FiscalResult{
			DocumentNumber: "4711",
			XMLPath:        "nfe_files/NFe_4711.xml",
			DocumentPath:   "nfe_files/DANFE_4711.pdf",
			EmittedAt:      base.Add(time.Hour),
		}

		require.NoError(t, repo.Complete(ctx, job, result))
		assert.True(t, job.Processed)

		stored, err := repo.FindByID(ctx, job.ID)
		require.NoError(t, err)
		assert.True(t, stored.Processed)
		require.NotNil(t, stored.ProcessedAt)

		o, err := orders.FindByID(ctx, job.OrderID)
		require.NoError(t, err)
		require.NotNil(t, o.FiscalResult)
		assert.Equal(t, "4711", o.FiscalResult.DocumentNumber)
		assert.Equal(t, "nfe_files/DANFE_4711.pdf", o.FiscalResult.DocumentPath)

		pending, err := repo.FindUnprocessed(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("Complete refuses a second result", func(t *testing.T) {
		_, repo, jobs := setup(t, 1)
		require.NoError(t, repo.Complete(ctx, jobs[0], order.FiscalResult{DocumentNumber: "1"}))

		again := *jobs[0]
		again.Processed = false
		err := repo.Complete(ctx, &again, order.FiscalResult{DocumentNumber: "2"})
		assert.ErrorIs(t, err, order.ErrFiscalResultAlreadyAttached)
	})

	t.Run("RecordFailure keeps job pending", func(t *testing.T) {
		_, repo, jobs := setup(t, 2)
		jobs[1].RecordFailure(errors.New("bling: 500"))
		require.NoError(t, repo.RecordFailure(ctx, jobs[1]))

		stored, err := repo.FindByID(ctx, jobs[1].ID)
		require.NoError(t, err)
		assert.False(t, stored.Processed)
		assert.Equal(t, 1, stored.Attempts)
		assert.Equal(t, "bling: 500", stored.LastError)

		jobs[1].DocumentNumber = "4712"
		jobs[1].RecordFailure(errors.New("store: bucket unavailable"))
		require.NoError(t, repo.RecordFailure(ctx, jobs[1]))
		stored, err = repo.FindByID(ctx, jobs[1].ID)
		require.NoError(t, err)
		assert.Equal(t, 2, stored.Attempts)
		assert.Equal(t, "4712", stored.DocumentNumber)

		require.NoError(t, repo.MarkProcessed(ctx, jobs[0]))
		stats, err := repo.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, fiscal.QueueStats{Pending: 1, Failing: 1, Processed: 1}, stats)
	})

	t.Run("unknown job", func(t *testing.T) {
		_, repo, _ := setup(t, 0)
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, fiscal.ErrJobNotFound)

		err = repo.MarkProcessed(ctx, &fiscal.Job{ID: uuid.New()})
		assert.ErrorIs(t, err, fiscal.ErrJobNotFound)
	})
}
