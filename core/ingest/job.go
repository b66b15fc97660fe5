package ingest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"melodex/logger"
	"melodex/model"
	"melodex/repository"
)

// Provider fetches a page of track descriptors for a genre tag.
type Provider interface {
	FetchTracks(ctx context.Context, tag string, limit int) ([]model.TrackDescriptor, error)
}

// ReportStore persists finished job reports for later retrieval.
type ReportStore interface {
	Store(ctx context.Context, userID int64, tag string, report *JobReport) error
}

// Controller drives a full ingestion run: one provider fetch, then one
// reconciliation per descriptor under bounded concurrency.
type Controller struct {
	provider     Provider
	reconciler   *Reconciler
	songs        repository.SongRepository
	reports      ReportStore // optional
	workers      int
	maxLimit     int
	defaultGenre string
}

// NewController wires an ingestion job controller. reports may be nil.
func NewController(
	provider Provider,
	reconciler *Reconciler,
	songs repository.SongRepository,
	reports ReportStore,
	workers, maxLimit int,
	defaultGenre string,
) *Controller {
	if workers < 1 {
		workers = 1
	}
	return &Controller{
		provider:     provider,
		reconciler:   reconciler,
		songs:        songs,
		reports:      reports,
		workers:      workers,
		maxLimit:     maxLimit,
		defaultGenre: defaultGenre,
	}
}

// Run executes one ingestion job. Only a total provider-fetch failure is a
// hard error; per-descriptor failures land in the report. With topUp set,
// the external fetch is skipped entirely when the local catalog already
// holds enough songs for the genre.
func (c *Controller) Run(ctx context.Context, tag string, limit int, userID int64, topUp bool) (*JobReport, error) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		tag = c.defaultGenre
	}
	if limit < 1 {
		limit = 1
	}
	if limit > c.maxLimit {
		limit = c.maxLimit
	}

	report := &JobReport{
		Tag:       tag,
		Limit:     limit,
		UserID:    userID,
		StartedAt: time.Now(),
	}

	if topUp {
		count, err := c.songs.CountByGenre(ctx, tag, userID)
		if err != nil {
			return nil, err
		}
		if count >= int64(limit) {
			report.ToppedUp = true
			report.FinishedAt = time.Now()
			logger.Info("Ingestion satisfied from local catalog",
				logger.String("tag", tag),
				logger.Int64("localCount", count),
				logger.Int("limit", limit))
			c.storeReport(ctx, report)
			return report, nil
		}
	}

	descriptors, err := c.provider.FetchTracks(ctx, tag, limit)
	if err != nil {
		return nil, err
	}

	report.Outcomes = c.reconcileAll(ctx, descriptors, userID)

	for _, o := range report.Outcomes {
		switch o.Status {
		case StatusCreated:
			report.Created++
		case StatusSkipped:
			report.Skipped++
		case StatusSkippedCancelled:
			report.Cancelled++
		case StatusFailed:
			report.Failed++
		}
	}
	report.FinishedAt = time.Now()

	logger.Info("Ingestion run finished",
		logger.String("tag", tag),
		logger.Int("created", report.Created),
		logger.Int("skipped", report.Skipped),
		logger.Int("failed", report.Failed),
		logger.Int("cancelled", report.Cancelled))

	c.storeReport(ctx, report)
	return report, nil
}

// reconcileAll runs descriptors through a bounded worker pool. On
// cancellation no new descriptors are started; in-flight ones finish with
// an uncancelled context so partially created entities are never left
// half-written, and unstarted ones are reported as cancelled skips.
func (c *Controller) reconcileAll(ctx context.Context, descriptors []model.TrackDescriptor, userID int64) []Outcome {
	jobs := make(chan model.TrackDescriptor)
	results := make(chan Outcome, len(descriptors))

	workCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for desc := range jobs {
				results <- c.reconciler.Reconcile(workCtx, desc, userID)
			}
		}()
	}

dispatch:
	for i, desc := range descriptors {
		select {
		case <-ctx.Done():
			for _, rest := range descriptors[i:] {
				results <- Outcome{
					ExternalID: rest.ExternalID,
					Rank:       rest.Rank,
					Status:     StatusSkippedCancelled,
					Reason:     ctx.Err().Error(),
				}
			}
			break dispatch
		case jobs <- desc:
		}
	}
	close(jobs)
	wg.Wait()
	close(results)

	outcomes := make([]Outcome, 0, len(descriptors))
	for o := range results {
		outcomes = append(outcomes, o)
	}

	// Workers finish out of order; restore the provider's ranking for the
	// report.
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].Rank < outcomes[j].Rank })

	return outcomes
}

func (c *Controller) storeReport(ctx context.Context, report *JobReport) {
	if c.reports == nil {
		return
	}
	if err := c.reports.Store(context.WithoutCancel(ctx), report.UserID, report.Tag, report); err != nil {
		logger.Warn("Failed to store job report",
			logger.String("tag", report.Tag),
			logger.ErrorField(err))
	}
}
