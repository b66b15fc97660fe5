package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"melodex/model"
)

type fakeProvider struct {
	mu          sync.Mutex
	descriptors []model.TrackDescriptor
	err         error
	calls       int
	lastTag     string
	lastLimit   int
}

func (f *fakeProvider) FetchTracks(ctx context.Context, tag string, limit int) ([]model.TrackDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastTag = tag
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.descriptors, nil
}

type fakeReportStore struct {
	mu      sync.Mutex
	reports []*JobReport
}

func (f *fakeReportStore) Store(ctx context.Context, userID int64, tag string, report *JobReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, report)
	return nil
}

func descriptorsFor(ids ...string) []model.TrackDescriptor {
	out := make([]model.TrackDescriptor, 0, len(ids))
	for i, id := range ids {
		out = append(out, model.TrackDescriptor{
			ExternalID: id,
			Rank:       i,
			Title:      "Track " + id,
			ArtistName: "Artist " + id,
			Genres:     []string{"electronic"},
		})
	}
	return out
}

func newTestController(provider Provider, songs *fakeSongRepo, reports ReportStore, workers int) *Controller {
	reconciler := newTestReconciler(newFakeArtistRepo(), newFakeAlbumRepo(), songs)
	return NewController(provider, reconciler, songs, reports, workers, 100, "pop")
}

func TestRunCountsOutcomes(t *testing.T) {
	songs := newFakeSongRepo()
	provider := &fakeProvider{descriptors: descriptorsFor("a", "b", "c")}
	reports := &fakeReportStore{}
	c := newTestController(provider, songs, reports, 4)

	// Seed one song so its descriptor is skipped on the run.
	first := newTestReconciler(newFakeArtistRepo(), newFakeAlbumRepo(), songs)
	if o := first.Reconcile(context.Background(), provider.descriptors[1], 7); o.Status != StatusCreated {
		t.Fatalf("seed Status = %s", o.Status)
	}

	report, err := c.Run(context.Background(), "electronic", 3, 7, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Created != 2 || report.Skipped != 1 || report.Failed != 0 || report.Cancelled != 0 {
		t.Errorf("report = created %d skipped %d failed %d cancelled %d, want 2/1/0/0",
			report.Created, report.Skipped, report.Failed, report.Cancelled)
	}
	if len(report.Outcomes) != 3 {
		t.Fatalf("outcomes = %d, want 3", len(report.Outcomes))
	}
	for i, o := range report.Outcomes {
		if o.Rank != i {
			t.Errorf("outcome %d has rank %d, provider order must be preserved", i, o.Rank)
		}
	}
	if len(reports.reports) != 1 {
		t.Errorf("stored reports = %d, want 1", len(reports.reports))
	}
}

func TestRunTopUpSkipsFetchWhenSatisfied(t *testing.T) {
	songs := newFakeSongRepo()
	provider := &fakeProvider{descriptors: descriptorsFor("a", "b")}
	c := newTestController(provider, songs, &fakeReportStore{}, 2)

	seed := newTestReconciler(newFakeArtistRepo(), newFakeAlbumRepo(), songs)
	for _, desc := range descriptorsFor("x", "y") {
		if o := seed.Reconcile(context.Background(), desc, 7); o.Status != StatusCreated {
			t.Fatalf("seed Status = %s", o.Status)
		}
	}

	report, err := c.Run(context.Background(), "electronic", 2, 7, true)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.ToppedUp {
		t.Error("expected a topped-up report")
	}
	if provider.calls != 0 {
		t.Errorf("provider calls = %d, want 0 when satisfied locally", provider.calls)
	}
}

func TestRunTopUpFetchesWhenShort(t *testing.T) {
	songs := newFakeSongRepo()
	provider := &fakeProvider{descriptors: descriptorsFor("a", "b", "c")}
	c := newTestController(provider, songs, &fakeReportStore{}, 2)

	report, err := c.Run(context.Background(), "electronic", 3, 7, true)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.ToppedUp {
		t.Error("report must not claim top-up after a fetch")
	}
	if provider.calls != 1 {
		t.Errorf("provider calls = %d, want 1", provider.calls)
	}
	if report.Created != 3 {
		t.Errorf("created = %d, want 3", report.Created)
	}
}

func TestRunProviderFailureIsFatal(t *testing.T) {
	provider := &fakeProvider{err: errors.New("provider down")}
	c := newTestController(provider, newFakeSongRepo(), nil, 2)

	if _, err := c.Run(context.Background(), "electronic", 3, 7, false); err == nil {
		t.Fatal("expected a hard error when the fetch fails entirely")
	}
}

func TestRunNormalizesTagAndClampsLimit(t *testing.T) {
	provider := &fakeProvider{descriptors: nil, err: nil}
	c := newTestController(provider, newFakeSongRepo(), nil, 2)

	if _, err := c.Run(context.Background(), "  ROCK ", 500, 7, false); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if provider.lastTag != "rock" {
		t.Errorf("tag = %q, want rock", provider.lastTag)
	}
	if provider.lastLimit != 100 {
		t.Errorf("limit = %d, want clamped to 100", provider.lastLimit)
	}

	if _, err := c.Run(context.Background(), "", 0, 7, false); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if provider.lastTag != "pop" {
		t.Errorf("empty tag should default, got %q", provider.lastTag)
	}
	if provider.lastLimit != 1 {
		t.Errorf("limit = %d, want raised to 1", provider.lastLimit)
	}
}

func TestRunCancellationMarksUnstartedAndFinishesInFlight(t *testing.T) {
	songs := newFakeSongRepo()
	gate := make(chan struct{})
	started := make(chan struct{})
	songs.lookupGate = gate
	songs.lookupStarted = started

	provider := &fakeProvider{descriptors: descriptorsFor("a", "b", "c")}
	c := newTestController(provider, songs, nil, 1)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan *JobReport, 1)
	go func() {
		report, err := c.Run(ctx, "electronic", 3, 7, false)
		if err != nil {
			t.Errorf("Run: %v", err)
		}
		done <- report
	}()

	// Wait until the single worker is parked inside the first reconcile,
	// cancel so the dispatcher drops the rest, then let the in-flight one
	// finish.
	<-started
	cancel()
	time.Sleep(50 * time.Millisecond)
	close(gate)

	report := <-done
	if report == nil {
		t.Fatal("no report")
	}
	if report.Created != 1 {
		t.Errorf("created = %d, want 1 (the in-flight item must complete)", report.Created)
	}
	if report.Cancelled != 2 {
		t.Errorf("cancelled = %d, want 2", report.Cancelled)
	}
	for _, o := range report.Outcomes {
		if o.Status == StatusSkippedCancelled && o.Reason == "" {
			t.Error("cancelled outcomes must carry a reason")
		}
	}
}
