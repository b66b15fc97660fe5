package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"melodex/model"
	"melodex/repository"
)

// In-memory repository fakes. They honor the same natural-key contracts as
// the GORM implementations so reconciliation logic can be exercised without
// a database.

type fakeArtistRepo struct {
	mu      sync.Mutex
	rows    map[string]*model.Artist // name|user
	nextID  int
	failOn  string
	created int
}

func newFakeArtistRepo() *fakeArtistRepo {
	return &fakeArtistRepo{rows: make(map[string]*model.Artist)}
}

func artistKey(name string, userID int64) string {
	return fmt.Sprintf("%s|%d", name, userID)
}

func (f *fakeArtistRepo) FindOrCreate(ctx context.Context, artist *model.Artist) (*model.Artist, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if artist.Name == f.failOn {
		return nil, false, errors.New("artist store down")
	}
	key := artistKey(artist.Name, artist.UserID)
	if existing, ok := f.rows[key]; ok {
		return existing, false, nil
	}
	f.nextID++
	artist.ID = fmt.Sprintf("artist-%d", f.nextID)
	f.rows[key] = artist
	f.created++
	return artist, true, nil
}

func (f *fakeArtistRepo) GetByNameAndUser(ctx context.Context, name string, userID int64) (*model.Artist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if name == f.failOn {
		return nil, errors.New("artist store down")
	}
	return f.rows[artistKey(name, userID)], nil
}

func (f *fakeArtistRepo) ListByUser(ctx context.Context, userID int64) ([]*model.Artist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Artist
	for _, a := range f.rows {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeAlbumRepo struct {
	mu      sync.Mutex
	rows    map[string]*model.Album
	nextID  int
	created int
}

func newFakeAlbumRepo() *fakeAlbumRepo {
	return &fakeAlbumRepo{rows: make(map[string]*model.Album)}
}

func albumKey(title, artistID string, userID int64) string {
	return fmt.Sprintf("%s|%s|%d", title, artistID, userID)
}

func (f *fakeAlbumRepo) FindOrCreate(ctx context.Context, album *model.Album) (*model.Album, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := albumKey(album.Title, album.ArtistID, album.UserID)
	if existing, ok := f.rows[key]; ok {
		return existing, false, nil
	}
	f.nextID++
	album.ID = fmt.Sprintf("album-%d", f.nextID)
	f.rows[key] = album
	f.created++
	return album, true, nil
}

func (f *fakeAlbumRepo) GetByNaturalKey(ctx context.Context, title, artistID string, userID int64) (*model.Album, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[albumKey(title, artistID, userID)], nil
}

func (f *fakeAlbumRepo) ListByUser(ctx context.Context, userID int64) ([]*model.Album, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Album
	for _, a := range f.rows {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeSongRepo struct {
	mu          sync.Mutex
	rows        map[string]*model.Song
	nextID      int
	duplicateOn string // external id whose first Create loses a simulated race

	// When lookupGate is set, the first GetByNaturalKey signals
	// lookupStarted and then blocks until the gate is closed.
	lookupGate    chan struct{}
	lookupStarted chan struct{}
	gateOnce      sync.Once
}

func newFakeSongRepo() *fakeSongRepo {
	return &fakeSongRepo{rows: make(map[string]*model.Song)}
}

func songKey(externalID, source string, userID int64) string {
	return fmt.Sprintf("%s|%s|%d", externalID, source, userID)
}

func (f *fakeSongRepo) GetByNaturalKey(ctx context.Context, externalID, source string, userID int64) (*model.Song, error) {
	if f.lookupGate != nil {
		f.gateOnce.Do(func() {
			if f.lookupStarted != nil {
				close(f.lookupStarted)
			}
			<-f.lookupGate
		})
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[songKey(externalID, source, userID)], nil
}

func (f *fakeSongRepo) Create(ctx context.Context, song *model.Song) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := songKey(song.ExternalID, song.Source, song.UserID)
	if song.ExternalID == f.duplicateOn {
		// Simulate a concurrent reconcile winning between the dedup check
		// and this insert.
		f.duplicateOn = ""
		f.nextID++
		winner := &model.Song{
			ID:         fmt.Sprintf("song-%d", f.nextID),
			UserID:     song.UserID,
			ExternalID: song.ExternalID,
			Source:     song.Source,
			Title:      song.Title,
		}
		f.rows[key] = winner
		return fmt.Errorf("song %s/%s: %w", song.Source, song.ExternalID, repository.ErrDuplicateKey)
	}
	if _, ok := f.rows[key]; ok {
		return fmt.Errorf("song %s/%s: %w", song.Source, song.ExternalID, repository.ErrDuplicateKey)
	}
	f.nextID++
	song.ID = fmt.Sprintf("song-%d", f.nextID)
	f.rows[key] = song
	return nil
}

func (f *fakeSongRepo) CountByGenre(ctx context.Context, genre string, userID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, s := range f.rows {
		if s.Genre == genre && s.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (f *fakeSongRepo) ListByGenre(ctx context.Context, genre string, userID int64, limit int) ([]*model.Song, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Song
	for _, s := range f.rows {
		if s.Genre == genre && s.UserID == userID {
			out = append(out, s)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeSongRepo) ListByUser(ctx context.Context, userID int64, limit int) ([]*model.Song, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Song
	for _, s := range f.rows {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func newTestReconciler(artists *fakeArtistRepo, albums *fakeAlbumRepo, songs *fakeSongRepo) *Reconciler {
	normalizer := NewNormalizer("pop", "2020-01-01")
	materializer := NewMaterializer(newFakeUploader(), 1<<20)
	return NewReconciler(artists, albums, songs, normalizer, materializer, "jamendo")
}

func testDescriptor() model.TrackDescriptor {
	return model.TrackDescriptor{
		ExternalID:  "t1",
		Title:       "Echo",
		ArtistName:  "Nova",
		AlbumName:   "Waves",
		DurationSec: 185,
		Genres:      []string{"electronic"},
		ReleaseDate: "2023-06-15",
	}
}

func TestReconcileCreatesSongArtistAlbum(t *testing.T) {
	artists := newFakeArtistRepo()
	albums := newFakeAlbumRepo()
	songs := newFakeSongRepo()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "bytes")
	}))
	defer srv.Close()

	desc := testDescriptor()
	desc.DownloadURL = srv.URL + "/t1.mp3"
	desc.ImageURL = srv.URL + "/t1.jpg"

	r := newTestReconciler(artists, albums, songs)
	outcome := r.Reconcile(context.Background(), desc, 7)

	if outcome.Status != StatusCreated {
		t.Fatalf("Status = %s (%s), want created", outcome.Status, outcome.Reason)
	}
	if outcome.SongID == "" {
		t.Error("expected song id")
	}
	if len(outcome.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", outcome.Warnings)
	}

	song := songs.rows[songKey("t1", "jamendo", 7)]
	if song == nil {
		t.Fatal("song not persisted")
	}
	if song.ArtistID == nil {
		t.Fatal("song missing artist link")
	}
	if song.AlbumID == nil {
		t.Fatal("song missing album link")
	}
	if song.Genre != "electronic" {
		t.Errorf("Genre = %q, want electronic", song.Genre)
	}
	if song.AudioKey == "" || song.AudioFileURL == "" {
		t.Error("expected materialized audio reference")
	}

	album := albums.rows[albumKey("Waves", *song.ArtistID, 7)]
	if album == nil {
		t.Fatal("album not persisted under the song's artist")
	}
	if album.ArtistID != *song.ArtistID {
		t.Errorf("album artist = %s, song artist = %s", album.ArtistID, *song.ArtistID)
	}
}

func TestReconcileSkipsExistingSong(t *testing.T) {
	artists := newFakeArtistRepo()
	albums := newFakeAlbumRepo()
	songs := newFakeSongRepo()

	desc := testDescriptor()
	r := newTestReconciler(artists, albums, songs)

	first := r.Reconcile(context.Background(), desc, 7)
	if first.Status != StatusCreated {
		t.Fatalf("first Status = %s (%s), want created", first.Status, first.Reason)
	}

	// Second pass must not touch the existing row or create anything new.
	second := r.Reconcile(context.Background(), desc, 7)
	if second.Status != StatusSkipped {
		t.Fatalf("second Status = %s, want skipped", second.Status)
	}
	if second.SongID != first.SongID {
		t.Errorf("SongID = %s, want %s", second.SongID, first.SongID)
	}
	if artists.created != 1 || albums.created != 1 {
		t.Errorf("created artists=%d albums=%d, want 1 each", artists.created, albums.created)
	}
}

func TestReconcileDuplicateRaceResolvesToSkip(t *testing.T) {
	artists := newFakeArtistRepo()
	albums := newFakeAlbumRepo()
	songs := newFakeSongRepo()
	songs.duplicateOn = "t1"

	desc := testDescriptor()
	r := newTestReconciler(artists, albums, songs)

	outcome := r.Reconcile(context.Background(), desc, 7)
	if outcome.Status != StatusSkipped {
		t.Fatalf("Status = %s (%s), want skipped after losing the race", outcome.Status, outcome.Reason)
	}
	if outcome.SongID == "" {
		t.Error("expected the surviving row's id")
	}
}

func TestReconcileSameUserDifferentSourcesCoexist(t *testing.T) {
	artists := newFakeArtistRepo()
	albums := newFakeAlbumRepo()
	songs := newFakeSongRepo()

	desc := testDescriptor()
	jamendoRec := newTestReconciler(artists, albums, songs)
	otherRec := NewReconciler(artists, albums, songs,
		NewNormalizer("pop", "2020-01-01"), NewMaterializer(newFakeUploader(), 1<<20), "other")

	if o := jamendoRec.Reconcile(context.Background(), desc, 7); o.Status != StatusCreated {
		t.Fatalf("jamendo Status = %s, want created", o.Status)
	}
	if o := otherRec.Reconcile(context.Background(), desc, 7); o.Status != StatusCreated {
		t.Fatalf("other-source Status = %s, want created", o.Status)
	}
	if len(songs.rows) != 2 {
		t.Errorf("songs = %d, want 2 (same external id, different sources)", len(songs.rows))
	}
}

func TestReconcileArtistFailureIsIsolated(t *testing.T) {
	artists := newFakeArtistRepo()
	artists.failOn = "Nova"
	albums := newFakeAlbumRepo()
	songs := newFakeSongRepo()

	desc := testDescriptor()
	r := newTestReconciler(artists, albums, songs)

	outcome := r.Reconcile(context.Background(), desc, 7)
	if outcome.Status != StatusFailed {
		t.Fatalf("Status = %s, want failed", outcome.Status)
	}
	if outcome.Reason == "" {
		t.Error("expected a failure reason")
	}
	if len(songs.rows) != 0 {
		t.Error("no song should be persisted after an artist failure")
	}
}

func TestReconcileAssetFailureIsWarningNotFailure(t *testing.T) {
	artists := newFakeArtistRepo()
	albums := newFakeAlbumRepo()
	songs := newFakeSongRepo()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	desc := testDescriptor()
	desc.DownloadURL = srv.URL + "/gone.mp3"

	r := newTestReconciler(artists, albums, songs)
	outcome := r.Reconcile(context.Background(), desc, 7)

	if outcome.Status != StatusCreated {
		t.Fatalf("Status = %s (%s), want created despite asset failure", outcome.Status, outcome.Reason)
	}
	if len(outcome.Warnings) == 0 {
		t.Error("expected an asset warning")
	}

	song := songs.rows[songKey("t1", "jamendo", 7)]
	if song.AudioKey != "" || song.AudioFileURL != "" {
		t.Error("failed materialization must not leave a dangling reference")
	}
}

func TestReconcileNoAlbumName(t *testing.T) {
	artists := newFakeArtistRepo()
	albums := newFakeAlbumRepo()
	songs := newFakeSongRepo()

	desc := testDescriptor()
	desc.AlbumName = ""

	r := newTestReconciler(artists, albums, songs)
	outcome := r.Reconcile(context.Background(), desc, 7)

	if outcome.Status != StatusCreated {
		t.Fatalf("Status = %s (%s), want created", outcome.Status, outcome.Reason)
	}
	song := songs.rows[songKey("t1", "jamendo", 7)]
	if song.AlbumID != nil {
		t.Error("song should have no album link")
	}
	if albums.created != 0 {
		t.Errorf("albums created = %d, want 0", albums.created)
	}
}
