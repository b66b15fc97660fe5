package model

// TrackDescriptor is one track as reported by an external catalog provider.
// It is consumed once per ingestion pass and never persisted as-is.
type TrackDescriptor struct {
	ExternalID    string   `json:"externalId"`
	Rank          int      `json:"rank"` // position in the provider's popularity ordering
	Title         string   `json:"title"`
	ArtistName    string   `json:"artistName"`
	ArtistCountry string   `json:"artistCountry,omitempty"`
	AlbumName     string   `json:"albumName,omitempty"`
	DurationSec   int      `json:"duration"`
	AudioURL      string   `json:"audioUrl"`
	DownloadURL   string   `json:"downloadUrl,omitempty"`
	ImageURL      string   `json:"imageUrl,omitempty"`
	AlbumImageURL string   `json:"albumImageUrl,omitempty"`
	ReleaseDate   string   `json:"releaseDate,omitempty"`
	Genres        []string `json:"genres,omitempty"` // structured tag list, preferred
	Genre         string   `json:"genre,omitempty"`  // flat fallback
	BPM           float64  `json:"bpm,omitempty"`
	Bitrate       int      `json:"bitrate,omitempty"`
	SampleRate    int      `json:"sampleRate,omitempty"`
}
