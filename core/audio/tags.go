package audio

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dhowden/tag"
)

// ErrUnsupportedFormat marks a file whose container the tag reader does not
// understand. A typed outcome, not an error escape: the HTTP layer turns it
// into a client-facing response.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Tags holds the embedded metadata of a user-submitted audio file.
type Tags struct {
	Title       string  `json:"title,omitempty"`
	Artist      string  `json:"artist,omitempty"`
	Album       string  `json:"album,omitempty"`
	Genre       string  `json:"genre,omitempty"`
	TrackNumber int     `json:"trackNumber,omitempty"`
	BPM         float64 `json:"bpm,omitempty"`
	Year        int     `json:"year,omitempty"`
}

// ReadTags extracts embedded tags from an audio stream.
func ReadTags(rs io.ReadSeeker) (*Tags, error) {
	meta, err := tag.ReadFrom(rs)
	if err != nil {
		if errors.Is(err, tag.ErrNoTagsFound) {
			return &Tags{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	track, _ := meta.Track()

	tags := &Tags{
		Title:       meta.Title(),
		Artist:      meta.Artist(),
		Album:       meta.Album(),
		Genre:       meta.Genre(),
		TrackNumber: track,
		Year:        meta.Year(),
	}

	// BPM has no accessor; some containers carry it in the raw frame map.
	for _, key := range []string{"TBPM", "bpm", "BPM"} {
		if raw, ok := meta.Raw()[key]; ok {
			if bpm := parseBPM(raw); bpm > 0 {
				tags.BPM = bpm
				break
			}
		}
	}

	return tags, nil
}

func parseBPM(raw interface{}) float64 {
	switch v := raw.(type) {
	case string:
		bpm, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return bpm
	case int:
		return float64(v)
	case float64:
		return v
	}
	return 0
}
