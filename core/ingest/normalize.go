package ingest

import (
	"time"

	"melodex/core/audio"
	"melodex/model"
)

// Flag marks a normalization decision so derived or defaulted values stay
// distinguishable from provider-observed ones after the fact.
type Flag string

const (
	FlagDerivedFromAudio     Flag = "derived_from_audio"
	FlagDefaultedGenre       Flag = "defaulted_genre"
	FlagDefaultedReleaseDate Flag = "defaulted_release_date"
	FlagAnalysisFailed       Flag = "analysis_failed"
)

// Canonical is the normalized metadata record for one track. Numeric fields
// are either nil (unknown) or strictly positive; normalization never emits
// a zero or negative value.
type Canonical struct {
	DurationSec *float64
	BPM         *float64
	Bitrate     *int
	SampleRate  *int
	Channels    *int
	Genre       string
	ReleaseDate *time.Time
	Flags       []Flag
}

// Has reports whether the given flag was recorded.
func (c *Canonical) Has(flag Flag) bool {
	for _, f := range c.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// Normalizer resolves conflicts between provider-supplied tags and
// locally-derived audio analysis.
type Normalizer struct {
	defaultGenre       string
	defaultReleaseDate time.Time
}

// NewNormalizer creates a Normalizer with the configured fallbacks.
// defaultReleaseDate must be an ISO date; a malformed value falls back to
// 2020-01-01.
func NewNormalizer(defaultGenre, defaultReleaseDate string) *Normalizer {
	placeholder, err := time.Parse("2006-01-02", defaultReleaseDate)
	if err != nil {
		placeholder = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return &Normalizer{
		defaultGenre:       defaultGenre,
		defaultReleaseDate: placeholder,
	}
}

// Normalize produces the canonical metadata for a descriptor. probe carries
// properties derived from the raw audio stream and wins over provider
// values; pass nil when no raw bytes were analyzed. probeErr reports a
// failed analysis attempt, which downgrades to a flag, never a failure.
func (n *Normalizer) Normalize(desc model.TrackDescriptor, probe *audio.ProbeResult, probeErr error) Canonical {
	c := Canonical{}

	if probeErr != nil {
		c.Flags = append(c.Flags, FlagAnalysisFailed)
	}

	if probe != nil {
		c.Flags = append(c.Flags, FlagDerivedFromAudio)
	}

	c.DurationSec = pickFloat(probeFloat(probe, func(p *audio.ProbeResult) float64 { return p.DurationSec }), float64(desc.DurationSec))
	c.Bitrate = pickInt(probeInt(probe, func(p *audio.ProbeResult) int { return p.Bitrate }), desc.Bitrate)
	c.SampleRate = pickInt(probeInt(probe, func(p *audio.ProbeResult) int { return p.SampleRate }), desc.SampleRate)
	c.Channels = pickInt(probeInt(probe, func(p *audio.ProbeResult) int { return p.Channels }), 0)
	c.BPM = pickFloat(0, desc.BPM)

	c.Genre = n.resolveGenre(desc, &c)
	c.ReleaseDate = n.resolveReleaseDate(desc, &c)

	return c
}

func (n *Normalizer) resolveGenre(desc model.TrackDescriptor, c *Canonical) string {
	for _, g := range desc.Genres {
		if g != "" {
			return g
		}
	}
	if desc.Genre != "" {
		return desc.Genre
	}
	c.Flags = append(c.Flags, FlagDefaultedGenre)
	return n.defaultGenre
}

func (n *Normalizer) resolveReleaseDate(desc model.TrackDescriptor, c *Canonical) *time.Time {
	if desc.ReleaseDate != "" {
		if parsed, err := time.Parse("2006-01-02", desc.ReleaseDate); err == nil {
			return &parsed
		}
	}
	// Last resort only, and flagged: a defaulted date must stay
	// distinguishable from an observed one.
	c.Flags = append(c.Flags, FlagDefaultedReleaseDate)
	placeholder := n.defaultReleaseDate
	return &placeholder
}

func probeFloat(probe *audio.ProbeResult, get func(*audio.ProbeResult) float64) float64 {
	if probe == nil {
		return 0
	}
	return get(probe)
}

func probeInt(probe *audio.ProbeResult, get func(*audio.ProbeResult) int) int {
	if probe == nil {
		return 0
	}
	return get(probe)
}

// pickFloat returns the first strictly positive candidate, or nil. A zero
// or negative provider value normalizes to unknown, never stored as-is.
func pickFloat(derived, declared float64) *float64 {
	if derived > 0 {
		return &derived
	}
	if declared > 0 {
		return &declared
	}
	return nil
}

// pickInt returns the first strictly positive candidate, or nil.
func pickInt(derived, declared int) *int {
	if derived > 0 {
		return &derived
	}
	if declared > 0 {
		return &declared
	}
	return nil
}
