// Package audio provides audio stream introspection: technical properties
// via ffprobe and embedded tags via the tag library.
package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
)

// ErrAnalysisFailed marks a failed audio introspection. Callers downgrade
// the affected metadata fields to unknown instead of failing the item.
var ErrAnalysisFailed = errors.New("audio analysis failed")

// ProbeResult holds technical properties derived from the audio stream
// itself. These are authoritative over provider-declared values.
type ProbeResult struct {
	DurationSec float64
	Bitrate     int
	SampleRate  int
	Channels    int
}

// Analyzer derives technical properties from raw audio bytes.
type Analyzer interface {
	Probe(ctx context.Context, r io.Reader) (*ProbeResult, error)
}

// FFprobeAnalyzer implements Analyzer by shelling out to ffprobe.
type FFprobeAnalyzer struct {
	ffprobePath string
}

// NewFFprobeAnalyzer creates an analyzer using the given ffprobe binary.
func NewFFprobeAnalyzer(ffprobePath string) *FFprobeAnalyzer {
	return &FFprobeAnalyzer{ffprobePath: ffprobePath}
}

// ffprobeOutput defines the structure of ffprobe JSON output.
type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
		BitRate    string `json:"bit_rate"`
	} `json:"streams"`
}

// Probe spools the stream to a temp file and inspects it with ffprobe.
// ffprobe needs a seekable input for several container formats, so piping
// via stdin is not reliable.
func (a *FFprobeAnalyzer) Probe(ctx context.Context, r io.Reader) (*ProbeResult, error) {
	tmp, err := os.CreateTemp("", "melodex-probe-*.audio")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := io.Copy(tmp, r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		tmp.Name(),
	}
	cmd := exec.CommandContext(ctx, a.ffprobePath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%w: ffprobe: %v (%s)", ErrAnalysisFailed, err, stderr.String())
	}

	var probe ffprobeOutput
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("%w: failed to parse ffprobe output: %v", ErrAnalysisFailed, err)
	}

	result := &ProbeResult{}
	result.DurationSec, _ = strconv.ParseFloat(probe.Format.Duration, 64)
	result.Bitrate, _ = strconv.Atoi(probe.Format.BitRate)

	for _, s := range probe.Streams {
		if s.CodecType != "audio" {
			continue
		}
		result.SampleRate, _ = strconv.Atoi(s.SampleRate)
		result.Channels = s.Channels
		if result.Bitrate == 0 {
			result.Bitrate, _ = strconv.Atoi(s.BitRate)
		}
		break
	}

	if result.DurationSec <= 0 {
		return nil, fmt.Errorf("%w: no usable audio stream found", ErrAnalysisFailed)
	}

	return result, nil
}
