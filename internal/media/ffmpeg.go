// Package media wraps the external ffmpeg/ffprobe binaries that do the
// actual transcoding work. Every function here is a thin adapter: build the
// argument list, run the process, surface stderr on failure. No media
// processing happens in this codebase.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// FFmpeg runs the ffmpeg and ffprobe binaries
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
}

// NewFFmpeg creates an adapter over the configured binary paths
func NewFFmpeg(ffmpegPath, ffprobePath string) *FFmpeg {
	return &FFmpeg{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
	}
}

// ConvertOptions controls a format conversion
type ConvertOptions struct {
	// Format is the target container/format (mp3, wav, mp4, gif, ...).
	// Inferred from the output path extension when empty.
	Format string
	// AudioBitrate like "192k"; empty keeps the encoder default
	AudioBitrate string
	// SampleRate in Hz; 0 keeps the source rate
	SampleRate int
}

// Convert transcodes the input file into the target format
func (f *FFmpeg) Convert(ctx context.Context, inputPath, outputPath string, opts ConvertOptions) error {
	args := []string{"-y", "-i", inputPath}
	if opts.AudioBitrate != "" {
		args = append(args, "-b:a", opts.AudioBitrate)
	}
	if opts.SampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(opts.SampleRate))
	}
	if opts.Format != "" {
		args = append(args, "-f", opts.Format)
	}
	args = append(args, outputPath)

	return f.run(ctx, f.ffmpegPath, args)
}

// Compress re-encodes the input at a reduced quality/bitrate. Quality runs
// 1..100, mapped onto libmp3lame VBR for audio and CRF for video.
func (f *FFmpeg) Compress(ctx context.Context, inputPath, outputPath string, quality int, video bool) error {
	if quality < 1 {
		quality = 1
	}
	if quality > 100 {
		quality = 100
	}

	args := []string{"-y", "-i", inputPath}
	if video {
		// CRF scale is 0-51, lower is better; invert the 1-100 knob.
		crf := 51 - (quality * 33 / 100)
		args = append(args, "-vcodec", "libx264", "-crf", strconv.Itoa(crf), "-preset", "medium")
	} else {
		// VBR scale is 0-9, lower is better.
		q := 9 - (quality * 9 / 100)
		args = append(args, "-codec:a", "libmp3lame", "-qscale:a", strconv.Itoa(q))
	}
	args = append(args, outputPath)

	return f.run(ctx, f.ffmpegPath, args)
}

// EnhanceOptions controls audio cleanup filters
type EnhanceOptions struct {
	Normalize   bool
	DenoiseDB   int // 0 disables the denoise filter
}

// Enhance applies loudness normalization and optional denoising
func (f *FFmpeg) Enhance(ctx context.Context, inputPath, outputPath string, opts EnhanceOptions) error {
	var filters []string
	if opts.Normalize {
		filters = append(filters, "loudnorm=I=-16:TP=-1.5:LRA=11")
	}
	if opts.DenoiseDB > 0 {
		filters = append(filters, fmt.Sprintf("afftdn=nr=%d", opts.DenoiseDB))
	}
	if len(filters) == 0 {
		filters = append(filters, "loudnorm")
	}

	args := []string{"-y", "-i", inputPath, "-af", strings.Join(filters, ","), outputPath}
	return f.run(ctx, f.ffmpegPath, args)
}

// EditMetadata rewrites container tags without re-encoding the streams
func (f *FFmpeg) EditMetadata(ctx context.Context, inputPath, outputPath string, tags map[string]string) error {
	args := []string{"-y", "-i", inputPath, "-codec", "copy"}
	for key, value := range tags {
		args = append(args, "-metadata", fmt.Sprintf("%s=%s", key, value))
	}
	args = append(args, outputPath)

	return f.run(ctx, f.ffmpegPath, args)
}

// ProbeResult is the subset of ffprobe output the toolkit cares about,
// along with the raw JSON for passthrough to clients
type ProbeResult struct {
	Raw    json.RawMessage `json:"-"`
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		Size       string `json:"size"`
		BitRate    string `json:"bit_rate"`
	} `json:"format"`
}

// DurationSeconds parses the probed duration; 0 when unknown
func (p *ProbeResult) DurationSeconds() float64 {
	d, err := strconv.ParseFloat(p.Format.Duration, 64)
	if err != nil {
		return 0
	}
	return d
}

// Probe reads stream and format information via ffprobe
func (f *FFmpeg) Probe(ctx context.Context, inputPath string) (*ProbeResult, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		inputPath,
	}

	cmd := exec.CommandContext(ctx, f.ffprobePath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w: %s", err, truncate(stderr.String(), 512))
	}

	var result ProbeResult
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	result.Raw = json.RawMessage(stdout.Bytes())

	return &result, nil
}

// run executes a binary and surfaces the tail of stderr on failure
func (f *FFmpeg) run(ctx context.Context, bin string, args []string) error {
	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s failed: %w: %s", bin, err, truncate(stderr.String(), 512))
	}

	return nil
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[len(s)-max:]
}
