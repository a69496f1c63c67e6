package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"
)

const (
	probeTimeout     = 45 * time.Second
	progressInterval = 500 * time.Millisecond
)

// ProgressFunc receives raw per-chunk download percentages (0-100) as
// reported by yt-dlp. Values are best-effort and not guaranteed monotonic.
type ProgressFunc func(percent float64)

// Thumbnail is one thumbnail reference from the probed metadata. yt-dlp
// lists thumbnails in ascending quality order.
type Thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Metadata is the pre-download information for a source URL.
type Metadata struct {
	Title      string      `json:"title"`
	Uploader   string      `json:"uploader"`
	Duration   float64     `json:"duration"`
	Thumbnails []Thumbnail `json:"thumbnails"`
}

// Options control a single audio download.
type Options struct {
	// OutputDir receives the produced mp3.
	OutputDir string
	// Title is the sanitized, title-derived file name stem. Fixing it in the
	// output template is what makes the artifact path predictable before the
	// tool finishes.
	Title string
	// MaxSizeMB narrows the format selection when positive. The filter works
	// on yt-dlp's pre-download size estimate, so it is best-effort only; the
	// caller re-checks the produced file.
	MaxSizeMB int
}

// Service drives the yt-dlp binary: a JSON metadata probe, then a
// size-capped mp3 extraction with progress reporting.
type Service struct {
	logger *slog.Logger
	bin    string
}

func NewService(logger *slog.Logger) *Service {
	return &Service{logger: logger, bin: "yt-dlp"}
}

// Probe fetches metadata for the URL without downloading anything.
func (s *Service) Probe(ctx context.Context, url string) (*Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.bin, "-J", "--no-warnings", "--no-playlist", "--skip-download", url)
	out, err := cmd.Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok && len(ee.Stderr) > 0 {
			return nil, fmt.Errorf("yt-dlp probe failed: %s", strings.TrimSpace(string(ee.Stderr)))
		}
		return nil, fmt.Errorf("yt-dlp probe failed: %w", err)
	}

	return parseMetadata(out)
}

func parseMetadata(raw []byte) (*Metadata, error) {
	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("invalid yt-dlp metadata: %w", err)
	}
	if meta.Title == "" {
		meta.Title = "audio"
	}
	return &meta, nil
}

// Download fetches the URL's audio as mp3 into the deterministic output path
// and returns that path. The path is predicted from the output template, not
// read back from the tool; the caller must verify the file exists.
func (s *Service) Download(ctx context.Context, url string, opts Options, onProgress ProgressFunc) (string, error) {
	dl := ytdlp.New().
		ForceOverwrites().
		NoPlaylist().
		ExtractAudio().
		AudioFormat("mp3").
		AudioQuality("320K").
		Format(FormatSelector(opts.MaxSizeMB)).
		Output(filepath.Join(opts.OutputDir, opts.Title+".%(ext)s"))

	dl.ProgressFunc(progressInterval, func(update ytdlp.ProgressUpdate) {
		if update.TotalBytes <= 0 || onProgress == nil {
			return
		}
		onProgress(float64(update.DownloadedBytes) / float64(update.TotalBytes) * 100)
	})

	s.logger.Info("invoking yt-dlp", "url", url, "format", FormatSelector(opts.MaxSizeMB))
	if _, err := dl.Run(ctx, url); err != nil {
		return "", fmt.Errorf("yt-dlp download failed: %w", err)
	}

	return OutputPath(opts.OutputDir, opts.Title), nil
}

// FormatSelector builds the yt-dlp format expression, narrowed to the size
// ceiling when one is set.
func FormatSelector(maxSizeMB int) string {
	if maxSizeMB > 0 {
		return fmt.Sprintf("bestaudio[filesize<%dM]/best[filesize<%dM]", maxSizeMB, maxSizeMB)
	}
	return "bestaudio/best"
}

// OutputPath is the deterministic artifact location for a sanitized title.
func OutputPath(dir, title string) string {
	return filepath.Join(dir, title+".mp3")
}

// SanitizeTitle makes a metadata-derived title safe for use as a file path
// segment: every character in <>:"/\|?* becomes an underscore.
func SanitizeTitle(title string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(`<>:"/\|?*`, r) {
			return '_'
		}
		return r
	}, title)
}
