// Package download drives the job lifecycle: validation, platform
// classification, extraction, the post-hoc size ceiling and thumbnail
// retrieval, ending every created job in a terminal state.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"audiofetch/internal/extractor"
	"audiofetch/internal/models"
	"audiofetch/internal/platform"
	"audiofetch/internal/progress"
	"audiofetch/internal/store"
)

const (
	// MaxFileSizeMB bounds the requestable size ceiling.
	MaxFileSizeMB = 50
	// DefaultMaxSizeMB applies when the client does not pass a limit.
	DefaultMaxSizeMB = 15

	// FileRoutePrefix is where produced artifacts are served from.
	FileRoutePrefix = "/api/file/"

	thumbnailTimeout = 10 * time.Second
)

// Extractor is the contract this orchestrator requires of the external
// media-extraction tool.
type Extractor interface {
	Probe(ctx context.Context, url string) (*extractor.Metadata, error)
	Download(ctx context.Context, url string, opts extractor.Options, onProgress extractor.ProgressFunc) (string, error)
}

// Result is the terminal outcome of a submitted job. Err is set for jobs
// that failed after creation; the failure is already recorded on the job
// and emitted to the sink, never raised to the transport layer.
type Result struct {
	TaskID       string
	Message      string
	DownloadURL  string
	ThumbnailURL string
	FileSizeMB   float64
	Err          error
}

type Orchestrator struct {
	logger      *slog.Logger
	store       *store.Store
	extractor   Extractor
	client      *http.Client
	downloadDir string
}

func NewOrchestrator(logger *slog.Logger, jobs *store.Store, ex Extractor, downloadDir string) *Orchestrator {
	return &Orchestrator{
		logger:      logger,
		store:       jobs,
		extractor:   ex,
		client:      &http.Client{Timeout: thumbnailTimeout},
		downloadDir: downloadDir,
	}
}

// Submit validates the request and, when it is acceptable, creates a job and
// runs it to a terminal state, emitting every user-visible message to sink.
// A non-nil error means the request was rejected before a job existed
// (ValidationError or PlatformError). Once a job is created Submit always
// returns a Result; job failures travel in Result.Err.
func (o *Orchestrator) Submit(ctx context.Context, rawURL string, maxSizeMB int, sink progress.Sink) (*Result, error) {
	if strings.TrimSpace(rawURL) == "" {
		verr := &ValidationError{Reason: "url must not be empty"}
		_ = sink.Send(models.ErrorMessage{Error: verr.Error()})
		return nil, verr
	}
	if maxSizeMB <= 0 || maxSizeMB > MaxFileSizeMB {
		verr := &ValidationError{Reason: fmt.Sprintf("file size limit must be between 1 and %d MB", MaxFileSizeMB)}
		_ = sink.Send(models.ErrorMessage{Error: verr.Error()})
		return nil, verr
	}

	cls := platform.Classify(rawURL)
	switch cls.Kind {
	case platform.Supported:
	case platform.ComingSoon:
		perr := &PlatformError{Platform: cls.Name, ComingSoon: true}
		_ = sink.Send(models.ErrorMessage{Error: perr.Error(), ComingSoon: true, Platform: cls.Name})
		return nil, perr
	default:
		perr := &PlatformError{Platform: cls.Name}
		_ = sink.Send(models.ErrorMessage{Error: perr.Error()})
		return nil, perr
	}

	jobID := o.store.Create(rawURL, maxSizeMB)
	o.logger.Info("job created", "job_id", jobID, "url", rawURL, "maxsize_mb", maxSizeMB)
	_ = sink.Send(models.ProgressMessage{Progress: 0, Status: "Starting download from " + cls.Name + "...", TaskID: jobID})

	return o.run(ctx, jobID, rawURL, maxSizeMB, sink), nil
}

func (o *Orchestrator) run(ctx context.Context, jobID, url string, maxSizeMB int, sink progress.Sink) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			res = o.fail(jobID, sink, &ExtractionError{Err: fmt.Errorf("unexpected error: %v", r)})
		}
	}()

	o.store.Update(jobID, func(j *models.Job) { j.Status = models.StatusDownloading })
	_ = sink.Send(models.ProgressMessage{Progress: 5, Status: "Fetching video information..."})

	meta, err := o.extractor.Probe(ctx, url)
	if err != nil {
		return o.fail(jobID, sink, &ExtractionError{Err: err})
	}

	title := extractor.SanitizeTitle(meta.Title)
	_ = sink.Send(models.ProgressMessage{Progress: 10, Status: "Starting download: " + title})

	opts := extractor.Options{OutputDir: o.downloadDir, Title: title, MaxSizeMB: maxSizeMB}
	audioPath, err := o.extractor.Download(ctx, url, opts, func(percent float64) {
		// Raw extractor percentages are forwarded as-is; only the stored
		// job progress is kept from regressing.
		_ = sink.Send(models.ProgressMessage{Progress: percent, Status: "Downloading..."})
		o.store.Update(jobID, func(j *models.Job) { j.Progress = int(percent) })
	})
	if err != nil {
		return o.fail(jobID, sink, &ExtractionError{Err: err})
	}

	_ = sink.Send(models.ProgressMessage{Progress: 95, Status: "Converting to mp3..."})

	info, err := os.Stat(audioPath)
	if err != nil {
		return o.fail(jobID, sink, &ExtractionError{Err: errors.New("the mp3 file was not created")})
	}

	sizeMB := float64(info.Size()) / (1024 * 1024)
	if sizeMB > float64(maxSizeMB) {
		if err := os.Remove(audioPath); err != nil {
			o.logger.Warn("could not remove oversized artifact", "job_id", jobID, "path", audioPath, "error", err)
		}
		return o.fail(jobID, sink, &SizeLimitError{SizeMB: sizeMB, LimitMB: maxSizeMB})
	}

	_ = sink.Send(models.ProgressMessage{Progress: 90, Status: "Fetching thumbnail..."})
	thumbPath := o.fetchThumbnail(ctx, jobID, meta, title, sink)

	o.store.Update(jobID, func(j *models.Job) {
		j.Status = models.StatusCompleted
		j.Progress = 100
		j.AudioPath = audioPath
		j.ThumbnailPath = thumbPath
	})
	_ = sink.Send(models.ProgressMessage{Progress: 100, Status: "Done!"})

	res = &Result{
		TaskID:      jobID,
		Message:     "Download completed successfully!",
		DownloadURL: FileRoutePrefix + filepath.Base(audioPath),
		FileSizeMB:  math.Round(sizeMB*100) / 100,
	}
	if thumbPath != "" {
		res.ThumbnailURL = FileRoutePrefix + filepath.Base(thumbPath)
	}

	_ = sink.Send(models.CompletedMessage{
		Message:      res.Message,
		DownloadURL:  res.DownloadURL,
		TaskID:       res.TaskID,
		FileSizeMB:   res.FileSizeMB,
		ThumbnailURL: res.ThumbnailURL,
	})
	o.logger.Info("job completed", "job_id", jobID, "audio", audioPath, "size_mb", res.FileSizeMB)
	return res
}

func (o *Orchestrator) fail(jobID string, sink progress.Sink, err error) *Result {
	o.logger.Error("job failed", "job_id", jobID, "error", err)
	o.store.Update(jobID, func(j *models.Job) {
		j.Status = models.StatusFailed
		j.Error = err.Error()
	})
	_ = sink.Send(models.ErrorMessage{Error: err.Error(), TaskID: jobID})
	return &Result{TaskID: jobID, Err: err}
}

// fetchThumbnail saves the highest-quality thumbnail next to the audio
// artifact. Failures are reported informationally and discarded: the job
// completes without a thumbnail.
func (o *Orchestrator) fetchThumbnail(ctx context.Context, jobID string, meta *extractor.Metadata, title string, sink progress.Sink) string {
	thumbURL := bestThumbnailURL(meta.Thumbnails)
	if thumbURL == "" {
		_ = sink.Send(models.ProgressMessage{Progress: 95, Status: "Thumbnail unavailable"})
		return ""
	}

	path := filepath.Join(o.downloadDir, title+"_thumbnail"+thumbnailExt(thumbURL))
	if err := o.saveThumbnail(ctx, thumbURL, path); err != nil {
		o.logger.Warn("thumbnail fetch failed", "job_id", jobID, "url", thumbURL, "error", err)
		_ = sink.Send(models.ProgressMessage{Progress: 95, Status: "Could not fetch thumbnail: " + err.Error()})
		return ""
	}

	_ = sink.Send(models.ProgressMessage{Progress: 95, Status: "Thumbnail saved"})
	return path
}

func (o *Orchestrator) saveThumbnail(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(path)
		return err
	}
	return nil
}

// bestThumbnailURL picks the last usable reference; yt-dlp orders
// thumbnails ascending by quality.
func bestThumbnailURL(thumbs []extractor.Thumbnail) string {
	for i := len(thumbs) - 1; i >= 0; i-- {
		if thumbs[i].URL != "" {
			return thumbs[i].URL
		}
	}
	return ""
}

func thumbnailExt(url string) string {
	lower := strings.ToLower(url)
	switch {
	case strings.Contains(lower, "webp"):
		return ".webp"
	case strings.Contains(lower, "png"):
		return ".png"
	default:
		return ".jpg"
	}
}
