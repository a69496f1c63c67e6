package download

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"audiofetch/internal/extractor"
	"audiofetch/internal/models"
	"audiofetch/internal/store"
)

type fakeExtractor struct {
	meta          *extractor.Metadata
	probeErr      error
	downloadErr   error
	artifactBytes int
	percents      []float64
}

func (f *fakeExtractor) Probe(ctx context.Context, url string) (*extractor.Metadata, error) {
	if f.probeErr != nil {
		return nil, f.probeErr
	}
	return f.meta, nil
}

func (f *fakeExtractor) Download(ctx context.Context, url string, opts extractor.Options, onProgress extractor.ProgressFunc) (string, error) {
	for _, p := range f.percents {
		onProgress(p)
	}
	if f.downloadErr != nil {
		return "", f.downloadErr
	}
	path := extractor.OutputPath(opts.OutputDir, opts.Title)
	if f.artifactBytes > 0 {
		if err := os.WriteFile(path, make([]byte, f.artifactBytes), 0o644); err != nil {
			return "", err
		}
	}
	return path, nil
}

type collectSink struct {
	msgs []any
}

func (s *collectSink) Send(msg any) error {
	s.msgs = append(s.msgs, msg)
	return nil
}

func (s *collectSink) last() any {
	if len(s.msgs) == 0 {
		return nil
	}
	return s.msgs[len(s.msgs)-1]
}

func newTestOrchestrator(t *testing.T, ex Extractor) (*Orchestrator, *store.Store) {
	t.Helper()
	jobs := store.New()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewOrchestrator(logger, jobs, ex, t.TempDir()), jobs
}

func TestSubmitRejectsBlankURL(t *testing.T) {
	orch, jobs := newTestOrchestrator(t, &fakeExtractor{})
	sink := &collectSink{}

	_, err := orch.Submit(context.Background(), "   ", 15, sink)

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if jobs.Len() != 0 {
		t.Errorf("job created for invalid request, store has %d jobs", jobs.Len())
	}
	if _, ok := sink.last().(models.ErrorMessage); !ok {
		t.Errorf("last message = %#v, want ErrorMessage", sink.last())
	}
}

func TestSubmitRejectsSizeLimitOutOfRange(t *testing.T) {
	for _, maxSize := range []int{-1, 0, 51, 1000} {
		orch, jobs := newTestOrchestrator(t, &fakeExtractor{})

		_, err := orch.Submit(context.Background(), "https://youtu.be/abc123", maxSize, &collectSink{})

		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("maxsize=%d: err = %v, want ValidationError", maxSize, err)
		}
		if jobs.Len() != 0 {
			t.Errorf("maxsize=%d: job created for rejected request", maxSize)
		}
	}
}

func TestSubmitComingSoonPlatform(t *testing.T) {
	orch, jobs := newTestOrchestrator(t, &fakeExtractor{})
	sink := &collectSink{}

	_, err := orch.Submit(context.Background(), "https://vk.com/video1", 15, sink)

	var perr *PlatformError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want PlatformError", err)
	}
	if !perr.ComingSoon || perr.Platform != "VK.COM" {
		t.Errorf("PlatformError = %+v, want coming-soon VK.COM", perr)
	}
	if jobs.Len() != 0 {
		t.Error("job created for coming-soon platform")
	}
	if len(sink.msgs) != 1 {
		t.Fatalf("sent %d messages, want exactly the coming-soon response", len(sink.msgs))
	}
	msg, ok := sink.msgs[0].(models.ErrorMessage)
	if !ok || !msg.ComingSoon || msg.Platform != "VK.COM" {
		t.Errorf("message = %#v, want coming-soon ErrorMessage", sink.msgs[0])
	}
}

func TestSubmitUnknownPlatform(t *testing.T) {
	orch, jobs := newTestOrchestrator(t, &fakeExtractor{})

	_, err := orch.Submit(context.Background(), "https://example.com/video", 15, &collectSink{})

	var perr *PlatformError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want PlatformError", err)
	}
	if perr.ComingSoon {
		t.Error("unknown platform flagged as coming soon")
	}
	if jobs.Len() != 0 {
		t.Error("job created for unknown platform")
	}
}

func TestSubmitSuccess(t *testing.T) {
	thumbSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("jpeg-bytes"))
	}))
	defer thumbSrv.Close()

	ex := &fakeExtractor{
		meta: &extractor.Metadata{
			Title:      "My/Song:Title*",
			Thumbnails: []extractor.Thumbnail{{URL: thumbSrv.URL + "/hq.jpg", Width: 1280, Height: 720}},
		},
		artifactBytes: 1 << 20,
		percents:      []float64{12.5, 48.0, 99.9},
	}
	orch, jobs := newTestOrchestrator(t, ex)
	sink := &collectSink{}

	res, err := orch.Submit(context.Background(), "https://youtu.be/abc123", 15, sink)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Err != nil {
		t.Fatalf("job failed: %v", res.Err)
	}

	if res.DownloadURL != "/api/file/My_Song_Title_.mp3" {
		t.Errorf("DownloadURL = %q, want /api/file/My_Song_Title_.mp3", res.DownloadURL)
	}
	if res.FileSizeMB <= 0 || res.FileSizeMB > 15 {
		t.Errorf("FileSizeMB = %v, want within (0, 15]", res.FileSizeMB)
	}
	if res.ThumbnailURL != "/api/file/My_Song_Title__thumbnail.jpg" {
		t.Errorf("ThumbnailURL = %q", res.ThumbnailURL)
	}

	job, ok := jobs.Get(res.TaskID)
	if !ok {
		t.Fatal("job missing from store")
	}
	if job.Status != models.StatusCompleted || job.Progress != 100 {
		t.Errorf("job = (%q, %d), want (completed, 100)", job.Status, job.Progress)
	}
	if job.AudioPath == "" || job.ThumbnailPath == "" {
		t.Errorf("artifact paths not recorded: %+v", job)
	}
	if _, err := os.Stat(job.ThumbnailPath); err != nil {
		t.Errorf("thumbnail file missing: %v", err)
	}

	for _, msg := range sink.msgs {
		if p, ok := msg.(models.ProgressMessage); ok && p.Progress < 0 {
			t.Errorf("negative progress value %v", p.Progress)
		}
	}
	done, ok := sink.last().(models.CompletedMessage)
	if !ok {
		t.Fatalf("last message = %#v, want CompletedMessage", sink.last())
	}
	if done.TaskID != res.TaskID || done.DownloadURL != res.DownloadURL {
		t.Errorf("terminal message = %+v, mismatches result %+v", done, res)
	}
}

func TestSubmitOversizedArtifactIsDeleted(t *testing.T) {
	ex := &fakeExtractor{
		meta:          &extractor.Metadata{Title: "big"},
		artifactBytes: 2 << 20,
	}
	orch, jobs := newTestOrchestrator(t, ex)
	sink := &collectSink{}

	res, err := orch.Submit(context.Background(), "https://youtu.be/abc123", 1, sink)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	var serr *SizeLimitError
	if !errors.As(res.Err, &serr) {
		t.Fatalf("res.Err = %v, want SizeLimitError", res.Err)
	}

	job, _ := jobs.Get(res.TaskID)
	if job.Status != models.StatusFailed {
		t.Errorf("job status = %q, want failed", job.Status)
	}
	if job.AudioPath != "" {
		t.Errorf("AudioPath = %q, want empty for oversized artifact", job.AudioPath)
	}
	if _, statErr := os.Stat(extractor.OutputPath(orch.downloadDir, "big")); !os.IsNotExist(statErr) {
		t.Error("oversized artifact still on disk")
	}
	fail, ok := sink.last().(models.ErrorMessage)
	if !ok || fail.TaskID != res.TaskID {
		t.Errorf("last message = %#v, want terminal ErrorMessage with task id", sink.last())
	}
}

func TestSubmitProbeFailure(t *testing.T) {
	ex := &fakeExtractor{probeErr: errors.New("video unavailable")}
	orch, jobs := newTestOrchestrator(t, ex)

	res, err := orch.Submit(context.Background(), "https://youtu.be/gone", 15, &collectSink{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	var xerr *ExtractionError
	if !errors.As(res.Err, &xerr) {
		t.Fatalf("res.Err = %v, want ExtractionError", res.Err)
	}
	job, _ := jobs.Get(res.TaskID)
	if job.Status != models.StatusFailed || job.Error == "" {
		t.Errorf("job = %+v, want failed with reason", job)
	}
}

func TestSubmitMissingArtifact(t *testing.T) {
	// Extractor claims success but never writes the file.
	ex := &fakeExtractor{meta: &extractor.Metadata{Title: "ghost"}}
	orch, jobs := newTestOrchestrator(t, ex)

	res, err := orch.Submit(context.Background(), "https://youtu.be/abc123", 15, &collectSink{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Err == nil {
		t.Fatal("reported success despite missing artifact")
	}

	job, _ := jobs.Get(res.TaskID)
	if job.Status != models.StatusFailed {
		t.Errorf("job status = %q, want failed", job.Status)
	}
}

func TestSubmitThumbnailFailureIsNonFatal(t *testing.T) {
	thumbSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer thumbSrv.Close()

	ex := &fakeExtractor{
		meta: &extractor.Metadata{
			Title:      "clip",
			Thumbnails: []extractor.Thumbnail{{URL: thumbSrv.URL + "/hq.jpg"}},
		},
		artifactBytes: 1 << 10,
	}
	orch, jobs := newTestOrchestrator(t, ex)

	res, err := orch.Submit(context.Background(), "https://youtu.be/abc123", 15, &collectSink{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Err != nil {
		t.Fatalf("thumbnail failure failed the job: %v", res.Err)
	}
	if res.ThumbnailURL != "" {
		t.Errorf("ThumbnailURL = %q, want empty", res.ThumbnailURL)
	}

	job, _ := jobs.Get(res.TaskID)
	if job.Status != models.StatusCompleted || job.ThumbnailPath != "" {
		t.Errorf("job = %+v, want completed without thumbnail", job)
	}
}

func TestEveryCreatedJobReachesTerminalState(t *testing.T) {
	cases := []*fakeExtractor{
		{meta: &extractor.Metadata{Title: "ok"}, artifactBytes: 512},
		{probeErr: errors.New("probe boom")},
		{meta: &extractor.Metadata{Title: "dl"}, downloadErr: errors.New("download boom")},
		{meta: &extractor.Metadata{Title: "none"}},
	}

	for i, ex := range cases {
		orch, jobs := newTestOrchestrator(t, ex)
		res, err := orch.Submit(context.Background(), "https://youtu.be/abc123", 15, &collectSink{})
		if err != nil {
			t.Fatalf("case %d: Submit: %v", i, err)
		}
		job, ok := jobs.Get(res.TaskID)
		if !ok {
			t.Fatalf("case %d: job missing", i)
		}
		if !job.Status.Terminal() {
			t.Errorf("case %d: job left in %q after Submit returned", i, job.Status)
		}
	}
}
