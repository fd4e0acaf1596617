package downloading_test

import (
	"context"
	"errors"
	"testing"

	"podscribe/internal/downloading"
	"podscribe/internal/media"
	"podscribe/internal/services"
	"podscribe/internal/testsupport"
)

type stubDownloader struct {
	result media.DownloadResult
	err    error
	calls  int
}

func (d *stubDownloader) Download(ctx context.Context, sourceURL, destDir string) (media.DownloadResult, error) {
	d.calls++
	return d.result, d.err
}

func TestExecuteRecordsAudioMetadata(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	episode := testsupport.NewEpisode(t, st, "https://example.com/ep1", "")

	downloader := &stubDownloader{result: media.DownloadResult{
		LocalPath:       "/audio/abc123.mp3",
		DurationSeconds: 1800,
		Title:           "Deep Dive 42",
	}}
	handler := downloading.NewHandler(cfg, nil).WithDownloader(downloader)

	if err := handler.Prepare(context.Background(), episode); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := handler.Execute(context.Background(), episode); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if episode.AudioPath != "/audio/abc123.mp3" {
		t.Fatalf("audio path = %q", episode.AudioPath)
	}
	if episode.DurationSeconds != 1800 {
		t.Fatalf("duration = %v", episode.DurationSeconds)
	}
	if episode.Title != "Deep Dive 42" {
		t.Fatalf("title = %q, want downloader metadata title", episode.Title)
	}
}

func TestExecuteKeepsExistingTitle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	episode := testsupport.NewEpisode(t, st, "https://example.com/ep1", "My Custom Title")

	downloader := &stubDownloader{result: media.DownloadResult{
		LocalPath:       "/audio/abc123.mp3",
		DurationSeconds: 60,
		Title:           "Feed Title",
	}}
	handler := downloading.NewHandler(cfg, nil).WithDownloader(downloader)

	if err := handler.Execute(context.Background(), episode); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if episode.Title != "My Custom Title" {
		t.Fatalf("title = %q, want the user-supplied title preserved", episode.Title)
	}
}

func TestPrepareRejectsMissingSourceURL(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	episode := testsupport.NewEpisode(t, st, "https://example.com/ep1", "Episode")
	episode.SourceURL = "   "

	handler := downloading.NewHandler(cfg, nil)
	err := handler.Prepare(context.Background(), episode)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestExecuteWrapsDownloaderFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	episode := testsupport.NewEpisode(t, st, "https://example.com/ep1", "Episode")

	downloader := &stubDownloader{err: errors.New("HTTP 503")}
	handler := downloading.NewHandler(cfg, nil).WithDownloader(downloader)

	err := handler.Execute(context.Background(), episode)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("err = %v, want ErrExternalTool", err)
	}
	if services.IsFatal(err) {
		t.Fatal("external tool failures must stay retryable")
	}
}

func TestExecuteRejectsZeroDuration(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	episode := testsupport.NewEpisode(t, st, "https://example.com/ep1", "Episode")

	downloader := &stubDownloader{result: media.DownloadResult{LocalPath: "/audio/x.mp3"}}
	handler := downloading.NewHandler(cfg, nil).WithDownloader(downloader)

	err := handler.Execute(context.Background(), episode)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}
