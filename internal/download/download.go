// Package download fetches the audio of a playable candidate with yt-dlp.
package download

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/wader/goutubedl"
	"go.uber.org/zap"

	"songdl/internal/core"
	"songdl/internal/progress"
)

const audioFormat = "bestaudio"

// invalidFilenameRegex strips characters that are unsafe in filenames on at
// least one supported platform.
var invalidFilenameRegex = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

type Downloader struct {
	config *core.DownloadConfig
	logger *zap.Logger
}

func New(config *core.DownloadConfig, logger *zap.Logger) *Downloader {
	return &Downloader{config: config, logger: logger}
}

// Result is a finished download: the file on disk plus the metadata yt-dlp
// extracted from the watch page, which joins the tag merge.
type Result struct {
	Path     string
	Metadata core.Candidate
}

// Download streams the best audio of the video into the output directory.
// task, when non-nil, tracks byte progress.
func (d *Downloader) Download(ctx context.Context, videoID string, task *progress.Task) (*Result, error) {
	watchURL := "https://www.youtube.com/watch?v=" + url.QueryEscape(videoID)
	d.logger.Info("downloading", zap.String("url", watchURL))

	video, err := goutubedl.New(ctx, watchURL, goutubedl.Options{Type: goutubedl.TypeSingle})
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", videoID, err)
	}
	info := video.Info

	if task != nil {
		size := info.Filesize
		if size == 0 {
			size = info.FilesizeApprox
		}
		if size > 0 {
			task.SetTotal(size)
		}
	}

	reader, err := video.Download(ctx, audioFormat)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", videoID, err)
	}
	defer reader.Close()

	ext := info.Ext
	if ext == "" {
		ext = "m4a"
	}
	path := filepath.Join(d.config.OutputDir, sanitizeFilename(videoID)+"."+ext)
	if err := os.MkdirAll(d.config.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("download %s: %w", videoID, err)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", videoID, err)
	}
	defer file.Close()

	var src io.Reader = reader
	if task != nil {
		src = &progressReader{reader: reader, task: task}
	}
	written, err := io.Copy(file, src)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("download %s: %w", videoID, err)
	}
	if task != nil {
		task.Done()
	}

	d.logger.Info("download finished", zap.String("path", path), zap.Int64("bytes", written))
	return &Result{Path: path, Metadata: metadataCandidate(info)}, nil
}

// Rename moves the downloaded file to "Artist - Title.<ext>" once the final
// tags are known. Missing fields keep the download name.
func (d *Downloader) Rename(result *Result, artist, title string) string {
	if artist == "" || title == "" {
		return result.Path
	}
	ext := filepath.Ext(result.Path)
	target := filepath.Join(filepath.Dir(result.Path), sanitizeFilename(artist+" - "+title)+ext)
	if err := os.Rename(result.Path, target); err != nil {
		d.logger.Warn("cannot rename download", zap.String("target", target), zap.Error(err))
		return result.Path
	}
	result.Path = target
	return target
}

// metadataCandidate converts the watch-page metadata into a candidate so it
// participates in the tag merge like any provider result.
func metadataCandidate(info goutubedl.Info) core.Candidate {
	artist := info.Artist
	if artist == "" {
		artist = info.Creator
	}
	if artist == "" {
		artist = strings.TrimSuffix(info.Channel, " - Topic")
	}

	var artists []string
	if artist != "" {
		artists = []string{artist}
	}

	var pictures []*core.Picture
	if info.Thumbnail != "" {
		pictures = append(pictures, core.NewPicture(info.Thumbnail, 0, 0))
	}

	title := info.Track
	if title == "" {
		title = info.Title
	}

	return core.Candidate{
		Title:    title,
		Artists:  artists,
		Album:    info.Album,
		Duration: info.Duration,
		Pictures: pictures,
		Extras:   core.VideoExtras{VideoID: info.ID, Views: int64(info.ViewCount)},
	}
}

func sanitizeFilename(name string) string {
	name = invalidFilenameRegex.ReplaceAllString(name, "_")
	name = strings.Trim(name, ". ")
	if name == "" {
		name = "song"
	}
	return name
}

// progressReader reports bytes read to a progress task. The download path
// opts into it explicitly instead of instrumenting a shared HTTP client.
type progressReader struct {
	reader io.Reader
	task   *progress.Task
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if n > 0 {
		r.task.Add(float64(n))
	}
	return n, err
}
