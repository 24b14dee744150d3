// Package tag writes ID3v2 metadata onto downloaded audio files.
package tag

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/nfnt/resize"
	"go.uber.org/zap"

	"songdl/internal/core"
)

const (
	// maxArtworkSize bounds the embedded cover art dimensions.
	maxArtworkSize = 1200
	defaultLang    = "eng"
)

type Writer struct {
	logger *zap.Logger
}

func NewWriter(logger *zap.Logger) *Writer {
	return &Writer{logger: logger}
}

// Apply replaces the file's tags with the candidate's metadata. Artwork and
// lyrics failures degrade to a file without that frame, not to an error.
func (w *Writer) Apply(ctx context.Context, path string, c core.Candidate) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: false})
	if err != nil {
		return fmt.Errorf("tag %s: %w", path, err)
	}
	defer tag.Close()

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	tag.SetTitle(c.Title)
	tag.SetArtist(c.ArtistText())
	tag.SetAlbum(c.Album)
	if c.Genre != "" {
		tag.SetGenre(c.Genre)
	}
	if !c.ReleaseDate.IsZero() {
		tag.SetYear(strconv.Itoa(c.ReleaseDate.Year()))
	}
	if c.ISRC != "" {
		tag.AddTextFrame(tag.CommonID("ISRC"), tag.DefaultEncoding(), c.ISRC)
	}
	if c.Copyright != "" {
		tag.AddTextFrame(tag.CommonID("Copyright message"), tag.DefaultEncoding(), c.Copyright)
	}
	if c.Language != "" {
		tag.AddTextFrame(tag.CommonID("Language"), tag.DefaultEncoding(), c.Language)
	}
	if c.TrackNumber > 0 {
		tag.AddTextFrame(tag.CommonID("Track number/Position in set"), tag.DefaultEncoding(),
			strconv.Itoa(c.TrackNumber))
	}

	lyrics, err := c.FetchLyrics(ctx)
	if err != nil {
		w.logger.Warn("lyrics fetch failed", zap.Error(err))
	} else if !lyrics.IsZero() {
		tag.AddUnsynchronisedLyricsFrame(id3v2.UnsynchronisedLyricsFrame{
			Encoding:          id3v2.EncodingUTF8,
			Language:          lyricsLanguage(c.Language),
			ContentDescriptor: "",
			Lyrics:            lyricsText(lyrics),
		})
	}

	if artwork, mime := w.artwork(ctx, c.Pictures); artwork != nil {
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    mime,
			PictureType: id3v2.PTFrontCover,
			Picture:     artwork,
		})
	}

	if err := tag.Save(); err != nil {
		return fmt.Errorf("tag %s: %w", path, err)
	}
	return nil
}

// WriteLyricsSidecar writes an .lrc file next to the audio file when synced
// lyrics exist. It returns the sidecar path, or "" when nothing was written.
func (w *Writer) WriteLyricsSidecar(ctx context.Context, audioPath string, c core.Candidate) string {
	lyrics, err := c.FetchLyrics(ctx)
	if err != nil || len(lyrics.Synced) == 0 {
		return ""
	}

	path := sidecarPath(audioPath)
	if err := os.WriteFile(path, []byte(FormatLRC(lyrics.Synced)+"\n"), 0644); err != nil {
		w.logger.Warn("cannot write lyrics sidecar", zap.String("path", path), zap.Error(err))
		return ""
	}
	return path
}

func sidecarPath(audioPath string) string {
	if i := strings.LastIndex(audioPath, "."); i > strings.LastIndex(audioPath, "/") {
		return audioPath[:i] + ".lrc"
	}
	return audioPath + ".lrc"
}

// FormatLRC renders synced lyrics as an LRC document.
func FormatLRC(lines []core.LyricLine) string {
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		ms := line.At.Milliseconds()
		fmt.Fprintf(&b, "[%02d:%02d.%02d] %s", ms/60000, ms%60000/1000, ms%1000/10, line.Text)
	}
	return b.String()
}

// lyricsText prefers the LRC form so players with timed-lyrics support can
// use the timestamps even out of a plain USLT frame.
func lyricsText(lyrics core.Lyrics) string {
	if len(lyrics.Synced) > 0 {
		return FormatLRC(lyrics.Synced)
	}
	return lyrics.Plain
}

func lyricsLanguage(language string) string {
	if len(language) == 3 {
		return strings.ToLower(language)
	}
	return defaultLang
}

// artwork returns the best cover image, downscaled to maxArtworkSize and
// re-encoded as JPEG. Pictures are tried biggest first until one decodes.
func (w *Writer) artwork(ctx context.Context, pictures []*core.Picture) ([]byte, string) {
	sorted := make([]*core.Picture, len(pictures))
	copy(sorted, pictures)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Size() > sorted[j].Size() })

	for _, picture := range sorted {
		data, err := picture.Download(ctx)
		if err != nil {
			w.logger.Debug("artwork download failed", zap.String("url", picture.URL), zap.Error(err))
			continue
		}

		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			// Keep the raw bytes when the format is not decodable here.
			w.logger.Debug("artwork decode failed, embedding as is", zap.String("url", picture.URL))
			return data, mimeFromURL(picture.URL)
		}

		bounds := img.Bounds()
		if bounds.Dx() > maxArtworkSize || bounds.Dy() > maxArtworkSize {
			img = resize.Thumbnail(maxArtworkSize, maxArtworkSize, img, resize.Lanczos3)
		}

		var out bytes.Buffer
		if err := jpeg.Encode(&out, img, nil); err != nil {
			w.logger.Debug("artwork encode failed", zap.Error(err))
			continue
		}
		return out.Bytes(), "image/jpeg"
	}
	return nil, ""
}

func mimeFromURL(url string) string {
	switch {
	case strings.HasSuffix(url, ".png"):
		return "image/png"
	case strings.HasSuffix(url, ".gif"):
		return "image/gif"
	case strings.HasSuffix(url, ".webp"):
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
