package gazetteer

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/couchcryptid/movie-data-etl/internal/domain"
)

// ErrNoTextEntry is returned when an archive holds no .txt member.
var ErrNoTextEntry = errors.New("gazetteer: archive has no .txt entry")

// entryReader closes both the zip entry and the archive.
type entryReader struct {
	io.ReadCloser
	archive *zip.ReadCloser
}

func (e *entryReader) Close() error {
	return errors.Join(e.ReadCloser.Close(), e.archive.Close())
}

// OpenArchive opens the gazetteer zip at path and returns a reader over its
// first .txt entry. The returned reader closes the archive.
func OpenArchive(path string) (io.ReadCloser, string, error) {
	rz, err := zip.OpenReader(path)
	if err != nil {
		return nil, "", fmt.Errorf("open gazetteer archive: %w", err)
	}

	for _, f := range rz.File {
		if !strings.HasSuffix(strings.ToLower(f.Name), ".txt") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			rz.Close()
			return nil, "", fmt.Errorf("open archive entry %s: %w", f.Name, err)
		}
		return &entryReader{ReadCloser: rc, archive: rz}, f.Name, nil
	}

	rz.Close()
	return nil, "", ErrNoTextEntry
}

// LoadArchive opens the archive at path and loads its places.
func LoadArchive(path string, logger *slog.Logger) (*domain.PlaceSet, LoadStats, error) {
	rc, name, err := OpenArchive(path)
	if err != nil {
		return nil, LoadStats{}, err
	}
	defer rc.Close()

	logger.Info("loading gazetteer", "archive", path, "entry", name)
	return Load(rc, logger)
}
