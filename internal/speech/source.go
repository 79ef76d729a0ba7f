package speech

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var audioExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".ogg":  true,
	".m4a":  true,
	".webm": true,
	".flac": true,
}

// DirSource replays the audio files of a directory in lexical order.
type DirSource struct {
	files []string
	next  int
}

func NewDirSource(dir string) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read audio dir %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !audioExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)

	return &DirSource{files: files}, nil
}

// Len returns the number of clips the source will yield.
func (d *DirSource) Len() int {
	return len(d.files)
}

func (d *DirSource) Next(ctx context.Context) (Clip, error) {
	if err := ctx.Err(); err != nil {
		return Clip{}, err
	}
	if d.next >= len(d.files) {
		return Clip{}, io.EOF
	}

	path := d.files[d.next]
	d.next++

	audio, err := os.ReadFile(path)
	if err != nil {
		return Clip{}, fmt.Errorf("read clip %s: %w", path, err)
	}

	return Clip{Name: filepath.Base(path), Audio: audio}, nil
}
