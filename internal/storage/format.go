package storage

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"audio-notes-go/internal/types"
)

// supportedExts is the upload allowlist. Matching is case-insensitive.
var supportedExts = map[string]struct{}{
	".mp3":  {},
	".wav":  {},
	".m4a":  {},
	".ogg":  {},
	".flac": {},
}

// SupportedExtensions returns the allowlist in stable order, for error
// messages and docs.
func SupportedExtensions() []string {
	out := make([]string, 0, len(supportedExts))
	for ext := range supportedExts {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// NormalizeExt lower-cases the extension of a filename, including the dot.
func NormalizeExt(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// CheckExtension validates a filename against the allowlist and returns the
// normalized extension.
func CheckExtension(filename string) (string, error) {
	ext := NormalizeExt(filename)
	if _, ok := supportedExts[ext]; !ok {
		return "", fmt.Errorf("%w: %q (supported: %s)",
			types.ErrUnsupportedFormat, ext, strings.Join(SupportedExtensions(), " "))
	}
	return ext, nil
}

// sniffLen covers the longest magic we check: RIFF....WAVE.
const sniffLen = 12

// SniffHeader checks the leading bytes of a file against the magic numbers of
// the supported containers. A file whose header matches none of them is
// treated as corrupt regardless of its extension.
func SniffHeader(header []byte) error {
	if len(header) >= 12 &&
		bytes.Equal(header[0:4], []byte("RIFF")) &&
		bytes.Equal(header[8:12], []byte("WAVE")) {
		return nil
	}
	if len(header) >= 4 && bytes.Equal(header[0:4], []byte("fLaC")) {
		return nil
	}
	if len(header) >= 4 && bytes.Equal(header[0:4], []byte("OggS")) {
		return nil
	}
	if len(header) >= 8 && bytes.Equal(header[4:8], []byte("ftyp")) {
		return nil
	}
	if len(header) >= 3 && bytes.Equal(header[0:3], []byte("ID3")) {
		return nil
	}
	// Raw MPEG audio frame sync: eleven set bits.
	if len(header) >= 2 && header[0] == 0xFF && header[1]&0xE0 == 0xE0 {
		return nil
	}
	return fmt.Errorf("%w: unrecognized header", types.ErrCorruptAudio)
}

// CheckAudioFile verifies that path exists, is non-empty and starts with a
// recognized container header.
func CheckAudioFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	header := make([]byte, sniffLen)
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.ErrUnexpectedEOF {
		return fmt.Errorf("%w: %v", types.ErrCorruptAudio, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: empty file", types.ErrCorruptAudio)
	}
	return SniffHeader(header[:n])
}
