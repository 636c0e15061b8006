// Package fileid derives stable document IDs from a source path or from content.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const (
	filePrefix = "file:"
	textPrefix = "text:"
	hashBytes  = 12
)

// FileDocID returns a stable document ID for path. The path is made absolute and
// cleaned first, so equivalent spellings of one file share an ID.
func FileDocID(path string) string {
	normalized := filepath.Clean(path)
	if abs, err := filepath.Abs(normalized); err == nil {
		normalized = abs
	}
	return filePrefix + digest(normalized)
}

// ContentDocID returns a stable document ID for inline text with no source path.
func ContentDocID(content string) string {
	return textPrefix + digest(content)
}

// DocID picks FileDocID when source is set and ContentDocID otherwise.
func DocID(source, content string) string {
	if source != "" {
		return FileDocID(source)
	}
	return ContentDocID(content)
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:hashBytes])
}
