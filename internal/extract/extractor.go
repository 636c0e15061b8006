// Package extract loads documents from disk and returns their plain text.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hyperjump/kotae/internal/fileid"
	"github.com/hyperjump/kotae/internal/models"
)

// decodeFunc turns raw file bytes into text.
type decodeFunc func(content []byte) (string, error)

// UnsupportedFormatError is returned for file extensions with no decoder.
type UnsupportedFormatError struct {
	Ext string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported document format %q", e.Ext)
}

// Extractor maps file extensions to text decoders.
type Extractor struct {
	decoders map[string]decodeFunc
}

// NewExtractor returns an Extractor for plain text, Markdown, PDF, DOCX and XLSX files.
func NewExtractor() *Extractor {
	return &Extractor{decoders: map[string]decodeFunc{
		"":      decodePlain,
		".txt":  decodePlain,
		".text": decodePlain,
		".md":   decodePlain,
		".rst":  decodePlain,
		".csv":  decodePlain,
		".pdf":  decodePDF,
		".docx": decodeDOCX,
		".xlsx": decodeXLSX,
	}}
}

// Supported reports whether files with extension ext (including the dot) can be loaded.
func (e *Extractor) Supported(ext string) bool {
	_, ok := e.decoders[strings.ToLower(ext)]
	return ok
}

// Extensions returns the supported extensions, sorted.
func (e *Extractor) Extensions() []string {
	out := make([]string, 0, len(e.decoders))
	for ext := range e.decoders {
		if ext != "" {
			out = append(out, ext)
		}
	}
	sort.Strings(out)
	return out
}

// Extract reads the file at path and returns its text content.
func (e *Extractor) Extract(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !e.Supported(ext) {
		return "", &UnsupportedFormatError{Ext: ext}
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, ext)
}

// ExtractBytes decodes content according to ext, which includes the leading dot.
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	decode, ok := e.decoders[strings.ToLower(ext)]
	if !ok {
		return "", &UnsupportedFormatError{Ext: ext}
	}
	return decode(content)
}

// Load extracts the file at path into a Document whose ID is derived from the path.
func (e *Extractor) Load(path string) (models.Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return models.Document{}, fmt.Errorf("resolve path: %w", err)
	}
	text, err := e.Extract(abs)
	if err != nil {
		return models.Document{}, fmt.Errorf("load %s: %w", path, err)
	}
	return models.Document{
		ID:      fileid.FileDocID(abs),
		Source:  abs,
		Content: text,
	}, nil
}
