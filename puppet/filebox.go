package puppet

import (
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// MaxFileBoxSize caps inline attachments.
const MaxFileBoxSize = 50 * 1024 * 1024

// FileBoxType says where a FileBox's content lives.
type FileBoxType string

const (
	FileBoxBase64 FileBoxType = "base64"
	FileBoxURL    FileBoxType = "url"
)

// FileBox is a binary attachment as it travels to and from the puppet:
// either inline base64 content or a remote URL the backend downloads.
type FileBox struct {
	Type     FileBoxType `json:"type"`
	Name     string      `json:"name"`
	MimeType string      `json:"mimeType,omitempty"`
	Base64   string      `json:"base64,omitempty"`
	URL      string      `json:"url,omitempty"`
}

// FileBoxFromBytes wraps data as an inline attachment. The MIME type is
// guessed from name.
func FileBoxFromBytes(name string, data []byte) (*FileBox, error) {
	if name == "" {
		return nil, fmt.Errorf("puppet: file box name is required")
	}
	if len(data) > MaxFileBoxSize {
		return nil, fmt.Errorf("puppet: file %s exceeds maximum size of 50 MB", name)
	}
	return &FileBox{
		Type:     FileBoxBase64,
		Name:     name,
		MimeType: guessMimeType(name),
		Base64:   base64.StdEncoding.EncodeToString(data),
	}, nil
}

// FileBoxFromFile reads a local file into an inline attachment.
func FileBoxFromFile(path string) (*FileBox, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("puppet: failed to read file: %w", err)
	}
	return FileBoxFromBytes(filepath.Base(path), data)
}

// FileBoxFromURL references a remote file. name defaults to the last path
// segment of url.
func FileBoxFromURL(url, name string) *FileBox {
	if name == "" {
		name = filepath.Base(strings.SplitN(url, "?", 2)[0])
	}
	return &FileBox{
		Type:     FileBoxURL,
		Name:     name,
		MimeType: guessMimeType(name),
		URL:      url,
	}
}

// Bytes decodes inline content. URL boxes have no local content.
func (f *FileBox) Bytes() ([]byte, error) {
	if f.Type != FileBoxBase64 {
		return nil, fmt.Errorf("puppet: file box %s has no inline content", f.Name)
	}
	data, err := base64.StdEncoding.DecodeString(f.Base64)
	if err != nil {
		return nil, fmt.Errorf("puppet: decode file box %s: %w", f.Name, err)
	}
	return data, nil
}

func (f *FileBox) String() string {
	return fmt.Sprintf("FileBox<%s>", f.Name)
}

// guessMimeType returns MIME type from file extension.
func guessMimeType(fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == "" {
		return "application/octet-stream"
	}
	// Fallback for types not in Go's builtin registry
	fallback := map[string]string{
		".md": "text/markdown", ".yaml": "text/yaml", ".yml": "text/yaml",
		".webp": "image/webp", ".webm": "video/webm", ".silk": "audio/silk",
	}
	if m, ok := fallback[ext]; ok {
		return m
	}
	t := mime.TypeByExtension(ext)
	if t != "" {
		if idx := strings.Index(t, ";"); idx > 0 {
			t = strings.TrimSpace(t[:idx])
		}
		return t
	}
	return "application/octet-stream"
}
