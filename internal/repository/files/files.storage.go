// FilePath: internal/repository/files/files.storage.go
package files

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	nuts "github.com/vaudience/go-nuts"

	"github.com/itsatony/w4b_v3/server/dashboard/internal/errors"
)

const (
	defaultMaxFileSize = 200 * 1024 * 1024 // 200MB
	defaultPermissions = 0755
	stagingPattern     = "export-%s-*.part"
	sniffLen           = 512
)

// FileConfig holds configuration for the staging area
type FileConfig struct {
	BasePath    string
	MaxFileSize int64
	AllowedMime []string
}

// Spool stages downloaded report payloads on disk before they are handed to
// the client, so a failed transfer never produces a partial response.
type Spool struct {
	config FileConfig
}

// NewSpool creates the staging directory if needed.
func NewSpool(config FileConfig) (*Spool, error) {
	if config.MaxFileSize <= 0 {
		config.MaxFileSize = defaultMaxFileSize
	}
	if err := createDirectoryIfNotExists(config.BasePath); err != nil {
		return nil, err
	}
	return &Spool{config: config}, nil
}

// StagedFile is one payload being spooled. It implements io.Writer and must
// always be released with Remove.
type StagedFile struct {
	f    *os.File
	size int64
	max  int64
}

// Stage opens a new staging file for a job.
func (s *Spool) Stage(jobID string) (*StagedFile, error) {
	f, err := os.CreateTemp(s.config.BasePath, fmt.Sprintf(stagingPattern, sanitize(jobID)))
	if err != nil {
		return nil, errors.NewInternalError("failed to create staging file", err)
	}
	return &StagedFile{f: f, max: s.config.MaxFileSize}, nil
}

func (sf *StagedFile) Write(p []byte) (int, error) {
	if sf.size+int64(len(p)) > sf.max {
		return 0, errors.NewValidationError("file size exceeds maximum allowed size", nil)
	}
	n, err := sf.f.Write(p)
	sf.size += int64(n)
	return n, err
}

func (sf *StagedFile) Path() string { return sf.f.Name() }

func (sf *StagedFile) Size() int64 { return sf.size }

// Remove closes and deletes the staging file. Safe to call more than once.
func (sf *StagedFile) Remove() error {
	_ = sf.f.Close()
	if err := os.Remove(sf.f.Name()); err != nil && !os.IsNotExist(err) {
		nuts.L.Errorf("[Spool] Failed to remove staging file %s: %v", sf.f.Name(), err)
		return err
	}
	return nil
}

// ContentType sniffs the staged payload and checks it against the allowed
// mime types.
func (s *Spool) ContentType(sf *StagedFile) (string, error) {
	head := make([]byte, sniffLen)
	n, err := sf.f.ReadAt(head, 0)
	if err != nil && err != io.EOF {
		return "", errors.NewInternalError("failed to read staging file", err)
	}
	detected := http.DetectContentType(head[:n])
	if !s.isAllowedMimeType(detected) {
		return "", errors.NewValidationError("unsupported file type", nil).WithDetails(map[string]string{"mime": detected})
	}
	return "text/csv", nil
}

// StreamFile copies the staged payload to w
func (s *Spool) StreamFile(ctx context.Context, sf *StagedFile, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := sf.f.Seek(0, io.SeekStart); err != nil {
		return errors.NewInternalError("failed to rewind staging file", err)
	}
	if _, err := io.Copy(w, sf.f); err != nil {
		return errors.NewInternalError("failed to stream file", err)
	}
	return nil
}

// DeleteOldFiles removes staging files left behind by a crash.
func (s *Spool) DeleteOldFiles(ctx context.Context, before time.Time) (int, error) {
	var deletedCount int
	err := filepath.Walk(s.config.BasePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasPrefix(info.Name(), "export-") {
			return nil
		}
		if info.ModTime().Before(before) {
			if err := os.Remove(path); err != nil {
				nuts.L.Errorf("[Spool] Failed to delete old file %s: %v", path, err)
				return nil
			}
			deletedCount++
		}
		return nil
	})
	if err != nil {
		return deletedCount, errors.NewInternalError("failed to delete old files", err)
	}

	if deletedCount > 0 {
		nuts.L.Infof("[Spool] Deleted %d staging files older than %v", deletedCount, before)
	}
	return deletedCount, nil
}

func (s *Spool) isAllowedMimeType(mimeType string) bool {
	if len(s.config.AllowedMime) == 0 {
		return true
	}
	media, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		media = mimeType
	}
	for _, allowed := range s.config.AllowedMime {
		if allowed == media {
			return true
		}
	}
	return false
}

func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, id)
}

func createDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		err := os.MkdirAll(path, defaultPermissions)
		if err != nil {
			return errors.NewInternalError("failed to create directory", err)
		}
	}
	return nil
}
