package handlers

import (
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	maxPhotoSize    = 2 * 1024 * 1024
	maxDocumentSize = 5 * 1024 * 1024
)

var (
	photoExts    = []string{".jpg", ".jpeg", ".png"}
	documentExts = []string{".jpg", ".jpeg", ".png", ".pdf"}
)

// Uploader stores multipart files below Dir and serves them under /uploads.
type Uploader struct {
	Dir           string
	PublicBaseURL string
}

type uploadRule struct {
	exts    []string
	maxSize int64
}

// check returns a user-facing message when the file breaks the rule.
func (r uploadRule) check(field string, fh *multipart.FileHeader) string {
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	allowed := false
	for _, e := range r.exts {
		if e == ext {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Sprintf("%s must be %s", field, strings.ReplaceAll(strings.Join(r.exts, "/"), ".", ""))
	}
	if fh.Size > r.maxSize {
		return fmt.Sprintf("%s max size is %dMB", field, r.maxSize/(1024*1024))
	}
	return ""
}

// Save writes fh to <Dir>/<sub...>/<random><ext> and returns its public URL.
func (u *Uploader) Save(c *fiber.Ctx, fh *multipart.FileHeader, sub ...string) (string, error) {
	rel := filepath.Join(sub...)
	dir := filepath.Join(u.Dir, rel)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	filename := uuid.NewString() + strings.ToLower(filepath.Ext(fh.Filename))
	if err := c.SaveFile(fh, filepath.Join(dir, filename)); err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}

	path := "/uploads/" + filepath.ToSlash(filepath.Join(rel, filename))
	base := strings.TrimRight(u.PublicBaseURL, "/")
	return base + path, nil
}

// RemoveAll deletes an upload subtree, used to undo a failed registration.
func (u *Uploader) RemoveAll(sub ...string) {
	_ = os.RemoveAll(filepath.Join(u.Dir, filepath.Join(sub...)))
}
