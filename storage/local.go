package storage

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"projector_reservation/errs"
	"projector_reservation/log"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Stored describes a saved document.
type Stored struct {
	Ref      string `json:"ref"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
}

// LocalStorage keeps uploaded documents on the local filesystem and refuses
// anything over the size ceiling or outside the MIME allowlist.
type LocalStorage struct {
	basePath string
	baseURL  string
	maxBytes int64
	allowed  []string
}

func NewLocalStorage(basePath, baseURL string, maxBytes int64, allowed []string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory %s: %w", basePath, err)
	}
	log.Logger.Info("local storage directory ensured", zap.String("path", basePath))
	return &LocalStorage{
		basePath: basePath,
		baseURL:  strings.TrimRight(baseURL, "/"),
		maxBytes: maxBytes,
		allowed:  allowed,
	}, nil
}

func (ls *LocalStorage) MaxBytes() int64 { return ls.maxBytes }

// SaveFile stores a multipart upload under subPath.
func (ls *LocalStorage) SaveFile(fh *multipart.FileHeader, subPath string) (*Stored, error) {
	if fh == nil {
		return nil, errs.Validation("file is required")
	}
	if fh.Size > ls.maxBytes {
		return nil, errs.Validation("file exceeds %d bytes", ls.maxBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	return ls.Put(f, subPath)
}

// Put sniffs, checks and writes r under subPath.
func (ls *LocalStorage) Put(r io.Reader, subPath string) (*Stored, error) {
	data, err := io.ReadAll(io.LimitReader(r, ls.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, errs.Validation("file is empty")
	}
	if int64(len(data)) > ls.maxBytes {
		return nil, errs.Validation("file exceeds %d bytes", ls.maxBytes)
	}

	mtype := mimetype.Detect(data)
	if !ls.allowedType(mtype) {
		return nil, errs.Validation("file type %s is not allowed", mtype.String())
	}

	dir := ls.basePath
	if subPath != "" {
		dir = filepath.Join(ls.basePath, filepath.Clean("/" + subPath))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create subdirectory: %w", err)
		}
	}

	name := uuid.NewString() + mtype.Extension()
	dst := filepath.Join(dir, name)
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		_ = os.Remove(dst)
		return nil, fmt.Errorf("write file: %w", err)
	}

	rel := name
	if subPath != "" {
		rel = strings.Trim(filepath.ToSlash(filepath.Clean("/"+subPath)), "/") + "/" + name
	}
	ref := ls.baseURL + "/" + rel
	log.Logger.Info("document stored", zap.String("ref", ref), zap.String("mime", mtype.String()), zap.Int("size", len(data)))
	return &Stored{Ref: ref, MimeType: mtype.String(), Size: int64(len(data))}, nil
}

// Delete removes the file behind ref. Unknown refs are ignored.
func (ls *LocalStorage) Delete(ref string) error {
	p := ls.FullPath(ref)
	if p == "" {
		return nil
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// FullPath maps a ref back to its filesystem path, or "" when ref is not ours.
func (ls *LocalStorage) FullPath(ref string) string {
	if !strings.HasPrefix(ref, ls.baseURL+"/") {
		return ""
	}
	rel := strings.TrimPrefix(ref, ls.baseURL+"/")
	return filepath.Join(ls.basePath, filepath.Clean("/"+rel))
}

func (ls *LocalStorage) allowedType(m *mimetype.MIME) bool {
	if len(ls.allowed) == 0 {
		return true
	}
	for _, a := range ls.allowed {
		if m.Is(a) {
			return true
		}
	}
	return false
}
