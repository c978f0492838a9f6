// Package attachment turns uploaded goal files into retrievable references.
package attachment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/vincent-petithory/dataurl"

	"github.com/cppla/branch/models"
)

// MaxSize bounds a single upload.
const MaxSize = 50 << 20

var (
	ErrEmpty    = errors.New("attachment is empty")
	ErrTooLarge = errors.New("attachment exceeds size limit")
)

// Upload is a raw file selected for a goal.
type Upload struct {
	Name string
	Type string
	Data []byte
}

// Encoder converts an upload to an attachment record.
type Encoder interface {
	Encode(ctx context.Context, up Upload) (*models.Attachment, error)
}

func validate(up Upload) (string, error) {
	if len(up.Data) == 0 {
		return "", ErrEmpty
	}
	if len(up.Data) > MaxSize {
		return "", ErrTooLarge
	}
	mt := strings.TrimSpace(up.Type)
	if mt == "" {
		mt = mimetype.Detect(up.Data).String()
	}
	return mt, nil
}

func displayName(up Upload) string {
	name := filepath.Base(strings.TrimSpace(up.Name))
	if name == "." || name == "/" || name == "" {
		return "attachment"
	}
	return name
}

// DataURLEncoder inlines the file as a base64 data URL.
type DataURLEncoder struct{}

func (DataURLEncoder) Encode(ctx context.Context, up Upload) (*models.Attachment, error) {
	mt, err := validate(up)
	if err != nil {
		return nil, err
	}
	base, _, _ := strings.Cut(mt, ";")
	u := dataurl.New(up.Data, strings.TrimSpace(base))
	return &models.Attachment{Name: displayName(up), Type: mt, URL: u.String()}, nil
}

// FileEncoder writes content-addressed files under Dir and returns URLs
// under BaseURL. Identical content maps to the same file.
type FileEncoder struct {
	Dir     string
	BaseURL string
}

func (e FileEncoder) Encode(ctx context.Context, up Upload) (*models.Attachment, error) {
	mt, err := validate(up)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(e.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	sum := sha256.Sum256(up.Data)
	ext := mimetype.Lookup(mt)
	name := hex.EncodeToString(sum[:])
	if ext != nil {
		name += ext.Extension()
	} else {
		name += strings.ToLower(filepath.Ext(up.Name))
	}

	dst := filepath.Join(e.Dir, name)
	if _, err := os.Stat(dst); errors.Is(err, os.ErrNotExist) {
		tmp := dst + ".tmp"
		if err := os.WriteFile(tmp, up.Data, 0o644); err != nil {
			return nil, fmt.Errorf("write upload: %w", err)
		}
		if err := os.Rename(tmp, dst); err != nil {
			_ = os.Remove(tmp)
			return nil, fmt.Errorf("store upload: %w", err)
		}
	}

	return &models.Attachment{Name: displayName(up), Type: mt, URL: path.Join(e.BaseURL, name)}, nil
}
