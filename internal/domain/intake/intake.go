// Package intake decides which user supplied files may start a scan.
package intake

import (
	"io"
	"mime/multipart"
	"strings"
	"sync"

	platformerrors "carscan-server/internal/platform/errors"
)

// File is an uploaded image held in memory for the lifetime of one scan.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

func (f File) Size() int { return len(f.Data) }

// Accept reports whether the declared content type is an image type.
// Nothing beyond the MIME prefix is checked.
func Accept(f File) bool {
	return strings.HasPrefix(f.ContentType, "image/")
}

// Select mirrors a file picker: only the first chosen file is considered.
func Select(files []File) (File, bool) {
	if len(files) == 0 || !Accept(files[0]) {
		return File{}, false
	}
	return files[0], true
}

// Pick mirrors a drop: the first image among the dropped files wins.
func Pick(files []File) (File, bool) {
	for _, f := range files {
		if Accept(f) {
			return f, true
		}
	}
	return File{}, false
}

// FromMultipart reads a multipart file part into memory.
func FromMultipart(fh *multipart.FileHeader) (File, error) {
	src, err := fh.Open()
	if err != nil {
		return File{}, platformerrors.Wrap(platformerrors.KindIntake, "intake.open", "failed to open uploaded file", err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return File{}, platformerrors.Wrap(platformerrors.KindIntake, "intake.read", "failed to read uploaded file", err)
	}
	return File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// Target is the intake gate shared by the drop zone and the file picker.
// While disabled every delivery is ignored.
type Target struct {
	mu       sync.Mutex
	disabled bool
}

func NewTarget() *Target {
	return &Target{}
}

// SetDisabled toggles intake, typically while a scan is running.
func (t *Target) SetDisabled(disabled bool) {
	t.mu.Lock()
	t.disabled = disabled
	t.mu.Unlock()
}

func (t *Target) Disabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.disabled
}

// Drop returns the first image among the dropped files.
func (t *Target) Drop(files []File) (File, bool) {
	return t.deliver(files, Pick)
}

// Choose returns the picker selection when it is an image.
func (t *Target) Choose(files []File) (File, bool) {
	return t.deliver(files, Select)
}

func (t *Target) deliver(files []File, choose func([]File) (File, bool)) (File, bool) {
	if t.Disabled() {
		return File{}, false
	}
	return choose(files)
}
