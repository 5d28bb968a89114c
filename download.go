package broute

import (
	"bytes"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"path"

	"github.com/cockroachdb/errors"
)

// Download writes the named file from fsys as an attachment. Range requests are answered with 206 and a
// Content-Range header, and Accept-Ranges is always announced. A missing file, or a directory, results in a
// page-not-found error. The file is buffered like any other body, so the buffer limit applies.
func Download(w ResponseWriter, r *http.Request, fsys fs.FS, name string) error {
	f, err := fsys.Open(name)
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
		return NewPageNotFoundError(homeURL(r, basePathOf(r)), WithCause(err))
	} else if err != nil {
		return errors.Wrapf(err, "open %s", name)
	}

	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return errors.Wrapf(err, "stat %s", name)
	}

	if fi.IsDir() {
		return NewPageNotFoundError(homeURL(r, basePathOf(r)))
	}

	content, ok := f.(io.ReadSeeker)
	if !ok {
		b, err := io.ReadAll(f)
		if err != nil {
			return errors.Wrapf(err, "read %s", name)
		}

		content = bytes.NewReader(b)
	}

	h := w.Header()
	if h.Get("Content-Type") == "" {
		h.Set("Content-Type", "application/octet-stream")
	}

	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": path.Base(name)}))
	http.ServeContent(w, r, fi.Name(), fi.ModTime(), content)

	return nil
}

// basePathOf returns the base path of the router that dispatched r.
func basePathOf(r *http.Request) string {
	if rc, ok := FromContext(r.Context()); ok {
		return rc.router.BasePath()
	}

	return ""
}
