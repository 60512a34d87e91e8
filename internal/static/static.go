// Package static serves the browser front end from a public root.
package static

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/spf13/afero"
)

// IndexFile is served for requests to "/".
const IndexFile = "index.html"

var errDirectory = errors.New("is a directory")

// Source reads whole files by their slash-separated name relative to the public root.
type Source interface {
	ReadFile(ctx context.Context, name string) ([]byte, error)
}

// FSSource reads from an afero filesystem whose root is the public directory.
type FSSource struct {
	fs afero.Fs
}

func NewFSSource(fs afero.Fs) *FSSource {
	return &FSSource{fs: fs}
}

// NewDirSource roots an OS filesystem at dir. The base path filesystem refuses
// any name that resolves outside dir.
func NewDirSource(dir string) *FSSource {
	return NewFSSource(afero.NewBasePathFs(afero.NewOsFs(), dir))
}

func (s *FSSource) ReadFile(_ context.Context, name string) ([]byte, error) {
	info, err := s.fs.Stat(name)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, errDirectory
	}
	return afero.ReadFile(s.fs, name)
}

// Server answers every request with a file from its Source or a plain-text 404.
type Server struct {
	src Source
}

func New(src Source) *Server {
	return &Server{src: src}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name, ok := Resolve(r.URL)
	if !ok {
		notFound(w)
		return
	}
	data, err := s.src.ReadFile(r.Context(), name)
	if err != nil {
		notFound(w)
		return
	}
	w.Header().Set("Content-Type", ContentType(name))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Resolve maps a request URL to a file name relative to the public root.
// It reports false when the path cannot be decoded or would climb above the root.
func Resolve(u *url.URL) (string, bool) {
	p, err := url.PathUnescape(u.EscapedPath())
	if err != nil {
		return "", false
	}
	if p == "/" || p == "" {
		p = "/" + IndexFile
	}
	p = strings.TrimPrefix(p, "/")
	if strings.ContainsRune(p, 0) {
		return "", false
	}
	cleaned := path.Clean(p)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", false
	}
	return strings.TrimLeft(cleaned, "/"), true
}

// webTypes pins the front end's own file types so the answer does not depend
// on the host's mime.types.
var webTypes = map[string]string{
	".html": "text/html; charset=utf-8",
	".htm":  "text/html; charset=utf-8",
	".js":   "text/javascript; charset=utf-8",
	".css":  "text/css; charset=utf-8",
	".json": "application/json; charset=utf-8",
}

// ContentType infers the response content type from the file extension.
func ContentType(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		return "application/octet-stream"
	}
	if ct, ok := webTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return withCharset(ct)
	}
	return "application/octet-stream"
}

// withCharset pins textual types to UTF-8.
func withCharset(ct string) string {
	mediaType, params, err := mime.ParseMediaType(ct)
	if err != nil {
		return ct
	}
	if _, ok := params["charset"]; ok {
		return ct
	}
	if strings.HasPrefix(mediaType, "text/") || mediaType == "application/json" || mediaType == "application/javascript" {
		return ct + "; charset=utf-8"
	}
	return ct
}

func notFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte("Not found"))
}
