package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/denosaur/dinosaurs/internal/config"
	"github.com/stretchr/testify/require"
)

// fakeObjectServer answers path-style GetObject and StatObject (HEAD) requests
// for a single bucket.
func fakeObjectServer(t *testing.T, bucket string, objects map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.Path, "/"+bucket+"/")
		body, ok := objects[key]
		head := r.Method == http.MethodHead
		if (r.Method != http.MethodGet && !head) || !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			if head {
				return
			}
			_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message><Key>` + key + `</Key><BucketName>` + bucket + `</BucketName></Error>`))
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.Header().Set("ETag", `"0123456789abcdef0123456789abcdef"`)
		w.Header().Set("Last-Modified", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC).Format(http.TimeFormat))
		if head {
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestBucket(t *testing.T, srv *httptest.Server, prefix string) *Bucket {
	t.Helper()
	b, err := NewBucket(config.MinIOConfig{
		Endpoint:  strings.TrimPrefix(srv.URL, "http://"),
		AccessKey: "access",
		SecretKey: "secret",
		Region:    "us-east-1",
		Bucket:    "public",
		Prefix:    prefix,
	})
	require.NoError(t, err)
	return b
}

func TestNewBucket_RequiresEndpoint(t *testing.T) {
	_, err := NewBucket(config.MinIOConfig{})
	require.Error(t, err)
}

func TestBucket_Key(t *testing.T) {
	b := &Bucket{bucket: "public"}
	require.Equal(t, "index.html", b.Key("index.html"))
	b.prefix = "site"
	require.Equal(t, "site/index.html", b.Key("index.html"))
	require.Equal(t, "site/assets/app.js", b.Key("assets/app.js"))
}

func TestBucket_ReadFile(t *testing.T) {
	srv := fakeObjectServer(t, "public", map[string]string{"site/index.html": "<h1>dinosaurs</h1>"})
	b := newTestBucket(t, srv, "site")

	data, err := b.ReadFile(context.Background(), "index.html")
	require.NoError(t, err)
	require.Equal(t, "<h1>dinosaurs</h1>", string(data))

	_, err = b.ReadFile(context.Background(), "missing.html")
	require.Error(t, err)
}
