package s3

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blogem/memorial-registry/config"
	"github.com/blogem/memorial-registry/storage"
)

const testBucket = "test-bucket"

// fakeS3 speaks enough of the path-style S3 REST API for the backend
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	meta    map[string]map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")
	bucket, key, _ := strings.Cut(path, "/")
	if bucket != testBucket {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if key == "" && r.Method == http.MethodGet {
		f.list(w, r.URL.Query().Get("prefix"))
		return
	}

	switch r.Method {
	case http.MethodPut:
		if _, exists := f.objects[key]; exists && r.Header.Get("If-None-Match") == "*" {
			writeError(w, http.StatusPreconditionFailed, "PreconditionFailed")
			return
		}
		data, _ := io.ReadAll(r.Body)
		meta := map[string]string{}
		for hk, hv := range r.Header {
			lk := strings.ToLower(hk)
			if strings.HasPrefix(lk, "x-amz-meta-") && len(hv) > 0 {
				meta[strings.TrimPrefix(lk, "x-amz-meta-")] = hv[0]
			}
		}
		f.objects[key] = data
		f.meta[key] = meta
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)

	case http.MethodGet:
		data, ok := f.objects[key]
		if !ok {
			writeError(w, http.StatusNotFound, "NoSuchKey")
			return
		}
		w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
		w.WriteHeader(http.StatusOK)
		w.Write(data)

	case http.MethodHead:
		data, ok := f.objects[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
		w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
		for mk, mv := range f.meta[key] {
			w.Header().Set("x-amz-meta-"+mk, mv)
		}
		w.WriteHeader(http.StatusOK)

	case http.MethodDelete:
		delete(f.objects, key)
		delete(f.meta, key)
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeS3) list(w http.ResponseWriter, prefix string) {
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><ListBucketResult>`)
	fmt.Fprintf(w, `<Name>%s</Name><Prefix>%s</Prefix><KeyCount>%d</KeyCount><IsTruncated>false</IsTruncated>`, testBucket, prefix, len(keys))
	for _, k := range keys {
		fmt.Fprintf(w, `<Contents><Key>%s</Key><Size>%d</Size><LastModified>2024-04-05T10:00:00.000Z</LastModified></Contents>`, k, len(f.objects[k]))
	}
	fmt.Fprint(w, `</ListBucketResult>`)
}

func writeError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>%s</Code><Message>%s</Message></Error>`, code, code)
}

func newTestStorage(t *testing.T, prefix string) (*S3Storage, *fakeS3) {
	t.Helper()

	fake := &fakeS3{objects: map[string][]byte{}, meta: map[string]map[string]string{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s, err := New(context.Background(), config.S3Config{
		Bucket:          testBucket,
		Region:          "us-east-1",
		Endpoint:        srv.URL,
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		Prefix:          prefix,
	})
	require.NoError(t, err)
	return s, fake
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.S3Config
	}{
		{"missing bucket", config.S3Config{Region: "us-east-1"}},
		{"missing region", config.S3Config{Bucket: "b"}},
		{"half static credentials", config.S3Config{Bucket: "b", Region: "us-east-1", AccessKeyID: "id"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestPutGetDelete(t *testing.T) {
	s, fake := newTestStorage(t, "backups/")
	ctx := context.Background()

	obj, err := s.Put(ctx, "a.xlsx", []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), obj.Size)
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", obj.Checksum)
	assert.Contains(t, fake.objects, "backups/a.xlsx")
	assert.Equal(t, obj.Checksum, fake.meta["backups/a.xlsx"]["sha256"])

	data, err := s.Get(ctx, "a.xlsx")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	require.NoError(t, s.Delete(ctx, "a.xlsx"))

	_, err = s.Get(ctx, "a.xlsx")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPut_DoesNotOverwrite(t *testing.T) {
	s, _ := newTestStorage(t, "")
	ctx := context.Background()

	_, err := s.Put(ctx, "a.xlsx", []byte("first"))
	require.NoError(t, err)

	_, err = s.Put(ctx, "a.xlsx", []byte("second"))
	assert.ErrorIs(t, err, storage.ErrExists)
}

func TestList(t *testing.T) {
	s, fake := newTestStorage(t, "backups")
	ctx := context.Background()

	objects, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, objects)

	_, err = s.Put(ctx, "a.xlsx", []byte("aa"))
	require.NoError(t, err)
	fake.objects["backups/manual.xlsx"] = []byte("hello")
	fake.objects["backups/nested/b.xlsx"] = []byte("b")
	fake.objects["other/c.xlsx"] = []byte("c")

	objects, err = s.List(ctx)
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, "a.xlsx", objects[0].Name)
	assert.Equal(t, int64(2), objects[0].Size)
	assert.Equal(t, time.Date(2024, 4, 5, 10, 0, 0, 0, time.UTC), objects[0].LastModified.UTC())
	assert.Equal(t, "manual.xlsx", objects[1].Name)
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", objects[1].Checksum)
}
