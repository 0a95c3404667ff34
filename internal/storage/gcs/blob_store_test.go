package gcs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type bufferWriter struct {
	bytes.Buffer
	closed   bool
	closeErr error
}

func (w *bufferWriter) Close() error {
	w.closed = true
	return w.closeErr
}

type capture struct {
	object, contentType, cacheControl string
	writer                            *bufferWriter
}

func (c *capture) open(_ context.Context, _, object, contentType, cacheControl string) io.WriteCloser {
	c.object = object
	c.contentType = contentType
	c.cacheControl = cacheControl
	return c.writer
}

func TestNewRequiresClientAndBucket(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)

	_, err = newBlobStore(Config{Bucket: "  "}, nil)
	require.Error(t, err)
}

func TestPutObjectWritesAndReturnsURI(t *testing.T) {
	t.Parallel()

	c := &capture{writer: &bufferWriter{}}
	s, err := newBlobStore(Config{Bucket: "beacons", CacheControl: "no-store"}, c.open)
	require.NoError(t, err)

	uri, err := s.PutObject(context.Background(), "/archive/s1/1.json", "application/json", strings.NewReader(`{"a":1}`))
	require.NoError(t, err)
	require.Equal(t, "gs://beacons/archive/s1/1.json", uri)
	require.Equal(t, "archive/s1/1.json", c.object)
	require.Equal(t, "application/json", c.contentType)
	require.Equal(t, "no-store", c.cacheControl)
	require.Equal(t, `{"a":1}`, c.writer.String())
	require.True(t, c.writer.closed)
}

func TestPutObjectErrors(t *testing.T) {
	t.Parallel()

	c := &capture{writer: &bufferWriter{closeErr: errors.New("quota")}}
	s, err := newBlobStore(Config{Bucket: "beacons"}, c.open)
	require.NoError(t, err)

	_, err = s.PutObject(context.Background(), "", "application/json", strings.NewReader("x"))
	require.ErrorContains(t, err, "path is required")

	_, err = s.PutObject(context.Background(), "a.json", "application/json", strings.NewReader("x"))
	require.ErrorContains(t, err, "close writer")
}
