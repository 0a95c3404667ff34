package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strconv"

	"github.com/google/uuid"

	"github.com/JakeFAU/playback-beacon/internal/delivery"
)

// BlobStore writes objects and returns their URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// ArchiveSink stores each delivered beacon as a JSON object under
// <prefix>/<session>/<unix-nanos>-<uuid>.json. The uuid keeps records that
// share a timestamp from overwriting each other.
type ArchiveSink struct {
	blobs  BlobStore
	prefix string
}

// NewArchiveSink constructs an ArchiveSink writing below prefix.
func NewArchiveSink(blobs BlobStore, prefix string) *ArchiveSink {
	return &ArchiveSink{blobs: blobs, prefix: prefix}
}

// Consume writes the record's payload.
func (s *ArchiveSink) Consume(ctx context.Context, rec delivery.Record) error {
	if s == nil || s.blobs == nil {
		return nil
	}
	body, err := json.Marshal(NewPayload(rec))
	if err != nil {
		return fmt.Errorf("marshal beacon: %w", err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate object id: %w", err)
	}
	if _, err := s.blobs.PutObject(ctx, s.ObjectPath(rec, id), "application/json", bytes.NewReader(body)); err != nil {
		return fmt.Errorf("archive beacon: %w", err)
	}
	return nil
}

// ObjectPath returns where rec is archived under id.
func (s *ArchiveSink) ObjectPath(rec delivery.Record, id uuid.UUID) string {
	name := strconv.FormatInt(rec.TS.UnixNano(), 10) + "-" + id.String() + ".json"
	return path.Join(s.prefix, rec.SessionID, name)
}

// Close implements the Sink interface; it performs no action.
func (s *ArchiveSink) Close(context.Context) error {
	return nil
}
