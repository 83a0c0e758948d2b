package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrObjectNotFound is returned by backends when a key does not exist.
var ErrObjectNotFound = errors.New("object not found")

const (
	reportPrefix   = "reports"
	pdfContentType = "application/pdf"
	maxReportBytes = 32 << 20
)

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Bucket() string
}

// ReportArchive keeps generated PDF reports under a per-user prefix so one
// user can never address another user's object.
type ReportArchive struct {
	backend ObjectStorage
}

// NewReportArchive wraps an ObjectStorage backend.
func NewReportArchive(backend ObjectStorage) *ReportArchive {
	return &ReportArchive{backend: backend}
}

// EnsureBucket ensures the configured bucket exists.
func (a *ReportArchive) EnsureBucket(ctx context.Context) error {
	return a.backend.EnsureBucket(ctx)
}

// Save uploads a PDF report for the user.
func (a *ReportArchive) Save(ctx context.Context, userID int64, reportID string, pdf []byte) error {
	key := ReportKey(userID, reportID)
	if err := a.backend.Put(ctx, key, bytes.NewReader(pdf), int64(len(pdf)), pdfContentType); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Load reads back a report saved by Save for the same user.
func (a *ReportArchive) Load(ctx context.Context, userID int64, reportID string) ([]byte, error) {
	key := ReportKey(userID, reportID)
	rc, err := a.backend.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxReportBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	if len(data) > maxReportBytes {
		return nil, fmt.Errorf("report %s exceeds %d bytes", key, maxReportBytes)
	}
	return data, nil
}

// Bucket returns the configured bucket name.
func (a *ReportArchive) Bucket() string {
	return a.backend.Bucket()
}

// ReportKey is the object key of a user's report.
func ReportKey(userID int64, reportID string) string {
	return fmt.Sprintf("%s/%d/%s.pdf", reportPrefix, userID, reportID)
}
