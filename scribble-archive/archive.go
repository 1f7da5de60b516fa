// Package scribblearchive keeps every committed board snapshot, in S3 or, in
// dry mode, on the local disk.
package scribblearchive

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/rs/zerolog"

	scribblecli "github.com/scribble-board/scribble/scribble-cli"
)

// SnapshotKey is where a snapshot is archived: one object per board and
// watermark.
func SnapshotKey(serviceName, boardID string, watermark int64) string {
	return fmt.Sprintf("%v/%v/%v.png", serviceName, boardID, watermark)
}

// S3Archiver writes snapshots to a bucket.
type S3Archiver struct {
	service scribblecli.Service
	s3      s3iface.S3API
	bucket  string
	logger  zerolog.Logger
}

func NewS3Archiver(service scribblecli.Service, api s3iface.S3API, bucket string) *S3Archiver {
	return &S3Archiver{
		service: service,
		s3:      api,
		bucket:  bucket,
		logger:  scribblecli.Logger(service),
	}
}

func (a *S3Archiver) Archive(ctx context.Context, boardID string, watermark int64, image []byte) error {
	key := SnapshotKey(a.service.Name, boardID, watermark)
	a.logger.Info().Str("bucket", a.bucket).Str("key", key).Int("size", len(image)).Msg("archiving snapshot to s3")
	_, err := a.s3.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(image),
		ContentType: aws.String("image/png"),
	})
	if err != nil {
		return fmt.Errorf("failed to archive snapshot %v: %w", key, err)
	}
	return nil
}

// DirArchiver writes snapshots below a local directory.
type DirArchiver struct {
	service scribblecli.Service
	dir     string
	logger  zerolog.Logger
}

func NewDirArchiver(service scribblecli.Service, dir string) *DirArchiver {
	return &DirArchiver{
		service: service,
		dir:     dir,
		logger:  scribblecli.Logger(service),
	}
}

func (a *DirArchiver) Archive(_ context.Context, boardID string, watermark int64, image []byte) error {
	filename := filepath.Join(a.dir, filepath.FromSlash(SnapshotKey(a.service.Name, boardID, watermark)))
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}
	a.logger.Info().Str("filename", filename).Int("size", len(image)).Msg("dry run, saving snapshot locally")
	return os.WriteFile(filename, image, 0644)
}

// Archiver is satisfied by S3Archiver and DirArchiver.
type Archiver interface {
	Archive(ctx context.Context, boardID string, watermark int64, image []byte) error
}

// Build returns the archiver the flags select, or nil when archiving is off.
// Dry mode archives to ArchiveOpts.OutDir instead of the bucket.
func Build(service scribblecli.Service, s *session.Session) Archiver {
	switch {
	case scribblecli.CommonOpts.Dry && ArchiveOpts.OutDir != "":
		return NewDirArchiver(service, ArchiveOpts.OutDir)
	case scribblecli.CommonOpts.Dry:
		return nil
	case ArchiveOpts.Bucket != "":
		return NewS3Archiver(service, s3.New(s), ArchiveOpts.Bucket)
	default:
		return nil
	}
}
