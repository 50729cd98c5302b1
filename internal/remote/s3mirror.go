package remote

import (
	"bytes"
	"context"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/keithlinneman/htmlsplice/internal/log"
	"github.com/keithlinneman/htmlsplice/internal/xerrors"
)

// ObjectPutter is the subset of *s3.Client used by S3Mirror.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3MirrorOptions struct {
	Logger log.Logger
	Client ObjectPutter
	Bucket string
	// keys are {Prefix}/{sha256}/{backup file name}
	Prefix string
}

type S3Mirror struct {
	opts   S3MirrorOptions
	logger log.Logger
}

func NewS3Mirror(opts S3MirrorOptions) (*S3Mirror, error) {
	if opts.Client == nil {
		return nil, xerrors.New("S3 client is required")
	}
	if opts.Bucket == "" {
		return nil, xerrors.New("S3 bucket is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	return &S3Mirror{opts: opts, logger: opts.Logger}, nil
}

// Key returns the object key for a backup file with the given content hash.
func (m *S3Mirror) Key(backupPath, sha256 string) string {
	name := filepath.Base(backupPath)
	if m.opts.Prefix == "" {
		return path.Join(sha256, name)
	}
	return path.Join(m.opts.Prefix, sha256, name)
}

// Mirror uploads data under Key(backupPath, sha256) and returns the s3:// URI.
func (m *S3Mirror) Mirror(ctx context.Context, backupPath, sha256 string, data []byte) (string, error) {
	key := m.Key(backupPath, sha256)
	uri := "s3://" + m.opts.Bucket + "/" + key

	_, err := m.opts.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.opts.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("text/html; charset=utf-8"),
		Metadata: map[string]string{
			"sha256":      sha256,
			"source-name": filepath.Base(backupPath),
		},
	})
	if err != nil {
		return "", xerrors.Wrapf(err, "put %s", uri)
	}

	m.logger.Debug(ctx, "backup mirrored", "uri", uri, "bytes", len(data))
	return uri, nil
}
