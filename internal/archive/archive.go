// Package archive stores backup table snapshots in object storage before they
// are purged.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/zstd"
	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/ledgerbook-api/internal/database"
)

// ContentType is the media type of an archive before compression.
const ContentType = "application/x-ndjson"

// ObjectPutter is the subset of the S3 client used for uploads.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ClientOptions configures an S3-compatible client.
type ClientOptions struct {
	Endpoint  string // AWS_ENDPOINT_URL_S3
	Region    string
	AccessKey string
	SecretKey string
}

// NewS3Client creates an S3 client for S3-compatible storage (Tigris, MinIO, etc.).
func NewS3Client(ctx context.Context, opts ClientOptions) (*s3.Client, error) {
	// Load AWS config with static credentials
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(opts.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AccessKey,
			opts.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = true // Required for some S3-compatible services
	})
	return client, nil
}

// S3Archiver writes each backup table as a zstd-compressed JSON Lines object.
type S3Archiver struct {
	client ObjectPutter
	bucket string
	prefix string
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// NewS3Archiver creates an archiver writing under prefix in bucket.
func NewS3Archiver(client ObjectPutter, bucket, prefix string, logger *slog.Logger) *S3Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &S3Archiver{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: logger,
		now:    time.Now,
		newID:  func() string { return ulid.Make().String() },
	}
}

// Key returns the object key for one archive of a table:
// {prefix}/{table}/{timestamp}-{id}.jsonl.zst
// The id keeps archives taken within the same second apart.
func (a *S3Archiver) Key(table string, at time.Time, id string) string {
	return path.Join(a.prefix, table, at.UTC().Format("20060102T150405Z")+"-"+id+".jsonl.zst")
}

// ArchiveTable uploads rows as one object.
func (a *S3Archiver) ArchiveTable(ctx context.Context, table string, rows []database.Row) error {
	var buf bytes.Buffer
	if err := Encode(&buf, rows); err != nil {
		return fmt.Errorf("failed to encode %s: %w", table, err)
	}

	key := a.Key(table, a.now(), a.newID())
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(a.bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(buf.Bytes()),
		ContentType:     aws.String(ContentType),
		ContentEncoding: aws.String("zstd"),
		Metadata: map[string]string{
			"table": table,
			"rows":  strconv.Itoa(len(rows)),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}

	a.logger.Info("archived backup table",
		"table", table,
		"key", key,
		"rows", len(rows),
		"size_bytes", buf.Len(),
	)
	return nil
}

// Encode writes rows to w as zstd-compressed JSON Lines.
func Encode(w io.Writer, rows []database.Row) error {
	enc, err := zstd.NewWriter(w, zstd.WithZeroFrames(true))
	if err != nil {
		return err
	}
	jw := json.NewEncoder(enc)
	for _, row := range rows {
		if err := jw.Encode(row); err != nil {
			_ = enc.Close()
			return err
		}
	}
	return enc.Close()
}

// Decode reads rows written by Encode. Numbers decode as json.Number.
func Decode(r io.Reader) ([]database.Row, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	jr := json.NewDecoder(dec)
	jr.UseNumber()

	var rows []database.Row
	for {
		var row database.Row
		if err := jr.Decode(&row); err == io.EOF {
			return rows, nil
		} else if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
}
