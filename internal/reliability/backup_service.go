// Package reliability handles off-box durability: periodic snapshot
// backups to S3-compatible object storage (Cloudflare R2, MinIO, AWS).
package reliability

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/PatrikGFX/portfolio-tracker/internal/domain"
)

// backupTimeFormat is the timestamp embedded in object keys.
const backupTimeFormat = "2006-01-02-150405"

// minBackupsToKeep backups survive rotation regardless of the retention
// setting.
const minBackupsToKeep = 3

// SnapshotSource provides the current ledger state to back up.
type SnapshotSource interface {
	Positions() []domain.Position
	Benchmark() []domain.PricePoint
}

// BackupConfig holds the object storage settings.
type BackupConfig struct {
	Endpoint        string // S3-compatible endpoint URL
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string // object key prefix, e.g. "portfolio-backup-"
	Keep            int    // backups retained beyond the newest minBackupsToKeep
}

// Enabled reports whether enough settings are present to run backups.
func (c BackupConfig) Enabled() bool {
	return c.Endpoint != "" && c.Bucket != "" && c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// BackupInfo describes one backup object in the bucket.
type BackupInfo struct {
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"sizeBytes"`
}

// BackupService uploads gzip-compressed JSON snapshots of the ledger
// state to an S3-compatible bucket and rotates old ones.
type BackupService struct {
	client   *s3.Client
	uploader *manager.Uploader
	source   SnapshotSource
	cfg      BackupConfig
	now      func() time.Time
	log      zerolog.Logger
}

// NewBackupService builds the S3 client and the service around it.
func NewBackupService(cfg BackupConfig, source SnapshotSource, log zerolog.Logger) (*BackupService, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("backup storage is not fully configured")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "portfolio-backup-"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build storage credentials: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		// R2 and MinIO both want path-style addressing.
		o.UsePathStyle = true
	})

	return &BackupService{
		client:   client,
		uploader: manager.NewUploader(client),
		source:   source,
		cfg:      cfg,
		now:      time.Now,
		log:      log.With().Str("service", "backup").Logger(),
	}, nil
}

// Backup serializes the current state, compresses it and uploads one
// snapshot object, then rotates old backups. Rotation failures are
// logged, not returned - the upload already succeeded.
func (s *BackupService) Backup() error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	start := s.now()
	state := domain.State{
		Positions: s.source.Positions(),
		Benchmark: s.source.Benchmark(),
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if err := json.NewEncoder(gz).Encode(state); err != nil {
		gz.Close()
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to compress snapshot: %w", err)
	}

	key := fmt.Sprintf("%s%s.json.gz", s.cfg.Prefix, start.UTC().Format(backupTimeFormat))
	if _, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/gzip"),
	}); err != nil {
		return fmt.Errorf("failed to upload snapshot: %w", err)
	}

	s.log.Info().
		Str("key", key).
		Int("size_bytes", buf.Len()).
		Dur("duration", time.Since(start)).
		Msg("Snapshot backup uploaded")

	if err := s.rotate(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Backup rotation failed")
	}

	return nil
}

// ListBackups lists backup objects in the bucket, newest first.
func (s *BackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.cfg.Bucket),
		Prefix: aws.String(s.cfg.Prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	backups := make([]BackupInfo, 0, len(out.Contents))
	for _, obj := range out.Contents {
		if obj.Key == nil {
			continue
		}
		key := *obj.Key
		stamp := strings.TrimSuffix(strings.TrimPrefix(key, s.cfg.Prefix), ".json.gz")
		ts, err := time.Parse(backupTimeFormat, stamp)
		if err != nil {
			s.log.Warn().Str("key", key).Msg("Skipping object with unparseable timestamp")
			continue
		}

		var size int64
		if obj.Size != nil {
			size = *obj.Size
		}
		backups = append(backups, BackupInfo{Key: key, Timestamp: ts, SizeBytes: size})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})

	return backups, nil
}

// rotate deletes backups beyond the retention count. The newest
// minBackupsToKeep always survive; Keep <= 0 disables deletion entirely.
func (s *BackupService) rotate(ctx context.Context) error {
	if s.cfg.Keep <= 0 {
		return nil
	}

	backups, err := s.ListBackups(ctx)
	if err != nil {
		return err
	}

	keep := s.cfg.Keep
	if keep < minBackupsToKeep {
		keep = minBackupsToKeep
	}
	if len(backups) <= keep {
		return nil
	}

	deleted := 0
	for _, backup := range backups[keep:] {
		if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.cfg.Bucket),
			Key:    aws.String(backup.Key),
		}); err != nil {
			s.log.Error().Err(err).Str("key", backup.Key).Msg("Failed to delete old backup")
			continue
		}
		deleted++
	}

	s.log.Info().
		Int("deleted", deleted).
		Int("remaining", len(backups)-deleted).
		Msg("Backup rotation completed")

	return nil
}
