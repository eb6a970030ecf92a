package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/lockboxhq/lockbox/internal/common"
	"github.com/lockboxhq/lockbox/internal/cryptox"
	"github.com/lockboxhq/lockbox/internal/netx"
	"github.com/lockboxhq/lockbox/internal/server/config"
)

// ErrSnapshotsDisabled is returned when object storage is not configured.
var ErrSnapshotsDisabled = errors.New("snapshot storage is not configured")

// Seams for the AWS SDK so tests can intercept presigning without network.
var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

const snapshotURLValidity = 15 * time.Minute

// Snapshot describes an uploaded encrypted export: where it lives and a
// presigned GET URL to fetch it while the URL is valid.
type Snapshot struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
	Count     int       `json:"count"`
}

// SnapshotService exports the vault, encrypts the JSON under the account key
// and uploads it to S3-compatible storage through a presigned PUT.
type SnapshotService struct {
	vault  *VaultService
	config *config.Config
}

func NewSnapshotService(vault *VaultService, cfg *config.Config) *SnapshotService {
	return &SnapshotService{vault: vault, config: cfg}
}

// Enabled reports whether object storage credentials are configured.
func (s *SnapshotService) Enabled() bool {
	return s.config.S3AccessKey != "" && s.config.S3SecretKey != ""
}

func snapshotStorageKey(accountID string) string {
	d := time.Now()
	return fmt.Sprintf("snapshots/%s/%d/%02d/%v.bin", accountID, d.Year(), d.Month(), uuid.New())
}

func (s *SnapshotService) presignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(s.config.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3AccessKey,
			s.config.S3SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if s.config.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		}
	})

	return newS3PresignClient(client), nil
}

// Create exports the vault, seals it and uploads the blob. The returned GET
// URL is the only way to retrieve the snapshot and expires after 15 minutes.
// The blob layout matches the field layout: nonce, auth tag, then ciphertext.
func (s *SnapshotService) Create(ctx context.Context, accountID string, meta ClientMeta) (*Snapshot, error) {
	if !s.Enabled() {
		return nil, ErrSnapshotsDisabled
	}

	exported, err := s.vault.Export(ctx, accountID, meta)
	if err != nil {
		return nil, err
	}
	plaintext, err := json.Marshal(exported)
	if err != nil {
		return nil, err
	}

	key, err := s.vault.userKey(ctx, accountID)
	if err != nil {
		return nil, err
	}
	ciphertext, nonce, tag, err := cryptox.EncryptField(plaintext, key)
	common.WipeByteArray(key)
	common.WipeByteArray(plaintext)
	if err != nil {
		return nil, err
	}
	blob := make([]byte, 0, len(nonce)+len(tag)+len(ciphertext))
	blob = append(blob, nonce...)
	blob = append(blob, tag...)
	blob = append(blob, ciphertext...)

	presigner, err := s.presignClient(ctx)
	if err != nil {
		return nil, err
	}

	bucket := s.config.S3Bucket
	storageKey := snapshotStorageKey(accountID)

	putReq, err := presignPutObject(presigner, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &storageKey,
	}, s3.WithPresignExpires(snapshotURLValidity))
	if err != nil {
		return nil, err
	}
	if err := netx.UploadToPresignedURL(ctx, putReq.URL, blob); err != nil {
		return nil, err
	}

	getReq, err := presignGetObject(presigner, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &storageKey,
	}, s3.WithPresignExpires(snapshotURLValidity))
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		Key:       storageKey,
		URL:       getReq.URL,
		ExpiresAt: time.Now().Add(snapshotURLValidity),
		Count:     len(exported),
	}, nil
}
