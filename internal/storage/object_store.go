package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const (
	ArchivePrefix = "cron-runs/"

	archiveKeyLayout    = "2006/01/02/150405"
	archiveCacheControl = "private, no-store"
)

var ErrInvalidArchiveKey = errors.New("archive key must look like cron-runs/YYYY/MM/DD/HHMMSS.json")

type Config struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	PublicBaseURL   string
	StorageClass    string
}

// s3API is the part of *s3.Client the archive store calls.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Archive describes one uploaded run-history document.
type Archive struct {
	Key        string    `json:"key"`
	URL        string    `json:"url"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// ArchiveStore keeps cron run history in an S3-compatible bucket (R2 in
// production). Every key it writes or lists lives under ArchivePrefix.
type ArchiveStore struct {
	bucket       string
	publicBase   string
	storageClass string
	client       s3API
	now          func() time.Time
}

func NewArchiveStore(ctx context.Context, cfg Config) (*ArchiveStore, error) {
	endpoint, err := normalizeEndpoint(cfg)
	if err != nil {
		return nil, err
	}

	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "auto"
	}

	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, _ ...any) (aws.Endpoint, error) {
		if service == s3.ServiceID {
			return aws.Endpoint{URL: endpoint, HostnameImmutable: true}, nil
		}
		return aws.Endpoint{}, &aws.EndpointNotFoundError{}
	})

	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			strings.TrimSpace(cfg.AccessKeyID),
			strings.TrimSpace(cfg.SecretAccessKey),
			"",
		)),
		awsconfig.WithEndpointResolverWithOptions(resolver),
	)
	if err != nil {
		return nil, fmt.Errorf("load s3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// R2 requires path-style addressing.
		o.UsePathStyle = true
	})
	return newArchiveStore(client, endpoint, cfg), nil
}

func normalizeEndpoint(cfg Config) (string, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return "", fmt.Errorf("object store endpoint is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return "", fmt.Errorf("object store bucket is required")
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}
	return strings.TrimRight(endpoint, "/"), nil
}

func newArchiveStore(client s3API, endpoint string, cfg Config) *ArchiveStore {
	bucket := strings.TrimSpace(cfg.Bucket)
	// Archives are private; without a public base the URL is the bucket path.
	publicBase := strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/")
	if publicBase == "" {
		publicBase = endpoint + "/" + bucket
	}
	return &ArchiveStore{
		bucket:       bucket,
		publicBase:   publicBase,
		storageClass: strings.TrimSpace(cfg.StorageClass),
		client:       client,
		now:          time.Now,
	}
}

// ArchiveKey is the key for an archive generated at t.
func ArchiveKey(t time.Time) string {
	return ArchivePrefix + t.UTC().Format(archiveKeyLayout) + ".json"
}

// ValidateArchiveKey accepts only keys produced by ArchiveKey.
func ValidateArchiveKey(key string) error {
	stamp, ok := strings.CutPrefix(key, ArchivePrefix)
	if !ok {
		return ErrInvalidArchiveKey
	}
	stamp, ok = strings.CutSuffix(stamp, ".json")
	if !ok {
		return ErrInvalidArchiveKey
	}
	if _, err := time.Parse(archiveKeyLayout, stamp); err != nil {
		return ErrInvalidArchiveKey
	}
	return nil
}

func (s *ArchiveStore) PublicURL(key string) string {
	return s.publicBase + "/" + strings.TrimLeft(key, "/")
}

// PutJSON encodes payload and uploads it under key.
func (s *ArchiveStore) PutJSON(ctx context.Context, key string, payload any) (Archive, error) {
	if err := ValidateArchiveKey(key); err != nil {
		return Archive{}, fmt.Errorf("%w: %q", err, key)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Archive{}, fmt.Errorf("encode archive %s: %w", key, err)
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String("application/json"),
		CacheControl:  aws.String(archiveCacheControl),
	}
	if sc := parseStorageClass(s.storageClass); sc != nil {
		input.StorageClass = *sc
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return Archive{}, fmt.Errorf("upload archive %s: %w", key, err)
	}
	return Archive{
		Key:        key,
		URL:        s.PublicURL(key),
		Size:       int64(len(body)),
		UploadedAt: s.now().UTC(),
	}, nil
}

// ListArchives returns archives newest first. datePrefix narrows the listing
// to a period such as "2026" or "2026/10"; limit <= 0 means no limit.
func (s *ArchiveStore) ListArchives(ctx context.Context, datePrefix string, limit int) ([]Archive, error) {
	datePrefix = strings.Trim(strings.TrimSpace(datePrefix), "/")
	if strings.Contains(datePrefix, "..") {
		return nil, fmt.Errorf("invalid archive prefix %q", datePrefix)
	}
	prefix := ArchivePrefix + datePrefix

	out := make([]Archive, 0)
	var token *string
	for {
		resp, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list archives: %w", err)
		}
		for _, item := range resp.Contents {
			key := aws.ToString(item.Key)
			if ValidateArchiveKey(key) != nil {
				continue
			}
			out = append(out, Archive{
				Key:        key,
				URL:        s.PublicURL(key),
				Size:       aws.ToInt64(item.Size),
				UploadedAt: aws.ToTime(item.LastModified).UTC(),
			})
		}
		if !aws.ToBool(resp.IsTruncated) || resp.NextContinuationToken == nil {
			break
		}
		token = resp.NextContinuationToken
	}

	// Keys embed the generation time, so lexical order is chronological.
	sort.Slice(out, func(i, j int) bool { return out[i].Key > out[j].Key })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func parseStorageClass(v string) *types.StorageClass {
	v = strings.TrimSpace(strings.ToUpper(v))
	if v == "" {
		return nil
	}
	sc := types.StorageClass(v)
	return &sc
}
