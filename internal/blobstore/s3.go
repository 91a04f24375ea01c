package blobstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

var ErrUploadsDisabled = errors.New("blobstore: bucket or public base URL not configured")

const maxExtLen = 10

// S3Config points at any S3 compatible bucket (AWS, Cloudflare R2, MinIO).
// Without static keys the default AWS credential chain is used.
type S3Config struct {
	Bucket        string
	Endpoint      string
	Region        string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
	Expiry        time.Duration
}

// UploadTicket tells a client where to PUT a file and which URL to send in the message afterwards.
type UploadTicket struct {
	Method    string      `json:"method"`
	UploadURL string      `json:"upload_url"`
	Headers   http.Header `json:"headers,omitempty"`
	MediaURL  string      `json:"media_url"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// S3Uploader issues presigned PUT URLs under <owner>/<uuid><ext>.
type S3Uploader struct {
	presign    *s3.PresignClient
	bucket     string
	publicBase string
	expiry     time.Duration
}

func NewS3Uploader(ctx context.Context, cfg S3Config) (*S3Uploader, error) {
	if cfg.Bucket == "" || cfg.PublicBaseURL == "" {
		return nil, ErrUploadsDisabled
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	var awsCfg aws.Config
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		awsCfg = aws.Config{
			Region:      region,
			Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		}
	} else {
		loaded, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		awsCfg = loaded
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	expiry := cfg.Expiry
	if expiry <= 0 {
		expiry = 5 * time.Minute
	}

	return &S3Uploader{
		presign:    s3.NewPresignClient(client),
		bucket:     cfg.Bucket,
		publicBase: strings.TrimSuffix(cfg.PublicBaseURL, "/"),
		expiry:     expiry,
	}, nil
}

func (u *S3Uploader) IssueUpload(ctx context.Context, ownerID, fileName, contentType string) (*UploadTicket, error) {
	key := objectKey(ownerID, fileName)

	req, err := u.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(u.expiry))
	if err != nil {
		return nil, fmt.Errorf("presign %s: %w", key, err)
	}

	headers := req.SignedHeader.Clone()
	headers.Del("Host")

	return &UploadTicket{
		Method:    req.Method,
		UploadURL: req.URL,
		Headers:   headers,
		MediaURL:  u.publicBase + "/" + key,
		ExpiresAt: time.Now().UTC().Add(u.expiry),
	}, nil
}

func objectKey(ownerID, fileName string) string {
	ext := strings.ToLower(path.Ext(fileName))
	if len(ext) > maxExtLen || strings.ContainsAny(ext, "/?#% ") {
		ext = ""
	}
	return url.PathEscape(ownerID) + "/" + uuid.NewString() + ext
}
