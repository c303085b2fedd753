package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const (
	quoteFolder      = "quotes"
	downloadURLTTL   = 15 * time.Minute
	quoteContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type S3Storage struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

type QuoteUpload struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func NewS3Storage(ctx context.Context, region, bucket, accessKeyID, secretAccessKey string) *S3Storage {
	var cfg aws.Config
	var err error

	// Static credentials when configured, the default chain otherwise
	if accessKeyID != "" && secretAccessKey != "" {
		cfg = aws.Config{
			Region:      region,
			Credentials: credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		}
	} else {
		cfg, err = config.LoadDefaultConfig(ctx, config.WithRegion(region))
		if err != nil {
			cfg = aws.Config{Region: region}
		}
	}

	client := s3.NewFromConfig(cfg)
	return &S3Storage{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  bucket,
	}
}

// QuoteKey is where a client's quote is stored.
func QuoteKey(clientID string) string {
	return fmt.Sprintf("%s/%s/%s.xlsx", quoteFolder, clientID, uuid.New().String())
}

// UploadQuote stores an XLSX quote and returns a short-lived download link.
func (s *S3Storage) UploadQuote(ctx context.Context, clientID string, body []byte) (*QuoteUpload, error) {
	key := QuoteKey(clientID)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(quoteContentType),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload quote: %w", err)
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(downloadURLTTL))
	if err != nil {
		return nil, fmt.Errorf("failed to generate quote download URL: %w", err)
	}

	return &QuoteUpload{
		URL:       req.URL,
		Key:       key,
		ExpiresAt: time.Now().Add(downloadURLTTL),
	}, nil
}
