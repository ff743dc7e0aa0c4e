package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

type Config struct {
	Endpoint     string
	Region       string
	AccessKey    string
	SecretKey    string
	Bucket       string
	UsePathStyle bool
	Prefix       string
}

// Archiver stores raw webhook payloads of credited sessions in an S3 bucket.
type Archiver struct {
	cfg    Config
	client *s3.Client
	now    func() time.Time
}

func NewArchiver(cfg Config) (*Archiver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("s3 region is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("s3 credentials are required")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "stripe-events"
	}

	options := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: cfg.UsePathStyle,
	}
	if cfg.Endpoint != "" {
		options.BaseEndpoint = aws.String(cfg.Endpoint)
	}

	return &Archiver{
		cfg:    cfg,
		client: s3.New(options),
		now:    time.Now,
	}, nil
}

// Archive uploads payload under a fresh dated key so repeated archives never overwrite.
func (a *Archiver) Archive(ctx context.Context, sessionID string, payload []byte) error {
	if len(payload) == 0 {
		return fmt.Errorf("no payload to archive")
	}

	key := a.objectKey(sessionID)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
		Metadata:    map[string]string{"session-id": sessionID},
	})
	if err != nil {
		return fmt.Errorf("archive %s to s3: %w", key, err)
	}
	return nil
}

func (a *Archiver) objectKey(sessionID string) string {
	now := a.now().UTC()
	prefix := strings.Trim(a.cfg.Prefix, "/")
	name := sanitizeKeyPart(sessionID)
	if name == "" {
		name = "session"
	}
	return path.Join(prefix, fmt.Sprintf("%04d/%02d/%02d", now.Year(), now.Month(), now.Day()), name+"-"+uuid.NewString()+".json")
}

func sanitizeKeyPart(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return -1
		}
	}, s)
}
