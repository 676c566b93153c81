// Package storage uploads machine catalog images to an S3-compatible
// object store.
package storage

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"
)

// S3Store wraps an S3 client bound to one bucket.
type S3Store struct {
	client   *s3.S3
	bucket   string
	endpoint string
}

// NewS3Store builds an S3Store for the given endpoint, region, bucket and
// static credentials. Works against AWS or any S3-compatible service.
func NewS3Store(endpoint, region, bucket, accessKey, secretKey string) (*S3Store, error) {
	cfg := &aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.NewStaticCredentials(accessKey, secretKey, ""),
	}
	if endpoint != "" {
		cfg.Endpoint = aws.String(endpoint)
		cfg.S3ForcePathStyle = aws.Bool(true)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, err
	}
	return &S3Store{client: s3.New(sess), bucket: bucket, endpoint: endpoint}, nil
}

// Upload stores the file under folder with a uuid-prefixed key and returns
// the public URL. The original extension is kept for content sniffing.
func (s *S3Store) Upload(data []byte, fileName, folder, contentType string) (string, error) {
	key := fmt.Sprintf("%s/%s%s", folder, uuid.NewString(), path.Ext(fileName))

	_, err := s.client.PutObject(&s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
		ACL:           aws.String("public-read"),
	})
	if err != nil {
		return "", fmt.Errorf("upload to s3: %w", err)
	}
	return s.publicURL(key), nil
}

// Delete removes an object given the public URL previously returned by
// Upload. Unknown URLs are ignored.
func (s *S3Store) Delete(publicURL string) error {
	key := s.keyFromURL(publicURL)
	if key == "" {
		return nil
	}
	_, err := s.client.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete from s3: %w", err)
	}
	return nil
}

func (s *S3Store) publicURL(key string) string {
	if s.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(s.endpoint, "/"), s.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.bucket, key)
}

func (s *S3Store) keyFromURL(publicURL string) string {
	marker := s.bucket + "/"
	if idx := strings.Index(publicURL, marker); idx >= 0 {
		return publicURL[idx+len(marker):]
	}
	if s.endpoint == "" {
		prefix := fmt.Sprintf("https://%s.s3.amazonaws.com/", s.bucket)
		if strings.HasPrefix(publicURL, prefix) {
			return strings.TrimPrefix(publicURL, prefix)
		}
	}
	return ""
}
