// Package assets talks to the external asset host: an S3-compatible object
// store holding profile pictures. Uploads are part of profile setup;
// URL resolution is best-effort enrichment and must never fail a request.
package assets

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const presignExpiry = 15 * time.Minute

type Host struct {
	client *minio.Client
	bucket string
}

// New connects to the asset host and makes sure the bucket exists.
func New(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Host, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect asset host: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return &Host{client: client, bucket: bucket}, nil
}

// UploadProfilePicture stores the image and returns the object key that goes
// on the user document.
func (h *Host) UploadProfilePicture(ctx context.Context, userID string, data []byte, contentType string) (string, error) {
	objectKey := fmt.Sprintf("profile_pictures/%s_%d.jpg", userID, time.Now().Unix())
	_, err := h.client.PutObject(ctx, h.bucket, objectKey, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("upload profile picture: %w", err)
	}
	return objectKey, nil
}

// ResolveURL returns a short-lived presigned GET URL for an object key.
func (h *Host) ResolveURL(ctx context.Context, objectKey string) (string, error) {
	presigned, err := h.client.PresignedGetObject(ctx, h.bucket, objectKey, presignExpiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", objectKey, err)
	}
	return presigned.String(), nil
}
