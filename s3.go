package main

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

func NewS3Client(cfg S3) (*minio.Client, error) {
	return minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
}

// s3Blob keeps one document as a single object in the bucket.
type s3Blob struct {
	client *minio.Client
	bucket string
	key    string
}

func newS3Blob(client *minio.Client, bucket, prefix, name string) *s3Blob {
	return &s3Blob{client: client, bucket: bucket, key: prefix + name + ".json"}
}

func (o *s3Blob) Load(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()
	obj, err := o.client.GetObject(ctx, o.bucket, o.key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	v, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, nil
		}
		return nil, err
	}
	return v, nil
}

func (o *s3Blob) Save(ctx context.Context, v []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 120*time.Second)
	defer cancel()
	_, err := o.client.PutObject(ctx, o.bucket, o.key, bytes.NewReader(v), int64(len(v)),
		minio.PutObjectOptions{ContentType: "application/json"})
	return err
}

func (o *s3Blob) String() string { return "s3://" + o.bucket + "/" + o.key }
