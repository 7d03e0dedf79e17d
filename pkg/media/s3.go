package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

const (
	thumbnailSize = 300

	// DefaultMaxBytes caps uploads when S3Config.MaxBytes is zero.
	DefaultMaxBytes = 50 << 20
)

// ObjectAPI is the part of the S3 client the uploader uses.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config configures an S3-compatible bucket.
type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	// Endpoint is set for S3-compatible services; it switches to path-style addressing.
	Endpoint string
	// PublicBaseURL prefixes object keys in returned URLs. Defaults to Endpoint/Bucket.
	PublicBaseURL string
	MaxBytes      int64
}

// S3Uploader stores media in an S3 bucket. Images also get a JPEG thumbnail.
type S3Uploader struct {
	client   ObjectAPI
	bucket   string
	baseURL  string
	maxBytes int64
}

var _ Uploader = (*S3Uploader)(nil)

// NewS3Uploader builds an S3 client from cfg.
func NewS3Uploader(ctx context.Context, cfg S3Config) (*S3Uploader, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3UploaderWithClient(client, cfg), nil
}

// NewS3UploaderWithClient uses an existing client.
func NewS3UploaderWithClient(client ObjectAPI, cfg S3Config) *S3Uploader {
	base := cfg.PublicBaseURL
	if base == "" {
		if cfg.Endpoint != "" {
			base = fmt.Sprintf("%s/%s", strings.TrimRight(cfg.Endpoint, "/"), cfg.Bucket)
		} else {
			base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
		}
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &S3Uploader{
		client:   client,
		bucket:   cfg.Bucket,
		baseURL:  strings.TrimRight(base, "/"),
		maxBytes: maxBytes,
	}
}

// Upload stores f under opts.Folder with a random name. The asset id is the object key.
func (u *S3Uploader) Upload(ctx context.Context, f File, opts Options) (*Result, error) {
	data, err := io.ReadAll(io.LimitReader(f.Body, u.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > u.maxBytes {
		return nil, ErrTooLarge
	}

	ext := strings.ToLower(path.Ext(f.Name))
	if !extPattern.MatchString(ext) {
		ext = ""
	}
	contentType := f.ContentType
	if contentType == "" && ext != "" {
		contentType = mime.TypeByExtension(ext)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := objectKey(opts.Folder, uuid.NewString()+ext)
	res := &Result{
		AssetID:      key,
		SecureURL:    u.url(key),
		Format:       format(ext, contentType),
		Bytes:        int64(len(data)),
		ResourceType: resourceType(contentType),
	}

	var thumb []byte
	if res.ResourceType == "image" {
		img, err := imaging.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode image %s: %w", f.Name, err)
		}
		bounds := img.Bounds()
		res.Width, res.Height = bounds.Dx(), bounds.Dy()

		var buf bytes.Buffer
		if err := imaging.Encode(&buf, imaging.Thumbnail(img, thumbnailSize, thumbnailSize, imaging.Lanczos), imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
			return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
		}
		thumb = buf.Bytes()
	}

	if err := u.put(ctx, key, data, contentType, opts.Preset); err != nil {
		return nil, fmt.Errorf("failed to upload original: %w", err)
	}
	if thumb != nil {
		thumbKey := thumbnailKey(key)
		if err := u.put(ctx, thumbKey, thumb, "image/jpeg", opts.Preset); err != nil {
			_ = u.deleteKey(context.WithoutCancel(ctx), key)
			return nil, fmt.Errorf("failed to upload thumbnail: %w", err)
		}
		res.ThumbnailURL = u.url(thumbKey)
	}
	return res, nil
}

// Delete removes the asset and its thumbnail. Ids that Upload could not have issued
// are rejected with ErrInvalidAsset and nothing is deleted.
func (u *S3Uploader) Delete(ctx context.Context, assetID string) error {
	if !ValidAssetID(assetID) {
		return fmt.Errorf("%w: %q", ErrInvalidAsset, assetID)
	}
	for _, key := range []string{assetID, thumbnailKey(assetID)} {
		if err := u.deleteKey(ctx, key); err != nil {
			return fmt.Errorf("failed to delete %s: %w", key, err)
		}
	}
	return nil
}

func (u *S3Uploader) deleteKey(ctx context.Context, key string) error {
	_, err := u.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	})
	return err
}

func (u *S3Uploader) put(ctx context.Context, key string, data []byte, contentType, preset string) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
		CacheControl:  aws.String("max-age=31536000"),
	}
	if preset != "" {
		input.Metadata = map[string]string{"preset": preset}
	}
	_, err := u.client.PutObject(ctx, input)
	return err
}

func (u *S3Uploader) url(key string) string {
	return u.baseURL + "/" + key
}

func objectKey(folder, name string) string {
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return name
	}
	return folder + "/" + name
}

// thumbnailKey maps "gallery/abc.png" to "gallery/thumbnails/abc.jpg".
func thumbnailKey(key string) string {
	dir, file := path.Split(key)
	return dir + thumbnailDir + "/" + strings.TrimSuffix(file, path.Ext(file)) + ".jpg"
}

func format(ext, contentType string) string {
	if ext != "" {
		f := strings.TrimPrefix(ext, ".")
		if f == "jpeg" {
			f = "jpg"
		}
		return f
	}
	if _, sub, ok := strings.Cut(contentType, "/"); ok {
		return sub
	}
	return ""
}

func resourceType(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return "image"
	case strings.HasPrefix(contentType, "video/"):
		return "video"
	default:
		return "raw"
	}
}
