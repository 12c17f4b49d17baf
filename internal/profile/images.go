package profile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const UploadURLExpiry = 5 * time.Minute

var contentTypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// ErrUnsupportedExtension is returned for file extensions outside contentTypes.
type ErrUnsupportedExtension struct{ Ext string }

func (e *ErrUnsupportedExtension) Error() string {
	return fmt.Sprintf("unsupported image extension %q", e.Ext)
}

type Presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Upload is a one-shot PUT target plus the public URL the object will have.
type Upload struct {
	UploadURL string `json:"uploadUrl"`
	ImageURL  string `json:"imageUrl"`
	Key       string `json:"key"`
}

type Images struct {
	presign Presigner
	bucket  string
	region  string
	now     func() time.Time
}

func NewImages(p Presigner, bucket, region string) *Images {
	return &Images{presign: p, bucket: bucket, region: region, now: time.Now}
}

// UploadURL issues a presigned PUT for profiles/<userID>-<unixMillis>.<ext>.
// An empty ext defaults to jpg.
func (i *Images) UploadURL(ctx context.Context, userID, ext string) (*Upload, error) {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if ext == "" {
		ext = "jpg"
	}
	ct, ok := contentTypes[ext]
	if !ok {
		return nil, &ErrUnsupportedExtension{Ext: ext}
	}
	if i.bucket == "" {
		return nil, fmt.Errorf("PROFILE_IMAGE_BUCKET is not set")
	}

	key := fmt.Sprintf("profiles/%s-%d.%s", userID, i.now().UnixMilli(), ext)
	req, err := i.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(i.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(ct),
	}, s3.WithPresignExpires(UploadURLExpiry))
	if err != nil {
		return nil, fmt.Errorf("s3 presign PutObject: %w", err)
	}

	return &Upload{
		UploadURL: req.URL,
		ImageURL:  fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", i.bucket, i.region, key),
		Key:       key,
	}, nil
}
