package s3io

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// Damage images live under claims/<claimID>/damages/<imageID><ext>.
const (
	claimsPrefix = "claims"
	damagesDir   = "damages"
)

// BuildImageKey constructs the S3 key for a damage photo of a claim.
func BuildImageKey(claimID, imageID, ext string) string {
	return fmt.Sprintf("%s/%s/%s/%s%s", claimsPrefix, claimID, damagesDir, imageID, ext)
}

// ParseImageKey extracts claimID and imageID from a damage image key.
func ParseImageKey(key string) (claimID, imageID string, ok bool) {
	parts := strings.Split(key, "/")
	if len(parts) != 4 || parts[0] != claimsPrefix || parts[2] != damagesDir || parts[1] == "" {
		return "", "", false
	}
	ext := path.Ext(parts[3])
	imageID = strings.TrimSuffix(parts[3], ext)
	if imageID == "" || ext == "" {
		return "", "", false
	}
	return parts[1], imageID, true
}

// ObjectURL returns the public URL stored on a damage for key. A non-empty base
// (a CDN or LocalStack origin) wins over the virtual-hosted bucket URL.
func ObjectURL(base, bucket, region, key string) string {
	if base != "" {
		return strings.TrimRight(base, "/") + "/" + escapeKey(key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, region, escapeKey(key))
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// UploadHeaders builds the headers the client must send on PUT (matches the bucket policy).
func UploadHeaders(claimID, imageID, contentType string) map[string]string {
	return map[string]string{
		"Content-Type":                 contentType,
		"x-amz-server-side-encryption": "aws:kms",
		"x-amz-meta-claim_id":          claimID,
		"x-amz-meta-image_id":          imageID,
	}
}
