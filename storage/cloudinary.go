package storage

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// CloudinaryStore deletes report photos uploaded to Cloudinary.
type CloudinaryStore struct {
	cld *cloudinary.Cloudinary
}

func NewCloudinaryStore(cloudinaryURL string) (*CloudinaryStore, error) {
	if cloudinaryURL == "" {
		return nil, fmt.Errorf("CLOUDINARY_URL is required for the cloudinary storage backend")
	}
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}
	return &CloudinaryStore{cld: cld}, nil
}

func (s *CloudinaryStore) Delete(ctx context.Context, rawURL string) error {
	publicID, err := CloudinaryPublicID(rawURL)
	if err != nil {
		return err
	}
	res, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return fmt.Errorf("destroy %s: %w", publicID, err)
	}
	if res != nil && res.Error.Message != "" {
		return fmt.Errorf("destroy %s: %s", publicID, res.Error.Message)
	}
	return nil
}

// CloudinaryPublicID derives the public ID from a delivery URL such as
// https://res.cloudinary.com/<cloud>/image/upload/v123/reports/abc.jpg.
func CloudinaryPublicID(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUnrecognisedURL, rawURL)
	}

	_, rest, ok := strings.Cut(u.Path, "/upload/")
	if !ok || rest == "" {
		return "", fmt.Errorf("%w: %s", ErrUnrecognisedURL, rawURL)
	}

	segments := strings.Split(rest, "/")
	// Everything after the version segment is the public ID; without one,
	// leading transformation segments are skipped.
	versioned := false
	for i, seg := range segments[:len(segments)-1] {
		if isVersion(seg) {
			segments = segments[i+1:]
			versioned = true
			break
		}
	}
	if !versioned {
		for len(segments) > 1 && strings.Contains(segments[0], ",") {
			segments = segments[1:]
		}
	}

	id := strings.Join(segments, "/")
	id = strings.TrimSuffix(id, path.Ext(id))
	if id == "" {
		return "", fmt.Errorf("%w: %s", ErrUnrecognisedURL, rawURL)
	}
	return id, nil
}

func isVersion(segment string) bool {
	if len(segment) < 2 || segment[0] != 'v' {
		return false
	}
	for _, r := range segment[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
