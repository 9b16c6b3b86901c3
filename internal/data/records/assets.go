package records

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/yungbote/promptstudy-backend/internal/platform/blob"
)

// TrialImageName is the asset name of a trial's image inside the participant namespace.
func TrialImageName(trial int) string {
	return fmt.Sprintf("images/trial_%02d.png", trial)
}

// AssetPath returns the store-relative path of a participant asset, e.g.
// "P1/images/trial_00.png".
func AssetPath(participant, name string) (string, error) {
	return participantKey(participant, name)
}

// WriteAsset stores data and returns its relative path.
func (s *Store) WriteAsset(ctx context.Context, participant, name string, data []byte) (string, error) {
	key, err := participantKey(participant, name)
	if err != nil {
		return "", err
	}
	if err := s.blob.Write(ctx, key, data); err != nil {
		return "", fmt.Errorf("write asset %s: %w", key, err)
	}
	return key, nil
}

func (s *Store) AssetExists(ctx context.Context, rel string) (bool, error) {
	return s.blob.Exists(ctx, rel)
}

func (s *Store) DeleteAsset(ctx context.Context, rel string) error {
	return s.blob.Delete(ctx, rel)
}

// OpenAsset opens a stored image. Only paths of the form {participant}/images/*.png are
// served; anything else reports blob.ErrNotExist.
func (s *Store) OpenAsset(ctx context.Context, rel string) (io.ReadCloser, blob.ObjectInfo, error) {
	key, err := blob.CleanKey(rel)
	if err != nil {
		return nil, blob.ObjectInfo{}, blob.ErrNotExist
	}
	parts := strings.Split(key, "/")
	if len(parts) != 3 || parts[1] != "images" || !strings.HasSuffix(strings.ToLower(parts[2]), ".png") {
		return nil, blob.ObjectInfo{}, blob.ErrNotExist
	}
	return s.blob.Open(ctx, key)
}
