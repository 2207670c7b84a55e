package blob

import (
	"context"
	"fmt"
	"io"
	"os"

	firebase "firebase.google.com/go/v4"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

// FirebaseStorage uploads images to a Firebase Storage bucket and serves
// them through the public storage endpoint.
type FirebaseStorage struct {
	app    *firebase.App
	bucket string
}

// NewFirebaseStorage initializes the Firebase app from a service-account
// credentials file and binds it to the given bucket.
func NewFirebaseStorage(ctx context.Context, credentialsPath, bucket string) (*FirebaseStorage, error) {
	if credentialsPath == "" {
		return nil, fmt.Errorf("firebase credentials path not provided")
	}
	if bucket == "" {
		return nil, fmt.Errorf("storage bucket not provided")
	}
	if _, err := os.Stat(credentialsPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("firebase credentials file not found at %s", credentialsPath)
	}

	opt := option.WithCredentialsFile(credentialsPath)
	app, err := firebase.NewApp(ctx, &firebase.Config{StorageBucket: bucket}, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	log.Info().Str("bucket", bucket).Msg("firebase storage initialized")
	return &FirebaseStorage{app: app, bucket: bucket}, nil
}

// Upload streams the payload into the bucket under folder/filename and
// returns the public URL.
func (s *FirebaseStorage) Upload(ctx context.Context, folder, filename string, r io.Reader, contentType string) (string, error) {
	client, err := s.app.Storage(ctx)
	if err != nil {
		return "", fmt.Errorf("error getting storage client: %w", err)
	}
	bucket, err := client.DefaultBucket()
	if err != nil {
		return "", fmt.Errorf("error getting default bucket: %w", err)
	}

	object := folder + "/" + filename
	w := bucket.Object(object).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return "", fmt.Errorf("error writing object %s: %w", object, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("error finalizing object %s: %w", object, err)
	}

	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, object), nil
}
