package transcript

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"cloud.google.com/go/storage"
)

// Archive uploads a thread's transcript file to a GCS bucket under
// transcripts/<threadID>.jsonl and returns the object's gs:// URI.
// Assumes Application Default Credentials are configured.
func (l *Log) Archive(ctx context.Context, bucketName, threadID string) (string, error) {
	f, err := os.Open(l.Path(threadID))
	if err != nil {
		return "", fmt.Errorf("Archive: open transcript %q: %w", l.Path(threadID), err)
	}
	defer f.Close()

	client, err := storage.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("Archive: create storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	objectName := "transcripts/" + threadID + ".jsonl"
	w := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return "", fmt.Errorf("Archive: copy transcript to GCS writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("Archive: finalize upload: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", bucketName, objectName), nil
}
