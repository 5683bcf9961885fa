package services

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"dahlia_back_end/internal/database"

	"github.com/minio/minio-go/v7"
)

// UploadBytes pousse un objet dans le bucket configuré et retourne son URL
// publique. Erreur si MinIO n'est pas initialisé.
func UploadBytes(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	if database.MinIO == nil {
		return "", fmt.Errorf("MinIO non initialisé")
	}

	bucket := os.Getenv("MINIO_BUCKET")
	_, err := database.MinIO.PutObject(ctx, bucket, objectName,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", err
	}

	scheme := "http"
	if os.Getenv("MINIO_USE_SSL") == "true" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, os.Getenv("MINIO_ENDPOINT"), bucket, objectName), nil
}
