package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"quest-ledger/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectPutter is the slice of the S3 API snapshots need (R2 in production).
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// LedgerSnapshot is the document uploaded for each export.
type LedgerSnapshot struct {
	TakenAt time.Time           `json:"takenAt"`
	Records []models.UserRecord `json:"records"`
}

// SnapshotExporter copies every user record to object storage.
type SnapshotExporter struct {
	store  KVStore
	putter ObjectPutter
	bucket string
	now    func() time.Time
}

func NewSnapshotExporter(store KVStore, putter ObjectPutter, bucket string) *SnapshotExporter {
	return &SnapshotExporter{store: store, putter: putter, bucket: bucket, now: time.Now}
}

// Export uploads a snapshot and returns its object key.
func (e *SnapshotExporter) Export(ctx context.Context) (string, error) {
	raw, err := e.store.Scan(ctx, models.UserKeyPrefix())
	if err != nil {
		return "", fmt.Errorf("scan user records: %w", err)
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	snap := LedgerSnapshot{TakenAt: e.now().UTC(), Records: make([]models.UserRecord, 0, len(keys))}
	for _, k := range keys {
		rec, err := decodeRecord(raw[k], strings.TrimPrefix(k, models.UserKeyPrefix()))
		if err != nil {
			// one bad blob shouldn't block the rest of the backup
			log.Printf("⚠️ [SNAPSHOT] Skipping %s: %v", k, err)
			continue
		}
		snap.Records = append(snap.Records, *rec)
	}

	body, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	key := fmt.Sprintf("snapshots/ledger-%s.json", snap.TakenAt.Format(time.RFC3339))
	_, err = e.putter.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload snapshot to R2: %w", err)
	}

	log.Printf("📦 [SNAPSHOT] Exported %d records to %s", len(snap.Records), key)
	return key, nil
}
