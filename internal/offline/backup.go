package offline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/chaitanyakelkar27/AarogyaSense/internal/model"
)

// snapshotFormatVersion guards against restoring snapshots written by an
// incompatible build.
const snapshotFormatVersion = 1

// Snapshot is a full export of a device's local state: records across
// collections, open conflicts and the audit log.
type Snapshot struct {
	Timestamp     int64                              `json:"timestamp"`
	DeviceID      string                             `json:"deviceId"`
	FormatVersion int                                `json:"version"`
	Records       map[string][]*model.SyncableRecord `json:"records"`
	Conflicts     []*model.SyncConflict              `json:"conflicts"`
	ChangeLog     []model.ChangeLogEntry             `json:"changeLog"`
}

// CreateBackup serializes the given collections plus conflicts and the
// change log into a restorable snapshot.
func (s *DataStore) CreateBackup(ctx context.Context, collections ...string) ([]byte, error) {
	snapshot := Snapshot{
		Timestamp:     s.clock.Now().UnixMilli(),
		DeviceID:      s.deviceID,
		FormatVersion: snapshotFormatVersion,
		Records:       make(map[string][]*model.SyncableRecord, len(collections)),
		Conflicts:     s.OpenConflicts(),
		ChangeLog:     s.ChangeLog(),
	}

	for _, collection := range collections {
		records, err := s.kv.GetAll(ctx, collection)
		if err != nil {
			return nil, err
		}
		snapshot.Records[collection] = records
	}

	return json.Marshal(snapshot)
}

// RestoreBackup replaces local state with the snapshot's. Restored
// records keep their stored sync status, so anything pending at backup
// time syncs on the next cycle.
func (s *DataStore) RestoreBackup(ctx context.Context, data []byte) error {
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return fmt.Errorf("failed to restore backup: %w", err)
	}
	if snapshot.Timestamp == 0 || snapshot.Records == nil {
		return fmt.Errorf("failed to restore backup: invalid backup format")
	}
	if snapshot.FormatVersion != snapshotFormatVersion {
		return fmt.Errorf("failed to restore backup: unsupported format version %d", snapshot.FormatVersion)
	}

	for collection, records := range snapshot.Records {
		existing, err := s.kv.GetAll(ctx, collection)
		if err != nil {
			return err
		}
		for _, record := range existing {
			if err := s.kv.Delete(ctx, collection, record.ID); err != nil {
				return err
			}
		}

		for _, record := range records {
			if err := s.kv.Put(ctx, collection, record.ID, record); err != nil {
				return err
			}
		}
	}

	s.mu.Lock()
	s.queue = nil
	s.changeLog = append([]model.ChangeLogEntry(nil), snapshot.ChangeLog...)
	s.conflicts = make(map[string]*model.SyncConflict, len(snapshot.Conflicts))
	for _, conflict := range snapshot.Conflicts {
		s.conflicts[conflict.RecordID] = conflict
	}
	for collection, records := range snapshot.Records {
		for _, record := range records {
			if record.SyncStatus == model.StatusPending {
				s.enqueueLocked(collection, record.ID)
			}
		}
	}
	s.mu.Unlock()

	return nil
}

// ObjectTarget is where backup snapshots land: an S3 bucket in
// production, an in-memory fake in tests.
type ObjectTarget interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// S3Target stores snapshots as S3 objects.
type S3Target struct {
	client *s3.Client
	bucket string
}

func NewS3Target(ctx context.Context, bucket string) (*S3Target, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}

	client := s3.New(s3.Options{
		Region:       cfg.Region,
		Credentials:  cfg.Credentials,
		HTTPClient:   cfg.HTTPClient,
		BaseEndpoint: cfg.BaseEndpoint,
		UsePathStyle: true,
	})

	return &S3Target{client: client, bucket: bucket}, nil
}

func (t *S3Target) Put(ctx context.Context, key string, data []byte) error {
	_, err := t.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(t.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	return err
}

func (t *S3Target) Get(ctx context.Context, key string) ([]byte, error) {
	resp, err := t.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

// UploadBackup snapshots the store and ships it to the target.
func UploadBackup(ctx context.Context, store *DataStore, target ObjectTarget, key string, collections ...string) error {
	data, err := store.CreateBackup(ctx, collections...)
	if err != nil {
		return err
	}
	return target.Put(ctx, key, data)
}

// DownloadBackup fetches a snapshot from the target and restores it.
func DownloadBackup(ctx context.Context, store *DataStore, target ObjectTarget, key string) error {
	data, err := target.Get(ctx, key)
	if err != nil {
		return err
	}
	return store.RestoreBackup(ctx, data)
}
