package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"github.com/chaitanyakelkar27/AarogyaSense/internal/model"
)

// syncRecordRow is the relational shape of a SyncableRecord. The payload
// stays a jsonb document; everything the sync protocol filters on gets
// its own column.
type syncRecordRow struct {
	Collection        string         `gorm:"primaryKey;type:varchar(64)"`
	ID                string         `gorm:"primaryKey;type:varchar(64)"`
	Payload           datatypes.JSON `gorm:"type:jsonb"`
	Version           int            `gorm:"not null"`
	LastModified      time.Time      `gorm:"index"`
	Checksum          string         `gorm:"type:varchar(16);not null"`
	SyncStatus        string         `gorm:"type:varchar(16);index;not null"`
	DeviceID          string         `gorm:"type:varchar(64);index"`
	LastSyncedVersion int            `gorm:"not null;default:0"`
}

func (syncRecordRow) TableName() string { return "sync_record" }

// GormStore persists records in postgres. Clinic hubs run it; field
// devices use Memory plus backups instead.
type GormStore struct {
	db *gorm.DB
}

// OpenGorm connects to postgres and migrates the record table.
func OpenGorm(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
	})
	if err != nil {
		return nil, wrapErr("open", err)
	}

	if err := db.AutoMigrate(&syncRecordRow{}); err != nil {
		return nil, wrapErr("migrate", err)
	}

	return &GormStore{db: db}, nil
}

func (s *GormStore) Put(ctx context.Context, collection, id string, record *model.SyncableRecord) error {
	payload, err := json.Marshal(record.Payload)
	if err != nil {
		return wrapErr("put", err)
	}

	row := syncRecordRow{
		Collection:        collection,
		ID:                id,
		Payload:           datatypes.JSON(payload),
		Version:           record.Version,
		LastModified:      record.LastModified,
		Checksum:          record.Checksum,
		SyncStatus:        string(record.SyncStatus),
		DeviceID:          record.DeviceID,
		LastSyncedVersion: record.LastSyncedVersion,
	}

	result := s.db.WithContext(ctx).Save(&row)
	return wrapErr("put", result.Error)
}

func (s *GormStore) Get(ctx context.Context, collection, id string) (*model.SyncableRecord, error) {
	var row syncRecordRow
	result := s.db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		First(&row)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, wrapErr("get", result.Error)
	}

	return rowToRecord(&row)
}

func (s *GormStore) GetAll(ctx context.Context, collection string) ([]*model.SyncableRecord, error) {
	var rows []syncRecordRow
	result := s.db.WithContext(ctx).
		Where("collection = ?", collection).
		Order("last_modified").
		Find(&rows)
	if result.Error != nil {
		return nil, wrapErr("getAll", result.Error)
	}

	records := make([]*model.SyncableRecord, 0, len(rows))
	for i := range rows {
		record, err := rowToRecord(&rows[i])
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (s *GormStore) Delete(ctx context.Context, collection, id string) error {
	result := s.db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		Delete(&syncRecordRow{})
	return wrapErr("delete", result.Error)
}

func rowToRecord(row *syncRecordRow) (*model.SyncableRecord, error) {
	var payload map[string]any
	if len(row.Payload) > 0 {
		if err := json.Unmarshal(row.Payload, &payload); err != nil {
			return nil, wrapErr("decode", err)
		}
	}

	return &model.SyncableRecord{
		ID:                row.ID,
		Collection:        row.Collection,
		Payload:           payload,
		Version:           row.Version,
		LastModified:      row.LastModified,
		Checksum:          row.Checksum,
		SyncStatus:        model.SyncStatus(row.SyncStatus),
		DeviceID:          row.DeviceID,
		LastSyncedVersion: row.LastSyncedVersion,
	}, nil
}
