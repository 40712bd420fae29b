package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"quest-ledger/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// errSkipWrite rolls back the placeholder row when an update decides not to write
var errSkipWrite = errors.New("skip write")

// placeholderValue marks a row inserted only to take the row lock; Version stays 0 until a real write
const placeholderValue = "null"

// GormStore keeps ledger records in a Postgres kv_records table.
type GormStore struct {
	DB *gorm.DB
}

// OpenGormStore connects to Postgres and migrates the ledger tables.
func OpenGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&models.KVRecord{}, &models.QuestEvent{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return NewGormStore(db), nil
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

func (s *GormStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var rec models.KVRecord
	err := s.DB.WithContext(ctx).Where("key = ? AND version > 0", key).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(rec.Value), true, nil
}

// Update serialises writers on the row lock: the key is inserted if missing
// (ON CONFLICT DO NOTHING) and then re-read with SELECT ... FOR UPDATE.
func (s *GormStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seed := models.KVRecord{Key: key, Value: placeholderValue}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return err
		}

		var rec models.KVRecord
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("key = ?", key).
			First(&rec).Error; err != nil {
			return err
		}

		found := rec.Version > 0
		var current []byte
		if found {
			current = []byte(rec.Value)
		}

		m, err := fn(current, found)
		if err != nil {
			return err
		}
		if m == nil {
			return errSkipWrite
		}

		if err := tx.Model(&models.KVRecord{}).
			Where("key = ?", key).
			Updates(map[string]interface{}{
				"value":   string(m.Value),
				"version": rec.Version + 1,
			}).Error; err != nil {
			return err
		}

		if len(m.Events) > 0 {
			if err := tx.Create(&m.Events).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, errSkipWrite) {
		return nil
	}
	return err
}

func (s *GormStore) Scan(ctx context.Context, prefix string) (map[string][]byte, error) {
	var recs []models.KVRecord
	pattern := escapeLike(prefix) + "%"
	if err := s.DB.WithContext(ctx).
		Where("key LIKE ? AND version > 0", pattern).
		Order("key ASC").
		Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(recs))
	for _, r := range recs {
		out[r.Key] = []byte(r.Value)
	}
	return out, nil
}

func (s *GormStore) Events(ctx context.Context, userID string) ([]models.QuestEvent, error) {
	var events []models.QuestEvent
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&events).Error
	return events, err
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormStore) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	log.Println("🔌 [STORE] Closing Postgres connection pool")
	return sqlDB.Close()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
