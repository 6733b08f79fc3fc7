package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// StateBlob is the gorm model behind PostgresPersister.
type StateBlob struct {
	Key       string `gorm:"primaryKey"`
	Data      []byte `gorm:"not null"`
	UpdatedAt time.Time
}

// PostgresPersister stores the blob in a state_blobs row keyed by environment.
type PostgresPersister struct {
	db  *gorm.DB
	key string
}

// NewPostgres connects with the given DSN and migrates the state table.
func NewPostgres(dsn, key string) (*PostgresPersister, error) {
	return NewGorm(postgres.Open(dsn), key)
}

// NewGorm opens any gorm dialector; NewPostgres is the production path.
func NewGorm(dialector gorm.Dialector, key string) (*PostgresPersister, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&StateBlob{}); err != nil {
		return nil, err
	}
	return &PostgresPersister{db: db, key: key}, nil
}

func (p *PostgresPersister) Load(ctx context.Context) ([]byte, error) {
	var row StateBlob
	err := p.db.WithContext(ctx).First(&row, "key = ?", p.key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.Data, nil
}

func (p *PostgresPersister) Save(ctx context.Context, data []byte) error {
	return p.db.WithContext(ctx).Save(&StateBlob{
		Key:       p.key,
		Data:      data,
		UpdatedAt: time.Now().UTC(),
	}).Error
}

func (p *PostgresPersister) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
