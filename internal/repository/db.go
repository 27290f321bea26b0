package repository

import (
	"errors"
	"fmt"

	"github.com/user/movierec/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB 初始化数据库连接
func InitDB(databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		// 把驱动错误翻译成 gorm 语义错误（唯一索引冲突 → ErrDuplicatedKey）
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("无法连接数据库: %w", err)
	}

	// 建表（pgvector 扩展需要先于 embedding 列存在）
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return nil, fmt.Errorf("启用 pgvector 扩展失败: %w", err)
	}
	if err := db.AutoMigrate(&model.User{}, &model.Movie{}, &model.Rating{}); err != nil {
		return nil, fmt.Errorf("建表失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	return db, nil
}

// Repositories 仓库集合
type Repositories struct {
	DB     *gorm.DB
	User   *UserRepository
	Movie  *MovieRepository
	Rating *RatingRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		DB:     db,
		User:   NewUserRepository(db),
		Movie:  NewMovieRepository(db),
		Rating: NewRatingRepository(db),
	}
}

// IsDuplicate 写入是否撞上唯一索引。
// 先查后写存在并发窗口，两个请求同时通过查重时落败方在这里被识别。
func IsDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
