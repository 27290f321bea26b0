package repository

import (
	"errors"
	"time"

	"github.com/user/movierec/internal/model"
	"gorm.io/gorm"
)

type RatingRepository struct {
	db *gorm.DB
}

func NewRatingRepository(db *gorm.DB) *RatingRepository {
	return &RatingRepository{db: db}
}

// Create 新增评分
func (r *RatingRepository) Create(userID, movieID int, value float64) (*model.Rating, error) {
	rating := &model.Rating{
		UserID:    userID,
		MovieID:   movieID,
		Rating:    value,
		Timestamp: time.Now(),
	}
	if err := r.db.Create(rating).Error; err != nil {
		return nil, err
	}
	return rating, nil
}

// FindByID 根据 ID 查找评分
func (r *RatingRepository) FindByID(ratingID int) (*model.Rating, error) {
	var rating model.Rating
	err := r.db.First(&rating, ratingID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rating, nil
}

// FindByUserAndMovie 查找用户对某部电影的评分
func (r *RatingRepository) FindByUserAndMovie(userID, movieID int) (*model.Rating, error) {
	var rating model.Rating
	err := r.db.Where("user_id = ? AND movie_id = ?", userID, movieID).First(&rating).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rating, nil
}

// UpdateValue 更新评分值
func (r *RatingRepository) UpdateValue(ratingID int, value float64) error {
	return r.db.Model(&model.Rating{}).
		Where("rating_id = ?", ratingID).
		Updates(map[string]interface{}{
			"rating":    value,
			"timestamp": time.Now(),
		}).Error
}

// Delete 删除评分
func (r *RatingRepository) Delete(ratingID int) error {
	return r.db.Delete(&model.Rating{}, ratingID).Error
}

// ListByUser 分页获取用户的评分（联表带出电影标题），按时间倒序
func (r *RatingRepository) ListByUser(userID, page, limit int) ([]model.UserRating, int64, error) {
	var total int64
	if err := r.db.Model(&model.Rating{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var ratings []model.UserRating
	err := r.db.Model(&model.Rating{}).
		Select("ratings.rating_id, ratings.movie_id, movies.title, ratings.rating, ratings.timestamp").
		Joins("JOIN movies ON movies.movie_id = ratings.movie_id").
		Where("ratings.user_id = ?", userID).
		Order("ratings.timestamp DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Scan(&ratings).Error

	return ratings, total, err
}

// RecentHighRatings 用户最近的高分评分（>= minValue），最新在前，最多 limit 条。
// 只取打分需要的 (genres, rating)。
func (r *RatingRepository) RecentHighRatings(userID int, minValue float64, limit int) ([]model.RecentRating, error) {
	var recent []model.RecentRating
	err := r.db.Model(&model.Rating{}).
		Select("movies.genres, ratings.rating").
		Joins("JOIN movies ON movies.movie_id = ratings.movie_id").
		Where("ratings.user_id = ? AND ratings.rating >= ?", userID, minValue).
		Order("ratings.timestamp DESC").
		Limit(limit).
		Scan(&recent).Error
	return recent, err
}

// Count 获取评分总数
func (r *RatingRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&model.Rating{}).Count(&count).Error
	return count, err
}
