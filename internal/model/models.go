package model

import (
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// User 用户模型
type User struct {
	UserID       int       `json:"user_id" gorm:"column:user_id;primaryKey;autoIncrement"`
	Username     string    `json:"username" gorm:"uniqueIndex"`
	Email        string    `json:"email" gorm:"index"`
	PasswordHash string    `json:"-" gorm:"column:password_hash"`
	Age          *int      `json:"age,omitempty"`
	Gender       string    `json:"gender,omitempty"`
	Occupation   string    `json:"occupation,omitempty"`
	ZipCode      string    `json:"zip_code,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Movie 电影模型（目录加载时写入，评分统计字段随评分变动刷新）
type Movie struct {
	MovieID     int             `json:"movie_id" gorm:"column:movie_id;primaryKey"`
	Title       string          `json:"title" gorm:"index"`
	ReleaseDate string          `json:"release_date,omitempty"`
	Genres      pq.StringArray  `json:"genres" gorm:"type:text[]"`
	AvgRating   float64         `json:"avg_rating" gorm:"index"`
	RatingCount int             `json:"rating_count"`
	ImageURL    string          `json:"image_url" gorm:"column:image_url"`
	Summary     string          `json:"summary,omitempty"`
	Director    string          `json:"director,omitempty"`
	Actors      string          `json:"actors,omitempty"`
	ImdbScore   *float64        `json:"imdb_score,omitempty"`
	Runtime     string          `json:"runtime,omitempty"`
	Embedding   *pgvector.Vector `json:"-" gorm:"type:vector(100)"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// HasImage 是否有展示图（个性化与相似结果只展示有图的电影）
func (m *Movie) HasImage() bool {
	return m.ImageURL != ""
}

// Rating 评分记录，同一 (user_id, movie_id) 至多一条
type Rating struct {
	RatingID  int       `json:"rating_id" gorm:"column:rating_id;primaryKey;autoIncrement"`
	UserID    int       `json:"user_id" gorm:"index;uniqueIndex:idx_user_movie"`
	MovieID   int       `json:"movie_id" gorm:"index;uniqueIndex:idx_user_movie"`
	Rating    float64   `json:"rating"`
	Timestamp time.Time `json:"timestamp"`
}

// RecentRating 近期高分评分（只取打分时需要的字段）
type RecentRating struct {
	Genres pq.StringArray `gorm:"type:text[]"`
	Rating float64
}

// MovieRecommendation 推荐结果：电影 + 预测评分
type MovieRecommendation struct {
	Movie
	PredictedRating float64 `json:"predicted_rating"`
}

// SimilarMovie 相似结果：电影 + 余弦相似度
type SimilarMovie struct {
	Movie
	Similarity float64 `json:"similarity"`
}

// UserRating 用户评分列表项（联表带出电影标题）
type UserRating struct {
	RatingID  int       `json:"rating_id"`
	MovieID   int       `json:"movie_id"`
	Title     string    `json:"title"`
	Rating    float64   `json:"rating"`
	Timestamp time.Time `json:"timestamp"`
}
