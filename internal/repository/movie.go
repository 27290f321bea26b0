package repository

import (
	"errors"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/user/movierec/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MovieRepository struct {
	db *gorm.DB
}

func NewMovieRepository(db *gorm.DB) *MovieRepository {
	return &MovieRepository{db: db}
}

// FindByID 根据 ID 查找电影
func (r *MovieRepository) FindByID(id int) (*model.Movie, error) {
	var movie model.Movie
	err := r.db.First(&movie, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &movie, nil
}

// FindByIDs 批量查找电影（结果顺序由数据库决定，调用方按需重排）
func (r *MovieRepository) FindByIDs(ids []int) ([]model.Movie, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var movies []model.Movie
	err := r.db.Where("movie_id IN ?", ids).Find(&movies).Error
	return movies, err
}

// List 分页获取电影列表，支持标题搜索和类型筛选
func (r *MovieRepository) List(page, limit int, search, genre string) ([]model.Movie, int64, error) {
	query := r.db.Model(&model.Movie{})

	if search != "" {
		query = query.Where("title ILIKE ?", "%"+search+"%")
	}
	if genre != "" {
		query = query.Where("? = ANY(genres)", genre)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var movies []model.Movie
	err := query.Order("avg_rating DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&movies).Error

	return movies, total, err
}

// UnratedWithImage 获取用户未评分且有展示图的候选电影。
// 排序固定为主键升序，保证同一历史快照下候选序列可复现。
func (r *MovieRepository) UnratedWithImage(userID int) ([]model.Movie, error) {
	var movies []model.Movie
	err := r.db.
		Where("image_url <> ''").
		Where("movie_id NOT IN (?)",
			r.db.Model(&model.Rating{}).Select("movie_id").Where("user_id = ?", userID)).
		Order("movie_id ASC").
		Find(&movies).Error
	return movies, err
}

// PopularMovies 热门电影：评分数达到门槛且有展示图，
// 按平均分降序，平均分相同按评分数降序
func (r *MovieRepository) PopularMovies(n, minRatings int) ([]model.Movie, error) {
	var movies []model.Movie
	err := r.db.
		Where("rating_count >= ?", minRatings).
		Where("image_url <> ''").
		Order("avg_rating DESC, rating_count DESC").
		Limit(n).
		Find(&movies).Error
	return movies, err
}

// UpdateStats 重算电影的平均分和评分数（评分增删改后调用）
func (r *MovieRepository) UpdateStats(movieID int) error {
	return r.db.Exec(`
		UPDATE movies SET
			avg_rating = COALESCE((SELECT AVG(rating) FROM ratings WHERE movie_id = ?), 0),
			rating_count = (SELECT COUNT(*) FROM ratings WHERE movie_id = ?),
			updated_at = ?
		WHERE movie_id = ?
	`, movieID, movieID, time.Now(), movieID).Error
}

// RecomputeAllStats 全量重算所有电影的统计字段（导入后调用）
func (r *MovieRepository) RecomputeAllStats() error {
	return r.db.Exec(`
		UPDATE movies SET
			avg_rating = COALESCE(s.avg_rating, 0),
			rating_count = COALESCE(s.rating_count, 0)
		FROM (
			SELECT movie_id, AVG(rating) AS avg_rating, COUNT(*) AS rating_count
			FROM ratings GROUP BY movie_id
		) s
		WHERE movies.movie_id = s.movie_id
	`).Error
}

// Upsert 创建或更新电影（导入工具使用）
func (r *MovieRepository) Upsert(movie *model.Movie) error {
	movie.UpdatedAt = time.Now()
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "movie_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "release_date", "genres", "avg_rating", "rating_count",
			"image_url", "summary", "director", "actors", "imdb_score", "runtime", "updated_at",
		}),
	}).Create(movie).Error
}

// UpdateImageURL 更新电影展示图（TMDB 海报回填）
func (r *MovieRepository) UpdateImageURL(movieID int, imageURL string) error {
	return r.db.Model(&model.Movie{}).
		Where("movie_id = ?", movieID).
		Update("image_url", imageURL).Error
}

// SyncEmbedding 将模型工件里的电影隐向量镜像到 pgvector 列，
// 方便在 SQL 侧直接观察隐空间
func (r *MovieRepository) SyncEmbedding(movieID int, vec []float64) error {
	v := make([]float32, len(vec))
	for i, x := range vec {
		v[i] = float32(x)
	}
	emb := pgvector.NewVector(v)
	return r.db.Model(&model.Movie{}).
		Where("movie_id = ?", movieID).
		Update("embedding", &emb).Error
}

// ListWithoutImage 获取没有展示图的电影（海报回填用）
func (r *MovieRepository) ListWithoutImage(limit int) ([]model.Movie, error) {
	var movies []model.Movie
	err := r.db.Where("image_url = ''").Limit(limit).Find(&movies).Error
	return movies, err
}

// Count 获取电影总数
func (r *MovieRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&model.Movie{}).Count(&count).Error
	return count, err
}
