package service

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/user/movierec/internal/mf"
	"github.com/user/movierec/internal/model"
	"github.com/user/movierec/internal/utils"
)

const (
	// HighRatingThreshold 计入类型偏好的最低评分
	HighRatingThreshold = 4.0
	// RecentRatingLimit 类型偏好只看最近几条高分评分
	RecentRatingLimit = 5
	// GenreBoostStep 每次命中类型的加权增量
	GenreBoostStep = 0.2
	// MaxScore 预测评分上限（只封顶，不设下限）
	MaxScore = 5.0
	// MaxRecommendLimit 单次推荐条数上限
	MaxRecommendLimit = 50
)

// MovieSource 推荐所需的目录读取接口（由 MovieRepository 实现）
type MovieSource interface {
	UnratedWithImage(userID int) ([]model.Movie, error)
	FindByIDs(ids []int) ([]model.Movie, error)
	PopularMovies(n, minRatings int) ([]model.Movie, error)
	SyncEmbedding(movieID int, vec []float64) error
}

// RatingSource 推荐所需的评分历史读取接口（由 RatingRepository 实现）
type RatingSource interface {
	RecentHighRatings(userID int, minValue float64, limit int) ([]model.RecentRating, error)
}

// RecommendService 推荐编排：候选获取 → 类型加权 → 打分排序，
// 个性化不可用时由上层降级到热门榜
type RecommendService struct {
	movies  MovieSource
	ratings RatingSource

	modelPath string
	loadOnce  sync.Once
	artifact  *mf.Artifact
	loadErr   error

	similarCache *utils.TTLCache[[]model.SimilarMovie]
}

// NewRecommendService 创建推荐服务
func NewRecommendService(movies MovieSource, ratings RatingSource, modelPath string) *RecommendService {
	return &RecommendService{
		movies:       movies,
		ratings:      ratings,
		modelPath:    modelPath,
		similarCache: utils.NewTTLCache[[]model.SimilarMovie](1000, time.Hour),
	}
}

// Model 获取模型工件。首次调用时加载，之后只读复用；
// 并发请求竞争触发加载时也只会加载一次。
func (s *RecommendService) Model() (*mf.Artifact, error) {
	s.loadOnce.Do(func() {
		s.artifact, s.loadErr = mf.Load(s.modelPath)
		if s.loadErr != nil {
			log.Printf("[推荐] 模型工件加载失败，个性化推荐不可用: %v", s.loadErr)
			return
		}
		log.Printf("[推荐] 模型工件已加载: %d 个隐因子, %d 用户, %d 电影",
			s.artifact.Factors, len(s.artifact.UserIDs), len(s.artifact.ItemIDs))
	})
	return s.artifact, s.loadErr
}

// WarmUp 启动时预热模型。加载失败只记日志，进程继续以热门榜模式服务。
func (s *RecommendService) WarmUp() {
	s.Model()
}

// Ready 个性化推荐是否可用
func (s *RecommendService) Ready() bool {
	_, err := s.Model()
	return err == nil
}

// Recommend 获取个性化推荐。返回空列表表示无法产生个性化结果，
// 由调用方降级到热门榜；上游读取失败才返回 error。
func (s *RecommendService) Recommend(userID, n int) ([]model.MovieRecommendation, error) {
	if n <= 0 {
		n = 10
	} else if n > MaxRecommendLimit {
		n = MaxRecommendLimit
	}

	// 缓存整榜，按 n 截取
	cacheKey := "rec:user:" + strconv.Itoa(userID)
	if cached, found := utils.CacheGet(cacheKey); found {
		if recs, ok := cached.([]model.MovieRecommendation); ok {
			return truncateRecs(recs, n), nil
		}
	}

	artifact, err := s.Model()
	if err != nil {
		// 模型不可用：个性化永远不就绪，交给上层降级
		return nil, nil
	}

	// 1) 候选：未评分且有展示图
	candidates, err := s.movies.UnratedWithImage(userID)
	if err != nil {
		return nil, fmt.Errorf("获取候选电影失败: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	// 2) 类型加权
	boost, err := s.buildGenreBoost(userID)
	if err != nil {
		return nil, fmt.Errorf("计算类型偏好失败: %w", err)
	}

	// 3) 逐个候选打分
	recs := make([]model.MovieRecommendation, 0, len(candidates))
	for _, movie := range candidates {
		raw, err := artifact.PredictScore(userID, movie.MovieID)
		if errors.Is(err, mf.ErrColdStartUser) {
			// 用户完全不在训练集中，所有候选都打不了分
			return nil, nil
		}
		if errors.Is(err, mf.ErrColdStartItem) {
			// 单部电影不在训练集中：跳过，不影响整个请求
			continue
		}

		var total float64
		for _, genre := range movie.Genres {
			total += boost[genre]
		}

		final := raw + total
		if final > MaxScore {
			final = MaxScore
		}

		recs = append(recs, model.MovieRecommendation{
			Movie:           movie,
			PredictedRating: final,
		})
	}

	// 4) 按预测评分降序，相同分数保持候选顺序
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].PredictedRating > recs[j].PredictedRating
	})
	if len(recs) > MaxRecommendLimit {
		recs = recs[:MaxRecommendLimit]
	}

	utils.CacheSet(cacheKey, recs, 5*time.Minute)
	return truncateRecs(recs, n), nil
}

// buildGenreBoost 从最近的高分评分构建类型加权表。
// 每条高分评分给其电影的每个类型 +0.2，同一类型跨评分可叠加；
// 没有高分历史时返回空表，打分退化为纯隐因子预测。
func (s *RecommendService) buildGenreBoost(userID int) (map[string]float64, error) {
	recent, err := s.ratings.RecentHighRatings(userID, HighRatingThreshold, RecentRatingLimit)
	if err != nil {
		return nil, err
	}

	boost := make(map[string]float64)
	for _, r := range recent {
		for _, genre := range r.Genres {
			boost[genre] += GenreBoostStep
		}
	}
	return boost, nil
}

// Similar 获取隐空间中最相似的 n 部电影。
// 电影不在训练集中时返回空列表（调用方映射为 404），不是错误。
func (s *RecommendService) Similar(movieID, n int) ([]model.SimilarMovie, error) {
	if n <= 0 {
		n = 10
	} else if n > MaxRecommendLimit {
		n = MaxRecommendLimit
	}

	cacheKey := fmt.Sprintf("similar:%d:%d", movieID, n)
	if cached, found := s.similarCache.Get(cacheKey); found {
		return cached, nil
	}

	artifact, err := s.Model()
	if err != nil {
		return nil, nil
	}

	neighbors := artifact.SimilarItems(movieID, n)
	if len(neighbors) == 0 {
		return nil, nil
	}

	// 解析回目录记录，只保留有展示图的
	ids := make([]int, 0, len(neighbors))
	for _, nb := range neighbors {
		ids = append(ids, nb.MovieID)
	}
	movies, err := s.movies.FindByIDs(ids)
	if err != nil {
		return nil, fmt.Errorf("查找相似电影详情失败: %w", err)
	}
	byID := make(map[int]model.Movie, len(movies))
	for _, m := range movies {
		byID[m.MovieID] = m
	}

	result := make([]model.SimilarMovie, 0, len(neighbors))
	for _, nb := range neighbors {
		movie, ok := byID[nb.MovieID]
		if !ok || !movie.HasImage() {
			continue
		}
		result = append(result, model.SimilarMovie{
			Movie:      movie,
			Similarity: nb.Similarity,
		})
	}

	s.similarCache.Set(cacheKey, result)
	return result, nil
}

// Popular 热门榜。不依赖模型工件，模型加载失败时依然可用。
func (s *RecommendService) Popular(n, minRatings int) ([]model.Movie, error) {
	if n <= 0 {
		n = 10
	} else if n > MaxRecommendLimit {
		n = MaxRecommendLimit
	}
	return s.movies.PopularMovies(n, minRatings)
}

// InvalidateUser 用户评分变动后清除其推荐缓存
func (s *RecommendService) InvalidateUser(userID int) {
	utils.CacheDelete("rec:user:" + strconv.Itoa(userID))
}

// SyncEmbeddings 将工件中的电影隐向量镜像到数据库 pgvector 列
func (s *RecommendService) SyncEmbeddings() (int, error) {
	artifact, err := s.Model()
	if err != nil {
		return 0, err
	}

	synced := 0
	for _, movieID := range artifact.TrainedItemIDs() {
		vec, err := artifact.ItemVector(movieID)
		if err != nil {
			continue
		}
		if err := s.movies.SyncEmbedding(movieID, vec); err != nil {
			log.Printf("[推荐] 同步电影 %d 隐向量失败: %v", movieID, err)
			continue
		}
		synced++
	}
	return synced, nil
}

func truncateRecs(recs []model.MovieRecommendation, n int) []model.MovieRecommendation {
	if len(recs) > n {
		recs = recs[:n]
	}
	out := make([]model.MovieRecommendation, len(recs))
	copy(out, recs)
	return out
}
