package handler

import (
	"log"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/user/movierec/internal/model"
	"github.com/user/movierec/internal/utils"
)

// Recommendations 获取个性化推荐。
// 个性化结果为空（冷启动用户 / 已评完所有电影 / 模型不可用）时
// 降级到热门榜，predicted_rating 填平均分以保持响应结构一致。
func (h *Handler) Recommendations(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		utils.BadRequest(c, "用户 ID 非法")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	recs, err := h.Recommend.Recommend(userID, limit)
	if err != nil {
		log.Printf("[推荐] 用户 %d 个性化推荐失败: %v", userID, err)
		utils.InternalServerError(c, "生成推荐失败")
		return
	}

	fallback := false
	if len(recs) == 0 {
		// 降级到热门榜
		fallback = true
		popular, err := h.Recommend.Popular(limit, h.Config.MinRatingCount)
		if err != nil {
			utils.InternalServerError(c, "生成推荐失败")
			return
		}
		recs = make([]model.MovieRecommendation, 0, len(popular))
		for _, movie := range popular {
			recs = append(recs, model.MovieRecommendation{
				Movie:           movie,
				PredictedRating: movie.AvgRating,
			})
		}
	}

	utils.Success(c, gin.H{
		"recommendations": recs,
		"fallback":        fallback,
	})
}

// SimilarMovies 获取隐空间相似电影。电影不在训练集或没有近邻时返回 404。
func (h *Handler) SimilarMovies(c *gin.Context) {
	movieID, err := strconv.Atoi(c.Param("movie_id"))
	if err != nil {
		utils.BadRequest(c, "电影 ID 非法")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	similar, err := h.Recommend.Similar(movieID, limit)
	if err != nil {
		log.Printf("[推荐] 电影 %d 相似查询失败: %v", movieID, err)
		utils.InternalServerError(c, "查询相似电影失败")
		return
	}
	if len(similar) == 0 {
		utils.NotFound(c, "没有相似电影或电影不在训练集中")
		return
	}

	utils.Success(c, similar)
}

// PopularMovies 热门电影榜（不依赖模型，始终可用）
func (h *Handler) PopularMovies(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	minRatings, _ := strconv.Atoi(c.DefaultQuery("min_ratings", strconv.Itoa(h.Config.MinRatingCount)))

	movies, err := h.Recommend.Popular(limit, minRatings)
	if err != nil {
		utils.InternalServerError(c, "获取热门电影失败")
		return
	}

	utils.Success(c, movies)
}

// SyncEmbeddings 将模型隐向量同步到数据库（管理接口）
func (h *Handler) SyncEmbeddings(c *gin.Context) {
	synced, err := h.Recommend.SyncEmbeddings()
	if err != nil {
		utils.Error(c, 503, "模型工件不可用")
		return
	}
	utils.Success(c, gin.H{"synced": synced})
}

// Health 健康检查。个性化与热门榜的就绪状态分开上报。
func (h *Handler) Health(c *gin.Context) {
	personalization := "ok"
	if !h.Recommend.Ready() {
		personalization = "unavailable"
	}

	database := "ok"
	if sqlDB, err := h.Repos.DB.DB(); err != nil || sqlDB.Ping() != nil {
		database = "unavailable"
	}

	c.JSON(200, gin.H{
		"status":          "healthy",
		"database":        database,
		"personalization": personalization,
	})
}
