package handler

import (
	"log"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/user/movierec/internal/middleware"
	"github.com/user/movierec/internal/repository"
	"github.com/user/movierec/internal/utils"
)

// RatingRequest 评分请求（范围校验见 main 里注册的 rating 校验器）
type RatingRequest struct {
	MovieID int     `json:"movie_id" binding:"required"`
	Rating  float64 `json:"rating" binding:"required,rating"`
}

// RatingUpdateRequest 评分更新请求
type RatingUpdateRequest struct {
	Rating float64 `json:"rating" binding:"required,rating"`
}

// CreateRating 新增评分。同一用户对同一电影已有评分时返回 409。
func (h *Handler) CreateRating(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var req RatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	movie, err := h.Repos.Movie.FindByID(req.MovieID)
	if err != nil {
		utils.InternalServerError(c, "")
		return
	}
	if movie == nil {
		utils.NotFound(c, "电影不存在")
		return
	}

	existing, err := h.Repos.Rating.FindByUserAndMovie(userID, req.MovieID)
	if err != nil {
		utils.InternalServerError(c, "")
		return
	}
	if existing != nil {
		utils.Conflict(c, "已评过分，请使用更新接口")
		return
	}

	rating, err := h.Repos.Rating.Create(userID, req.MovieID, req.Rating)
	if err != nil {
		// 查重和写入之间有并发窗口，落败方在唯一索引上冲突
		if repository.IsDuplicate(err) {
			utils.Conflict(c, "已评过分，请使用更新接口")
			return
		}
		log.Printf("[评分] 创建评分失败: %v", err)
		utils.InternalServerError(c, "评分失败")
		return
	}

	// 刷新电影统计并失效该用户的推荐缓存
	if err := h.Repos.Movie.UpdateStats(req.MovieID); err != nil {
		log.Printf("[评分] 刷新电影 %d 统计失败: %v", req.MovieID, err)
	}
	h.Recommend.InvalidateUser(userID)

	utils.Created(c, rating)
}

// UpdateRating 更新评分
func (h *Handler) UpdateRating(c *gin.Context) {
	userID := middleware.GetUserID(c)
	ratingID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "评分 ID 非法")
		return
	}

	var req RatingUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	rating, err := h.Repos.Rating.FindByID(ratingID)
	if err != nil {
		utils.InternalServerError(c, "")
		return
	}
	if rating == nil || rating.UserID != userID {
		utils.NotFound(c, "评分不存在")
		return
	}

	if err := h.Repos.Rating.UpdateValue(ratingID, req.Rating); err != nil {
		utils.InternalServerError(c, "更新评分失败")
		return
	}

	if err := h.Repos.Movie.UpdateStats(rating.MovieID); err != nil {
		log.Printf("[评分] 刷新电影 %d 统计失败: %v", rating.MovieID, err)
	}
	h.Recommend.InvalidateUser(userID)

	utils.Success(c, gin.H{"rating_id": ratingID, "rating": req.Rating})
}

// DeleteRating 删除评分
func (h *Handler) DeleteRating(c *gin.Context) {
	userID := middleware.GetUserID(c)
	ratingID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "评分 ID 非法")
		return
	}

	rating, err := h.Repos.Rating.FindByID(ratingID)
	if err != nil {
		utils.InternalServerError(c, "")
		return
	}
	if rating == nil || rating.UserID != userID {
		utils.NotFound(c, "评分不存在")
		return
	}

	if err := h.Repos.Rating.Delete(ratingID); err != nil {
		utils.InternalServerError(c, "删除评分失败")
		return
	}

	if err := h.Repos.Movie.UpdateStats(rating.MovieID); err != nil {
		log.Printf("[评分] 刷新电影 %d 统计失败: %v", rating.MovieID, err)
	}
	h.Recommend.InvalidateUser(userID)

	utils.Success(c, gin.H{"deleted": true})
}

// UserRatings 分页获取用户评分历史
func (h *Handler) UserRatings(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		utils.BadRequest(c, "用户 ID 非法")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	ratings, total, err := h.Repos.Rating.ListByUser(userID, page, limit)
	if err != nil {
		utils.InternalServerError(c, "获取评分历史失败")
		return
	}

	utils.Success(c, gin.H{
		"ratings": ratings,
		"total":   total,
		"page":    page,
	})
}
