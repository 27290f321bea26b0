package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/user/movierec/internal/utils"
)

// ListMovies 分页获取电影列表，支持标题搜索和类型筛选
func (h *Handler) ListMovies(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	search := c.Query("search")
	genre := c.Query("genre")

	movies, total, err := h.Repos.Movie.List(page, limit, search, genre)
	if err != nil {
		utils.InternalServerError(c, "获取电影列表失败")
		return
	}

	utils.Success(c, gin.H{
		"movies": movies,
		"total":  total,
		"page":   page,
		"limit":  limit,
	})
}

// GetMovie 获取电影详情
func (h *Handler) GetMovie(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "电影 ID 非法")
		return
	}

	movie, err := h.Repos.Movie.FindByID(id)
	if err != nil {
		utils.InternalServerError(c, "")
		return
	}
	if movie == nil {
		utils.NotFound(c, "电影不存在")
		return
	}

	utils.Success(c, movie)
}
