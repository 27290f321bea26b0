package router

import (
	"github.com/gin-gonic/gin"
	"github.com/user/movierec/internal/handler"
	"github.com/user/movierec/internal/middleware"
)

// RegisterRoutes 注册所有路由
func RegisterRoutes(r *gin.Engine, h *handler.Handler) {
	// 健康检查
	r.GET("/health", h.Health)

	v1 := r.Group("/api/v1")

	// ==================== 认证 ====================
	auth := v1.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.GET("/me", middleware.RequireAuth(h.Config.AppSecret), h.Me)
	}

	// ==================== 电影目录 ====================
	movies := v1.Group("/movies")
	{
		movies.GET("", h.ListMovies)
		movies.GET("/popular/list", h.PopularMovies)
		movies.GET("/:id", h.GetMovie)
	}

	// ==================== 评分（需要登录）====================
	ratings := v1.Group("/ratings")
	ratings.Use(middleware.RequireAuth(h.Config.AppSecret))
	{
		ratings.POST("", h.CreateRating)
		ratings.PUT("/:id", h.UpdateRating)
		ratings.DELETE("/:id", h.DeleteRating)
	}
	v1.GET("/ratings/user/:user_id", h.UserRatings)

	// ==================== 推荐 ====================
	rec := v1.Group("/recommendations")
	{
		rec.GET("/:user_id", h.Recommendations)
		rec.GET("/similar/:movie_id", h.SimilarMovies)
	}

	// ==================== 管理 ====================
	admin := v1.Group("/admin")
	admin.Use(middleware.RequireAuth(h.Config.AppSecret))
	{
		admin.POST("/embeddings/sync", h.SyncEmbeddings)
	}
}
