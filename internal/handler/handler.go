package handler

import (
	"github.com/user/movierec/internal/config"
	"github.com/user/movierec/internal/repository"
	"github.com/user/movierec/internal/service"
)

// Handler HTTP 处理器
type Handler struct {
	Repos     *repository.Repositories
	Config    *config.Config
	Recommend *service.RecommendService
	TMDB      *service.TMDBService
}

// NewHandler 创建处理器
func NewHandler(repos *repository.Repositories, cfg *config.Config) *Handler {
	// 推荐服务（模型工件懒加载，启动时由 main 预热）
	recommend := service.NewRecommendService(repos.Movie, repos.Rating, cfg.ModelPath)

	// TMDB 海报服务
	tmdb := service.NewTMDBService(repos.Movie, cfg)

	return &Handler{
		Repos:     repos,
		Config:    cfg,
		Recommend: recommend,
		TMDB:      tmdb,
	}
}
