package service

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/user/movierec/internal/config"
	"github.com/user/movierec/internal/model"
	"github.com/user/movierec/internal/repository"
	"golang.org/x/sync/singleflight"
)

const (
	tmdbBaseURL      = "https://api.themoviedb.org/3"
	tmdbImageBaseURL = "https://image.tmdb.org/t/p/w500"
)

// yearSuffix 形如 "Toy Story (1995)" 的标题年份后缀
var yearSuffix = regexp.MustCompile(`\s*\((\d{4})\)\s*$`)

type TMDBService struct {
	movieRepo *repository.MovieRepository
	config    *config.Config
	client    *http.Client
	group     singleflight.Group
}

func NewTMDBService(repo *repository.MovieRepository, cfg *config.Config) *TMDBService {
	return &TMDBService{
		movieRepo: repo,
		config:    cfg,
		client:    &http.Client{Timeout: 5 * time.Second},
	}
}

type tmdbSearchResponse struct {
	Results []struct {
		PosterPath  string  `json:"poster_path"`
		Overview    string  `json:"overview"`
		VoteAverage float64 `json:"vote_average"`
	} `json:"results"`
}

// SearchPoster 按标题搜索 TMDB 海报地址。
// 标题里的年份后缀（如 "Heat (1995)"）会拆出来作为检索条件。
func (s *TMDBService) SearchPoster(title string) (string, error) {
	if s.config.TMDBAPIKey == "" {
		return "", fmt.Errorf("未配置 TMDB_API_KEY")
	}

	// 使用 singleflight 避免并发重复请求同一标题
	val, err, _ := s.group.Do(title, func() (interface{}, error) {
		return s.searchPosterInternal(title)
	})
	if err != nil {
		return "", err
	}
	return val.(string), nil
}

func (s *TMDBService) searchPosterInternal(title string) (string, error) {
	year := ""
	if m := yearSuffix.FindStringSubmatch(title); m != nil {
		year = m[1]
		title = strings.TrimSpace(yearSuffix.ReplaceAllString(title, ""))
	}

	params := url.Values{}
	params.Set("api_key", s.config.TMDBAPIKey)
	params.Set("query", title)
	if year != "" {
		params.Set("year", year)
	}

	resp, err := s.client.Get(tmdbBaseURL + "/search/movie?" + params.Encode())
	if err != nil {
		return "", fmt.Errorf("请求 TMDB 失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("TMDB 返回状态 %d", resp.StatusCode)
	}

	var result tmdbSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("解析 TMDB 响应失败: %w", err)
	}

	if len(result.Results) == 0 || result.Results[0].PosterPath == "" {
		return "", nil
	}
	return tmdbImageBaseURL + result.Results[0].PosterPath, nil
}

// BackfillPoster 为缺图电影回填海报，找不到时保持原样
func (s *TMDBService) BackfillPoster(movie *model.Movie) error {
	posterURL, err := s.SearchPoster(movie.Title)
	if err != nil {
		return err
	}
	if posterURL == "" {
		log.Printf("[TMDB] 未找到海报: %s", movie.Title)
		return nil
	}
	return s.movieRepo.UpdateImageURL(movie.MovieID, posterURL)
}
