// MovieLens 100k 数据导入工具。
//
// 用法:
//
//	go run ./cmd/importer -data data/ml-100k [-posters]
//
// 读取 u.item / u.data / u.user 写入数据库，重算评分统计，
// 可选通过 TMDB 并发回填缺失海报。
package main

import (
	"bufio"
	"flag"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/user/movierec/internal/config"
	"github.com/user/movierec/internal/model"
	"github.com/user/movierec/internal/repository"
	"github.com/user/movierec/internal/service"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// movieLens 的 19 个类型标志位，顺序与 u.item 列一致
var genreColumns = []string{
	"unknown", "Action", "Adventure", "Animation", "Children", "Comedy",
	"Crime", "Documentary", "Drama", "Fantasy", "Film-Noir", "Horror",
	"Musical", "Mystery", "Romance", "Sci-Fi", "Thriller", "War", "Western",
}

func main() {
	dataDir := flag.String("data", "data/ml-100k", "MovieLens 数据目录")
	posters := flag.Bool("posters", false, "导入后通过 TMDB 回填缺失海报")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("未找到 .env 文件，使用系统环境变量")
	}
	cfg := config.Load()

	db, err := repository.InitDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}
	repos := repository.NewRepositories(db)

	start := time.Now()

	movies, err := importMovies(repos.Movie, filepath.Join(*dataDir, "u.item"))
	if err != nil {
		log.Fatalf("导入电影失败: %v", err)
	}
	log.Printf("[导入] 电影 %d 部", movies)

	ratings, err := importRatings(repos, filepath.Join(*dataDir, "u.data"))
	if err != nil {
		log.Fatalf("导入评分失败: %v", err)
	}
	log.Printf("[导入] 评分 %d 条", ratings)

	users, err := importUsers(repos, filepath.Join(*dataDir, "u.user"))
	if err != nil {
		log.Fatalf("导入用户失败: %v", err)
	}
	log.Printf("[导入] 用户 %d 个", users)

	if err := repos.Movie.RecomputeAllStats(); err != nil {
		log.Fatalf("重算评分统计失败: %v", err)
	}
	log.Println("[导入] 评分统计已重算")

	if *posters {
		if err := backfillPosters(repos.Movie, cfg); err != nil {
			log.Fatalf("回填海报失败: %v", err)
		}
	}

	log.Printf("[导入] 完成，耗时 %v", time.Since(start))
}

// latin1Scanner 逐行读取 MovieLens 文件。数据集是 latin-1 编码，
// 带重音的标题（如 "Cérémonie, La"）必须转码成 UTF-8 才能写入数据库。
func latin1Scanner(r io.Reader) *bufio.Scanner {
	return bufio.NewScanner(transform.NewReader(r, charmap.ISO8859_1.NewDecoder()))
}

// importMovies 解析 u.item（movie_id|title|release_date|...|19个类型标志位）
func importMovies(repo *repository.MovieRepository, path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	movies, err := parseMovies(file)
	if err != nil {
		return 0, err
	}

	count := 0
	for i := range movies {
		if err := repo.Upsert(&movies[i]); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func parseMovies(r io.Reader) ([]model.Movie, error) {
	var movies []model.Movie
	scanner := latin1Scanner(r)
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "|")
		if len(fields) < 5+len(genreColumns) {
			continue
		}

		movieID, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}

		var genres []string
		for i, name := range genreColumns {
			if fields[5+i] == "1" && name != "unknown" {
				genres = append(genres, name)
			}
		}

		movies = append(movies, model.Movie{
			MovieID:     movieID,
			Title:       fields[1],
			ReleaseDate: fields[2],
			Genres:      genres,
		})
	}
	return movies, scanner.Err()
}

// importRatings 解析 u.data（user_id \t movie_id \t rating \t timestamp）
func importRatings(repos *repository.Repositories, path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	// 全量导入前清空旧评分
	if err := repos.DB.Exec("DELETE FROM ratings").Error; err != nil {
		return 0, err
	}

	batch := make([]model.Rating, 0, 1000)
	count := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 4 {
			continue
		}
		userID, _ := strconv.Atoi(fields[0])
		movieID, _ := strconv.Atoi(fields[1])
		value, _ := strconv.ParseFloat(fields[2], 64)
		ts, _ := strconv.ParseInt(fields[3], 10, 64)

		batch = append(batch, model.Rating{
			UserID:    userID,
			MovieID:   movieID,
			Rating:    value,
			Timestamp: time.Unix(ts, 0),
		})
		if len(batch) == cap(batch) {
			if err := repos.DB.Create(&batch).Error; err != nil {
				return count, err
			}
			count += len(batch)
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := repos.DB.Create(&batch).Error; err != nil {
			return count, err
		}
		count += len(batch)
	}
	return count, scanner.Err()
}

// importUsers 解析 u.user（user_id|age|gender|occupation|zip_code），
// 生成默认账号 user{id} / pass123
func importUsers(repos *repository.Repositories, path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	// 所有导入用户共用同一个默认密码，哈希一次即可
	hash, err := bcrypt.GenerateFromPassword([]byte("pass123"), bcrypt.DefaultCost)
	if err != nil {
		return 0, err
	}

	count := 0
	scanner := latin1Scanner(file)
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "|")
		if len(fields) != 5 {
			continue
		}
		userID, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		age, _ := strconv.Atoi(fields[1])

		user := model.User{
			UserID:       userID,
			Username:     "user" + fields[0],
			Email:        "user" + fields[0] + "@example.com",
			PasswordHash: string(hash),
			Age:          &age,
			Gender:       fields[2],
			Occupation:   fields[3],
			ZipCode:      fields[4],
			CreatedAt:    time.Now(),
		}
		if err := repos.DB.Save(&user).Error; err != nil {
			return count, err
		}
		count++
	}
	return count, scanner.Err()
}

// backfillPosters 并发回填缺失海报，限制并发数避免触发 TMDB 限流
func backfillPosters(repo *repository.MovieRepository, cfg *config.Config) error {
	tmdb := service.NewTMDBService(repo, cfg)

	missing, err := repo.ListWithoutImage(5000)
	if err != nil {
		return err
	}
	log.Printf("[导入] 待回填海报 %d 部", len(missing))

	var g errgroup.Group
	g.SetLimit(8)
	for _, movie := range missing {
		movie := movie
		g.Go(func() error {
			if err := tmdb.BackfillPoster(&movie); err != nil {
				// 单部失败不中断整体回填
				log.Printf("[导入] 回填 %q 失败: %v", movie.Title, err)
			}
			return nil
		})
	}
	return g.Wait()
}
