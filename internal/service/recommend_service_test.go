package service

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/user/movierec/internal/mf"
	"github.com/user/movierec/internal/model"
	"github.com/user/movierec/internal/utils"
)

func TestMain(m *testing.M) {
	utils.InitCache()
	os.Exit(m.Run())
}

// fakeMovies 内存版候选源
type fakeMovies struct {
	unrated    []model.Movie
	popular    []model.Movie
	unratedErr error
	embeddings map[int][]float64
}

func (f *fakeMovies) UnratedWithImage(userID int) ([]model.Movie, error) {
	return f.unrated, f.unratedErr
}

func (f *fakeMovies) FindByIDs(ids []int) ([]model.Movie, error) {
	byID := make(map[int]model.Movie)
	for _, m := range f.unrated {
		byID[m.MovieID] = m
	}
	for _, m := range f.popular {
		byID[m.MovieID] = m
	}
	var out []model.Movie
	for _, id := range ids {
		if m, ok := byID[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMovies) PopularMovies(n, minRatings int) ([]model.Movie, error) {
	out := make([]model.Movie, 0, n)
	for _, m := range f.popular {
		if m.RatingCount >= minRatings && len(out) < n {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMovies) SyncEmbedding(movieID int, vec []float64) error {
	if f.embeddings == nil {
		f.embeddings = make(map[int][]float64)
	}
	f.embeddings[movieID] = vec
	return nil
}

// fakeRatings 内存版评分历史
type fakeRatings struct {
	recent []model.RecentRating
	err    error
}

func (f *fakeRatings) RecentHighRatings(userID int, minValue float64, limit int) ([]model.RecentRating, error) {
	return f.recent, f.err
}

// writeArtifact 写出一个偏置可控的测试工件：
// 向量全零，原始预测 = global_bias + item_bias
func writeArtifact(t *testing.T, global float64, users []int, items map[int]float64) string {
	t.Helper()

	a := &mf.Artifact{
		Version:    mf.ArtifactVersion,
		Factors:    2,
		GlobalBias: global,
		UserIndex:  map[int]int{},
		ItemIndex:  map[int]int{},
	}
	for i, id := range users {
		a.UserIndex[id] = i
		a.UserIDs = append(a.UserIDs, id)
		a.UserBias = append(a.UserBias, 0)
		a.UserFactors = append(a.UserFactors, []float64{0, 0})
	}
	i := 0
	for id, bias := range items {
		a.ItemIndex[id] = i
		a.ItemIDs = append(a.ItemIDs, id)
		a.ItemBias = append(a.ItemBias, bias)
		a.ItemFactors = append(a.ItemFactors, []float64{0, 0})
		i++
	}

	path := filepath.Join(t.TempDir(), "model.json")
	if err := a.Save(path); err != nil {
		t.Fatalf("写测试工件失败: %v", err)
	}
	return path
}

func movie(id int, genres ...string) model.Movie {
	return model.Movie{MovieID: id, Genres: genres, ImageURL: "http://img/" + string(rune('a'+id%26)) + ".jpg"}
}

func TestRecommendGenreBoost(t *testing.T) {
	// 最近高分: Action x2, Drama x1 → {Action: 0.4, Drama: 0.2}
	ratings := &fakeRatings{recent: []model.RecentRating{
		{Genres: []string{"Action"}, Rating: 5},
		{Genres: []string{"Action"}, Rating: 4},
		{Genres: []string{"Drama"}, Rating: 5},
	}}
	movies := &fakeMovies{unrated: []model.Movie{
		movie(101, "Action"),
		movie(102, "Comedy"),
	}}
	path := writeArtifact(t, 3.0, []int{1}, map[int]float64{101: 0, 102: 0})
	svc := NewRecommendService(movies, ratings, path)

	recs, err := svc.Recommend(1, 10)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("Recommend() len = %d, want 2", len(recs))
	}

	// Action 候选: 3.0 + 0.4 = 3.4，排第一; Comedy 候选: 3.0
	if recs[0].MovieID != 101 || math.Abs(recs[0].PredictedRating-3.4) > 1e-9 {
		t.Errorf("recs[0] = %d/%f, want 101/3.4", recs[0].MovieID, recs[0].PredictedRating)
	}
	if recs[1].MovieID != 102 || math.Abs(recs[1].PredictedRating-3.0) > 1e-9 {
		t.Errorf("recs[1] = %d/%f, want 102/3.0", recs[1].MovieID, recs[1].PredictedRating)
	}
}

func TestRecommendScoreCap(t *testing.T) {
	// 原始预测 4.9 + 加权 0.5 → 封顶 5.0 而不是 5.4
	ratings := &fakeRatings{recent: []model.RecentRating{
		{Genres: []string{"Action"}, Rating: 5},
		{Genres: []string{"Action", "Thriller"}, Rating: 4.5},
		{Genres: []string{"Thriller"}, Rating: 4},
	}}
	movies := &fakeMovies{unrated: []model.Movie{movie(101, "Action", "Thriller")}}
	path := writeArtifact(t, 4.9, []int{2}, map[int]float64{101: 0})
	svc := NewRecommendService(movies, ratings, path)

	recs, err := svc.Recommend(2, 10)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(recs) != 1 || recs[0].PredictedRating != 5.0 {
		t.Fatalf("Recommend() = %+v, want 单条且 predicted 5.0", recs)
	}
}

func TestRecommendNoRecentHistory(t *testing.T) {
	// 没有高分历史: 最终分 == 原始预测（退化为纯隐因子）
	movies := &fakeMovies{unrated: []model.Movie{movie(101, "Action"), movie(102, "Drama")}}
	path := writeArtifact(t, 3.7, []int{3}, map[int]float64{101: 0, 102: 0})
	svc := NewRecommendService(movies, &fakeRatings{}, path)

	recs, err := svc.Recommend(3, 10)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	for _, r := range recs {
		if math.Abs(r.PredictedRating-3.7) > 1e-9 {
			t.Errorf("电影 %d predicted = %f, want 3.7", r.MovieID, r.PredictedRating)
		}
	}
}

func TestRecommendColdStartUser(t *testing.T) {
	// 用户不在训练集: 空结果（降级信号），不是错误
	movies := &fakeMovies{unrated: []model.Movie{movie(101, "Action")}}
	path := writeArtifact(t, 3.0, []int{1}, map[int]float64{101: 0})
	svc := NewRecommendService(movies, &fakeRatings{}, path)

	recs, err := svc.Recommend(999, 10)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("Recommend(冷启动用户) = %v, want 空", recs)
	}
}

func TestRecommendColdStartItemSkipped(t *testing.T) {
	// 候选 102 不在训练集: 跳过该电影，其余正常
	movies := &fakeMovies{unrated: []model.Movie{movie(101, "Action"), movie(102, "Drama")}}
	path := writeArtifact(t, 3.0, []int{4}, map[int]float64{101: 0})
	svc := NewRecommendService(movies, &fakeRatings{}, path)

	recs, err := svc.Recommend(4, 10)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(recs) != 1 || recs[0].MovieID != 101 {
		t.Errorf("Recommend() = %+v, want 仅 101", recs)
	}
}

func TestRecommendEmptyCandidates(t *testing.T) {
	// 用户评完了所有电影: 空结果，降级信号
	path := writeArtifact(t, 3.0, []int{5}, map[int]float64{101: 0})
	svc := NewRecommendService(&fakeMovies{}, &fakeRatings{}, path)

	recs, err := svc.Recommend(5, 10)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("Recommend(无候选) = %v, want 空", recs)
	}
}

func TestRecommendUpstreamFailure(t *testing.T) {
	// 候选源读取失败: 错误向上传递，不降级不重试
	movies := &fakeMovies{unratedErr: errors.New("db down")}
	path := writeArtifact(t, 3.0, []int{6}, map[int]float64{101: 0})
	svc := NewRecommendService(movies, &fakeRatings{}, path)

	if _, err := svc.Recommend(6, 10); err == nil {
		t.Error("Recommend() error = nil, want 上游错误")
	}
}

func TestRecommendTruncateAndOrder(t *testing.T) {
	movies := &fakeMovies{unrated: []model.Movie{
		movie(101, "Action"), // 3.0
		movie(102, "Drama"),  // 3.8
		movie(103, "Comedy"), // 3.3
	}}
	path := writeArtifact(t, 3.0, []int{7}, map[int]float64{101: 0, 102: 0.8, 103: 0.3})
	svc := NewRecommendService(movies, &fakeRatings{}, path)

	recs, err := svc.Recommend(7, 2)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(recs) != 2 || recs[0].MovieID != 102 || recs[1].MovieID != 103 {
		t.Errorf("Recommend(n=2) = %+v, want [102 103]", recs)
	}
}

func TestRecommendModelUnavailable(t *testing.T) {
	// 模型加载失败: 个性化永不就绪，返回空交给上层降级；热门榜不受影响
	movies := &fakeMovies{
		unrated: []model.Movie{movie(101, "Action")},
		popular: []model.Movie{{MovieID: 200, AvgRating: 4.5, RatingCount: 100, ImageURL: "x"}},
	}
	svc := NewRecommendService(movies, &fakeRatings{}, "/no/such/model.json")

	if svc.Ready() {
		t.Error("Ready() = true, want false")
	}

	recs, err := svc.Recommend(8, 10)
	if err != nil || len(recs) != 0 {
		t.Errorf("Recommend() = %v/%v, want 空/nil", recs, err)
	}

	popular, err := svc.Popular(10, 50)
	if err != nil || len(popular) != 1 {
		t.Errorf("Popular() = %v/%v, want 1 条", popular, err)
	}
}

func TestModelLoadedOnceUnderConcurrentRecommends(t *testing.T) {
	users := make([]int, 16)
	for i := range users {
		users[i] = 500 + i
	}
	movies := &fakeMovies{unrated: []model.Movie{movie(101, "Action")}}
	path := writeArtifact(t, 3.0, users, map[int]float64{101: 0})
	svc := NewRecommendService(movies, &fakeRatings{}, path)

	// 并发首次访问，全部撞上同一次懒加载
	start := make(chan struct{})
	artifacts := make([]*mf.Artifact, len(users))
	var wg sync.WaitGroup
	for i, userID := range users {
		wg.Add(1)
		go func(i, userID int) {
			defer wg.Done()
			<-start
			recs, err := svc.Recommend(userID, 10)
			if err != nil || len(recs) != 1 {
				t.Errorf("Recommend(%d) = %v/%v, want 1 条/nil", userID, recs, err)
			}
			artifacts[i], _ = svc.Model()
		}(i, userID)
	}
	close(start)
	wg.Wait()

	first, err := svc.Model()
	if err != nil {
		t.Fatalf("Model() error = %v", err)
	}
	for i, a := range artifacts {
		if a != first {
			t.Errorf("goroutine %d 拿到了不同的工件实例", i)
		}
	}

	// 删除工件文件后仍然可用：证明不会二次加载
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	again, err := svc.Model()
	if err != nil || again != first {
		t.Errorf("文件删除后 Model() = %p/%v, want 复用 %p/nil", again, err, first)
	}
}

func TestSimilar(t *testing.T) {
	noImage := model.Movie{MovieID: 103, Genres: []string{"Drama"}}
	movies := &fakeMovies{unrated: []model.Movie{movie(101, "Action"), movie(102, "Action"), noImage}}

	a := &mf.Artifact{
		Version:     mf.ArtifactVersion,
		Factors:     2,
		UserIndex:   map[int]int{1: 0},
		UserIDs:     []int{1},
		UserBias:    []float64{0},
		UserFactors: [][]float64{{0, 0}},
		ItemIndex:   map[int]int{101: 0, 102: 1, 103: 2},
		ItemIDs:     []int{101, 102, 103},
		ItemBias:    []float64{0, 0, 0},
		ItemFactors: [][]float64{
			{1, 0},
			{0.9, 0.1},
			{1, 0.05},
		},
	}
	path := filepath.Join(t.TempDir(), "model.json")
	if err := a.Save(path); err != nil {
		t.Fatal(err)
	}
	svc := NewRecommendService(movies, &fakeRatings{}, path)

	similar, err := svc.Similar(101, 5)
	if err != nil {
		t.Fatalf("Similar() error = %v", err)
	}

	// 无图的 103 被过滤，查询电影本身不出现
	if len(similar) != 1 || similar[0].MovieID != 102 {
		t.Fatalf("Similar(101) = %+v, want 仅 102", similar)
	}
	if similar[0].Similarity <= 0.9 {
		t.Errorf("Similarity = %f, want > 0.9", similar[0].Similarity)
	}
}

func TestSimilarColdStartItem(t *testing.T) {
	movies := &fakeMovies{unrated: []model.Movie{movie(101, "Action")}}
	path := writeArtifact(t, 3.0, []int{1}, map[int]float64{101: 0})
	svc := NewRecommendService(movies, &fakeRatings{}, path)

	similar, err := svc.Similar(999, 5)
	if err != nil {
		t.Fatalf("Similar() error = %v", err)
	}
	if len(similar) != 0 {
		t.Errorf("Similar(未训练电影) = %v, want 空", similar)
	}
}

func TestBuildGenreBoost(t *testing.T) {
	ratings := &fakeRatings{recent: []model.RecentRating{
		{Genres: []string{"Action"}, Rating: 5},
		{Genres: []string{"Action"}, Rating: 4},
		{Genres: []string{"Drama"}, Rating: 5},
	}}
	svc := NewRecommendService(&fakeMovies{}, ratings, "unused")

	boost, err := svc.buildGenreBoost(1)
	if err != nil {
		t.Fatalf("buildGenreBoost() error = %v", err)
	}
	if math.Abs(boost["Action"]-0.4) > 1e-9 || math.Abs(boost["Drama"]-0.2) > 1e-9 {
		t.Errorf("boost = %v, want {Action:0.4 Drama:0.2}", boost)
	}
	if _, ok := boost["Comedy"]; ok {
		t.Error("boost 不应包含未出现的类型")
	}
}

func TestSyncEmbeddings(t *testing.T) {
	movies := &fakeMovies{}
	path := writeArtifact(t, 3.0, []int{1}, map[int]float64{101: 0, 102: 0})
	svc := NewRecommendService(movies, &fakeRatings{}, path)

	synced, err := svc.SyncEmbeddings()
	if err != nil {
		t.Fatalf("SyncEmbeddings() error = %v", err)
	}
	if synced != 2 || len(movies.embeddings) != 2 {
		t.Errorf("SyncEmbeddings() = %d, want 2", synced)
	}
}
