package mf

import (
	"math"
	"testing"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name   string
		a, b   []float64
		want   float64
		wantOK bool
	}{
		{"same direction", []float64{1, 0}, []float64{2, 0}, 1.0, true},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0.0, true},
		{"opposite", []float64{1, 1}, []float64{-1, -1}, -1.0, true},
		{"zero norm left", []float64{0, 0}, []float64{1, 0}, 0, false},
		{"zero norm right", []float64{1, 0}, []float64{0, 0}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Cosine(tt.a, tt.b)
			if ok != tt.wantOK {
				t.Fatalf("Cosine() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Cosine() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestCosineSymmetric(t *testing.T) {
	a := []float64{0.3, -1.2, 0.7, 2.1}
	b := []float64{-0.5, 0.9, 1.4, 0.2}

	ab, _ := Cosine(a, b)
	ba, _ := Cosine(b, a)
	if math.Abs(ab-ba) > 1e-12 {
		t.Errorf("Cosine 不对称: %f vs %f", ab, ba)
	}
}

func TestSimilarItems(t *testing.T) {
	a := testArtifact()

	got := a.SimilarItems(200, 5)

	// 查询电影本身不能出现在结果里
	for _, s := range got {
		if s.MovieID == 200 {
			t.Errorf("SimilarItems(200) 包含了查询电影本身")
		}
	}

	// 相似度降序
	for i := 1; i < len(got); i++ {
		if got[i].Similarity > got[i-1].Similarity {
			t.Errorf("SimilarItems() 未按相似度降序: %v", got)
		}
	}

	// 向量 (0.4, 0.2) 与 (1, 0) 的夹角小于 (0, 1) 与 (1, 0)
	if len(got) != 2 || got[0].MovieID != 100 {
		t.Errorf("SimilarItems(200) = %v, want 100 在前", got)
	}
}

func TestSimilarItemsColdStart(t *testing.T) {
	a := testArtifact()
	if got := a.SimilarItems(999, 5); len(got) != 0 {
		t.Errorf("SimilarItems(未训练电影) = %v, want 空", got)
	}
}

func TestSimilarItemsTruncate(t *testing.T) {
	a := testArtifact()
	if got := a.SimilarItems(100, 1); len(got) != 1 {
		t.Errorf("SimilarItems(n=1) 返回 %d 条", len(got))
	}
}

func TestSimilarItemsZeroNormExcluded(t *testing.T) {
	a := testArtifact()
	// 把 300 的向量置零，相似度无定义，必须被排除
	a.ItemFactors[2] = []float64{0, 0}

	got := a.SimilarItems(100, 5)
	for _, s := range got {
		if s.MovieID == 300 {
			t.Errorf("SimilarItems() 包含了零模长向量的电影")
		}
	}
}
