package mf

import (
	"math"
	"sort"
)

// ItemSimilarity 相似电影及其余弦相似度
type ItemSimilarity struct {
	MovieID    int     `json:"movie_id"`
	Similarity float64 `json:"similarity"`
}

// Cosine 计算两个向量的余弦相似度。
// 任一向量模长为零时相似度无定义，返回 ok=false。
func Cosine(a, b []float64) (float64, bool) {
	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}
	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB)), true
}

// SimilarItems 在隐空间中查找与指定电影最相似的 n 部电影。
// 电影不在训练集中时返回空切片（对调用方不是错误）；
// 查询电影本身永远不会出现在结果里。
// 相似度相同的电影保持训练集行序（未定义二级排序键）。
func (a *Artifact) SimilarItems(movieID, n int) []ItemSimilarity {
	idx, ok := a.ItemIndex[movieID]
	if !ok {
		return nil
	}

	vec := a.ItemFactors[idx]
	results := make([]ItemSimilarity, 0, len(a.ItemFactors))
	for i, other := range a.ItemFactors {
		if i == idx {
			continue
		}
		sim, ok := Cosine(vec, other)
		if !ok {
			continue
		}
		results = append(results, ItemSimilarity{
			MovieID:    a.ItemIDs[i],
			Similarity: sim,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	if len(results) > n {
		results = results[:n]
	}
	return results
}
