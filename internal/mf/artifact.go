package mf

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ArtifactVersion 当前模型工件格式版本
const ArtifactVersion = 1

var (
	// ErrLoad 模型工件加载失败（文件缺失/损坏/版本不符）
	ErrLoad = errors.New("mf: 模型工件加载失败")
	// ErrColdStartUser 用户不在训练集中
	ErrColdStartUser = errors.New("mf: 用户不在训练集中")
	// ErrColdStartItem 电影不在训练集中
	ErrColdStartItem = errors.New("mf: 电影不在训练集中")
)

// Artifact 离线训练产出的矩阵分解模型工件。
// 加载后只读，多个请求可以无锁并发读取。
type Artifact struct {
	Version int `json:"version"`

	// 训练超参数（仅用于复现和排查，打分不依赖）
	Factors        int     `json:"factors"`
	Epochs         int     `json:"epochs"`
	LearningRate   float64 `json:"learning_rate"`
	Regularization float64 `json:"regularization"`

	// 偏置项
	GlobalBias float64   `json:"global_bias"`
	UserBias   []float64 `json:"user_bias"`
	ItemBias   []float64 `json:"item_bias"`

	// 隐向量矩阵，每行对应一个稠密下标
	UserFactors [][]float64 `json:"user_factors"`
	ItemFactors [][]float64 `json:"item_factors"`

	// 原始 ID 与稠密下标的双向映射
	UserIndex map[int]int `json:"user_index"`
	ItemIndex map[int]int `json:"item_index"`
	UserIDs   []int       `json:"user_ids"`
	ItemIDs   []int       `json:"item_ids"`
}

// Load 从文件加载模型工件并校验。同一文件多次加载结果一致。
func Load(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: 读取 %s: %v", ErrLoad, path, err)
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: 解析 %s: %v", ErrLoad, path, err)
	}

	if err := a.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}

	return &a, nil
}

// Save 将模型工件写入文件（供导入工具和测试使用）
func (a *Artifact) Save(path string) error {
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// validate 校验版本、矩阵维度和 ID 映射的双射性
func (a *Artifact) validate() error {
	if a.Version != ArtifactVersion {
		return fmt.Errorf("不支持的工件版本 %d（期望 %d）", a.Version, ArtifactVersion)
	}
	if a.Factors <= 0 {
		return fmt.Errorf("隐因子维度非法: %d", a.Factors)
	}
	if len(a.UserFactors) != len(a.UserBias) || len(a.UserFactors) != len(a.UserIDs) {
		return fmt.Errorf("用户矩阵/偏置/ID 数量不一致: %d/%d/%d",
			len(a.UserFactors), len(a.UserBias), len(a.UserIDs))
	}
	if len(a.ItemFactors) != len(a.ItemBias) || len(a.ItemFactors) != len(a.ItemIDs) {
		return fmt.Errorf("电影矩阵/偏置/ID 数量不一致: %d/%d/%d",
			len(a.ItemFactors), len(a.ItemBias), len(a.ItemIDs))
	}
	for i, row := range a.UserFactors {
		if len(row) != a.Factors {
			return fmt.Errorf("用户向量 %d 维度 %d 与 factors %d 不符", i, len(row), a.Factors)
		}
	}
	for i, row := range a.ItemFactors {
		if len(row) != a.Factors {
			return fmt.Errorf("电影向量 %d 维度 %d 与 factors %d 不符", i, len(row), a.Factors)
		}
	}
	// 映射必须是双射：每个下标恰好对应一个原始 ID，反之亦然
	if len(a.UserIndex) != len(a.UserIDs) {
		return fmt.Errorf("用户 ID 映射数量 %d 与行数 %d 不符", len(a.UserIndex), len(a.UserIDs))
	}
	if len(a.ItemIndex) != len(a.ItemIDs) {
		return fmt.Errorf("电影 ID 映射数量 %d 与行数 %d 不符", len(a.ItemIndex), len(a.ItemIDs))
	}
	for rawID, idx := range a.UserIndex {
		if idx < 0 || idx >= len(a.UserIDs) || a.UserIDs[idx] != rawID {
			return fmt.Errorf("用户 ID %d 的映射下标 %d 非法", rawID, idx)
		}
	}
	for rawID, idx := range a.ItemIndex {
		if idx < 0 || idx >= len(a.ItemIDs) || a.ItemIDs[idx] != rawID {
			return fmt.Errorf("电影 ID %d 的映射下标 %d 非法", rawID, idx)
		}
	}
	return nil
}

// PredictScore 预测用户对电影的原始评分：
// global_bias + user_bias + item_bias + dot(U[u], V[i])。
// 此处不做截断，截断是打分层的职责。
func (a *Artifact) PredictScore(userID, movieID int) (float64, error) {
	u, ok := a.UserIndex[userID]
	if !ok {
		return 0, ErrColdStartUser
	}
	i, ok := a.ItemIndex[movieID]
	if !ok {
		return 0, ErrColdStartItem
	}

	score := a.GlobalBias + a.UserBias[u] + a.ItemBias[i] + dot(a.UserFactors[u], a.ItemFactors[i])
	return score, nil
}

// ItemVector 获取电影的隐向量
func (a *Artifact) ItemVector(movieID int) ([]float64, error) {
	i, ok := a.ItemIndex[movieID]
	if !ok {
		return nil, ErrColdStartItem
	}
	return a.ItemFactors[i], nil
}

// TrainedItemIDs 返回训练集中所有电影 ID（按稠密下标顺序）
func (a *Artifact) TrainedItemIDs() []int {
	ids := make([]int, len(a.ItemIDs))
	copy(ids, a.ItemIDs)
	return ids
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
