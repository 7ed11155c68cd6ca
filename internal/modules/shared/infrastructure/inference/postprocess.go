package inference

import (
	"fmt"
	"math"
	"sort"

	"asclepius-app/internal/modules/classification/domain"
)

// topCategories スコア列をしきい値と最大件数で絞り込み、スコア降順で返す
func topCategories(scores []float32, labels []string, opts domain.ClassifierOptions) []domain.Category {
	categories := make([]domain.Category, 0, len(scores))
	for i, score := range scores {
		if score < opts.ScoreThreshold {
			continue
		}
		categories = append(categories, domain.Category{
			Index: i,
			Label: labelAt(labels, i),
			Score: score,
		})
	}

	sort.SliceStable(categories, func(a, b int) bool {
		return categories[a].Score > categories[b].Score
	})

	if opts.MaxResults > 0 && len(categories) > opts.MaxResults {
		categories = categories[:opts.MaxResults]
	}
	return categories
}

// labelAt ラベルがない出力はインデックスを名前にする
func labelAt(labels []string, i int) string {
	if i < len(labels) && labels[i] != "" {
		return labels[i]
	}
	return fmt.Sprintf("class_%d", i)
}

// dequantize uint8の量子化出力を実数に戻す
func dequantize(values []uint8, scale float64, zeroPoint int) []float32 {
	out := make([]float32, len(values))
	if scale == 0 {
		// 量子化パラメータがない場合は0-255を0-1に正規化
		for i, v := range values {
			out[i] = float32(v) / 255
		}
		return out
	}
	for i, v := range values {
		out[i] = float32(scale * float64(int(v)-zeroPoint))
	}
	return out
}

// softmax ロジットを確率に変換
func softmax(logits []float32) []float32 {
	if len(logits) == 0 {
		return []float32{}
	}

	maxLogit := logits[0]
	for _, v := range logits[1:] {
		if v > maxLogit {
			maxLogit = v
		}
	}

	out := make([]float32, len(logits))
	var sum float64
	for i, v := range logits {
		e := math.Exp(float64(v - maxLogit))
		out[i] = float32(e)
		sum += e
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / sum)
	}
	return out
}
