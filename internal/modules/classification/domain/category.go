package domain

import "fmt"

const (
	// DefaultMaxResults 返却するカテゴリの最大数
	DefaultMaxResults = 3
	// DefaultScoreThreshold これ未満のスコアはエンジン側で除外される
	DefaultScoreThreshold float32 = 0.1
)

// ClassifierOptions 分類器の固定設定
type ClassifierOptions struct {
	MaxResults     int
	ScoreThreshold float32
}

// DefaultClassifierOptions 固定設定を返す
func DefaultClassifierOptions() ClassifierOptions {
	return ClassifierOptions{
		MaxResults:     DefaultMaxResults,
		ScoreThreshold: DefaultScoreThreshold,
	}
}

// Category ラベルと確信度の組
type Category struct {
	Index int
	Label string
	Score float32
}

// Classifications 出力ヘッドごとのカテゴリ群
type Classifications struct {
	HeadIndex  int
	Categories []Category
}

// HighestCategory 最大スコアのカテゴリを返す（同点は先勝ち）
func HighestCategory(categories []Category) (Category, bool) {
	if len(categories) == 0 {
		return Category{}, false
	}

	best := categories[0]
	for _, c := range categories[1:] {
		if c.Score > best.Score {
			best = c
		}
	}
	return best, true
}

// FormatDisplayResult 結果画面に表示する文字列を作成
func FormatDisplayResult(c Category) string {
	return fmt.Sprintf("%s: %.2f%%", c.Label, float64(c.Score)*100)
}
