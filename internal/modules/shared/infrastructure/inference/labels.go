package inference

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadLabels ラベルファイル（1行1ラベル）を読み込む。
// 空行は空ラベルとして残し、行番号を出力インデックスに揃える
func LoadLabels(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open labels: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	var labels []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		labels = append(labels, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read labels: %w", err)
	}

	// 末尾の空行はインデックスに影響しない
	for len(labels) > 0 && labels[len(labels)-1] == "" {
		labels = labels[:len(labels)-1]
	}

	return labels, nil
}
