package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config アプリケーション全体の設定
type Config struct {
	Classifier ClassifierConfig `yaml:"classifier"`
	Media      MediaConfig      `yaml:"media"`
	Redis      RedisConfig      `yaml:"redis"`
	MySQL      MySQLConfig      `yaml:"mysql"`
}

// ClassifierConfig 画像分類器の設定
//
// 最大結果数とスコア閾値はモデルと一緒に固定されているため設定項目にしない
type ClassifierConfig struct {
	Engine            string `yaml:"engine"` // tflite | onnx
	ModelPath         string `yaml:"model_path"`
	LabelsPath        string `yaml:"labels_path"`
	MetadataPath      string `yaml:"metadata_path"`
	SharedLibraryPath string `yaml:"shared_library_path"`
	NumThreads        int    `yaml:"num_threads"`
	CacheEngine       bool   `yaml:"cache_engine"`
}

// MediaConfig 画像メディアの設定
type MediaConfig struct {
	Root           string `yaml:"root"` // file:// 参照を許可するディレクトリ（空なら無効）
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

// RedisConfig Redisの設定
type RedisConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	SessionTTL int    `yaml:"session_ttl"` // 秒
}

// MySQLConfig MySQLの設定
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// Load 設定ファイルを読み込む
func Load(configPath string) (*Config, error) {
	// 設定ファイルが存在しない場合はデフォルト設定を返す
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// 環境変数の展開
	dataStr := os.ExpandEnv(string(data))

	// 省略された項目はデフォルト値のまま
	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(dataStr), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// DefaultConfig デフォルト設定を返す
func DefaultConfig() *Config {
	// Redis/MySQLのホストはテスト環境では localhost を使用
	redisHost := "redis"
	mysqlHost := "mysql"
	if os.Getenv("GO_ENV") == "test" {
		redisHost = "localhost"
		mysqlHost = "localhost"
	}

	return &Config{
		Classifier: ClassifierConfig{
			Engine:            "tflite",
			ModelPath:         "models/cancer_classification.tflite",
			LabelsPath:        "models/labels.txt",
			SharedLibraryPath: os.Getenv("ONNXRUNTIME_LIB"),
			NumThreads:        2,
			CacheEngine:       true,
		},
		Media: MediaConfig{
			Root:           "",
			MaxUploadBytes: 10 << 20,
		},
		Redis: RedisConfig{
			Host:       redisHost,
			Port:       6379,
			Password:   "",
			DB:         0,
			SessionTTL: 24 * 60 * 60,
		},
		MySQL: MySQLConfig{
			Host:     mysqlHost,
			Port:     3306,
			User:     "root",
			Password: os.Getenv("MYSQL_ROOT_PASSWORD"),
			Database: "asclepius",
		},
	}
}

// Save 設定をファイルに保存する
func (c *Config) Save(configPath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
