// Package config は環境変数から各サービスの設定を読み込む。
//
// .env / .env.dev が存在すれば先に読み込み、その後envconfigで構造体に展開する。
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

// envFiles は起動時に読み込むローカル環境ファイル。後のファイルが優先される。
var envFiles = []string{".env", ".env.dev"}

// LoadEnvFiles はローカルの環境ファイルをプロセス環境に読み込み、読み込めたファイルを返す。
// ファイルが存在しない場合は何もしない。書式が不正なファイルはloggerに警告を出して読み飛ばす。
func LoadEnvFiles(logger logrus.FieldLogger) []string {
	loaded := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Overload(file); err != nil {
			logger.WithError(err).Warnf("%s の読み込みに失敗", file)
			continue
		}
		loaded = append(loaded, file)
	}
	if len(loaded) > 0 {
		logger.Debugf("環境ファイルを読み込みました: %s", strings.Join(loaded, ", "))
	}
	return loaded
}

// Load は環境変数をdstに展開する。dstはenvconfigタグ付き構造体へのポインタ。
func Load(dst any) error {
	if err := envconfig.Process("", dst); err != nil {
		return fmt.Errorf("設定の読み込みに失敗: %w", err)
	}
	return nil
}
