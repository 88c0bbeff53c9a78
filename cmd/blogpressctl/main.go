// blogpressctl はメッセージバスへのシグナル送信とマイルストーン判定を手動で行う運用CLI。
package main

import (
	"fmt"
	"os"

	"github.com/nao1215/blogpress/pkg/config"
	"github.com/nao1215/blogpress/pkg/logging"
)

func main() {
	config.LoadEnvFiles(logging.New("blogpressctl", logging.Options{Level: "warn"}))
	if err := newRootCmd(newApp()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
