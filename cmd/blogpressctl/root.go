package main

import (
	"os"
	"strings"
	"time"

	"github.com/nao1215/blogpress/pkg/bus"
	"github.com/nao1215/blogpress/pkg/logging"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// app はサブコマンド間で共有する設定。
type app struct {
	// brokers はKafkaブローカーのアドレス一覧。
	brokers []string
	// timeout は送信1回あたりのタイムアウト。
	timeout time.Duration
	// logLevel はログレベル。
	logLevel string
	// dialBus はシグナル送信に使うバスを生成する。テストで差し替える。
	dialBus func(brokers []string, timeout time.Duration, logger logrus.FieldLogger) (bus.Publisher, error)
}

func newApp() *app {
	return &app{
		dialBus: func(brokers []string, timeout time.Duration, logger logrus.FieldLogger) (bus.Publisher, error) {
			return bus.NewKafkaPublisher(brokers, "blogpressctl", timeout, logger)
		},
	}
}

func (a *app) logger() *logrus.Entry {
	return logging.New("blogpressctl", logging.Options{Level: a.logLevel})
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "blogpressctl",
		Short:         "BlogPressの通知パイプラインを操作する",
		Long:          "new-content / engagement-milestones チャネルへのシグナル送信と、件数がマイルストーンかどうかの判定を行う。",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultBrokers := []string{"localhost:9092"}
	if env := os.Getenv("KAFKA_BROKERS"); env != "" {
		defaultBrokers = strings.Split(env, ",")
	}
	cmd.PersistentFlags().StringSliceVar(&a.brokers, "brokers", defaultBrokers, "Kafkaブローカーのアドレス（カンマ区切り）")
	cmd.PersistentFlags().DurationVar(&a.timeout, "timeout", 5*time.Second, "送信のタイムアウト")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "ログレベル（debug, info, warn, error）")

	cmd.AddCommand(newPublishCmd(a))
	cmd.AddCommand(newMilestoneCmd())
	return cmd
}
