package main

import (
	"context"
	"fmt"

	"github.com/nao1215/blogpress/internal/publisher"
	"github.com/nao1215/blogpress/pkg/event"
	"github.com/spf13/cobra"
)

func newPublishCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "シグナルをメッセージバスに送信する",
	}
	cmd.AddCommand(newPublishNewContentCmd(a))
	cmd.AddCommand(newPublishMilestoneCmd(a))
	return cmd
}

func newPublishNewContentCmd(a *app) *cobra.Command {
	var s event.NewContentSignal

	cmd := &cobra.Command{
		Use:   "new-content",
		Short: "new-content チャネルに新着記事のシグナルを送信する",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.publish(cmd, s)
		},
	}
	cmd.Flags().StringVar(&s.BlogID, "blog-id", "", "記事ID")
	cmd.Flags().StringVar(&s.AuthorID, "author-id", "", "著者ID")
	cmd.Flags().StringVar(&s.BlogTitle, "title", "", "記事のタイトル")
	_ = cmd.MarkFlagRequired("blog-id")
	_ = cmd.MarkFlagRequired("author-id")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newPublishMilestoneCmd(a *app) *cobra.Command {
	var (
		blogID   string
		kind     string
		count    int64
		authorID string
		title    string
	)

	cmd := &cobra.Command{
		Use:   "milestone",
		Short: "engagement-milestones チャネルにマイルストーンのシグナルを送信する",
		Long:  "--author-id と --title を省略すると欠落したまま送信し、通知サービス側の補完に任せる。",
		RunE: func(cmd *cobra.Command, _ []string) error {
			k, err := event.ParseKind(kind)
			if err != nil {
				return err
			}
			return a.publish(cmd, event.MilestoneSignal{
				BlogID:        blogID,
				AuthorID:      event.SomeString(authorID),
				BlogTitle:     event.SomeString(title),
				MilestoneType: k,
				Count:         count,
			})
		},
	}
	cmd.Flags().StringVar(&blogID, "blog-id", "", "記事ID")
	cmd.Flags().StringVar(&kind, "type", "", "エンゲージメントの種類（LIKES, VIEWS, COMMENTS）")
	cmd.Flags().Int64Var(&count, "count", 0, "到達した件数")
	cmd.Flags().StringVar(&authorID, "author-id", "", "著者ID（省略可）")
	cmd.Flags().StringVar(&title, "title", "", "記事のタイトル（省略可）")
	_ = cmd.MarkFlagRequired("blog-id")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("count")
	return cmd
}

// publish はバスに接続してシグナルを1件送信する。
func (a *app) publish(cmd *cobra.Command, s event.Signal) error {
	if err := s.Validate(); err != nil {
		return err
	}

	logger := a.logger()
	b, err := a.dialBus(a.brokers, a.timeout, logger)
	if err != nil {
		return fmt.Errorf("バスへの接続に失敗: %w", err)
	}
	defer b.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), a.timeout)
	defer cancel()
	if err := publisher.New(b, "blogpressctl", logger, nil).Publish(ctx, s); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s に送信しました (blogId=%s)\n", s.Channel(), s.Key())
	return nil
}
