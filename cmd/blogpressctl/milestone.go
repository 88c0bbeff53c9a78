package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nao1215/blogpress/pkg/milestone"
	"github.com/spf13/cobra"
)

func newMilestoneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "milestone",
		Short: "マイルストーンの閾値を調べる",
	}
	cmd.AddCommand(newMilestoneCheckCmd())
	return cmd
}

func newMilestoneCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <count>",
		Short: "件数がマイルストーンかどうかと到達済みの閾値、次の閾値を表示する",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || count < 0 {
				return fmt.Errorf("件数は0以上の整数で指定してください: %q", args[0])
			}

			out := cmd.OutOrStdout()
			if milestone.IsMilestone(count) {
				fmt.Fprintf(out, "%d はマイルストーンです\n", count)
			} else {
				fmt.Fprintf(out, "%d はマイルストーンではありません\n", count)
			}
			fmt.Fprintf(out, "到達済みの閾値: %s\n", reached(count))
			fmt.Fprintf(out, "次の閾値: %d\n", milestone.Next(count))
			return nil
		},
	}
}

// listLimit を超える閾値は列挙しない。
const listLimit = 100000

// reached はcount以下の閾値をカンマ区切りで返す。
func reached(count int64) string {
	thresholds := milestone.UpTo(min(count, listLimit))
	if len(thresholds) == 0 {
		return "なし"
	}
	parts := make([]string, 0, len(thresholds)+1)
	for _, m := range thresholds {
		parts = append(parts, strconv.FormatInt(m, 10))
	}
	if count > listLimit {
		parts = append(parts, fmt.Sprintf("... (%d まで10000刻み)", count/10000*10000))
	}
	return strings.Join(parts, ", ")
}
