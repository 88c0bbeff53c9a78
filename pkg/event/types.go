package event

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nao1215/blogpress/pkg/milestone"
)

// Channel はメッセージバス上のチャネル（トピック）名を表す。
type Channel string

const (
	// ChannelNewContent は新しいブログ記事が作成されたことを通知するチャネル。
	ChannelNewContent Channel = "new-content"
	// ChannelEngagementMilestones はエンゲージメントがマイルストーンに到達したことを通知するチャネル。
	ChannelEngagementMilestones Channel = "engagement-milestones"
)

// Kind はエンゲージメントの種類を表す。値はmilestoneTypeとしてそのままワイヤーに載る。
type Kind string

const (
	// KindLikes はいいね。
	KindLikes Kind = "LIKES"
	// KindViews は閲覧。
	KindViews Kind = "VIEWS"
	// KindComments はコメント。
	KindComments Kind = "COMMENTS"
)

// ParseKind は文字列をKindに変換する。大文字小文字は区別しない。
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToUpper(strings.TrimSpace(s))); k {
	case KindLikes, KindViews, KindComments:
		return k, nil
	}
	return "", fmt.Errorf("未知のエンゲージメント種別です: %q", s)
}

// ErrMalformedPayload はペイロードが契約を満たさないことを表す。
var ErrMalformedPayload = errors.New("ペイロードが不正です")

// MilestoneSignal はブログ記事のエンゲージメント数が閾値に到達したことを表すシグナル。
// 送信側は著者を知らないためAuthorIDとBlogTitleは通常Noneで送られ、受信側で補完される。
type MilestoneSignal struct {
	// BlogID は対象ブログ記事のID。
	BlogID string `json:"blogId"`
	// AuthorID は記事の著者ID。送信時点では不明な場合がある。
	AuthorID Optional[string] `json:"authorId"`
	// BlogTitle は記事のタイトル。送信時点では不明な場合がある。
	BlogTitle Optional[string] `json:"blogTitle"`
	// MilestoneType はエンゲージメントの種類。
	MilestoneType Kind `json:"milestoneType"`
	// Count は到達した閾値。
	Count int64 `json:"count"`
}

// Channel はシグナルを流すチャネルを返す。
func (s MilestoneSignal) Channel() Channel { return ChannelEngagementMilestones }

// Key はパーティショニングに使うキーを返す。同じ記事のシグナルは同じパーティションに載る。
func (s MilestoneSignal) Key() string { return s.BlogID }

// Validate は受信したシグナルが最低限の契約を満たすかを検証する。
// AuthorIDとBlogTitleの欠落は契約違反ではない。
func (s MilestoneSignal) Validate() error {
	if strings.TrimSpace(s.BlogID) == "" {
		return fmt.Errorf("%w: blogIdがありません", ErrMalformedPayload)
	}
	if strings.TrimSpace(string(s.MilestoneType)) == "" {
		return fmt.Errorf("%w: milestoneTypeがありません", ErrMalformedPayload)
	}
	if s.Count <= 0 {
		return fmt.Errorf("%w: countが不正です (%d)", ErrMalformedPayload, s.Count)
	}
	if !milestone.IsMilestone(s.Count) {
		return fmt.Errorf("%w: countが閾値ではありません (%d)", ErrMalformedPayload, s.Count)
	}
	return nil
}

// NewContentSignal は新しいブログ記事が公開されたことを表すシグナル。
// 送信側がすべてのフィールドを埋める。
type NewContentSignal struct {
	// BlogID は公開された記事のID。
	BlogID string `json:"blogId"`
	// AuthorID は記事の著者ID。
	AuthorID string `json:"authorId"`
	// BlogTitle は記事のタイトル。
	BlogTitle string `json:"blogTitle"`
}

// Channel はシグナルを流すチャネルを返す。
func (s NewContentSignal) Channel() Channel { return ChannelNewContent }

// Key はパーティショニングに使うキーを返す。
func (s NewContentSignal) Key() string { return s.BlogID }

// Validate はすべてのフィールドが存在することを検証する。
func (s NewContentSignal) Validate() error {
	switch {
	case strings.TrimSpace(s.BlogID) == "":
		return fmt.Errorf("%w: blogIdがありません", ErrMalformedPayload)
	case strings.TrimSpace(s.AuthorID) == "":
		return fmt.Errorf("%w: authorIdがありません", ErrMalformedPayload)
	case strings.TrimSpace(s.BlogTitle) == "":
		return fmt.Errorf("%w: blogTitleがありません", ErrMalformedPayload)
	}
	return nil
}

// Signal はメッセージバスに載せられるシグナルの共通インターフェース。
type Signal interface {
	Channel() Channel
	Key() string
	Validate() error
}
