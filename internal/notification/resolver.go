package notification

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/nao1215/blogpress/pkg/event"
	"github.com/sirupsen/logrus"
)

// SkipReason はシグナルを通知せずに破棄した理由。メトリクスのラベルにも使う。
type SkipReason string

const (
	// SkipContentNotFound はフォールバック参照で記事が見つからなかった。
	SkipContentNotFound SkipReason = "content_not_found"
	// SkipContentLookupFailed はフォールバック参照が失敗またはタイムアウトした。
	SkipContentLookupFailed SkipReason = "content_lookup_failed"
	// SkipAuthorMissing は補完後も著者IDが欠落している。
	SkipAuthorMissing SkipReason = "author_missing"
	// SkipTitleMissing は補完後もタイトルが欠落している。
	SkipTitleMissing SkipReason = "title_missing"
	// SkipProfileNotFound は著者のプロフィールが存在しない。
	SkipProfileNotFound SkipReason = "profile_not_found"
	// SkipProfileLookupFailed はプロフィール参照が失敗またはタイムアウトした。
	SkipProfileLookupFailed SkipReason = "profile_lookup_failed"
	// SkipAuthorEmailMissing は著者のメールアドレスがない。
	SkipAuthorEmailMissing SkipReason = "author_email_missing"
	// SkipAuthorNameMissing は著者の名前もユーザー名もない。
	SkipAuthorNameMissing SkipReason = "author_name_missing"
	// SkipRecipientsLookupFailed は配信先一覧の取得に失敗した。
	SkipRecipientsLookupFailed SkipReason = "recipients_lookup_failed"
	// SkipNoRecipients は配信先が1件もない。
	SkipNoRecipients SkipReason = "no_recipients"
	// SkipDuplicate は重複ガードが同じマイルストーンの送信済みを検出した。
	SkipDuplicate SkipReason = "duplicate"
)

// Skip は補完に失敗したシグナルを通知しない判断。
type Skip struct {
	// Reason はスキップの理由。
	Reason SkipReason
	// Err は原因となったエラー。データ欠落の場合はnil。
	Err error
}

// Result は補完の結果。補完済みの値かSkipのどちらか一方だけを持つ。
type Result[T any] struct {
	value T
	skip  *Skip
}

// Enriched は補完に成功した結果を返す。
func Enriched[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Skipped はスキップする結果を返す。
func Skipped[T any](reason SkipReason, err error) Result[T] {
	return Result[T]{skip: &Skip{Reason: reason, Err: err}}
}

// Get は補完済みの値を返す。スキップの場合はfalse。
func (r Result[T]) Get() (T, bool) {
	return r.value, r.skip == nil
}

// Skip はスキップの判断を返す。補完済みの場合はfalse。
func (r Result[T]) Skip() (Skip, bool) {
	if r.skip == nil {
		return Skip{}, false
	}
	return *r.skip, true
}

// Author は通知に使う著者の情報。
type Author struct {
	// ID は著者ID。
	ID string
	// Name は本文の宛名。名が空の場合はユーザー名。
	Name string
	// Email は著者のメールアドレス。
	Email string
}

// EnrichedMilestone はすべてのフィールドが揃ったマイルストーン。
type EnrichedMilestone struct {
	// BlogID は記事ID。
	BlogID string
	// Title は記事のタイトル。
	Title string
	// Kind はエンゲージメントの種類。
	Kind event.Kind
	// Count は到達した閾値。
	Count int64
	// Author は記事の著者。
	Author Author
}

// EnrichedNewContent は配信先まで解決した新着記事。
type EnrichedNewContent struct {
	// BlogID は記事ID。
	BlogID string
	// Title は記事のタイトル。
	Title string
	// Author は記事の著者。
	Author Author
	// Recipients は配信先のメールアドレス。
	Recipients []string
}

// Resolver はシグナルの欠落フィールドを外部サービスから補完する。
type Resolver struct {
	content  ContentLookup
	identity IdentityLookup
	timeout  time.Duration
	logger   logrus.FieldLogger
}

// NewResolver は新しいResolverを生成する。timeoutは1回のルックアップに許す時間。
func NewResolver(content ContentLookup, identity IdentityLookup, timeout time.Duration, logger logrus.FieldLogger) *Resolver {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Resolver{
		content:  content,
		identity: identity,
		timeout:  timeout,
		logger:   logger,
	}
}

// ResolveMilestone はマイルストーンの著者とタイトルを補完する。
//
// authorIdかblogTitleのどちらかが欠けていれば記事IDでコンテンツサービスを1回だけ参照し、
// 欠けているフィールドだけを埋める。記事が見つからない場合はアイデンティティサービスを呼ばずにスキップする。
// 補完後もフィールドが欠けていれば部分的な通知は送らずにスキップする。
func (r *Resolver) ResolveMilestone(ctx context.Context, s event.MilestoneSignal) Result[EnrichedMilestone] {
	logger := r.logger.WithFields(logrus.Fields{
		"blog_id":        s.BlogID,
		"milestone_type": s.MilestoneType,
		"count":          s.Count,
	})

	authorID, hasAuthor := s.AuthorID.Get()
	title, hasTitle := s.BlogTitle.Get()
	hasAuthor = hasAuthor && strings.TrimSpace(authorID) != ""
	hasTitle = hasTitle && strings.TrimSpace(title) != ""

	if !hasAuthor || !hasTitle {
		info, err := r.lookupContent(ctx, s.BlogID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				logger.Warn("補完対象の記事が見つからないためスキップします")
				return Skipped[EnrichedMilestone](SkipContentNotFound, err)
			}
			logger.WithError(err).Warn("記事情報の補完に失敗したためスキップします")
			return Skipped[EnrichedMilestone](SkipContentLookupFailed, err)
		}
		if !hasAuthor && strings.TrimSpace(info.AuthorID) != "" {
			authorID, hasAuthor = info.AuthorID, true
		}
		if !hasTitle && strings.TrimSpace(info.Title) != "" {
			title, hasTitle = info.Title, true
		}
	}

	if !hasAuthor {
		logger.WithField("missing_field", "authorId").Warn("補完後も著者IDが不明なためスキップします")
		return Skipped[EnrichedMilestone](SkipAuthorMissing, nil)
	}
	if !hasTitle {
		logger.WithField("missing_field", "blogTitle").Warn("補完後もタイトルが不明なためスキップします")
		return Skipped[EnrichedMilestone](SkipTitleMissing, nil)
	}

	author, reason, err := r.resolveAuthor(ctx, authorID, logger)
	if reason != "" {
		return Skipped[EnrichedMilestone](reason, err)
	}

	return Enriched(EnrichedMilestone{
		BlogID: s.BlogID,
		Title:  title,
		Kind:   s.MilestoneType,
		Count:  s.Count,
		Author: author,
	})
}

// ResolveNewContent は新着記事の著者プロフィールと配信先一覧を解決する。
func (r *Resolver) ResolveNewContent(ctx context.Context, s event.NewContentSignal) Result[EnrichedNewContent] {
	logger := r.logger.WithFields(logrus.Fields{
		"blog_id":   s.BlogID,
		"author_id": s.AuthorID,
	})

	author, reason, err := r.resolveAuthor(ctx, s.AuthorID, logger)
	if reason != "" && reason != SkipAuthorEmailMissing {
		return Skipped[EnrichedNewContent](reason, err)
	}

	lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	emails, err := r.identity.GetAllEmails(lookupCtx)
	if err != nil {
		logger.WithError(err).Warn("配信先一覧の取得に失敗したためスキップします")
		return Skipped[EnrichedNewContent](SkipRecipientsLookupFailed, err)
	}

	recipients := uniqueAddresses(emails)
	if len(recipients) == 0 {
		logger.Info("配信先がないためスキップします")
		return Skipped[EnrichedNewContent](SkipNoRecipients, nil)
	}

	return Enriched(EnrichedNewContent{
		BlogID:     s.BlogID,
		Title:      s.BlogTitle,
		Author:     author,
		Recipients: recipients,
	})
}

// lookupContent はタイムアウト付きでコンテンツサービスを参照する。
func (r *Resolver) lookupContent(ctx context.Context, blogID string) (ContentInfo, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.content.GetContentByID(lookupCtx, blogID)
}

// resolveAuthor は著者のプロフィールを参照して宛名とアドレスを決める。
// 通知できない場合はスキップ理由を返す。
func (r *Resolver) resolveAuthor(ctx context.Context, authorID string, logger logrus.FieldLogger) (Author, SkipReason, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	profile, err := r.identity.GetProfileByID(lookupCtx, authorID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			logger.WithField("author_id", authorID).Warn("著者のプロフィールが見つからないためスキップします")
			return Author{}, SkipProfileNotFound, err
		}
		logger.WithError(err).WithField("author_id", authorID).Warn("著者のプロフィール取得に失敗したためスキップします")
		return Author{}, SkipProfileLookupFailed, err
	}

	name := displayName(profile)
	if name == "" {
		logger.WithField("author_id", authorID).Warn("著者の名前が不明なためスキップします")
		return Author{}, SkipAuthorNameMissing, nil
	}

	author := Author{
		ID:    authorID,
		Name:  name,
		Email: strings.TrimSpace(profile.Email),
	}
	if author.Email == "" {
		logger.WithField("author_id", authorID).Warn("著者のメールアドレスがありません")
		return author, SkipAuthorEmailMissing, nil
	}
	return author, "", nil
}

// displayName は名を優先し、なければユーザー名を宛名にする。
func displayName(p Profile) string {
	if name := strings.TrimSpace(p.FirstName); name != "" {
		return name
	}
	return strings.TrimSpace(p.Username)
}

// uniqueAddresses は空のアドレスと大文字小文字違いの重複を除く。順序は保つ。
func uniqueAddresses(emails []string) []string {
	seen := make(map[string]struct{}, len(emails))
	out := make([]string, 0, len(emails))
	for _, e := range emails {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		key := strings.ToLower(e)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}
	return out
}
