package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nao1215/blogpress/pkg/mail"
	"github.com/nao1215/blogpress/pkg/metrics"
	"github.com/sirupsen/logrus"
)

const (
	// KindNewContent は新着記事のお知らせ。
	KindNewContent = "new_content"
	// KindMilestone はマイルストーン到達のお祝い。
	KindMilestone = "milestone"
)

// Instruction は1通のメール送信指示。送信の直前に組み立てて保存はしない。
type Instruction struct {
	// Kind は通知の種類。
	Kind string
	// To は宛先アドレス。
	To string
	// Subject は件名。
	Subject string
	// Body は本文。
	Body string
}

const newContentBody = `Hello,

A new blog post has been published by %s:

Title: %s

Check it out on BlogPress!

Best regards,
BlogPress Team`

const milestoneBody = `Hello %s,

Congratulations! Your blog post "%s" has reached %d %s!

This is a significant milestone and shows that your content is resonating with readers.

Keep up the great work!

Best regards,
BlogPress Team`

// DecideNewContent は新着記事を配信先全員に送る指示を組み立てる。
// 件名と本文は全員で同じになる。
func DecideNewContent(e EnrichedNewContent) []Instruction {
	subject := "New Blog Post: " + e.Title
	body := fmt.Sprintf(newContentBody, e.Author.Name, e.Title)

	out := make([]Instruction, 0, len(e.Recipients))
	for _, to := range e.Recipients {
		out = append(out, Instruction{
			Kind:    KindNewContent,
			To:      to,
			Subject: subject,
			Body:    body,
		})
	}
	return out
}

// DecideMilestone は著者1人にお祝いを送る指示を組み立てる。
func DecideMilestone(e EnrichedMilestone) []Instruction {
	return []Instruction{{
		Kind:    KindMilestone,
		To:      e.Author.Email,
		Subject: fmt.Sprintf("Congratulations! Your blog reached %d %s", e.Count, e.Kind),
		Body:    fmt.Sprintf(milestoneBody, e.Author.Name, e.Title, e.Count, strings.ToLower(string(e.Kind))),
	}}
}

// Report は配信結果の集計。
type Report struct {
	// Sent は送信に成功した件数。
	Sent int
	// Failed は送信に失敗した件数。
	Failed int
}

// Sender はメール送信指示を配信する。宛先ごとに失敗を隔離する。
type Sender struct {
	transport mail.Transport
	timeout   time.Duration
	logger    logrus.FieldLogger
	metrics   *metrics.Collector
}

// NewSender は新しいSenderを生成する。timeoutは1通の送信に許す時間。
func NewSender(transport mail.Transport, timeout time.Duration, logger logrus.FieldLogger, collector *metrics.Collector) *Sender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Sender{
		transport: transport,
		timeout:   timeout,
		logger:    logger,
		metrics:   collector,
	}
}

// Deliver は指示を順に送信する。1通の失敗は残りの送信を止めない。再送はしない。
func (s *Sender) Deliver(ctx context.Context, instructions []Instruction) Report {
	var report Report
	for _, in := range instructions {
		if err := s.send(ctx, in); err != nil {
			report.Failed++
			s.metrics.NotificationSent(in.Kind, metrics.ResultError)
			s.logger.WithError(err).WithFields(logrus.Fields{
				"kind": in.Kind,
				"to":   in.To,
			}).Error("メールの送信に失敗しました")
			continue
		}
		report.Sent++
		s.metrics.NotificationSent(in.Kind, metrics.ResultOK)
	}
	return report
}

// send は1通をタイムアウト付きで送信する。トランスポートのパニックはエラーとして扱う。
func (s *Sender) send(ctx context.Context, in Instruction) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("メール送信中にパニックが発生: %v", r)
		}
	}()

	sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.transport.Send(sendCtx, in.To, in.Subject, in.Body)
}
