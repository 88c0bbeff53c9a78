// Package notification は通知サービスの内部実装を提供する。
//
// Kafkaの new-content / engagement-milestones チャネルを購読し、
// 不足している著者情報やタイトルをコンテンツサービスとアイデンティティサービスから補完してから
// メールを送信する。補完できないシグナルは部分的な通知を送らずにスキップする。
package notification
