// Package event はサービス間でメッセージバスを流れるシグナルの型と
// ワイヤーフォーマットを定義する。
//
// チャネル名とペイロードのJSONキーはサービス間の契約であり、
// 送信側（engagementサービス、blogpressctl）と受信側（notificationサービス）で共有する。
// 値が存在しない可能性のあるフィールドは Optional で表現し、
// nullや空文字列をその場しのぎで解釈しない。
package event
