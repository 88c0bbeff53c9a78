// Package httpclient はサービス間のHTTP通信を行うクライアントを提供する。
//
// notificationサービスがコンテンツサービスやアイデンティティサービスを
// 同期的に参照する際に使用する。呼び出しごとにタイムアウトを設け、
// 障害が続く参照先にはサーキットブレーカーで即座に失敗を返す。
// リトライは行わない。
package httpclient
