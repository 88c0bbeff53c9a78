// Package middleware はengagementサービスとnotificationサービスのGinミドルウェアをまとめる。
//
// JWTはブログ利用者の識別に使い、usernameクレームをコンテキストに載せる。
// リクエストログとパニックリカバリはlogrusに出力する。
package middleware
