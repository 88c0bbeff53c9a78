// Package mail はメール送信の抽象と、その実装を提供する。
//
// SMTPTransport はSMTPサーバー経由で送信し、LogTransport は送信内容を
// ログに出力するだけの開発用実装である。どちらも1通につき宛先は1件。
package mail
