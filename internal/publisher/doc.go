// Package publisher はシグナルをメッセージバスへ送信する。
//
// シグナルはJSONにエンコードし、ブログIDをキーとして送信する。
// 同じブログのシグナルは同じパーティションに載る。
// 送信の失敗は呼び出し元に返すが、リトライは行わない。
// 送信成功後の永続性はメッセージバスの配信保証に委ねる。
package publisher
