// Package engagement はブログ記事へのいいね・閲覧・コメントを記録するエンゲージメントサービスを提供する。
//
// エンゲージメントを追加する操作（いいね、閲覧、コメント投稿）が確定するたびに、
// 対象種別の件数を読み直して閾値に到達したかを判定し、到達していれば
// engagement-milestonesチャネルにマイルストーンシグナルを送信する。
// 判定や送信の失敗は記録するだけで、元の操作の結果には影響させない。
//
// 送信側は記事の著者やタイトルを知らないため、シグナルのauthorIdとblogTitleは空で送る。
// 補完はnotificationサービスが行う。
//
// 同時に2件のいいねが処理されると、両方が同じ件数（例: 10）を観測して
// 同じマイルストーンを2回送信することがある。これは許容しており、受信側は重複に耐える。
package engagement
