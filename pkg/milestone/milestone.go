// Package milestone はエンゲージメント数のマイルストーン（閾値）を定義する。
//
// 閾値は 10, 50, 100, 500, 1000, 5000, 10000 と、10000を超える10000の倍数。
// プロセス全体で共有する読み取り専用の値であり、ロックは不要。
package milestone

// step は10000を超えた後のマイルストーン間隔。
const step = 10000

// fixed は10000以下のマイルストーン。昇順。
var fixed = [...]int64{10, 50, 100, 500, 1000, 5000, 10000}

// IsMilestone はcountがマイルストーンであればtrueを返す。
func IsMilestone(count int64) bool {
	if count > step {
		return count%step == 0
	}
	for _, m := range fixed {
		if count == m {
			return true
		}
	}
	return false
}

// Next はcountより大きい最小のマイルストーンを返す。
func Next(count int64) int64 {
	for _, m := range fixed {
		if count < m {
			return m
		}
	}
	return (count/step + 1) * step
}

// UpTo はlimit以下のマイルストーンを昇順で返す。
func UpTo(limit int64) []int64 {
	var out []int64
	for m := Next(0); m <= limit; m = Next(m) {
		out = append(out, m)
	}
	return out
}
