package event

import (
	"bytes"
	"strings"
)

// Optional は値が存在するか否かを明示する型。
// JSONではnullまたはキーの欠落がNoneに、それ以外の値がSomeに対応する。
type Optional[T any] struct {
	value T
	ok    bool
}

// Some は値が存在するOptionalを返す。
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, ok: true}
}

// None は値が存在しないOptionalを返す。
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// Get は値と存在有無を返す。
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.ok
}

// IsPresent は値が存在する場合にtrueを返す。
func (o Optional[T]) IsPresent() bool {
	return o.ok
}

// OrElse は値が存在しなければfallbackを返す。
func (o Optional[T]) OrElse(fallback T) T {
	if o.ok {
		return o.value
	}
	return fallback
}

// MarshalJSON はNoneをnullとして出力する。
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.ok {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

// UnmarshalJSON はnullをNoneとして読み込む。
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = None[T]()
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}

// SomeString は空白のみの文字列をNoneとして扱うOptionalを返す。
func SomeString(s string) Optional[string] {
	if strings.TrimSpace(s) == "" {
		return None[string]()
	}
	return Some(s)
}

// normalizeString は空白のみの値を保持するSomeをNoneに揃える。
func normalizeString(o Optional[string]) Optional[string] {
	v, ok := o.Get()
	if !ok {
		return o
	}
	return SomeString(v)
}
