package event

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Encode はシグナルを検証してからJSONにシリアライズする。
// 契約を満たさないシグナルはバスに載せない。
func Encode(s Signal) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("シグナルのシリアライズに失敗: %w", err)
	}
	return data, nil
}

// DecodeMilestone はengagement-milestonesチャネルのペイロードをデシリアライズする。
// 空文字列のauthorId/blogTitleは欠落として扱う。
func DecodeMilestone(data []byte) (MilestoneSignal, error) {
	var s MilestoneSignal
	if err := json.Unmarshal(data, &s); err != nil {
		return MilestoneSignal{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	s.AuthorID = normalizeString(s.AuthorID)
	s.BlogTitle = normalizeString(s.BlogTitle)
	if err := s.Validate(); err != nil {
		return MilestoneSignal{}, err
	}
	return s, nil
}

// DecodeNewContent はnew-contentチャネルのペイロードをデシリアライズする。
func DecodeNewContent(data []byte) (NewContentSignal, error) {
	var s NewContentSignal
	if err := json.Unmarshal(data, &s); err != nil {
		return NewContentSignal{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if err := s.Validate(); err != nil {
		return NewContentSignal{}, err
	}
	return s, nil
}
