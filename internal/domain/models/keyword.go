package models

import (
	"errors"
	"time"
)

type KeywordType string

const (
	GeneralKeyword     KeywordType = "general"
	MarketplaceKeyword KeywordType = "marketplace"
	AdSlotKeyword      KeywordType = "adslot"
)

func ToKeywordType(s string) (KeywordType, error) {
	switch s {
	case string(GeneralKeyword):
		return GeneralKeyword, nil
	case string(MarketplaceKeyword):
		return MarketplaceKeyword, nil
	case string(AdSlotKeyword):
		return AdSlotKeyword, nil
	default:
		return "", errors.New("invalid keyword type")
	}
}

type Keyword struct {
	ID              int
	Text            string
	Type            KeywordType
	Active          bool `gorm:"default:true"`
	Priority        int
	LastCollectedAt time.Time
	CreatedAt       time.Time
}

func NewKeyword(text string, keywordType KeywordType, priority int) *Keyword {
	return &Keyword{
		Text:     text,
		Type:     keywordType,
		Active:   true,
		Priority: priority,
	}
}
