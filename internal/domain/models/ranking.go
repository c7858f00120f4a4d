package models

import "time"

type RawRanking struct {
	ID          int
	KeywordID   int `gorm:"index"`
	ProductID   string
	Title       string
	Rank        int
	Price       int64
	Seller      string
	Category    string
	CollectedAt time.Time `gorm:"index"`
}

type CurrentRank struct {
	ID           int
	KeywordID    int `gorm:"index"`
	ProductID    string
	Rank         int
	PreviousRank *int
	Title        string
	Price        int64
	Seller       string
	Category     string
	UpdatedAt    time.Time
}

// Change is previous minus current, so a positive value means the product
// moved up.
func (c CurrentRank) Change() int {
	if c.PreviousRank == nil {
		return 0
	}
	return *c.PreviousRank - c.Rank
}

type HourlyRank struct {
	ID          int
	KeywordID   int       `gorm:"index"`
	Bucket      time.Time `gorm:"index"`
	ProductID   string
	AvgRank     float64
	MinRank     int
	MaxRank     int
	SampleCount int
	Title       string
	Price       int64
	Seller      string
	UpdatedAt   time.Time
}

// Fold accumulates one observation into the bucket as a running mean and
// tightens min/max.
func (h *HourlyRank) Fold(rank int) {
	h.AvgRank = (h.AvgRank*float64(h.SampleCount) + float64(rank)) / float64(h.SampleCount+1)
	h.SampleCount++
	if h.MinRank == 0 || rank < h.MinRank {
		h.MinRank = rank
	}
	if rank > h.MaxRank {
		h.MaxRank = rank
	}
}

type DailyRank struct {
	ID          int
	KeywordID   int    `gorm:"index"`
	Date        string `gorm:"index"` //local day, 2006-01-02
	ProductID   string
	AvgRank     float64
	MinRank     int
	MaxRank     int
	SampleCount int
	Title       string
	Price       int64
	Seller      string
	UpdatedAt   time.Time
}
