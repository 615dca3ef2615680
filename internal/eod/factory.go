package eod

import (
	"time"

	"crypto-trading-bot/internal/interfaces"
)

func New() interfaces.EodSummarizer {
	return &summarizer{now: time.Now}
}
