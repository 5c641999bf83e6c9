package usage

import (
	"strconv"
	"time"
)

// Record is one finished transcription request as seen by the server.
type Record struct {
	Provider string
	Failed   bool
	Audio    time.Duration
	Latency  time.Duration
}

// Hourly aggregates the counters of one provider for one UTC hour.
type Hourly struct {
	Provider     string `json:"provider"`
	Date         string `json:"date"`
	Hour         int    `json:"hour"`
	Requests     int64  `json:"requests"`
	Failures     int64  `json:"failures"`
	AudioMs      int64  `json:"audio_ms"`
	AvgLatencyMs int64  `json:"avg_latency_ms"`
}

func RedisKey(provider, date string, hour int) string {
	return "usage:" + provider + ":" + date + ":" + strconv.Itoa(hour)
}
