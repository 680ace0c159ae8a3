package services

import (
	"fmt"
	"time"
)

// EstimateETA is a linear estimate: average time per finished target times
// the targets left.
func EstimateETA(elapsed time.Duration, done, remaining int) time.Duration {
	if done <= 0 || remaining <= 0 {
		return 0
	}
	return elapsed / time.Duration(done) * time.Duration(remaining)
}

// FormatETA renders d as h:mm:ss.
func FormatETA(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%d:%02d:%02d", secs/3600, (secs/60)%60, secs%60)
}
