package notify

import (
	"fmt"
	"time"
)

// gateReason reports whether the weekday/holiday gate trips for the given
// time, and why. The gate runs before any outbound call; a tripped gate is
// a distinct "skipped" outcome, not a failure.
func gateReason(now time.Time, holidays []string) (bool, string) {
	switch now.Weekday() {
	case time.Saturday:
		return true, "土曜日のため通知をスキップしました"
	case time.Sunday:
		return true, "日曜日のため通知をスキップしました"
	}

	md := now.Format("01-02")
	for _, h := range holidays {
		if h == md {
			return true, fmt.Sprintf("祝日（%s）のため通知をスキップしました", md)
		}
	}

	return false, ""
}
