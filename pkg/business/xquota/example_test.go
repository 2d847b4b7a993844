package xquota_test

import (
	"errors"
	"fmt"

	"github.com/omeyang/vidgate/pkg/business/xquota"
)

func Example() {
	tracker, err := xquota.NewTracker(xquota.Config{
		DailyLimit: 150,
		Window:     xquota.DefaultConfig().Window,
	})
	if err != nil {
		panic(err)
	}

	// 预检不消耗额度
	if err := tracker.CheckAndReserve(xquota.OpSearch); err != nil {
		panic(err)
	}
	fmt.Println("after check:", tracker.Status().Used)

	// 只有确认成功才记账
	tracker.NoteUsage(xquota.OpSearch)
	fmt.Println("after usage:", tracker.Status().Used)

	// 额度不足时预检快速失败
	err = tracker.CheckAndReserve(xquota.OpSearch)
	fmt.Println("exceeded:", errors.Is(err, xquota.ErrQuotaExceeded))

	// Output:
	// after check: 0
	// after usage: 100
	// exceeded: true
}
