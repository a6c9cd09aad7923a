package sse

import "fmt"

// TopicAll 是接收所有拍賣事件的頻道名稱。
const TopicAll = "periods"

// TopicForPeriod 返回單一拍賣期事件的頻道名稱。
func TopicForPeriod(periodID uint64) string {
	return fmt.Sprintf("periods/%d", periodID)
}
