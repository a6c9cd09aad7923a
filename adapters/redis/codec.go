package redis

import (
	"encoding/base64"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"hammer/auction"
)

// 事件在 Redis Stream 上以單一 data 欄位承載：
// msgpack 序列化後再以 base64 編碼，跟事件結構的演進解耦。

// EncodeEvent 將事件轉換為 stream 訊息欄位。
func EncodeEvent(ev auction.Event) (map[string]any, error) {
	raw, err := msgpack.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("msgpack marshal error: %w", err)
	}
	return map[string]any{
		"type": string(ev.Type),
		"data": base64.StdEncoding.EncodeToString(raw),
	}, nil
}

// DecodeEvent 從 stream 訊息欄位還原事件。
func DecodeEvent(message map[string]any) (auction.Event, error) {
	var ev auction.Event

	dataStr, ok := message["data"].(string)
	if !ok {
		return ev, fmt.Errorf("data field not found or invalid type")
	}
	raw, err := base64.StdEncoding.DecodeString(dataStr)
	if err != nil {
		return ev, fmt.Errorf("base64 decode error: %w", err)
	}
	if err := msgpack.Unmarshal(raw, &ev); err != nil {
		return ev, fmt.Errorf("msgpack unmarshal error: %w", err)
	}
	return ev, nil
}
