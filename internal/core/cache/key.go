package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Key 生成緩存鍵：操作名稱、快照版本、精確的評估時點與請求參數雜湊。
// 版本變更後舊鍵自然失效。
func Key(op string, version uint64, asOf time.Time, params ...string) string {
	return fmt.Sprintf("%s:v%d:%d:%s", op, version, asOf.UnixNano(), hashString(strings.Join(params, "\x1f")))
}

// hashString 計算字符串的 SHA-256 哈希值
func hashString(s string) string {
	hash := sha256.Sum256([]byte(s))
	return hex.EncodeToString(hash[:8])
}
