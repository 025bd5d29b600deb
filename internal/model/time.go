package model

import (
	"fmt"
	"time"
)

// DateLayout 是 API 中日期参数使用的格式。
const DateLayout = "2006-01-02"

// Date is a time serialized as "YYYY-MM-DD".
type Date time.Time

// MarshalJSON implements the json.Marshaler interface.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", time.Time(d).Format(DateLayout))), nil
}

// String 返回 YYYY-MM-DD 形式的日期。
func (d Date) String() string {
	return time.Time(d).Format(DateLayout)
}

// ParseDate 解析 YYYY-MM-DD 格式的日期（UTC 零点）。
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}
