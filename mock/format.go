package mock

import (
	"fmt"
	"strings"
	"time"
)

// dateTokens are the Mock.js format tokens, longest first so that "yyyy"
// wins over "yy" and "MM" over "M"
var dateTokens = []struct {
	token  string
	format func(t time.Time) string
}{
	{"yyyy", func(t time.Time) string { return fmt.Sprintf("%04d", t.Year()) }},
	{"yy", func(t time.Time) string { return fmt.Sprintf("%02d", t.Year()%100) }},
	{"MM", func(t time.Time) string { return fmt.Sprintf("%02d", int(t.Month())) }},
	{"M", func(t time.Time) string { return fmt.Sprint(int(t.Month())) }},
	{"dd", func(t time.Time) string { return fmt.Sprintf("%02d", t.Day()) }},
	{"d", func(t time.Time) string { return fmt.Sprint(t.Day()) }},
	{"HH", func(t time.Time) string { return fmt.Sprintf("%02d", t.Hour()) }},
	{"H", func(t time.Time) string { return fmt.Sprint(t.Hour()) }},
	{"hh", func(t time.Time) string { return fmt.Sprintf("%02d", hour12(t)) }},
	{"h", func(t time.Time) string { return fmt.Sprint(hour12(t)) }},
	{"mm", func(t time.Time) string { return fmt.Sprintf("%02d", t.Minute()) }},
	{"m", func(t time.Time) string { return fmt.Sprint(t.Minute()) }},
	{"ss", func(t time.Time) string { return fmt.Sprintf("%02d", t.Second()) }},
	{"s", func(t time.Time) string { return fmt.Sprint(t.Second()) }},
	{"SS", func(t time.Time) string { return fmt.Sprintf("%03d", t.Nanosecond()/int(time.Millisecond)) }},
	{"A", func(t time.Time) string { return t.Format("PM") }},
	{"a", func(t time.Time) string { return strings.ToLower(t.Format("PM")) }},
	{"T", func(t time.Time) string { return fmt.Sprint(t.UnixMilli()) }},
}

func hour12(t time.Time) int {
	h := t.Hour() % 12
	if h == 0 {
		return 12
	}
	return h
}

// FormatDate renders t with a Mock.js style format such as "yyyy-MM-dd HH:mm:ss".
// Characters that are not tokens are copied.
func FormatDate(t time.Time, format string) string {
	var sb strings.Builder
	for i := 0; i < len(format); {
		matched := false
		for _, tok := range dateTokens {
			if strings.HasPrefix(format[i:], tok.token) {
				sb.WriteString(tok.format(t))
				i += len(tok.token)
				matched = true
				break
			}
		}
		if !matched {
			sb.WriteByte(format[i])
			i++
		}
	}
	return sb.String()
}
