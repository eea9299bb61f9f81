package export

import (
	"strings"
	"time"
)

func fixedCreationDate() time.Time {
	return time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)
}

// Filename 从文档标题派生下载文件名：标题 + 后缀 + .pdf。
// 不适合文件名的字符替换为下划线；空标题回落到 "resume"。
func Filename(title, suffix string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, strings.TrimSpace(title))

	if cleaned == "" {
		cleaned = "resume"
	}
	if suffix != "" {
		cleaned += "-" + suffix
	}
	return cleaned + ".pdf"
}
