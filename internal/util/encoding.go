package util

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
)

// fallback 非 UTF-8 输出的候选编码，按顺序尝试
var fallback = []struct {
	name string
	enc  encoding.Encoding
}{
	{"gb18030", simplifiedchinese.GB18030},
	{"big5", traditionalchinese.Big5},
	{"windows-1252", charmap.Windows1252},
	{"iso-8859-1", charmap.ISO8859_1},
}

// DecodeOutput 将远程命令输出转为 UTF-8，返回文本与识别出的编码名
// 已是合法 UTF-8 时原样返回；全部候选失败时按字节原样返回并标记为 "raw"
func DecodeOutput(b []byte) (string, string) {
	if len(b) == 0 {
		return "", "utf-8"
	}
	if utf8.Valid(b) {
		return string(b), "utf-8"
	}
	for _, f := range fallback {
		decoded, err := f.enc.NewDecoder().Bytes(b)
		if err == nil && utf8.Valid(decoded) && !strings.ContainsRune(string(decoded), utf8.RuneError) {
			return string(decoded), f.name
		}
	}
	return string(b), "raw"
}

// EnsureUTF8 只返回转码后的文本
func EnsureUTF8(s string) string {
	text, _ := DecodeOutput([]byte(s))
	return text
}
