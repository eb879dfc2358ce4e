package filestore

import (
	"os"
	"strings"
)

// ReadRoster は参加予定者の名簿ファイルを読み込む。
// 候補パスを順に試し、1件以上の名前が得られた最初のファイルの内容を返す。
// 名前は改行・セミコロン・カンマで区切られ、先頭のBOM、空要素、#で始まる要素は除外する。
// どのファイルも読めない場合は空スライスを返す。
func ReadRoster(paths ...string) []string {
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		names := ParseRoster(string(raw))
		if len(names) > 0 {
			return names
		}
	}
	return []string{}
}

// ParseRoster は名簿テキストを名前のリストに分解する。
func ParseRoster(raw string) []string {
	raw = strings.TrimPrefix(raw, "\ufeff")

	names := []string{}
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSuffix(line, "\r")
		for _, part := range strings.FieldsFunc(line, func(r rune) bool {
			return r == ';' || r == ','
		}) {
			name := strings.TrimSpace(part)
			if name == "" || strings.HasPrefix(name, "#") {
				continue
			}
			names = append(names, name)
		}
	}
	return names
}
