// Package playback は再生位置のポーリング結果と、画面に表示するライブ再生位置の整合を扱う。
//
// サーバーの値は数秒おきにしか届かないため、クライアントは1秒ごとに自前で進め、
// 届いた値との差が閾値を超えた場合だけ補正する。
package playback

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Report は1回のポーリングで得た再生状態。
// Playingがnilの場合は再生中かどうか不明として扱う。
type Report struct {
	ProgressMs int64
	DurationMs int64
	Playing    *bool
}

// IsPlaying は再生中フラグを返す。不明の場合はfalse。
func (r Report) IsPlaying() bool {
	return r.Playing != nil && *r.Playing
}

// UnmarshalJSON はcamelCase（progressMs）とsnake_case（progress_ms）のどちらも受け付ける。
// 両方ある場合はcamelCaseを優先する。数値として読めない値は0、真偽値でない再生フラグは不明とする。
func (r *Report) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		*r = Report{}
		return nil
	}

	r.ProgressMs = pickMs(fields, "progressMs", "progress_ms")
	r.DurationMs = pickMs(fields, "durationMs", "duration_ms")
	r.Playing = pickBool(fields, "isPlaying", "is_playing")
	return nil
}

// MarshalJSON はcamelCaseで出力する。再生フラグが不明の場合はfalseとする。
func (r Report) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		IsPlaying  bool  `json:"isPlaying"`
		ProgressMs int64 `json:"progressMs"`
		DurationMs int64 `json:"durationMs"`
	}{r.IsPlaying(), r.ProgressMs, r.DurationMs})
}

// ParseReport はJSONからReportを読み取る。
func ParseReport(data []byte) (Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return Report{}, err
	}
	return r, nil
}

// pick はcamelがnull以外で存在すればそれを、なければsnakeの値を返す。
func pick(fields map[string]json.RawMessage, camel, snake string) json.RawMessage {
	if v, ok := fields[camel]; ok && !isNull(v) {
		return v
	}
	if v, ok := fields[snake]; ok && !isNull(v) {
		return v
	}
	return nil
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

func pickMs(fields map[string]json.RawMessage, camel, snake string) int64 {
	raw := pick(fields, camel, snake)
	if raw == nil {
		return 0
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return int64(n)
	}
	// "12345" のような文字列の数値も受け付ける
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(f)
		}
	}
	return 0
}

func pickBool(fields map[string]json.RawMessage, camel, snake string) *bool {
	raw := pick(fields, camel, snake)
	if raw == nil {
		return nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil
	}
	return &b
}
