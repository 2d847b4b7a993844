package xvideo

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// =============================================================================
// 字幕文本提取
// =============================================================================

const (
	// defaultTranscriptMaxLength 清洗后文本的默认长度上限（rune 数）。
	defaultTranscriptMaxLength = 1000

	// fallbackLanguage 首选语言无匹配时退回的语言码。
	fallbackLanguage = "en"

	// trackKindASR 机器生成字幕轨的类型标识。
	trackKindASR = "asr"
)

// SRT 格式的结构行：序号行、时间轴行、内联标签。
var (
	srtIndexPattern     = regexp.MustCompile(`^\d+$`)
	srtTimestampPattern = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}[,.]\d{3}\s*-->\s*\d{2}:\d{2}:\d{2}[,.]\d{3}`)
	srtTagPattern       = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern   = regexp.MustCompile(`\s+`)
)

// GetVideoTranscript 拉取并清洗视频的字幕文本。
//
// 轨道选择顺序：首选语言 → 英语 → 首条轨道；
// 同语言内人工字幕优先于机器生成（asr）。
// 视频没有可用字幕时返回空字符串而非错误。
// 返回文本按 MaxLength（默认 1000 个 rune）截断。
func (c *Client) GetVideoTranscript(ctx context.Context, p TranscriptParams) (string, error) {
	if p.VideoID == "" {
		return "", fmt.Errorf("%w: video_id 不能为空", ErrInvalidConfig)
	}

	tracks, err := c.ListCaptions(ctx, p.VideoID)
	if err != nil {
		return "", err
	}
	if len(tracks) == 0 {
		return "", nil
	}

	track := selectTrack(tracks, p.PreferredLanguage)

	data, err := c.DownloadCaption(ctx, track.ID, "srt")
	if err != nil {
		if isAbsence(err, reasonCaptionNotFound) {
			return "", nil
		}
		return "", err
	}

	maxLen := p.MaxLength
	if maxLen <= 0 {
		maxLen = defaultTranscriptMaxLength
	}
	return truncateRunes(cleanSRT(string(data)), maxLen), nil
}

// selectTrack 按语言偏好选择字幕轨。
func selectTrack(tracks []CaptionTrack, preferred string) CaptionTrack {
	if preferred != "" {
		if t, ok := bestForLanguage(tracks, preferred); ok {
			return t
		}
	}
	if t, ok := bestForLanguage(tracks, fallbackLanguage); ok {
		return t
	}
	return tracks[0]
}

// bestForLanguage 在指定语言内优先返回人工字幕轨。
// 语言码按基础语言匹配（zh 匹配 zh-CN）。
func bestForLanguage(tracks []CaptionTrack, lang string) (CaptionTrack, bool) {
	lang = strings.ToLower(lang)
	var (
		found CaptionTrack
		ok    bool
	)
	for _, t := range tracks {
		tl := strings.ToLower(t.Language)
		if tl != lang && !strings.HasPrefix(tl, lang+"-") {
			continue
		}
		if !strings.EqualFold(t.TrackKind, trackKindASR) {
			return t, true
		}
		if !ok {
			found = t
			ok = true
		}
	}
	return found, ok
}

// cleanSRT 去掉 SRT 的序号行、时间轴行与内联标签，
// 拼接字幕文本并压缩空白。
func cleanSRT(srt string) string {
	var parts []string
	for _, line := range strings.Split(srt, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if srtIndexPattern.MatchString(line) {
			continue
		}
		if srtTimestampPattern.MatchString(line) {
			continue
		}
		line = srtTagPattern.ReplaceAllString(line, "")
		if line = strings.TrimSpace(line); line != "" {
			parts = append(parts, line)
		}
	}
	return whitespacePattern.ReplaceAllString(strings.Join(parts, " "), " ")
}

// truncateRunes 按 rune 数截断，避免切断多字节字符。
func truncateRunes(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen])
}
