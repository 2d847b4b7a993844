package xvideo

import (
	"encoding/json"
	"strconv"
	"time"
)

// =============================================================================
// 领域类型
// =============================================================================

// SearchResult 搜索结果条目。
type SearchResult struct {
	VideoID      string    `json:"video_id,omitempty"`
	ChannelID    string    `json:"channel_id,omitempty"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	ChannelTitle string    `json:"channel_title,omitempty"`
	PublishedAt  time.Time `json:"published_at,omitzero"`
}

// Video 视频详情。
type Video struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	ChannelID    string    `json:"channel_id,omitempty"`
	ChannelTitle string    `json:"channel_title,omitempty"`
	PublishedAt  time.Time `json:"published_at,omitzero"`
	Duration     string    `json:"duration,omitempty"`
	CategoryID   string    `json:"category_id,omitempty"`
	Tags         []string  `json:"tags,omitempty"`
	ViewCount    uint64    `json:"view_count"`
	LikeCount    uint64    `json:"like_count"`
	CommentCount uint64    `json:"comment_count"`
}

// Channel 频道详情。
type Channel struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	Country         string    `json:"country,omitempty"`
	PublishedAt     time.Time `json:"published_at,omitzero"`
	SubscriberCount uint64    `json:"subscriber_count"`
	VideoCount      uint64    `json:"video_count"`
	ViewCount       uint64    `json:"view_count"`
}

// Comment 视频顶层评论。
type Comment struct {
	ID          string    `json:"id"`
	Author      string    `json:"author"`
	Text        string    `json:"text"`
	LikeCount   int64     `json:"like_count"`
	ReplyCount  int64     `json:"reply_count"`
	PublishedAt time.Time `json:"published_at,omitzero"`
}

// CaptionTrack 视频的一条字幕轨。
type CaptionTrack struct {
	ID       string `json:"id"`
	Language string `json:"language"`
	Name     string `json:"name,omitempty"`
	// TrackKind 轨道类型，asr 表示机器生成。
	TrackKind string `json:"track_kind,omitempty"`
}

// VideoCategory 视频分类。
type VideoCategory struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Assignable bool   `json:"assignable"`
}

// =============================================================================
// 操作参数
// =============================================================================

// SearchParams 视频搜索参数。
type SearchParams struct {
	// Query 搜索关键词，必填。
	Query string
	// MaxResults 期望的结果总数，0 使用默认值，超过单页上限时自动分页。
	MaxResults int
	// Order 排序方式（relevance/date/viewCount/rating），空使用上游默认。
	Order string
	// RegionCode ISO 3166-1 地区码。
	RegionCode string
	// PublishedAfter 只返回该时间之后发布的内容。
	PublishedAfter time.Time
}

// ChannelSearchParams 频道搜索参数。
type ChannelSearchParams struct {
	Query      string
	MaxResults int
}

// CommentsParams 评论拉取参数。
type CommentsParams struct {
	VideoID    string
	MaxResults int
	// Order 排序方式（time/relevance）。
	Order string
}

// TranscriptParams 字幕文本拉取参数。
type TranscriptParams struct {
	VideoID string
	// PreferredLanguage 首选语言码（如 zh、en），空时退回英语。
	PreferredLanguage string
	// MaxLength 清洗后文本的最大长度（rune 数），0 使用默认值。
	MaxLength int
}

// TrendingParams 热门视频拉取参数。
type TrendingParams struct {
	RegionCode string
	CategoryID string
	MaxResults int
}

// =============================================================================
// 上游线格式（wire）
// =============================================================================

// listEnvelope 上游列表响应的公共信封。
type listEnvelope struct {
	Items         []json.RawMessage `json:"items"`
	NextPageToken string            `json:"nextPageToken"`
}

type wireSnippet struct {
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ChannelID    string    `json:"channelId"`
	ChannelTitle string    `json:"channelTitle"`
	PublishedAt  time.Time `json:"publishedAt"`
	CategoryID   string    `json:"categoryId"`
	Tags         []string  `json:"tags"`
	Country      string    `json:"country"`
}

type wireSearchItem struct {
	ID struct {
		VideoID   string `json:"videoId"`
		ChannelID string `json:"channelId"`
	} `json:"id"`
	Snippet wireSnippet `json:"snippet"`
}

type wireVideo struct {
	ID             string      `json:"id"`
	Snippet        wireSnippet `json:"snippet"`
	ContentDetails struct {
		Duration string `json:"duration"`
	} `json:"contentDetails"`
	Statistics struct {
		ViewCount    string `json:"viewCount"`
		LikeCount    string `json:"likeCount"`
		CommentCount string `json:"commentCount"`
	} `json:"statistics"`
}

type wireChannel struct {
	ID         string      `json:"id"`
	Snippet    wireSnippet `json:"snippet"`
	Statistics struct {
		SubscriberCount string `json:"subscriberCount"`
		VideoCount      string `json:"videoCount"`
		ViewCount       string `json:"viewCount"`
	} `json:"statistics"`
}

type wireCommentThread struct {
	ID      string `json:"id"`
	Snippet struct {
		TotalReplyCount int64 `json:"totalReplyCount"`
		TopLevelComment struct {
			Snippet struct {
				AuthorDisplayName string    `json:"authorDisplayName"`
				TextDisplay       string    `json:"textDisplay"`
				LikeCount         int64     `json:"likeCount"`
				PublishedAt       time.Time `json:"publishedAt"`
			} `json:"snippet"`
		} `json:"topLevelComment"`
	} `json:"snippet"`
}

type wireCaption struct {
	ID      string `json:"id"`
	Snippet struct {
		Language  string `json:"language"`
		Name      string `json:"name"`
		TrackKind string `json:"trackKind"`
	} `json:"snippet"`
}

type wireCategory struct {
	ID      string `json:"id"`
	Snippet struct {
		Title      string `json:"title"`
		Assignable bool   `json:"assignable"`
	} `json:"snippet"`
}

// =============================================================================
// 线格式转换
// =============================================================================

// parseCount 上游统计值以字符串编码，缺失或非法值按 0 处理。
func parseCount(s string) uint64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func (w wireSearchItem) toResult() SearchResult {
	return SearchResult{
		VideoID:      w.ID.VideoID,
		ChannelID:    w.ID.ChannelID,
		Title:        w.Snippet.Title,
		Description:  w.Snippet.Description,
		ChannelTitle: w.Snippet.ChannelTitle,
		PublishedAt:  w.Snippet.PublishedAt,
	}
}

func (w wireVideo) toVideo() Video {
	return Video{
		ID:           w.ID,
		Title:        w.Snippet.Title,
		Description:  w.Snippet.Description,
		ChannelID:    w.Snippet.ChannelID,
		ChannelTitle: w.Snippet.ChannelTitle,
		PublishedAt:  w.Snippet.PublishedAt,
		Duration:     w.ContentDetails.Duration,
		CategoryID:   w.Snippet.CategoryID,
		Tags:         w.Snippet.Tags,
		ViewCount:    parseCount(w.Statistics.ViewCount),
		LikeCount:    parseCount(w.Statistics.LikeCount),
		CommentCount: parseCount(w.Statistics.CommentCount),
	}
}

func (w wireChannel) toChannel() Channel {
	return Channel{
		ID:              w.ID,
		Title:           w.Snippet.Title,
		Description:     w.Snippet.Description,
		Country:         w.Snippet.Country,
		PublishedAt:     w.Snippet.PublishedAt,
		SubscriberCount: parseCount(w.Statistics.SubscriberCount),
		VideoCount:      parseCount(w.Statistics.VideoCount),
		ViewCount:       parseCount(w.Statistics.ViewCount),
	}
}

func (w wireCommentThread) toComment() Comment {
	top := w.Snippet.TopLevelComment.Snippet
	return Comment{
		ID:          w.ID,
		Author:      top.AuthorDisplayName,
		Text:        top.TextDisplay,
		LikeCount:   top.LikeCount,
		ReplyCount:  w.Snippet.TotalReplyCount,
		PublishedAt: top.PublishedAt,
	}
}

func (w wireCaption) toTrack() CaptionTrack {
	return CaptionTrack{
		ID:        w.ID,
		Language:  w.Snippet.Language,
		Name:      w.Snippet.Name,
		TrackKind: w.Snippet.TrackKind,
	}
}

func (w wireCategory) toCategory() VideoCategory {
	return VideoCategory{
		ID:         w.ID,
		Title:      w.Snippet.Title,
		Assignable: w.Snippet.Assignable,
	}
}
