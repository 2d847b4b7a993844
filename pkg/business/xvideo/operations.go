package xvideo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/omeyang/vidgate/pkg/business/xquota"
)

// 上游单次调用的结果数上限。
const (
	maxSearchPageSize   = 50
	maxChannelPageSize  = 25
	maxIDsPerCall       = 50
	maxCommentsPageSize = 100
	maxTrendingPageSize = 50

	defaultSearchResults   = 25
	defaultCommentsResults = 100
	defaultTrendingResults = 25
)

// =============================================================================
// 搜索
// =============================================================================

// SearchVideos 按关键词搜索视频。
// MaxResults 超过单页上限（50）时自动沿续页令牌分页，
// 每页独立经过完整管线；结果按到达顺序返回，上游提前耗尽时返回已有结果。
func (c *Client) SearchVideos(ctx context.Context, p SearchParams) ([]SearchResult, error) {
	if p.Query == "" {
		return nil, fmt.Errorf("%w: query 不能为空", ErrInvalidConfig)
	}

	remaining := p.MaxResults
	if remaining <= 0 {
		remaining = defaultSearchResults
	}

	results := make([]SearchResult, 0, remaining)
	pageToken := ""
	for remaining > 0 {
		params := url.Values{}
		params.Set("part", "snippet")
		params.Set("type", "video")
		params.Set("q", p.Query)
		params.Set("maxResults", strconv.Itoa(min(remaining, maxSearchPageSize)))
		if p.Order != "" {
			params.Set("order", p.Order)
		}
		if p.RegionCode != "" {
			params.Set("regionCode", p.RegionCode)
		}
		if !p.PublishedAfter.IsZero() {
			params.Set("publishedAfter", p.PublishedAfter.UTC().Format(time.RFC3339))
		}
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		items, next, err := fetchPage[wireSearchItem](ctx, c, xquota.OpSearch, params)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			if remaining <= 0 {
				break
			}
			results = append(results, item.toResult())
			remaining--
		}
		if next == "" {
			break
		}
		pageToken = next
	}
	return results, nil
}

// SearchChannels 按关键词搜索频道，单次调用，最多 25 条。
func (c *Client) SearchChannels(ctx context.Context, p ChannelSearchParams) ([]SearchResult, error) {
	if p.Query == "" {
		return nil, fmt.Errorf("%w: query 不能为空", ErrInvalidConfig)
	}

	count := p.MaxResults
	if count <= 0 || count > maxChannelPageSize {
		count = maxChannelPageSize
	}

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("type", "channel")
	params.Set("q", p.Query)
	params.Set("maxResults", strconv.Itoa(count))

	items, _, err := fetchPage[wireSearchItem](ctx, c, xquota.OpSearch, params)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(items))
	for _, item := range items {
		results = append(results, item.toResult())
	}
	return results, nil
}

// =============================================================================
// 详情批量拉取
// =============================================================================

// GetVideoDetails 批量拉取视频详情。
// ID 列表超过单次上限（50）时自动分块顺序发起，分块之间按 ChunkDelay
// 间隔；结果按输入顺序拼接，上游未返回的 ID 被跳过。
func (c *Client) GetVideoDetails(ctx context.Context, ids []string) ([]Video, error) {
	if len(ids) == 0 {
		return []Video{}, nil
	}

	byID := make(map[string]Video, len(ids))
	for i, chunk := range chunkIDs(ids, maxIDsPerCall) {
		if i > 0 {
			if err := c.sleepChunkDelay(ctx); err != nil {
				return nil, err
			}
		}

		params := url.Values{}
		params.Set("part", "snippet,contentDetails,statistics")
		params.Set("id", strings.Join(chunk, ","))

		items, _, err := fetchPage[wireVideo](ctx, c, xquota.OpVideos, params)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			byID[item.ID] = item.toVideo()
		}
	}

	videos := make([]Video, 0, len(byID))
	for _, id := range ids {
		if v, ok := byID[id]; ok {
			videos = append(videos, v)
			// 防止重复 ID 产生重复结果
			delete(byID, id)
		}
	}
	return videos, nil
}

// GetChannelDetails 批量拉取频道详情，分块与顺序语义同 GetVideoDetails。
func (c *Client) GetChannelDetails(ctx context.Context, ids []string) ([]Channel, error) {
	if len(ids) == 0 {
		return []Channel{}, nil
	}

	byID := make(map[string]Channel, len(ids))
	for i, chunk := range chunkIDs(ids, maxIDsPerCall) {
		if i > 0 {
			if err := c.sleepChunkDelay(ctx); err != nil {
				return nil, err
			}
		}

		params := url.Values{}
		params.Set("part", "snippet,statistics")
		params.Set("id", strings.Join(chunk, ","))

		items, _, err := fetchPage[wireChannel](ctx, c, xquota.OpChannels, params)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			byID[item.ID] = item.toChannel()
		}
	}

	channels := make([]Channel, 0, len(byID))
	for _, id := range ids {
		if ch, ok := byID[id]; ok {
			channels = append(channels, ch)
			delete(byID, id)
		}
	}
	return channels, nil
}

// =============================================================================
// 评论
// =============================================================================

// GetVideoComments 拉取视频顶层评论。
// 评论被关闭或视频不存在时返回空切片而非错误（软吸收）。
func (c *Client) GetVideoComments(ctx context.Context, p CommentsParams) ([]Comment, error) {
	if p.VideoID == "" {
		return nil, fmt.Errorf("%w: video_id 不能为空", ErrInvalidConfig)
	}

	remaining := p.MaxResults
	if remaining <= 0 {
		remaining = defaultCommentsResults
	}

	comments := make([]Comment, 0, remaining)
	pageToken := ""
	for remaining > 0 {
		params := url.Values{}
		params.Set("part", "snippet")
		params.Set("videoId", p.VideoID)
		params.Set("maxResults", strconv.Itoa(min(remaining, maxCommentsPageSize)))
		if p.Order != "" {
			params.Set("order", p.Order)
		}
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		items, next, err := fetchPage[wireCommentThread](ctx, c, xquota.OpComments, params)
		if err != nil {
			if isAbsence(err, reasonVideoNotFound) {
				return []Comment{}, nil
			}
			return nil, err
		}
		for _, item := range items {
			if remaining <= 0 {
				break
			}
			comments = append(comments, item.toComment())
			remaining--
		}
		if next == "" {
			break
		}
		pageToken = next
	}
	return comments, nil
}

// =============================================================================
// 字幕
// =============================================================================

// ListCaptions 列出视频的字幕轨。
// 视频不存在或字幕不可用时返回空切片而非错误（软吸收）。
func (c *Client) ListCaptions(ctx context.Context, videoID string) ([]CaptionTrack, error) {
	if videoID == "" {
		return nil, fmt.Errorf("%w: video_id 不能为空", ErrInvalidConfig)
	}

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("videoId", videoID)

	items, _, err := fetchPage[wireCaption](ctx, c, xquota.OpCaptions, params)
	if err != nil {
		if isAbsence(err, reasonVideoNotFound, reasonCaptionNotFound) {
			return []CaptionTrack{}, nil
		}
		return nil, err
	}

	tracks := make([]CaptionTrack, 0, len(items))
	for _, item := range items {
		tracks = append(tracks, item.toTrack())
	}
	return tracks, nil
}

// DownloadCaption 下载字幕轨的原始内容。
// format 为空时使用 srt。
func (c *Client) DownloadCaption(ctx context.Context, captionID, format string) ([]byte, error) {
	if captionID == "" {
		return nil, fmt.Errorf("%w: caption_id 不能为空", ErrInvalidConfig)
	}
	if format == "" {
		format = "srt"
	}

	params := url.Values{}
	params.Set("tfmt", format)
	return c.download(ctx, xquota.OpCaptions, captionID, params)
}

// =============================================================================
// 热门与分类
// =============================================================================

// GetTrendingVideos 拉取地区热门视频，单次调用，最多 50 条。
func (c *Client) GetTrendingVideos(ctx context.Context, p TrendingParams) ([]Video, error) {
	count := p.MaxResults
	if count <= 0 || count > maxTrendingPageSize {
		count = defaultTrendingResults
	}

	params := url.Values{}
	params.Set("part", "snippet,contentDetails,statistics")
	params.Set("chart", "mostPopular")
	params.Set("maxResults", strconv.Itoa(count))
	if p.RegionCode != "" {
		params.Set("regionCode", p.RegionCode)
	}
	if p.CategoryID != "" {
		params.Set("videoCategoryId", p.CategoryID)
	}

	items, _, err := fetchPage[wireVideo](ctx, c, xquota.OpVideos, params)
	if err != nil {
		return nil, err
	}

	videos := make([]Video, 0, len(items))
	for _, item := range items {
		videos = append(videos, item.toVideo())
	}
	return videos, nil
}

// GetVideoCategories 拉取地区的视频分类表。
func (c *Client) GetVideoCategories(ctx context.Context, regionCode string) ([]VideoCategory, error) {
	if regionCode == "" {
		regionCode = "US"
	}

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("regionCode", regionCode)

	items, _, err := fetchPage[wireCategory](ctx, c, xquota.OpCategories, params)
	if err != nil {
		return nil, err
	}

	categories := make([]VideoCategory, 0, len(items))
	for _, item := range items {
		categories = append(categories, item.toCategory())
	}
	return categories, nil
}

// =============================================================================
// 信封解析
// =============================================================================

// fetchPage 发起一次列表调用并解析为具体线格式条目。
// 单个条目解析失败时跳过该条目而不使整页失败。
func fetchPage[T any](ctx context.Context, c *Client, operation string, params url.Values) ([]T, string, error) {
	raw, err := c.execute(ctx, operation, params)
	if err != nil {
		return nil, "", err
	}

	var env listEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, "", &UpstreamError{
			Kind: ErrUnclassifiedUpstream,
			Err:  fmt.Errorf("响应解析失败: %w", err),
		}
	}

	items := make([]T, 0, len(env.Items))
	for _, rawItem := range env.Items {
		var item T
		if err := json.Unmarshal(rawItem, &item); err != nil {
			continue
		}
		items = append(items, item)
	}
	return items, env.NextPageToken, nil
}
