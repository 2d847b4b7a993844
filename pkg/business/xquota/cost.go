package xquota

// =============================================================================
// 操作成本表
// =============================================================================

// CostTable 操作到整数成本的静态映射。
type CostTable map[string]int64

// 上游平台的操作名称。
// 与 xvideo 的操作端点一一对应。
const (
	OpSearch     = "search"
	OpVideos     = "videos"
	OpChannels   = "channels"
	OpComments   = "comments"
	OpCaptions   = "captions"
	OpCategories = "categories"
)

// defaultCost 未知操作的兜底成本。
const defaultCost int64 = 1

// DefaultCostTable 返回上游平台公布的默认成本表。
// 字幕拉取最贵（200 单位），搜索次之（100 单位），
// 普通条目查询均为 1 单位。
func DefaultCostTable() CostTable {
	return CostTable{
		OpSearch:     100,
		OpVideos:     1,
		OpChannels:   1,
		OpComments:   1,
		OpCaptions:   200,
		OpCategories: 1,
	}
}

// Cost 返回操作的成本。未登记的操作按 1 单位计。
func (t CostTable) Cost(operation string) int64 {
	if c, ok := t[operation]; ok {
		return c
	}
	return defaultCost
}
