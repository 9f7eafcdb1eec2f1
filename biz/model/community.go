// Package model 定义社区板块核心用到的实体与枚举
package model

import (
	"fmt"
	"time"
)

// EntityKind 计数器所属的实体类型
type EntityKind string

const (
	KindPost     EntityKind = "post"
	KindComment  EntityKind = "comment"
	KindQuestion EntityKind = "question"
)

// Direction 投票方向
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// ParseDirection 解析 "up" / "down"
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case Up, Down:
		return Direction(s), nil
	default:
		return "", fmt.Errorf("model: unknown vote direction %q", s)
	}
}

// Metric 可读取的计数器种类
type Metric string

const (
	MetricView Metric = "view"
	MetricUp   Metric = "up"
	MetricDown Metric = "down"
)

// ParseMetric 解析 "view" / "up" / "down"
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricView, MetricUp, MetricDown:
		return Metric(s), nil
	default:
		return "", fmt.Errorf("model: unknown metric %q", s)
	}
}

// Post 帖子
type Post struct {
	ID        int64     `json:"id"`
	AuthorID  string    `json:"author_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	IsHotPost bool      `json:"is_hot_post"`
	CreatedAt time.Time `json:"created_at"`
}

// Comment 评论
type Comment struct {
	ID        int64     `json:"id"`
	PostID    int64     `json:"post_id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Question 可被收藏/分享的题目
type Question struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	ShareCounter int64     `json:"share_counter"`
	CreatedAt    time.Time `json:"created_at"`
}

// Counts 一个帖子的实时计数
type Counts struct {
	Views int64 `json:"views"`
	Up    int64 `json:"up"`
	Down  int64 `json:"down"`
}

// HotComment 热评及其得分
type HotComment struct {
	Comment
	Up    int64 `json:"up"`
	Down  int64 `json:"down"`
	Score int64 `json:"score"`
}

// Event 发布到消息队列的领域事件
type Event struct {
	Type       string    `json:"type"`
	EntityID   int64     `json:"entity_id,omitempty"`
	EntityIDs  []int64   `json:"entity_ids,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

const (
	EventPostHot        = "post.hot"
	EventRankingUpdated = "question.ranking.updated"
	CommandRecompute    = "ranking.recompute"
)
