// Package keyspace 是缓存 key 的唯一构造入口。
// key 语法: <domain>:<purpose>:<id>[:<subid>]，业务代码不允许手工拼接 key。
package keyspace

import (
	"strconv"
	"strings"
)

// OperationKind 幂等锁所保护的创建类操作
type OperationKind string

const (
	OpPost         OperationKind = "post"
	OpComment      OperationKind = "comment"
	OpQuestionSave OperationKind = "question"
	OpSignup       OperationKind = "signup"
)

const sep = ":"

func join(parts ...string) string {
	return strings.Join(parts, sep)
}

func id(v int64) string {
	return strconv.FormatInt(v, 10)
}

// --- 帖子 ---

// PostViewCount post:viewCount:<pid>
func PostViewCount(postID int64) string {
	return join("post", "viewCount", id(postID))
}

// PostUpVote post:upVote:<pid>
func PostUpVote(postID int64) string {
	return join("post", "upVote", id(postID))
}

// PostDownVote post:downVote:<pid>
func PostDownVote(postID int64) string {
	return join("post", "downVote", id(postID))
}

// PostViewMark 用户当日浏览标记 post:userView:<pid>:<user>
func PostViewMark(postID int64, userID string) string {
	return join("post", "userView", id(postID), userID)
}

// PostVoteMark 用户当日投票标记，up/down 共用一个
func PostVoteMark(postID int64, userID string) string {
	return join("post", "userVote", id(postID), userID)
}

// PostHotMark 热帖晋升标记，只允许一次晋升写库
func PostHotMark(postID int64) string {
	return join("post", "hot", id(postID))
}

// ViewMarkPattern 匹配所有浏览标记，仅供批量清理使用
func ViewMarkPattern() string {
	return join("post", "userView", "*")
}

// --- 评论 ---

// CommentUpVote comment:<cid>:upVote
func CommentUpVote(commentID int64) string {
	return join("comment", id(commentID), "upVote")
}

// CommentDownVote comment:<cid>:downVote
func CommentDownVote(commentID int64) string {
	return join("comment", id(commentID), "downVote")
}

// CommentVoteMark comment:<cid>:user:<user>
func CommentVoteMark(commentID int64, userID string) string {
	return join("comment", id(commentID), "user", userID)
}

// --- 幂等锁 ---

// IdempotencyLock <op>:lock:<actor>[:<hash>]
// hash 为空时锁粒度为 actor 级别 (例如注册)。
func IdempotencyLock(op OperationKind, actorID, hash string) string {
	if hash == "" {
		return join(string(op), "lock", actorID)
	}
	return join(string(op), "lock", actorID, hash)
}

// --- 题目 ---

// QuestionSavedMark question:<user>:isSaved:<qid>
func QuestionSavedMark(userID string, questionID int64) string {
	return join("question", userID, "isSaved", id(questionID))
}

// QuestionRank question:rank:<n>，n 从 1 开始
func QuestionRank(position int) string {
	return join("question", "rank", strconv.Itoa(position))
}

// QuestionSnapshot 题目读缓存
func QuestionSnapshot(questionID int64) string {
	return join("question", "snapshot", id(questionID))
}
