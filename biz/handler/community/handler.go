// Package community 暴露计数、热评、排行与防重创建的 HTTP 接口。
// handler 只做参数解析和错误码映射，业务都在 service 层。
package community

import (
	"context"
	"errors"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"go.uber.org/zap"

	"kcsatboard/biz/model"
	"kcsatboard/biz/service"
)

// UserHeader 认证网关写入的用户邮箱
const UserHeader = "X-User-Email"

const userKey = "user_email"

var (
	engagementSvc service.EngagementService
	communitySvc  service.CommunityService
	hotComments   service.HotCommentSelector
	rankingSvc    service.RankingEngine
	logger        = zap.NewNop()
)

// Services handler 依赖的服务集合
type Services struct {
	Engagement  service.EngagementService
	Community   service.CommunityService
	HotComments service.HotCommentSelector
	Ranking     service.RankingEngine
}

// SetServices 注入服务和 logger，必须在注册路由前调用
func SetServices(s Services, l *zap.Logger) {
	engagementSvc = s.Engagement
	communitySvc = s.Community
	hotComments = s.HotComments
	rankingSvc = s.Ranking
	if l != nil {
		logger = l.Named("community_handler")
	}
}

type postRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type commentRequest struct {
	Content string `json:"content"`
}

type signupRequest struct {
	Email string `json:"email"`
}

// --- 中间件 ---

// RequireUser 读取认证网关传来的身份，没有身份直接 401
func RequireUser() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		email := string(c.GetHeader(UserHeader))
		if email == "" {
			c.AbortWithStatusJSON(consts.StatusUnauthorized, envelope("E401", "missing user identity", nil))
			return
		}
		c.Set(userKey, email)
		c.Next(ctx)
	}
}

func currentUser(c *app.RequestContext) string {
	return c.GetString(userKey)
}

// --- 帖子 ---

// WritePost POST /api/v1/posts
func WritePost(ctx context.Context, c *app.RequestContext) {
	var req postRequest
	if err := c.Bind(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	post, err := communitySvc.WritePost(ctx, currentUser(c), req.Title, req.Content)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(consts.StatusCreated, envelope("OK", "created", post))
}

// RecordView POST /api/v1/posts/:pid/views
func RecordView(ctx context.Context, c *app.RequestContext) {
	postID, ok := idParam(c, "pid")
	if !ok {
		return
	}
	n, err := engagementSvc.RecordView(ctx, postID, currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, envelope("OK", "", utils.H{"views": n}))
}

// VotePost POST /api/v1/posts/:pid/votes/:dir
func VotePost(ctx context.Context, c *app.RequestContext) {
	vote(ctx, c, model.KindPost, "pid")
}

// VoteComment POST /api/v1/comments/:cid/votes/:dir
func VoteComment(ctx context.Context, c *app.RequestContext) {
	vote(ctx, c, model.KindComment, "cid")
}

func vote(ctx context.Context, c *app.RequestContext, kind model.EntityKind, param string) {
	id, ok := idParam(c, param)
	if !ok {
		return
	}
	dir, err := model.ParseDirection(c.Param("dir"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	n, err := engagementSvc.RecordVote(ctx, kind, id, currentUser(c), dir)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, envelope("OK", "", utils.H{"direction": dir, "count": n}))
}

// GetPostCounts GET /api/v1/posts/:pid/counts
func GetPostCounts(ctx context.Context, c *app.RequestContext) {
	postID, ok := idParam(c, "pid")
	if !ok {
		return
	}
	counts, err := engagementSvc.GetPostCounts(ctx, postID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, envelope("OK", "", counts))
}

// --- 评论 ---

// GetCommentCount GET /api/v1/comments/:cid/counts/:metric
func GetCommentCount(ctx context.Context, c *app.RequestContext) {
	commentID, ok := idParam(c, "cid")
	if !ok {
		return
	}
	metric, err := model.ParseMetric(c.Param("metric"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	n, err := engagementSvc.GetCount(ctx, model.KindComment, commentID, metric)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, envelope("OK", "", utils.H{"metric": metric, "count": n}))
}

// WriteComment POST /api/v1/posts/:pid/comments
func WriteComment(ctx context.Context, c *app.RequestContext) {
	postID, ok := idParam(c, "pid")
	if !ok {
		return
	}
	var req commentRequest
	if err := c.Bind(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	comment, err := communitySvc.WriteComment(ctx, currentUser(c), postID, req.Content)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(consts.StatusCreated, envelope("OK", "created", comment))
}

// HotComments GET /api/v1/posts/:pid/hot-comments
func HotComments(ctx context.Context, c *app.RequestContext) {
	postID, ok := idParam(c, "pid")
	if !ok {
		return
	}
	list, err := communitySvc.ListComments(ctx, postID)
	if err != nil {
		writeError(c, err)
		return
	}
	hot, err := hotComments.SelectHotComments(ctx, postID, list)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, envelope("OK", "", hot))
}

// --- 题目 ---

// SaveQuestion POST /api/v1/questions/:qid/save
func SaveQuestion(ctx context.Context, c *app.RequestContext) {
	questionID, ok := idParam(c, "qid")
	if !ok {
		return
	}
	saved, err := communitySvc.SaveQuestion(ctx, currentUser(c), questionID)
	if err != nil {
		writeError(c, err)
		return
	}
	if !saved {
		c.JSON(consts.StatusConflict, envelope("E015", "question already saved", utils.H{"saved": false}))
		return
	}
	c.JSON(consts.StatusOK, envelope("OK", "", utils.H{"saved": true}))
}

// RankedQuestions GET /api/v1/questions/rank
func RankedQuestions(ctx context.Context, c *app.RequestContext) {
	list, err := rankingSvc.GetRankedQuestions(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, envelope("OK", "", list))
}

// --- 会员 ---

// SignupLock POST /api/v1/members/signup-lock
func SignupLock(ctx context.Context, c *app.RequestContext) {
	var req signupRequest
	if err := c.Bind(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}
	if err := communitySvc.AcquireSignup(ctx, req.Email); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, envelope("OK", "", nil))
}

// --- 辅助函数 ---

func envelope(code, message string, data any) utils.H {
	return utils.H{"code": code, "message": message, "data": data}
}

func idParam(c *app.RequestContext, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

func badRequest(c *app.RequestContext, msg string) {
	c.JSON(consts.StatusBadRequest, envelope("E400", msg, nil))
}

// writeError 把 service 错误映射为 HTTP 状态码
func writeError(c *app.RequestContext, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidArgument):
		badRequest(c, err.Error())
	case errors.Is(err, service.ErrDuplicateSubmission):
		c.JSON(consts.StatusConflict, envelope("E409", "duplicate submission", nil))
	case errors.Is(err, service.ErrEntityNotFound):
		c.JSON(consts.StatusNotFound, envelope("E404", "entity not found", nil))
	case errors.Is(err, service.ErrCounterCorrupted):
		logger.Error("计数器损坏", zap.Error(err))
		c.JSON(consts.StatusInternalServerError, envelope("E013", "counter corrupted", nil))
	case errors.Is(err, service.ErrCacheUnavailable), errors.Is(err, context.DeadlineExceeded):
		logger.Warn("缓存不可用", zap.Error(err))
		c.Header("Retry-After", "1")
		c.JSON(consts.StatusServiceUnavailable, envelope("E503", "temporarily unavailable, retry", nil))
	default:
		logger.Error("请求处理失败", zap.Error(err))
		c.JSON(consts.StatusInternalServerError, envelope("E500", "internal error", nil))
	}
}
