package router

import (
	"context"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"kcsatboard/biz/handler/community"
)

// Register 注册所有路由，timeout 为单个请求的超时 (<= 0 不限制)
func Register(h *server.Hertz, timeout time.Duration) {
	h.GET("/ping", func(ctx context.Context, c *app.RequestContext) {
		c.JSON(consts.StatusOK, utils.H{"message": "pong"})
	})

	v1 := h.Group("/api/v1", requestTimeout(timeout))

	// 注册流程在身份建立之前
	v1.POST("/members/signup-lock", community.SignupLock)
	v1.GET("/questions/rank", community.RankedQuestions)
	v1.GET("/posts/:pid/counts", community.GetPostCounts)
	v1.GET("/posts/:pid/hot-comments", community.HotComments)
	v1.GET("/comments/:cid/counts/:metric", community.GetCommentCount)

	authed := v1.Group("", community.RequireUser())
	authed.POST("/posts", community.WritePost)
	authed.POST("/posts/:pid/views", community.RecordView)
	authed.POST("/posts/:pid/votes/:dir", community.VotePost)
	authed.POST("/posts/:pid/comments", community.WriteComment)
	authed.POST("/comments/:cid/votes/:dir", community.VoteComment)
	authed.POST("/questions/:qid/save", community.SaveQuestion)
}

// requestTimeout 给下游的缓存/数据库调用设置截止时间
func requestTimeout(d time.Duration) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		if d <= 0 {
			c.Next(ctx)
			return
		}
		tctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		c.Next(tctx)
	}
}
