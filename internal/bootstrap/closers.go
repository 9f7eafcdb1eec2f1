package bootstrap

import "context"

// closers 记录已创建的资源，按创建的逆序释放
// 初始化中途失败和正常退出走同一条路径。
type closers struct {
	fns []func(ctx context.Context)
}

func (c *closers) add(fn func(ctx context.Context)) {
	c.fns = append(c.fns, fn)
}

// closeAll 逆序执行并清空，重复调用无副作用
func (c *closers) closeAll(ctx context.Context) {
	for i := len(c.fns) - 1; i >= 0; i-- {
		c.fns[i](ctx)
	}
	c.fns = nil
}
