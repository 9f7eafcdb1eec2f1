package main

import (
	"flag"
	"log"

	"kcsatboard/biz/router"
	"kcsatboard/internal/bootstrap"
)

func main() {
	configPath := flag.String("config", "conf/config.yaml", "配置文件路径")
	flag.Parse()

	h, cfg, err := bootstrap.Init(*configPath)
	if err != nil {
		log.Fatalf("应用初始化失败: %v", err)
	}

	router.Register(h, cfg.Server.RequestTimeout())

	// Spin 阻塞直到收到退出信号，然后执行 OnShutdown 钩子
	h.Spin()
}
