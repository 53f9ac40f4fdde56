// Package crawlers 提供整站镜像爬取功能
//
// # 概述
//
// crawlers包实现了同域广度优先的整站镜像:从入口URL出发抓取同域的
// 全部页面和资源,把内部链接改写为相对本地路径,使镜像目录可以离线浏览。
//
// # 核心组件
//
// ## MirrorCrawler
//
// 镜像爬虫主体,管理工作协程池、已访问集合和下载计数。
// HTML页面在落盘前经过链接改写,其余资源按原始字节保存。
//
//	crawler, err := NewMirrorCrawler("https://example.com", "site_mirror", cfg)
//	if err != nil { /* 处理错误 */ }
//	n, err := crawler.Run(ctx, func(count int) { /* 进度 */ })
//
// ## mirrorQueue
//
// 并发安全的URL队列,跟踪未完成任务数(排队中 + 处理中),
// 两者归零即整站抓完。入队不做去重,去重统一发生在出队时刻,
// 由MirrorCrawler的已访问集合原子判定。
//
// # 本地路径映射
//
//   - 目录型路径(以/结尾)        → <路径>/index.html
//   - 无扩展名路径               → <路径>/index.html
//   - 动态页(.php)              → <路径>.php.html
//   - 其余资源                   → 原路径
//
// 每个域名占一个子目录,主机名中的":"替换为"_"。
//
// # 关停语义
//
// 正常结束: 队列排空且无在途任务。取消: 清空队列后向每个工作协程
// 投递一个关停信号,限时等待全部协程退出。两种路径都返回已保存的文件数。
package crawlers
