package crawlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/RecoveryAshes/forumarcane/internal/models"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{name: "去掉fragment", url: "https://e.com/page#section", want: "https://e.com/page"},
		{name: "去掉末尾斜杠", url: "https://e.com/page/", want: "https://e.com/page"},
		{name: "两者都有", url: "https://e.com/page/#top", want: "https://e.com/page"},
		{name: "无需处理", url: "https://e.com/page?a=1", want: "https://e.com/page?a=1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeURL(tt.url); got != tt.want {
				t.Errorf("normalizeURL(%q) = %q, 期望 %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestURLToPath(t *testing.T) {
	c := &MirrorCrawler{outputDir: "mirror"}
	tests := []struct {
		name string
		url  string
		want string
	}{
		{
			name: "站点根路径",
			url:  "https://e.com/",
			want: filepath.Join("mirror", "e.com", "index.html"),
		},
		{
			name: "无扩展名路径",
			url:  "https://e.com/forum/general",
			want: filepath.Join("mirror", "e.com", "forum", "general", "index.html"),
		},
		{
			name: "动态页面",
			url:  "https://e.com/showthread.php",
			want: filepath.Join("mirror", "e.com", "showthread.php.html"),
		},
		{
			name: "静态资源",
			url:  "https://e.com/css/style.css",
			want: filepath.Join("mirror", "e.com", "css", "style.css"),
		},
		{
			name: "带端口的主机",
			url:  "https://e.com:8080/page.html",
			want: filepath.Join("mirror", "e.com_8080", "page.html"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.urlToPath(tt.url); got != tt.want {
				t.Errorf("urlToPath(%q) = %q, 期望 %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestMirrorQueue(t *testing.T) {
	q := newMirrorQueue()
	ctx := context.Background()

	if !q.Idle() {
		t.Error("新队列应为空闲状态")
	}

	q.Push("https://e.com/a")
	q.Push("https://e.com/b")
	if q.PendingCount() != 2 {
		t.Errorf("待处理数 = %d, 期望 2", q.PendingCount())
	}
	if q.Idle() {
		t.Error("有待处理任务时不应空闲")
	}

	// FIFO顺序
	u1, ok := q.Pop(ctx, time.Second)
	if !ok || u1 != "https://e.com/a" {
		t.Errorf("第一个出队 = %q, %v", u1, ok)
	}
	u2, _ := q.Pop(ctx, time.Second)
	if u2 != "https://e.com/b" {
		t.Errorf("第二个出队 = %q", u2)
	}

	// 出队但未完成时仍不空闲
	if q.Idle() {
		t.Error("在途任务未完成时不应空闲")
	}
	q.TaskDone()
	q.TaskDone()
	if !q.Idle() {
		t.Error("全部完成后应空闲")
	}

	// 空队列超时
	start := time.Now()
	if _, ok := q.Pop(ctx, 50*time.Millisecond); ok {
		t.Error("空队列超时后应返回false")
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Error("应等满超时时间")
	}
}

func TestMirrorQueueClear(t *testing.T) {
	q := newMirrorQueue()
	q.Push("https://e.com/a")
	q.Push("https://e.com/b")
	q.Clear()
	if !q.Idle() {
		t.Error("清空后应空闲")
	}
}

// mirrorSite 三页一资源的迷你站点,含一个外域链接和一个锚点链接
func mirrorSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var server *httptest.Server

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<html><body>
			<a href="/about.php">关于</a>
			<a href="%s/page2">第二页</a>
			<a href="https://other.example.com/external">外站</a>
			<a href="#top">锚点</a>
			<a href="mailto:a@b.com">邮件</a>
			<img src="/logo.png">
		</body></html>`, server.URL)
	})
	mux.HandleFunc("/about.php", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><a href="/">首页</a></body></html>`)
	})
	mux.HandleFunc("/page2", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body>第二页</body></html>`)
	})
	mux.HandleFunc("/logo.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("\x89PNG-data"))
	})

	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestMirrorCrawlerRun(t *testing.T) {
	server := mirrorSite(t)
	dir := t.TempDir()

	cfg := models.MirrorConfig{MaxWorkers: 3, Delay: 0}
	crawler, err := NewMirrorCrawler(server.URL, dir, cfg)
	if err != nil {
		t.Fatalf("创建镜像爬虫失败: %v", err)
	}

	var lastCount int
	var mu sync.Mutex
	n, err := crawler.Run(context.Background(), func(count int) {
		mu.Lock()
		lastCount = count
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("镜像失败: %v", err)
	}
	if n != 4 {
		t.Errorf("应保存4个文件,实际 %d", n)
	}
	mu.Lock()
	if lastCount != 4 {
		t.Errorf("进度回调最终值 = %d, 期望 4", lastCount)
	}
	mu.Unlock()

	parsed, _ := url.Parse(server.URL)
	host := strings.ReplaceAll(parsed.Host, ":", "_")

	// 根页面、动态页、无扩展名页、静态资源各就各位
	for _, p := range []string{
		filepath.Join(dir, host, "index.html"),
		filepath.Join(dir, host, "about.php.html"),
		filepath.Join(dir, host, "page2", "index.html"),
		filepath.Join(dir, host, "logo.png"),
	} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("镜像文件应存在: %s (%v)", p, err)
		}
	}

	// 首页中的内链应改写为相对路径,外链保持不动
	home, err := os.ReadFile(filepath.Join(dir, host, "index.html"))
	if err != nil {
		t.Fatal(err)
	}
	content := string(home)
	if !strings.Contains(content, `href="about.php.html"`) {
		t.Errorf("动态页链接应改写为本地路径: %s", content)
	}
	if !strings.Contains(content, `src="logo.png"`) {
		t.Errorf("资源链接应改写为本地路径: %s", content)
	}
	if !strings.Contains(content, "https://other.example.com/external") {
		t.Error("外域链接应保持原样")
	}
	if !strings.Contains(content, "mailto:a@b.com") {
		t.Error("mailto链接应保持原样")
	}
}

func TestMirrorCrawlerCancel(t *testing.T) {
	// 无限生成链接的站点,只有取消才能停下来
	var server *httptest.Server
	var counter int
	var mu sync.Mutex
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		counter++
		n := counter
		mu.Unlock()
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<html><body><a href="/p%d">下一页</a></body></html>`, n)
	}))
	defer server.Close()

	dir := t.TempDir()
	crawler, err := NewMirrorCrawler(server.URL, dir, models.MirrorConfig{MaxWorkers: 2, Delay: 0})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = crawler.Run(ctx, nil)
	if err == nil {
		t.Error("取消后Run应返回context错误")
	}
	if time.Since(start) > 10*time.Second {
		t.Error("取消后应及时退出")
	}
}

func TestNewMirrorCrawlerValidation(t *testing.T) {
	if _, err := NewMirrorCrawler("ftp://e.com", "out", models.MirrorConfig{MaxWorkers: 2, Delay: 0}); err == nil {
		t.Error("非法协议应报错")
	}
	if _, err := NewMirrorCrawler("https://e.com", "out", models.MirrorConfig{MaxWorkers: 0, Delay: 0}); err == nil {
		t.Error("非法并发数应报错")
	}
}
