package core

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/RecoveryAshes/forumarcane/internal/fetch"
	"github.com/RecoveryAshes/forumarcane/internal/models"
)

func TestMaxListingPage(t *testing.T) {
	tests := []struct {
		name string
		html string
		want int
	}{
		{
			name: "查询式分页",
			html: `<a href="/forumdisplay.php?f=1&page=2">2</a><a href="/forumdisplay.php?f=1&page=17">17</a>`,
			want: 17,
		},
		{
			name: "路径式分页",
			html: `<a href="/forums/general/page-3">3</a><a href="/forums/general/page-9">9</a>`,
			want: 9,
		},
		{
			name: "无分页",
			html: `<a href="/showthread.php?t=1">主题</a>`,
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaxListingPage(tt.html); got != tt.want {
				t.Errorf("MaxListingPage = %d, 期望 %d", got, tt.want)
			}
		})
	}
}

func TestListingPageURLs(t *testing.T) {
	t.Run("无既有参数", func(t *testing.T) {
		urls := ListingPageURLs("https://f.example.com/forum/general", 3, 1)
		want := []string{
			"https://f.example.com/forum/general",
			"https://f.example.com/forum/general?page=2",
			"https://f.example.com/forum/general?page=3",
		}
		if len(urls) != len(want) {
			t.Fatalf("页面数 = %d, 期望 %d", len(urls), len(want))
		}
		for i := range want {
			if urls[i] != want[i] {
				t.Errorf("第%d页 = %q, 期望 %q", i+1, urls[i], want[i])
			}
		}
	})

	t.Run("已有查询参数", func(t *testing.T) {
		urls := ListingPageURLs("https://f.example.com/forumdisplay.php?f=5", 2, 1)
		if urls[1] != "https://f.example.com/forumdisplay.php?f=5&page=2" {
			t.Errorf("第2页 = %q", urls[1])
		}
	})

	t.Run("起始页裁剪", func(t *testing.T) {
		urls := ListingPageURLs("https://f.example.com/forum", 5, 3)
		if len(urls) != 3 {
			t.Fatalf("从第3页开始应有3页,实际 %d", len(urls))
		}
		if urls[0] != "https://f.example.com/forum?page=3" {
			t.Errorf("首个页面 = %q", urls[0])
		}
	})
}

func TestStripPageParam(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{
			name: "查询式页码",
			url:  "https://f.example.com/showthread.php?t=1&page=3",
			want: "https://f.example.com/showthread.php?t=1",
		},
		{
			name: "页码为首参数",
			url:  "https://f.example.com/showthread.php?page=3&t=1",
			want: "https://f.example.com/showthread.php?t=1",
		},
		{
			name: "路径式页码",
			url:  "https://f.example.com/threads/topic.55/page-4",
			want: "https://f.example.com/threads/topic.55",
		},
		{
			name: "无页码",
			url:  "https://f.example.com/showthread.php?t=1",
			want: "https://f.example.com/showthread.php?t=1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripPageParam(tt.url); got != tt.want {
				t.Errorf("StripPageParam(%q) = %q, 期望 %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestExtractThreadLinks(t *testing.T) {
	html := `<html><body>
		<a href="/showthread.php?t=101">第一个主题</a>
		<a href="/showthread.php?t=102&page=2">第二个主题</a>
		<a href="/members/user.5/">用户主页</a>
		<a href="https://other.example.com/viewtopic.php?t=103">外站主题</a>
	</body></html>`

	links := ExtractThreadLinks(html, "https://f.example.com/forumdisplay.php?f=1")

	if len(links) != 3 {
		t.Fatalf("应提取3条主题链接,实际 %d: %v", len(links), links)
	}
	if links[0].ID != "101" || links[0].Title != "第一个主题" {
		t.Errorf("第一条不符: %+v", links[0])
	}
	if links[0].URL != "https://f.example.com/showthread.php?t=101" {
		t.Errorf("URL应解析为绝对地址: %q", links[0].URL)
	}
	// 分页链接应归一到主题首页
	if links[1].URL != "https://f.example.com/showthread.php?t=102" {
		t.Errorf("应去掉页码参数: %q", links[1].URL)
	}
}

func TestDiscoverThreadPages(t *testing.T) {
	t.Run("vBulletin分页", func(t *testing.T) {
		html := `<div class="pagenav">
			<a href="/showthread.php?t=1&page=2">2</a>
			<a href="/showthread.php?t=1&page=5">5</a>
		</div>`
		pages := DiscoverThreadPages("https://f.example.com/showthread.php?t=1", html)
		if len(pages) != 4 {
			t.Fatalf("应有4个后续页,实际 %d: %v", len(pages), pages)
		}
		if pages[0] != "https://f.example.com/showthread.php?t=1&page=2" {
			t.Errorf("第2页URL = %q", pages[0])
		}
		if pages[3] != "https://f.example.com/showthread.php?t=1&page=5" {
			t.Errorf("第5页URL = %q", pages[3])
		}
	})

	t.Run("XenForo分页", func(t *testing.T) {
		html := `<nav class="pagination"><a href="/threads/topic.55/page-3">3</a></nav>`
		pages := DiscoverThreadPages("https://f.example.com/threads/topic.55/", html)
		if len(pages) != 2 {
			t.Fatalf("应有2个后续页,实际 %d: %v", len(pages), pages)
		}
		if pages[0] != "https://f.example.com/threads/topic.55/page-2" {
			t.Errorf("第2页URL = %q", pages[0])
		}
	})

	t.Run("单页主题", func(t *testing.T) {
		pages := DiscoverThreadPages("https://f.example.com/showthread.php?t=1", "<html><body>无分页</body></html>")
		if len(pages) != 0 {
			t.Errorf("单页主题不应有后续页: %v", pages)
		}
	})
}

func TestDiscoverAllThreads(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/section", func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		switch page {
		case "", "1":
			fmt.Fprint(w, `<a href="/section?page=2">2</a>
				<a href="/showthread.php?t=1">主题一</a>
				<a href="/showthread.php?t=2">主题二</a>`)
		case "2":
			fmt.Fprint(w, `<a href="/showthread.php?t=2">主题二(重复)</a>
				<a href="/showthread.php?t=3">主题三</a>`)
		default:
			http.NotFound(w, r)
		}
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := models.BackupConfig{Delay: 0, MaxWorkers: 4, StartPage: 1}
	threads, err := DiscoverAllThreads(context.Background(), fetch.NewFetcher(0), server.URL+"/section", cfg, nil)
	if err != nil {
		t.Fatalf("发现失败: %v", err)
	}

	if len(threads) != 3 {
		t.Fatalf("去重后应有3个主题,实际 %d: %v", len(threads), threads)
	}
	wantIDs := []string{"1", "2", "3"}
	for i, id := range wantIDs {
		if threads[i].ID != id {
			t.Errorf("第%d个主题ID = %q, 期望 %q", i, threads[i].ID, id)
		}
	}
	// 重复ID应保留首次出现的标题
	if threads[1].Title != "主题二" {
		t.Errorf("重复主题应保留首次标题: %q", threads[1].Title)
	}
}
