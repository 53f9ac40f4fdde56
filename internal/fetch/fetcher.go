package fetch

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/time/rate"

	"github.com/RecoveryAshes/forumarcane/internal/utils"
)

// defaultUserAgent 所有请求统一使用的浏览器标识
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// requestTimeout 单次请求的总超时
const requestTimeout = 30 * time.Second

// readChunkSize 响应体分块读取的块大小
const readChunkSize = 8 * 1024

// HTTPError 非200响应错误
type HTTPError struct {
	StatusCode int
	URL        string
}

// Error 实现error接口
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.URL)
}

// IsRetryable 判断该状态码是否值得重试(服务端错误或限流)
func (e *HTTPError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Fetcher 带限速的HTTP抓取器
// 所有下载共用同一个客户端和限速器,保证全局节奏一致
type Fetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
}

// NewFetcher 创建抓取器
// delay为两次请求之间的最小间隔,为0时不限速
func NewFetcher(delay time.Duration) *Fetcher {
	var limiter *rate.Limiter
	if delay > 0 {
		limiter = rate.NewLimiter(rate.Every(delay), 1)
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: requestTimeout,
		},
		limiter:   limiter,
		userAgent: defaultUserAgent,
	}
}

// FetchPage 抓取HTML页面并返回解码后的文本
func (f *Fetcher) FetchPage(ctx context.Context, url string) (string, error) {
	data, err := f.FetchBytes(ctx, url)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FetchBytes 抓取任意资源并返回解压后的字节
func (f *Fetcher) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	res, err := f.FetchResource(ctx, url)
	if err != nil {
		return nil, err
	}
	return res.Body, nil
}

// Resource 一次抓取的结果
type Resource struct {
	Body        []byte
	ContentType string
}

// FetchResource 抓取资源并保留Content-Type,供按类型分流的调用方使用
func (f *Fetcher) FetchResource(ctx context.Context, url string) (*Resource, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("构建请求失败: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	// 显式声明Accept-Encoding后,标准库不再自动解压,由decompress统一处理
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	// 2xx之外一律视为失败,206等部分成功响应照常读取
	if resp.StatusCode/100 != 2 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: url}
	}

	body, err := readBody(ctx, resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}

	decoded, err := decompress(resp.Header.Get("Content-Encoding"), body)
	if err != nil {
		return nil, err
	}
	return &Resource{
		Body:        decoded,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// readBody 分块读取响应体,块间检查取消信号
// 大文件下载可以在块边界及时中断
func readBody(ctx context.Context, r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	chunk := make([]byte, readChunkSize)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		n, err := r.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
		}
		if err == io.EOF {
			return buf.Bytes(), nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// decompress 根据Content-Encoding头部解压响应体
// 支持 gzip, deflate, br (Brotli) 三种压缩格式
func decompress(contentEncoding string, body []byte) ([]byte, error) {
	encoding := strings.ToLower(strings.TrimSpace(contentEncoding))

	switch encoding {
	case "gzip":
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip解压失败: %w", err)
		}
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("gzip读取失败: %w", err)
		}
		return decompressed, nil

	case "deflate":
		reader := flate.NewReader(bytes.NewReader(body))
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("deflate读取失败: %w", err)
		}
		return decompressed, nil

	case "br":
		reader := brotli.NewReader(bytes.NewReader(body))
		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("brotli读取失败: %w", err)
		}
		return decompressed, nil

	case "":
		// 没有压缩,直接返回原始内容
		return body, nil

	default:
		// 未知编码,返回原始内容并记录警告
		utils.Warnf("未知的Content-Encoding: %s, 按原始内容处理", encoding)
		return body, nil
	}
}
