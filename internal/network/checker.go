// Package network はネットワーク到達性の判定を提供する。
// ログイン・登録の前に、IdPへ問い合わせずにオフラインを検出するために使う。
package network

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync/atomic"
	"time"
)

// Checker はネットワーク到達性を報告する。
type Checker interface {
	Online(ctx context.Context) bool
}

// DialChecker はIdPのホストへのTCP接続可否で到達性を判定する。
type DialChecker struct {
	address string
	timeout time.Duration
	dialer  *net.Dialer
}

// NewDialChecker はtargetURLのホストとポートを対象とするDialCheckerを生成する。
// ポートが省略されている場合はスキームから補う。
func NewDialChecker(targetURL string, timeout time.Duration) (*DialChecker, error) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return nil, fmt.Errorf("invalid connectivity target: %w", err)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("connectivity target has no host: %q", targetURL)
	}

	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "https":
			port = "443"
		case "http":
			port = "80"
		default:
			return nil, fmt.Errorf("unsupported connectivity target scheme: %q", u.Scheme)
		}
	}

	return &DialChecker{
		address: net.JoinHostPort(u.Hostname(), port),
		timeout: timeout,
		dialer:  &net.Dialer{},
	}, nil
}

// Address は接続確認先のhost:portを返す。
func (c *DialChecker) Address() string {
	return c.address
}

// Online は制限時間内にTCP接続できればtrueを返す。
func (c *DialChecker) Online(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := c.dialer.DialContext(ctx, "tcp", c.address)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Static は固定値を返すChecker。接続確認を無効にした場合とテストで使う。
type Static struct {
	online atomic.Bool
}

// NewStatic は初期値onlineのStaticを生成する。
func NewStatic(online bool) *Static {
	s := &Static{}
	s.online.Store(online)
	return s
}

// Set は報告する値を変更する。
func (s *Static) Set(online bool) {
	s.online.Store(online)
}

// Online は設定された値を返す。
func (s *Static) Online(context.Context) bool {
	return s.online.Load()
}

var (
	_ Checker = (*DialChecker)(nil)
	_ Checker = (*Static)(nil)
)
