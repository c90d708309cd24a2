// Package security は上流API呼び出しの安全対策を提供する。
package security

import (
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// allowedSchemes は上流URLとして許可するスキーム。
var allowedSchemes = []string{"http", "https"}

// blockedPrefixes は上流として接続を許可しないアドレス範囲。
// プライベート、ループバック、リンクローカル（メタデータIPを含む）など。
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fe80::/10"),
	netip.MustParsePrefix("fc00::/7"),
}

// ClientOptions は上流用HTTPクライアントの設定。
type ClientOptions struct {
	// Timeout はリクエスト全体（ボディ読み取りを含む）のタイムアウト。0は無制限。
	Timeout time.Duration
	// Guard が有効な場合、safeurlによりDNS解決後の接続先IPを検証する。
	Guard bool
}

// NewUpstreamClient は上流API用のHTTPクライアントを生成する。
// Guard有効時はプライベートIPやループバックへの接続を拒否し、
// 80/443番ポートのみ許可する。DNS再バインディングもDialerで防ぐ。
func NewUpstreamClient(opts ClientOptions) *http.Client {
	if !opts.Guard {
		return &http.Client{Timeout: opts.Timeout}
	}

	config := safeurl.GetConfigBuilder().
		SetTimeout(opts.Timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443).
		Build()

	return safeurl.Client(config).Client
}

// ValidateBaseURL は設定された上流ベースURLを起動時に静的検証する。
// guardがfalseの場合はスキームとホストのみ確認し、ローカルのモックサーバーも許可する。
func ValidateBaseURL(rawURL string, guard bool) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("disallowed scheme: %q (allowed: %v)", parsed.Scheme, allowedSchemes)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}
	if parsed.RawQuery != "" || parsed.Fragment != "" {
		return fmt.Errorf("base URL must not contain query or fragment: %s", rawURL)
	}

	if !guard {
		return nil
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if isBlockedAddr(addr) {
			return fmt.Errorf("blocked IP address: %s", addr)
		}
		return nil
	}
	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("blocked host: %s", host)
	}
	return nil
}

func isBlockedAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range blockedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
