package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/jpillora/backoff"
	"go.uber.org/zap"

	"HiTrade/internal/logger"
)

const (
	defaultAPIBase = "https://api.telegram.org"
	// maxMessageLen stays under Telegram's 4096 character limit.
	maxMessageLen = 4000
)

// TelegramNotifier sends messages via the Telegram Bot API.
type TelegramNotifier struct {
	BotToken string
	ChatID   string
	BaseURL  string
	Client   *http.Client
}

// NewTelegramNotifier creates a notifier with optional proxy support.
func NewTelegramNotifier(botToken, chatID, proxyURL string) *TelegramNotifier {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &TelegramNotifier{
		BotToken: botToken,
		ChatID:   chatID,
		BaseURL:  defaultAPIBase,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

func (t *TelegramNotifier) endpoint(method string) string {
	base := t.BaseURL
	if base == "" {
		base = defaultAPIBase
	}
	return fmt.Sprintf("%s/bot%s/%s", strings.TrimRight(base, "/"), t.BotToken, method)
}

// Send sends a message to the configured chat, split into several messages when long.
func (t *TelegramNotifier) Send(ctx context.Context, text string) error {
	for _, part := range splitMessage(text, maxMessageLen) {
		if err := t.sendOne(ctx, part); err != nil {
			return err
		}
	}
	return nil
}

func (t *TelegramNotifier) sendOne(ctx context.Context, text string) error {
	payload := map[string]any{
		"chat_id":                  t.ChatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint("sendMessage"), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("telegram API error: status %d, body: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// SendWithRetry sends a message with exponential backoff retry.
func (t *TelegramNotifier) SendWithRetry(ctx context.Context, text string, maxRetries int) error {
	b := &backoff.Backoff{Min: time.Second, Max: 30 * time.Second, Factor: 2, Jitter: true}
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		err := t.Send(ctx, text)
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if i == maxRetries {
			break
		}
		wait := b.Duration()
		logger.Warn("telegram send failed, retrying",
			zap.Int("attempt", i+1), zap.Int("max_attempts", maxRetries+1),
			zap.Duration("backoff", wait), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("all %d attempts failed: %w", maxRetries+1, lastErr)
}

// splitMessage cuts text on line boundaries into parts of at most limit bytes.
// A single line longer than limit is cut mid-line, but never inside a multi-byte rune
// or an HTML tag or entity.
// HTML tags left open at a cut are closed and reopened in the next part, so each part
// may exceed limit by the length of those tags.
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var parts []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			parts = append(parts, strings.TrimRight(cur.String(), "\n"))
			cur.Reset()
		}
	}
	for _, line := range strings.SplitAfter(text, "\n") {
		for len(line) > limit {
			flush()
			cut := safeCut(line, limit)
			parts = append(parts, line[:cut])
			line = line[cut:]
		}
		if cur.Len()+len(line) > limit {
			flush()
		}
		cur.WriteString(line)
	}
	flush()
	return balanceTags(parts)
}

// safeCut returns the largest cut point <= limit that does not split a rune or an
// HTML tag or entity. It falls back to limit when no such point exists.
func safeCut(line string, limit int) int {
	cut := limit
	for cut > 0 && !utf8Start(line[cut]) {
		cut--
	}
	head := line[:cut]
	if i := strings.LastIndexByte(head, '<'); i > strings.LastIndexByte(head, '>') && i > 0 {
		cut = i
	}
	head = line[:cut]
	if i := strings.LastIndexByte(head, '&'); i > strings.LastIndexByte(head, ';') && i > 0 {
		cut = i
	}
	if cut == 0 {
		return limit
	}
	return cut
}

var tagPattern = regexp.MustCompile(`<(/?)([a-zA-Z]+)[^>]*>`)

// balanceTags closes tags still open at the end of a part and reopens them at
// the start of the next one.
func balanceTags(parts []string) []string {
	var open []string // full opening tags, outermost first
	for i, p := range parts {
		prefix := strings.Join(open, "")
		for _, m := range tagPattern.FindAllStringSubmatch(p, -1) {
			if m[1] == "" {
				open = append(open, m[0])
				continue
			}
			for j := len(open) - 1; j >= 0; j-- {
				if tagName(open[j]) == strings.ToLower(m[2]) {
					open = append(open[:j], open[j+1:]...)
					break
				}
			}
		}
		var suffix strings.Builder
		for j := len(open) - 1; j >= 0; j-- {
			suffix.WriteString("</" + tagName(open[j]) + ">")
		}
		parts[i] = prefix + p + suffix.String()
	}
	return parts
}

func tagName(tag string) string {
	m := tagPattern.FindStringSubmatch(tag)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[2])
}

func utf8Start(b byte) bool { return b&0xC0 != 0x80 }
