package alert

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/openballot/voting-core/logging"
)

const sendTimeout = 10 * time.Second

var (
	telegramAPIBase = "https://api.telegram.org"
	httpClient      = &http.Client{Timeout: sendTimeout}
)

// SendTelegramMessage pushes an operator notification. Failures are logged
// and swallowed; alerting never blocks the caller.
func SendTelegramMessage(identity string, botId string, chatId string, msg string) {
	if botId == "" || chatId == "" || msg == "" {
		return
	}

	endPoint := fmt.Sprintf("%s/bot%s/sendMessage", telegramAPIBase, botId)
	formData := url.Values{
		"chat_id":    {chatId},
		"parse_mode": {"html"},
		"text":       {fmt.Sprintf("%s: %s", identity, msg)},
	}
	resp, err := httpClient.Post(endPoint, "application/x-www-form-urlencoded",
		strings.NewReader(formData.Encode()))
	if err != nil {
		logging.Logger.Errorf("send telegram message error, chat_id=%s, err=%s", chatId, err.Error())
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		logging.Logger.Errorf("telegram rejected alert, status=%d, chat_id=%s", resp.StatusCode, chatId)
	}
}
