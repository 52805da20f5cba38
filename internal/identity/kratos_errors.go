package identity

import (
	"encoding/json"
	"strings"
)

type kratosMessage struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
	Type string `json:"type"`
}

// kratosErrorBody はKratosのエラーレスポンスのうち説明文の抽出に使う部分。
// フロー送信の失敗ではui.messages/ui.nodes[].messagesに、
// それ以外ではerror.reason/error.messageに説明が入る。
type kratosErrorBody struct {
	UI *struct {
		Messages []kratosMessage `json:"messages"`
		Nodes    []struct {
			Messages []kratosMessage `json:"messages"`
		} `json:"nodes"`
	} `json:"ui"`
	Error *struct {
		Message string `json:"message"`
		Reason  string `json:"reason"`
	} `json:"error"`
}

// describeKratosError はレスポンスボディからユーザー向けの説明文を取り出す。
// 取り出せない場合は空文字列を返す。
func describeKratosError(body []byte) string {
	var parsed kratosErrorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}

	if parsed.UI != nil {
		var texts []string
		for _, m := range parsed.UI.Messages {
			if m.Type == "error" && m.Text != "" {
				texts = append(texts, m.Text)
			}
		}
		for _, n := range parsed.UI.Nodes {
			for _, m := range n.Messages {
				if m.Type == "error" && m.Text != "" {
					texts = append(texts, m.Text)
				}
			}
		}
		if len(texts) > 0 {
			return strings.Join(texts, " ")
		}
	}

	if parsed.Error != nil {
		if parsed.Error.Reason != "" {
			return parsed.Error.Reason
		}
		return parsed.Error.Message
	}
	return ""
}
