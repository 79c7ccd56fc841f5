package streaming

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Search info render modes.
const (
	SearchInfoTable = "table"
	SearchInfoText  = "text"
)

// RenderSearchInfo formats a web_search_info payload (an array of results, or an
// object holding one under "results") as markdown. Unknown modes render as a table.
func RenderSearchInfo(info gjson.Result, mode string) string {
	results := info
	if !results.IsArray() {
		results = info.Get("results")
	}
	items := results.Array()
	if len(items) == 0 {
		return ""
	}

	var b strings.Builder
	if mode == SearchInfoText {
		for i, item := range items {
			title, link := resultTitle(item), item.Get("url").String()
			fmt.Fprintf(&b, "%d. [%s](%s)\n", i+1, title, link)
			if snippet := strings.TrimSpace(item.Get("snippet").String()); snippet != "" {
				fmt.Fprintf(&b, "   %s\n", snippet)
			}
		}
		return strings.TrimRight(b.String(), "\n")
	}

	b.WriteString("| 序号 | 网站URL | 来源 |\n")
	b.WriteString("| :---: | :--- | :--- |\n")
	for i, item := range items {
		fmt.Fprintf(&b, "| %d | [%s](%s) | %s |\n",
			i+1,
			escapeCell(resultTitle(item)),
			item.Get("url").String(),
			escapeCell(item.Get("hostname").String()),
		)
	}
	return strings.TrimRight(b.String(), "\n")
}

func resultTitle(item gjson.Result) string {
	if title := strings.TrimSpace(item.Get("title").String()); title != "" {
		return title
	}
	return item.Get("url").String()
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
