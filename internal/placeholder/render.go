package placeholder

import (
	"html"
	"strconv"
	"strings"
)

// Render produces HTML for a server-side preview. Markup is emitted as is;
// control values and labels are escaped.
func Render(tpl Template, values map[string]string) string {
	var sb strings.Builder
	for _, n := range tpl.Nodes {
		if n.Kind == NodeMarkup {
			sb.WriteString(n.Markup)
			continue
		}
		c := n.Control
		sb.WriteString(`<span class="inline-input-wrapper"><input type="text" class="inline-input"`)
		sb.WriteString(` id="` + html.EscapeString(c.ID) + `"`)
		sb.WriteString(` data-question-id="` + strconv.FormatUint(uint64(c.QuestionID), 10) + `"`)
		sb.WriteString(` placeholder="` + html.EscapeString(c.Label) + `"`)
		sb.WriteString(` maxlength="` + strconv.Itoa(c.MaxLength) + `"`)
		if !c.Autocomplete {
			sb.WriteString(` autocomplete="off"`)
		}
		sb.WriteString(` value="` + html.EscapeString(values[c.ID]) + `"></span>`)
	}
	return sb.String()
}
