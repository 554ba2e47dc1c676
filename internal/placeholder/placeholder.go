// Package placeholder splices answer controls into rich passage text at
// {{token}} markers and keeps them in step with the learner's answers.
package placeholder

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/SAP-F-2025/exam-engine/internal/models"
)

// MaxInputLength caps what a learner can type into an inline control.
const MaxInputLength = 50

var tokenPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9]+)\s*\}\}`)

// Truncate cuts value to MaxInputLength runes.
func Truncate(value string) string {
	if r := []rune(value); len(r) > MaxInputLength {
		return string(r[:MaxInputLength])
	}
	return value
}

// ContainsInlinePlaceholders reports whether text has at least one well-formed token.
func ContainsInlinePlaceholders(text string) bool {
	return tokenPattern.MatchString(text)
}

type NodeKind int

const (
	NodeMarkup NodeKind = iota
	NodeControl
)

type Node struct {
	Kind    NodeKind
	Markup  string
	Control *Control
}

// Control is a text entry bound to one question.
type Control struct {
	ID              string `json:"id"`
	QuestionID      uint   `json:"question_id"`
	Label           string `json:"label"`
	Token           string `json:"token"`
	MaxLength       int    `json:"max_length"`
	Autocomplete    bool   `json:"autocomplete"`
	StopPropagation bool   `json:"stop_propagation"`
}

// Template is the spliced render tree. Unbound counts tokens left as
// literal text because there were more tokens than questions.
type Template struct {
	Nodes   []Node
	Bound   int
	Unbound int
}

// Controls lists the bound controls in document order.
func (t Template) Controls() []Control {
	var out []Control
	for _, n := range t.Nodes {
		if n.Kind == NodeControl {
			out = append(out, *n.Control)
		}
	}
	return out
}

// ControlRefs maps a question ID to the ID of its control.
type ControlRefs map[uint]string

func ControlID(questionID uint) string {
	return fmt.Sprintf("inline-placeholder-%d", questionID)
}

// Splice walks text left to right and binds the i-th token to questions[i].
// Token names are ignored. Markup around and between tokens is kept verbatim.
func Splice(text string, questions []models.Question) (Template, ControlRefs) {
	var (
		tpl  Template
		refs = make(ControlRefs, len(questions))
		last int
	)

	appendMarkup := func(s string) {
		if s == "" {
			return
		}
		if n := len(tpl.Nodes); n > 0 && tpl.Nodes[n-1].Kind == NodeMarkup {
			tpl.Nodes[n-1].Markup += s
			return
		}
		tpl.Nodes = append(tpl.Nodes, Node{Kind: NodeMarkup, Markup: s})
	}

	for i, loc := range tokenPattern.FindAllStringSubmatchIndex(text, -1) {
		appendMarkup(text[last:loc[0]])
		last = loc[1]

		if i >= len(questions) {
			appendMarkup(text[loc[0]:loc[1]])
			tpl.Unbound++
			continue
		}

		q := questions[i]
		ctrl := &Control{
			ID:              ControlID(q.ID),
			QuestionID:      q.ID,
			Label:           displayLabel(q.DisplayNumber),
			Token:           text[loc[2]:loc[3]],
			MaxLength:       MaxInputLength,
			StopPropagation: true,
		}
		tpl.Nodes = append(tpl.Nodes, Node{Kind: NodeControl, Control: ctrl})
		refs[q.ID] = ctrl.ID
		tpl.Bound++
	}
	appendMarkup(text[last:])

	return tpl, refs
}

func displayLabel(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}
