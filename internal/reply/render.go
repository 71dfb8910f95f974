// Package reply turns a Decision into the text of an outbound reply.
package reply

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/captvenkat/faujnet-backend/internal/classify"
	"github.com/captvenkat/faujnet-backend/internal/core"
)

// Message is a rendered reply ready to be composed and delivered
type Message struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	InReplyTo string `json:"in_reply_to,omitempty"`
	Reference string `json:"reference"`
	Kind      string `json:"kind"`
	Action    string `json:"action"`
}

var prompts = map[string]string{
	classify.ParamService:      "Which service does your question relate to? Please reply naming one of Army, Navy, Air Force, Paramilitary or Coast Guard.",
	classify.ParamCategory:     "What kind of opportunity are you looking for? For example employment, training, scholarship, resettlement, welfare, housing, healthcare or education.",
	classify.FieldOrganisation: "Please reply with the name of the organisation offering this opportunity, on a line starting with \"Organisation:\".",
	classify.FieldTitle:        "Please reply with the title of the opportunity, on a line starting with \"Title:\".",
	classify.FieldCategory:     "Please reply with the category of the opportunity, on a line starting with \"Category:\".",
	classify.FieldDescription:  "Please reply with a short description of the opportunity, on a line starting with \"Description:\".",
	classify.FieldRelevance:    "Please confirm whether this opportunity is open to ex-servicemen or veterans.",
}

var funcs = template.FuncMap{
	"inc":    func(i int) int { return i + 1 },
	"prompt": func(field string) string { return prompts[field] },
	"title":  func(s string) string { return strings.ReplaceAll(strings.ToLower(s), "_", " ") },
}

const footer = `
Reference: {{.Reference}}

This is an automated reply. Replies to this address are not read by a person.
`

const resultList = `{{range $i, $r := .Results}}
{{inc $i}}. {{$r.Title}}{{with $r.Authority}} ({{.}}){{end}}{{with $r.IssuedOn}}, {{.}}{{end}}{{if eq $r.Status "CONFLICT"}} [disputed]{{end}}
   {{$r.Detail}}
{{end}}`

var templates = map[core.Action]*template.Template{
	core.ActionResponse: parse("response", `Thank you for your query.
{{if eq .QueryType "RULE_QUERY"}}
The following official records apply to {{title .Params.Service}} personnel:
{{else}}
The following opportunities are currently listed{{with .Params.Category}} under {{title .}}{{end}}:
{{end}}`+resultList+footer),

	core.ActionConflict: parse("conflict", `Thank you for your query.

The official records we hold on this subject do not agree with each other.
Please confirm with the issuing authority before acting on any of them.
`+resultList+footer),

	core.ActionNoMatch: parse("no_match", `Thank you for your query.

We could not find a current record matching your question. New circulars and
opportunities are added regularly, so please try again later.
`+footer),

	core.ActionClarification: parse("clarification", `Thank you for writing to us.

We need one more detail before we can help:

{{prompt .MissingField}}
`+footer),

	core.ActionAccepted: parse("accepted", `Thank you for your submission.

"{{.Fields.Title}}" from {{.Fields.Organisation}} has been listed under {{title .Fields.Category}}.
Listing number: {{.OpportunityID}}
`+footer),

	core.ActionDuplicate: parse("duplicate", `Thank you for your submission.

"{{.Fields.Title}}" from {{.Fields.Organisation}} is already listed, so no new
listing was created.
`+footer),

	core.ActionRejected: parse("rejected", `Thank you for your submission.

This opportunity does not appear to be open to ex-servicemen or veterans, so it
has not been listed. If this is a mistake, please resubmit stating clearly that
veterans may apply.
`+footer),
}

func parse(name, text string) *template.Template {
	return template.Must(template.New(name).Funcs(funcs).Parse(text))
}

// Render produces the reply for a Decision. Silent decisions render nothing
// and return a nil Message.
func Render(d *core.Decision, original *core.Email, from string) (*Message, error) {
	if d == nil || d.IsSilent() {
		return nil, nil
	}

	tmpl, ok := templates[d.Action]
	if !ok {
		return nil, fmt.Errorf("no reply template for action %s", d.Action)
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, d); err != nil {
		return nil, fmt.Errorf("failed to render %s reply: %w", d.Action, err)
	}

	return &Message{
		From:      from,
		To:        original.From,
		Subject:   Subject(d.Kind, original.Subject),
		Body:      body.String(),
		InReplyTo: original.MessageID,
		Reference: d.Reference,
		Kind:      string(d.Kind),
		Action:    string(d.Action),
	}, nil
}

// Subject builds the reply subject from the original one
func Subject(kind core.EventKind, original string) string {
	original = strings.TrimSpace(original)
	if original == "" {
		if kind == core.EventSubmit {
			return "Your FaujNet submission"
		}
		return "Your FaujNet query"
	}
	if strings.HasPrefix(strings.ToLower(original), "re:") {
		return original
	}
	return "Re: " + original
}
