// Package command turns raw chat text into queue actions.
package command

import (
	"strings"

	"github.com/Arimodu/wipbot/internal/domain/request"
)

// ActionKind classifies the result of interpreting a chat message.
type ActionKind int

const (
	ActionIgnore ActionKind = iota // not a wip command at all
	ActionSubmit                   // enqueue a new request
	ActionCancel                   // remove the sender's oldest request
	ActionReject                   // command understood but refused
)

// Rejection codes. Each keys a configured chat message template.
const (
	CodeNoPermission    = "no_permission"
	CodeUserMaxRequests = "user_max_requests"
	CodeQueueFull       = "queue_full"
	CodeLinkBlocked     = "link_blocked"
	CodeInvalidRequest  = "invalid_request"
)

// Action is the typed outcome of interpreting one message.
type Action struct {
	Kind ActionKind
	Code string            // set when Kind == ActionReject
	Item request.QueueItem // set when Kind == ActionSubmit
}

// Rewrite is one ordered find/replace pair applied to resolved URLs.
type Rewrite struct {
	Find    string
	Replace string
}

// CodeTemplate maps a request-code prefix to a download URL template with a
// %s placeholder for the code.
type CodeTemplate struct {
	Prefix string
	URL    string
}

// Config is the interpreter's immutable configuration snapshot.
type Config struct {
	Command       string
	UndoKeyword   string
	QueueSize     int
	Quotas        request.Quotas
	CodeAlphabet  string
	BlockSentinel string
	URLWhitelist  []string
	URLRewrites   []Rewrite
	CodeTemplates []CodeTemplate
}

// QueueView is the read-only queue state the interpreter consults.
type QueueView interface {
	Len() int
	CountFor(userName string) int
}

// Interpreter parses chat messages into actions.
type Interpreter struct {
	cfg   Config
	queue QueueView
}

// NewInterpreter creates an interpreter over a queue view.
func NewInterpreter(cfg Config, queue QueueView) *Interpreter {
	return &Interpreter{cfg: cfg, queue: queue}
}

// Interpret determines the action for one inbound message. Checks run in a
// fixed order; the first failing check wins.
func (in *Interpreter) Interpret(msg request.ChatMessage) Action {
	fields := strings.Fields(msg.Content)
	if len(fields) == 0 || !strings.EqualFold(fields[0], in.cfg.Command) {
		return Action{Kind: ActionIgnore}
	}

	var token string
	if len(fields) > 1 {
		token = fields[1]
	}

	if token != "" && strings.EqualFold(token, in.cfg.UndoKeyword) {
		return Action{Kind: ActionCancel}
	}

	limit := in.cfg.Quotas.LimitFor(msg)
	switch {
	case limit == 0:
		return reject(CodeNoPermission)
	case in.queue.CountFor(msg.UserName) >= limit:
		return reject(CodeUserMaxRequests)
	case in.queue.Len() >= in.cfg.QueueSize:
		return reject(CodeQueueFull)
	case token == in.cfg.BlockSentinel:
		// Moderated transports strip links and leave a placeholder.
		return reject(CodeLinkBlocked)
	case token == "" || (!in.isRequestCode(token) && !in.hasWhitelistedURL(token)):
		return reject(CodeInvalidRequest)
	}

	return Action{
		Kind: ActionSubmit,
		Item: request.NewQueueItem(msg.UserName, in.ResolveURL(token)),
	}
}

// ResolveURL turns a validated token into a download URL. Tokens without a
// dot are request codes resolved against the ordered prefix templates (no
// matching prefix resolves to empty); anything else is a literal URL. The
// find/replace rewrites then run sequentially in list order.
func (in *Interpreter) ResolveURL(token string) string {
	url := token
	if !strings.Contains(token, ".") {
		url = ""
		for _, ct := range in.cfg.CodeTemplates {
			if strings.HasPrefix(token, ct.Prefix) {
				url = strings.ReplaceAll(ct.URL, "%s", token)
				break
			}
		}
	}
	for _, rw := range in.cfg.URLRewrites {
		url = strings.ReplaceAll(url, rw.Find, rw.Replace)
	}
	return url
}

func (in *Interpreter) isRequestCode(token string) bool {
	for _, r := range token {
		if !strings.ContainsRune(in.cfg.CodeAlphabet, r) {
			return false
		}
	}
	return true
}

func (in *Interpreter) hasWhitelistedURL(token string) bool {
	for _, prefix := range in.cfg.URLWhitelist {
		if strings.Contains(token, prefix) {
			return true
		}
	}
	return false
}

func reject(code string) Action {
	return Action{Kind: ActionReject, Code: code}
}
