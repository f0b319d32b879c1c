package chat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/Arimodu/wipbot/internal/domain/request"
)

// Console is a chat backend that reads lines from stdin, for running wipbot
// without a streaming platform. Lines are attributed to a fixed operator
// user with broadcaster privileges; replies go to stdout.
type Console struct {
	in      io.Reader
	out     io.Writer
	handler func(request.ChatMessage)
}

// NewConsole creates the console backend over stdin/stdout.
func NewConsole() *Console {
	return &Console{in: os.Stdin, out: os.Stdout}
}

// OnMessage registers the inbound message handler.
func (c *Console) OnMessage(handler func(request.ChatMessage)) {
	c.handler = handler
}

// SendMessage prints a reply.
func (c *Console) SendMessage(text string) {
	fmt.Fprintln(c.out, text)
}

// Run reads lines until EOF or context cancellation.
func (c *Console) Run(ctx context.Context) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if c.handler != nil {
				c.handler(request.ChatMessage{
					UserName:      "console",
					Content:       line,
					IsBroadcaster: true,
				})
			}
		}
	}
}
