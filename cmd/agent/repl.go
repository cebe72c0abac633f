package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/petasbytes/turnkit/agent"
	"github.com/petasbytes/turnkit/attachment"
)

const helpText = `Commands:
  /attach <path>  attach a local file to the next message
  /reset          forget the conversation
  /help           show this help
Ctrl-C or EOF quits.`

type repl struct {
	agent     *agent.Agent
	in        io.Reader
	out       io.Writer
	maxTokens int
	pending   []attachment.Descriptor
}

func newREPL(ag *agent.Agent, in io.Reader, out io.Writer, maxTokens int) *repl {
	return &repl{agent: ag, in: in, out: out, maxTokens: maxTokens}
}

// Loop reads lines until EOF or ctx is cancelled. Turn failures are printed
// and the session continues.
func (r *repl) Loop(ctx context.Context) error {
	scanner := bufio.NewScanner(r.in)
	fmt.Fprintln(r.out, "Chat with the agent (/help for commands, Ctrl-C to quit)")

	// stdin reader goroutine -> lines into channel
	inputCh := make(chan string)
	go func() {
		defer close(inputCh)
		for scanner.Scan() {
			select {
			case inputCh <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(r.out, "\u001b[94mYou\u001b[0m: ")
		var (
			line string
			ok   bool
		)
		select {
		case <-ctx.Done():
			return nil
		case line, ok = <-inputCh:
			if !ok {
				return scanner.Err()
			}
		}
		r.handle(ctx, strings.TrimSpace(line))
	}
}

func (r *repl) handle(ctx context.Context, line string) {
	switch {
	case line == "":
		return
	case line == "/help":
		fmt.Fprintln(r.out, helpText)
		return
	case line == "/reset":
		r.agent.Reset()
		r.pending = nil
		fmt.Fprintln(r.out, "Conversation cleared.")
		return
	case strings.HasPrefix(line, "/attach "):
		path := strings.TrimSpace(strings.TrimPrefix(line, "/attach "))
		d, err := describeFile(path)
		if err != nil {
			fmt.Fprintf(r.out, "error: %v\n", err)
			return
		}
		r.pending = append(r.pending, d)
		fmt.Fprintf(r.out, "Attached %s (%s).\n", path, d.MediaType)
		return
	}

	opts := &agent.CallOptions{Attachments: r.pending}
	if r.maxTokens > 0 {
		opts.MaxTokens = &r.maxTokens
	}
	res, err := r.agent.Run(ctx, line, nil, opts)
	if err != nil {
		fmt.Fprintf(r.out, "error: %v\n", err)
		return
	}
	r.pending = nil
	fmt.Fprintf(r.out, "\u001b[93mAgent\u001b[0m: %s\n", res.Text)
}

// describeFile builds a descriptor for a local file, treating images as
// images and everything else as a file with its detected media type.
func describeFile(path string) (attachment.Descriptor, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return attachment.Descriptor{}, err
	}
	mediaType, _, _ := strings.Cut(mt.String(), ";")
	if strings.HasPrefix(mediaType, "image/") {
		return attachment.Image(attachment.Text(path), mediaType), nil
	}
	return attachment.File(attachment.Text(path), mediaType, ""), nil
}
