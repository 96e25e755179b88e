package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"gopkg.in/yaml.v3"

	"github.com/veesix-networks/netbind/pkg/northbound"
)

type OutputFormat string

const (
	FormatCLI  OutputFormat = "cli"
	FormatJSON OutputFormat = "json"
)

type CLI struct {
	client     *Client
	serverAddr string
	format     OutputFormat
	timeout    time.Duration
	out        io.Writer
	rl         *readline.Instance
	running    bool
}

func NewCLI(client *Client, serverAddr string, format OutputFormat, timeout time.Duration) *CLI {
	return &CLI{
		client:     client,
		serverAddr: serverAddr,
		format:     format,
		timeout:    timeout,
		out:        os.Stdout,
		running:    true,
	}
}

func (c *CLI) Run() error {
	var err error
	c.rl, err = readline.NewEx(&readline.Config{
		Prompt:          "netbind> ",
		HistoryFile:     os.ExpandEnv("$HOME/.netbindcli_history"),
		AutoComplete:    c.buildCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer c.rl.Close()

	c.out = c.rl.Stdout()
	c.printBanner()

	for c.running {
		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				if len(line) == 0 {
					break
				}
				continue
			} else if err == io.EOF {
				break
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if err := c.Execute(line); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}

	return nil
}

func (c *CLI) Stop() {
	c.running = false
}

// Execute runs a single command line.
func (c *CLI) Execute(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	if fields[0] == "exit" || fields[0] == "quit" {
		c.running = false
		return nil
	}

	cmd, ok := commands[fields[0]]
	if !ok {
		return fmt.Errorf("unknown command %q, type 'help'", fields[0])
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	return cmd.Handler(ctx, c, fields[1:])
}

func (c *CLI) print(data any) error {
	var (
		out []byte
		err error
	)

	switch c.format {
	case FormatJSON:
		var buf bytes.Buffer
		encoder := json.NewEncoder(&buf)
		encoder.SetIndent("", "  ")
		err = encoder.Encode(data)
		out = buf.Bytes()
	default:
		out, err = yaml.Marshal(data)
	}
	if err != nil {
		return err
	}

	_, err = c.out.Write(out)
	return err
}

func (c *CLI) printBanner() {
	fmt.Fprintln(c.out, "=====================================")
	fmt.Fprintln(c.out, "    netbind Interactive CLI")
	fmt.Fprintln(c.out, "=====================================")
	fmt.Fprintf(c.out, "Connected to: %s\n", c.serverAddr)
	fmt.Fprintln(c.out, "Type 'help' for available commands")
	fmt.Fprintln(c.out, "Type 'exit' or 'quit' to exit")
	fmt.Fprintln(c.out)
}

func (c *CLI) buildCompleter() readline.AutoCompleter {
	items := make([]readline.PrefixCompleterInterface, 0, len(commands)+1)
	for _, name := range commandNames() {
		if name == "call" {
			methods := make([]readline.PrefixCompleterInterface, 0, len(northbound.Methods()))
			for _, m := range northbound.Methods() {
				methods = append(methods, readline.PcItem(m))
			}
			items = append(items, readline.PcItem(name, methods...))
			continue
		}
		items = append(items, readline.PcItem(name))
	}
	items = append(items, readline.PcItem("exit"))
	return readline.NewPrefixCompleter(items...)
}
