package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/veesix-networks/netbind/pkg/logger"
	"github.com/veesix-networks/netbind/pkg/northbound"
)

type CommandHandler func(ctx context.Context, c *CLI, args []string) error

type Command struct {
	Name        string
	Usage       string
	Description string
	Handler     CommandHandler
}

var commands = map[string]*Command{}

func register(cmd *Command) {
	commands[cmd.Name] = cmd
}

func init() {
	register(&Command{
		Name:        "bind",
		Usage:       "bind <ssid>",
		Description: "Point the host default route at the network with the given SSID",
		Handler:     cmdBind,
	})
	register(&Command{
		Name:        "unbind",
		Usage:       "unbind",
		Description: "Release the bound network and restore the default routes",
		Handler:     cmdUnbind,
	})
	register(&Command{
		Name:        "status",
		Usage:       "status",
		Description: "Show binder state",
		Handler:     cmdStatus,
	})
	register(&Command{
		Name:        "call",
		Usage:       "call <method> [ssid]",
		Description: "Invoke a northbound method by name",
		Handler:     cmdCall,
	})
	register(&Command{
		Name:        "loglevel",
		Usage:       "loglevel [component [level]]",
		Description: "Show log levels, or set one component (no level clears it)",
		Handler:     cmdLogLevel,
	})
	register(&Command{
		Name:        "help",
		Usage:       "help",
		Description: "List commands",
		Handler:     cmdHelp,
	})
}

func commandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func cmdBind(ctx context.Context, c *CLI, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: bind <ssid>")
	}
	// SSIDs may contain spaces.
	ssid := strings.Join(args, " ")

	ok, err := c.client.Bind(ctx, ssid)
	if err != nil {
		return err
	}
	if ok {
		fmt.Fprintf(c.out, "Bound to %q\n", ssid)
	} else {
		fmt.Fprintf(c.out, "Network %q is not reachable\n", ssid)
	}
	return nil
}

func cmdUnbind(ctx context.Context, c *CLI, args []string) error {
	ok, err := c.client.Unbind(ctx)
	if err != nil {
		return err
	}
	if ok {
		fmt.Fprintln(c.out, "Network released")
	} else {
		fmt.Fprintln(c.out, "No network bound")
	}
	return nil
}

func cmdStatus(ctx context.Context, c *CLI, args []string) error {
	status, err := c.client.Status(ctx)
	if err != nil {
		return err
	}
	return c.print(status)
}

func cmdCall(ctx context.Context, c *CLI, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: call <method> [ssid]")
	}

	var params any
	if len(args) > 1 {
		params = map[string]string{"ssid": strings.Join(args[1:], " ")}
	}

	result, err := c.client.Call(ctx, args[0], params)
	if err != nil {
		return err
	}
	return c.print(result)
}

func cmdLogLevel(ctx context.Context, c *CLI, args []string) error {
	if len(args) == 0 {
		levels, err := c.client.Call(ctx, northbound.MethodLogLevels, nil)
		if err != nil {
			return err
		}
		return c.print(levels)
	}

	params := northbound.SetLogLevelParams{Component: args[0]}
	if len(args) > 1 {
		params.Level = logger.LogLevel(args[1])
	}

	levels, err := c.client.Call(ctx, northbound.MethodSetLogLevel, params)
	if err != nil {
		return err
	}
	return c.print(levels)
}

func cmdHelp(ctx context.Context, c *CLI, args []string) error {
	printHelp(c.out)
	return nil
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w)
	for _, name := range commandNames() {
		cmd := commands[name]
		fmt.Fprintf(w, "  %-22s %s\n", cmd.Usage, cmd.Description)
	}
	fmt.Fprintf(w, "  %-22s %s\n\n", "exit", "Leave the shell")
}
