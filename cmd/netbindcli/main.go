package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

var (
	serverAddr = flag.String("server", "localhost:8080", "netbindd API address")
	format     = flag.String("format", "cli", "Output format (cli, json)")
	timeout    = flag.Duration("timeout", 60*time.Second, "Per-command timeout")
)

func main() {
	flag.Parse()

	client := NewClient(*serverAddr, *timeout)
	cli := NewCLI(client, *serverAddr, OutputFormat(*format), *timeout)

	if flag.NArg() > 0 {
		if err := cli.Execute(strings.Join(flag.Args(), " ")); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		cli.Stop()
		os.Exit(0)
	}()

	if err := cli.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
