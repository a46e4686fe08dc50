package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pior/redis"
	"github.com/pior/redis/resp"
	"github.com/spf13/cobra"
)

// payloadCommands carry their last argument as a value, sent as a payload in
// the inline encoding.
var payloadCommands = map[string]bool{
	redis.CmdSet:    true,
	redis.CmdGetSet: true,
	redis.CmdSetNX:  true,
	redis.CmdLPush:  true,
	redis.CmdRPush:  true,
	redis.CmdLSet:   true,
	redis.CmdLRem:   true,
}

// buildRequest turns command-line words into a request routed by its first
// argument.
func buildRequest(words []string) *resp.Request {
	name := strings.ToUpper(words[0])
	args := words[1:]

	var payload []byte
	if payloadCommands[name] && len(args) >= 2 {
		payload = []byte(args[len(args)-1])
		args = args[:len(args)-1]
	}

	if len(args) == 0 {
		return resp.NewKeylessRequest(name)
	}

	key := args[0]
	args = args[1:]
	if len(args) == 0 {
		args = nil
	}
	return resp.NewRequest(name, key, payload, args...)
}

func (a *app) execute(ctx context.Context, w io.Writer, words []string) error {
	reply, err := a.client.Do(ctx, buildRequest(words), resp.KindAny)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, reply.String())
	return nil
}

func newExecCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "exec <command> [args...]",
		Short: "Send one command and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.execute(cmd.Context(), cmd.OutOrStdout(), args)
		},
	}
}

func newPingCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the server answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			if err := a.client.Ping(cmd.Context()); err != nil {
				return fmt.Errorf("ping failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "PONG (took %v)\n", time.Since(start))
			return nil
		},
	}
}

func newMonitorCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Print every command processed by the server until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			err := a.client.Monitor(cmd.Context(), "", func(line string) error {
				_, err := fmt.Fprintln(out, line)
				return err
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

func newReplCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Read commands from the terminal (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.repl(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func (a *app) repl(ctx context.Context, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "Connected to %s. Type 'help' for help, 'quit' to exit.\n", a.cfg.Host)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}

		words, err := splitWords(scanner.Text())
		if err != nil {
			fmt.Fprintf(out, "(error) %v\n", err)
			continue
		}
		if len(words) == 0 {
			continue
		}

		switch strings.ToLower(words[0]) {
		case "quit", "exit":
			return nil
		case "help":
			printHelp(out)
			continue
		case "stats":
			printStats(out, a.client)
			continue
		}

		if err := a.execute(ctx, out, words); err != nil {
			fmt.Fprintf(out, "(error) %v\n", err)
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}

	return scanner.Err()
}

// splitWords splits a line on whitespace. Double-quoted words may contain
// spaces and the escapes \" \\ \r \n \t.
func splitWords(line string) ([]string, error) {
	var (
		words   []string
		current strings.Builder
		inWord  bool
		quoted  bool
	)

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case quoted && c == '\\' && i+1 < len(line):
			i++
			switch line[i] {
			case 'r':
				current.WriteByte('\r')
			case 'n':
				current.WriteByte('\n')
			case 't':
				current.WriteByte('\t')
			default:
				current.WriteByte(line[i])
			}
		case c == '"':
			quoted = !quoted
			inWord = true
		case !quoted && (c == ' ' || c == '\t'):
			if inWord {
				words = append(words, current.String())
				current.Reset()
				inWord = false
			}
		default:
			current.WriteByte(c)
			inWord = true
		}
	}

	if quoted {
		return nil, fmt.Errorf("unbalanced quotes")
	}
	if inWord {
		words = append(words, current.String())
	}
	return words, nil
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, "Any command is sent as typed: GET key, SET key \"a value\", LRANGE list 0 -1...")
	fmt.Fprintln(out, "Built-ins:")
	fmt.Fprintln(out, "  stats   - Show client and pool statistics")
	fmt.Fprintln(out, "  help    - Show this help")
	fmt.Fprintln(out, "  quit    - Exit")
}

func printStats(out io.Writer, client *redis.Client) {
	stats := client.Stats()
	fmt.Fprintf(out, "Requests: %d\n", stats.Requests)
	fmt.Fprintf(out, "  Errors: %d\n", stats.Errors)
	fmt.Fprintf(out, "  Remote Errors: %d\n", stats.RemoteErrors)
	fmt.Fprintf(out, "  Hits: %d\n", stats.Hits)
	fmt.Fprintf(out, "  Misses: %d\n", stats.Misses)

	for _, sp := range client.AllPoolStats() {
		ps := sp.PoolStats
		fmt.Fprintf(out, "Server %s:\n", sp.Addr)
		fmt.Fprintf(out, "  Connections: %d total, %d active, %d idle\n", ps.TotalConns, ps.ActiveConns, ps.IdleConns)
		fmt.Fprintf(out, "  Created: %d, Destroyed: %d\n", ps.CreatedConns, ps.DestroyedConns)
		fmt.Fprintf(out, "  Acquires: %d (waited %d, failed %d)\n", ps.AcquireCount, ps.AcquireWaitCount, ps.AcquireErrors)
		fmt.Fprintf(out, "  Circuit: %s\n", sp.CircuitBreakerState)
	}
}

func newBenchCommand(a *app) *cobra.Command {
	var (
		requests int
		size     int
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run sequential SET/GET round trips and report the throughput",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.bench(cmd.Context(), cmd.OutOrStdout(), requests, size)
		},
	}
	cmd.Flags().IntVarP(&requests, "requests", "n", 10000, "number of SET/GET pairs")
	cmd.Flags().IntVar(&size, "size", 64, "value size in bytes")
	return cmd
}

func (a *app) bench(ctx context.Context, out io.Writer, requests, size int) error {
	value := []byte(strings.Repeat("x", size))
	latencies := make([]time.Duration, 0, requests)

	start := time.Now()
	for i := range requests {
		if ctx.Err() != nil {
			break
		}

		key := fmt.Sprintf("bench:%d", i%1000)
		opStart := time.Now()

		if err := a.client.Set(ctx, redis.Item{Key: key, Value: value}); err != nil {
			return fmt.Errorf("SET %s: %w", key, err)
		}
		item, err := a.client.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("GET %s: %w", key, err)
		}
		if !item.Found || len(item.Value) != size {
			return fmt.Errorf("GET %s: got %d bytes, want %d", key, len(item.Value), size)
		}

		latencies = append(latencies, time.Since(opStart))
	}
	elapsed := time.Since(start)

	report := summarize(latencies, elapsed)
	fmt.Fprintf(out, "Round trips: %d in %v\n", report.count, elapsed.Round(time.Millisecond))
	fmt.Fprintf(out, "Throughput: %.0f requests/s\n", report.requestsPerSecond)
	fmt.Fprintf(out, "Latency (SET+GET): avg %v, p50 %v, p99 %v, max %v\n", report.avg, report.p50, report.p99, report.max)
	printStats(out, a.client)
	return nil
}
