package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
)

const (
	ModeChat   = "chat-service"
	ModeNotify = "notification-service"
)

// isKnownMode checks if the provided mode name is known.
func isKnownMode(s string) (string, bool) {
	switch s {
	case ModeChat, "chat", "c":
		return ModeChat, true
	case ModeNotify, "notify", "notifications", "n":
		return ModeNotify, true
	default:
		return "", false
	}
}

// ParseMode supports:
//
//	--mode=<value>
//	<value> (subcommand shorthand), e.g., `chat-service --store=memory`
func ParseMode(args []string) (string, []string, error) {
	var mode string
	var out []string

	for _, arg := range args {
		if after, ok := strings.CutPrefix(arg, "--mode="); ok {
			mode = after
			continue
		}
		if mode == "" {
			if m, ok := isKnownMode(arg); ok {
				mode = m
				continue
			}
		}
		out = append(out, arg)
	}

	if mode == "" {
		return "", out, errors.New("no mode specified: use --mode=<service>")
	}
	m, ok := isKnownMode(mode)
	if !ok {
		return "", out, fmt.Errorf("unknown mode %q", mode)
	}
	return m, out, nil
}

// PrintUsage prints the usage information with examples.
func PrintUsage(w io.Writer) {
	fmt.Fprintln(w, `Usage:
  ./transport-connect --mode=<service> [flags]

Services (modes):
  chat-service                 Realtime conversations, read receipts and request status sync
  notification-service         Notification delivery and inbox API

Common flags:
  --config=<path>              YAML configuration file (default config/config.yaml)
  --store=postgres|memory      Store of record; memory seeds demo users and one request

Examples:
  ./transport-connect --mode=chat-service --max-concurrent=150
  ./transport-connect chat --store=memory
  ./transport-connect --mode=notification-service --prefetch=8`)
}

// AttachUsage wires a concise per-mode usage to a FlagSet.
func AttachUsage(fs *flag.FlagSet, mode string) {
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: ./transport-connect --mode=%s [flags]\n", mode)
		fs.PrintDefaults()
	}
}
