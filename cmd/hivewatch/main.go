package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-hive/hivewatch/internal/api"
	"github.com/go-hive/hivewatch/internal/buildinfo"
	"github.com/go-hive/hivewatch/internal/integration"
)

const usage = `usage: hivewatch [-addr host:port] <command> [args]

commands:
  watch <entityId> [-label name]   start watching a hive
  unwatch <entityId>               stop watching a hive
  watched                          list watched hives
  alert                            show the active alert
  close                            close the active alert
  suppress -minutes N | -session   mute the alerting hive
  suppressions [entityId]          list rules, or check one hive
  reactivate <entityId>            remove a hive's suppression
  health                           service health
  version                          print the client version
`

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("hivewatch", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	addr := fs.String("addr", envOr("HIVEWATCH_API_ADDR", "localhost:8787"), "service address")
	timeout := fs.Duration("timeout", 10*time.Second, "request timeout")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%v\n%s", err, usage)
	}
	if fs.NArg() == 0 {
		return errors.New(usage)
	}

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()
	client := integration.NewClient(*addr)
	cmd, rest := fs.Arg(0), fs.Args()[1:]

	switch cmd {
	case "watch":
		sub := flag.NewFlagSet("watch", flag.ContinueOnError)
		label := sub.String("label", "", "display name")
		entityID, err := entityArg(sub, rest)
		if err != nil {
			return err
		}
		if err := client.Watch(ctx, entityID, *label); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "watching %s\n", entityID)
	case "unwatch":
		entityID, err := entityArg(flag.NewFlagSet("unwatch", flag.ContinueOnError), rest)
		if err != nil {
			return err
		}
		if err := client.Unwatch(ctx, entityID); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "stopped watching %s\n", entityID)
	case "watched":
		entities, err := client.Watched(ctx)
		if err != nil {
			return err
		}
		return printJSON(out, entities)
	case "alert":
		alert, err := client.ActiveAlert(ctx)
		if err != nil {
			return err
		}
		if alert == nil {
			_, _ = fmt.Fprintln(out, "no active alert")
			return nil
		}
		return printJSON(out, alert)
	case "close":
		closed, err := client.CloseAlert(ctx)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(out, outcome(closed, "alert closed", "no active alert"))
	case "suppress":
		sub := flag.NewFlagSet("suppress", flag.ContinueOnError)
		minutes := sub.Int("minutes", 0, "suppression length in minutes")
		session := sub.Bool("session", false, "suppress until reactivated")
		if err := sub.Parse(rest); err != nil {
			return err
		}
		var (
			ok  bool
			err error
		)
		switch {
		case *session && *minutes != 0:
			return errors.New("suppress: -minutes and -session are mutually exclusive")
		case *session:
			ok, err = client.SuppressForSession(ctx)
		case *minutes > api.MaxSuppressMinutes:
			return fmt.Errorf("suppress: -minutes must not exceed %d", api.MaxSuppressMinutes)
		case *minutes > 0:
			ok, err = client.Suppress(ctx, *minutes)
		default:
			return errors.New("suppress: -minutes must be positive")
		}
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(out, outcome(ok, "alert suppressed", "no active alert"))
	case "suppressions":
		if len(rest) > 0 {
			status, err := client.Suppression(ctx, rest[0])
			if err != nil {
				return err
			}
			return printJSON(out, status)
		}
		rules, err := client.Suppressions(ctx)
		if err != nil {
			return err
		}
		return printJSON(out, rules.Rules)
	case "reactivate":
		entityID, err := entityArg(flag.NewFlagSet("reactivate", flag.ContinueOnError), rest)
		if err != nil {
			return err
		}
		removed, err := client.Reactivate(ctx, entityID)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(out, outcome(removed, entityID+" reactivated", "no suppression for "+entityID))
	case "health":
		health, err := client.Health(ctx)
		if err != nil {
			return err
		}
		return printJSON(out, health)
	case "version":
		_, _ = fmt.Fprintln(out, buildinfo.Info.String())
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
	return nil
}

// entityArg parses flags that may follow the entity id and returns the id.
func entityArg(fs *flag.FlagSet, args []string) (string, error) {
	if len(args) == 0 || args[0] == "" {
		return "", fmt.Errorf("%s: entityId is required", fs.Name())
	}
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args[1:]); err != nil {
		return "", fmt.Errorf("%s: %w", fs.Name(), err)
	}
	return args[0], nil
}

func outcome(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}

func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
