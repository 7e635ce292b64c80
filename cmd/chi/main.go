package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/unkn0wn-root/chicache"
	"github.com/unkn0wn-root/chicache/config"
	chizap "github.com/unkn0wn-root/chicache/log/zap"
)

var (
	configPath string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "chi",
		Short:         "chi - inspect and manage a chicache backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "chi.yaml", "Path to the YAML config")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log cache internals to stderr")

	rootCmd.AddCommand(
		getCmd(),
		setCmd(),
		delCmd(),
		expireCmd(),
		keysCmd(),
		eraseCmd(),
		inspectCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openCache builds a cache over any value type; raw values written by the CLI
// are stored as bytes, others are decoded with the configured serializer.
func openCache(ctx context.Context) (chicache.Cache[any], func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	zl := zap.NewNop()
	if verbose {
		if zl, err = zap.NewDevelopment(); err != nil {
			return nil, nil, err
		}
	}
	c, err := config.NewCache[any](ctx, cfg, chizap.New(zl), nil)
	if err != nil {
		_ = zl.Sync()
		return nil, nil, err
	}
	return c, func() {
		_ = c.Close(context.Background())
		_ = zl.Sync()
	}, nil
}

func printValue(v any) error {
	if b, ok := v.([]byte); ok {
		_, err := os.Stdout.Write(append(b, '\n'))
		return err
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("print value: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print a cached value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, done, err := openCache(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			v, ok, err := c.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s: not found", args[0])
			}
			return printValue(v)
		},
	}
}

func setCmd() *cobra.Command {
	var (
		ttl      time.Duration
		earlyTTL time.Duration
		compress bool
	)

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a raw value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, done, err := openCache(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			var opts []chicache.SetOption
			if cmd.Flags().Changed("ttl") {
				opts = append(opts, chicache.WithTTL(ttl))
			}
			if cmd.Flags().Changed("early-ttl") {
				opts = append(opts, chicache.WithEarlyTTL(earlyTTL))
			}
			if cmd.Flags().Changed("compress") {
				opts = append(opts, chicache.WithCompression(compress))
			}
			return c.Set(cmd.Context(), args[0], []byte(args[1]), opts...)
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Hard TTL (default from config)")
	cmd.Flags().DurationVar(&earlyTTL, "early-ttl", 0, "Soft TTL; the value turns stale after it")
	cmd.Flags().BoolVar(&compress, "compress", false, "Force compression on or off")

	return cmd
}

func delCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "del <key>...",
		Short: "Remove keys",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, done, err := openCache(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			for _, k := range args {
				if err := c.Remove(cmd.Context(), k); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func expireCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expire <key> <ttl>",
		Short: "Set a new hard TTL on an existing key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ttl, err := time.ParseDuration(args[1])
			if err != nil {
				return fmt.Errorf("invalid ttl: %w", err)
			}
			c, done, err := openCache(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			ok, err := c.Expire(cmd.Context(), args[0], ttl)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s: not found", args[0])
			}
			return nil
		},
	}
}

func keysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys <mask>",
		Short: "List keys matching a glob mask ('*', '?')",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, done, err := openCache(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			keys, err := c.Keys(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Println(k)
			}
			return nil
		},
	}
}

func eraseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "erase <mask>",
		Short: "Delete keys matching a glob mask",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, done, err := openCache(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			n, err := c.Erase(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("erased %d keys\n", n)
			return nil
		},
	}
}

func inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <key>",
		Short: "Show the stored envelope of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, done, err := openCache(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			o, ok, err := c.Object(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s: not found", args[0])
			}

			now := time.Now()
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "STATE\t%s\n", o.State(now))
			fmt.Fprintf(w, "CREATED\t%s\n", o.CreatedAt.Format(time.RFC3339))
			fmt.Fprintf(w, "EXPIRES\t%s (%s left)\n", o.ExpiresAt.Format(time.RFC3339), o.TTL(now).Round(time.Second))
			if o.HasEarly() {
				fmt.Fprintf(w, "EARLY\t%s\n", o.EarlyExpiresAt.Format(time.RFC3339))
			} else {
				fmt.Fprintln(w, "EARLY\t-")
			}
			fmt.Fprintf(w, "SERIALIZED\t%v\n", o.Serialized)
			fmt.Fprintf(w, "COMPRESSED\t%v\n", o.Compressed)
			fmt.Fprintf(w, "SIZE\t%d\n", len(o.Value))
			return w.Flush()
		},
	}
}
