package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pbaille/audit/internal/api"
	"github.com/pbaille/audit/internal/config"
	"github.com/pbaille/audit/internal/domain"
	"github.com/pbaille/audit/internal/fetcher"
	"github.com/pbaille/audit/internal/logger"
	"github.com/pbaille/audit/internal/metrics"
	"github.com/pbaille/audit/internal/store"
	"github.com/pbaille/audit/internal/worddiff"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var (
	dataPath string
	backend  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "audit",
		Short:         "Audit trail of text versions with word-level diffs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataPath, "data", "", "version log path (overrides STORAGE_PATH)")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "storage backend: jsonfile or sqlite (overrides STORAGE_BACKEND)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(saveCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(diffCmd())
	rootCmd.AddCommand(importCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	return config.Load(config.WithStorage(backend, dataPath))
}

func getStore(cfg *config.Config, opts ...store.Option) (*store.Store, error) {
	return store.Open(cfg.Storage.Backend, cfg.Storage.Path, opts...)
}

// cliLogger reports store problems (such as an unreadable log) on stderr.
func cliLogger(cfg *config.Config) *logger.Logger {
	level := cfg.Log.Level
	if level == "info" || level == "debug" {
		level = "warn"
	}
	return logger.New(logger.Config{Level: level, Format: "text", WithCaller: cfg.Log.Caller})
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			log := logger.New(logger.Config{
				Level:      cfg.Log.Level,
				Format:     cfg.Log.Format,
				WithCaller: cfg.Log.Caller,
			})

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			m := metrics.New(reg)

			s, err := getStore(cfg, store.WithLogger(log), store.WithMetrics(m))
			if err != nil {
				return err
			}
			defer s.Close()

			m.VersionsTotal.Set(float64(len(s.LoadAll(cmd.Context()))))

			log.LogServerStart(cfg.Server.Addr(), cfg.Storage.Backend, cfg.Storage.Path)
			err = api.New(s, *cfg, api.WithLogger(log), api.WithMetrics(m, reg)).Run(cmd.Context())
			log.LogServerShutdown()
			return err
		},
	}
}

func saveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save [text...]",
		Short: "Save a new version (reads stdin when text is - or omitted)",
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readContent(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			s, err := getStore(cfg, store.WithLogger(cliLogger(cfg)))
			if err != nil {
				return err
			}
			defer s.Close()

			v, err := s.AppendVersion(cmd.Context(), content)
			if err != nil {
				return err
			}

			printSummary(cmd.OutOrStdout(), v)
			return nil
		},
	}
}

func readContent(stdin io.Reader, args []string) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}

func listCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List versions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			s, err := getStore(cfg, store.WithLogger(cliLogger(cfg)))
			if err != nil {
				return err
			}
			defer s.Close()

			versions := s.LoadAll(cmd.Context())
			out := cmd.OutOrStdout()
			if len(versions) == 0 {
				fmt.Fprintln(out, "No versions yet. Use 'audit save' to create one.")
				return nil
			}

			shown := 0
			for i := len(versions) - 1; i >= 0; i-- {
				if limit > 0 && shown >= limit {
					break
				}
				v := versions[i]
				fmt.Fprintf(out, "%s  %s  %d -> %d  +%d -%d  %s\n",
					v.ShortID(), v.Timestamp.Format("2006-01-02 15:04:05"),
					v.OldLength, v.NewLength, len(v.AddedWords), len(v.RemovedWords),
					truncate(v.Content, 40))
				shown++
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of versions to show (0 for all)")
	return cmd
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Show a version (id or unique id prefix)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			s, err := getStore(cfg, store.WithLogger(cliLogger(cfg)))
			if err != nil {
				return err
			}
			defer s.Close()

			v, err := s.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:      %s\n", v.ID)
			fmt.Fprintf(out, "Created: %s\n", v.Timestamp.Format("2006-01-02 15:04:05 MST"))
			fmt.Fprintf(out, "Length:  %d -> %d\n", v.OldLength, v.NewLength)
			fmt.Fprintf(out, "Added:   %s\n", joinOrDash(v.AddedWords))
			fmt.Fprintf(out, "Removed: %s\n", joinOrDash(v.RemovedWords))
			fmt.Fprintf(out, "Content:\n%s\n", v.Content)
			return nil
		},
	}
}

func diffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff [from-id] [to-id]",
		Short: "Compare the words of two versions",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			s, err := getStore(cfg, store.WithLogger(cliLogger(cfg)))
			if err != nil {
				return err
			}
			defer s.Close()

			from, err := s.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			to, err := s.Get(cmd.Context(), args[1])
			if err != nil {
				return err
			}

			d := worddiff.Diff(from.Content, to.Content)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s -> %s\n", from.ShortID(), to.ShortID())
			fmt.Fprintf(out, "Added:      %s\n", joinOrDash(d.Added))
			fmt.Fprintf(out, "Removed:    %s\n", joinOrDash(d.Removed))
			fmt.Fprintf(out, "Similarity: %.2f\n", worddiff.Similarity(from.Content, to.Content))
			return nil
		},
	}
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [url]",
		Short: "Fetch a web page and save its text as a version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !fetcher.IsURL(args[0]) {
				return fmt.Errorf("%w: not a URL: %s", domain.ErrInvalidInput, args[0])
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.ErrOrStderr(), "Fetching... ")
			text, err := fetcher.New(nil).Fetch(cmd.Context(), args[0])
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "failed")
				if errors.Is(err, fetcher.ErrNoText) {
					return fmt.Errorf("%s: %w", args[0], err)
				}
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "done")

			s, err := getStore(cfg, store.WithLogger(cliLogger(cfg)))
			if err != nil {
				return err
			}
			defer s.Close()

			v, err := s.AppendVersion(cmd.Context(), text)
			if err != nil {
				return err
			}

			printSummary(cmd.OutOrStdout(), v)
			return nil
		},
	}
}

func printSummary(out io.Writer, v domain.Version) {
	fmt.Fprintf(out, "Saved version: %s\n", v.ShortID())
	fmt.Fprintf(out, "Length:  %d -> %d\n", v.OldLength, v.NewLength)
	fmt.Fprintf(out, "Added:   %s\n", joinOrDash(v.AddedWords))
	fmt.Fprintf(out, "Removed: %s\n", joinOrDash(v.RemovedWords))
}

func joinOrDash(words []string) string {
	if len(words) == 0 {
		return "-"
	}
	return strings.Join(words, ", ")
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
