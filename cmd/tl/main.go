package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskline/internal/app"
	"taskline/internal/config"
	"taskline/internal/journal"
	"taskline/internal/logging"
	"taskline/internal/server"
	"taskline/internal/session"
)

var rootCmd = &cobra.Command{
	Use:   "tl",
	Short: "Taskline CLI",
	Long: `Taskline keeps a task list you drive with short commands.
- todo <description>: add a task
- deadline <description> /by <dd/MM/yyyy HHmm>: add a task with a due date
- event <description> /at <time>: add a task happening at a time
- list, find <keyword>: show tasks
- done <n>, delete <n>: change the task numbered n
- bye: leave
Every change is written to the save file right away.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context(), os.Stdin, os.Stdout)
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	workspace := viper.GetString("workspace")
	if err := godotenv.Load(filepath.Join(workspace, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "warning: cannot read .env:", err)
	}
	viper.SetEnvPrefix("TASKLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().StringP("file", "f", "", "save file (overrides storage.file)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("log-level", "", "debug, info, warn or error (overrides log.level)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("file", rootCmd.PersistentFlags().Lookup("file"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func registerCommands() {
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(configCmd())
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Talk to your task list (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func runChat(ctx context.Context, in io.Reader, out io.Writer) error {
	return withRuntime(ctx, func(ctx context.Context, rt *app.Runtime) error {
		responses, err := rt.Start(ctx)
		for _, r := range responses {
			printResponse(out, r)
		}
		if err != nil {
			return err
		}
		return chat(ctx, rt.Session, in, out)
	})
}

// chat reads one command per line until the session ends or input runs out.
func chat(ctx context.Context, s *session.Session, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for s.Active() {
		if ctx.Err() != nil {
			return nil
		}
		if !scanner.Scan() {
			logging.Ctx(ctx).Debug("input closed before bye", "session", s.ID())
			return scanner.Err()
		}
		printResponse(out, s.Handle(ctx, scanner.Text()))
	}
	return nil
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <command...>",
		Short: "Run one command and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				responses, err := rt.Start(ctx)
				if err != nil {
					printResponse(cmd.ErrOrStderr(), responses[0])
					return err
				}
				resp := rt.Session.Handle(ctx, strings.Join(args, " "))
				return writeResult(cmd.OutOrStdout(), resp, viper.GetBool("json"))
			})
		},
	}
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the task list as a table",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				if _, err := rt.Start(ctx); err != nil {
					return err
				}
				tasks := rt.Session.Tasks()
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(cmd.OutOrStdout())
				tw.AppendHeader(table.Row{"#", "Type", "Done", "Description", "Time"})
				for i, t := range tasks {
					done := ""
					if t.Done {
						done = "X"
					}
					tw.AppendRow(table.Row{i + 1, t.Kind, done, t.Description, t.Time})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Journal of handled commands",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var f journal.Filter
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show the latest journal events",
		RunE: func(cmd *cobra.Command, args []string) error {
			j, closeFn, err := app.OpenJournal(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			defer closeFn()
			events, err := j.Latest(cmd.Context(), n, f)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(events)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"ID", "Time", "Type", "Session", "Kind", "Input", "Error", "Tasks"})
			for _, e := range events {
				tw.AppendRow(table.Row{e.ID, e.TS, e.Type, shortID(e.SessionID), e.Kind, e.Input, e.IsError, e.TaskCount})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().IntVarP(&n, "n", "n", 20, "number of events")
	cmd.Flags().StringVar(&f.Type, "type", "", "event type filter")
	cmd.Flags().StringVar(&f.Kind, "kind", "", "command kind filter")
	cmd.Flags().StringVar(&f.SessionID, "session", "", "session id filter")
	cmd.Flags().BoolVar(&f.ErrorsOnly, "errors", false, "only failed commands")
	return cmd
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				addr := firstNonEmpty(viper.GetString("addr"), rt.Config.Server.Addr)
				basePath := firstNonEmpty(viper.GetString("base-path"), rt.Config.Server.BasePath)
				secret := firstNonEmpty(viper.GetString("jwt-secret"), rt.Config.Server.JWTSecret)
				if _, err := rt.Start(ctx); err != nil {
					return err
				}
				handler, err := server.New(server.Config{
					Session:  rt.Session,
					Journal:  rt.Journal,
					BasePath: basePath,
					Auth:     server.AuthConfig{JWTSecret: secret},
					Logger:   rt.Logger,
				})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				auth := "open"
				if secret != "" {
					auth = "bearer JWT"
				}
				fmt.Printf("Serving Taskline API on http://%s%s (%s; OpenAPI at %s/openapi.json)\n", addr, basePath, auth, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	cmd.Flags().String("base-path", "", "API base path (overrides server.base_path)")
	_ = viper.BindPFlag("addr", cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("base-path", cmd.Flags().Lookup("base-path"))
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create taskline.yml",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			if lvl := viper.GetString("log-level"); lvl != "" {
				cfg.Log.Level = lvl
			}
			if viper.GetBool("json") {
				return printJSON(cfg)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"Key", "Value"})
			tw.AppendRows([]table.Row{
				{"config", config.Path(workspace)},
				{"storage.file", firstNonEmpty(viper.GetString("file"), cfg.SaveFile(workspace))},
				{"log.level", cfg.Log.Level},
				{"journal.enabled", cfg.Journal.Enabled},
				{"server.addr", cfg.Server.Addr},
				{"server.base_path", cfg.Server.BasePath},
				{"server.jwt_secret", redact(firstNonEmpty(viper.GetString("jwt-secret"), cfg.Server.JWTSecret))},
			})
			tw.Render()
			return nil
		},
	}
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default taskline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configValidateCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate taskline.yml (or --path)",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if file != "" {
				_, err = config.FromFile(file)
			} else {
				_, err = config.Load(viper.GetString("workspace"))
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "config OK")
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "path", "", "config file to validate instead of the workspace one")
	return cmd
}

// --- helpers ---

func withRuntime(ctx context.Context, fn func(context.Context, *app.Runtime) error) error {
	rt, err := app.Resolve(ctx, viper.GetString("workspace"), app.Overrides{
		File:     viper.GetString("file"),
		LogLevel: viper.GetString("log-level"),
	})
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(logging.WithLogger(ctx, rt.Logger), rt)
}

var errorColor = color.New(color.FgRed)

func printResponse(w io.Writer, r session.Response) {
	if r.IsError {
		errorColor.Fprintln(w, r.Text)
		return
	}
	fmt.Fprintln(w, r.Text)
}

func printJSON(v any) error {
	return writeJSON(os.Stdout, v)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeResult prints resp and reports an error response as a failed
// command in both output modes.
func writeResult(w io.Writer, resp session.Response, asJSON bool) error {
	if asJSON {
		if err := writeJSON(w, resp); err != nil {
			return err
		}
	} else {
		printResponse(w, resp)
	}
	if resp.IsError {
		return errors.New("command failed")
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
