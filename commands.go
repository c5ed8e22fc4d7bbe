package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"agentcore/agent"
	"agentcore/budget"
	"agentcore/config"
	"agentcore/embedding"
	"agentcore/model"
	"agentcore/provider"
	"agentcore/storage"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	contextID  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "agentcore",
		Short:         "Run and orchestrate LLM agents",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default $AGENTCORE_CONFIG or ~/.config/agentcore/config.toml)")
	root.PersistentFlags().StringVarP(&opts.contextID, "context", "c", "cli", "chat context id")

	root.AddCommand(
		newConfigCmd(opts),
		newSyncCmd(opts),
		newListCmd(opts),
		newChatCmd(opts),
		newAskCmd(opts),
		newEmbedCmd(opts),
		newMissionCmd(opts),
		newResetCmd(opts),
		newTrashCmd(opts),
		newSearchCmd(opts),
		newToolsCmd(opts),
		newModelsCmd(opts),
	)
	return root
}

// withApp opens the application for the duration of fn.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, opts.configPath)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.Close(closeCtx)
	}()
	return fn(ctx, a)
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Manage the configuration file"}
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a commented default configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := opts.configPath
			if path == "" {
				path = config.ConfigPath()
			}
			if config.FileExists(path) {
				return fmt.Errorf("%s already exists", path)
			}
			if err := config.CreateDefault(path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	})
	return cmd
}

func newSyncCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync [profile]",
		Short: "Create or update the built-in agents",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				profile := ""
				if len(args) == 1 {
					profile = args[0]
				}
				return a.manager.UpdateAgents(ctx, profile)
			})
		},
	}
}

func newListCmd(opts *rootOptions) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored agents",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				summaries, err := listSummaries(ctx, a.store, model.Status(status))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, s := range summaries {
					fmt.Fprintf(out, "%-40s %-10s v%d %4d msgs  %s\n", s.ID, s.Status, s.Version, s.MessageCount, s.Name)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only list agents with this status")
	return cmd
}

func listSummaries(ctx context.Context, st store, status model.Status) ([]storage.Summary, error) {
	summaries, err := storage.Summaries(ctx, st)
	if err != nil || status == "" {
		return summaries, err
	}

	keep := map[string]bool{}
	if db, ok := st.(*storage.SQLiteStore); ok {
		ids, err := db.ListByStatus(ctx, status)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			keep[id] = true
		}
	} else {
		for _, s := range summaries {
			keep[s.ID] = s.Status == status
		}
	}

	var out []storage.Summary
	for _, s := range summaries {
		if keep[s.ID] {
			out = append(out, s)
		}
	}
	return out, nil
}

func newChatCmd(opts *rootOptions) *cobra.Command {
	var images []string
	cmd := &cobra.Command{
		Use:   "chat <agent> <message>",
		Short: "Send a message to an agent, running its tools",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				ag, err := a.manager.Lookup(ctx, args[0])
				if err != nil {
					return err
				}
				var chatOpts []agent.ChatOption
				if len(images) > 0 {
					encoded, err := readImages(images)
					if err != nil {
						return err
					}
					chatOpts = append(chatOpts, agent.WithImages(encoded...))
				}
				reply, err := ag.Chat(ctx, opts.contextID, strings.Join(args[1:], " "), chatOpts...)
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), reply.Result())
			})
		},
	}
	cmd.Flags().StringSliceVar(&images, "image", nil, "image file attached to the message")
	return cmd
}

func newAskCmd(opts *rootOptions) *cobra.Command {
	var passages []string
	cmd := &cobra.Command{
		Use:   "ask <agent> <question>",
		Short: "Ask an agent and stream the answer",
		Long: `Ask an agent and stream the answer to stdout.

Files given with --passage are packed into the question as context, most
relevant first, within the configured token budget.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				ag, err := a.manager.Lookup(ctx, args[0])
				if err != nil {
					return err
				}
				question := strings.Join(args[1:], " ")
				if len(passages) > 0 {
					question, err = budgetedPrompt(a.cfg.Budget, question, passages)
					if err != nil {
						return err
					}
				}

				out := cmd.OutOrStdout()
				_, err = ag.Ask(ctx, opts.contextID, question, func(chunk string) {
					fmt.Fprint(out, chunk)
				})
				fmt.Fprintln(out)
				return err
			})
		},
	}
	cmd.Flags().StringSliceVar(&passages, "passage", nil, "file used as context passage")
	return cmd
}

func budgetedPrompt(cfg config.BudgetConfig, question string, files []string) (string, error) {
	opts := []budget.Option{budget.WithBuffer(cfg.Buffer)}
	if cfg.Tokenizer != "" && cfg.Tokenizer != "words" {
		est, err := budget.NewTiktokenEstimator(cfg.Tokenizer)
		if err != nil {
			return "", err
		}
		opts = append(opts, budget.WithEstimator(est))
	}

	passages := make([]budget.Passage, 0, len(files))
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read passage: %w", err)
		}
		passages = append(passages, budget.Passage{
			Title:  filepath.Base(path),
			Source: path,
			Text:   string(data),
		})
	}
	return budget.New(opts...).Build(question, passages, cfg.MaxTokens), nil
}

func newEmbedCmd(opts *rootOptions) *cobra.Command {
	var itemsFile string
	cmd := &cobra.Command{
		Use:   "embed <agent> [text...]",
		Short: "Embed texts, or a JSON file of items, with an embedding agent",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				ag, err := a.manager.Lookup(ctx, args[0])
				if err != nil {
					return err
				}
				if itemsFile != "" {
					data, err := os.ReadFile(itemsFile)
					if err != nil {
						return fmt.Errorf("failed to read items: %w", err)
					}
					var items []embedding.Item
					if err := json.Unmarshal(data, &items); err != nil {
						return fmt.Errorf("failed to parse items: %w", err)
					}
					result, err := ag.EmbedItems(ctx, items)
					if err != nil {
						return err
					}
					return printResult(cmd.OutOrStdout(), result)
				}

				vectors, err := ag.EmbedBatch(ctx, args[1:])
				if err != nil {
					return err
				}
				for _, v := range vectors {
					fmt.Fprintln(cmd.OutOrStdout(), v)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&itemsFile, "items", "", "JSON file holding [{contentId, key, chunk}]")
	return cmd
}

func newMissionCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mission <description>",
		Short: "Plan a team of agents for a mission and run its tasks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				report, err := a.manager.Orchestrate(ctx, strings.Join(args, " "))
				if report != nil {
					if perr := printResult(cmd.OutOrStdout(), report); perr != nil {
						return perr
					}
				}
				return err
			})
		},
	}
}

func newResetCmd(opts *rootOptions) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "reset <agent>",
		Short: "Clear the history of a context, or of every context with --all",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				ag, err := a.manager.Get(ctx, args[0])
				if err != nil {
					return err
				}
				contextID := opts.contextID
				if all {
					contextID = ""
				}
				return ag.Reset(ctx, contextID)
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "clear every context")
	return cmd
}

func newTrashCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "trash <agent>",
		Short: "Mark an agent as trashed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				ag, err := a.manager.Get(ctx, args[0])
				if err != nil {
					return err
				}
				return ag.Trash(ctx)
			})
		},
	}
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search the chat histories of stored agents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				matches, err := storage.SearchMessages(ctx, a.store, strings.Join(args, " "))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, m := range matches {
					fmt.Fprintf(out, "%s [%s] #%d %s: %s\n", m.AgentID, m.ContextID, m.MessageIndex, m.Role, m.Preview)
				}
				return nil
			})
		},
	}
}

func newToolsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools of the configured MCP servers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(_ context.Context, a *app) error {
				out := cmd.OutOrStdout()
				for _, id := range a.servers.IDs() {
					decls, err := a.servers.Declarations(id)
					if err != nil {
						return err
					}
					for _, d := range decls {
						fmt.Fprintf(out, "%s.%s\t%s\n", id, d.Function.Name, d.Function.Description)
					}
				}
				return nil
			})
		},
	}
}

func newModelsCmd(opts *rootOptions) *cobra.Command {
	var host string
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the models of an Ollama server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if host == "" {
				host = cfg.Providers.Ollama.Host
			}
			p, err := provider.NewOllamaProvider(provider.Config{
				Type:    provider.TypeOllama,
				BaseURL: host,
				Headers: cfg.Providers.Ollama.Headers,
			})
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := p.Ping(ctx); err != nil {
				return err
			}
			models, err := p.ListModels(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, m := range models {
				fmt.Fprintf(out, "%-40s %8.1f GB\n", m.Name, float64(m.Size)/1e9)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "Ollama host (default from config)")
	return cmd
}

func readImages(paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read image: %w", err)
		}
		out = append(out, base64.StdEncoding.EncodeToString(data))
	}
	return out, nil
}

func printResult(w io.Writer, v any) error {
	if s, ok := v.(string); ok {
		_, err := fmt.Fprintln(w, s)
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
