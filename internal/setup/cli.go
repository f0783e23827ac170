package setup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hl7-synth-server/internal/config"
	"github.com/hl7-synth-server/internal/domain"
	"github.com/hl7-synth-server/internal/fieldpath"
	"github.com/hl7-synth-server/internal/mcp"
	"github.com/hl7-synth-server/internal/message"
	"github.com/hl7-synth-server/internal/refdata"
)

// CLI provides the hl7gen command line.
type CLI struct {
	config *config.LiteConfig
	logger *logrus.Logger
	stdin  io.Reader
	clock  func() time.Time
}

// NewCLI creates a new CLI over a lite configuration.
func NewCLI(cfg *config.LiteConfig) *CLI {
	if cfg == nil {
		cfg = config.DefaultLiteConfig()
	}
	return &CLI{
		config: cfg,
		stdin:  os.Stdin,
	}
}

// Run executes the command line in args against stdout and stderr.
func (c *CLI) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := c.Command()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

// Command builds the root command with every subcommand attached.
func (c *CLI) Command() *cobra.Command {
	root := &cobra.Command{
		Use:           "hl7gen",
		Short:         "Generate synthetic HL7 v2 messages",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("data-dir") {
				c.config.DataDir, _ = flags.GetString("data-dir")
			}
			if flags.Changed("reference-db") {
				c.config.ReferenceDB, _ = flags.GetString("reference-db")
			}
			if flags.Changed("log-level") {
				c.config.LogLevel, _ = flags.GetString("log-level")
			}
			c.logger = NewLogger(c.config.LogLevel, c.config.LogFormat)
			c.logger.SetOutput(cmd.ErrOrStderr())
			return nil
		},
	}
	root.PersistentFlags().String("data-dir", c.config.DataDir, "Directory holding the session database")
	root.PersistentFlags().String("reference-db", c.config.ReferenceDB, "SQLite reference database (empty uses the built-in dataset)")
	root.PersistentFlags().String("log-level", c.config.LogLevel, "Log level: debug, info, warn, error")

	root.AddCommand(c.generateCmd())
	root.AddCommand(c.sessionCmd())
	root.AddCommand(c.tablesCmd())
	root.AddCommand(c.pathsCmd())
	root.AddCommand(c.scenariosCmd())
	root.AddCommand(c.seedCmd())
	root.AddCommand(c.mcpCmd())
	return root
}

// engine builds a generation engine from the lite configuration.
func (c *CLI) engine(ctx context.Context) (*Engine, error) {
	if err := c.config.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return Build(ctx, Options{
		Generation:        c.config.Generation(),
		Reference:         c.config.Reference(),
		Sessions:          c.config.Sessions(),
		TableCacheEntries: c.config.CacheMaxItems,
		TableCacheTTL:     c.config.CacheTTL,
		Clock:             c.clock,
	}, c.logger)
}

func (c *CLI) now() time.Time {
	if c.clock != nil {
		return c.clock()
	}
	return time.Now()
}

// withEngine runs fn against a freshly built engine and closes it afterwards.
func (c *CLI) withEngine(cmd *cobra.Command, fn func(ctx context.Context, e *Engine) error) error {
	ctx := cmd.Context()
	e, err := c.engine(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := e.Close(); err != nil {
			c.logger.WithError(err).Warn("Failed to close engine")
		}
	}()
	return fn(ctx, e)
}

type generateOptions struct {
	messageType string
	count       int
	seed        uint64
	session     string
	scenario    string
	repeats     map[string]int
	asJSON      bool
	wire        bool
	output      string
}

func (c *CLI) generateCmd() *cobra.Command {
	opts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate one or more messages",
		Example: `  # One admission message
  hl7gen generate --type ADT^A01

  # Ten reproducible lab results for the diabetes case
  hl7gen generate -t ORU_R01 -n 10 --seed 42 --scenario diabetes_management

  # Carry the locked values of a session
  hl7gen generate --session demo --output admit.hl7 --wire`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withEngine(cmd, func(ctx context.Context, e *Engine) error {
				return c.generate(ctx, cmd, e, opts)
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&opts.messageType, "type", "t", "", "Message type, e.g. ADT^A01 or ORU_R01")
	flags.IntVarP(&opts.count, "count", "n", 1, "Number of messages")
	flags.Uint64Var(&opts.seed, "seed", 0, "Seed for reproducible output (0 picks one)")
	flags.StringVar(&opts.session, "session", "", "Override session whose locked values are applied")
	flags.StringVar(&opts.scenario, "scenario", "", "Clinical case to use for every message")
	flags.StringToIntVar(&opts.repeats, "repeat", nil, "Segment repetitions, e.g. OBX=5,DG1=2")
	flags.BoolVar(&opts.asJSON, "json", false, "Write JSON results instead of messages")
	flags.BoolVar(&opts.wire, "wire", false, "Separate segments with carriage returns only")
	flags.StringVarP(&opts.output, "output", "o", "", "Write to a file instead of stdout")
	return cmd
}

func (c *CLI) generate(ctx context.Context, cmd *cobra.Command, e *Engine, opts *generateOptions) error {
	req := message.Request{
		MessageType: opts.messageType,
		SessionName: opts.session,
		Seed:        opts.seed,
		Scenario:    opts.scenario,
		Repeats:     opts.repeats,
	}

	var results []*message.Result
	if opts.count == 1 {
		res, err := e.Generator.Generate(ctx, req)
		if err != nil {
			return err
		}
		results = []*message.Result{res}
	} else {
		batch, err := e.Generator.GenerateBatch(ctx, message.BatchRequest{Request: req, Count: opts.count})
		if err != nil {
			return err
		}
		results = batch.Results
	}

	out := cmd.OutOrStdout()
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	for _, res := range results {
		for _, d := range res.Diagnostics {
			c.logger.WithFields(logrus.Fields{
				"control_id": res.ControlID,
				"path":       d.Path,
				"field":      d.Field,
			}).Warn(d.Reason)
		}
	}

	if opts.asJSON {
		type jsonResult struct {
			*message.Result
			Message string `json:"message"`
		}
		payload := make([]jsonResult, len(results))
		for i, res := range results {
			payload[i] = jsonResult{Result: res, Message: res.Message()}
		}
		return writeJSON(out, payload)
	}

	for i, res := range results {
		if opts.wire {
			if _, err := io.WriteString(out, res.Message()); err != nil {
				return err
			}
			continue
		}
		if i > 0 {
			fmt.Fprintln(out)
		}
		if _, err := io.WriteString(out, strings.Join(res.Segments, "\n")+"\n"); err != nil {
			return err
		}
	}
	return nil
}

func (c *CLI) sessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage override sessions",
	}

	var description string
	var set []string
	create := &cobra.Command{
		Use:     "create NAME",
		Short:   "Create a session",
		Example: `  hl7gen session create demo --set patient.family_name=DOE --set PID.8=F`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseAssignments(set)
			if err != nil {
				return err
			}
			return c.withEngine(cmd, func(ctx context.Context, e *Engine) error {
				sess, err := e.Sessions.Create(ctx, args[0], description, values)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created session %s with %d locked values\n", sess.Name, len(sess.Values))
				return nil
			})
		},
	}
	create.Flags().StringVar(&description, "description", "", "Free-text description")
	create.Flags().StringArrayVar(&set, "set", nil, "Locked value as KEY=VALUE (repeatable)")
	cmd.AddCommand(create)

	var limit, offset int
	list := &cobra.Command{
		Use:   "list",
		Short: "List sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withEngine(cmd, func(ctx context.Context, e *Engine) error {
				sessions, total, err := e.Sessions.List(ctx, limit, offset)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "NAME\tVALUES\tUPDATED\tDESCRIPTION")
				for _, s := range sessions {
					fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", s.Name, len(s.Values), s.UpdatedAt.Format(time.RFC3339), s.Description)
				}
				if err := w.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d of %d sessions\n", len(sessions), total)
				return nil
			})
		},
	}
	list.Flags().IntVar(&limit, "limit", 50, "Maximum sessions to list")
	list.Flags().IntVar(&offset, "offset", 0, "Sessions to skip")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "show NAME",
		Short: "Show a session and its locked values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withEngine(cmd, func(ctx context.Context, e *Engine) error {
				sess, err := e.Sessions.Get(ctx, args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), sess)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "lock NAME KEY VALUE",
		Short: "Lock one field value",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withEngine(cmd, func(ctx context.Context, e *Engine) error {
				return e.Sessions.Lock(ctx, args[0], args[1], args[2])
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "unlock NAME KEY",
		Short: "Remove one locked value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withEngine(cmd, func(ctx context.Context, e *Engine) error {
				return e.Sessions.Unlock(ctx, args[0], args[1])
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withEngine(cmd, func(ctx context.Context, e *Engine) error {
				return e.Sessions.Delete(ctx, args[0])
			})
		},
	})

	var exportPath string
	var save bool
	export := &cobra.Command{
		Use:   "export",
		Short: "Export every session as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withEngine(cmd, func(ctx context.Context, e *Engine) error {
				path := exportPath
				if save && path == "" {
					path = filepath.Join(c.config.ExportDir(), "sessions-"+c.now().UTC().Format("20060102T150405")+".json")
				}
				if path == "" {
					return e.Sessions.Export(ctx, cmd.OutOrStdout())
				}

				f, err := os.Create(path)
				if err != nil {
					return fmt.Errorf("failed to create export file: %w", err)
				}
				defer f.Close()
				if err := e.Sessions.Export(ctx, f); err != nil {
					return err
				}
				if save {
					fmt.Fprintln(cmd.OutOrStdout(), path)
				}
				return nil
			})
		},
	}
	export.Flags().StringVarP(&exportPath, "output", "o", "", "Write to a file instead of stdout")
	export.Flags().BoolVar(&save, "save", false, "Write a timestamped file to the exports directory and print its path")
	cmd.AddCommand(export)

	cmd.AddCommand(&cobra.Command{
		Use:   "import FILE",
		Short: "Import sessions from an export, skipping existing names",
		Long:  "Import sessions from an export file. Use - to read standard input.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := c.stdin
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open import file: %w", err)
				}
				defer f.Close()
				in = f
			}
			return c.withEngine(cmd, func(ctx context.Context, e *Engine) error {
				imported, skipped, err := e.Sessions.Import(ctx, in)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d sessions, skipped %d\n", imported, skipped)
				return nil
			})
		},
	})

	return cmd
}

func (c *CLI) tablesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tables [ID]",
		Short: "List HL7 tables or show the values of one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withEngine(cmd, func(ctx context.Context, e *Engine) error {
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				if len(args) == 0 {
					ids, err := e.Tables.ListTableIDs(ctx)
					if err != nil {
						return err
					}
					fmt.Fprintln(w, "TABLE\tNAME\tVALUES")
					for _, id := range ids {
						table, err := e.Tables.GetTable(ctx, id)
						if err != nil {
							return err
						}
						fmt.Fprintf(w, "%s\t%s\t%d\n", table.ID, table.Name, len(table.Values))
					}
					return w.Flush()
				}

				table, err := e.Tables.GetTable(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Table %s: %s\n", table.ID, table.Name)
				fmt.Fprintln(w, "CODE\tTEXT")
				for _, v := range table.Values {
					fmt.Fprintf(w, "%s\t%s\n", v.Code, v.Text)
				}
				return w.Flush()
			})
		},
	}
}

func (c *CLI) pathsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "paths TYPE",
		Short:   "List the semantic paths usable as locked-value keys",
		Example: "  hl7gen paths ADT_A01",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mt, err := domain.ParseMessageType(args[0])
			if err != nil {
				return err
			}
			if _, err := message.LayoutFor(mt); err != nil {
				return err
			}
			paths := fieldpath.New(fieldpath.WithSegments(message.SegmentsFor)).Paths(mt)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, name := range fieldpath.SortedNames(paths) {
				fmt.Fprintf(w, "%s\t%s\n", name, paths[name])
			}
			return w.Flush()
		},
	}
}

func (c *CLI) scenariosCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scenarios",
		Short: "List the clinical cases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withEngine(cmd, func(ctx context.Context, e *Engine) error {
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tWEIGHT\tTITLE")
				for _, id := range e.Scenarios.IDs() {
					sc, err := e.Scenarios.Get(id)
					if err != nil {
						return err
					}
					fmt.Fprintf(w, "%s\t%d\t%s\n", sc.ID, sc.Weight, sc.Title)
				}
				return w.Flush()
			})
		},
	}
}

func (c *CLI) mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the generator as MCP tools on stdin and stdout",
		Long: `Serve message generation, catalog lookups and override sessions as Model
Context Protocol tools. Logs go to stderr; stdout carries the protocol.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withEngine(cmd, func(ctx context.Context, e *Engine) error {
				srv, err := mcp.NewServer(e.MCPServices(), c.logger)
				if err != nil {
					return err
				}
				return srv.ServeStdio(ctx)
			})
		},
	}
}

func (c *CLI) seedCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the built-in dataset into the SQLite reference database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.config.ReferenceDB == "" {
				return domain.NewValidationError("reference-db", "no reference database configured; set --reference-db or HL7GEN_REFERENCE_DB", nil)
			}
			ctx := cmd.Context()
			store, err := refdata.NewSQLiteStore(c.config.ReferenceDB)
			if err != nil {
				return err
			}
			defer store.Close()

			empty, err := store.IsEmpty(ctx)
			if err != nil {
				return err
			}
			if !empty && !force {
				fmt.Fprintf(cmd.OutOrStdout(), "Reference database %s is already seeded (use --force to reload)\n", store.Path())
				return nil
			}
			if err := store.Seed(ctx, refdata.Builtin()); err != nil {
				return err
			}
			ids, err := store.ListTableIDs(ctx)
			if err != nil {
				return err
			}
			c.logger.WithField("path", store.Path()).Info("Reference database seeded")
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %s with %d tables\n", store.Path(), len(ids))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Reload even when the database already holds data")
	return cmd
}

// parseAssignments turns KEY=VALUE arguments into a map. Values may contain '='.
func parseAssignments(items []string) (map[string]string, error) {
	values := make(map[string]string, len(items))
	for _, item := range items {
		key, value, ok := strings.Cut(item, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, domain.NewValidationError("set", "expected KEY=VALUE", item)
		}
		values[strings.TrimSpace(key)] = value
	}
	return values, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
