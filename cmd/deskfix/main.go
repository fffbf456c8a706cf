package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"deskfix/internal/action"
	"deskfix/internal/classify"
	"deskfix/internal/config"
	"deskfix/internal/diagnose"
	"deskfix/internal/fixer"
	"deskfix/internal/knowledge"
	"deskfix/internal/llm"
	"deskfix/internal/pipeline"
	"deskfix/internal/policy"
	"deskfix/internal/research"
	"deskfix/internal/session"
	"deskfix/internal/shell"
	"deskfix/internal/summarize"
	"deskfix/internal/websearch"
)

var (
	// Global flags
	cfgPath string
	verbose bool

	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "deskfix",
	Short: "deskfix - automated first-line desktop support",
	Long: `deskfix triages desktop issues the way a first-line technician would:
it classifies the problem, runs read-only diagnostics through a command
safety gate, gathers evidence from past support cases and the web, proposes
a staged fix, applies it, and verifies the result. Remediation escalates
through four stages before handing off to a human.

Run without arguments to start the interactive support session.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return config.LoadDotEnv(".env", logger)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractive(cmd.Context())
	},
}

// diagnoseCmd runs one issue through the full pipeline and exits.
var diagnoseCmd = &cobra.Command{
	Use:   "diagnose <issue text>",
	Short: "Run one issue through the pipeline",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		issue := strings.Join(args, " ")
		printOutcome(app, app.controller.Handle(cmd.Context(), issue))
		return nil
	},
}

// kbCmd groups knowledge-base maintenance.
var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Knowledge base maintenance",
}

var kbForce bool

var kbIndexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index the support corpus for similarity search",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		engine, err := buildEmbeddingEngine(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		store, err := knowledge.NewStore(cfg.Knowledge.DatabasePath, engine, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		indexed, err := store.IndexCSV(cmd.Context(), cfg.Knowledge.CorpusPath, kbForce)
		if err != nil {
			return err
		}
		if indexed == 0 {
			fmt.Println("Corpus unchanged; index is up to date.")
		} else {
			fmt.Printf("Indexed %d support cases with the %s engine.\n", indexed, engine.Name())
		}
		return nil
	},
}

// policyCmd checks a command against the deny-list without running it.
var policyCmd = &cobra.Command{
	Use:   "policy check <command>",
	Short: "Test a command against the deny-list",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if args[0] != "check" {
			return fmt.Errorf("unknown policy subcommand %q", args[0])
		}
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		filter, err := policy.NewFilter(cfg.Policy.DenylistPath, logger)
		if err != nil {
			return err
		}

		command := strings.Join(args[1:], " ")
		if allowed, reason := filter.IsAllowed(command); !allowed {
			fmt.Printf("BLOCKED: %s\n", reason)
		} else {
			fmt.Println("ALLOWED")
		}
		return nil
	},
}

// app bundles the wired pipeline and everything that needs closing.
type app struct {
	controller *pipeline.Controller
	store      *knowledge.Store
	transcript *session.Transcript
	cancel     context.CancelFunc
}

func (a *app) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.transcript != nil {
		_ = a.transcript.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}

// buildApp wires the full pipeline from configuration. Missing credentials
// degrade collaborators rather than failing: no LLM key means deterministic
// templates, no embedding key means the hashing engine.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	filter, err := policy.NewFilter(cfg.Policy.DenylistPath, logger)
	if err != nil {
		return nil, err
	}

	a := &app{}
	if cfg.Policy.LiveReload {
		watchCtx, cancel := context.WithCancel(ctx)
		a.cancel = cancel
		go filter.Watch(watchCtx)
	}

	if dir := cfg.Session.TranscriptDir; dir != "" {
		a.transcript, err = session.NewTranscript(dir, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	var audit shell.AuditSink
	if a.transcript != nil {
		audit = a.transcript
	}
	sh := shell.NewRunner(filter, shell.NewHostExecutor(), audit, logger)
	sh.SetTimeout(cfg.GetExecutionTimeout())

	var client llm.Client = llm.Unavailable{}
	if cfg.LLM.APIKey != "" {
		llmCfg := llm.DefaultOpenAICompatConfig(cfg.LLM.APIKey)
		if cfg.LLM.BaseURL != "" {
			llmCfg.BaseURL = cfg.LLM.BaseURL
		}
		if cfg.LLM.Model != "" {
			llmCfg.Model = cfg.LLM.Model
		}
		llmCfg.Timeout = cfg.GetLLMTimeout()
		client = llm.NewOpenAICompatClient(llmCfg, logger)
	}

	engine, err := buildEmbeddingEngine(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.store, err = knowledge.NewStore(cfg.Knowledge.DatabasePath, engine, logger)
	if err != nil {
		// Diagnostics still work without the knowledge base.
		logger.Warn("knowledge base unavailable", zap.Error(err))
		a.store = nil
	}

	web := websearch.NewClient(cfg.Web.Enabled, cfg.GetWebTimeout(), logger)
	aggregator := research.NewAggregator(a.store, web, cfg.Knowledge.TopK, logger)
	aggregator.SetWebMax(cfg.Web.MaxResults)

	classifier := classify.NewClassifier(client, logger)
	planner := classify.NewPlanner(classifier, client, logger)
	runner := action.NewRunner(sh, &pnpProbe{sh: sh}, logger)
	summarizer := summarize.NewSummarizer(client, logger)
	answerer := summarize.NewAnswerer(client, logger)

	agent := diagnose.NewAgent(aggregator, planner, runner, summarizer, logger)
	a.controller = pipeline.NewController(
		agent,
		fixer.NewPlanner(client, answerer, logger),
		fixer.NewExecutor(sh, logger),
		summarize.NewGatekeeper(client, logger),
		logger,
	)
	return a, nil
}

func buildEmbeddingEngine(ctx context.Context, cfg *config.Config) (knowledge.Engine, error) {
	if cfg.Embedding.Provider == "gemini" && cfg.Embedding.APIKey != "" {
		engine, err := knowledge.NewGenAIEngine(ctx, cfg.Embedding.APIKey, cfg.Embedding.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to build embedding engine: %w", err)
		}
		return engine, nil
	}
	return knowledge.NewHashingEngine(), nil
}

// pnpProbe checks for Bluetooth hardware by enumerating the device class.
type pnpProbe struct {
	sh *shell.Runner
}

func (p *pnpProbe) HasBluetooth(ctx context.Context) bool {
	result := p.sh.Run(ctx, "Get-PnpDevice -Class Bluetooth | Select-Object -First 1 | Format-List FriendlyName")
	return result.Allowed && result.Error == "" && strings.TrimSpace(result.Output) != ""
}

func runInteractive(ctx context.Context) error {
	app, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	fmt.Println("deskfix - describe your issue, or type 'exit' to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		issue := strings.TrimSpace(scanner.Text())
		if issue == "" {
			continue
		}
		if issue == "exit" || issue == "quit" {
			return nil
		}
		if app.transcript != nil {
			app.transcript.RecordIssue(issue, app.controller.Stage())
		}
		printOutcome(app, app.controller.Handle(ctx, issue))
	}
}

func printOutcome(a *app, outcome pipeline.Outcome) {
	if len(outcome.Diagnosis.ActionPlan) > 0 {
		fmt.Println("Diagnostic steps:")
		for _, line := range outcome.Diagnosis.ActionPlan {
			fmt.Println("  " + line)
		}
	}
	if outcome.Diagnosis.Findings != "" && outcome.Diagnosis.Findings != outcome.Message {
		fmt.Println(outcome.Diagnosis.Findings)
	}
	fmt.Println(outcome.Message)
	if outcome.Status == pipeline.StatusEscalate && len(outcome.FailedCommands) > 0 {
		fmt.Println("Failed commands:")
		for _, command := range outcome.FailedCommands {
			fmt.Println("  " + command)
		}
	}
	if a.transcript != nil {
		a.transcript.RecordOutcome(string(outcome.Status), outcome.Message, outcome.StageReached)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "configs/deskfix.yaml", "path to the configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	kbIndexCmd.Flags().BoolVar(&kbForce, "force", false, "re-embed the corpus even if unchanged")

	kbCmd.AddCommand(kbIndexCmd)
	rootCmd.AddCommand(diagnoseCmd, kbCmd, policyCmd)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
