// potranslate: batch translation of gettext PO catalogs with cloud LLM services.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/minios-linux/potranslate/config"
	"github.com/minios-linux/potranslate/i18n"
	"github.com/minios-linux/potranslate/langmeta"
	"github.com/minios-linux/potranslate/provider"
	"github.com/minios-linux/potranslate/sanitize"
	"github.com/minios-linux/potranslate/settings"
	"github.com/minios-linux/potranslate/translate"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	blue   = color.New(color.FgBlue).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.Bold, color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.Bold, color.FgCyan).SprintFunc()
)

// stderr receives user-facing log lines.
var stderr io.Writer = color.Error

func logInfo(format string, args ...any) {
	fmt.Fprintf(stderr, blue("[INFO]")+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(stderr, green("[OK]")+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(stderr, yellow("[WARN]")+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(stderr, red("[ERROR]")+" "+format+"\n", args...)
}

// ---------------------------------------------------------------------------
// Global flags
// ---------------------------------------------------------------------------

var (
	configPath string
	verbose    bool
)

// newLogger returns the slog logger handed to library code. Debug output
// is only shown with --verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "potranslate",
		Short: i18n.T("Translate gettext PO catalogs with cloud LLM services"),
		Long: `potranslate sends the untranslated entries of a PO catalog to a cloud
language model in fixed-size batches and writes the merged catalog.

Translated and fuzzy entries are never sent. Failed batches are retried,
then kept with their source text so the output stays complete. Strings with
unescaped quotes are repaired before parsing.

Commands:
  translate   Translate a PO catalog
  sanitize    Repair unescaped quotes in a PO catalog
  stats       Show what a translation run would send
  providers   List supported translation services
  auth        Manage stored API keys

Providers:
  openai, deepseek, zhipu, moonshot, qwen, huawei_maas, custom`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: $XDG_CONFIG_HOME/potranslate/config.yaml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable detailed logging")

	root.AddCommand(
		newTranslateCmd(),
		newSanitizeCmd(),
		newStatsCmd(),
		newProvidersCmd(),
		newAuthCmd(),
		newVersionCmd(),
	)
	return root
}

func main() {
	i18n.Init("")
	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "potranslate version %s\n", version)
			fmt.Fprintf(out, "  commit:    %s\n", commit)
			fmt.Fprintf(out, "  built:     %s\n", date)
		},
	}
}

// ---------------------------------------------------------------------------
// translate
// ---------------------------------------------------------------------------

type translateArgs struct {
	output                           string
	provider, model, apiKey, baseURL string
	sourceLang, targetLang, proxy    string
	batchSize, maxAttempts           int
	timeout                          time.Duration
	interactive                      bool
}

func newTranslateCmd() *cobra.Command {
	var a translateArgs

	cmd := &cobra.Command{
		Use:   "translate INPUT",
		Short: "Translate a PO catalog",
		Long: `Translate the untranslated entries of a PO catalog.

The result is written to OUTPUT, by default <dir>/<name>.<target>.po next to
the input. Press Ctrl+C to stop after the current batch; finished batches are
kept in the output.

Settings are taken from flags, POTRANSLATE_* environment variables, the
config file and built-in defaults, in that order.

Examples:
  potranslate translate app.pot --target-lang zh_CN
  potranslate translate po/de.po --provider deepseek --target-lang de -o po/de.po
  potranslate translate app.po --provider custom --base-url http://localhost:8080/v1/chat/completions --target-lang ja`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(cmd, args[0], a)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&a.output, "output", "o", "", "Output file (default: <dir>/<name>.<target>.po)")
	f.StringVar(&a.provider, "provider", "", "Translation service: "+strings.Join(provider.IDs(), ", "))
	f.StringVar(&a.model, "model", "", "Model name (default: first known model of the provider)")
	f.StringVar(&a.apiKey, "api-key", "", "API key (or POTRANSLATE_API_KEY env var)")
	f.StringVar(&a.baseURL, "base-url", "", "API endpoint URL (required for custom)")
	f.StringVar(&a.sourceLang, "source-lang", "en", "Source language code")
	f.StringVar(&a.targetLang, "target-lang", "", "Target language code (required)")
	f.IntVar(&a.batchSize, "batch-size", translate.DefaultBatchSize, "Entries per request")
	f.IntVar(&a.maxAttempts, "max-attempts", translate.DefaultMaxAttempts, "Calls per batch before it is skipped")
	f.DurationVar(&a.timeout, "timeout", provider.DefaultTimeout, "Request timeout")
	f.StringVar(&a.proxy, "proxy", "", "HTTP/HTTPS proxy URL")
	f.BoolVarP(&a.interactive, "interactive", "i", false, "Ask whether to retry, skip or stop when a batch fails")

	_ = cmd.RegisterFlagCompletionFunc("provider", completeProviders)
	_ = cmd.RegisterFlagCompletionFunc("model", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		id, _ := cmd.Flags().GetString("provider")
		if id == "" {
			id = provider.OpenAI
		}
		spec, ok := provider.Lookup(id)
		if !ok {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return spec.Models, cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("batch-size", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		out := make([]string, 0, len(provider.RecommendedBatchSizes))
		for _, n := range provider.RecommendedBatchSizes {
			out = append(out, strconv.Itoa(n))
		}
		return out, cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("target-lang", completeLanguages)
	_ = cmd.RegisterFlagCompletionFunc("source-lang", completeLanguages)

	return cmd
}

func completeProviders(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	out := make([]string, 0, len(provider.IDs()))
	for _, spec := range provider.Specs() {
		out = append(out, spec.ID+"\t"+spec.Name)
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

func completeLanguages(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	out := make([]string, 0, len(langmeta.Registry))
	for code, meta := range langmeta.Registry {
		if strings.HasPrefix(code, toComplete) {
			out = append(out, code+"\t"+meta.English)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

// resolveConfig merges defaults, the config file, the environment and the
// flags the user actually set.
func resolveConfig(cmd *cobra.Command, a translateArgs) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := config.LoadEnv(cfg); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}
	set("provider", func() { cfg.Provider = a.provider })
	set("model", func() { cfg.Model = a.model })
	set("base-url", func() { cfg.BaseURL = a.baseURL })
	set("source-lang", func() { cfg.SourceLang = a.sourceLang })
	set("target-lang", func() { cfg.TargetLang = a.targetLang })
	set("batch-size", func() { cfg.BatchSize = a.batchSize })
	set("max-attempts", func() { cfg.MaxAttempts = a.maxAttempts })
	set("timeout", func() { cfg.Timeout = a.timeout })
	set("proxy", func() { cfg.Proxy = a.proxy })

	cfg.APIKey = settings.ResolveAPIKey(cfg.Provider, a.apiKey, cfg.APIKey)
	if cfg.BaseURL == "" {
		cfg.BaseURL = settings.GetBaseURL(cfg.Provider)
	}

	if cfg.TargetLang == "" {
		return nil, errors.New(i18n.T("no target language: use --target-lang"))
	}
	if !langmeta.Valid(cfg.TargetLang) {
		return nil, fmt.Errorf("invalid target language %q", cfg.TargetLang)
	}
	warnings, err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		logWarning("%s", w)
	}
	if cfg.APIKey == "" && cfg.Provider != provider.Custom {
		return nil, errors.New(i18n.Tf("no API key for %s: use --api-key, POTRANSLATE_API_KEY or 'potranslate auth login --provider %s'", cfg.Provider, cfg.Provider))
	}
	return cfg, nil
}

// defaultOutput returns <dir>/<name>.<target>.po for input <dir>/<name>.<ext>.
func defaultOutput(input, target string) string {
	base := filepath.Base(input)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(input), name+"."+target+".po")
}

func runTranslate(cmd *cobra.Command, input string, a translateArgs) error {
	cfg, err := resolveConfig(cmd, a)
	if err != nil {
		return err
	}

	log := newLogger(stderr, verbose)
	pc := cfg.ProviderConfig()
	pc.Logger = log
	client, err := provider.New(pc)
	if err != nil {
		return err
	}

	output := a.output
	if output == "" {
		output = defaultOutput(input, cfg.TargetLang)
	}

	spec := client.Spec()
	model := cfg.Model
	if model == "" {
		model = spec.DefaultModel()
	}
	logInfo("%s", i18n.Tf("Provider: %s, Model: %s", spec.Name, model))
	logInfo("%s", i18n.Tf("Languages: %s -> %s", langmeta.Name(cfg.SourceLang), langmeta.Name(cfg.TargetLang)))

	var bar *progressbar.ProgressBar
	opts := translate.Options{
		SourceLang:  cfg.SourceLang,
		TargetLang:  cfg.TargetLang,
		BatchSize:   cfg.BatchSize,
		MaxAttempts: cfg.MaxAttempts,
		Logger:      log,
	}
	if verbose {
		opts.OnProgress = func(processed, total int, status string) {
			logInfo("[%d/%d] %s", processed, total, status)
		}
	} else {
		opts.OnProgress = func(processed, total int, status string) {
			if bar == nil {
				bar = newProgressBar(stderr, total, input)
			}
			bar.Describe(cyan(filepath.Base(input)) + " " + status)
			_ = bar.Set(processed)
		}
	}
	if a.interactive {
		opts.Decider = &promptDecider{
			in:  bufio.NewReader(cmd.InOrStdin()),
			out: stderr,
			pause: func() {
				if bar != nil {
					_ = bar.Clear()
				}
			},
		}
	}

	tr := translate.New(client, opts)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer func() {
		signal.Stop(sigs)
		close(sigs)
	}()
	go func() {
		for range sigs {
			tr.Stop()
		}
	}()

	stats, err := tr.TranslateFile(cmd.Context(), input, output)
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(stderr)
	}
	if err != nil {
		return err
	}

	printSummary(cmd.OutOrStdout(), stats, output)
	switch {
	case stats.Stopped:
		logWarning("%s", i18n.Tf("Translation stopped; %d entries left untranslated", stats.Unresolved))
	case stats.Errors > 0:
		logWarning("%s", i18n.Tf("%d entries kept their source text after failed batches", stats.Errors))
	default:
		logSuccess("%s", i18n.Tf("Translation complete: %s", output))
	}
	return nil
}

func newProgressBar(w io.Writer, total int, input string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(filepath.Base(input)),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}

// printSummary writes the statistics of a finished run.
func printSummary(w io.Writer, s translate.Stats, output string) {
	fmt.Fprintf(w, "\n%s\n", i18n.T("Translation results"))
	fmt.Fprintln(w, strings.Repeat("─", 40))
	row := func(label string, n int) {
		fmt.Fprintf(w, "  %-24s %6d\n", label, n)
	}
	row(i18n.T("Total entries:"), s.Total)
	row(i18n.T("Already translated:"), s.Translated)
	row(i18n.T("Fuzzy (kept):"), s.Fuzzy)
	row(i18n.T("Sent for translation:"), s.Untranslated)
	row(i18n.T("Errors:"), s.Errors)
	if s.Fallback > 0 {
		row(i18n.T("Missing answers:"), s.Fallback)
	}
	if s.Unresolved > 0 {
		row(i18n.T("Not processed:"), s.Unresolved)
	}
	if s.Repaired > 0 {
		row(i18n.T("Repaired lines:"), s.Repaired)
	}
	fmt.Fprintf(w, "  %-24s %s\n", i18n.T("Output:"), output)
}

// promptDecider asks the user how to continue after a failed call.
type promptDecider struct {
	in    *bufio.Reader
	out   io.Writer
	pause func()
}

func (d *promptDecider) Decide(cause string, batch, total int) translate.Decision {
	if d.pause != nil {
		d.pause()
	}
	fmt.Fprintf(d.out, "\n%s %s\n", red(i18n.Tf("Batch %d/%d failed:", batch, total)), cause)
	for {
		fmt.Fprint(d.out, i18n.T("[r]etry, [s]kip or s[t]op? "))
		line, err := d.in.ReadString('\n')
		if dec, ok := translate.ParseDecision(line); ok {
			return dec
		}
		if err != nil {
			// No more input: stop rather than loop.
			fmt.Fprintln(d.out)
			return translate.DecisionStop
		}
	}
}

// ---------------------------------------------------------------------------
// sanitize
// ---------------------------------------------------------------------------

var errNeedsRepair = errors.New("catalog needs repair")

func newSanitizeCmd() *cobra.Command {
	var (
		output string
		check  bool
	)
	cmd := &cobra.Command{
		Use:   "sanitize INPUT",
		Short: "Repair unescaped quotes in a PO catalog",
		Long: `Escape stray double quotes and lone backslashes inside PO strings.

Without -o the input file is rewritten in place. With --check nothing is
written; the command lists the lines that need repair and fails if there
are any.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSanitize(cmd.OutOrStdout(), args[0], output, check)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: rewrite INPUT)")
	cmd.Flags().BoolVar(&check, "check", false, "Only report lines that need repair")
	return cmd
}

func runSanitize(w io.Writer, input, output string, check bool) error {
	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	res, err := sanitize.Sanitize(string(data))
	if err != nil {
		var le *sanitize.LineError
		if errors.As(err, &le) {
			return fmt.Errorf("%s:%d: %s", input, le.Line, le.Reason)
		}
		return err
	}

	if check {
		for _, n := range res.Repaired {
			fmt.Fprintf(w, "%s:%d\n", input, n)
		}
		if res.Changed() {
			return fmt.Errorf("%s: %w (%s)", input, errNeedsRepair,
				fmt.Sprintf(i18n.N("%d line", "%d lines", len(res.Repaired)), len(res.Repaired)))
		}
		logSuccess("%s", i18n.Tf("%s is clean", input))
		return nil
	}

	if output == "" {
		output = input
	}
	if !res.Changed() && output == input {
		logSuccess("%s", i18n.Tf("%s is clean", input))
		return nil
	}
	mode := os.FileMode(0o644)
	if st, err := os.Stat(input); err == nil {
		mode = st.Mode().Perm()
	}
	if err := os.WriteFile(output, []byte(res.Text), mode); err != nil {
		return fmt.Errorf("writing %s: %w", output, err)
	}
	logSuccess("%s", i18n.Tf("Repaired %d lines, written to %s", len(res.Repaired), output))
	return nil
}

// ---------------------------------------------------------------------------
// stats
// ---------------------------------------------------------------------------

func newStatsCmd() *cobra.Command {
	var batchSize int
	cmd := &cobra.Command{
		Use:   "stats INPUT",
		Short: "Show what a translation run would send",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd.OutOrStdout(), args[0], batchSize)
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", translate.DefaultBatchSize, "Entries per request")
	return cmd
}

func runStats(w io.Writer, input string, batchSize int) error {
	f, repaired, err := translate.LoadCatalog(input)
	if err != nil {
		return err
	}
	var s translate.Stats
	items := translate.Select(f, &s)
	batches := translate.Partition(items, batchSize)

	fmt.Fprintf(w, "%s\n", cyan(input))
	fmt.Fprintf(w, "  %-24s %6d\n", i18n.T("Total entries:"), s.Total)
	fmt.Fprintf(w, "  %-24s %6d\n", i18n.T("Already translated:"), s.Translated)
	fmt.Fprintf(w, "  %-24s %6d\n", i18n.T("Fuzzy (kept):"), s.Fuzzy)
	fmt.Fprintf(w, "  %-24s %6d\n", i18n.T("Sent for translation:"), s.Untranslated)
	fmt.Fprintf(w, "  %-24s %6d\n", i18n.T("Batches:"), len(batches))
	if len(repaired) > 0 {
		fmt.Fprintf(w, "  %-24s %6d\n", i18n.T("Repaired lines:"), len(repaired))
	}
	if lang := f.HeaderField("Language"); lang != "" {
		fmt.Fprintf(w, "  %-24s %s (%s)\n", i18n.T("Language:"), lang, langmeta.Native(lang))
	}
	return nil
}

// ---------------------------------------------------------------------------
// providers
// ---------------------------------------------------------------------------

func newProvidersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List supported translation services",
		Run: func(cmd *cobra.Command, args []string) {
			printProviders(cmd.OutOrStdout())
		},
	}
}

func printProviders(w io.Writer) {
	fmt.Fprintf(w, "  %-12s %-28s %-16s %s\n", "ID", "NAME", "DEFAULT MODEL", "MODE")
	for _, spec := range provider.Specs() {
		mode := "batch"
		if !spec.Batching {
			mode = "per-entry"
		}
		fmt.Fprintf(w, "  %-12s %-28s %-16s %s\n", spec.ID, spec.Name, spec.DefaultModel(), mode)
	}
}
