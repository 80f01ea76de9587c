package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/memfill/memfill/internal/browser"
	"github.com/memfill/memfill/internal/config"
	"github.com/memfill/memfill/internal/domain"
	"github.com/memfill/memfill/internal/llm"
	"github.com/memfill/memfill/internal/repository/sqlite"
	"github.com/memfill/memfill/internal/services/autofill"
	"github.com/memfill/memfill/internal/services/collect"
	"github.com/memfill/memfill/internal/services/detection"
	"github.com/memfill/memfill/internal/services/matching"
)

var (
	green  = color.New(color.FgGreen, color.Bold)
	red    = color.New(color.FgRed, color.Bold)
	yellow = color.New(color.FgYellow, color.Bold)
	cyan   = color.New(color.FgCyan, color.Bold)
	bold   = color.New(color.Bold)
	dim    = color.New(color.Faint)
)

const usage = `memfill - AI form autofill from your saved answers

Usage:
  memfill detect   -url <page>          Detect forms and fields on a page
  memfill fill     -url <page> [flags]  Match saved answers and fill the page
  memfill memories <list|add|delete|import|export> [flags]

Run "memfill <command> -h" for command flags.
`

func main() {
	godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "detect":
		err = cmdDetect(os.Args[2:])
	case "fill":
		err = cmdFill(os.Args[2:])
	case "memories":
		err = cmdMemories(os.Args[2:])
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Print(usage)
		os.Exit(1)
	}
	if err != nil {
		red.Printf("❌ %v\n", err)
		os.Exit(1)
	}
}

func newLogger(verbose bool) *zap.Logger {
	if verbose {
		logger, _ := zap.NewDevelopment()
		return logger
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"/dev/null"}
	logger, _ := cfg.Build()
	return logger
}

func openRepo(cfg *config.Config) (*sqlite.DB, *sqlite.MemoryRepository, error) {
	db, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open database %s: %w", cfg.Database.Path, err)
	}
	return db, sqlite.NewMemoryRepository(db), nil
}

//==============================================================================
// detect
//==============================================================================

func cmdDetect(args []string) error {
	fs := flag.NewFlagSet("detect", flag.ExitOnError)
	targetURL := fs.String("url", "", "Page to scan")
	headful := fs.Bool("headful", false, "Show the browser window")
	verbose := fs.Bool("verbose", false, "Verbose output")
	fs.Parse(args)

	if *targetURL == "" {
		return fmt.Errorf("-url is required")
	}

	logger := newLogger(*verbose)
	defer logger.Sync()

	cfg, err := config.LoadWithDefaults()
	if err != nil {
		return err
	}

	result, _, cleanup, err := scanPage(*targetURL, cfg, !*headful, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	printDetectResult(result)
	return nil
}

func printDetectResult(result domain.DetectResult) {
	if !result.Success {
		yellow.Printf("⚠ Detection reported failure: %s\n", result.Error)
	}
	green.Printf("✓ Found %d forms, %d fields\n", len(result.Forms), result.TotalFields)
	if result.WebsiteContext != nil {
		dim.Printf("  page type: %s", result.WebsiteContext.PageType)
		if result.WebsiteContext.FormPurpose != "" {
			dim.Printf("  purpose: %s", result.WebsiteContext.FormPurpose)
		}
		fmt.Println()
	}
	for _, form := range result.Forms {
		fmt.Println()
		name := form.Name
		if name == "" {
			name = form.Opid
		}
		bold.Printf("  %s", name)
		if form.Action != "" {
			dim.Printf("  → %s", form.Action)
		}
		fmt.Println()
		for _, field := range form.Fields {
			label := field.Metadata.Labels.Primary()
			if label == "" {
				label = field.Metadata.Name
			}
			fmt.Printf("    %-8s %-14s %s", field.Opid, field.Metadata.FieldType, label)
			if field.Metadata.FieldPurpose != "" {
				dim.Printf("  (%s)", field.Metadata.FieldPurpose)
			}
			fmt.Println()
		}
	}
}

//==============================================================================
// fill
//==============================================================================

func cmdFill(args []string) error {
	fs := flag.NewFlagSet("fill", flag.ExitOnError)
	targetURL := fs.String("url", "", "Page to fill")
	headful := fs.Bool("headful", false, "Show the browser window")
	autoOnly := fs.Bool("auto-only", false, "Fill only matches above the confidence threshold")
	yes := fs.Bool("yes", false, "Apply without confirmation")
	offline := fs.Bool("offline", false, "Skip the AI matcher, use heuristics only")
	hold := fs.Duration("hold", 0, "Keep the browser open after filling (e.g. 30s)")
	verbose := fs.Bool("verbose", false, "Verbose output")
	fs.Parse(args)

	if *targetURL == "" {
		return fmt.Errorf("-url is required")
	}

	logger := newLogger(*verbose)
	defer logger.Sync()

	cfg, err := config.LoadWithDefaults()
	if err != nil {
		return err
	}

	db, repo, err := openRepo(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	matcher := buildMatcher(cfg, *offline, logger)

	b, err := browser.Launch(browser.Config{
		Headless:       !*headful,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
	}, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	page, err := b.NewPage(browser.Config{
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
	})
	if err != nil {
		return err
	}

	ctx := context.Background()

	cyan.Printf("▸ Loading %s\n", *targetURL)
	quiet, err := navigateAndSettle(page, *targetURL, cfg.Autofill.MutationDebounce, logger)
	if err != nil {
		return err
	}
	dim.Printf("  page settled after %d mutation batches\n", quiet)

	// The page is one attached frame from the broker's point of view:
	// each gather re-snapshots every browser frame and merges the results.
	session := detection.NewSession()
	broker := collect.NewBroker(logger)
	broker.Attach(ctx, pageDetectFunc(page, session, logger))
	collector := collect.NewCollector(broker, cfg.Autofill.CollectTimeout, nil, logger)

	orch := autofill.NewOrchestrator(collector, matcher, repo, session, nil, autofill.Config{
		ConfidenceThreshold: cfg.Autofill.ConfidenceThreshold,
		AutoApply:           false,
	}, nil, logger)

	tracker := autofill.NewTracker()
	events := tracker.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			if ev.Error != "" {
				dim.Printf("  … %s (%s)\n", ev.Stage, ev.Error)
				continue
			}
			dim.Printf("  … %s\n", ev.Stage)
		}
	}()

	result, err := orch.Run(ctx, "cli", tracker)
	tracker.Close()
	<-done
	if err != nil {
		return err
	}

	matched := printMappings(result.Mappings)
	if matched == 0 {
		yellow.Println("⚠ Nothing to fill")
		return nil
	}

	if !*yes && !confirm(fmt.Sprintf("Fill %d fields?", matched)) {
		yellow.Println("⚠ Aborted")
		return nil
	}

	plan := autofill.BuildPlan(result.Generation, result.Mappings, *autoOnly)
	report := browser.NewLiveFiller(logger).Apply(page, plan)

	green.Printf("✓ Filled %d fields", report.Filled)
	if report.Skipped > 0 {
		yellow.Printf(", skipped %d", report.Skipped)
	}
	if len(report.Misses) > 0 {
		red.Printf(", missed %d (%s)", len(report.Misses), strings.Join(report.Misses, ", "))
	}
	fmt.Println()

	recordUsage(ctx, repo, result.Mappings, logger)

	if *hold > 0 {
		dim.Printf("  holding browser open for %s\n", *hold)
		time.Sleep(*hold)
	}
	return nil
}

// buildMatcher assembles the AI matcher over the configured provider,
// degrading to heuristics when no key is available.
func buildMatcher(cfg *config.Config, offline bool, logger *zap.Logger) *matching.AIMatcher {
	fallback := matching.NewFallbackMatcher(logger)
	if offline || cfg.LLM.APIKey() == "" {
		if !offline {
			yellow.Println("⚠ No API key configured, matching with heuristics only")
		}
		return matching.NewAIMatcher(nil, fallback, nil, logger)
	}

	var provider llm.Provider
	switch cfg.LLM.Provider {
	case "openai":
		client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey:       cfg.LLM.OpenAIAPIKey,
			BaseURL:      cfg.LLM.OpenAIBaseURL,
			Model:        cfg.LLM.OpenAIModel,
			RateLimitRPM: cfg.LLM.RateLimitRPM,
			CacheTTL:     cfg.LLM.CacheTTL,
		})
		if err == nil {
			provider = llm.NewBreakerProvider(client, logger)
		}
	default:
		client, err := llm.NewAnthropicClient(llm.Config{
			APIKey:       cfg.LLM.AnthropicAPIKey,
			Model:        cfg.LLM.AnthropicModel,
			Timeout:      cfg.LLM.Timeout,
			RateLimitRPM: cfg.LLM.RateLimitRPM,
			CacheTTL:     cfg.LLM.CacheTTL,
			MaxRetries:   cfg.LLM.MaxRetries,
		})
		if err == nil {
			provider = llm.NewBreakerProvider(client, logger)
		}
	}
	return matching.NewAIMatcher(provider, fallback, nil, logger)
}

// pageDetectFunc snapshots every frame of the page and merges the
// per-frame detection results. The shared session caches main-frame
// fields so the fill plan's generation stays aligned with detection.
func pageDetectFunc(page playwright.Page, session *detection.Session, logger *zap.Logger) collect.DetectFunc {
	loader := browser.NewLoader(logger)
	detector := detection.NewService(logger)
	return func(ctx context.Context) domain.DetectResult {
		var results []domain.DetectResult
		for _, fd := range loader.Snapshot(page) {
			sess := session
			if !fd.Info.IsMainFrame {
				sess = detection.NewSession()
			}
			results = append(results, detector.Detect(fd.Doc, fd.Info, sess))
		}
		return collect.Merge(results)
	}
}

// navigateAndSettle loads the URL and waits for DOM mutations to go
// quiet before detection runs, so late-rendering forms are not missed.
func navigateAndSettle(page playwright.Page, url string, debounce time.Duration, logger *zap.Logger) (int, error) {
	quiet := make(chan int, 1)
	watcher := autofill.NewWatcher(debounce, func(pending int) {
		select {
		case quiet <- pending:
		default:
		}
	}, logger)
	defer watcher.Stop()

	err := page.ExposeFunction("__memfillMutation", func(args ...interface{}) interface{} {
		watcher.Notify()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("expose mutation hook: %w", err)
	}

	if _, err := page.Goto(url); err != nil {
		return 0, fmt.Errorf("navigate to %s: %w", url, err)
	}

	_, err = page.Evaluate(`() => {
		new MutationObserver(() => window.__memfillMutation && window.__memfillMutation())
			.observe(document.documentElement, { childList: true, subtree: true, attributes: true });
	}`)
	if err != nil {
		logger.Debug("mutation observer install failed", zap.Error(err))
	}

	// Seed one notification so a perfectly static page still settles
	// after a single debounce window.
	watcher.Notify()

	select {
	case pending := <-quiet:
		return pending, nil
	case <-time.After(10 * time.Second):
		return 0, nil
	}
}

func printMappings(mappings []domain.FieldMapping) int {
	matched := 0
	for _, m := range mappings {
		if !m.HasMatch() {
			continue
		}
		matched++
		marker := yellow.Sprint("○")
		if m.AutoFill {
			marker = green.Sprint("●")
		}
		fmt.Printf("  %s %-8s %-30q %.2f", marker, m.FieldOpid, m.FillValue(), m.Confidence)
		if m.IsRephrased {
			dim.Print("  rephrased")
		}
		fmt.Println()
	}
	return matched
}

func recordUsage(ctx context.Context, repo *sqlite.MemoryRepository, mappings []domain.FieldMapping, logger *zap.Logger) {
	seen := make(map[string]bool)
	for _, m := range mappings {
		if !m.HasMatch() || seen[m.MemoryID] {
			continue
		}
		seen[m.MemoryID] = true
		id, err := uuid.Parse(m.MemoryID)
		if err != nil {
			continue
		}
		if err := repo.RecordUsage(ctx, id); err != nil {
			logger.Warn("usage record failed", zap.String("memory_id", m.MemoryID), zap.Error(err))
		}
	}
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N] ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// scanPage performs a one-shot load and detect for the detect command.
func scanPage(url string, cfg *config.Config, headless bool, logger *zap.Logger) (domain.DetectResult, playwright.Page, func(), error) {
	b, err := browser.Launch(browser.Config{
		Headless:       headless,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
	}, logger)
	if err != nil {
		return domain.DetectResult{}, nil, nil, err
	}

	page, err := b.NewPage(browser.Config{
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
	})
	if err != nil {
		b.Close()
		return domain.DetectResult{}, nil, nil, err
	}

	if _, err := navigateAndSettle(page, url, cfg.Autofill.MutationDebounce, logger); err != nil {
		b.Close()
		return domain.DetectResult{}, nil, nil, err
	}

	session := detection.NewSession()
	result := pageDetectFunc(page, session, logger)(context.Background())
	return result, page, func() { b.Close() }, nil
}

//==============================================================================
// memories
//==============================================================================

func cmdMemories(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("memories needs a subcommand: list, add, delete, import, export")
	}

	cfg, err := config.LoadWithDefaults()
	if err != nil {
		return err
	}
	db, repo, err := openRepo(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()

	switch args[0] {
	case "list":
		return memoriesList(ctx, repo)
	case "add":
		return memoriesAdd(ctx, repo, args[1:])
	case "delete":
		return memoriesDelete(ctx, repo, args[1:])
	case "import":
		return memoriesImport(ctx, repo, args[1:])
	case "export":
		return memoriesExport(ctx, repo, args[1:])
	default:
		return fmt.Errorf("unknown memories subcommand %q", args[0])
	}
}

func memoriesList(ctx context.Context, repo *sqlite.MemoryRepository) error {
	entries, err := repo.List(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		dim.Println("No saved answers yet. Try: memfill memories add -q \"Email\" -a \"you@example.com\"")
		return nil
	}
	for _, e := range entries {
		bold.Printf("%s", e.Question)
		dim.Printf("  [%s", e.Category)
		if e.UsageCount > 0 {
			dim.Printf(", used %d×", e.UsageCount)
		}
		dim.Print("]")
		fmt.Println()
		fmt.Printf("  %s\n", e.Answer)
		dim.Printf("  %s\n", e.ID)
	}
	green.Printf("✓ %d saved answers\n", len(entries))
	return nil
}

func memoriesAdd(ctx context.Context, repo *sqlite.MemoryRepository, args []string) error {
	fs := flag.NewFlagSet("memories add", flag.ExitOnError)
	question := fs.String("q", "", "Question or field label")
	answer := fs.String("a", "", "Your answer")
	category := fs.String("category", string(domain.CategoryOther), "Category")
	purpose := fs.String("purpose", "", "Field purpose hint (e.g. email, tel)")
	fs.Parse(args)

	if *question == "" || *answer == "" {
		return fmt.Errorf("-q and -a are required")
	}
	cat := domain.MemoryCategory(*category)
	if !cat.IsValid() {
		return fmt.Errorf("unknown category %q", *category)
	}

	entry := domain.NewMemoryEntry(*question, *answer, cat, domain.SourceManual)
	entry.FieldPurpose = *purpose
	if err := repo.Create(ctx, entry); err != nil {
		return err
	}
	green.Printf("✓ Saved %s\n", entry.ID)
	return nil
}

func memoriesDelete(ctx context.Context, repo *sqlite.MemoryRepository, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("memories delete needs an id")
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid id %q", args[0])
	}
	if err := repo.Delete(ctx, id); err != nil {
		return err
	}
	green.Println("✓ Deleted")
	return nil
}

func memoriesImport(ctx context.Context, repo *sqlite.MemoryRepository, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("memories import needs a csv file")
	}
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	n, err := repo.ImportCSV(ctx, f)
	if err != nil {
		return err
	}
	green.Printf("✓ Imported %d answers\n", n)
	return nil
}

func memoriesExport(ctx context.Context, repo *sqlite.MemoryRepository, args []string) error {
	out := os.Stdout
	if len(args) >= 1 {
		f, err := os.Create(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	return repo.ExportCSV(ctx, out)
}
