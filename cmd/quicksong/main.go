package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/gosuri/uilive"
	"github.com/handiism/quicksong/internal/app"
	"github.com/handiism/quicksong/internal/config"
	"github.com/handiism/quicksong/internal/download"
	"github.com/handiism/quicksong/internal/model"
	"github.com/handiism/quicksong/internal/osu"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type flags struct {
	listURLs     string
	out          string
	songsPath    string
	configPath   string
	autoStart    bool
	workers      int
	proxy        bool
	noProxy      bool
	dumpExisting bool
	verbose      bool
	logLevel     string
}

func main() {
	os.Exit(execute())
}

func execute() int {
	var f flags
	code := 0

	cmd := &cobra.Command{
		Use:   "quicksong [urls...]",
		Short: "Download osu! beatmap sets in bulk",
		Long: "quicksong downloads beatmap set archives from osu.ppy.sh.\n" +
			"Sets already present in the download or Songs directory are skipped.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			code, err = run(cmd, f, args)
			return err
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.listURLs, "list-urls", "l", "", "File with beatmap links, one per line")
	fl.StringVarP(&f.out, "out", "o", "", "Path to download folder (overrides config)")
	fl.StringVarP(&f.songsPath, "songs-path", "s", "", "Path to osu!'s Songs directory; existing beatmaps won't be downloaded")
	fl.StringVarP(&f.configPath, "config-path", "c", "", "Path to configuration file")
	fl.BoolVarP(&f.autoStart, "auto-start", "a", false, "Open each beatmap when it finished downloading")
	fl.IntVarP(&f.workers, "workers", "w", 0, "Number of parallel downloaders (0 uses config)")
	fl.BoolVar(&f.proxy, "proxy", false, "Route downloads through public proxies")
	fl.BoolVar(&f.noProxy, "no-proxy", false, "Never use proxies")
	fl.BoolVar(&f.dumpExisting, "dump-existing", false, "Print the link of every beatmap set already on disk and exit")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "Show verbose output")
	fl.StringVar(&f.logLevel, "log-level", "", "Diagnostic log level (debug, info, warn, error)")
	cmd.MarkFlagsMutuallyExclusive("proxy", "no-proxy")
	cmd.MarkFlagsMutuallyExclusive("list-urls", "dump-existing")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if code == 0 {
			code = 1
		}
	}
	return code
}

func run(cmd *cobra.Command, f flags, args []string) (int, error) {
	path := config.ResolvePath(f.configPath)
	settings, err := config.Load(path)
	if err != nil {
		return 1, fmt.Errorf("loading config: %w", err)
	}
	applyFlags(cmd, f, settings)

	log := newLogger(settings.LogLevel, f.verbose)

	if !config.Exists(path) {
		if settings.Username == "" {
			promptCredentials(os.Stdin, os.Stdout, settings)
		}
		if err := settings.Save(path); err != nil {
			log.WithError(err).Warn("could not create config file")
		} else {
			fmt.Printf("Created config file: %s\n", path)
		}
	}

	if err := settings.Validate(); err != nil {
		return 1, err
	}

	runner := app.New(settings, log)

	if f.dumpExisting {
		if len(args) > 0 {
			return 1, errors.New("--dump-existing takes no links")
		}
		n, err := runner.DumpExisting(os.Stdout)
		if err != nil {
			return 1, err
		}
		fmt.Fprintf(os.Stderr, "%d beatmap sets on disk\n", n)
		return 0, nil
	}

	links, err := readLinks(f.listURLs, args)
	if err != nil {
		return 1, err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println("🎵 quicksong")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	status := newStatus(f.verbose)
	report, err := runner.Run(ctx, links, status.hooks())
	status.stop()

	if err != nil {
		if ctx.Err() != nil {
			fmt.Println("\nDownload cancelled.")
			if report != nil {
				fmt.Println(report.Summary())
			}
			return 130, nil
		}
		if model.KindOf(err) == model.KindPath {
			return 1, err
		}
		log.WithError(err).Error("download run failed")
	}

	fmt.Println()
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	if report != nil {
		fmt.Printf("✨ Complete! %s\n", report.Summary())
	}
	return 0, nil
}

// applyFlags lets explicitly set flags override the loaded settings.
func applyFlags(cmd *cobra.Command, f flags, s *config.Settings) {
	fl := cmd.Flags()
	if fl.Changed("out") {
		s.DownloadPath = f.out
	}
	if fl.Changed("songs-path") {
		s.SongsPath = f.songsPath
	}
	if fl.Changed("auto-start") {
		s.AutoStart = f.autoStart
	}
	if fl.Changed("workers") && f.workers > 0 {
		s.Workers = f.workers
	}
	if f.proxy {
		s.UseProxy = true
	}
	if f.noProxy {
		s.UseProxy = false
	}
	if fl.Changed("log-level") {
		s.LogLevel = f.logLevel
	}
}

func newLogger(level string, verbose bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.WarnLevel
	}
	if verbose && lvl < logrus.DebugLevel {
		lvl = logrus.DebugLevel
	}
	log.SetLevel(lvl)
	return log
}

// readLinks returns the links from the list file or, without one, the
// arguments. Exactly one source must be given.
func readLinks(listFile string, args []string) ([]string, error) {
	switch {
	case listFile != "" && len(args) > 0:
		return nil, errors.New("give either links or --list-urls, not both")
	case listFile != "":
		fmt.Println("Using links file")
		file, err := os.Open(listFile)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		return osu.ReadLinks(file)
	case len(args) > 0:
		return args, nil
	default:
		return nil, errors.New("no links given; pass links as arguments or use --list-urls")
	}
}

// promptCredentials asks for the account used to request session cookies.
func promptCredentials(in io.Reader, out io.Writer, s *config.Settings) {
	sc := bufio.NewScanner(in)
	fmt.Fprintln(out, "Enter your login and password to osu.ppy.sh")
	fmt.Fprint(out, "Login: ")
	if !sc.Scan() {
		return
	}
	s.Username = strings.TrimSpace(sc.Text())
	fmt.Fprint(out, "Password: ")
	if !sc.Scan() {
		return
	}
	s.Password = strings.TrimSpace(sc.Text())
}

// status prints progress events above a live "n/total" line.
type status struct {
	verbose bool
	writer  *uilive.Writer

	mu    sync.Mutex
	total int
	done  int
}

func newStatus(verbose bool) *status {
	w := uilive.New()
	w.Start()
	return &status{verbose: verbose, writer: w}
}

func (s *status) hooks() app.Hooks {
	return app.Hooks{
		OnPlan: func(total int) {
			s.mu.Lock()
			s.total = total
			s.mu.Unlock()
			s.render()
		},
		OnProgress: s.print,
		OnResult: func(download.Result) {
			s.mu.Lock()
			s.done++
			s.mu.Unlock()
			s.render()
		},
	}
}

func (s *status) print(event download.ProgressEvent) {
	if event.Level == download.LevelVerbose && !s.verbose {
		return
	}

	prefix := ""
	switch event.Level {
	case download.LevelError:
		prefix = "❌ "
	case download.LevelWarning:
		prefix = "⚠️  "
	case download.LevelSuccess:
		prefix = "✅ "
	case download.LevelInfo:
		prefix = "ℹ️  "
	default:
		prefix = "   "
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.writer.Bypass(), prefix+event.Message)
}

func (s *status) render() {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.writer, "📥 %d/%d beatmap sets done\n", s.done, s.total)
}

func (s *status) stop() {
	s.render()
	s.writer.Stop()
}
