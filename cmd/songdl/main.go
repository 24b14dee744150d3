// Package main provides the songdl CLI application entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"songdl/internal/core"
	"songdl/internal/download"
	"songdl/internal/progress"
	"songdl/internal/provider/deezer"
	"songdl/internal/provider/itunes"
	"songdl/internal/provider/lrclib"
	"songdl/internal/provider/spotify"
	"songdl/internal/provider/youtube"
	"songdl/internal/rank"
	"songdl/internal/runner"
	"songdl/internal/store"
	"songdl/internal/tag"
	"songdl/pkg/text"
)

var (
	cfgFile string
	config  *core.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "songdl SONG...",
	Short: "songdl - download songs with full ID3 tags",
	Long: `songdl resolves each query ("title -- artist", optional "market:XX" hint)
across several catalogs, ranks the matches against each other, downloads the
best playable candidate and tags it with the merged metadata.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSongdl,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Int("max-workers", 10, "number of songs to download at the same time")
	rootCmd.PersistentFlags().StringP("output", "o", ".", "output directory")
	rootCmd.PersistentFlags().Bool("resolve-only", false, "resolve and print the best match without downloading")
	rootCmd.PersistentFlags().Bool("no-progress", false, "disable the progress display")
	rootCmd.PersistentFlags().String("spotify-client-id", "", "Spotify client ID")
	rootCmd.PersistentFlags().String("spotify-client-secret", "", "Spotify client secret")
	rootCmd.PersistentFlags().String("spotify-token-path", "", "Spotify token cache path")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(1)
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(".env")
		viper.SetConfigType("env")
	}

	viper.SetEnvPrefix("SONGDL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
			os.Exit(1)
		}
	}

	config = buildConfig()
	logger = buildLogger(config.Log.Level)
}

func buildConfig() *core.Config {
	cfg := core.DefaultConfig()

	cfg.Spotify.ClientID = viper.GetString("spotify-client-id")
	cfg.Spotify.ClientSecret = viper.GetString("spotify-client-secret")
	if path := viper.GetString("spotify-token-path"); path != "" {
		cfg.Spotify.TokenPath = path
	}

	cfg.Download.OutputDir = viper.GetString("output")
	if cfg.Download.OutputDir == "" {
		cfg.Download.OutputDir = "."
	}
	cfg.Download.ResolveOnly = viper.GetBool("resolve-only")

	cfg.Log.Level = viper.GetString("log-level")

	if workers := viper.GetInt("max-workers"); workers > 0 {
		cfg.App.MaxWorkers = workers
	}

	return cfg
}

func buildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.OutputPaths = []string{"stderr"}

	builtLogger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to build logger: %v", err))
	}

	return builtLogger
}

// app bundles the long-lived collaborators shared by every query.
type app struct {
	parser     *text.Parser
	resolver   *core.Resolver
	downloader *download.Downloader
	tagger     *tag.Writer
	history    *store.History
}

func runSongdl(_ *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	providers := buildProviders()
	a := &app{
		parser: text.NewParser(),
		resolver: core.NewResolver(providers, rank.New(config.Ranking, logger.Named("rank")),
			config, logger.Named("resolver")),
		downloader: download.New(&config.Download, logger.Named("download")),
		tagger:     tag.NewWriter(logger.Named("tag")),
		history:    store.NewHistory(config.App.HistorySize, 0.001),
	}

	trees := make(map[string]*songProgress, len(args))
	children := make([]progress.Node, 0, len(args))
	for _, query := range args {
		sp := newSongProgress(query, providers)
		trees[query] = sp
		children = append(children, sp.group)
	}
	root := progress.NewGroup("songdl", children, progress.Calibrated())

	if !viper.GetBool("no-progress") {
		renderer := progress.NewRenderer(os.Stdout)
		renderer.Watch(root)
		defer renderer.Stop()
	}

	var failed atomic.Bool
	runner.Run(ctx, args, func(ctx context.Context, query string) (string, error) {
		return a.downloadSong(ctx, query, trees[query])
	}, runner.Options[string, string]{
		MaxWorkers: config.App.MaxWorkers,
		OnSuccess: func(query, path string) {
			if path != "" {
				logger.Info("song finished", zap.String("query", query), zap.String("path", path))
			}
		},
		OnError: func(query string, err error) {
			failed.Store(true)
			fmt.Fprintf(os.Stderr, "Error when downloading '%s': %v\n", query, err)
		},
	})

	if failed.Load() {
		return errors.New("some songs failed")
	}
	return nil
}

func buildProviders() []core.Provider {
	timeout := config.Providers.Timeout
	providers := []core.Provider{
		itunes.NewClient(timeout, logger.Named("itunes")),
		lrclib.NewClient(timeout, logger.Named("lrclib")),
		deezer.NewClient(timeout, logger.Named("deezer")),
		youtube.NewClient(timeout, logger.Named("youtube")),
	}

	// The Spotify Web API needs app credentials; without them the other
	// catalogs still give a usable resolution.
	if config.Spotify.ClientID != "" && config.Spotify.ClientSecret != "" {
		providers = append(providers, spotify.NewClient(&config.Spotify, logger.Named("spotify")))
	} else {
		logger.Info("no Spotify credentials, skipping Spotify search")
	}

	return providers
}

// songProgress is the per-query slice of the progress tree: one search task
// per provider, folded into an expandable group, plus a byte-weighted
// download task and a tagging task.
type songProgress struct {
	group    *progress.Group
	searches map[string]*progress.Task
	download *progress.Task
	tagging  *progress.Task
}

func newSongProgress(query string, providers []core.Provider) *songProgress {
	sp := &songProgress{
		searches: make(map[string]*progress.Task, len(providers)),
		download: progress.NewTask("download"),
		tagging:  progress.NewTask("tag"),
	}

	searchTasks := make([]progress.Node, 0, len(providers))
	for _, p := range providers {
		task := progress.NewTask(p.Name())
		sp.searches[p.Name()] = task
		searchTasks = append(searchTasks, task)
	}
	searchGroup := progress.NewGroup("search", searchTasks, progress.Expandable())

	sp.tagging.SetTotal(1)
	sp.group = progress.NewGroup(query,
		[]progress.Node{searchGroup, sp.download, sp.tagging},
		progress.Calibrated())
	return sp
}

// ProviderDone implements core.Observer.
func (sp *songProgress) ProviderDone(provider string, candidates int, err error) {
	task, ok := sp.searches[provider]
	if !ok {
		return
	}
	if err != nil {
		task.Fail()
		return
	}
	task.SetCount(candidates)
	task.Done()
}

func (sp *songProgress) finishSearches() {
	for _, task := range sp.searches {
		task.Done()
	}
}

func (a *app) downloadSong(ctx context.Context, rawQuery string, sp *songProgress) (string, error) {
	query := a.parser.ParseQuery(rawQuery)
	if query.Song == "" {
		return "", fmt.Errorf("empty query %q", rawQuery)
	}

	resolver := *a.resolver
	resolver.Observer = sp
	res, err := resolver.Resolve(ctx, query)
	sp.finishSearches()
	if err != nil {
		return "", err
	}

	extras, ok := res.Best.Extras.(core.VideoExtras)
	if !ok || extras.VideoID == "" {
		return "", fmt.Errorf("best candidate for %s has no downloadable source", query)
	}

	if a.history.Seen(extras.VideoID) {
		logger.Info("already downloaded, skipping", zap.Stringer("query", query),
			zap.String("video", extras.VideoID))
		sp.download.Done()
		sp.tagging.Done()
		return "", nil
	}

	if config.Download.ResolveOnly {
		fmt.Printf("%s -> %s (%s)\n", query, res.Best, extras.VideoID)
		sp.download.Done()
		sp.tagging.Done()
		return "", nil
	}

	result, err := a.downloader.Download(ctx, extras.VideoID, sp.download)
	if err != nil {
		sp.download.Fail()
		return "", err
	}

	// The watch page metadata joins the merge behind every provider.
	tags := core.Merge([]core.Candidate{res.Merged, result.Metadata})

	if err := a.tagger.Apply(ctx, result.Path, tags); err != nil {
		sp.tagging.Fail()
		return "", err
	}
	final := a.downloader.Rename(result, tags.ArtistText(), tags.Title)
	a.tagger.WriteLyricsSidecar(ctx, final, tags)
	sp.tagging.Done()

	a.history.Mark(extras.VideoID)
	return final, nil
}
