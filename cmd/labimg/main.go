package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	. "github.com/warpfork/go-errcat"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/polydawn/labimg"
	"github.com/polydawn/labimg/builder"
	"github.com/polydawn/labimg/config"
	"github.com/polydawn/labimg/lib/cmdrun"
)

/*
Output serialization formats
*/
const (
	FmtJson = "json"
	FmtDumb = "dumb"
)

type baseCLI struct {
	ConfigPath string          // TOML file to load; optional unless named.
	Format     string          // Output format for the result, eg. json
	Settings   config.Settings // Only fields given as flags are set.
}

func configureBuild(cli *baseCLI, app *kingpin.Application) {
	s := &cli.Settings
	app.Flag("role", "Role to build; repeatable (default: all roles)").
		EnumsVar(&s.Roles, roleNames()...)
	app.Flag("build-dir", "Scratch space for per-role work dirs [$LABIMG_BASE] (default: ./build)").
		StringVar(&s.BuildDir)
	app.Flag("dist-dir", "Where images and the manifest are written (default: ./dist)").
		StringVar(&s.DistDir)
	app.Flag("cache-dir", "Where the base archive is cached across runs [$LABIMG_CACHE] (default: <build-dir>/cache)").
		StringVar(&s.CacheDir)
	app.Flag("assets-dir", "Root the lab source files are resolved against [$LABIMG_ASSETS] (default: .)").
		StringVar(&s.AssetsDir)
	app.Flag("source-url", "Base minimal rootfs archive to fetch (http, https, or file)").
		StringVar(&s.SourceURL)
	app.Flag("kind", "Image format [archive, blockimage] (default: archive)").
		EnumVar(&s.Kind, string(labimg.Kind_Archive), string(labimg.Kind_BlockImage))
	intFlag(app.Flag("image-size-mb", "Size of the raw filesystem for blockimage (default: 512)"), &s.ImageSizeMB)
	boolFlag(app.Flag("force", "Re-extract each rootfs even if a work dir already exists"), &s.Force)
	boolFlag(app.Flag("keep-workdir", "Keep per-role work dirs after packaging"), &s.KeepWorkdir)
	boolFlag(app.Flag("skip-packages", "Do not install packages into the rootfs"), &s.SkipPackages)
	app.Flag("log-level", "Log verbosity [debug, info, warning, error] (default: info)").
		EnumVar(&s.LogLevel, "debug", "info", "warning", "error")
}

// Bind a bool flag that only lands in the settings when given (as --x or --no-x).
func boolFlag(f *kingpin.FlagClause, dst **bool) {
	v := new(bool)
	f.Action(func(*kingpin.ParseContext) error { *dst = v; return nil }).BoolVar(v)
}

func intFlag(f *kingpin.FlagClause, dst **int) {
	v := new(int)
	f.Action(func(*kingpin.ParseContext) error { *dst = v; return nil }).IntVar(v)
}

/*
Blocks until a sigint is received, then calls cancel.
*/
func CancelOnInterrupt(cancel context.CancelFunc) {
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt)
	<-signalChan
	signal.Stop(signalChan)
	cancel()
}

func main() {
	ctx := context.Background()
	exitCode := Main(ctx, os.Args, os.Stdin, os.Stdout, os.Stderr)
	os.Exit(int(exitCode))
}

func Main(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) labimg.ExitCode {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go CancelOnInterrupt(cancel)

	cli := baseCLI{}

	app := kingpin.New("labimg", "Build attacker and defender lab rootfs images")
	app.HelpFlag.Short('h')

	app.UsageWriter(stderr)
	app.ErrorWriter(stderr)

	app.Flag("config", "TOML config file [$LABIMG_CONFIG] (default: ./labimg.toml, if present)").
		StringVar(&cli.ConfigPath)
	app.Flag("format", "Result output format").
		Default(FmtDumb).
		EnumVar(&cli.Format, FmtJson, FmtDumb)
	configureBuild(&cli, app)

	var termStatus *int
	app.Terminate(func(status int) {
		termStatus = &status
	})
	_, err := app.Parse(args[1:])
	if err != nil {
		fmt.Fprintln(stderr, err)
		return labimg.ExitUsage
	}
	if termStatus != nil {
		// Help was requested; kingpin already printed it.
		if *termStatus == 0 {
			return labimg.ExitSuccess
		}
		return labimg.ExitUsage
	}

	cfg, log, err := resolveConfig(cli, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "labimg: %s\n", err)
		return labimg.ExitCodeFor(err)
	}

	runner := cmdrun.ExecRunner{Stdout: stderr, Stderr: stderr}
	mf, err := builder.New(log, runner).Build(ctx, cfg)
	SerializeResult(cli.Format, mf, err, stdout, stderr)
	return labimg.ExitCodeFor(err)
}

// Layer defaults, the config file, the environment, and flags; then build the logger.
func resolveConfig(cli baseCLI, stderr io.Writer) (labimg.BuildConfig, *logrus.Logger, error) {
	settings := config.Defaults()
	cfgPath, required := cli.ConfigPath, true
	if cfgPath == "" {
		cfgPath = config.GetConfigFilePath()
		required = os.Getenv("LABIMG_CONFIG") != ""
	}
	if err := config.LoadFile(cfgPath, &settings, required); err != nil {
		return labimg.BuildConfig{}, nil, err
	}
	config.ApplyEnv(&settings)
	settings.Merge(cli.Settings)

	log := logrus.New()
	log.Out = stderr
	log.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	level, err := logrus.ParseLevel(settings.LogLevel)
	if err != nil {
		return labimg.BuildConfig{}, nil, Errorf(labimg.ErrUsage, "invalid log level %q", settings.LogLevel)
	}
	log.SetLevel(level)

	cfg, err := settings.BuildConfig()
	return cfg, log, err
}

func roleNames() []string {
	var names []string
	for _, r := range labimg.AllRoles() {
		names = append(names, r.String())
	}
	return names
}
