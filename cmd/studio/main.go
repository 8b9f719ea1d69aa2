// Command studio drives a generation workspace against a running API server.
//
//	studio [global flags] generate --provider nano-banana --prompt "a banana" --num-images 2
//	studio upscale --image ./photo.png --scale 4
//	studio history --provider veo3 --limit 10
//	studio credits
//	studio upgrade --provider veo3 --task <id>
//
// Every flag can also be set through the environment with the STUDIO_ prefix,
// e.g. STUDIO_SERVER and STUDIO_TOKEN.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/genstudio/api/internal/logging"
	"github.com/genstudio/api/internal/studio"
)

type command struct {
	name  string
	usage string
	flags func(fs *pflag.FlagSet)
	run   func(ctx context.Context, app *cli) error
}

var commands = []command{
	{"generate", "submit a generation and wait for the result", generateFlags, runGenerate},
	{"upscale", "upscale an image and wait for the result", upscaleFlags, runUpscale},
	{"history", "list or delete stored tasks", historyFlags, runHistory},
	{"credits", "show balance and pricing", func(*pflag.FlagSet) {}, runCredits},
	{"upgrade", "fetch the 1080p rendition of a finished video", upgradeFlags, runUpgrade},
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	v := viper.New()
	v.SetEnvPrefix("STUDIO")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	global := pflag.NewFlagSet("studio", pflag.ContinueOnError)
	global.SetInterspersed(false)
	global.String("server", "http://localhost:8080", "API base URL")
	global.String("token", "", "bearer token")
	global.String("log-level", "warn", "debug, info, warn or error")
	global.Duration("poll-interval", 0, "status check spacing (default 3s for images, 10s for videos)")
	global.Int("max-poll-attempts", 0, "give up after this many status checks (0 polls until done)")
	global.Usage = func() { usage(global) }

	if err := global.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if err := v.BindPFlags(global); err != nil {
		return err
	}

	rest := global.Args()
	if len(rest) == 0 {
		usage(global)
		return errors.New("missing command")
	}

	var cmd *command
	for i := range commands {
		if commands[i].name == rest[0] {
			cmd = &commands[i]
			break
		}
	}
	if cmd == nil {
		usage(global)
		return fmt.Errorf("unknown command %q", rest[0])
	}

	fs := pflag.NewFlagSet(cmd.name, pflag.ContinueOnError)
	cmd.flags(fs)
	if err := fs.Parse(rest[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if err := v.BindPFlags(fs); err != nil {
		return err
	}

	logger, err := logging.NewLogger(logging.Options{Level: v.GetString("log-level"), Development: true})
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return cmd.run(ctx, newCLI(v, logger))
}

func usage(fs *pflag.FlagSet) {
	fmt.Fprintln(os.Stderr, "usage: studio [global flags] <command> [flags]")
	fmt.Fprintln(os.Stderr, "\ncommands:")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-10s %s\n", c.name, c.usage)
	}
	fmt.Fprintln(os.Stderr, "\nglobal flags:")
	fmt.Fprint(os.Stderr, fs.FlagUsages())
}

// cli wires the studio client for one invocation.
type cli struct {
	v         *viper.Viper
	logger    *zap.Logger
	api       *studio.API
	guard     *studio.CreditGuard
	uploader  *studio.Uploader
	workspace *studio.Workspace
}

func newCLI(v *viper.Viper, logger *zap.Logger) *cli {
	api := studio.NewAPI(v.GetString("server"), v.GetString("token"), studio.WithLogger(logger))

	var session *studio.Session
	if api.HasToken() {
		session = &studio.Session{UserID: "cli"}
	}
	guard := studio.NewCreditGuard(api, session)
	uploader := studio.NewUploader(api, studio.UploaderOptions{}, logger)

	ws := studio.NewWorkspace(api, uploader, guard, studio.Options{
		PollInterval:    v.GetDuration("poll-interval"),
		MaxPollAttempts: v.GetInt("max-poll-attempts"),
		Notify:          printNotice,
		Logger:          logger,
	})

	return &cli{v: v, logger: logger, api: api, guard: guard, uploader: uploader, workspace: ws}
}
