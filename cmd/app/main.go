package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"

	"github.com/1F47E/go-shearreel/internal/core"
	"github.com/1F47E/go-shearreel/internal/errs"
	"github.com/1F47E/go-shearreel/internal/storage"
	"github.com/1F47E/go-shearreel/pkg/config"
	"github.com/1F47E/go-shearreel/pkg/logger"
)

var log = logger.Log

// exit codes
const (
	exitOK     = 0
	exitError  = 1
	exitConfig = 2
	exitData   = 3
)

func newApp(ctx context.Context) *cli.App {
	app := cli.NewApp()
	app.Name = "shearreel"
	app.Usage = "Render wall shear-stress snapshots into a video"
	app.UsageText = "shearreel [--config FILE] [--debug] command [options]"
	app.HideVersion = true
	app.ErrWriter = os.Stderr
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "config, c", Usage: "load configuration from `FILE` (.yaml, .yml or .toml)"},
		cli.BoolFlag{Name: "debug", Usage: "enable debug logging"},
	}
	app.Before = func(c *cli.Context) error {
		if c.GlobalBool("debug") {
			logger.SetDebug(true)
		}
		return nil
	}
	inputFlag := cli.StringFlag{Name: "input, i", Usage: "snapshot `DIR`"}
	app.Commands = []cli.Command{
		{
			Name:    "render",
			Aliases: []string{"r"},
			Usage:   "Render all snapshots into the output video",
			Flags: []cli.Flag{
				inputFlag,
				cli.StringFlag{Name: "output, o", Usage: "video `FILE`"},
				cli.Float64Flag{Name: "fps", Usage: "frame rate"},
				cli.StringFlag{Name: "manifest", Usage: "write the frame manifest to `FILE`"},
			},
			Action: func(c *cli.Context) error {
				cfg, err := loadConfig(c)
				if err != nil {
					return err
				}
				if c.IsSet("output") {
					cfg.Output.Path = c.String("output")
				}
				if c.IsSet("fps") {
					cfg.Output.FPS = c.Float64("fps")
				}
				if c.IsSet("manifest") {
					cfg.Output.Manifest = c.String("manifest")
				}
				return core.New(cfg, core.WithProgress(c.App.ErrWriter)).Run(ctx)
			},
		},
		{
			Name:    "list",
			Aliases: []string{"l"},
			Usage:   "List the snapshots in render order",
			Flags:   []cli.Flag{inputFlag},
			Action: func(c *cli.Context) error {
				cfg, err := loadConfig(c)
				if err != nil {
					return err
				}
				snaps, err := core.New(cfg).Discover(ctx)
				if err != nil {
					return err
				}
				for _, s := range snaps {
					fmt.Fprintf(c.App.Writer, "%d\t%s\n", s.Index, s.Path)
				}
				return nil
			},
		},
		{
			Name:    "frame",
			Aliases: []string{"f"},
			Usage:   "Render one snapshot to a PNG preview",
			Flags: []cli.Flag{
				inputFlag,
				cli.IntFlag{Name: "index", Value: -1, Usage: "snapshot index, the first snapshot by default"},
				cli.StringFlag{Name: "output, o", Value: "frame.png", Usage: "preview `FILE`"},
			},
			Action: func(c *cli.Context) error {
				cfg, err := loadConfig(c)
				if err != nil {
					return err
				}
				out := c.String("output")
				if err := storage.CheckOutputDir(out); err != nil {
					return err
				}
				seq := core.New(cfg)
				snaps, err := seq.Discover(ctx)
				if err != nil {
					return err
				}
				snap, err := pick(snaps, c.Int("index"))
				if err != nil {
					return err
				}
				img, err := seq.RenderSnapshot(ctx, snap)
				if err != nil {
					return err
				}
				if err := storage.SaveFrame(out, img); err != nil {
					return err
				}
				log.Infof("frame %d saved to %s", snap.Index, out)
				return nil
			},
		},
		{
			Name:    "verify",
			Aliases: []string{"v"},
			Usage:   "Render the snapshots of a manifest again and compare the frames",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "manifest", Usage: "manifest `FILE`, output.manifest by default"},
			},
			Action: func(c *cli.Context) error {
				cfg, err := loadConfig(c)
				if err != nil {
					return err
				}
				manifest := cfg.Output.Manifest
				if c.IsSet("manifest") {
					manifest = c.String("manifest")
				}
				if manifest == "" {
					return errs.Config("verify", "", errors.New("no manifest given"))
				}
				return core.New(cfg, core.WithProgress(c.App.ErrWriter)).Verify(ctx, manifest)
			},
		},
		{
			Name:  "config",
			Usage: "Print the effective configuration as YAML",
			Action: func(c *cli.Context) error {
				cfg, err := loadConfig(c)
				if err != nil {
					return err
				}
				return config.Write(c.App.Writer, cfg)
			},
		},
	}
	return app
}

// loadConfig reads the global config file and applies the --input flag.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.GlobalString("config"))
	if err != nil {
		return nil, err
	}
	if c.IsSet("input") {
		cfg.Input.Dir = c.String("input")
	}
	return cfg, nil
}

func pick(snaps []storage.Snapshot, index int) (storage.Snapshot, error) {
	if index < 0 {
		return snaps[0], nil
	}
	for _, s := range snaps {
		if s.Index == index {
			return s, nil
		}
	}
	return storage.Snapshot{}, errs.Config("frame", "", fmt.Errorf("no snapshot with index %d", index))
}

func exitCode(err error) int {
	var (
		cerr *errs.ConfigurationError
		derr *errs.DataFormatError
	)
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &cerr):
		return exitConfig
	case errors.As(err, &derr):
		return exitData
	default:
		return exitError
	}
}

// Main runs the command line and returns the process exit code.
func Main() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(ctx).Run(os.Args); err != nil {
		log.Error(err)
		return exitCode(err)
	}
	return exitOK
}

func main() {
	os.Exit(Main())
}
