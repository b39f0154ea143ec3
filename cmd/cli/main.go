package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"os/user"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli"

	"github.com/appforge/appforge-go/internal/cli/entity"
	"github.com/appforge/appforge-go/internal/cli/repository"
	"github.com/appforge/appforge-go/internal/cli/usecase"
	"github.com/appforge/appforge-go/internal/config"
	"github.com/appforge/appforge-go/internal/storage"
	"github.com/appforge/appforge-go/pkg/systemutil"
)

var (
	app          *cli.App
	homeDir      string
	workdir      string
	forgeAddress string
	accountKey   string
	appleID      string
	platform     string
	projectDir   string
	outputDir    string
	projectName  string
	version      string
)

// newUsecase is the composition root: it wires the stores, the forge API and
// the operation client for one command invocation.
func newUsecase() (*usecase.CLIUsecase, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	stateStore := repository.NewFileStateStore(workdir)
	settings, err := stateStore.Load()
	if err != nil {
		return nil, nil, err
	}

	var s3store *repository.S3Store
	if len(cfg.Forge.S3Connection) > 0 {
		s3store, err = repository.NewS3Store(cfg.Forge.S3Connection)
		if err != nil {
			return nil, nil, err
		}
	}
	objectStore := repository.NewObjectStore(s3store)

	db, err := storage.NewDB(filepath.Join(workdir, "history.db"))
	if err != nil {
		return nil, nil, err
	}
	operationStore := storage.NewOperationStore(db, cfg.Forge.HistoryMax)

	api := repository.NewForgeAPI(settings.ForgeAddress)
	client := usecase.NewOperationClient(
		api,
		objectStore,
		usecase.PollPolicy{
			Interval: time.Duration(cfg.Forge.PollIntervalSeconds) * time.Second,
			Budget:   time.Duration(cfg.Forge.PollTimeoutSeconds) * time.Second,
		},
		cfg.IsTrace,
	)

	u := &usecase.CLIUsecase{
		Client:   client,
		API:      api,
		Store:    objectStore,
		Settings: stateStore,
		BuildIDs: stateStore,
		Prompter: repository.Prompter{},
		Shell:    repository.ShellRunner{},
		Projects: repository.ProjectInspector{},
		History:  historyStore{store: operationStore},
		Releases: repository.NewGitHubReleaseFetcher(),
		Updater:  repository.BinaryUpdater{},
		Workdir:  workdir,
		Version:  app.Version,
	}
	cleanup := func() {
		db.Close()
	}
	return u, cleanup, nil
}

func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	usr, err := user.Current()
	if err != nil {
		log.Fatal(err)
	}
	homeDir = usr.HomeDir
	workdir = filepath.Join(homeDir, ".appforge")

	app = cli.NewApp()
	app.Name = "appforge-cli"
	app.Usage = "appforge cloud mobile build client"
	app.Author = "AppForge Developers"
	app.Email = "dev@appforge.io"
	app.Version = version

	app.Commands = []cli.Command{

		{
			Name:  "config",
			Usage: "Configure appforge-cli",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:        "forge",
					Value:       "",
					Destination: &forgeAddress,
					Usage:       "Forge server address",
				},
				cli.StringFlag{
					Name:        "key",
					Value:       "",
					Destination: &accountKey,
					Usage:       "Account key",
				},
				cli.StringFlag{
					Name:        "apple-id",
					Value:       "",
					Destination: &appleID,
					Usage:       "Apple ID used for code signing (optional)",
				},
			},
			Action: func(c *cli.Context) (err error) {
				if len(forgeAddress) < 1 {
					msg := "Forge address should not be empty. Example: "
					msg += "appforge-cli config --forge https://forge.appforge.io --key 7f3a9c"
					err = errors.New(msg)
					return
				}
				if len(accountKey) < 1 {
					msg := "Account key should not be empty. Example: "
					msg += "appforge-cli config --forge https://forge.appforge.io --key 7f3a9c"
					err = errors.New(msg)
					return
				}
				_, err = url.ParseRequestURI(forgeAddress)
				if err != nil {
					return
				}

				store := repository.NewFileStateStore(workdir)
				err = store.Save(entity.Settings{
					ForgeAddress: strings.TrimSuffix(forgeAddress, "/"),
					AccountKey:   accountKey,
					AppleID:      appleID,
				})
				if err != nil {
					return
				}
				fmt.Println("appforge-cli is successfully configured. Happy shipping!")
				return
			},
		},

		{
			Name:  "build",
			Usage: "Submit a cloud build and download the packages",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:        "platform",
					Value:       "",
					Destination: &platform,
					Usage:       "Target platform (ios or android)",
				},
				cli.StringFlag{
					Name:        "project",
					Value:       ".",
					Destination: &projectDir,
					Usage:       "Project directory",
				},
				cli.StringFlag{
					Name:        "output",
					Value:       "",
					Destination: &outputDir,
					Usage:       "Artifact output directory (default <project>/dist)",
				},
				cli.StringSliceFlag{
					Name:  "prop",
					Usage: "Extra build property, key=value, repeatable",
				},
			},
			Action: func(c *cli.Context) (err error) {
				u, done, err := newUsecase()
				if err != nil {
					return
				}
				defer done()

				ctx, cancel := commandContext()
				defer cancel()

				absDir, err := filepath.Abs(projectDir)
				if err != nil {
					return
				}

				properties := map[string]string{}
				for _, prop := range c.StringSlice("prop") {
					parts := strings.SplitN(prop, "=", 2)
					if len(parts) != 2 {
						err = errors.New("--prop expects key=value, got: " + prop)
						return
					}
					properties[parts[0]] = parts[1]
				}

				paths, err := u.Build(ctx, usecase.BuildParams{
					ProjectDir: absDir,
					Platform:   platform,
					OutputDir:  outputDir,
					Properties: properties,
				})
				if err != nil {
					return
				}
				fmt.Println("Build succeeded. Artifacts:")
				for _, path := range paths {
					fmt.Println("  " + path)
				}
				return
			},
		},

		{
			Name:  "codesign",
			Usage: "Generate code signing artifacts remotely",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:        "platform",
					Value:       "ios",
					Destination: &platform,
					Usage:       "Target platform",
				},
				cli.StringFlag{
					Name:        "output",
					Value:       "",
					Destination: &outputDir,
					Usage:       "Artifact output directory",
				},
				cli.StringFlag{
					Name:        "apple-id",
					Value:       "",
					Destination: &appleID,
					Usage:       "Apple ID (prompted for when missing)",
				},
			},
			Action: func(c *cli.Context) (err error) {
				u, done, err := newUsecase()
				if err != nil {
					return
				}
				defer done()

				ctx, cancel := commandContext()
				defer cancel()

				paths, err := u.Codesign(ctx, usecase.CodesignParams{
					Platform:  platform,
					OutputDir: outputDir,
					AppleID:   appleID,
				})
				if err != nil {
					return
				}
				fmt.Println("Code signing artifacts:")
				for _, path := range paths {
					fmt.Println("  " + path)
				}
				return
			},
		},

		{
			Name:  "cleanup",
			Usage: "Remove the remote workspace of a project",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:        "project",
					Value:       "",
					Destination: &projectName,
					Usage:       "Project name",
				},
			},
			Action: func(c *cli.Context) (err error) {
				u, done, err := newUsecase()
				if err != nil {
					return
				}
				defer done()

				ctx, cancel := commandContext()
				defer cancel()

				err = u.Cleanup(ctx, usecase.CleanupParams{ProjectName: projectName})
				if err != nil {
					return
				}
				fmt.Println("Remote workspace removed.")
				return
			},
		},

		{
			Name:  "status",
			Usage: "Check the status of an operation",
			Action: func(c *cli.Context) (err error) {
				u, done, err := newUsecase()
				if err != nil {
					return
				}
				defer done()

				ctx, cancel := commandContext()
				defer cancel()

				state, err := u.Status(ctx, c.Args().First())
				if err != nil {
					return
				}
				fmt.Println(state)
				return
			},
		},

		{
			Name:  "log",
			Usage: "Read the logs of an operation",
			Flags: []cli.Flag{
				cli.BoolFlag{
					Name:  "follow",
					Usage: "Keep refreshing until the operation finishes",
				},
			},
			Action: func(c *cli.Context) (err error) {
				u, done, err := newUsecase()
				if err != nil {
					return
				}
				defer done()

				ctx, cancel := commandContext()
				defer cancel()

				buildID := c.Args().First()
				if len(buildID) < 1 {
					buildID, _ = repository.NewFileStateStore(workdir).LoadLastBuildID()
				}

				follow := c.Bool("follow")
				if follow {
					// Print from the mirrored local file while the usecase
					// keeps refreshing it.
					go systemutil.StreamLog(filepath.Join(workdir, "logs", buildID+".log"))
				}
				return u.Log(ctx, buildID, follow, os.Stdout)
			},
		},

		{
			Name:  "history",
			Usage: "List locally recorded operations",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "limit",
					Value: 20,
					Usage: "Maximum rows to print",
				},
			},
			Action: func(c *cli.Context) (err error) {
				u, done, err := newUsecase()
				if err != nil {
					return
				}
				defer done()

				records, err := u.ListHistory(c.Int("limit"))
				if err != nil {
					return
				}
				for _, record := range records {
					fmt.Printf("%s  %-8s  %-7s  %-10s  %s\n",
						record.SubmittedAt.Format(time.RFC3339),
						record.Operation,
						record.Platform,
						record.State,
						record.BuildID,
					)
				}
				return
			},
		},

		{
			Name:  "update",
			Usage: "Update the appforge-cli tool",
			Action: func(c *cli.Context) (err error) {
				u, done, err := newUsecase()
				if err != nil {
					return
				}
				defer done()

				ctx, cancel := commandContext()
				defer cancel()

				err = u.Update(ctx)
				if err != nil {
					return
				}
				fmt.Println("appforge-cli updated.")
				return
			},
		},
	}

	err = app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}
