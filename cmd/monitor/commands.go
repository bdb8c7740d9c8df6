package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"monitor/internal/app"
	"monitor/internal/appserver"
	"monitor/internal/config"
	"monitor/internal/logging"
	"monitor/internal/store"
	"monitor/internal/thread"
	"monitor/internal/types"
)

func runUI() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logPath, err := cfg.LogFile()
	if err != nil {
		return err
	}
	logger, closeLog, err := logging.NewFile(logPath, logging.ParseLevel(cfg.LogLevel()))
	if err != nil {
		return err
	}
	defer closeLog()

	workspacesPath, err := config.WorkspacesPath()
	if err != nil {
		return err
	}
	statePath, err := config.StatePath()
	if err != nil {
		return err
	}

	engine := thread.NewEngine(nil, logger, thread.TurnOptions{
		Model:      cfg.Model(),
		Effort:     cfg.Effort(),
		AccessMode: cfg.AccessMode(),
	})
	supervisor := appserver.NewSupervisor(engine, cfg.CodexBin(), logger)
	engine.SetBackend(supervisor)
	defer supervisor.Close()

	return app.Run(app.Deps{
		Engine:         engine,
		Supervisor:     supervisor,
		Config:         cfg,
		Logger:         logger,
		WorkspaceStore: store.NewFileWorkspaceStore(workspacesPath),
		StateStore:     store.NewFileAppStateStore(statePath),
	})
}

func runDoctor() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	version, err := appserver.Doctor(ctx, cfg.CodexBin())
	if err != nil {
		return err
	}
	fmt.Printf("codex ok: %s\n", version)
	return nil
}

func runWorkspace(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: monitor workspace <add|list|rm> [args]")
	}
	workspacesPath, err := config.WorkspacesPath()
	if err != nil {
		return err
	}
	workspaces := store.NewFileWorkspaceStore(workspacesPath)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	switch args[0] {
	case "add":
		if len(args) < 2 {
			return fmt.Errorf("usage: monitor workspace add <path> [name]")
		}
		workspace := &types.Workspace{Path: args[1]}
		if len(args) > 2 {
			workspace.Name = args[2]
		}
		added, err := workspaces.Add(ctx, workspace)
		if err != nil {
			return err
		}
		fmt.Printf("added %s (%s)\n", added.Name, added.Path)
		return nil

	case "list":
		list, err := workspaces.List(ctx)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("no workspaces")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tPATH")
		for _, workspace := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\n", workspace.ID, workspace.Name, workspace.Path)
		}
		return w.Flush()

	case "rm":
		if len(args) < 2 {
			return fmt.Errorf("usage: monitor workspace rm <id>")
		}
		if err := workspaces.Delete(ctx, args[1]); err != nil {
			return err
		}
		fmt.Println("removed", args[1])
		return nil

	default:
		return fmt.Errorf("unknown workspace command: %s", args[0])
	}
}
