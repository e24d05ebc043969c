package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/meghashyamc/driveindex/client"
	"github.com/meghashyamc/driveindex/config"
	"github.com/meghashyamc/driveindex/logger"
	"github.com/peterh/liner"
)

const (
	prompt       = "search> "
	commandQuit  = ":q"
	commandIndex = ":index"
	commandState = ":status"
)

func main() {
	godotenv.Load()

	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %s\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	logFile, err := openLogFile(cfg.GetClientLogPath())
	if err != nil {
		return err
	}
	defer logFile.Close()
	log := logger.NewWithWriter(logFile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend := client.NewHTTPBackend(log, cfg)
	searchClient := client.New(log, backend)
	go func() {
		if err := searchClient.Run(ctx); err != nil {
			log.Error("client stopped", "err", err.Error())
		}
	}()

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	fmt.Println(titleStyle.Render("driveindex") + " " + hintStyle.Render(fmt.Sprintf("connected to %s, %s to quit", cfg.GetServerURL(), commandQuit)))

	for {
		input, err := line.Prompt(prompt)
		if err != nil {
			// Ctrl-C, Ctrl-D or a closed terminal
			if !errors.Is(err, liner.ErrPromptAborted) && !errors.Is(err, io.EOF) {
				log.Error("could not read input", "err", err.Error())
			}
			fmt.Println()
			return nil
		}
		if strings.TrimSpace(input) != "" {
			line.AppendHistory(input)
		}

		command := strings.Fields(input)
		switch {
		case len(command) == 0:
			fmt.Println(renderProgress(searchClient.View()))
			continue
		case command[0] == commandQuit:
			return nil
		case command[0] == commandState:
			fmt.Println(renderProgress(searchClient.View()))
			continue
		case command[0] == commandIndex:
			startIndexing(ctx, backend, command[1:])
			continue
		}

		if view := searchClient.View(); view.IsIndexing {
			fmt.Println(renderProgress(view))
			continue
		}

		view, err := searchClient.SetKeyword(ctx, input)
		if err != nil {
			fmt.Println(errorStyle.Render(fmt.Sprintf("search failed: %s", err)))
			continue
		}
		renderResults(os.Stdout, view)
	}
}

func startIndexing(ctx context.Context, backend *client.HTTPBackend, drives []string) {
	runID, err := backend.StartIndexing(ctx, drives)
	if err != nil {
		fmt.Println(errorStyle.Render(fmt.Sprintf("could not start indexing: %s", err)))
		return
	}
	fmt.Println(hintStyle.Render(fmt.Sprintf("indexing started (run %s)", runID)))
}

func openLogFile(logPath string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return logFile, nil
}
