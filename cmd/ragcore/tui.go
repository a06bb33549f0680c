package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"ragcore/internal/log"
	"ragcore/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Interactive retrieval console",
	RunE: func(cmd *cobra.Command, args []string) error {
		// console output would corrupt the screen; keep only the file sink
		lc := currentConfig.Log
		if err := log.Init(log.Options{Level: lc.Level, File: lc.File, NoConsole: true}); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		engine, err := newEngine(currentConfig, nil)
		if err != nil {
			return err
		}
		defer engine.Shutdown(cmd.Context())
		if err := engine.Initialize(cmd.Context()); err != nil {
			return err
		}
		_, err = tea.NewProgram(tui.New(engine), tea.WithAltScreen()).Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}
