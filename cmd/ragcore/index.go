package main

import (
	"fmt"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the index and print its statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			once sync.Once
			bar  *progressbar.ProgressBar
		)
		progress := func(done, total int) {
			once.Do(func() {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionSetDescription("embedding chunks"),
					progressbar.OptionShowCount(),
					progressbar.OptionClearOnFinish(),
				)
			})
			_ = bar.Add(1)
		}
		engine, err := newEngine(currentConfig, progress)
		if err != nil {
			return err
		}
		defer engine.Shutdown(cmd.Context())
		if err := engine.Initialize(cmd.Context()); err != nil {
			return err
		}
		if bar != nil {
			_ = bar.Finish()
		}

		st := engine.Stats()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "document:     %s\n", currentConfig.Document.Path)
		fmt.Fprintf(out, "chunks:       %d\n", st.Chunks)
		fmt.Fprintf(out, "sections:     %d\n", st.Sections)
		fmt.Fprintf(out, "embedder:     %s\n", st.Embedder)
		fmt.Fprintf(out, "index ready:  %t\n", st.IndexReady)
		if st.IndexReady {
			fmt.Fprintf(out, "dimension:    %d\n", st.Dimension)
		}
		if st.LastBuildError != "" {
			fmt.Fprintf(out, "build error:  %s\n", st.LastBuildError)
		}
		for i, name := range engine.Sections() {
			fmt.Fprintf(out, "  %2d. %s\n", i+1, name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
}
