package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "lawctl",
	Short: "Ingest Vietnamese statutes into the legal search index",
	Long: `lawctl turns a statute text file into searchable chunks and loads them
into Qdrant. The pipeline runs in three steps:

  lawctl parse bo-luat-lao-dong.txt -o data/processed/articles.json
  lawctl chunk data/processed/articles.json -o data/processed/chunks.json
  lawctl index data/processed/chunks.json --recreate

Each step writes an interchange file the next one consumes, so a single
stage can be re-run without repeating the others.`,
}

func init() {
	rootCmd.AddCommand(parseCmd, chunkCmd, indexCmd, statusCmd)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
