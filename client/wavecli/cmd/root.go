package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	serverAddr string
	apiKey     string
)

var rootCmd = &cobra.Command{
	Use:   "wavecli",
	Short: "A CLI client to interact with the wavespeed2api service",
	Long:  `A command-line interface for generating images through the OpenAI-compatible wavespeed2api gateway.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Whoops. There was an error while executing your CLI: %s", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "http://localhost:8001", "wavespeed2api server address")
	rootCmd.PersistentFlags().StringVar(&apiKey, "key", "sk-123456", "API key for the server")
}
