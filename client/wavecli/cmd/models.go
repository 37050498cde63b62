package cmd

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	openai "github.com/meguminnnnnnnnn/go-openai"
	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models available on the server",
	Run: func(cmd *cobra.Command, args []string) {
		listModels()
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

func listModels() {
	req, err := http.NewRequest(http.MethodGet, serverAddr+"/v1/models", nil)
	if err != nil {
		log.Fatalf("Error creating request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("Error calling server: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Fatalf("Failed to list models, status code: %d", resp.StatusCode)
	}

	var list struct {
		Data []openai.Model `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		log.Fatalf("Error decoding response: %v", err)
	}

	for _, m := range list.Data {
		fmt.Println(m.ID)
	}
}
