package cmd

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	openai "github.com/meguminnnnnnnnn/go-openai"
	"github.com/spf13/cobra"
)

var (
	modelID    string
	streamMode bool
)

var generateCmd = &cobra.Command{
	Use:   "generate [prompt]",
	Short: "Generate an image from a prompt",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if streamMode {
			generateStream(args[0])
		} else {
			generate(args[0])
		}
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().StringVar(&modelID, "model", "wavespeed-ai/z-image/turbo", "model id to use")
	generateCmd.Flags().BoolVar(&streamMode, "stream", false, "stream the response (SSE)")
}

func newCompletionRequest(prompt string, stream bool) (*http.Request, error) {
	payload := openai.ChatCompletionRequest{
		Model: modelID,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Stream: stream,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, serverAddr+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)
	return req, nil
}

func generate(userPrompt string) {
	req, err := newCompletionRequest(userPrompt, false)
	if err != nil {
		log.Fatalf("Error creating request: %v", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("Error calling server: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errBody map[string]string
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		log.Fatalf("Generation failed, status code: %d, error: %s", resp.StatusCode, errBody["error"])
	}

	var completion openai.ChatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		log.Fatalf("Error decoding response: %v", err)
	}
	if len(completion.Choices) == 0 {
		log.Fatal("Server returned no choices")
	}

	fmt.Println(completion.Choices[0].Message.Content)
}

func generateStream(userPrompt string) {
	req, err := newCompletionRequest(userPrompt, true)
	if err != nil {
		log.Fatalf("Error creating request: %v", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("Error calling server: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Fatalf("Generation failed, status code: %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			fmt.Println()
			return
		}

		var chunk openai.ChatCompletionStreamResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			log.Printf("Error decoding chunk: %v. Raw: %s", err, data)
			continue
		}
		for _, choice := range chunk.Choices {
			fmt.Print(choice.Delta.Content)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("Stream read error: %v", err)
	}
}
