package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

type chatRequest struct {
	Model    string        `json:"model,omitempty"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	UseRAG   bool          `json:"use_rag,omitempty"`
	Quorum   bool          `json:"quorum,omitempty"`
	Fanout   int           `json:"fanout,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Experts   []string `json:"experts"`
	Responded []string `json:"responded"`
	Score     *float64 `json:"score"`
}

// NewChatCmd sends a prompt to the daemon and prints the routed response.
func NewChatCmd(opts *Options) *cobra.Command {
	var model string
	var useRAG bool
	var quorum bool
	var fanout int
	var noStream bool

	cmd := &cobra.Command{
		Use:   "chat \"<prompt>\"",
		Short: "Send a prompt to the daemon and stream the reply",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			prompt := args[0]
			if strings.TrimSpace(prompt) == "" {
				return fmt.Errorf("prompt cannot be empty")
			}

			reqBody := chatRequest{
				Model:    model,
				Messages: []chatMessage{{Role: "user", Content: prompt}},
				Stream:   !noStream && !quorum,
				UseRAG:   useRAG,
				Quorum:   quorum,
				Fanout:   fanout,
			}

			url := daemonURL(cfg.Server.Addr) + "/v1/chat/completions"
			if reqBody.Stream {
				return streamChat(cmd, url, reqBody)
			}
			return requestChat(cmd, url, reqBody)
		},
	}

	cmd.Flags().StringVar(&model, "model", "auto", "Expert model id, or \"auto\" to route by content")
	cmd.Flags().BoolVar(&useRAG, "rag", false, "Request retrieval augmentation")
	cmd.Flags().BoolVar(&quorum, "quorum", false, "Fan the prompt out to multiple experts and merge the replies")
	cmd.Flags().IntVar(&fanout, "fanout", 0, "Quorum size (0 uses the server default)")
	cmd.Flags().BoolVar(&noStream, "no-stream", false, "Wait for the full response instead of streaming")
	return cmd
}

func postChat(cmd *cobra.Command, url string, reqBody chatRequest) (*http.Response, error) {
	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("daemon returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return resp, nil
}

func streamChat(cmd *cobra.Command, url string, reqBody chatRequest) error {
	resp, err := postChat(cmd, url, reqBody)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	out := cmd.OutOrStdout()
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			break
		}

		var chunk chatChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		for _, c := range chunk.Choices {
			fmt.Fprint(out, c.Delta.Content)
		}
	}
	fmt.Fprintln(out)
	return scanner.Err()
}

func requestChat(cmd *cobra.Command, url string, reqBody chatRequest) error {
	resp, err := postChat(cmd, url, reqBody)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return fmt.Errorf("daemon returned no choices")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, parsed.Choices[0].Message.Content)
	if len(parsed.Experts) > 0 {
		fmt.Fprintf(out, "\n[quorum %d/%d", len(parsed.Responded), len(parsed.Experts))
		if parsed.Score != nil {
			fmt.Fprintf(out, ", score %.2f", *parsed.Score)
		}
		fmt.Fprintln(out, "]")
	}
	return nil
}
