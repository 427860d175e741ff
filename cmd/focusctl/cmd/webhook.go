package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/focusdial/internal/api/webhook"
)

var (
	webhookURL     string
	webhookKey     string
	webhookPayload webhook.Payload
	webhookTimeout time.Duration
)

var webhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Talk to a running server the way a Focus Dial does",
}

var webhookSendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a start_timer or stop_timer event",
	Long: `Send one webhook event to a running server.

The key defaults to $FOCUSDIAL_API_KEY.

Examples:
  focusctl webhook send --action start_timer --device-id 1 --name Writing --color "#22AA88"
  focusctl webhook send --action stop_timer --device-id 1 --description "chapter 3"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		key := webhookKey
		if key == "" {
			key = os.Getenv("FOCUSDIAL_API_KEY")
		}
		if key == "" {
			return errors.New("--key or FOCUSDIAL_API_KEY is required")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), webhookTimeout)
		defer cancel()

		client := &http.Client{Timeout: webhookTimeout}
		resp, status, err := sendWebhook(ctx, client, webhookURL, key, webhookPayload)
		if err != nil {
			return err
		}
		if output == "json" {
			return printJSON(resp)
		}
		if !resp.Success {
			return fmt.Errorf("server answered %d: %s", status, resp.Error)
		}
		fmt.Println(resp.Message)
		if resp.EntryID != "" {
			fmt.Printf("  Entry:    %s\n", resp.EntryID)
		}
		if resp.Duration != nil {
			fmt.Printf("  Duration: %s\n", formatSeconds(*resp.Duration))
		}
		return nil
	},
}

var webhookPingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the webhook endpoint is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), webhookTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, webhookURL, nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return fmt.Errorf("ping: %w", err)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		fmt.Printf("%s %s\n", resp.Status, strings.TrimSpace(string(body)))
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("endpoint not ready")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(webhookCmd)
	webhookCmd.AddCommand(webhookSendCmd, webhookPingCmd)

	webhookCmd.PersistentFlags().StringVar(&webhookURL, "url", "http://localhost:8080/api/webhook", "webhook endpoint")
	webhookCmd.PersistentFlags().DurationVar(&webhookTimeout, "timeout", 10*time.Second, "request timeout")

	f := webhookSendCmd.Flags()
	f.StringVar(&webhookKey, "key", "", "device API key")
	f.StringVar(&webhookPayload.Action, "action", "start_timer", "start_timer, stop_timer or done_timer")
	f.StringVar(&webhookPayload.DeviceProjectID, "device-id", "", "project id as known to the dial (required)")
	f.StringVar(&webhookPayload.ProjectName, "name", "", "project name")
	f.StringVar(&webhookPayload.ProjectColor, "color", "", "#RRGGBB project colour")
	f.StringVar(&webhookPayload.Description, "description", "", "entry description sent on stop")
	webhookSendCmd.MarkFlagRequired("device-id")
}

// sendWebhook posts p with the bearer key and decodes the device response.
// Non-2xx answers are not errors as long as the body decodes.
func sendWebhook(ctx context.Context, client *http.Client, url, key string, p webhook.Payload) (*webhook.Response, int, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, 0, fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)

	PrintVerbose("POST %s %s", url, body)
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()

	var out webhook.Response
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode response (%s): %w", resp.Status, err)
	}
	return &out, resp.StatusCode, nil
}
