package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/raaihank/doc-sanitizer/internal/llm"
	"github.com/spf13/cobra"
)

// --- Status ---

var statusURL string

func newStatusCmd() *cobra.Command {
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Check the upload API and the model endpoint",
		Args:  cobra.NoArgs,
		RunE:  showStatus,
	}
	statusCmd.Flags().StringVar(&statusURL, "url", "", "Upload API base URL (default http://localhost:<server.port>)")
	return statusCmd
}

func showStatus(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd.ErrOrStderr(), true)
	if err != nil {
		return err
	}
	defer log.Sync()

	out := cmd.OutOrStdout()
	ctx := commandContext(cmd)
	healthy := true

	baseURL := statusURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}
	baseURL = strings.TrimRight(baseURL, "/")

	if info, err := fetchInfo(baseURL); err != nil {
		healthy = false
		fmt.Fprintf(out, "Upload API  %s  unavailable: %v\n", baseURL, err)
	} else {
		fmt.Fprintf(out, "Upload API  %s  ok (version %v, %v files stored)\n", baseURL, info["version"], info["files_stored"])
	}

	client := llm.New(llm.Config{
		BaseURL: cfg.Upstream.Ollama,
		Model:   cfg.Upstream.Model,
		Timeout: cfg.Upstream.Timeout,
	}, log)

	if err := client.CheckAvailability(ctx); err != nil {
		fmt.Fprintf(out, "Model API   %s  unavailable: %v\n", client.BaseURL(), err)
		return errors.New("one or more services are unavailable")
	}

	models, err := client.ListModels(ctx)
	if err != nil {
		return err
	}
	found := false
	for _, m := range models {
		if m == client.Model() {
			found = true
			break
		}
	}
	if found {
		fmt.Fprintf(out, "Model API   %s  ok (model %s available)\n", client.BaseURL(), client.Model())
	} else {
		healthy = false
		fmt.Fprintf(out, "Model API   %s  ok, but model %s is not pulled (run: ollama pull %s)\n",
			client.BaseURL(), client.Model(), client.Model())
	}

	if !healthy {
		return errors.New("one or more services are unavailable")
	}
	return nil
}

// fetchInfo confirms /health and returns the /info document
func fetchInfo(baseURL string) (map[string]interface{}, error) {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return nil, err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("health check returned HTTP %d", resp.StatusCode)
	}

	resp, err = client.Get(baseURL + "/info")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var info map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("invalid /info response: %w", err)
	}
	return info, nil
}
