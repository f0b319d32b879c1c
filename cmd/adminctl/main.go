// Package main provides the admin CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	"github.com/Arimodu/wipbot/internal/api"
)

var (
	app    = kingpin.New("wipbot-adminctl", "wipbot admin client")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token  = app.Flag("token", "Admin token (or set ADMIN_TOKEN env)").Envar("ADMIN_TOKEN").String()

	// status command
	statusCmd = app.Command("status", "Get worker status")

	// queue command
	queueCmd = app.Command("queue", "List queued requests").Alias("list")

	// next command
	nextCmd = app.Command("next", "Start downloading the next queued request")

	// cancel command
	cancelCmd = app.Command("cancel", "Cancel the in-flight download")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if *token == "" {
		fmt.Println("Error: admin token is required (use --token or ADMIN_TOKEN env)")
		os.Exit(1)
	}

	ctx := context.Background()

	switch command {
	case statusCmd.FullCommand():
		status(ctx)
	case queueCmd.FullCommand():
		listQueue(ctx)
	case nextCmd.FullCommand():
		startNext(ctx)
	case cancelCmd.FullCommand():
		cancelDownload(ctx)
	}
}

// call performs one admin API request and decodes the JSON response into out.
func call(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, *server+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set(api.AdminTokenHeader, *token)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
			return fmt.Errorf("%s (%s)", body.Error, resp.Status)
		}
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func status(ctx context.Context) {
	var resp struct {
		State           string `json:"state"`
		ProgressPercent int    `json:"progress_percent"`
		QueueLength     int    `json:"queue_length"`
	}
	if err := call(ctx, http.MethodGet, "/api/v1/status", &resp); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("State:    %s\n", resp.State)
	fmt.Printf("Progress: %d%%\n", resp.ProgressPercent)
	fmt.Printf("Queued:   %d\n", resp.QueueLength)
}

func listQueue(ctx context.Context) {
	var resp struct {
		Items []struct {
			ID          string    `json:"id"`
			UserName    string    `json:"user_name"`
			DownloadURL string    `json:"download_url"`
			RequestedAt time.Time `json:"requested_at"`
		} `json:"items"`
	}
	if err := call(ctx, http.MethodGet, "/api/v1/queue", &resp); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if len(resp.Items) == 0 {
		fmt.Println("Queue is empty")
		return
	}
	for i, item := range resp.Items {
		fmt.Printf("%2d. %-20s %s (%s)\n", i+1, item.UserName, item.DownloadURL,
			item.RequestedAt.Local().Format("15:04:05"))
	}
}

func startNext(ctx context.Context) {
	if err := call(ctx, http.MethodPost, "/api/v1/download/next", nil); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Download started")
}

func cancelDownload(ctx context.Context) {
	if err := call(ctx, http.MethodPost, "/api/v1/download/cancel", nil); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Cancel requested")
}
