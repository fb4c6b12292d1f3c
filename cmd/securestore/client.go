package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/benaskins/securestore/internal/dispatch"
)

func apiClient(socketPath string) *http.Client {
	return &http.Client{
		// Reads of protected items wait for a passcode prompt on the daemon.
		Timeout: 2 * time.Minute,
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", socketPath)
			},
		},
	}
}

// remoteCaller sends calls to the daemon's POST /v1/invoke.
type remoteCaller struct {
	client *http.Client
}

func newRemoteCaller(socketPath string) *remoteCaller {
	return &remoteCaller{client: apiClient(socketPath)}
}

func (r *remoteCaller) Dispatch(call dispatch.Call) dispatch.Result {
	res, err := r.invoke(call)
	if err != nil {
		return dispatch.Result{CallbackID: call.CallbackID, Outcome: dispatch.OutcomeError, Message: err.Error()}
	}
	return res
}

func (r *remoteCaller) invoke(call dispatch.Call) (dispatch.Result, error) {
	body, err := json.Marshal(call)
	if err != nil {
		return dispatch.Result{}, fmt.Errorf("encoding call: %w", err)
	}
	resp, err := r.client.Post("http://securestore/v1/invoke", "application/json", bytes.NewReader(body))
	if err != nil {
		return dispatch.Result{}, fmt.Errorf("connecting to daemon: %w (is securestore daemon running?)", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return dispatch.Result{}, fmt.Errorf("reading response: %w", err)
	}
	var res dispatch.Result
	if err := json.Unmarshal(data, &res); err != nil || res.Outcome == "" {
		return dispatch.Result{}, fmt.Errorf("API error %d: %s", resp.StatusCode, data)
	}
	return res, nil
}

func apiGet(socketPath, path string, v any) error {
	resp, err := apiClient(socketPath).Get("http://securestore" + path)
	if err != nil {
		return fmt.Errorf("connecting to daemon: %w (is securestore daemon running?)", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return fmt.Errorf("API error %d: %s", resp.StatusCode, body)
	}

	return json.NewDecoder(resp.Body).Decode(v)
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the daemon is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		socket := cfg.Socket()
		var health map[string]string
		if err := apiGet(socket, "/v1/health", &health); err != nil {
			return err
		}
		fmt.Printf("%s daemon %s on %s\n", styleKey.Render("securestore"), health["status"], socket)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
