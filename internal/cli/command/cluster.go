package command

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/shardmesh-go/internal/cli/connection"
	"github.com/yndnr/shardmesh-go/internal/cli/output"
	"github.com/yndnr/shardmesh-go/internal/server/clusterserver"
	"github.com/yndnr/shardmesh-go/internal/server/httpserver/handler"
)

const (
	callTimeout = 30 * time.Second

	// requestSlack is added to --timeout so the master's deadline fires
	// before the HTTP client gives up.
	requestSlack = 5 * time.Second
)

// StatusCommand shows the master's uptime and connected nodes.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show master uptime and connected nodes",
		Action: clusterStatus,
	}
}

// NodeCommand shows one connected node.
func NodeCommand() *cli.Command {
	return &cli.Command{
		Name:      "node",
		Usage:     "Show one connected node",
		ArgsUsage: "ID",
		Action:    clusterNode,
	}
}

// SendCommand sends a fire-and-forget message.
func SendCommand() *cli.Command {
	return &cli.Command{
		Name:      "send",
		Usage:     "Send a message to the node owning KEY, or to every node",
		ArgsUsage: "NAME [CONTENT]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "key",
				Aliases: []string{"k"},
				Usage:   "shard key selecting one node",
			},
		},
		Action: clusterSend,
	}
}

// RequestCommand sends a request and prints the collected replies.
func RequestCommand() *cli.Command {
	return &cli.Command{
		Name:      "request",
		Aliases:   []string{"req"},
		Usage:     "Send a request and wait for replies",
		ArgsUsage: "NAME [CONTENT]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "key",
				Aliases: []string{"k"},
				Usage:   "shard key selecting one node",
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Usage:   "override the master's request timeout",
			},
		},
		Action: clusterRequest,
	}
}

// HealthCommand checks liveness and readiness of the master.
func HealthCommand() *cli.Command {
	return &cli.Command{
		Name:   "health",
		Usage:  "Check master health and readiness",
		Action: clusterHealth,
	}
}

func clusterStatus(c *cli.Context) error {
	client := newClient(c, 0)

	ctx, cancel := context.WithTimeout(c.Context, callTimeout)
	defer cancel()

	resp, err := client.Get(ctx, "/admin/v1/status")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var status clusterserver.Status
	if err := connection.ParseResponse(resp, &status); err != nil {
		return err
	}

	if ParseGlobalFlags(c).Output == string(output.FormatTable) {
		if !status.Running {
			fmt.Fprintln(stdout(c), "Master: stopped")
		} else {
			fmt.Fprintf(stdout(c), "Master: up %s, %d node(s)\n\n", status.UpTime, len(status.Nodes))
		}
	}
	return render(c, status, nodesTable(status.Nodes))
}

func clusterNode(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("node ID required")
	}

	client := newClient(c, 0)

	ctx, cancel := context.WithTimeout(c.Context, callTimeout)
	defer cancel()

	resp, err := client.Get(ctx, "/admin/v1/nodes/"+url.PathEscape(id))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var node clusterserver.NodeInfo
	if err := connection.ParseResponse(resp, &node); err != nil {
		return err
	}
	return render(c, node, nodesTable([]clusterserver.NodeInfo{node}))
}

func clusterSend(c *cli.Context) error {
	body, err := messageBody(c)
	if err != nil {
		return err
	}

	client := newClient(c, 0)

	ctx, cancel := context.WithTimeout(c.Context, callTimeout)
	defer cancel()

	resp, err := client.Post(ctx, "/admin/v1/messages", body)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result handler.SendResponse
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	table := &output.Table{}
	table.SetHeaders("ID", "DELIVERED")
	table.AddRow(result.ID, strconv.Itoa(result.Delivered))
	return render(c, result, table)
}

func clusterRequest(c *cli.Context) error {
	body, err := messageBody(c)
	if err != nil {
		return err
	}

	timeout := c.Duration("timeout")
	if timeout < 0 {
		return fmt.Errorf("timeout must be positive")
	}
	httpTimeout := time.Duration(0)
	if timeout > 0 {
		body.TimeoutMS = timeout.Milliseconds()
		httpTimeout = timeout + requestSlack
	}

	client := newClient(c, httpTimeout)

	var spinner *output.Spinner
	if ParseGlobalFlags(c).Output == string(output.FormatTable) && isTerminal(stderr(c)) {
		spinner = output.NewSpinner(stderr(c), "Waiting for replies to "+body.Name)
		spinner.Start()
	}

	resp, err := client.Post(c.Context, "/admin/v1/requests", body)
	if err == nil {
		var result handler.RequestResult
		if err = connection.ParseResponse(resp, &result); err == nil {
			if spinner != nil {
				spinner.Stop()
			}
			return renderRequestResult(c, result)
		}
	} else {
		err = fmt.Errorf("request failed: %w", err)
	}

	if spinner != nil {
		spinner.Fail(err.Error())
	}
	return err
}

func renderRequestResult(c *cli.Context, result handler.RequestResult) error {
	table := &output.Table{}
	table.SetHeaders("NODE", "REPLY", "RESPONSE_TIME")
	for _, r := range result.Replies {
		reply, err := json.Marshal(r.Reply)
		if err != nil {
			reply = []byte(fmt.Sprint(r.Reply))
		}
		table.AddRow(nodeLabel(r.Node), string(reply), r.ResponseTime.String())
	}

	if err := render(c, result, table); err != nil {
		return err
	}
	if result.Error != "" && ParseGlobalFlags(c).Output == string(output.FormatTable) {
		fmt.Fprintf(stderr(c), "%s after %s: %d reply(ies) collected\n",
			result.Error, time.Duration(result.ResponseTime)*time.Millisecond, len(result.Replies))
	}
	return nil
}

func clusterHealth(c *cli.Context) error {
	client := newClient(c, 0)

	ctx, cancel := context.WithTimeout(c.Context, 10*time.Second)
	defer cancel()

	resp, err := client.Get(ctx, "/health")
	if err != nil {
		return fmt.Errorf("master unreachable: %w", err)
	}
	var health handler.HealthResponse
	if err := connection.ParseResponse(resp, &health); err != nil {
		return err
	}

	result := struct {
		Status  string `json:"status"`
		Ready   bool   `json:"ready"`
		Time    string `json:"time"`
		Version string `json:"version,omitempty"`
	}{Status: health.Status, Time: health.Time}
	if health.Build != nil {
		result.Version = health.Build.Version + " (" + health.Build.Commit + ")"
	}

	resp, err = client.Get(ctx, "/ready")
	if err != nil {
		return fmt.Errorf("master unreachable: %w", err)
	}
	result.Ready = connection.ParseResponse(resp, nil) == nil

	if ParseGlobalFlags(c).Output != string(output.FormatTable) {
		return render(c, result, nil)
	}

	w := stdout(c)
	fmt.Fprintf(w, "✓ Master is %s\n", result.Status)
	if result.Ready {
		fmt.Fprintf(w, "✓ Cluster is running\n")
	} else {
		fmt.Fprintf(w, "✗ Cluster is not started\n")
	}
	fmt.Fprintf(w, "  Target: %s\n", client.BaseURL())
	if result.Version != "" {
		fmt.Fprintf(w, "  Version: %s\n", result.Version)
	}
	return nil
}

// messageBody builds the send/request body from --key and NAME [CONTENT].
func messageBody(c *cli.Context) (handler.MessageRequest, error) {
	name := c.Args().Get(0)
	if name == "" {
		return handler.MessageRequest{}, fmt.Errorf("message name required")
	}
	return handler.MessageRequest{
		ShardKey: c.String("key"),
		Name:     name,
		Content:  parseContent(c.Args().Get(1)),
	}, nil
}

// parseContent reads CONTENT as JSON when it is valid JSON and as a
// plain string otherwise.
func parseContent(s string) any {
	if s == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	return s
}

func nodesTable(nodes []clusterserver.NodeInfo) *output.Table {
	table := &output.Table{}
	table.SetHeaders("NAME", "ID", "REMOTE", "UP_SINCE", "UP_TIME")
	for _, n := range nodes {
		table.AddRow(n.Name, n.ID, n.RemoteAddress, n.UpSince.Format(time.RFC3339), n.UpTime.Round(time.Second).String())
	}
	return table
}

func nodeLabel(n clusterserver.NodeInfo) string {
	if n.Name == "" {
		return n.ID
	}
	return n.Name
}

func isTerminal(w any) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
