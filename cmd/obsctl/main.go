// Command obsctl is the thin CLI client for opsd: it POSTs and GETs against
// the daemon's RPC surface and translates the result into a shell-friendly
// exit code, mirroring the teacher's coordinator CLIs' flag/subcommand shape
// but talking HTTP instead of driving a coordinator in-process.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/bigskies-observatory/opsd/internal/opsconfig"
	"github.com/bigskies-observatory/opsd/internal/opsmodel"
	"github.com/bigskies-observatory/opsd/internal/schedule"
	_ "github.com/bigskies-observatory/opsd/plugins/actions"
	_ "github.com/bigskies-observatory/opsd/plugins/domebackends"
	"github.com/spf13/pflag"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	fs := pflag.NewFlagSet("obsctl", pflag.ContinueOnError)
	server := fs.StringP("server", "s", "http://localhost:8420", "opsd RPC address")
	configPath := fs.StringP("config", "c", "/etc/opsd/opsd.json", "site configuration file, used by validate to resolve action types")
	if err := fs.Parse(argv); err != nil {
		return 1
	}

	args := fs.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: obsctl [-s server] [-c config] <status|json|dome|tel|validate|schedule|script> ...")
		return 1
	}

	client := &client{base: *server, http: &http.Client{Timeout: 30 * time.Second}}

	switch args[0] {
	case "status":
		return cmdStatus(client, false)
	case "json":
		return cmdStatus(client, true)
	case "dome":
		return cmdDome(client, args[1:])
	case "tel":
		return cmdTel(client, args[1:])
	case "validate":
		return cmdValidate(*configPath, args[1:])
	case "schedule":
		return cmdSchedule(client, args[1:])
	case "script":
		fmt.Fprintln(os.Stderr, "obsctl: script execution is not handled by opsd; invoke the named script directly")
		return 1
	default:
		fmt.Fprintf(os.Stderr, "obsctl: unknown command %q\n", args[0])
		return 1
	}
}

// client wraps the small set of HTTP calls obsctl needs against opsd's gin router.
type client struct {
	base string
	http *http.Client
}

func (c *client) get(path string) (*http.Response, error) {
	return c.http.Get(c.base + path)
}

func (c *client) postJSON(path string, body interface{}) (*http.Response, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return c.http.Post(c.base+path, "application/json", bytes.NewReader(buf))
}

func (c *client) postBytes(path string, body []byte) (*http.Response, error) {
	return c.http.Post(c.base+path, "application/json", bytes.NewReader(body))
}

func cmdStatus(c *client, raw bool) int {
	resp, err := c.get("/status")
	if err != nil {
		fmt.Fprintln(os.Stderr, "obsctl: contacting opsd:", err)
		return 1
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Fprintln(os.Stderr, "obsctl: reading response:", err)
		return 1
	}

	if raw {
		fmt.Println(string(body))
		return 0
	}

	var status opsmodel.StatusPayload
	if err := json.Unmarshal(body, &status); err != nil {
		fmt.Fprintln(os.Stderr, "obsctl: decoding status:", err)
		return 1
	}
	printStatus(status)
	return 0
}

func printStatus(status opsmodel.StatusPayload) {
	fmt.Printf("telescope: %s (requested %s)\n", status.Telescope.Mode, status.Telescope.RequestedMode)
	if status.Dome != nil {
		fmt.Printf("dome: %s\n", status.Dome.Status)
	} else {
		fmt.Println("dome: not configured")
	}
	fmt.Printf("environment: safe=%v\n", status.Environment.Safe)
	for label, cond := range status.Environment.Conditions {
		fmt.Printf("  %-20s safe=%v\n", label, cond.Safe)
	}
	if len(status.Telescope.Schedule) == 0 {
		fmt.Println("schedule: empty")
		return
	}
	fmt.Println("schedule:")
	for _, entry := range status.Telescope.Schedule {
		fmt.Printf("  %-24s %s\n", entry.Name, entry.State)
	}
}

func cmdDome(c *client, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: obsctl dome (open|close|auto|manual)")
		return 1
	}
	var body struct {
		Auto bool `json:"auto"`
	}
	switch args[0] {
	case "open", "close":
		fmt.Fprintln(os.Stderr, "obsctl: dome open/close is driven by the schedule's dome window, not a direct command; use 'schedule --dome' to set one, or 'dome auto/manual' to change control mode")
		return 1
	case "auto":
		body.Auto = true
	case "manual":
		body.Auto = false
	default:
		fmt.Fprintln(os.Stderr, "usage: obsctl dome (open|close|auto|manual)")
		return 1
	}
	return postAndReport(c, "/dome/control", body)
}

func cmdTel(c *client, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: obsctl tel (auto|manual|stop)")
		return 1
	}
	switch args[0] {
	case "stop":
		return postAndReport(c, "/telescope/stop", struct{}{})
	case "auto":
		return postAndReport(c, "/tel/control", struct {
			Auto bool `json:"auto"`
		}{Auto: true})
	case "manual":
		return postAndReport(c, "/tel/control", struct {
			Auto bool `json:"auto"`
		}{Auto: false})
	default:
		fmt.Fprintln(os.Stderr, "usage: obsctl tel (auto|manual|stop)")
		return 1
	}
}

func postAndReport(c *client, path string, body interface{}) int {
	resp, err := c.postJSON(path, body)
	if err != nil {
		fmt.Fprintln(os.Stderr, "obsctl: contacting opsd:", err)
		return 1
	}
	defer resp.Body.Close()
	return reportResult(resp)
}

func reportResult(resp *http.Response) int {
	var result opsmodel.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		fmt.Fprintln(os.Stderr, "obsctl: decoding response:", err)
		return 1
	}
	fmt.Println(result.Message)
	if result.Code == opsmodel.Succeeded {
		return 0
	}
	return int(result.Code)
}

// cmdValidate checks a schedule file against the site configuration without
// submitting it anywhere, loading the same config file opsd would and
// resolving action types through the same registry. require_tonight is
// false here: validate previews a schedule for any night, not just the
// authoritative commit opsd's own schedule_observations performs.
func cmdValidate(configPath string, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: obsctl validate <file>")
		return 1
	}

	cfg, err := opsconfig.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "obsctl: loading config:", err)
		return 1
	}

	raw, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, "obsctl: reading schedule file:", err)
		return 1
	}

	ok, errs := schedule.ValidateSchedule(raw, cfg, false)
	for _, e := range errs {
		fmt.Println("  " + e)
	}
	if ok {
		fmt.Println("valid")
		return 0
	}
	fmt.Println("invalid")
	return 1
}

func cmdSchedule(c *client, args []string) int {
	fs := pflag.NewFlagSet("schedule", pflag.ContinueOnError)
	fs.Bool("dome", false, "ignored; present for CLI compatibility")
	fs.Bool("tel", false, "ignored; present for CLI compatibility")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	rest := fs.Args()
	if len(rest) != 1 {
		fmt.Fprintln(os.Stderr, "usage: obsctl schedule [--dome] [--tel] <file>")
		return 1
	}

	raw, err := os.ReadFile(rest[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, "obsctl: reading schedule file:", err)
		return 1
	}

	resp, err := c.postBytes("/schedule", raw)
	if err != nil {
		fmt.Fprintln(os.Stderr, "obsctl: contacting opsd:", err)
		return 1
	}
	defer resp.Body.Close()

	var out struct {
		Code    opsmodel.CommandStatus `json:"code"`
		Message string                 `json:"message"`
		Errors  []string               `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		fmt.Fprintln(os.Stderr, "obsctl: decoding response:", err)
		return 1
	}
	fmt.Println(out.Message)
	for _, e := range out.Errors {
		fmt.Println("  " + e)
	}
	if out.Code == opsmodel.Succeeded {
		return 0
	}
	return int(out.Code)
}
