// guestctl manages guest print links through the relay's admin API.
//
//	guestctl [--server URL] [--key KEY] create --name Anna --quota 3
//	guestctl list
//	guestctl revoke TOKEN
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

const usage = `Usage: guestctl [--server URL] [--key KEY] <command> [flags]

Commands:
  create --name NAME [--quota N]   issue a new guest link
  list                             show every guest link with today's remaining prints
  revoke TOKEN                     disable a guest link
`

func run(ctx context.Context, args []string, stdout io.Writer) error {
	flags := pflag.NewFlagSet("guestctl", pflag.ContinueOnError)
	flags.SetInterspersed(false)
	server := flags.String("server", envOr("GUESTCTL_SERVER", "http://localhost:8000"), "relay base URL")
	key := flags.String("key", os.Getenv("APP_API_KEY"), "admin API key (default $APP_API_KEY)")
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *key == "" {
		return errors.New("no API key: pass --key or set APP_API_KEY")
	}
	rest := flags.Args()
	if len(rest) == 0 {
		flags.Usage()
		return errors.New("missing command")
	}

	c := &client{base: strings.TrimRight(*server, "/"), key: *key, http: &http.Client{Timeout: 15 * time.Second}}
	switch rest[0] {
	case "create":
		return runCreate(ctx, c, rest[1:], stdout)
	case "list":
		return runList(ctx, c, stdout)
	case "revoke":
		if len(rest) != 2 {
			return errors.New("usage: guestctl revoke TOKEN")
		}
		if err := c.do(ctx, http.MethodPost, "/api/guests/"+url.PathEscape(rest[1])+"/revoke", nil, nil); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "revoked")
		return nil
	default:
		return fmt.Errorf("unknown command %q", rest[0])
	}
}

func runCreate(ctx context.Context, c *client, args []string, stdout io.Writer) error {
	flags := pflag.NewFlagSet("create", pflag.ContinueOnError)
	name := flags.String("name", "Guest", "name shown on the guest page")
	quota := flags.Int("quota", 0, "prints per day (server default when 0)")
	if err := flags.Parse(args); err != nil {
		return err
	}
	var out struct {
		Token string `json:"token"`
		Link  string `json:"link"`
	}
	body := map[string]any{"name": *name}
	if *quota != 0 {
		body["quota_per_day"] = *quota
	}
	if err := c.do(ctx, http.MethodPost, "/api/guests", body, &out); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s\n%s%s\n", out.Token, c.base, out.Link)
	return nil
}

type guestRow struct {
	Token          string    `json:"token"`
	Name           string    `json:"name"`
	Created        time.Time `json:"created"`
	Active         bool      `json:"active"`
	QuotaPerDay    int       `json:"quota_per_day"`
	RemainingToday int       `json:"remaining_today"`
}

func runList(ctx context.Context, c *client, stdout io.Writer) error {
	var rows []guestRow
	if err := c.do(ctx, http.MethodGet, "/api/guests", nil, &rows); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TOKEN\tNAME\tCREATED\tACTIVE\tTODAY")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%d/%d\n",
			r.Token, r.Name, r.Created.Format(time.DateOnly), r.Active, r.RemainingToday, r.QuotaPerDay)
	}
	return tw.Flush()
}

type client struct {
	base string
	key  string
	http *http.Client
}

// do sends body as JSON and decodes a 2xx response into out. Non-2xx
// responses surface the server's "error" field.
func (c *client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("x-api-key", c.key)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var e struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		msg := e.Error
		if msg == "" {
			msg = e.Message
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, msg)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
