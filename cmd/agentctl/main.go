// Command agentctl signs in to the dashboard API from a terminal, keeps the
// session in a local file and reads call stats.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"voiceagent-platform/pkg/client"

	"golang.org/x/term"
)

const defaultAddr = "http://localhost:8080"

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

var exitFn = os.Exit

func main() {
	exitFn(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		usage(stderr)
		return 2
	}

	cmds := map[string]func(*client.Client, []string, io.Writer, io.Writer) int{
		"login":     handleLogin,
		"logout":    handleLogout,
		"whoami":    handleWhoami,
		"register":  handleRegister,
		"stats":     handleStats,
		"provision": handleProvision,
	}
	cmd, ok := cmds[args[1]]
	if !ok {
		usage(stderr)
		return 2
	}

	fs := flag.NewFlagSet(args[1], flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", envOrDefault("AGENTCTL_ADDR", defaultAddr), "dashboard API address")
	sessionPath := fs.String("session", envOrDefault("AGENTCTL_SESSION", defaultSessionPath()), "session file")
	// subcommand flags are parsed by the handler from the remaining args
	rest, err := splitCommon(fs, args[2:])
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 2
	}

	store, err := client.OpenLocalStore(*sessionPath)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	return cmd(client.New(*addr, store), rest, stdout, stderr)
}

// splitCommon pulls -addr and -session out of args and returns the rest.
func splitCommon(fs *flag.FlagSet, args []string) ([]string, error) {
	var common, rest []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		name := strings.TrimLeft(a, "-")
		name, _, hasValue := strings.Cut(name, "=")
		if strings.HasPrefix(a, "-") && fs.Lookup(name) != nil {
			common = append(common, a)
			if !hasValue && i+1 < len(args) {
				i++
				common = append(common, args[i])
			}
			continue
		}
		rest = append(rest, a)
	}
	return rest, fs.Parse(common)
}

func handleLogin(c *client.Client, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(stderr)
	email := fs.String("email", "", "account e-mail")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *email == "" {
		fmt.Fprintln(stderr, "login requires -email")
		return 2
	}
	pw, err := promptPassword(stderr, "Password: ")
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	res, err := c.Login(ctx, *email, pw)
	if err != nil {
		fmt.Fprintln(stderr, "login failed:", err.Error())
		return 1
	}
	fmt.Fprintf(stdout, "signed in as %s (%s)\n", res.User.Email, res.User.Role)
	return 0
}

func handleLogout(c *client.Client, args []string, stdout, stderr io.Writer) int {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := c.Logout(ctx); err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	fmt.Fprintln(stdout, "signed out")
	return 0
}

func handleWhoami(c *client.Client, args []string, stdout, stderr io.Writer) int {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	u, err := c.Restore(ctx)
	if err != nil {
		if errors.Is(err, client.ErrNoSession) || errors.Is(err, client.ErrSessionExpired) {
			fmt.Fprintln(stderr, "not signed in")
			return 1
		}
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	return writeJSON(stdout, stderr, u)
}

func handleRegister(c *client.Client, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	fs.SetOutput(stderr)
	req := client.RegisterRequest{}
	fs.StringVar(&req.Email, "email", "", "account e-mail")
	fs.StringVar(&req.FirstName, "first-name", "", "first name")
	fs.StringVar(&req.LastName, "last-name", "", "last name")
	fs.StringVar(&req.Company, "company", "", "company")
	fs.StringVar(&req.Phone, "phone", "", "phone")
	fs.StringVar(&req.Plan, "plan", "free", "plan id")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if req.Email == "" {
		fmt.Fprintln(stderr, "register requires -email")
		return 2
	}
	pw, err := promptPassword(stderr, "Password: ")
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	confirm, err := promptPassword(stderr, "Confirm password: ")
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	req.Password, req.ConfirmPassword = pw, confirm

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	res, err := c.Register(ctx, req)
	if err != nil {
		fmt.Fprintln(stderr, "register failed:", err.Error())
		return 1
	}
	return writeJSON(stdout, stderr, res)
}

func handleStats(c *client.Client, args []string, stdout, stderr io.Writer) int {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s, err := c.DashboardStats(ctx)
	if err != nil {
		fmt.Fprintln(stderr, "stats failed:", err.Error())
		return 1
	}
	fmt.Fprintf(stdout, "calls: %d  successful: %d  success rate: %d%%  today: %d  avg: %.1f min\n",
		s.TotalCalls, s.SuccessfulCalls, s.SuccessRate, s.TodayCalls, s.AverageDurationMinutes)
	return 0
}

func handleProvision(c *client.Client, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("provision", flag.ContinueOnError)
	fs.SetOutput(stderr)
	form := client.AgentForm{}
	fs.StringVar(&form.AgentName, "name", "", "agent name")
	fs.StringVar(&form.AgentVoice, "voice", "", "voice id")
	fs.StringVar(&form.FirstMessage, "first-message", "", "greeting")
	fs.StringVar(&form.SystemPrompt, "prompt", "", "system prompt")
	fs.StringVar(&form.Model, "model", "", "model")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if form.AgentName == "" {
		fmt.Fprintln(stderr, "provision requires -name")
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	a, err := c.ProvisionAgent(ctx, form)
	if err != nil {
		fmt.Fprintln(stderr, "provision failed:", err.Error())
		return 1
	}
	return writeJSON(stdout, stderr, a)
}

func promptPassword(w io.Writer, prompt string) (string, error) {
	if _, err := fmt.Fprint(w, prompt); err != nil {
		return "", err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(pw), nil
}

func writeJSON(stdout, stderr io.Writer, v any) int {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	return 0
}

func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".agentctl-session.json"
	}
	return filepath.Join(dir, "agentctl", "session.json")
}

func envOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: agentctl <login|logout|whoami|register|stats|provision> [-addr URL] [-session FILE] [flags]")
}
