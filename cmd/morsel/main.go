package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/foodcom/morsel/internal/api"
	"github.com/foodcom/morsel/internal/app"
)

const usage = `usage: morsel [flags] [command]

commands:
  (none)             run the terminal client
  login <loginId>    log in and store the session
  logout             forget the stored session
  whoami             print the stored identity
  signup <loginId>   register a member (--name, --gender, --age)

flags:
`

// stdin is shared so that piped answers are not lost to a second buffer.
var stdin = bufio.NewReader(os.Stdin)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "config file (default ~/.config/morsel/config.toml)")
	prefsPath := flag.String("prefs", "", "preferences file (default ~/.config/morsel/prefs.toml)")
	pollSeconds := flag.Int("poll", 0, "feed refresh interval in seconds (default 5)")
	ephemeral := flag.Bool("ephemeral", false, "keep the session in memory only")
	name := flag.String("name", "", "signup: display name")
	gender := flag.String("gender", "", "signup: m or f")
	age := flag.Int("age", 0, "signup: age")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := app.Options{
		ConfigPath: *configPath,
		PrefsPath:  *prefsPath,
		Ephemeral:  *ephemeral,
	}
	if poll := *pollSeconds; poll > 0 {
		opts.PollEvery = poll
	}

	args := flag.Args()
	var err error
	switch {
	case len(args) == 0:
		err = app.Run(ctx, opts)
	case args[0] == "login" && len(args) == 2:
		err = login(ctx, opts, args[1])
	case args[0] == "logout" && len(args) == 1:
		err = app.Logout(ctx, opts, os.Stdout)
	case args[0] == "whoami" && len(args) == 1:
		err = app.Whoami(ctx, opts, os.Stdout)
	case args[0] == "signup" && len(args) == 2:
		err = signup(ctx, opts, args[1], *name, *gender, *age)
	default:
		flag.Usage()
		return 2
	}

	if err != nil {
		if errors.Is(err, app.ErrNotLoggedIn) {
			fmt.Fprintln(os.Stderr, "morsel: not logged in")
			return 1
		}
		fmt.Fprintf(os.Stderr, "morsel: %v\n", err)
		return 1
	}
	return 0
}

func login(ctx context.Context, opts app.Options, loginID string) error {
	password, err := readPassword("Password: ")
	if err != nil {
		return err
	}
	return app.Login(ctx, opts, loginID, password, os.Stdout)
}

func signup(ctx context.Context, opts app.Options, loginID, name, gender string, age int) error {
	var err error
	if name == "" {
		if name, err = prompt("Display name: "); err != nil {
			return err
		}
	}
	if gender == "" {
		if gender, err = prompt("Gender (m/f): "); err != nil {
			return err
		}
	}
	g, ok := api.ParseGender(gender)
	if !ok {
		return fmt.Errorf("gender %q: want m or f", gender)
	}
	if age <= 0 {
		answer, err := prompt("Age: ")
		if err != nil {
			return err
		}
		if _, err := fmt.Sscanf(answer, "%d", &age); err != nil || age <= 0 {
			return fmt.Errorf("age %q: want a positive number", answer)
		}
	}

	password, err := readPassword("Password: ")
	if err != nil {
		return err
	}
	confirm, err := readPassword("Repeat password: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return errors.New("passwords do not match")
	}

	return app.Signup(ctx, opts, api.SignupRequest{
		LoginID:  loginID,
		Password: password,
		Username: name,
		Gender:   g,
		Age:      age,
	}, os.Stdout)
}

func prompt(label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	line, err := stdin.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(strings.ToLower(label), ": "), err)
	}
	return strings.TrimSpace(line), nil
}

// readPassword reads without echo on a terminal and falls back to a plain
// line when stdin is piped.
func readPassword(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return prompt(label)
	}
	fmt.Fprint(os.Stderr, label)
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(raw), nil
}
