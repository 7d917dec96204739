// Command viewer tails the event stream of one user and prints every frame.
// On exit it renders a summary of what was received.
//
//	viewer -url http://localhost:6687/events -user 42
package main

import (
	"bufio"
	"chat-notify/auth"
	"chat-notify/domain"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
)

type Config struct {
	URL       string `env:"VIEWER_URL,default=http://localhost:6687/events"`
	Token     string `env:"VIEWER_TOKEN"`
	JWTSecret string `env:"JWT_SECRET"`
	JWTIssuer string `env:"JWT_ISSUER,default=chat_server"`
}

var eventColors = map[string]color.Color{
	"NewChat":        color.FgGreen,
	"AddToChat":      color.FgCyan,
	"RemoveFromChat": color.FgYellow,
	"NewMessage":     color.FgMagenta,
}

func main() {
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(2)
	}

	url := flag.String("url", config.URL, "event stream endpoint")
	token := flag.String("token", config.Token, "bearer token (minted from JWT_SECRET when empty)")
	user := flag.Int64("user", 0, "user id used to mint a token")
	raw := flag.Bool("raw", false, "print data lines without colors")
	flag.Parse()

	if *token == "" {
		if config.JWTSecret == "" || *user == 0 {
			fmt.Fprintln(os.Stderr, "Either -token or JWT_SECRET with -user is required")
			os.Exit(2)
		}
		minted, err := auth.NewTokenManager(config.JWTSecret, config.JWTIssuer).
			GenerateToken(domain.UserID(*user), 0, time.Hour)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to mint token: %v\n", err)
			os.Exit(2)
		}
		*token = minted
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	counts, err := tail(ctx, *url, *token, *raw)
	renderSummary(counts)
	if err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "Stream ended: %v\n", err)
		os.Exit(1)
	}
}

// tail prints every frame until the stream ends and returns the number of
// frames received per event name.
func tail(ctx context.Context, url, token string, raw bool) (map[string]int, error) {
	counts := map[string]int{}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return counts, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return counts, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return counts, fmt.Errorf("unexpected status %s", resp.Status)
	}
	color.Info.Printf("Connected to %s\n", url)

	var name string
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, ":"):
			counts["keep-alive"]++
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			counts[name]++
			printFrame(name, strings.TrimPrefix(line, "data: "), raw)
		case line == "":
			name = ""
		}
	}
	return counts, scanner.Err()
}

func printFrame(name, data string, raw bool) {
	if raw {
		fmt.Println(data)
		return
	}
	c, ok := eventColors[name]
	if !ok {
		c = color.FgWhite
	}
	fmt.Printf("%s %s %s\n", color.Gray.Render(time.Now().Format("15:04:05.000")), c.Render(name), data)
}

func renderSummary(counts map[string]int) {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Event", "Frames"})
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	for _, name := range names {
		table.Append([]string{name, strconv.Itoa(counts[name])})
	}
	table.Render()
}
