package viewer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/watchroom/server/internal/domain"
)

var (
	errUnknownCommand = errors.New("unknown command, type help")
	errUsage          = errors.New("invalid arguments")
)

const helpText = `commands:
  play | pause | seek SECONDS | skip
  add SOURCE_ID | add #N     queue a video or a search result
  remove ITEM_ID
  search QUERY
  catchup | restart          answer the join prompt
  join ROOM_ID | leave
  status | help | quit`

// Console turns text commands into engine actions.
type Console struct {
	engine      *Engine
	session     *Session
	api         *APIClient
	logger      *slog.Logger
	displayName string
	policy      PromptPolicy

	mu      sync.Mutex
	out     io.Writer
	results []domain.Video
}

func NewConsole(engine *Engine, session *Session, api *APIClient, out io.Writer, logger *slog.Logger, displayName string, policy PromptPolicy) *Console {
	return &Console{
		engine:      engine,
		session:     session,
		api:         api,
		logger:      logger,
		out:         out,
		displayName: displayName,
		policy:      policy,
	}
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.out, format+"\n", args...)
}

// HandlePrompt applies the configured join prompt policy.
func (c *Console) HandlePrompt(p Prompt) {
	var err error
	switch c.policy {
	case PromptCatchUp:
		err = c.engine.ResolvePrompt(true)
	case PromptStartOver:
		err = c.engine.ResolvePrompt(false)
	default:
		c.printf("room is playing %q at %s: type catchup or restart", p.Item.Title, formatPosition(p.Position))
	}
	if err != nil {
		c.logger.Warn("failed to answer join prompt", "policy", c.policy, "error", err)
	}
}

// Run executes lines from in until quit, EOF or ctx is done.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := c.Exec(ctx, line)
			if err != nil {
				c.printf("error: %v", err)
			}
			if quit {
				return nil
			}
		}
	}
}

func (c *Console) Exec(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	command, args := strings.ToLower(fields[0]), fields[1:]

	switch command {
	case "quit", "exit":
		return true, nil
	case "help":
		c.printf("%s", helpText)
		return false, nil
	case "status":
		c.printStatus()
		return false, nil
	case "play":
		return false, c.engine.Play()
	case "pause":
		return false, c.engine.Pause()
	case "seek":
		if len(args) != 1 {
			return false, errUsage
		}
		position, err := parsePosition(args[0])
		if err != nil {
			return false, err
		}
		return false, c.engine.Seek(position)
	case "skip":
		return false, c.engine.Skip()
	case "catchup":
		return false, c.engine.ResolvePrompt(true)
	case "restart":
		return false, c.engine.ResolvePrompt(false)
	case "remove":
		if len(args) != 1 {
			return false, errUsage
		}
		return false, c.engine.RemoveFromQueue(args[0])
	case "add":
		if len(args) != 1 {
			return false, errUsage
		}
		return false, c.add(ctx, args[0])
	case "search":
		if len(args) == 0 {
			return false, errUsage
		}
		return false, c.search(ctx, strings.Join(args, " "))
	case "join":
		if len(args) != 1 {
			return false, errUsage
		}
		return false, c.engine.Join(args[0], c.displayName)
	case "leave":
		return false, c.engine.Leave()
	default:
		return false, errUnknownCommand
	}
}

func (c *Console) add(ctx context.Context, arg string) error {
	var video domain.Video
	if n, ok := strings.CutPrefix(arg, "#"); ok {
		index, err := strconv.Atoi(n)
		c.mu.Lock()
		results := c.results
		c.mu.Unlock()
		if err != nil || index < 1 || index > len(results) {
			return fmt.Errorf("no search result %s", arg)
		}
		video = results[index-1]
	} else {
		var err error
		video, err = c.api.GetVideo(ctx, arg)
		if err != nil {
			return fmt.Errorf("failed to look up %s: %w", arg, err)
		}
	}

	return c.engine.AddToQueue(ItemFromVideo(video, c.displayName))
}

func (c *Console) search(ctx context.Context, query string) error {
	videos, err := c.api.Search(ctx, query)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.results = videos
	c.mu.Unlock()

	if len(videos) == 0 {
		c.printf("no results")
	}
	for i, v := range videos {
		c.printf("#%d %s [%s] %s", i+1, v.Title, formatPosition(v.DurationSeconds), v.SourceId)
	}

	return nil
}

func (c *Console) printStatus() {
	v := c.engine.View()

	connection := "connected"
	if c.session != nil && !c.session.Connected() {
		connection = "reconnecting"
	}
	if v.RoomId == "" {
		c.printf("%s, not in a room", connection)
		return
	}

	c.printf("%s, room %s, %d members, %s", connection, v.RoomId, len(v.Members), v.State)
	if v.CurrentItem == nil {
		c.printf("nothing playing")
	} else {
		status := "paused"
		if v.RoomPlaying {
			status = "playing"
		}
		c.printf("%s %q %s / %s", status, v.CurrentItem.Title, formatPosition(v.Position), formatPosition(v.CurrentItem.DurationSeconds))
	}
	for i, item := range v.Queue {
		c.printf("  %d. %s (%s) id=%s", i+1, item.Title, item.AddedBy, item.Id)
	}
}

// parsePosition accepts seconds or m:ss.
func parsePosition(s string) (float64, error) {
	if minutes, seconds, ok := strings.Cut(s, ":"); ok {
		m, err := strconv.Atoi(minutes)
		if err != nil {
			return 0, fmt.Errorf("invalid position %q", s)
		}
		sec, err := strconv.ParseFloat(seconds, 64)
		if err != nil || sec >= 60 {
			return 0, fmt.Errorf("invalid position %q", s)
		}
		return float64(m)*60 + sec, nil
	}

	position, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid position %q", s)
	}

	return position, nil
}

func formatPosition(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
