package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/deepesh-sr/Trustplay/internal/events"
)

var eventsCmd = &cobra.Command{
	Use:     "events",
	Short:   "Inspect the event log or follow live events",
	GroupID: "views",
}

var eventsListCmd = &cobra.Command{
	Use:   "list <ref>",
	Short: "List recorded events for a room, claim or player",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		evs, err := tpClient.GetEvents(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), evs, func(w io.Writer) { printEvents(w, evs) })
	},
}

var eventsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow live events from NATS or the HTTP event stream",
	Long: `Follow live events until interrupted. With --nats (or a remote with a
NATS URL) events come straight from the bus; otherwise they are read from
the server's /v1/events/stream endpoint over HTTP.`,
	Args:              cobra.NoArgs,
	PersistentPreRunE: skipClient,
	RunE: func(cmd *cobra.Command, args []string) error {
		patterns, _ := cmd.Flags().GetStringSlice("topics")
		natsURL, _ := cmd.Flags().GetString("nats")

		out := cmd.OutOrStdout()
		var mu sync.Mutex
		show := func(topic string, data []byte) {
			mu.Lock()
			defer mu.Unlock()
			if jsonOutput {
				line, _ := json.Marshal(struct {
					Topic string          `json:"topic"`
					Data  json.RawMessage `json:"data"`
				}{topic, data})
				fmt.Fprintln(out, string(line))
				return
			}
			printWatchedEvent(out, time.Now(), topic, data)
		}

		if natsURL != "" {
			return watchNATS(cmd.Context(), natsURL, patterns, show)
		}
		return watchSSE(cmd.Context(), httpURL, token, patterns, show)
	},
}

// watchNATS subscribes to every known topic the patterns select. Payloads
// carry no subject, so each topic gets its own subscription.
func watchNATS(ctx context.Context, natsURL string, patterns []string, handle func(topic string, data []byte)) error {
	topics := events.Expand(patterns)
	if len(topics) == 0 {
		return fmt.Errorf("no known topics match %v", patterns)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	sub, err := events.NewNATSSubscriber(natsURL,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	)
	if err != nil {
		return err
	}
	defer sub.Close()

	var wg sync.WaitGroup
	for _, topic := range topics {
		ch, cancel, err := sub.Subscribe(topic)
		if err != nil {
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
		defer cancel()
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case data, ok := <-ch:
					if !ok {
						return
					}
					handle(topic, data)
				}
			}
		}()
	}
	<-ctx.Done()
	wg.Wait()
	return nil
}

// watchSSE reads the server's event stream until ctx is done or the server
// closes the connection.
func watchSSE(ctx context.Context, baseURL, bearer string, patterns []string, handle func(topic string, data []byte)) error {
	u := strings.TrimRight(baseURL, "/") + "/v1/events/stream"
	if len(patterns) > 0 {
		u += "?" + url.Values{"topics": {strings.Join(patterns, ",")}}.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("connecting to event stream: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("event stream: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var topic string
	var data []string
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if topic != "" || len(data) > 0 {
				handle(topic, []byte(strings.Join(data, "\n")))
			}
			topic, data = "", nil
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			topic = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := sc.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("reading event stream: %w", err)
	}
	return nil
}

func defaultNATSURL() string {
	if s := os.Getenv("TRUSTPLAY_NATS_URL"); s != "" {
		return s
	}
	return activeRemote().NATSURL
}

func init() {
	eventsWatchCmd.Flags().StringSlice("topics", nil, "topic patterns such as trustplay.claim.* (default all)")
	eventsWatchCmd.Flags().String("nats", defaultNATSURL(), "NATS URL; empty reads the HTTP event stream")

	eventsCmd.AddCommand(eventsListCmd)
	eventsCmd.AddCommand(eventsWatchCmd)
}
