package main

import (
	"context"
	"fmt"
	"time"

	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/domain"
	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/protocol"
	"github.com/MehmetSalihK/portfolioadmin-sub002/internal/syncclient"
	"github.com/spf13/cobra"
)

const pollInterval = 50 * time.Millisecond

type options struct {
	url        string
	token      string
	codec      string
	logLevel   string
	debounce   time.Duration
	retries    int
	retryDelay time.Duration
	wait       time.Duration
}

func (o *options) bind(cmd *cobra.Command, defaults environment) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&o.url, "url", defaults.URL, "relay WebSocket URL (env SYNC_URL)")
	flags.StringVar(&o.token, "token", defaults.Token, "admin bearer token (env SYNC_TOKEN)")
	flags.StringVar(&o.codec, "codec", defaults.Codec, "wire codec: json or msgpack")
	flags.StringVar(&o.logLevel, "log-level", defaults.LogLevel, "log level: debug, info, warn, error")
	flags.DurationVar(&o.debounce, "debounce", syncclient.DefaultDebounce, "quiet period before pending changes are sent")
	flags.IntVar(&o.retries, "retries", syncclient.DefaultMaxRetries, "reconnect attempts after a lost connection")
	flags.DurationVar(&o.retryDelay, "retry-delay", syncclient.DefaultRetryDelay, "base reconnect delay, grows linearly per attempt")
	flags.DurationVar(&o.wait, "wait", 10*time.Second, "how long to wait for the relay to connect or acknowledge")
}

func (o *options) clientConfig(role domain.Role, onChange func(protocol.Change)) (syncclient.Config, error) {
	codec, err := protocol.ByName(o.codec)
	if err != nil {
		return syncclient.Config{}, err
	}

	retries := o.retries
	if retries == 0 {
		retries = -1 // zero means "no retries" on the command line
	}

	return syncclient.Config{
		URL:        o.url,
		Role:       role,
		Token:      o.token,
		Debounce:   o.debounce,
		MaxRetries: retries,
		RetryDelay: o.retryDelay,
		Codec:      codec,
		OnChange:   onChange,
	}, nil
}

func (o *options) connect(ctx context.Context, role domain.Role, onChange func(protocol.Change)) (*syncclient.Client, error) {
	cfg, err := o.clientConfig(role, onChange)
	if err != nil {
		return nil, err
	}

	client := syncclient.New(cfg)
	if _, err := waitFor(ctx, client, o.wait, func(s syncclient.State) bool { return s.Connected }); err != nil {
		client.Close()
		return nil, fmt.Errorf("could not connect to %s: %w", o.url, err)
	}
	return client, nil
}

// waitFor polls the client until cond holds, ctx ends or timeout elapses. The last
// snapshot is returned either way.
func waitFor(ctx context.Context, client *syncclient.Client, timeout time.Duration, cond func(syncclient.State) bool) (syncclient.State, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		state := client.State()
		if cond(state) {
			return state, nil
		}

		select {
		case <-ctx.Done():
			if len(state.Errors) > 0 {
				return state, fmt.Errorf("%w (last error: %s)", ctx.Err(), state.Errors[len(state.Errors)-1])
			}
			return state, ctx.Err()
		case <-ticker.C:
		}
	}
}
