package simplon

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

const DefaultPollInterval = 5 * time.Second

// Modules polled by Status.
var Modules = []string{"detector", "stream", "filewriter", "monitor"}

// Status maps module name to its state, or to "error"/"http_<code>" when the
// module could not be read.
type Status map[string]string

func (c *Client) Status(ctx context.Context) Status {
	st := make(Status, len(Modules))
	for _, m := range Modules {
		state, err := c.State(ctx, m)
		switch e := err.(type) {
		case nil:
			st[m] = state
		case *HTTPError:
			st[m] = "http_" + strconv.Itoa(e.Status)
		default:
			st[m] = "error"
		}
	}
	return st
}

// Poll calls update with the current status every interval until ctx is done.
// update is only called when the status changed since the last call.
func (c *Client) Poll(ctx context.Context, interval time.Duration, update func(Status)) {
	if update == nil {
		return
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last Status
	for {
		st := c.Status(ctx)
		if ctx.Err() != nil {
			return
		}
		if !st.Equal(last) {
			update(st)
			last = st
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s Status) Equal(o Status) bool {
	if len(s) != len(o) {
		return false
	}
	for k, v := range s {
		if o[k] != v {
			return false
		}
	}
	return true
}

// StreamEnabled reports whether stream/config/mode is "enabled".
func (c *Client) StreamEnabled(ctx context.Context) (bool, error) {
	v, err := c.Config(ctx, "stream", "mode")
	if err != nil {
		return false, err
	}
	s, _ := v.(string)
	return strings.EqualFold(s, "enabled"), nil
}

func extractState(payload []byte) (string, bool) {
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return "", false
	}
	state := findState(decoded)
	if state == "" {
		return "", false
	}
	return strings.ToLower(state), true
}

func findState(value any) string {
	switch v := value.(type) {
	case map[string]any:
		for _, key := range []string{"state", "status", "value"} {
			if entry, ok := v[key]; ok {
				switch inner := entry.(type) {
				case string:
					return inner
				default:
					if nested := findState(inner); nested != "" {
						return nested
					}
				}
			}
		}
	case []any:
		for _, entry := range v {
			if nested := findState(entry); nested != "" {
				return nested
			}
		}
	}
	return ""
}
