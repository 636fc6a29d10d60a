package types

// UIMessage is the JSON envelope pushed to websocket clients.
type UIMessage struct {
	Type    string `json:"type"`
	Stage   string `json:"stage,omitempty"`
	Index   int    `json:"index"`
	Total   int    `json:"total"`
	Source  string `json:"source,omitempty"`
	Output  string `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
	Elapsed string `json:"elapsed,omitempty"`
}

// UISnapshot is the latest known state of a run, served on connect and on /status.
type UISnapshot struct {
	Type     string     `json:"type"`
	Stage    string     `json:"stage"`
	Done     int        `json:"done"`
	Failed   int        `json:"failed"`
	Total    int        `json:"total"`
	Last     *UIMessage `json:"last,omitempty"`
	Finished bool       `json:"finished"`
}
