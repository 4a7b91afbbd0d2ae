package gmail

import "time"

// Message is a fetched and decoded mail message.
type Message struct {
	ID      string
	Headers map[string]string // header name (lowercased) -> value
	Date    time.Time         // parsed Date header; zero when missing or malformed
	Body    string            // decoded text of the preferred part
}

// DraftRef identifies a draft and its backing message.
type DraftRef struct {
	ID        string
	MessageID string
}

// Wire formats of the Gmail REST API.

type apiHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type apiBody struct {
	Size int    `json:"size"`
	Data string `json:"data"` // web-safe base64
}

type apiPart struct {
	MimeType string      `json:"mimeType"`
	Headers  []apiHeader `json:"headers"`
	Body     apiBody     `json:"body"`
	Parts    []apiPart   `json:"parts"`
}

type apiMessage struct {
	ID       string  `json:"id"`
	ThreadID string  `json:"threadId"`
	Payload  apiPart `json:"payload"`
}

type apiMessageRef struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
}

type apiMessageList struct {
	Messages      []apiMessageRef `json:"messages"`
	NextPageToken string          `json:"nextPageToken"`
}

type apiDraftRef struct {
	ID      string        `json:"id"`
	Message apiMessageRef `json:"message"`
}

type apiDraftList struct {
	Drafts        []apiDraftRef `json:"drafts"`
	NextPageToken string        `json:"nextPageToken"`
}

type apiDraft struct {
	ID      string     `json:"id"`
	Message apiMessage `json:"message"`
}
