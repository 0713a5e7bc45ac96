package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/oceanwatch/aisguard/geo"
	l "github.com/oceanwatch/aisguard/logger"
	"github.com/oceanwatch/aisguard/storage"
)

const (
	openAIEndpoint  = "https://api.openai.com/v1/chat/completions"
	chatModel       = "gpt-4o"
	chatTemperature = 0.2
	chatMaxTokens   = 500
	// cap on how many vessels the store contributes when the client
	// sends none
	chatMaxVessels = 50
	// cap on how many vessels are quoted in the prompt
	chatPromptVessels = 10
)

const chatNotConfigured = "I'm sorry, but my connection to the language model is not configured. " +
	"Please add your OpenAI API key to the .env file."
const chatUpstreamDown = "I'm having trouble connecting to my knowledge base. Please try again later."

// chatClient answers map-assistant queries through the OpenAI
// chat-completions API. Without a key it degrades to canned responses.
type chatClient struct {
	log      *l.Logger
	db       *storage.VesselDB
	apiKey   string
	endpoint string
	client   *http.Client
}

func newChatClient(log *l.Logger, db *storage.VesselDB, apiKey string) *chatClient {
	return &chatClient{
		log:      log,
		db:       db,
		apiKey:   apiKey,
		endpoint: openAIEndpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type chatBounds struct {
	SouthWest struct {
		Lat *float64 `json:"lat"`
		Lng *float64 `json:"lng"`
	} `json:"_southWest"`
	NorthEast struct {
		Lat *float64 `json:"lat"`
		Lng *float64 `json:"lng"`
	} `json:"_northEast"`
}

type chatAnswer struct {
	Response string        `json:"response"`
	Actions  []interface{} `json:"actions"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
}

func (a *api) chatQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		a.writeError(w, r, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req struct {
		Query          *string           `json:"query"`
		MapBounds      json.RawMessage   `json:"mapBounds"`
		VisibleVessels []json.RawMessage `json:"visibleVessels"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == nil {
		a.writeError(w, r, http.StatusBadRequest, "Invalid request")
		return
	}
	vessels := req.VisibleVessels
	if len(vessels) == 0 {
		vessels = a.chat.vesselsWithin(req.MapBounds)
	}
	answer := a.chat.ask(*req.Query, vessels, req.MapBounds)
	a.writeJSON(w, r, http.StatusOK, answer, "chat")
}

// vesselsWithin falls back to the store's spatial query when the client
// didn't send any vessels.
func (c *chatClient) vesselsWithin(boundsRaw json.RawMessage) []json.RawMessage {
	if len(boundsRaw) == 0 {
		return nil
	}
	var bounds chatBounds
	if err := json.Unmarshal(boundsRaw, &bounds); err != nil {
		return nil
	}
	sw, ne := bounds.SouthWest, bounds.NorthEast
	if sw.Lat == nil || sw.Lng == nil || ne.Lat == nil || ne.Lng == nil {
		return nil
	}
	rect, err := geo.NewRectangle(*sw.Lat, *sw.Lng, *ne.Lat, *ne.Lng)
	if err != nil {
		return nil
	}
	states := c.db.SpatialQuery(rect)
	if len(states) > chatMaxVessels {
		states = states[:chatMaxVessels]
	}
	vessels := make([]json.RawMessage, 0, len(states))
	for i := range states {
		if b, err := json.Marshal(&states[i]); err == nil {
			vessels = append(vessels, b)
		}
	}
	return vessels
}

func (c *chatClient) ask(query string, vessels []json.RawMessage, boundsRaw json.RawMessage) chatAnswer {
	if c.apiKey == "" {
		return chatAnswer{Response: chatNotConfigured, Actions: []interface{}{}}
	}
	payload, err := json.Marshal(openAIRequest{
		Model: chatModel,
		Messages: []openAIMessage{
			{Role: "system", Content: systemPrompt(vessels, boundsRaw)},
			{Role: "user", Content: query},
		},
		Temperature: chatTemperature,
		MaxTokens:   chatMaxTokens,
	})
	if err != nil {
		c.log.Error("could not marshal chat request: %s", err.Error())
		return chatAnswer{Response: chatUpstreamDown, Actions: []interface{}{}}
	}
	httpReq, err := http.NewRequest("POST", c.endpoint, bytes.NewReader(payload))
	if err != nil {
		c.log.Error("could not build chat request: %s", err.Error())
		return chatAnswer{Response: chatUpstreamDown, Actions: []interface{}{}}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.log.Warning("chat completion request failed: %s", err.Error())
		return chatAnswer{Response: chatUpstreamDown, Actions: []interface{}{}}
	}
	defer resp.Body.Close()
	var completion openAIResponse
	if resp.StatusCode != http.StatusOK ||
		json.NewDecoder(resp.Body).Decode(&completion) != nil ||
		len(completion.Choices) == 0 {
		c.log.Warning("chat completion answered %s", resp.Status)
		return chatAnswer{Response: chatUpstreamDown, Actions: []interface{}{}}
	}
	text, actions := extractActions(completion.Choices[0].Message.Content)
	return chatAnswer{Response: text, Actions: actions}
}

// systemPrompt gives the model the map state as context.
func systemPrompt(vessels []json.RawMessage, boundsRaw json.RawMessage) string {
	bounds := "{}"
	if len(boundsRaw) > 0 {
		bounds = string(boundsRaw)
	}
	quoted := vessels
	if len(quoted) > chatPromptVessels {
		quoted = quoted[:chatPromptVessels]
	}
	sample, err := json.MarshalIndent(quoted, "", "  ")
	if err != nil {
		sample = []byte("[]")
	}
	return fmt.Sprintf(`You are an AIS Map Assistant, helping users interact with real-time maritime vessel data.
The user is viewing a map of the San Francisco Bay Area.

Current map boundaries: %s

There are %d visible vessels on the map currently.
Here's data about some of these vessels:
%s

Respond to the user's query about the AIS data. If relevant, you can recommend actions like:
- Focusing on specific vessels (providing their MMSI)
- Highlighting vessels that match certain criteria
- Explaining maritime terminology
- Analyzing vessel patterns or unusual behavior

Keep responses concise, informative, and helpful.`, bounds, len(vessels), sample)
}

// extractActions pulls an "actions" array out of a ```json block in the
// model's reply and strips the block from the shown text.
func extractActions(text string) (string, []interface{}) {
	actions := []interface{}{}
	start := strings.Index(text, "```json")
	if start == -1 {
		return text, actions
	}
	rest := text[start+len("```json"):]
	end := strings.Index(rest, "```")
	if end == -1 {
		return text, actions
	}
	var payload struct {
		Actions []interface{} `json:"actions"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(rest[:end])), &payload); err != nil ||
		payload.Actions == nil {
		return text, actions
	}
	stripped := strings.TrimSpace(text[:start] + rest[end+len("```"):])
	return stripped, payload.Actions
}
