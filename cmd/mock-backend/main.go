// Command mock-backend runs a deterministic translation backend for
// conformance testing. It speaks all three wire protocols the adapters
// target: Chat Completions, Gemini generateContent, and the DeepL v2
// translate endpoint, returning a predictable word-mapped "translation".
//
// Failure injection via markers in the subtitle text:
//
//	[RATE_LIMIT] - respond 429
//	[SERVER_ERROR] - respond 503
//	[BLOCK] - safety block / content filter
//	[TRUNCATE] - MAX_TOKENS finish with minimal output
//
// Configuration:
//
//	MOCK_PORT - Listen port (default: 9090)
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}

	mux := http.NewServeMux()
	// Chat Completions surface.
	mux.HandleFunc("POST /v1/chat/completions", handleChatCompletions)
	mux.HandleFunc("GET /v1/models", handleChatModels)
	// Gemini surface.
	mux.HandleFunc("POST /v1beta/models/{model}", handleGemini)
	mux.HandleFunc("GET /v1beta/models/{model}", handleGeminiMetadata)
	mux.HandleFunc("GET /v1beta/models", handleGeminiModels)
	// DeepL surface.
	mux.HandleFunc("POST /v2/translate", handleDeepL)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: ":" + port, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock backend starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock backend failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock backend shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

// --- Deterministic translation ---

// wordMap is the canned English-to-French vocabulary. Unknown words pass
// through unchanged, keeping subtitle numbering and timestamps intact.
var wordMap = map[string]string{
	"hello":   "bonjour",
	"Hello":   "Bonjour",
	"world":   "monde",
	"World":   "Monde",
	"good":    "bon",
	"morning": "matin",
	"night":   "nuit",
	"thanks":  "merci",
	"yes":     "oui",
	"no":      "non",
	"friend":  "ami",
}

func mockTranslate(text string) string {
	words := strings.Split(text, " ")
	for i, w := range words {
		trimmed := strings.TrimRight(w, ".,!?")
		if repl, ok := wordMap[trimmed]; ok {
			words[i] = repl + w[len(trimmed):]
		}
	}
	return strings.Join(words, " ")
}

// injection inspects the text for failure markers.
func injection(text string) string {
	for _, marker := range []string{"RATE_LIMIT", "SERVER_ERROR", "BLOCK", "TRUNCATE"} {
		if strings.Contains(text, "["+marker+"]") {
			return marker
		}
	}
	return ""
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":{"message":%q,"type":"mock_error"}}`, message)
}

// tokenize splits the translated text into streamable word chunks.
func tokenize(text string) []string {
	words := strings.SplitAfter(text, " ")
	var tokens []string
	for _, w := range words {
		if w != "" {
			tokens = append(tokens, w)
		}
	}
	return tokens
}

// --- Chat Completions surface ---

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func lastUserMessage(req *chatRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			return req.Messages[i].Content
		}
	}
	return ""
}

func handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request")
		return
	}

	content := lastUserMessage(&req)
	switch injection(content) {
	case "RATE_LIMIT":
		writeJSONError(w, http.StatusTooManyRequests, "mock rate limit")
		return
	case "SERVER_ERROR":
		writeJSONError(w, http.StatusServiceUnavailable, "mock server error")
		return
	}

	model := req.Model
	if model == "" {
		model = "mock-model"
	}

	text := mockTranslate(content)
	finish := "stop"
	switch injection(content) {
	case "BLOCK":
		text = ""
		finish = "content_filter"
	case "TRUNCATE":
		text = text[:min(4, len(text))]
		finish = "length"
	}

	if req.Stream {
		streamChat(w, model, text, finish)
		return
	}

	resp := map[string]any{
		"id":     "chatcmpl-mock",
		"object": "chat.completion",
		"model":  model,
		"choices": []any{map[string]any{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": text},
			"finish_reason": finish,
		}},
		"usage": map[string]any{
			"prompt_tokens":     len(content) / 4,
			"completion_tokens": len(text) / 4,
			"total_tokens":      (len(content) + len(text)) / 4,
		},
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func streamChat(w http.ResponseWriter, model, text, finish string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	writeChatChunk := func(delta map[string]any, finishReason any) {
		chunk := map[string]any{
			"id":     "chatcmpl-mock-stream",
			"object": "chat.completion.chunk",
			"model":  model,
			"choices": []any{map[string]any{
				"index":         0,
				"delta":         delta,
				"finish_reason": finishReason,
			}},
		}
		data, _ := json.Marshal(chunk)
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	writeChatChunk(map[string]any{"role": "assistant"}, nil)
	for _, token := range tokenize(text) {
		writeChatChunk(map[string]any{"content": token}, nil)
	}
	writeChatChunk(map[string]any{}, finish)
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func handleChatModels(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"object": "list",
		"data": []map[string]any{
			{"id": "mock-model", "object": "model", "owned_by": "sublate-mock"},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// --- Gemini surface ---

type geminiRequest struct {
	Contents []struct {
		Role  string `json:"role"`
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"contents"`
}

// handleGemini dispatches the :generateContent, :streamGenerateContent,
// and :countTokens actions, which arrive as a suffix on the model path
// segment.
func handleGemini(w http.ResponseWriter, r *http.Request) {
	model, action, ok := strings.Cut(r.PathValue("model"), ":")
	if !ok {
		http.NotFound(w, r)
		return
	}

	var req geminiRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request")
		return
	}
	var content string
	if len(req.Contents) > 0 && len(req.Contents[0].Parts) > 0 {
		content = req.Contents[0].Parts[0].Text
	}

	switch action {
	case "countTokens":
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"totalTokens":%d}`, len(content)/4+1)
		return
	case "generateContent", "streamGenerateContent":
	default:
		http.NotFound(w, r)
		return
	}

	switch injection(content) {
	case "RATE_LIMIT":
		writeJSONError(w, http.StatusTooManyRequests, "mock rate limit")
		return
	case "SERVER_ERROR":
		writeJSONError(w, http.StatusServiceUnavailable, "mock server error")
		return
	case "BLOCK":
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"promptFeedback":{"blockReason":"SAFETY","safetyRatings":[{"category":"HARM_CATEGORY_DANGEROUS_CONTENT","probability":"HIGH"}]}}`)
		return
	}

	text := mockTranslate(content)
	finish := "STOP"
	if injection(content) == "TRUNCATE" {
		text = text[:min(4, len(text))]
		finish = "MAX_TOKENS"
	}

	if action == "streamGenerateContent" && r.URL.Query().Get("alt") == "sse" {
		streamGemini(w, text, finish)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(geminiCandidate(model, text, finish))
}

func geminiCandidate(model, text, finish string) map[string]any {
	return map[string]any{
		"candidates": []any{map[string]any{
			"content":      map[string]any{"role": "model", "parts": []any{map[string]any{"text": text}}},
			"finishReason": finish,
		}},
		"usageMetadata": map[string]any{
			"promptTokenCount":     len(text) / 4,
			"candidatesTokenCount": len(text) / 4,
		},
		"modelVersion": model,
	}
}

func streamGemini(w http.ResponseWriter, text, finish string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")

	tokens := tokenize(text)
	for i, token := range tokens {
		chunkFinish := ""
		if i == len(tokens)-1 {
			chunkFinish = finish
		}
		chunk := map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"role": "model", "parts": []any{map[string]any{"text": token}}},
			}},
		}
		if chunkFinish != "" {
			chunk["candidates"].([]any)[0].(map[string]any)["finishReason"] = chunkFinish
		}
		data, _ := json.Marshal(chunk)
		fmt.Fprintf(w, "data: %s\r\n\r\n", data)
		flusher.Flush()
	}
}

func handleGeminiMetadata(w http.ResponseWriter, r *http.Request) {
	model := r.PathValue("model")
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"name":"models/%s","displayName":"Mock %s","inputTokenLimit":1048576,"outputTokenLimit":65536}`, model, model)
}

func handleGeminiModels(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"models":[{"name":"models/mock-gemini","displayName":"Mock Gemini","inputTokenLimit":1048576,"outputTokenLimit":65536}]}`)
}

// --- DeepL surface ---

func handleDeepL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text       []string `json:"text"`
		TargetLang string   `json:"target_lang"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Text) == 0 {
		writeJSONError(w, http.StatusBadRequest, "invalid request")
		return
	}

	switch injection(req.Text[0]) {
	case "RATE_LIMIT":
		writeJSONError(w, http.StatusTooManyRequests, "mock rate limit")
		return
	case "SERVER_ERROR":
		writeJSONError(w, http.StatusServiceUnavailable, "mock server error")
		return
	}

	type translation struct {
		DetectedSourceLanguage string `json:"detected_source_language"`
		Text                   string `json:"text"`
	}
	resp := struct {
		Translations []translation `json:"translations"`
	}{}
	for _, text := range req.Text {
		resp.Translations = append(resp.Translations, translation{
			DetectedSourceLanguage: "EN",
			Text:                   mockTranslate(text),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
