package handlers

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/crashlens/crashlens/internal/classifier"
	"github.com/crashlens/crashlens/pkg/logger"
)

// WebSocketHandler streams classification output: generation chunks are
// forwarded to the client as they arrive, followed by a final message
// carrying the parsed verdict.
type WebSocketHandler struct {
	classifier *classifier.Classifier
	defaultStr classifier.Strategy
}

func NewWebSocketHandler(c *classifier.Classifier, defaultStrategy classifier.Strategy) *WebSocketHandler {
	return &WebSocketHandler{
		classifier: c,
		defaultStr: defaultStrategy,
	}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type     string `json:"type"`
			Report   string `json:"report"`
			Strategy string `json:"strategy"`
		}

		if err := c.ReadJSON(&msg); err != nil {
			break
		}

		if msg.Type != "classify" || msg.Report == "" {
			h.sendError(c, "expected {\"type\":\"classify\",\"report\":...}")
			continue
		}

		strategy := h.defaultStr
		if msg.Strategy != "" {
			parsed, err := classifier.ParseStrategy(msg.Strategy)
			if err != nil {
				h.sendError(c, err.Error())
				continue
			}
			strategy = parsed
		}

		if err := h.streamClassification(c, msg.Report, strategy); err != nil {
			logger.Error("Failed to stream classification", zap.Error(err))
			h.sendError(c, err.Error())
		}
	}
}

func (h *WebSocketHandler) streamClassification(c *websocket.Conn, report string, strategy classifier.Strategy) error {
	ctx := context.Background()

	h.send(c, "status", "classifying")

	outcome, err := h.classifier.ClassifyStream(ctx, report, strategy, func(chunk string) {
		h.send(c, "chunk", chunk)
	})
	if err != nil {
		return err
	}

	return c.WriteJSON(map[string]interface{}{
		"type":      "complete",
		"verdict":   outcome.Verdict,
		"strategy":  string(outcome.Strategy),
		"escalated": outcome.Escalated,
		"retrieved": candidateViews(outcome.Retrieved),
	})
}

func (h *WebSocketHandler) send(c *websocket.Conn, msgType, content string) {
	c.WriteJSON(map[string]interface{}{
		"type":    msgType,
		"content": content,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	})
}
