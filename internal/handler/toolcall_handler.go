package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/plincohq/onboarding-service/internal/domain"
	"github.com/plincohq/onboarding-service/internal/services/project"
	"github.com/plincohq/onboarding-service/pkg/logger"
	"go.uber.org/zap"
)

// ToolCallHandler serves the voice assistant's tool-call webhook. The
// assistant invokes server tools mid-call; results travel back in the
// provider's result envelope so the assistant can speak them.
type ToolCallHandler struct {
	projectService *project.Service
}

// NewToolCallHandler creates a tool call handler
func NewToolCallHandler(projectService *project.Service) *ToolCallHandler {
	return &ToolCallHandler{
		projectService: projectService,
	}
}

// toolCallRequest is the provider's webhook envelope. Only the first tool
// call in the message is served.
type toolCallRequest struct {
	Message struct {
		ToolCalls []struct {
			ID       string `json:"id"`
			Function struct {
				Name      string          `json:"name"`
				Arguments json.RawMessage `json:"arguments"`
			} `json:"function"`
		} `json:"toolCalls"`
	} `json:"message"`
}

type toolCallResult struct {
	ToolCallID string      `json:"toolCallId"`
	Result     interface{} `json:"result"`
}

type toolCallResponse struct {
	Results []toolCallResult `json:"results"`
}

// objectResult wraps a structured payload the assistant can read fields from
type objectResult struct {
	Type   string      `json:"type"`
	Object interface{} `json:"object"`
}

// HandleToolCall processes a tool invocation from the assistant.
func (h *ToolCallHandler) HandleToolCall(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	var req toolCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if len(req.Message.ToolCalls) == 0 {
		http.Error(w, "Missing tool call", http.StatusBadRequest)
		return
	}

	call := req.Message.ToolCalls[0]
	functionName := call.Function.Name
	toolCallID := call.ID
	if functionName == "" || toolCallID == "" {
		http.Error(w, "Missing function name or tool call id", http.StatusBadRequest)
		return
	}

	args := map[string]interface{}{}
	if len(call.Function.Arguments) > 0 {
		// The provider sends arguments either as an object or as a JSON
		// string containing one.
		if err := json.Unmarshal(call.Function.Arguments, &args); err != nil {
			var encoded string
			if err := json.Unmarshal(call.Function.Arguments, &encoded); err == nil {
				_ = json.Unmarshal([]byte(encoded), &args)
			}
		}
	}

	logger.Base().Info("tool call received",
		zap.String("function", functionName),
		zap.String("tool_call_id", toolCallID))

	switch functionName {
	case "create_project":
		h.handleCreateProject(w, r, toolCallID, args)
	default:
		writeToolCallError(w, toolCallID, fmt.Sprintf("unknown function: %s", functionName))
	}
}

func (h *ToolCallHandler) handleCreateProject(w http.ResponseWriter, r *http.Request, toolCallID string, args map[string]interface{}) {
	req, err := project.ParseArgs(args)
	if err != nil {
		writeToolCallError(w, toolCallID, err.Error())
		return
	}

	created, err := h.projectService.Create(r.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrNotFound) {
			writeToolCallError(w, toolCallID, err.Error())
			return
		}
		logger.Base().Error("project creation failed",
			zap.String("tool_call_id", toolCallID),
			zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeToolCallObject(w, toolCallID, map[string]interface{}{
		"projectId": created.ID,
		"title":     created.Title,
		"deadline":  created.Deadline,
		"status":    created.Status,
		"message":   "Project created successfully",
	})
}

func writeToolCallObject(w http.ResponseWriter, toolCallID string, object interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toolCallResponse{
		Results: []toolCallResult{{
			ToolCallID: toolCallID,
			Result:     objectResult{Type: "object", Object: object},
		}},
	})
}

func writeToolCallError(w http.ResponseWriter, toolCallID, message string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toolCallResponse{
		Results: []toolCallResult{{
			ToolCallID: toolCallID,
			Result:     fmt.Sprintf("Error: %s", message),
		}},
	})
}

// SetupToolCallRoutes sets up the assistant tool-call webhook routes
func (h *ToolCallHandler) SetupToolCallRoutes(router *mux.Router) {
	router.HandleFunc("/api/vapi/project", h.HandleToolCall).Methods("POST", "OPTIONS")

	logger.Base().Info("tool call routes registered")
}
