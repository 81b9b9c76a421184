package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/born-ml/gradcam/internal/errs"
	"github.com/born-ml/gradcam/internal/explain"
	"github.com/born-ml/gradcam/internal/model"
)

const maxBodyBytes = 1 << 20

// ExplainRequest is the /api/explain body.
type ExplainRequest struct {
	ImagePath string `json:"image_path"`
	Group     string `json:"group,omitempty"`
	Target    string `json:"target,omitempty"` // "ai", "human", "0" or "1"
}

// ExplainResponse is the /api/explain reply.
type ExplainResponse struct {
	Classification model.Label `json:"classification"`
	Target         model.Label `json:"target"`
	OutputPath     string      `json:"output_path"`
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	var body ExplainRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		respondError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if body.ImagePath == "" {
		respondError(w, "image_path is required", http.StatusBadRequest)
		return
	}

	req := explain.Request{ImagePath: body.ImagePath, Group: body.Group}
	if body.Target != "" {
		target, err := model.ParseLabel(body.Target)
		if err != nil {
			respondError(w, err.Error(), http.StatusBadRequest)
			return
		}
		req.Target = &target
	}

	res, err := s.explainer.Explain(req)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("explain failed",
				zap.String("request_id", RequestID(r.Context())),
				zap.String("kind", errs.KindOf(err).String()),
				zap.Error(err))
		}
		respondError(w, err.Error(), status)
		return
	}

	respondJSON(w, ExplainResponse{
		Classification: res.Class,
		Target:         res.Target,
		OutputPath:     res.OutputPath,
	}, http.StatusOK)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(s.outputDir)
	if errors.Is(err, fs.ErrNotExist) {
		respondMessage(w, "Output directory does not exist")
		return
	}
	if err != nil {
		respondError(w, fmt.Sprintf("Error clearing output directory: %v", err), http.StatusInternalServerError)
		return
	}

	removed := 0
	for _, e := range entries {
		if !e.Type().IsRegular() && e.Type()&fs.ModeSymlink == 0 {
			continue
		}
		if err := os.Remove(filepath.Join(s.outputDir, e.Name())); err != nil {
			respondError(w, fmt.Sprintf("Error clearing output directory: %v", err), http.StatusInternalServerError)
			return
		}
		removed++
	}

	s.logger.Info("output cleared",
		zap.String("request_id", RequestID(r.Context())),
		zap.Int("removed", removed))
	respondMessage(w, "Output directory cleared")
}

func (s *Server) handleDeviceData(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil || empty(v) {
		respondError(w, "Missing JSON data", http.StatusBadRequest)
		return
	}

	if err := s.events.Append(raw); err != nil {
		respondError(w, err.Error(), statusFor(err))
		return
	}
	respondMessage(w, "Device data stored successfully")
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// empty reports JSON values that carry no data.
func empty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case map[string]any:
		return len(t) == 0
	case []any:
		return len(t) == 0
	case string:
		return t == ""
	case bool:
		return !t
	case float64:
		return t == 0
	}
	return false
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondMessage(w http.ResponseWriter, message string) {
	respondJSON(w, map[string]string{"message": message}, http.StatusOK)
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, map[string]string{"error": message}, status)
}
