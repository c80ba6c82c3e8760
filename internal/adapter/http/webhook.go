package http

import (
	"encoding/json"
	"net/http"

	"github.com/bnema/vodpipe/internal/infrastructure/logger"
)

// DownloadCompleteRequest is what the download client posts when a torrent
// finishes, e.g. {"name":"%N","hash":"%I","save_path":"%D"}.
type DownloadCompleteRequest struct {
	Name     string `json:"name"`
	Hash     string `json:"hash,omitempty"`
	Category string `json:"category,omitempty"`
	SavePath string `json:"save_path"`
}

func (s *Server) DownloadComplete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

		var req DownloadCompleteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeMessage(w, http.StatusBadRequest, "invalid request body")
			return
		}
		logger.Info.Printf("webhook: download complete %q (%s)",
			logger.SanitizeForLog(req.Name), logger.SanitizeForLog(req.Hash))

		result, err := s.intake.HandleDownload(r.Context(), req.Name, req.SavePath)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}
