package http

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/bnema/vodpipe/internal/domain"
	"github.com/bnema/vodpipe/internal/service"
	"github.com/bnema/vodpipe/internal/streaming"
)

const msgTranscodePending = "video is being transcoded, try again later"

type StreamHandlers struct {
	playbackSvc PlaybackService
	streamer    *streaming.Streamer
}

func NewStreamHandlers(playbackSvc PlaybackService, streamer *streaming.Streamer) *StreamHandlers {
	return &StreamHandlers{
		playbackSvc: playbackSvc,
		streamer:    streamer,
	}
}

func (h *StreamHandlers) Movie() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mediaID, ok := pathID(w, r, "media_id")
		if !ok {
			return
		}
		p, err := h.playbackSvc.ResolveMovie(r.Context(), mediaID)
		h.serve(w, r, p, err)
	}
}

func (h *StreamHandlers) Episode() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mediaID, ok := pathID(w, r, "media_id")
		if !ok {
			return
		}
		episodeID, ok := pathID(w, r, "episode_id")
		if !ok {
			return
		}
		p, err := h.playbackSvc.ResolveEpisode(r.Context(), mediaID, episodeID)
		h.serve(w, r, p, err)
	}
}

func (h *StreamHandlers) serve(w http.ResponseWriter, r *http.Request, p *service.Playable, err error) {
	if errors.Is(err, domain.ErrTranscodePending) {
		w.Header().Set("Retry-After", "30")
		writeMessage(w, http.StatusNotFound, msgTranscodePending)
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.streamer.ServeFile(w, r, p.Path)
}

func (h *StreamHandlers) Manifest() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mediaID, ok := pathID(w, r, "media_id")
		if !ok {
			return
		}
		h.streamer.ServeManifest(w, r, mediaID)
	}
}

func (h *StreamHandlers) Segment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mediaID, ok := pathID(w, r, "media_id")
		if !ok {
			return
		}
		h.streamer.ServeSegment(w, r, mediaID, mux.Vars(r)["segment"])
	}
}

func (h *StreamHandlers) Info() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mediaID, ok := pathID(w, r, "media_id")
		if !ok {
			return
		}
		info, err := h.playbackSvc.StreamInfo(r.Context(), mediaID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, info)
	}
}
