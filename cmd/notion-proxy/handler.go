package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pagegrove/notion-page-client/pkg/assembler"
	"github.com/pagegrove/notion-page-client/pkg/notionapi"
)

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// errorEnvelope is the failure payload of every route.
type errorEnvelope struct {
	Error string `json:"error"`
}

// pageHandler serves GET /v1/page/{pageID}. The page ID is validated before
// the assembly core runs; a per-request bearer token overrides the configured
// default.
func pageHandler(asm *assembler.Assembler, defaultToken string, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logger.With().
			Str("component", "http").
			Str("request_id", uuid.NewString()).
			Logger()

		pageID, err := notionapi.ParsePageID(r.PathValue("pageID"))
		if err != nil {
			reqLogger.Warn().Str("raw_id", r.PathValue("pageID")).Msg("Rejected unparseable page ID")
			writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: "invalid page id"})
			return
		}

		token := defaultToken
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			token = strings.TrimPrefix(auth, "Bearer ")
		}

		graph, err := asm.Assemble(r.Context(), pageID, token)
		if err != nil {
			status := http.StatusInternalServerError
			var classified *assembler.AssemblyError
			if errors.As(err, &classified) {
				status = classified.HTTPStatus()
			}
			reqLogger.Error().
				Err(err).
				Str("page_id", pageID).
				Int("status", status).
				Msg("Page request failed")
			writeJSON(w, status, errorEnvelope{Error: err.Error()})
			return
		}

		writeJSON(w, http.StatusOK, graph)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
