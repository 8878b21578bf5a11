package webutil

import (
	"encoding/json"
	"log"
	"net/http"
)

func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, map[string]string{"error": message})
}

// RespondWithJSON writes payload as the JSON response body. A nil
// payload is written as an empty object, never an empty body.
func RespondWithJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set(HeaderContentType, ContentTypeJSONUTF8)

	if payload == nil {
		payload = struct{}{}
	}
	response, err := json.Marshal(payload)
	if err != nil {
		log.Printf("ERROR: Failed to marshal JSON response: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Internal Server Error"}`))
		return
	}

	w.WriteHeader(status)
	_, _ = w.Write(response)
}
