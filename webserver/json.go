package webserver

import (
	"encoding/json"
	"net/http"

	"coachmastery/localization"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// requestLanguage resolves the response language from an explicit
// query parameter, falling back to the Accept-Language header.
func requestLanguage(r *http.Request) localization.Language {
	if raw := r.URL.Query().Get("language"); raw != "" {
		return localization.Resolve(raw)
	}
	return localization.Resolve(r.Header.Get("Accept-Language"))
}
