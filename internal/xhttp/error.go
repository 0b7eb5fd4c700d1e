package xhttp

import (
	"net/http"
)

// Error writes a JSON body carrying only the status text, so nothing internal leaks.
func Error(w http.ResponseWriter, status int) {
	WriteJSON(w, status, map[string]string{"error": http.StatusText(status)})
}
