package cell

import (
	"net/http"
	"time"

	"github.com/docxology/cellsql/internal/browsable"
	"github.com/docxology/cellsql/internal/httpx"
)

// InfoPath answers with the cell identity.
const InfoPath = "/info"

// Info is the /info payload.
type Info struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

// InfoHandler is the daemon's base handler for a cell. It owns GET /info
// and answers everything else with the plain 404.
func InfoHandler(c *Cell) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != InfoPath || r.Method != http.MethodGet {
			browsable.NotFound(w)
			return
		}
		httpx.JSON(w, http.StatusOK, Info{ID: c.id, Name: c.name, CreatedAt: c.createdAt.Format(time.RFC3339)})
	})
}
