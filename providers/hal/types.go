package hal

// Notice ist ein roher Datensatz aus der HAL-API. Das Schema ist pro Feld
// optional, Typen variieren zwischen Datensätzen; deshalb bleibt der Datensatz
// eine generische Map und wird erst beim Parsen typisiert.
type Notice map[string]any

// SearchResponse ist die Top-Level-Struktur der Antworten von /search und /ref.
type SearchResponse struct {
	Response struct {
		NumFound int      `json:"numFound"`
		Docs     []Notice `json:"docs"`
	} `json:"response"`
	NextCursorMark string `json:"nextCursorMark"`
}

// Page ist eine Seite roher Datensätze aus einer Cursor-Paginierung.
type Page struct {
	Docs []Notice
	// NumFound ist die serverseitig gemeldete Gesamttrefferzahl. Nur
	// informativ, nicht für die Schleifensteuerung.
	NumFound int
	// Cursor ist der Cursor, mit dem diese Seite angefragt wurde.
	Cursor string
}

// Referenztypen des AuréHAL-Katalogs.
const (
	RefAuthor    = "author"
	RefStructure = "structure"
)
