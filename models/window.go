package models

// Window ist eine zusammenhängende, nicht überlappende Zeitpartition des
// Harvests, begrenzt über producedDate. Leere Grenzen bedeuten: keine
// Zeiteinschränkung (kompletter Bestand).
type Window struct {
	Start string
	End   string
}

// Bounded meldet, ob das Fenster ein Datumsfilter trägt.
func (w Window) Bounded() bool {
	return w.Start != "" && w.End != ""
}

// Label liefert den Fensterbezeichner für Blob-Schlüssel und Logs.
func (w Window) Label() string {
	if !w.Bounded() {
		return "all_years"
	}
	return w.Start + "_" + w.End
}
