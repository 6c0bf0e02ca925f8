package models

// Author ist die kanonische, geparste Form eines AuréHAL-Autoren-Eintrags.
// Die Felder Affiliations, AuthorPosition und Role werden erst bei der
// Anreicherung einer Publikation auf einer Kopie gesetzt, niemals auf dem
// geteilten Verzeichnis-Eintrag selbst.
type Author struct {
	HalDocid    string `json:"hal_docid"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	FullName    string `json:"full_name,omitempty"`
	IDHalI      string `json:"id_hal_i,omitempty"`
	IDHalS      string `json:"id_hal_s,omitempty"`
	Idref       string `json:"idref,omitempty"`
	Orcid       string `json:"orcid,omitempty"`
	EmailDomain string `json:"email_domain,omitempty"`

	Affiliations   []Affiliation `json:"affiliations,omitempty"`
	AuthorPosition int           `json:"author_position,omitempty"`
	Role           string        `json:"role,omitempty"`
}

// Affiliation ist die kanonische, geparste Form einer AuréHAL-Struktur.
type Affiliation struct {
	HalDocid          string   `json:"hal_docid"`
	Name              string   `json:"name"`
	Country           string   `json:"country,omitempty"`
	DetectedCountries []string `json:"detected_countries,omitempty"`
	RNSR              string   `json:"rnsr,omitempty"`
	ROR               string   `json:"ror,omitempty"`
}

// Equal vergleicht zwei Affiliationen wertbasiert. Zwei Alias-Docids, die auf
// dieselbe reale Struktur zeigen, ergeben damit genau einen Eintrag in der
// Affiliationsliste einer Publikation.
func (a Affiliation) Equal(b Affiliation) bool {
	if a.HalDocid != b.HalDocid || a.Name != b.Name || a.Country != b.Country ||
		a.RNSR != b.RNSR || a.ROR != b.ROR {
		return false
	}
	if len(a.DetectedCountries) != len(b.DetectedCountries) {
		return false
	}
	for i := range a.DetectedCountries {
		if a.DetectedCountries[i] != b.DetectedCountries[i] {
			return false
		}
	}
	return true
}

// ExternalPersonIDs ist ein Eintrag der optionalen externen
// Personen-ID-Anreicherung (zeilenweises JSON, z.B. vip.jsonl).
type ExternalPersonIDs struct {
	ID          string             `json:"id"`
	ExternalIDs []ExternalPersonID `json:"externalIds"`
}

// ExternalPersonID ist ein einzelner externer Identifikator einer Person.
type ExternalPersonID struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}
