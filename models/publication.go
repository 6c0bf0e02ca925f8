package models

// ExternalID ist ein externer Identifikator einer Publikation.
type ExternalID struct {
	IDType  string `json:"id_type"`
	IDValue string `json:"id_value"`
}

// Abstract kapselt einen Abstract-Text.
type Abstract struct {
	Abstract string `json:"abstract"`
}

// Keyword kapselt ein einzelnes Schlagwort.
type Keyword struct {
	Keyword string `json:"keyword"`
}

// Classification ist ein Code/Label-Paar der HAL-Fachklassifikation.
type Classification struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// Grant ist eine Förderung: entweder ein generischer Funding-String oder ein
// strukturierter Eintrag mit Projektreferenz und Agentur.
type Grant struct {
	Grant   string `json:"grant,omitempty"`
	GrantID string `json:"grantid,omitempty"`
	Agency  string `json:"agency,omitempty"`
	Country string `json:"country,omitempty"`
}

// OaLocation ist eine gefundene frei lesbare Kopie einer Publikation.
type OaLocation struct {
	URL                   string `json:"url,omitempty"`
	RepositoryInstitution string `json:"repository_institution,omitempty"`
	License               string `json:"license,omitempty"`
	HostType              string `json:"host_type,omitempty"`
}

// OaDetails ist die Open-Access-Beobachtung eines einzelnen Snapshots.
// HostType, Colors und Locations sind nur gesetzt, wenn IsOa true ist.
type OaDetails struct {
	IsOa                            bool         `json:"is_oa"`
	SnapshotDate                    string       `json:"snapshot_date"`
	ObservationDate                 string       `json:"observation_date"`
	OaHostType                      string       `json:"oa_host_type,omitempty"`
	OaColors                        []string     `json:"oa_colors,omitempty"`
	OaColorsWithPriorityToPublisher []string     `json:"oa_colors_with_priority_to_publisher,omitempty"`
	OaLocations                     []OaLocation `json:"oa_locations,omitempty"`
}

// Publication ist der kanonische, angereicherte Publikationsdatensatz, wie er
// in den Object Storage und den Dokumentenspeicher geschrieben wird.
type Publication struct {
	Sources           []string             `json:"sources"`
	Doi               string               `json:"doi,omitempty"`
	ExternalIDs       []ExternalID         `json:"external_ids,omitempty"`
	HalID             string               `json:"hal_id,omitempty"`
	Title             string               `json:"title,omitempty"`
	Abstract          []Abstract           `json:"abstract,omitempty"`
	Affiliations      []Affiliation        `json:"affiliations,omitempty"`
	DetectedCountries []string             `json:"detected_countries,omitempty"`
	Genre             string               `json:"genre,omitempty"`
	Authors           []Author             `json:"authors,omitempty"`
	PublishedDate     string               `json:"published_date,omitempty"`
	Year              string               `json:"year,omitempty"`
	Publisher         string               `json:"publisher,omitempty"`
	JournalIssns      string               `json:"journal_issns,omitempty"`
	Keywords          []Keyword            `json:"keywords,omitempty"`
	HalClassification []Classification     `json:"hal_classification,omitempty"`
	Grants            []Grant              `json:"grants,omitempty"`
	HasGrant          bool                 `json:"has_grant"`
	OaDetails         map[string]OaDetails `json:"oa_details"`
	TitleFirstAuthor  string               `json:"title_first_author,omitempty"`
}

// OaRecord ist der pro Publikation in den Dokumentenspeicher geladene
// Auszug: hal_id plus die Open-Access-Beobachtungen.
type OaRecord struct {
	HalID     string               `json:"hal_id"`
	OaDetails map[string]OaDetails `json:"oa_details"`
}
