package services

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"hal-feed/models"
	"hal-feed/providers/hal"
)

const testSnapshot = "20231201"

// testDirectories baut kleine Referenzverzeichnisse: Struktur 100 mit Alias
// 101 auf denselben Eintrag, dazu zwei Autoren.
func testDirectories() Directories {
	labA := &models.Affiliation{
		HalDocid:          "100",
		Name:              "Lab A, Paris, France",
		Country:           "France",
		DetectedCountries: []string{"fr"},
		RNSR:              "200012345A",
	}
	labB := &models.Affiliation{
		HalDocid:          "200",
		Name:              "Lab B, Berlin, Germany",
		Country:           "Germany",
		DetectedCountries: []string{"de"},
	}
	return Directories{
		Authors: map[string]*models.Author{
			"7": {HalDocid: "7", FirstName: "Marie", LastName: "Curie", FullName: "Marie Curie", IDHalS: "marie-curie"},
			"8": {HalDocid: "8", FullName: "Pierre Curie"},
		},
		Structures: map[string]*models.Affiliation{
			"100": labA,
			"101": labA,
			"200": labB,
		},
	}
}

func TestParseNoticeMinimal(t *testing.T) {
	p := NewParser(zap.NewNop())
	dirs := testDirectories()

	pub := p.ParseNotice(hal.Notice{}, dirs.Authors, dirs.Structures, testSnapshot)

	assert.Equal(t, []string{"HAL"}, pub.Sources)
	assert.Empty(t, pub.Title)
	assert.Empty(t, pub.Authors)
	assert.False(t, pub.HasGrant)
	assert.Empty(t, pub.TitleFirstAuthor)

	require.Contains(t, pub.OaDetails, testSnapshot)
	details := pub.OaDetails[testSnapshot]
	assert.False(t, details.IsOa)
	assert.Equal(t, testSnapshot, details.SnapshotDate)
	assert.Equal(t, "2023Q4", details.ObservationDate)
	assert.Empty(t, details.OaColors)
	assert.Empty(t, details.OaLocations)
}

func TestParseNoticeIdentifiersAndTitle(t *testing.T) {
	p := NewParser(zap.NewNop())
	dirs := testDirectories()

	notice := hal.Notice{
		"doiId_s":        " 10.1234/ABC.5 ",
		"halId_s":        "hal-01234567",
		"title_s":        []any{"Radioactivité"},
		"subTitle_s":     []any{"une étude"},
		"abstract_s":     []any{" Texte. "},
		"journalIssn_s":  "1234-5678",
		"journalEissn_s": "8765-4321",
		"keyword_s":      []any{"physique", "radium"},
	}
	pub := p.ParseNotice(notice, dirs.Authors, dirs.Structures, testSnapshot)

	assert.Equal(t, "10.1234/abc.5", pub.Doi)
	assert.Equal(t, "hal-01234567", pub.HalID)
	assert.Equal(t, []models.ExternalID{{IDType: "hal_id", IDValue: "hal-01234567"}}, pub.ExternalIDs)
	assert.Equal(t, "Radioactivité : une étude", pub.Title)
	assert.Equal(t, []models.Abstract{{Abstract: "Texte."}}, pub.Abstract)
	assert.Equal(t, "1234-5678,8765-4321", pub.JournalIssns)
	assert.Equal(t, []models.Keyword{{Keyword: "physique"}, {Keyword: "radium"}}, pub.Keywords)
}

func TestParseNoticeGenre(t *testing.T) {
	p := NewParser(zap.NewNop())
	dirs := testDirectories()

	cases := []struct {
		docType string
		want    string
	}{
		{"ART", "journal-article"},
		{"COMM", "proceedings"},
		{"COUV", "book-chapter"},
		{"OUV", "book"},
		{"THESE", "thesis"},
		{"HDR", "thesis"},
		{"LECTURE", "lecture"},
	}
	for _, tc := range cases {
		t.Run(tc.docType, func(t *testing.T) {
			pub := p.ParseNotice(hal.Notice{"docType_s": tc.docType}, dirs.Authors, dirs.Structures, testSnapshot)
			assert.Equal(t, tc.want, pub.Genre)
		})
	}
}

func TestParseNoticeDatePriority(t *testing.T) {
	p := NewParser(zap.NewNop())
	dirs := testDirectories()

	cases := []struct {
		name     string
		notice   hal.Notice
		wantDate string
		wantYear string
	}{
		{
			name: "publikationsdatum gewinnt",
			notice: hal.Notice{
				"publicationDate_s": "2020-03-04",
				"producedDate_s":    "2019-01-01",
			},
			wantDate: "2020-03-04T00:00:00",
			wantYear: "2020",
		},
		{
			name: "kaputtes datum fällt durch",
			notice: hal.Notice{
				"publicationDate_s":  "irgendwann",
				"ePublicationDate_s": "2018-05",
			},
			wantDate: "2018-05-01T00:00:00",
			wantYear: "2018",
		},
		{
			name: "volles datum schlägt bloßes jahr höherer priorität",
			notice: hal.Notice{
				"publicationDate_s": "2005",
				"producedDate_s":    "2007-06-01",
			},
			wantDate: "2007-06-01T00:00:00",
			wantYear: "2007",
		},
		{
			name:     "bloßes jahr als letzte stufe",
			notice:   hal.Notice{"producedDate_s": "1999"},
			wantDate: "1999-01-01T00:00:00",
			wantYear: "1999",
		},
		{
			name:     "kein datum",
			notice:   hal.Notice{},
			wantDate: "",
			wantYear: "",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pub := p.ParseNotice(tc.notice, dirs.Authors, dirs.Structures, testSnapshot)
			assert.Equal(t, tc.wantDate, pub.PublishedDate)
			assert.Equal(t, tc.wantYear, pub.Year)
		})
	}
}

func TestParseNoticeAffiliationsAliasDedup(t *testing.T) {
	p := NewParser(zap.NewNop())
	dirs := testDirectories()

	// 100 und 101 sind Alias-Docids derselben Struktur, 999 ist unbekannt.
	notice := hal.Notice{
		"structId_i": []any{float64(100), float64(101), float64(200), float64(999)},
	}
	pub := p.ParseNotice(notice, dirs.Authors, dirs.Structures, testSnapshot)

	require.Len(t, pub.Affiliations, 2)
	assert.Equal(t, "Lab A, Paris, France", pub.Affiliations[0].Name)
	assert.Equal(t, "Lab B, Berlin, Germany", pub.Affiliations[1].Name)
	assert.Equal(t, []string{"fr", "de"}, pub.DetectedCountries)
}

func TestParseNoticeAuthors(t *testing.T) {
	p := NewParser(zap.NewNop())
	dirs := testDirectories()

	notice := hal.Notice{
		"authId_i": []any{float64(7), float64(999), float64(8)},
		"authIdHasStructure_fs": []any{
			"7_FacetSepMarie CurieJoinSep100_FacetSepLab A",
		},
	}
	pub := p.ParseNotice(notice, dirs.Authors, dirs.Structures, testSnapshot)

	// 999 fehlt im Verzeichnis, die Positionen zählen trotzdem über die rohe
	// Liste.
	require.Len(t, pub.Authors, 2)
	assert.Equal(t, "Marie Curie", pub.Authors[0].FullName)
	assert.Equal(t, 1, pub.Authors[0].AuthorPosition)
	require.Len(t, pub.Authors[0].Affiliations, 1)
	assert.Equal(t, "100", pub.Authors[0].Affiliations[0].HalDocid)
	assert.Equal(t, "Pierre Curie", pub.Authors[1].FullName)
	assert.Equal(t, 3, pub.Authors[1].AuthorPosition)
	assert.Empty(t, pub.Authors[1].Affiliations)

	// Die geteilten Verzeichniseinträge bleiben unberührt.
	assert.Empty(t, dirs.Authors["7"].Affiliations)
	assert.Zero(t, dirs.Authors["7"].AuthorPosition)
}

func TestParseNoticeRoleGuard(t *testing.T) {
	p := NewParser(zap.NewNop())
	dirs := testDirectories()

	// Drei Autoren-Ids, nur zwei Rollen: keine Rolle wird zugeordnet.
	mismatch := hal.Notice{
		"authId_i":      []any{float64(7), float64(8), float64(999)},
		"authQuality_s": []any{"aut", "crp"},
	}
	pub := p.ParseNotice(mismatch, dirs.Authors, dirs.Structures, testSnapshot)
	require.Len(t, pub.Authors, 2)
	assert.Empty(t, pub.Authors[0].Role)
	assert.Empty(t, pub.Authors[1].Role)

	aligned := hal.Notice{
		"authId_i":      []any{float64(7), float64(8)},
		"authQuality_s": []any{"aut", "crp"},
	}
	pub = p.ParseNotice(aligned, dirs.Authors, dirs.Structures, testSnapshot)
	require.Len(t, pub.Authors, 2)
	assert.Equal(t, "aut", pub.Authors[0].Role)
	assert.Equal(t, "crp", pub.Authors[1].Role)
}

func TestParseNoticeGrants(t *testing.T) {
	p := NewParser(zap.NewNop())
	dirs := testDirectories()

	notice := hal.Notice{
		"funding_s":                  []any{"Stiftung XY"},
		"anrProjectReference_s":      []any{"ANR-20-CE45-0001"},
		"europeanProjectReference_s": []any{"101000000"},
	}
	pub := p.ParseNotice(notice, dirs.Authors, dirs.Structures, testSnapshot)

	require.True(t, pub.HasGrant)
	require.Len(t, pub.Grants, 3)
	assert.Equal(t, models.Grant{Grant: "Stiftung XY"}, pub.Grants[0])
	assert.Equal(t, models.Grant{GrantID: "ANR-20-CE45-0001", Agency: "ANR", Country: "France"}, pub.Grants[1])
	assert.Equal(t, models.Grant{GrantID: "101000000", Agency: "Europe"}, pub.Grants[2])
}

func TestParseNoticeClassification(t *testing.T) {
	p := NewParser(zap.NewNop())
	dirs := testDirectories()

	notice := hal.Notice{
		"en_domainAllCodeLabel_fs": []any{"shsFacetSepHumanities", "ohne trenner"},
	}
	pub := p.ParseNotice(notice, dirs.Authors, dirs.Structures, testSnapshot)

	require.Len(t, pub.HalClassification, 1)
	assert.Equal(t, models.Classification{Code: "shs", Label: "Humanities"}, pub.HalClassification[0])
}

func TestParseNoticeOaClassification(t *testing.T) {
	p := NewParser(zap.NewNop())
	dirs := testDirectories()

	green := []string{"green"}
	greenOnly := []string{"green_only"}
	other := []string{"other"}

	cases := []struct {
		name        string
		notice      hal.Notice
		isOa        bool
		hostType    string
		colors      []string
		priority    []string
		institution string
		license     string
		url         string
	}{
		{
			name:   "geschlossen",
			notice: hal.Notice{},
		},
		{
			name: "volltext-datei",
			notice: hal.Notice{
				"fileMain_s": "https://hal.science/hal-01/document.pdf",
				"licence_s":  "cc-by",
			},
			isOa: true, hostType: "repository",
			colors: green, priority: greenOnly,
			institution: "HAL", license: "cc-by",
			url: "https://hal.science/hal-01/document.pdf",
		},
		{
			name: "datei schlägt externen link",
			notice: hal.Notice{
				"fileMain_s":   "https://hal.science/hal-02/document.pdf",
				"linkExtUrl_s": "https://arxiv.org/abs/1234",
				"linkExtId_s":  "arxiv",
			},
			isOa: true, hostType: "repository",
			colors: green, priority: greenOnly,
			institution: "HAL",
			url:         "https://hal.science/hal-02/document.pdf",
		},
		{
			name: "arxiv-link",
			notice: hal.Notice{
				"linkExtUrl_s": "https://arxiv.org/abs/1234",
				"linkExtId_s":  "ARXIV",
			},
			isOa: true, hostType: "repository",
			colors: green, priority: greenOnly,
			institution: "arXiv",
			url:         "https://arxiv.org/abs/1234",
		},
		{
			name: "pubmed-central-link",
			notice: hal.Notice{
				"linkExtUrl_s": "https://www.ncbi.nlm.nih.gov/pmc/articles/PMC1",
				"linkExtId_s":  "pubmedcentral",
			},
			isOa: true, hostType: "repository",
			colors: green, priority: greenOnly,
			institution: "PubMed Central",
			url:         "https://www.ncbi.nlm.nih.gov/pmc/articles/PMC1",
		},
		{
			name: "doi-link beim verlag",
			notice: hal.Notice{
				"linkExtUrl_s": "https://doi.org/10.1234/abc",
				"linkExtId_s":  "doi",
			},
			isOa: true, hostType: "publisher",
			colors: other, priority: other,
			institution: "doi",
			url:         "https://doi.org/10.1234/abc",
		},
		{
			name: "unbekannte link-quelle",
			notice: hal.Notice{
				"linkExtUrl_s": "https://figshare.com/articles/1",
				"linkExtId_s":  "figshare",
			},
			isOa: true, hostType: "",
			colors: other, priority: other,
			institution: "figshare",
			url:         "https://figshare.com/articles/1",
		},
		{
			name:   "nur open-access-flag",
			notice: hal.Notice{"openAccess_bool": true},
			isOa:   true, hostType: "",
			colors: other, priority: other,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pub := p.ParseNotice(tc.notice, dirs.Authors, dirs.Structures, testSnapshot)
			require.Contains(t, pub.OaDetails, testSnapshot)
			details := pub.OaDetails[testSnapshot]

			assert.Equal(t, tc.isOa, details.IsOa)
			assert.Equal(t, tc.hostType, details.OaHostType)
			assert.Equal(t, tc.colors, details.OaColors)
			assert.Equal(t, tc.priority, details.OaColorsWithPriorityToPublisher)

			if tc.url == "" {
				assert.Empty(t, details.OaLocations)
				return
			}
			require.Len(t, details.OaLocations, 1)
			loc := details.OaLocations[0]
			assert.Equal(t, tc.url, loc.URL)
			assert.Equal(t, tc.institution, loc.RepositoryInstitution)
			assert.Equal(t, tc.license, loc.License)
			assert.Equal(t, tc.hostType, loc.HostType)
		})
	}
}

func TestParseNoticeTitleFirstAuthor(t *testing.T) {
	p := NewParser(zap.NewNop())
	dirs := testDirectories()

	notice := hal.Notice{
		"title_s":  []any{"Étude de cas"},
		"authId_i": []any{float64(7)},
	}
	pub := p.ParseNotice(notice, dirs.Authors, dirs.Structures, testSnapshot)
	assert.Equal(t, "etude de cas;marie curie", pub.TitleFirstAuthor)
}

func TestParseNoticeIdempotent(t *testing.T) {
	p := NewParser(zap.NewNop())
	dirs := testDirectories()

	notice := hal.Notice{
		"halId_s":           "hal-07654321",
		"doiId_s":           "10.1/xyz",
		"title_s":           []any{"Titel"},
		"docType_s":         "ART",
		"publicationDate_s": "2021-02-03",
		"authId_i":          []any{float64(7), float64(8)},
		"authQuality_s":     []any{"aut", "aut"},
		"structId_i":        []any{float64(100)},
		"fileMain_s":        "https://hal.science/hal-07654321/document.pdf",
		"funding_s":         []any{"X"},
	}

	first := p.ParseNotice(notice, dirs.Authors, dirs.Structures, testSnapshot)
	second := p.ParseNotice(notice, dirs.Authors, dirs.Structures, testSnapshot)
	require.Equal(t, first, second)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestMillesime(t *testing.T) {
	cases := []struct {
		snapshot string
		want     string
	}{
		{"20190506", "2019"},
		{"20201231", "2020"},
		{"20210315", "2021Q1"},
		{"20210601", "2021Q2"},
		{"20210701", "2021Q3"},
		{"20211115", "2021Q4"},
		{"2022", "2022"},
		{"ab", "ab"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, millesime(tc.snapshot), "snapshot %s", tc.snapshot)
	}
}
