package services

import (
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"hal-feed/models"
	"hal-feed/providers/hal"
)

// facet-Trenner der HAL-API für zusammengesetzte Felder.
const (
	facetSep = "FacetSep"
	joinSep  = "JoinSep"
)

// genreByDocType ist die feste Zuordnung von HAL-Dokumenttypen zu Genres.
// Nicht gelistete Codes werden kleingeschrieben durchgereicht.
var genreByDocType = map[string]string{
	"ART":         "journal-article",
	"COMM":        "proceedings",
	"POSTER":      "proceedings",
	"PROCEEDINGS": "proceedings",
	"OUV":         "book",
	"COUV":        "book-chapter",
	"THESE":       "thesis",
	"HDR":         "thesis",
}

// dateRule ist eine Zeile der Datums-Fallback-Tabelle: Felder in
// Prioritätsreihenfolge, erst mit vollständigem Datum, dann auch bloße Jahre.
type dateRule struct {
	field    string
	fullOnly bool
}

var dateRules = []dateRule{
	{"publicationDate_s", true},
	{"ePublicationDate_s", true},
	{"defenseDate_s", true},
	{"producedDate_s", true},
	{"publicationDate_s", false},
	{"ePublicationDate_s", false},
	{"defenseDate_s", false},
	{"producedDate_s", false},
}

var dateLayouts = []string{
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006-01",
	"2006",
}

// repositoryPatterns ist das feste Register bekannter Repository-Kennungen
// für externe Links. Die Reihenfolge entscheidet bei Mehrfachtreffern.
var repositoryPatterns = []struct {
	pattern string
	name    string
}{
	{"arxiv", "arXiv"},
	{"pubmedcentral", "PubMed Central"},
	{"biorxiv", "bioRxiv"},
}

// Parser wandelt rohe HAL-Notices in kanonische Publikationen um.
// ParseNotice ist eine reine Funktion über Notice, Verzeichnissen und
// Snapshot-Datum; der Logger dient ausschließlich Diagnosen zu übersprungenen
// Feldern und fehlenden Referenzen.
type Parser struct {
	Logger *zap.Logger
}

// NewParser erstellt einen neuen Parser.
func NewParser(logger *zap.Logger) *Parser {
	return &Parser{Logger: logger}
}

// ParseNotice erzeugt aus einer rohen Notice und den beiden
// AuréHAL-Verzeichnissen den angereicherten Publikationsdatensatz. Einzelne
// fehlerhafte Felder werden übersprungen, nie bricht der ganze Datensatz ab.
func (p *Parser) ParseNotice(notice hal.Notice, authors map[string]*models.Author, structures map[string]*models.Affiliation, snapshotDate string) models.Publication {
	res := models.Publication{Sources: []string{"HAL"}}

	if v, ok := fieldString(notice["doiId_s"]); ok {
		res.Doi = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := fieldString(notice["halId_s"]); ok {
		res.HalID = v
		res.ExternalIDs = []models.ExternalID{{IDType: "hal_id", IDValue: v}}
	}

	if v, ok := firstString(notice["title_s"]); ok {
		title := strings.TrimSpace(v)
		if sub, ok := firstString(notice["subTitle_s"]); ok && strings.TrimSpace(sub) != "" {
			title = title + " : " + strings.TrimSpace(sub)
		}
		if title != "" {
			res.Title = title
		}
	}
	if v, ok := firstString(notice["abstract_s"]); ok && strings.TrimSpace(v) != "" {
		res.Abstract = []models.Abstract{{Abstract: strings.TrimSpace(v)}}
	}

	p.parseAffiliations(notice, structures, &res)

	if v, ok := fieldString(notice["docType_s"]); ok {
		if genre, ok := genreByDocType[v]; ok {
			res.Genre = genre
		} else {
			res.Genre = strings.ToLower(v)
		}
	}

	p.parseAuthors(notice, authors, structures, &res)
	p.parseDate(notice, &res)

	if v, ok := fieldString(notice["journalPublisher_s"]); ok {
		res.Publisher = strings.TrimSpace(v)
	}
	var issns []string
	for _, field := range []string{"journalIssn_s", "journalEissn_s"} {
		if v, ok := fieldString(notice[field]); ok {
			issns = append(issns, strings.TrimSpace(v))
		}
	}
	if len(issns) > 0 {
		res.JournalIssns = strings.Join(issns, ",")
	}

	for _, k := range stringList(notice["keyword_s"]) {
		res.Keywords = append(res.Keywords, models.Keyword{Keyword: strings.TrimSpace(k)})
	}

	for _, c := range stringList(notice["en_domainAllCodeLabel_fs"]) {
		parts := strings.SplitN(c, facetSep, 2)
		if len(parts) != 2 {
			p.Logger.Debug("Klassifikations-Facette ohne Trenner übersprungen",
				zap.String("hal_id", res.HalID), zap.String("facet", c))
			continue
		}
		res.HalClassification = append(res.HalClassification,
			models.Classification{Code: parts[0], Label: parts[1]})
	}

	p.parseGrants(notice, &res)
	p.parseOa(notice, snapshotDate, &res)

	tfa := ""
	if res.Title != "" {
		tfa += strings.TrimSpace(Normalize(res.Title))
	}
	if len(res.Authors) > 0 && res.Authors[0].FullName != "" {
		tfa += ";" + Normalize(res.Authors[0].FullName)
	}
	if tfa != "" {
		res.TitleFirstAuthor = tfa
	}

	return res
}

// parseAffiliations löst die referenzierten Strukturen auf, dedupliziert
// wertbasiert (Alias-Docids kollabieren auf einen Eintrag) und sammelt die
// erkannten Ländercodes ein.
func (p *Parser) parseAffiliations(notice hal.Notice, structures map[string]*models.Affiliation, res *models.Publication) {
	ids, ok := fieldList(notice["structId_i"])
	if !ok {
		return
	}
	var affiliations []models.Affiliation
	for _, raw := range ids {
		structID := idString(raw)
		entry, ok := structures[structID]
		if !ok {
			p.Logger.Debug("Struktur nicht im AuréHAL-Verzeichnis",
				zap.String("hal_id", res.HalID), zap.String("struct_id", structID))
			continue
		}
		dup := false
		for _, existing := range affiliations {
			if existing.Equal(*entry) {
				dup = true
				break
			}
		}
		if !dup {
			affiliations = append(affiliations, *entry)
		}
	}
	if len(affiliations) > 0 {
		res.Affiliations = affiliations
	}

	seen := map[string]bool{}
	var countries []string
	for _, aff := range affiliations {
		for _, c := range aff.DetectedCountries {
			if !seen[c] {
				seen[c] = true
				countries = append(countries, c)
			}
		}
	}
	if len(countries) > 0 {
		res.DetectedCountries = countries
	}
}

// parseAuthors löst die Autorenliste auf. Affiliationen pro Autor kommen aus
// dem zusammengesetzten Facet-Feld; Rollen nur, wenn die Rollenliste exakt so
// lang ist wie die Autorenliste, sonst wären die Positionen nicht vertrauenswürdig.
func (p *Parser) parseAuthors(notice hal.Notice, authors map[string]*models.Author, structures map[string]*models.Affiliation, res *models.Publication) {
	authorAffiliations := map[string][]models.Affiliation{}
	if facets, ok := fieldList(notice["authIdHasStructure_fs"]); ok {
		for _, raw := range facets {
			facet, ok := raw.(string)
			if !ok {
				continue
			}
			parts := strings.SplitN(facet, joinSep, 2)
			if len(parts) != 2 {
				p.Logger.Debug("Autor-Struktur-Facette ohne Trenner übersprungen",
					zap.String("hal_id", res.HalID), zap.String("facet", facet))
				continue
			}
			authorID := strings.ReplaceAll(strings.SplitN(parts[0], facetSep, 2)[0], "_", "")
			structID := strings.ReplaceAll(strings.SplitN(parts[1], facetSep, 2)[0], "_", "")
			entry, ok := structures[structID]
			if !ok {
				p.Logger.Debug("Struktur aus Autoren-Facette nicht im Verzeichnis",
					zap.String("hal_id", res.HalID), zap.String("struct_id", structID))
				continue
			}
			authorAffiliations[authorID] = append(authorAffiliations[authorID], *entry)
		}
	}

	ids, ok := fieldList(notice["authId_i"])
	if !ok {
		return
	}
	rolesRaw, _ := fieldList(notice["authQuality_s"])
	useRoles := len(rolesRaw) == len(ids)

	var resolved []models.Author
	for i, raw := range ids {
		authorID := idString(raw)
		entry, ok := authors[authorID]
		if !ok {
			p.Logger.Debug("Autor nicht im AuréHAL-Verzeichnis",
				zap.String("hal_id", res.HalID), zap.String("author_id", authorID))
			continue
		}
		// Kopie: die geteilten Verzeichniseinträge werden nie mutiert.
		author := *entry
		if affs, ok := authorAffiliations[authorID]; ok {
			author.Affiliations = affs
		}
		author.AuthorPosition = i + 1
		if useRoles {
			if role, ok := rolesRaw[i].(string); ok {
				author.Role = role
			}
		}
		resolved = append(resolved, author)
	}
	if len(resolved) > 0 {
		res.Authors = resolved
	}
}

// parseDate wertet die Datums-Fallback-Tabelle von oben nach unten aus;
// der erste Treffer gewinnt, Parse-Fehler fallen zur nächsten Zeile durch.
func (p *Parser) parseDate(notice hal.Notice, res *models.Publication) {
	for _, rule := range dateRules {
		v, ok := fieldString(notice[rule.field])
		if !ok {
			continue
		}
		if rule.fullOnly && len(v) <= 4 {
			continue
		}
		t, err := parseHalDate(v)
		if err != nil {
			p.Logger.Debug("Datum nicht parsebar, nächstes Feld",
				zap.String("hal_id", res.HalID),
				zap.String("field", rule.field), zap.String("value", v))
			continue
		}
		res.PublishedDate = t.Format("2006-01-02T15:04:05")
		res.Year = res.PublishedDate[:4]
		return
	}
}

func parseHalDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func (p *Parser) parseGrants(notice hal.Notice, res *models.Publication) {
	var grants []models.Grant
	for _, g := range stringList(notice["funding_s"]) {
		grants = append(grants, models.Grant{Grant: g})
	}
	for _, g := range stringList(notice["anrProjectReference_s"]) {
		grants = append(grants, models.Grant{GrantID: g, Agency: "ANR", Country: "France"})
	}
	for _, g := range stringList(notice["europeanProjectReference_s"]) {
		grants = append(grants, models.Grant{GrantID: g, Agency: "Europe"})
	}
	if len(grants) > 0 {
		res.Grants = grants
		res.HasGrant = true
	}
}

// parseOa ist die Open-Access-Entscheidungstabelle: Volltext-Datei schlägt
// externen Link, der Link wird über das Repository-Register klassifiziert.
func (p *Parser) parseOa(notice hal.Notice, snapshotDate string, res *models.Publication) {
	fileMain, hasFile := fieldString(notice["fileMain_s"])
	linkExt, hasLink := fieldString(notice["linkExtUrl_s"])
	isOa := fieldBool(notice["openAccess_bool"]) || hasLink || hasFile

	details := models.OaDetails{
		IsOa:            isOa,
		SnapshotDate:    snapshotDate,
		ObservationDate: millesime(snapshotDate),
	}

	if isOa {
		hostType := ""
		var locations []models.OaLocation
		switch {
		case hasFile:
			hostType = "repository"
			loc := models.OaLocation{
				URL:                   fileMain,
				RepositoryInstitution: "HAL",
				HostType:              "repository",
			}
			if lic, ok := fieldString(notice["licence_s"]); ok {
				loc.License = lic
			}
			locations = append(locations, loc)
		case hasLink:
			source := ""
			if v, ok := fieldString(notice["linkExtId_s"]); ok {
				source = strings.ToLower(strings.TrimSpace(v))
			}
			repoName := ""
			for _, pat := range repositoryPatterns {
				if strings.Contains(source, pat.pattern) {
					hostType = "repository"
					repoName = pat.name
					break
				}
			}
			if hostType == "" && strings.Contains(source, "doi") {
				hostType = "publisher"
			}
			loc := models.OaLocation{URL: linkExt, HostType: hostType}
			if repoName != "" {
				loc.RepositoryInstitution = repoName
			} else if source != "" {
				loc.RepositoryInstitution = source
			}
			locations = append(locations, loc)
		}
		if hostType == "repository" {
			details.OaColors = []string{"green"}
			details.OaColorsWithPriorityToPublisher = []string{"green_only"}
		} else {
			details.OaColors = []string{"other"}
			details.OaColorsWithPriorityToPublisher = []string{"other"}
		}
		details.OaHostType = hostType
		details.OaLocations = locations
	}

	res.OaDetails = map[string]models.OaDetails{snapshotDate: details}
}

// millesime vergröbert ein Snapshot-Datum (YYYYMMDD) zur Beobachtungsperiode:
// Jahre vor 2021 auf das bloße Jahr, ab 2021 auf Jahr plus Quartal.
func millesime(snapshot string) string {
	if len(snapshot) < 4 {
		return snapshot
	}
	year := snapshot[:4]
	if year < "2021" {
		return year
	}
	if len(snapshot) < 6 {
		return year
	}
	month, err := strconv.Atoi(snapshot[4:6])
	if err != nil {
		return snapshot
	}
	switch {
	case month >= 1 && month <= 3:
		return year + "Q1"
	case month >= 4 && month <= 6:
		return year + "Q2"
	case month >= 7 && month <= 9:
		return year + "Q3"
	case month >= 10 && month <= 12:
		return year + "Q4"
	}
	return "unk"
}
