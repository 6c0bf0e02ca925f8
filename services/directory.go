package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/biter777/countries"
	"go.uber.org/zap"

	"hal-feed/config"
	"hal-feed/models"
	"hal-feed/providers/hal"
	"hal-feed/storage"
)

// Directories bündelt die beiden pro Harvest-Zyklus einmal gebauten
// Referenzverzeichnisse. Beide sind nach dem Bau nur noch lesend geteilt.
type Directories struct {
	Authors    map[string]*models.Author
	Structures map[string]*models.Affiliation
}

// personIDs sind die aus der externen Quelle nachgetragenen Identifikatoren
// einer Person, indiziert über ihre lokale id_hal_s.
type personIDs struct {
	idref string
	orcid string
}

// DirectoryService baut die AuréHAL-Verzeichnisse: für jede rohe Entität
// werden primäre Docid und alle Alias-Docids eingesammelt, die Entität genau
// einmal geparst und unter jeder Docid derselbe geparste Eintrag abgelegt.
type DirectoryService struct {
	Config  *config.Config
	Fetcher *hal.Fetcher
	Store   ObjectStore
	// Misc liefert die optionale externe Personen-ID-Anreicherung; nil, wenn
	// keine konfiguriert ist.
	Misc   ObjectStore
	Logger *zap.Logger
}

// NewDirectoryService erstellt einen neuen DirectoryService.
func NewDirectoryService(cfg *config.Config, fetcher *hal.Fetcher, store, misc ObjectStore, logger *zap.Logger) *DirectoryService {
	return &DirectoryService{Config: cfg, Fetcher: fetcher, Store: store, Misc: misc, Logger: logger}
}

// BuildAuthors harvestet den Autoren-Referenzkatalog, persistiert Rohdaten,
// geparste Liste und Docid-Verzeichnis und liefert das Verzeichnis zurück.
func (s *DirectoryService) BuildAuthors(ctx context.Context, collection string) (map[string]*models.Author, error) {
	extIDs := s.loadPersonIDs(ctx)

	docs, err := s.harvestRef(ctx, hal.RefAuthor)
	if err != nil {
		return nil, err
	}
	if err := s.saveBlob(ctx, rawRefKey(collection, hal.RefAuthor), docs); err != nil {
		return nil, err
	}

	var parsed []*models.Author
	dict := map[string]*models.Author{}
	for _, doc := range docs {
		author := s.parseAuthor(doc, extIDs)
		parsed = append(parsed, author)
		for _, docid := range aliasDocids(doc) {
			dict[docid] = author
		}
	}
	s.Logger.Info("Autoren-Verzeichnis gebaut",
		zap.Int("entities", len(parsed)), zap.Int("docids", len(dict)))

	if err := s.saveBlob(ctx, parsedRefKey(collection, hal.RefAuthor), parsed); err != nil {
		return nil, err
	}
	if err := s.saveBlob(ctx, dictRefKey(collection, hal.RefAuthor), dict); err != nil {
		return nil, err
	}
	return dict, nil
}

// BuildStructures harvestet den Struktur-Referenzkatalog analog zu BuildAuthors.
func (s *DirectoryService) BuildStructures(ctx context.Context, collection string) (map[string]*models.Affiliation, error) {
	docs, err := s.harvestRef(ctx, hal.RefStructure)
	if err != nil {
		return nil, err
	}
	if err := s.saveBlob(ctx, rawRefKey(collection, hal.RefStructure), docs); err != nil {
		return nil, err
	}

	var parsed []*models.Affiliation
	dict := map[string]*models.Affiliation{}
	for _, doc := range docs {
		aff := s.parseStructure(doc)
		parsed = append(parsed, aff)
		for _, docid := range aliasDocids(doc) {
			dict[docid] = aff
		}
	}
	s.Logger.Info("Struktur-Verzeichnis gebaut",
		zap.Int("entities", len(parsed)), zap.Int("docids", len(dict)))

	if err := s.saveBlob(ctx, parsedRefKey(collection, hal.RefStructure), parsed); err != nil {
		return nil, err
	}
	if err := s.saveBlob(ctx, dictRefKey(collection, hal.RefStructure), dict); err != nil {
		return nil, err
	}
	return dict, nil
}

// LoadAuthors lädt ein früher persistiertes Autoren-Verzeichnis aus dem
// Object Storage, ohne neu zu harvesten.
func (s *DirectoryService) LoadAuthors(ctx context.Context, collection string) (map[string]*models.Author, error) {
	var dict map[string]*models.Author
	if err := s.loadBlob(ctx, dictRefKey(collection, hal.RefAuthor), &dict); err != nil {
		return nil, err
	}
	return dict, nil
}

// LoadStructures lädt ein früher persistiertes Struktur-Verzeichnis.
func (s *DirectoryService) LoadStructures(ctx context.Context, collection string) (map[string]*models.Affiliation, error) {
	var dict map[string]*models.Affiliation
	if err := s.loadBlob(ctx, dictRefKey(collection, hal.RefStructure), &dict); err != nil {
		return nil, err
	}
	return dict, nil
}

func (s *DirectoryService) harvestRef(ctx context.Context, refType string) ([]hal.Notice, error) {
	var docs []hal.Notice
	err := s.Fetcher.FetchRef(ctx, refType, func(page hal.Page) error {
		docs = append(docs, page.Docs...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("aurehal %s: %w", refType, err)
	}
	return docs, nil
}

// parseAuthor parst einen rohen Autoren-Eintrag. Explizite Identifikator-
// Felder haben Vorrang; die externe Anreicherung füllt nur Lücken.
func (s *DirectoryService) parseAuthor(doc hal.Notice, extIDs map[string]personIDs) *models.Author {
	author := &models.Author{HalDocid: idString(doc["docid"])}

	if v, ok := fieldString(doc["firstName_s"]); ok {
		author.FirstName = strings.TrimSpace(v)
	}
	if v, ok := fieldString(doc["lastName_s"]); ok {
		author.LastName = strings.TrimSpace(v)
	}
	if author.FirstName != "" && author.LastName != "" {
		author.FullName = author.FirstName + " " + author.LastName
	} else if v, ok := fieldString(doc["fullName_s"]); ok {
		author.FullName = v
	}

	if n, ok := doc["idHal_i"].(float64); ok && n > 0 {
		author.IDHalI = idString(n)
	}
	if v, ok := fieldString(doc["idHal_s"]); ok {
		author.IDHalS = v
	}
	if v, ok := fieldString(doc["emailDomain_s"]); ok {
		author.EmailDomain = strings.TrimSpace(v)
	}
	if v, ok := firstString(doc["idrefId_s"]); ok {
		author.Idref = strings.TrimSpace(v)
	}
	if v, ok := firstString(doc["orcidId_s"]); ok {
		author.Orcid = strings.TrimSpace(v)
	}

	if ids, ok := extIDs[author.IDHalS]; ok && author.IDHalS != "" {
		if author.Idref == "" {
			author.Idref = ids.idref
		}
		if author.Orcid == "" {
			author.Orcid = ids.orcid
		}
	}
	return author
}

// strukturNameFields sind die Namensbestandteile einer Struktur in fester
// Reihenfolge.
var structureNameFields = []string{"name_s", "code_s", "acronym_s", "parentAcronym_s", "parentName_s"}

// parseStructure parst einen rohen Struktur-Eintrag zu einer Affiliation mit
// zusammengesetztem Anzeigenamen und aufgelöstem Ländernamen.
func (s *DirectoryService) parseStructure(doc hal.Notice) *models.Affiliation {
	aff := &models.Affiliation{HalDocid: idString(doc["docid"])}

	country := ""
	if code, ok := fieldString(doc["country_s"]); ok {
		if cc := countries.ByName(strings.ToUpper(code)); cc != countries.Unknown {
			country = cc.String()
		}
		aff.DetectedCountries = []string{code}
	}

	name := ""
	for _, field := range structureNameFields {
		if v, ok := fieldString(doc[field]); ok {
			name += v + ", "
		} else if parts := stringList(doc[field]); len(parts) > 0 {
			name += strings.Join(parts, ", ") + ", "
		}
	}
	if v, ok := fieldString(doc["address_s"]); ok {
		name += v + ", "
	}
	if country != "" {
		name += country
		aff.Country = country
	}
	aff.Name = name

	if ids := stringList(doc["rnsr_s"]); len(ids) > 0 {
		if len(ids) > 1 {
			s.Logger.Warn("Struktur mit mehreren RNSR-Ids, nehme die erste",
				zap.String("docid", aff.HalDocid), zap.Strings("rnsr", ids))
		}
		aff.RNSR = ids[0]
	}
	if ids := stringList(doc["ror_s"]); len(ids) > 0 {
		if len(ids) > 1 {
			s.Logger.Warn("Struktur mit mehreren ROR-Ids, nehme die erste",
				zap.String("docid", aff.HalDocid), zap.Strings("ror", ids))
		}
		aff.ROR = ids[0]
	}
	return aff
}

// aliasDocids sammelt primäre Docid und alle Alias-Docids einer rohen
// Entität, dedupliziert in stabiler Reihenfolge.
func aliasDocids(doc hal.Notice) []string {
	ids := []string{}
	seen := map[string]bool{}
	add := func(v any) {
		if s := idString(v); s != "" && !seen[s] {
			seen[s] = true
			ids = append(ids, s)
		}
	}
	add(doc["docid"])
	if aliases, ok := fieldList(doc["aliasDocid_i"]); ok {
		for _, a := range aliases {
			add(a)
		}
	}
	return ids
}

// loadPersonIDs lädt die optionale zeilenweise JSON-Quelle mit externen
// Personen-Identifikatoren. Fehler sind nicht fatal: ohne die Quelle werden
// schlicht keine Lücken gefüllt.
func (s *DirectoryService) loadPersonIDs(ctx context.Context) map[string]personIDs {
	if s.Misc == nil || s.Config.PersonIDsKey == "" {
		return nil
	}
	data, err := s.Misc.Get(ctx, s.Config.PersonIDsKey)
	if err != nil {
		s.Logger.Warn("Externe Personen-IDs nicht ladbar, fahre ohne fort",
			zap.String("key", s.Config.PersonIDsKey), zap.Error(err))
		return nil
	}

	index := map[string]personIDs{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var entry models.ExternalPersonIDs
		if err := json.Unmarshal(line, &entry); err != nil {
			s.Logger.Debug("Personen-ID-Zeile übersprungen", zap.Error(err))
			continue
		}
		idref := strings.TrimPrefix(entry.ID, "idref")
		ids := personIDs{}
		if idref != entry.ID {
			ids.idref = idref
		}
		idHalS := ""
		for _, ext := range entry.ExternalIDs {
			switch ext.Type {
			case "id_hal_s":
				idHalS = ext.ID
			case "orcid":
				ids.orcid = ext.ID
			}
		}
		if idHalS != "" {
			index[idHalS] = ids
		}
	}
	s.Logger.Info("Externe Personen-IDs geladen", zap.Int("count", len(index)))
	return index
}

func (s *DirectoryService) saveBlob(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	gz, err := storage.Gzip(data)
	if err != nil {
		return err
	}
	return s.Store.Put(ctx, key, gz)
}

func (s *DirectoryService) loadBlob(ctx context.Context, key string, v any) error {
	gz, err := s.Store.Get(ctx, key)
	if err != nil {
		return err
	}
	data, err := storage.Gunzip(gz)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func rawRefKey(collection, refType string) string {
	return fmt.Sprintf("%s/aurehal_raw_%s.json.gz", collection, refType)
}

func parsedRefKey(collection, refType string) string {
	return fmt.Sprintf("%s/aurehal_%s.json.gz", collection, refType)
}

func dictRefKey(collection, refType string) string {
	return fmt.Sprintf("%s/aurehal_%s_dict.json.gz", collection, refType)
}
