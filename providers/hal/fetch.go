package hal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"hal-feed/config"
	"hal-feed/models"
)

// initialCursor ist der Sentinel-Cursor für die erste Seite einer Paginierung.
const initialCursor = "*"

// FetchExhaustedError wird zurückgegeben, wenn alle Wiederholungsversuche für
// eine Seite aufgebraucht sind. Der Fehler ist fatal für das gesamte Fenster:
// Cursor-Paginierung ist sequenziell, eine Seite kann nicht übersprungen werden.
type FetchExhaustedError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *FetchExhaustedError) Error() string {
	return fmt.Sprintf("hal: %d Versuche für %s aufgebraucht: %v", e.Attempts, e.URL, e.Err)
}

func (e *FetchExhaustedError) Unwrap() error {
	return e.Err
}

// Fetcher kapselt den cursor-paginierten Zugriff auf die HAL-API.
type Fetcher struct {
	Config  *config.Config
	Logger  *zap.Logger
	client  *http.Client
	limiter *rate.Limiter
}

// NewFetcher erstellt einen neuen HAL-Fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		Config:  cfg,
		Logger:  logger,
		client:  &http.Client{Timeout: cfg.HalTimeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.HalRateLimit), 1),
	}
}

// FetchWindow streamt alle Seiten des Suchendpunkts für ein Zeitfenster.
// handle wird für jede nicht-leere Seite in Cursor-Reihenfolge aufgerufen;
// ein Fehler aus handle bricht die Paginierung ab. Die Paginierung endet,
// wenn der zurückgegebene Cursor identisch mit dem gerade verwendeten ist.
func (f *Fetcher) FetchWindow(ctx context.Context, window models.Window, handle func(Page) error) error {
	return f.paginate(ctx, window.Label(), func(cursor string) string {
		return f.buildSearchURL(window, cursor)
	}, handle)
}

// FetchRef streamt den kompletten AuréHAL-Referenzkatalog eines Typs
// (author oder structure), ohne Zeitpartitionierung.
func (f *Fetcher) FetchRef(ctx context.Context, refType string, handle func(Page) error) error {
	return f.paginate(ctx, "ref/"+refType, func(cursor string) string {
		return f.buildRefURL(refType, cursor)
	}, handle)
}

func (f *Fetcher) paginate(ctx context.Context, label string, buildURL func(cursor string) string, handle func(Page) error) error {
	log := f.Logger.With(zap.String("window", label))
	cursor := initialCursor
	first := true
	for {
		pageURL := buildURL(cursor)
		res, err := f.getPage(ctx, pageURL)
		if err != nil {
			return err
		}
		if first {
			log.Info("Starte Paginierung",
				zap.Int("num_found", res.Response.NumFound))
			first = false
		}
		if len(res.Response.Docs) > 0 {
			page := Page{
				Docs:     res.Response.Docs,
				NumFound: res.Response.NumFound,
				Cursor:   cursor,
			}
			if err := handle(page); err != nil {
				return err
			}
		}
		if res.NextCursorMark == cursor {
			log.Debug("Cursor unverändert, Paginierung beendet")
			return nil
		}
		cursor = res.NextCursorMark
	}
}

// getPage holt eine einzelne Seite mit begrenzten Wiederholungsversuchen und
// fester Wartezeit dazwischen. Transportfehler, Nicht-2xx-Status und kaputtes
// JSON zählen gleichermaßen gegen das Versuchsbudget.
func (f *Fetcher) getPage(ctx context.Context, pageURL string) (*SearchResponse, error) {
	tries := f.Config.HalRetryTries
	if tries < 1 {
		tries = 1
	}
	var lastErr error
	for attempt := 1; attempt <= tries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(f.Config.HalRetryDelay):
			}
		}
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		res, err := f.fetchOnce(ctx, pageURL)
		if err == nil {
			return res, nil
		}
		lastErr = err
		f.Logger.Warn("HAL-Anfrage fehlgeschlagen",
			zap.String("url", pageURL),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", tries),
			zap.Error(err))
	}
	return nil, &FetchExhaustedError{URL: pageURL, Attempts: tries, Err: lastErr}
}

func (f *Fetcher) fetchOnce(ctx context.Context, pageURL string) (*SearchResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("hal: status %d: %s", resp.StatusCode, string(body))
	}
	var res SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("hal: antwort kein gültiges JSON: %w", err)
	}
	return &res, nil
}

func (f *Fetcher) buildSearchURL(window models.Window, cursor string) string {
	params := url.Values{}
	params.Set("q", "*:*")
	params.Set("wt", "json")
	params.Set("fl", "*")
	if window.Bounded() {
		params.Set("fq", fmt.Sprintf("producedDate_tdate:[%s TO %s]", window.Start, window.End))
	}
	params.Set("sort", "docid asc")
	params.Set("rows", fmt.Sprintf("%d", f.Config.HalSearchRows))
	params.Set("cursorMark", cursor)
	return f.Config.HalBaseURL + "/search/?" + params.Encode()
}

func (f *Fetcher) buildRefURL(refType, cursor string) string {
	params := url.Values{}
	params.Set("q", "*:*")
	params.Set("wt", "json")
	params.Set("fl", "*")
	params.Set("sort", "docid asc")
	params.Set("rows", fmt.Sprintf("%d", f.Config.HalRefRows))
	params.Set("cursorMark", cursor)
	return f.Config.HalBaseURL + "/ref/" + refType + "/?" + params.Encode()
}
