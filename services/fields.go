package services

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Hilfsfunktionen für den Umgang mit den spärlichen, pro Feld optionalen
// HAL-Notices: jedes Feld kann fehlen oder zwischen Datensätzen den Typ
// wechseln. Ein Feld mit unerwartetem Typ wird behandelt wie ein fehlendes.

// fieldString liefert ein Feld nur dann, wenn es ein String ist.
func fieldString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// firstString akzeptiert einen String oder eine Liste und liefert im
// Listenfall das erste String-Element.
func firstString(v any) (string, bool) {
	if s, ok := v.(string); ok {
		return s, true
	}
	if items, ok := v.([]any); ok {
		for _, item := range items {
			if s, ok := item.(string); ok {
				return s, true
			}
		}
	}
	return "", false
}

// fieldList liefert ein Feld nur dann, wenn es eine Liste ist.
func fieldList(v any) ([]any, bool) {
	items, ok := v.([]any)
	return items, ok
}

// stringList liefert die String-Elemente eines Listenfelds.
func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// fieldBool interpretiert ein Feld als Wahrheitswert; fehlende oder fremde
// Typen gelten als false.
func fieldBool(v any) bool {
	b, ok := v.(bool)
	return ok && b
}

// idString kanonisiert einen Identifikator, der als String, JSON-Zahl oder
// decodierte Gleitkommazahl ankommen kann.
func idString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return ""
	}
}
