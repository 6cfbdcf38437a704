package backend

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/pricofy/translation-gateway/internal/domain"
)

const urbanURL = "https://api.urbandictionary.com/v0/define"

// UrbanAppField is the API key found in the mobile site scripts.
const UrbanAppField = "udAppId"

// urbanMaxDefinitions bounds how many definitions are kept.
const urbanMaxDefinitions = 5

// Urban is Urban Dictionary. It has no translation; its primary result is a
// dictionary result with the definitions of the English term.
type Urban struct{}

func (Urban) ID() string { return "urban" }

func (Urban) BuildRequest(q Query) (domain.WireRequest, error) {
	if !q.Auto() && baseOf(q.Source) != "en" {
		return domain.WireRequest{}, unsupported(q, "urban")
	}

	v := url.Values{}
	v.Set("term", strings.TrimSpace(q.Text))
	if key := q.Credential.Field(UrbanAppField); key != "" {
		v.Set("key", key)
	}
	return domain.WireRequest{
		URL:    urbanURL + "?" + v.Encode(),
		Method: http.MethodGet,
	}, nil
}

func (Urban) ParseResponse(raw domain.RawResponse, pc ParseContext) domain.Result {
	if !raw.OK() {
		return failStatus(raw, true, nil)
	}
	doc, ok := parseJSON(raw.Body)
	if !ok {
		return domain.Unknown(raw.Body)
	}
	if msg := doc.Get("error"); msg.Exists() {
		return failure(msg.String(), domain.ErrBackend, nil)
	}

	list := doc.Get("list")
	if !list.IsArray() {
		return domain.Unknown(raw.Body)
	}

	var entries []domain.DictEntry
	index := make(map[string]int)
	for _, item := range list.Array() {
		word := item.Get("word").String()
		def := stripBrackets(item.Get("definition").String())
		if def == "" {
			continue
		}
		i, seen := index[strings.ToLower(word)]
		if !seen {
			i = len(entries)
			index[strings.ToLower(word)] = i
			entries = append(entries, domain.DictEntry{Heading: word})
		}
		if len(entries[i].Values) < urbanMaxDefinitions {
			entries[i].Values = append(entries[i].Values, def)
		}
	}
	return domain.Dictionary(entries)
}

// stripBrackets removes the [link] markup around cross-referenced terms.
func stripBrackets(s string) string {
	s = strings.NewReplacer("[", "", "]", "", "\r\n", "\n").Replace(s)
	return strings.TrimSpace(s)
}
