package backend

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/pricofy/translation-gateway/internal/domain"
)

const (
	glosbeTranslateURL  = "https://translator-api.glosbe.com/translateByLangDetect"
	glosbeDictionaryURL = "https://glosbe.com/gapi/translate"
)

// glosbeMaxPhrases bounds the dictionary values.
const glosbeMaxPhrases = 25

var glosbeSentinels = []sentinel{
	{"unsupported language", domain.ErrUnsupportedPair},
	{"too many requests", domain.ErrBackend},
}

// Glosbe is the Glosbe translator with its phrase dictionary as the
// secondary lookup. It needs no credential.
type Glosbe struct{}

func (Glosbe) ID() string { return "glosbe" }

func (Glosbe) BuildRequest(q Query) (domain.WireRequest, error) {
	v := url.Values{}
	if !q.Auto() {
		v.Set("sourceLang", baseOf(q.Source))
	}
	v.Set("targetLang", baseOf(q.Target))
	return domain.WireRequest{
		URL:    glosbeTranslateURL + "?" + v.Encode(),
		Method: http.MethodPost,
		Header: map[string]string{"Content-Type": "text/plain"},
		Body:   []byte(q.Text),
	}, nil
}

func (Glosbe) ParseResponse(raw domain.RawResponse, pc ParseContext) domain.Result {
	doc, ok := parseJSON(raw.Body)
	if !raw.OK() {
		if msg := doc.Get("message"); ok && msg.Exists() {
			return failure(msg.String(), domain.ErrBackend, glosbeSentinels)
		}
		return failStatus(raw, false, glosbeSentinels)
	}
	if !ok {
		return domain.Unknown(raw.Body)
	}

	text := doc.Get("translation")
	if !text.Exists() {
		return domain.Unknown(raw.Body)
	}
	return domain.Translation(text.String(), detected(pc.Query, doc.Get("sourceLang").String()))
}

// BuildDictionaryRequest looks the phrase up in the Glosbe dictionary. It
// needs a known source language.
func (Glosbe) BuildDictionaryRequest(q Query) (domain.WireRequest, error) {
	if q.Auto() {
		return domain.WireRequest{}, ErrNoDictionary
	}
	v := url.Values{}
	v.Set("from", baseOf(q.Source))
	v.Set("dest", baseOf(q.Target))
	v.Set("format", "json")
	v.Set("phrase", q.Text)
	return domain.WireRequest{
		URL:    glosbeDictionaryURL + "?" + v.Encode(),
		Method: http.MethodGet,
	}, nil
}

func (Glosbe) ParseDictionaryResponse(raw domain.RawResponse, pc ParseContext) domain.Result {
	if !raw.OK() {
		return failStatus(raw, false, glosbeSentinels)
	}
	doc, ok := parseJSON(raw.Body)
	if !ok {
		return domain.Unknown(raw.Body)
	}
	if result := doc.Get("result").String(); result != "ok" {
		msg := doc.Get("message").String()
		if msg == "" {
			msg = "result " + result
		}
		return failure(msg, domain.ErrBackend, glosbeSentinels)
	}

	tuc := doc.Get("tuc")
	if !tuc.IsArray() {
		return domain.Unknown(raw.Body)
	}
	var values []string
	seen := make(map[string]bool)
	for _, t := range tuc.Array() {
		phrase := strings.TrimSpace(t.Get("phrase.text").String())
		if phrase == "" || seen[phrase] {
			continue
		}
		seen[phrase] = true
		values = append(values, phrase)
		if len(values) == glosbeMaxPhrases {
			break
		}
	}
	if len(values) == 0 {
		return domain.Dictionary(nil)
	}
	return domain.Dictionary([]domain.DictEntry{{Values: values}})
}
