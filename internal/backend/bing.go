package backend

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/pricofy/translation-gateway/internal/domain"
)

const (
	bingTranslateURL = "https://www.bing.com/ttranslatev3?isVertical=1&IID=translator.5023.1"
	bingLookupURL    = "https://www.bing.com/tlookupv3?isVertical=1&IID=translator.5023.2"
)

// Bing credential fields.
const (
	BingSignField = "msSignId"
	BingAppField  = "msAppId"
)

var bingCodes = map[string]string{
	"zh":    "zh-Hans",
	"zh-cn": "zh-Hans",
	"zh-tw": "zh-Hant",
	"zh-hk": "zh-Hant",
	"no":    "nb",
	"sr":    "sr-Cyrl",
	"tl":    "fil",
	"he":    "he",
	"iw":    "he",
}

// bingStatuses maps the statusCode of Bing's error envelope.
var bingStatuses = map[int64]domain.ErrorKind{
	205: domain.ErrCredentialExpired,
	400: domain.ErrBackend,
	429: domain.ErrBackend,
}

var bingSentinels = []sentinel{
	{"the source language is not valid", domain.ErrUnsupportedPair},
	{"the target language is not valid", domain.ErrUnsupportedPair},
}

// Bing is the Bing Translator web API. Both calls need the token/key pair
// embedded in the translator page.
type Bing struct{}

func (Bing) ID() string { return "bing" }

func (b Bing) BuildRequest(q Query) (domain.WireRequest, error) {
	source := "auto-detect"
	if !q.Auto() {
		source = bingCode(q.Source)
	}
	return b.form(bingTranslateURL, q, url.Values{
		"fromLang": {source},
		"to":       {bingCode(q.Target)},
		"text":     {q.Text},
	})
}

func (b Bing) ParseResponse(raw domain.RawResponse, pc ParseContext) domain.Result {
	doc, res, ok := b.envelope(raw)
	if !ok {
		return res
	}

	tr := doc.Get("0.translations.0.text")
	if !tr.Exists() {
		return domain.Unknown(raw.Body)
	}
	return domain.Translation(tr.String(), detected(pc.Query, doc.Get("0.detectedLanguage.language").String()))
}

func (b Bing) BuildDictionaryRequest(q Query) (domain.WireRequest, error) {
	if q.Auto() {
		return domain.WireRequest{}, ErrNoDictionary
	}
	return b.form(bingLookupURL, q, url.Values{
		"from": {bingCode(q.Source)},
		"to":   {bingCode(q.Target)},
		"text": {q.Text},
	})
}

func (b Bing) ParseDictionaryResponse(raw domain.RawResponse, pc ParseContext) domain.Result {
	doc, res, ok := b.envelope(raw)
	if !ok {
		return res
	}

	translations := doc.Get("0.translations")
	if !translations.IsArray() {
		return domain.Unknown(raw.Body)
	}

	// group by part of speech, keeping first-seen order
	var entries []domain.DictEntry
	index := make(map[string]int)
	for _, t := range translations.Array() {
		pos := strings.ToLower(t.Get("posTag").String())
		word := t.Get("displayTarget").String()
		if word == "" {
			continue
		}
		i, seen := index[pos]
		if !seen {
			i = len(entries)
			index[pos] = i
			entries = append(entries, domain.DictEntry{Heading: pos})
		}
		entries[i].Values = append(entries[i].Values, word)
	}
	return domain.Dictionary(entries)
}

// envelope handles the failure shapes shared by both Bing endpoints.
func (Bing) envelope(raw domain.RawResponse) (gjson.Result, domain.Result, bool) {
	if !raw.OK() {
		return gjson.Result{}, failStatus(raw, true, bingSentinels), false
	}
	doc, ok := parseJSON(raw.Body)
	if !ok {
		return gjson.Result{}, domain.Unknown(raw.Body), false
	}
	if doc.IsObject() {
		if code := doc.Get("statusCode"); code.Exists() {
			kind, known := bingStatuses[code.Int()]
			if !known {
				kind = domain.ErrBackend
			}
			msg := doc.Get("errorMessage").String()
			if msg == "" {
				msg = "status " + code.String()
			}
			return doc, failure(msg, kind, bingSentinels), false
		}
		return doc, domain.Unknown(raw.Body), false
	}
	return doc, domain.Result{}, true
}

func (Bing) form(endpoint string, q Query, v url.Values) (domain.WireRequest, error) {
	token := q.Credential.Field(BingAppField)
	if token == "" {
		return domain.WireRequest{}, missingCredential("bing", BingAppField)
	}
	v.Set("token", token)
	v.Set("key", q.Credential.Field(BingSignField))
	return domain.WireRequest{
		URL:    endpoint,
		Method: http.MethodPost,
		Header: map[string]string{
			"Content-Type": "application/x-www-form-urlencoded",
			"Referer":      "https://www.bing.com/translator",
		},
		Body: []byte(v.Encode()),
	}, nil
}

func bingCode(code string) string {
	if c, ok := bingCodes[code]; ok {
		return c
	}
	return code
}
