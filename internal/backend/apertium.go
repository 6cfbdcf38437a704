package backend

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/pricofy/translation-gateway/internal/domain"
)

const (
	apertiumTranslateURL = "https://www.apertium.org/apy/translate"
	apertiumDetectURL    = "https://www.apertium.org/apy/identifyLang"
)

// apertiumCodes maps ISO 639-1 codes to the three-letter codes of the
// installed language pairs.
var apertiumCodes = map[string]string{
	"af": "afr",
	"an": "arg",
	"ar": "ara",
	"be": "bel",
	"bg": "bul",
	"br": "bre",
	"ca": "cat",
	"cs": "ces",
	"cy": "cym",
	"da": "dan",
	"de": "deu",
	"en": "eng",
	"eo": "epo",
	"es": "spa",
	"eu": "eus",
	"fi": "fin",
	"fr": "fra",
	"gl": "glg",
	"he": "heb",
	"hi": "hin",
	"hr": "hrv",
	"hu": "hun",
	"id": "ind",
	"is": "isl",
	"it": "ita",
	"ja": "jpn",
	"kk": "kaz",
	"ko": "kor",
	"la": "lat",
	"lt": "lit",
	"lv": "lav",
	"mk": "mkd",
	"ms": "msa",
	"mt": "mlt",
	"nb": "nob",
	"nl": "nld",
	"nn": "nno",
	"no": "nob",
	"oc": "oci",
	"pl": "pol",
	"pt": "por",
	"ro": "ron",
	"ru": "rus",
	"sc": "srd",
	"sk": "slk",
	"sl": "slv",
	"sr": "srp",
	"sv": "swe",
	"tt": "tat",
	"tr": "tur",
	"uk": "ukr",
	"ur": "urd",
	"vi": "vie",
	"wa": "wln",
	"zu": "zul",
}

var apertiumFromCodes = invert(apertiumCodes)

var apertiumSentinels = []sentinel{
	{"pair is not installed", domain.ErrUnsupportedPair},
	{"not found", domain.ErrUnsupportedPair},
}

// Apertium is the public Apertium server. It needs no credential; an
// unknown source is identified with a separate call first.
type Apertium struct{}

func (Apertium) ID() string { return "apertium" }

func (a Apertium) BuildRequest(q Query) (domain.WireRequest, error) {
	if q.Auto() {
		v := url.Values{}
		v.Set("q", q.Text)
		return domain.WireRequest{
			URL:    apertiumDetectURL + "?" + v.Encode(),
			Method: http.MethodGet,
		}, nil
	}
	return a.translate(q, q.Source)
}

// Continue follows an identification with the translation request.
func (a Apertium) Continue(q Query, hop int, prev domain.Result) (domain.WireRequest, bool, error) {
	if !q.Auto() || hop != 1 {
		return domain.WireRequest{}, false, nil
	}
	if prev.DetectedLang == "" {
		return domain.WireRequest{}, false, unsupported(q, "apertium")
	}
	req, err := a.translate(q, prev.DetectedLang)
	return req, err == nil, err
}

func (Apertium) ParseResponse(raw domain.RawResponse, pc ParseContext) domain.Result {
	doc, ok := parseJSON(raw.Body)
	if !raw.OK() {
		if msg := doc.Get("explanation"); ok && msg.Exists() {
			return failure(msg.String(), domain.ErrBackend, apertiumSentinels)
		}
		return failStatus(raw, false, apertiumSentinels)
	}
	if !ok || !doc.IsObject() {
		return domain.Unknown(raw.Body)
	}

	if pc.Query.Auto() && pc.Hop == 0 {
		lang := apertiumBest(doc)
		if lang == "" {
			return domain.Unknown(raw.Body)
		}
		return domain.Translation("", lang)
	}

	if status := doc.Get("responseStatus").Int(); status != http.StatusOK {
		msg := doc.Get("responseDetails").String()
		if msg == "" {
			msg = "status " + doc.Get("responseStatus").String()
		}
		return failure(msg, domain.ErrBackend, apertiumSentinels)
	}
	text := doc.Get("responseData.translatedText")
	if !text.Exists() {
		return domain.Unknown(raw.Body)
	}
	return domain.Translation(text.String(), "")
}

func (Apertium) translate(q Query, source string) (domain.WireRequest, error) {
	from, ok := apertiumCode(source)
	to, ok2 := apertiumCode(q.Target)
	if !ok || !ok2 || from == to {
		return domain.WireRequest{}, unsupported(Query{Source: source, Target: q.Target}, "apertium")
	}

	v := url.Values{}
	v.Set("q", q.Text)
	v.Set("markUnknown", "no")
	v.Set("langpair", from+"|"+to)
	return domain.WireRequest{
		URL:    apertiumTranslateURL + "?" + v.Encode(),
		Method: http.MethodGet,
	}, nil
}

// apertiumBest returns the ISO 639-1 code of the highest scoring language
// of an identifyLang answer, or "" when none is known.
func apertiumBest(doc gjson.Result) string {
	best, score := "", -1.0
	doc.ForEach(func(key, value gjson.Result) bool {
		code, _, _ := strings.Cut(key.String(), "_")
		lang, ok := apertiumFromCodes[code]
		if ok && value.Float() > score {
			best, score = lang, value.Float()
		}
		return true
	})
	return best
}

func apertiumCode(code string) (string, bool) {
	c, ok := apertiumCodes[baseOf(code)]
	return c, ok
}
