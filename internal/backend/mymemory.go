package backend

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/pricofy/translation-gateway/internal/domain"
)

const myMemoryURL = "https://api.mymemory.translated.net/get"

var myMemorySentinels = []sentinel{
	{"invalid language pair", domain.ErrUnsupportedPair},
	{"please select two distinct languages", domain.ErrUnsupportedPair},
	{"no query specified", domain.ErrMalformed},
}

// MyMemory is the MyMemory translation memory API. It needs no credential.
type MyMemory struct {
	// Email raises the anonymous daily quota when set.
	Email string
}

func (MyMemory) ID() string { return "mymemory" }

func (m MyMemory) BuildRequest(q Query) (domain.WireRequest, error) {
	source := "Autodetect"
	if !q.Auto() {
		source = regionUpper(q.Source)
	}

	v := url.Values{}
	v.Set("q", q.Text)
	v.Set("langpair", source+"|"+regionUpper(q.Target))
	if m.Email != "" {
		v.Set("de", m.Email)
	}
	return domain.WireRequest{
		URL:    myMemoryURL + "?" + v.Encode(),
		Method: http.MethodGet,
	}, nil
}

func (MyMemory) ParseResponse(raw domain.RawResponse, pc ParseContext) domain.Result {
	if !raw.OK() {
		return failStatus(raw, false, myMemorySentinels)
	}
	doc, ok := parseJSON(raw.Body)
	if !ok {
		return domain.Unknown(raw.Body)
	}

	// responseStatus is a number or a numeric string
	if status := doc.Get("responseStatus").Int(); status != http.StatusOK {
		msg := doc.Get("responseDetails").String()
		if msg == "" {
			msg = "status " + doc.Get("responseStatus").String()
		}
		return failure(msg, domain.ErrBackend, myMemorySentinels)
	}

	text := doc.Get("responseData.translatedText")
	if !text.Exists() {
		return domain.Unknown(raw.Body)
	}
	lang := doc.Get("responseData.detectedLanguage").String()
	lang, _, _ = strings.Cut(lang, "-")
	return domain.Translation(text.String(), detected(pc.Query, lang))
}
