package backend

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/pricofy/translation-gateway/internal/domain"
)

const googleEndpoint = "https://translate.googleapis.com/translate_a/single"

// Google is the public gtx endpoint of Google Translate. The dictionary
// channel uses the same endpoint with dt=bd.
type Google struct{}

func (Google) ID() string { return "google" }

func (g Google) BuildRequest(q Query) (domain.WireRequest, error) {
	return g.request(q, "t"), nil
}

func (g Google) ParseResponse(raw domain.RawResponse, pc ParseContext) domain.Result {
	if !raw.OK() {
		return failStatus(raw, false, nil)
	}
	doc, ok := parseJSON(raw.Body)
	if !ok {
		return domain.Unknown(raw.Body)
	}
	if msg := doc.Get("error.message"); msg.Exists() {
		return failure(msg.String(), domain.ErrBackend, nil)
	}

	sentences := doc.Get("sentences")
	if !sentences.IsArray() {
		return domain.Unknown(raw.Body)
	}
	var sb strings.Builder
	for _, s := range sentences.Array() {
		sb.WriteString(s.Get("trans").String())
	}
	return domain.Translation(sb.String(), detected(pc.Query, doc.Get("src").String()))
}

func (g Google) BuildDictionaryRequest(q Query) (domain.WireRequest, error) {
	return g.request(q, "bd"), nil
}

func (g Google) ParseDictionaryResponse(raw domain.RawResponse, pc ParseContext) domain.Result {
	if !raw.OK() {
		return failStatus(raw, false, nil)
	}
	doc, ok := parseJSON(raw.Body)
	if !ok {
		return domain.Unknown(raw.Body)
	}

	var entries []domain.DictEntry
	for _, d := range doc.Get("dict").Array() {
		e := domain.DictEntry{Heading: d.Get("pos").String()}
		for _, term := range d.Get("terms").Array() {
			e.Values = append(e.Values, term.String())
		}
		if len(e.Values) > 0 {
			entries = append(entries, e)
		}
	}
	return domain.Dictionary(entries)
}

func (Google) request(q Query, dt string) domain.WireRequest {
	source := "auto"
	if !q.Auto() {
		source = regionUpper(q.Source)
	}
	v := url.Values{}
	v.Set("client", "gtx")
	v.Set("sl", source)
	v.Set("tl", regionUpper(q.Target))
	v.Set("hl", regionUpper(q.Target))
	v.Set("dt", dt)
	v.Set("dj", "1")
	v.Set("ie", "UTF-8")
	v.Set("oe", "UTF-8")
	v.Set("q", q.Text)
	return domain.WireRequest{
		URL:    googleEndpoint + "?" + v.Encode(),
		Method: http.MethodGet,
	}
}
