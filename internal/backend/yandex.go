package backend

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pricofy/translation-gateway/internal/domain"
)

const (
	yandexTranslateURL = "https://translate.yandex.net/api/v1/tr.json/translate"
	yandexLookupURL    = "https://dictionary.yandex.net/dicservice.json/lookup"
)

// Yandex credential fields.
const (
	YandexSignField = "yaSignId"
	YandexAppField  = "yaAppId"
)

// yandexCodes maps the envelope code of Yandex responses.
var yandexCodes = map[int64]domain.ErrorKind{
	401: domain.ErrCredentialExpired,
	402: domain.ErrCredentialExpired,
	403: domain.ErrCredentialExpired,
	405: domain.ErrCredentialExpired,
	406: domain.ErrCredentialExpired,
	413: domain.ErrBackend,
	422: domain.ErrBackend,
	501: domain.ErrUnsupportedPair,
}

// Yandex is the Yandex.Translate web API with the Yandex.Dictionary lookup.
type Yandex struct{}

func (Yandex) ID() string { return "yandex" }

func (y Yandex) BuildRequest(q Query) (domain.WireRequest, error) {
	sid, err := yandexSID(q.Credential)
	if err != nil {
		return domain.WireRequest{}, err
	}

	lang := q.Target
	if !q.Auto() {
		lang = q.Source + "-" + q.Target
	}
	v := url.Values{}
	v.Set("id", sid+"-0-0")
	v.Set("srv", "tr-text")
	v.Set("lang", lang)
	v.Set("reason", "auto")
	v.Set("format", "text")
	if reqid := q.Credential.Field(YandexSignField); reqid != "" {
		v.Set("reqid", reqid)
	}

	body := url.Values{}
	body.Set("text", q.Text)
	body.Set("options", "4")

	return domain.WireRequest{
		URL:    yandexTranslateURL + "?" + v.Encode(),
		Method: http.MethodPost,
		Header: map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
		Body:   []byte(body.Encode()),
	}, nil
}

func (y Yandex) ParseResponse(raw domain.RawResponse, pc ParseContext) domain.Result {
	if !raw.OK() {
		if doc, ok := parseJSON(raw.Body); ok && doc.Get("code").Exists() {
			return y.codeFailure(doc.Get("code").Int(), doc.Get("message").String())
		}
		return failStatus(raw, true, nil)
	}
	doc, ok := parseJSON(raw.Body)
	if !ok {
		return domain.Unknown(raw.Body)
	}
	if code := doc.Get("code").Int(); code != 0 && code != 200 {
		return y.codeFailure(code, doc.Get("message").String())
	}

	text := doc.Get("text")
	if !text.IsArray() {
		return domain.Unknown(raw.Body)
	}
	parts := make([]string, 0, len(text.Array()))
	for _, t := range text.Array() {
		parts = append(parts, t.String())
	}

	lang := doc.Get("detected.lang").String()
	if lang == "" {
		// "en-fr"
		lang, _, _ = strings.Cut(doc.Get("lang").String(), "-")
	}
	return domain.Translation(strings.Join(parts, ""), detected(pc.Query, lang))
}

func (y Yandex) BuildDictionaryRequest(q Query) (domain.WireRequest, error) {
	if q.Auto() {
		return domain.WireRequest{}, ErrNoDictionary
	}
	sid, err := yandexSID(q.Credential)
	if err != nil {
		return domain.WireRequest{}, err
	}

	v := url.Values{}
	v.Set("ui", q.Target)
	v.Set("srv", "tr-text")
	v.Set("sid", sid)
	v.Set("text", strings.TrimSpace(q.Text))
	v.Set("lang", q.Source+"-"+q.Target)
	v.Set("flags", "1")
	return domain.WireRequest{
		URL:    yandexLookupURL + "?" + v.Encode(),
		Method: http.MethodGet,
	}, nil
}

func (y Yandex) ParseDictionaryResponse(raw domain.RawResponse, pc ParseContext) domain.Result {
	if !raw.OK() {
		return failStatus(raw, true, nil)
	}
	doc, ok := parseJSON(raw.Body)
	if !ok {
		return domain.Unknown(raw.Body)
	}
	if code := doc.Get("code"); code.Exists() {
		return y.codeFailure(code.Int(), doc.Get("message").String())
	}

	pair := pc.Query.Source + "-" + pc.Query.Target
	section := doc.Get(escapePath(pair) + ".regular")
	if !section.Exists() {
		section = doc.Get("def")
	}

	var entries []domain.DictEntry
	for _, def := range section.Array() {
		e := domain.DictEntry{Heading: def.Get("pos.text").String()}
		if e.Heading == "" {
			e.Heading = def.Get("pos").String()
		}
		for _, tr := range def.Get("tr").Array() {
			e.Values = append(e.Values, tr.Get("text").String())
		}
		if len(e.Values) > 0 {
			entries = append(entries, e)
		}
	}
	return domain.Dictionary(entries)
}

func (Yandex) codeFailure(code int64, msg string) domain.Result {
	kind, ok := yandexCodes[code]
	if !ok {
		kind = domain.ErrBackend
	}
	if msg == "" {
		msg = fmt.Sprintf("code %d", code)
	}
	return failure(msg, kind, nil)
}

// yandexSID returns the session id. The page embeds it with every
// dot-separated part reversed.
func yandexSID(c *domain.Credential) (string, error) {
	sid := c.Field(YandexAppField)
	if sid == "" {
		return "", missingCredential("yandex", YandexAppField)
	}
	parts := strings.Split(sid, ".")
	for i, p := range parts {
		r := []rune(p)
		for a, b := 0, len(r)-1; a < b; a, b = a+1, b-1 {
			r[a], r[b] = r[b], r[a]
		}
		parts[i] = string(r)
	}
	return strings.Join(parts, "."), nil
}

// escapePath escapes gjson path metacharacters in a literal key.
func escapePath(key string) string {
	var sb strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\':
			sb.WriteRune('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
