package backend

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/pricofy/translation-gateway/internal/domain"
)

const (
	baiduTranslateURL = "https://fanyi.baidu.com/v2transapi"
	baiduDetectURL    = "https://fanyi.baidu.com/langdetect"
)

// Baidu credential fields.
const (
	BaiduSignField = "bdSignId"
	BaiduAppField  = "bdAppId"
)

// Baidu uses its own codes for a few languages.
var baiduCodes = map[string]string{
	"zh":    "zh",
	"zh-cn": "zh",
	"zh-tw": "cht",
	"ja":    "jp",
	"ko":    "kor",
	"fr":    "fra",
	"es":    "spa",
	"ar":    "ara",
	"bg":    "bul",
	"et":    "est",
	"da":    "dan",
	"fi":    "fin",
	"ro":    "rom",
	"sl":    "slo",
	"sv":    "swe",
	"vi":    "vie",
}

var baiduFromCodes = invert(baiduCodes)

// baiduErrors maps errno values of the Baidu envelope.
var baiduErrors = map[int64]domain.ErrorKind{
	997:  domain.ErrCredentialExpired,
	998:  domain.ErrCredentialExpired,
	1000: domain.ErrUnsupportedPair,
	1022: domain.ErrBackend,
}

// Baidu is the Baidu Fanyi web API. Every request is signed with the page's
// gtk value. With an unknown source language the primary call is preceded
// by a detection request. The dictionary section comes with the
// translation response itself.
type Baidu struct{}

func (Baidu) ID() string { return "baidu" }

func (b Baidu) BuildRequest(q Query) (domain.WireRequest, error) {
	if q.Auto() {
		v := url.Values{}
		v.Set("query", q.Text)
		return b.form(baiduDetectURL, v), nil
	}
	return b.translate(q, q.Source)
}

// Continue follows a detection with the translation request.
func (b Baidu) Continue(q Query, hop int, prev domain.Result) (domain.WireRequest, bool, error) {
	if !q.Auto() || hop != 1 {
		return domain.WireRequest{}, false, nil
	}
	if prev.DetectedLang == "" {
		return domain.WireRequest{}, false, unsupported(q, "baidu")
	}
	req, err := b.translate(q, prev.DetectedLang)
	return req, err == nil, err
}

func (b Baidu) ParseResponse(raw domain.RawResponse, pc ParseContext) domain.Result {
	doc, res, ok := b.envelope(raw)
	if !ok {
		return res
	}

	if pc.Query.Auto() && pc.Hop == 0 {
		lan := doc.Get("lan")
		if !lan.Exists() {
			return domain.Unknown(raw.Body)
		}
		return domain.Translation("", fromBaidu(lan.String()))
	}

	data := doc.Get("trans_result.data")
	if !data.IsArray() {
		return domain.Unknown(raw.Body)
	}
	lines := make([]string, 0, len(data.Array()))
	for _, d := range data.Array() {
		lines = append(lines, d.Get("dst").String())
	}
	return domain.Translation(strings.Join(lines, "\n"), detected(pc.Query, fromBaidu(doc.Get("trans_result.from").String())))
}

func (b Baidu) BuildDictionaryRequest(q Query) (domain.WireRequest, error) {
	if q.Auto() {
		return domain.WireRequest{}, ErrNoDictionary
	}
	return b.translate(q, q.Source)
}

func (b Baidu) ParseDictionaryResponse(raw domain.RawResponse, pc ParseContext) domain.Result {
	doc, res, ok := b.envelope(raw)
	if !ok {
		return res
	}

	var entries []domain.DictEntry
	for _, sym := range doc.Get("dict_result.simple_means.symbols").Array() {
		for _, part := range sym.Get("parts").Array() {
			e := domain.DictEntry{Heading: part.Get("part").String()}
			for _, m := range part.Get("means").Array() {
				// means are either strings or {"text": ...} objects
				if m.IsObject() {
					e.Values = append(e.Values, m.Get("text").String())
				} else {
					e.Values = append(e.Values, m.String())
				}
			}
			if len(e.Values) > 0 {
				entries = append(entries, e)
			}
		}
	}
	return domain.Dictionary(entries)
}

func (Baidu) envelope(raw domain.RawResponse) (gjson.Result, domain.Result, bool) {
	if !raw.OK() {
		return gjson.Result{}, failStatus(raw, true, nil), false
	}
	doc, ok := parseJSON(raw.Body)
	if !ok {
		return gjson.Result{}, domain.Unknown(raw.Body), false
	}

	code := doc.Get("errno")
	if !code.Exists() {
		code = doc.Get("error")
	}
	if code.Exists() && code.Int() != 0 {
		kind, known := baiduErrors[code.Int()]
		if !known {
			kind = domain.ErrBackend
		}
		msg := doc.Get("errmsg").String()
		if msg == "" {
			msg = doc.Get("msg").String()
		}
		if msg == "" {
			msg = "errno " + code.String()
		}
		return doc, failure(msg, kind, nil), false
	}
	return doc, domain.Result{}, true
}

func (b Baidu) translate(q Query, source string) (domain.WireRequest, error) {
	token := q.Credential.Field(BaiduAppField)
	if token == "" {
		return domain.WireRequest{}, missingCredential("baidu", BaiduAppField)
	}
	gtk := q.Credential.Field(BaiduSignField)
	if gtk == "" {
		return domain.WireRequest{}, missingCredential("baidu", BaiduSignField)
	}

	from, to := toBaidu(source), toBaidu(q.Target)
	v := url.Values{}
	v.Set("from", from)
	v.Set("to", to)
	v.Set("query", q.Text)
	v.Set("transtype", "translang")
	v.Set("simple_means_flag", "3")
	v.Set("sign", BaiduSign(q.Text, gtk))
	v.Set("token", token)
	v.Set("domain", "common")

	req := b.form(baiduTranslateURL, v)
	req.URL += "?" + url.Values{"from": {from}, "to": {to}}.Encode()
	return req, nil
}

func (Baidu) form(endpoint string, v url.Values) domain.WireRequest {
	return domain.WireRequest{
		URL:    endpoint,
		Method: http.MethodPost,
		Header: map[string]string{
			"Content-Type":     "application/x-www-form-urlencoded; charset=UTF-8",
			"X-Requested-With": "XMLHttpRequest",
			"Referer":          "https://fanyi.baidu.com/",
		},
		Body: []byte(v.Encode()),
	}
}

func toBaidu(code string) string {
	if c, ok := baiduCodes[code]; ok {
		return c
	}
	return baseOf(code)
}

func fromBaidu(code string) string {
	if c, ok := baiduFromCodes[code]; ok {
		return c
	}
	return code
}

// invert builds the reverse of a code table. For duplicated values the
// shortest key wins.
func invert(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if cur, ok := out[v]; !ok || len(k) < len(cur) || (len(k) == len(cur) && k < cur) {
			out[v] = k
		}
	}
	return out
}
