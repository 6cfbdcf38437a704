package backend

import (
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricofy/translation-gateway/internal/domain"
)

func cred(kv ...string) *domain.Credential {
	c := &domain.Credential{Fields: map[string]string{}}
	for i := 0; i+1 < len(kv); i += 2 {
		c.Fields[kv[i]] = kv[i+1]
	}
	return c
}

func ok(body string) domain.RawResponse {
	return domain.RawResponse{Status: 200, Body: []byte(body)}
}

func status(code int, body string) domain.RawResponse {
	return domain.RawResponse{Status: code, Body: []byte(body)}
}

func query(t *testing.T, raw string) url.Values {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u.Query()
}

func form(t *testing.T, body []byte) url.Values {
	t.Helper()
	v, err := url.ParseQuery(string(body))
	require.NoError(t, err)
	return v
}

type parseCase struct {
	name    string
	raw     domain.RawResponse
	q       Query
	hop     int
	kind    domain.ResultKind
	errKind domain.ErrorKind
	text    string
	lang    string
}

func runParse(t *testing.T, parse func(domain.RawResponse, ParseContext) domain.Result, cases []parseCase) {
	t.Helper()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := parse(tc.raw, ParseContext{Query: tc.q, Hop: tc.hop})
			require.Equal(t, tc.kind, got.Kind, "result: %+v", got)
			assert.Equal(t, tc.errKind, got.ErrKind)
			if tc.kind == domain.KindTranslation {
				assert.Equal(t, tc.text, got.Text)
				assert.Equal(t, tc.lang, got.DetectedLang)
			}
		})
	}
}

func assertBackendError(t *testing.T, err error, kind domain.ErrorKind) {
	t.Helper()
	var be *domain.BackendError
	require.True(t, errors.As(err, &be), "err = %v", err)
	assert.Equal(t, kind, be.Kind)
}

var auto = Query{Text: "hola", Target: "en"}

func TestGoogle(t *testing.T) {
	g := Google{}

	req, err := g.BuildRequest(Query{Text: "hola mundo", Target: "zh-tw"})
	require.NoError(t, err)
	v := query(t, req.URL)
	assert.Equal(t, "auto", v.Get("sl"))
	assert.Equal(t, "zh-TW", v.Get("tl"))
	assert.Equal(t, "t", v.Get("dt"))
	assert.Equal(t, "hola mundo", v.Get("q"))

	dict, err := g.BuildDictionaryRequest(Query{Text: "casa", Source: "es", Target: "en"})
	require.NoError(t, err)
	assert.Equal(t, "bd", query(t, dict.URL).Get("dt"))
	assert.Equal(t, "es", query(t, dict.URL).Get("sl"))

	runParse(t, g.ParseResponse, []parseCase{
		{name: "auto", raw: ok(`{"sentences":[{"trans":"Hello "},{"trans":"world"}],"src":"ES"}`), q: auto, kind: domain.KindTranslation, text: "Hello world", lang: "es"},
		{name: "explicit source", raw: ok(`{"sentences":[{"trans":"Hello"}],"src":"es"}`), q: Query{Source: "es", Target: "en"}, kind: domain.KindTranslation, text: "Hello"},
		{name: "unsupported", raw: ok(`{"error":{"message":"The language pair is not supported"}}`), kind: domain.KindError, errKind: domain.ErrUnsupportedPair},
		{name: "rate limited", raw: status(429, "<html>Too Many Requests</html>"), kind: domain.KindError, errKind: domain.ErrBackend},
		{name: "garbage", raw: ok(`)]}'garbage`), kind: domain.KindUnknown},
	})

	res := g.ParseDictionaryResponse(ok(`{"dict":[{"pos":"noun","terms":["house","home"]},{"pos":"verb","terms":[]}]}`), ParseContext{})
	require.Equal(t, domain.KindDictionary, res.Kind)
	assert.Equal(t, []domain.DictEntry{{Heading: "noun", Values: []string{"house", "home"}}}, res.Entries)
}

func TestBing(t *testing.T) {
	b := Bing{}
	c := cred(BingSignField, "1700000000", BingAppField, "tok")

	req, err := b.BuildRequest(Query{Text: "hola", Target: "zh", Credential: c})
	require.NoError(t, err)
	v := form(t, req.Body)
	assert.Equal(t, "auto-detect", v.Get("fromLang"))
	assert.Equal(t, "zh-Hans", v.Get("to"))
	assert.Equal(t, "tok", v.Get("token"))
	assert.Equal(t, "1700000000", v.Get("key"))

	_, err = b.BuildRequest(Query{Text: "hola", Target: "en"})
	assertBackendError(t, err, domain.ErrCredentialExpired)

	_, err = b.BuildDictionaryRequest(Query{Text: "hola", Target: "en", Credential: c})
	assert.ErrorIs(t, err, ErrNoDictionary)

	runParse(t, b.ParseResponse, []parseCase{
		{name: "success", raw: ok(`[{"detectedLanguage":{"language":"es","score":1},"translations":[{"text":"hello","to":"en"}]}]`), q: auto, kind: domain.KindTranslation, text: "hello", lang: "es"},
		{name: "expired token", raw: ok(`{"statusCode":205}`), kind: domain.KindError, errKind: domain.ErrCredentialExpired},
		{name: "bad target", raw: ok(`{"statusCode":400,"errorMessage":"The target language is not valid."}`), kind: domain.KindError, errKind: domain.ErrUnsupportedPair},
		{name: "forbidden", raw: status(403, ""), kind: domain.KindError, errKind: domain.ErrCredentialExpired},
		{name: "other object", raw: ok(`{"foo":1}`), kind: domain.KindUnknown},
	})

	res := b.ParseDictionaryResponse(ok(`[{"translations":[
		{"displayTarget":"house","posTag":"NOUN"},
		{"displayTarget":"live","posTag":"VERB"},
		{"displayTarget":"home","posTag":"NOUN"},
		{"displayTarget":"","posTag":"ADJ"}]}]`), ParseContext{})
	require.Equal(t, domain.KindDictionary, res.Kind)
	assert.Equal(t, []domain.DictEntry{
		{Heading: "noun", Values: []string{"house", "home"}},
		{Heading: "verb", Values: []string{"live"}},
	}, res.Entries)
}

func TestYandex(t *testing.T) {
	y := Yandex{}
	c := cred(YandexSignField, "req-1", YandexAppField, "cba.fed.ihg")

	req, err := y.BuildRequest(Query{Text: "hola", Source: "es", Target: "en", Credential: c})
	require.NoError(t, err)
	v := query(t, req.URL)
	assert.Equal(t, "abc.def.ghi-0-0", v.Get("id"))
	assert.Equal(t, "es-en", v.Get("lang"))
	assert.Equal(t, "req-1", v.Get("reqid"))
	assert.Equal(t, "hola", form(t, req.Body).Get("text"))

	req, err = y.BuildRequest(Query{Text: "hola", Target: "en", Credential: c})
	require.NoError(t, err)
	assert.Equal(t, "en", query(t, req.URL).Get("lang"))

	_, err = y.BuildRequest(Query{Text: "hola", Target: "en"})
	assertBackendError(t, err, domain.ErrCredentialExpired)

	runParse(t, y.ParseResponse, []parseCase{
		{name: "detected", raw: ok(`{"code":200,"lang":"es-en","text":["hello"],"detected":{"lang":"es"}}`), q: auto, kind: domain.KindTranslation, text: "hello", lang: "es"},
		{name: "lang prefix", raw: ok(`{"code":200,"lang":"es-en","text":["hel","lo"]}`), q: auto, kind: domain.KindTranslation, text: "hello", lang: "es"},
		{name: "unsupported", raw: ok(`{"code":501,"message":"The specified translation direction is not supported"}`), kind: domain.KindError, errKind: domain.ErrUnsupportedPair},
		{name: "blocked", raw: status(405, `{"code":405,"message":"Invalid session"}`), kind: domain.KindError, errKind: domain.ErrCredentialExpired},
		{name: "too long", raw: ok(`{"code":413}`), kind: domain.KindError, errKind: domain.ErrBackend},
	})

	_, err = y.BuildDictionaryRequest(Query{Text: "casa", Target: "en", Credential: c})
	assert.ErrorIs(t, err, ErrNoDictionary)

	q := Query{Text: "casa", Source: "es", Target: "en", Credential: c}
	dict, err := y.BuildDictionaryRequest(q)
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", query(t, dict.URL).Get("sid"))

	res := y.ParseDictionaryResponse(ok(`{"es-en":{"regular":[{"pos":{"text":"noun"},"tr":[{"text":"house"},{"text":"home"}]}]}}`), ParseContext{Query: q})
	require.Equal(t, domain.KindDictionary, res.Kind)
	assert.Equal(t, []domain.DictEntry{{Heading: "noun", Values: []string{"house", "home"}}}, res.Entries)
}

func TestPromt(t *testing.T) {
	p := Promt{}
	c := cred(PromtSignField, "paft", PromtAppField, "xsrf")

	req, err := p.BuildRequest(Query{Text: "hola", Target: "en-gb", Credential: c})
	require.NoError(t, err)
	assert.Equal(t, "xsrf", req.Header["X-Xsrftoken"])
	var body promtRequest
	require.NoError(t, json.Unmarshal(req.Body, &body))
	assert.Equal(t, "a-en", body.DirCode)
	assert.True(t, body.UseAutoDetect)
	assert.Equal(t, "paft", body.Key)

	runParse(t, p.ParseResponse, []parseCase{
		{name: "success", raw: ok(`{"d":{"errCode":0,"result":"hello","from":"es"}}`), q: auto, kind: domain.KindTranslation, text: "hello", lang: "es"},
		{name: "direction", raw: ok(`{"d":{"errCode":-1,"errMessage":"Direction not supported"}}`), kind: domain.KindError, errKind: domain.ErrUnsupportedPair},
		{name: "xsrf", raw: status(400, "invalid xsrf token"), kind: domain.KindError, errKind: domain.ErrCredentialExpired},
		{name: "no envelope", raw: ok(`{}`), kind: domain.KindUnknown},
	})
}

func TestUrban(t *testing.T) {
	u := Urban{}

	req, err := u.BuildRequest(Query{Text: " yeet ", Source: "en-us", Target: "en", Credential: cred(UrbanAppField, "k1")})
	require.NoError(t, err)
	v := query(t, req.URL)
	assert.Equal(t, "yeet", v.Get("term"))
	assert.Equal(t, "k1", v.Get("key"))

	_, err = u.BuildRequest(Query{Text: "hola", Source: "es", Target: "en"})
	assertBackendError(t, err, domain.ErrUnsupportedPair)

	res := u.ParseResponse(ok(`{"list":[
		{"word":"yeet","definition":"to [throw] something"},
		{"word":"Yeet","definition":"an exclamation"},
		{"word":"yeet","definition":""}]}`), ParseContext{})
	require.Equal(t, domain.KindDictionary, res.Kind)
	assert.Equal(t, []domain.DictEntry{{Heading: "yeet", Values: []string{"to throw something", "an exclamation"}}}, res.Entries)

	res = u.ParseResponse(ok(`{"list":[]}`), ParseContext{})
	assert.True(t, res.IsEmpty())
}

func TestBaidu(t *testing.T) {
	b := Baidu{}
	c := cred(BaiduSignField, "320305.131321201", BaiduAppField, "tok")

	t.Run("explicit source", func(t *testing.T) {
		q := Query{Text: "hello", Source: "en", Target: "ja", Credential: c}
		req, err := b.BuildRequest(q)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(req.URL, baiduTranslateURL))
		v := form(t, req.Body)
		assert.Equal(t, "en", v.Get("from"))
		assert.Equal(t, "jp", v.Get("to"))
		assert.Equal(t, "54706.276099", v.Get("sign"))
		assert.Equal(t, "tok", v.Get("token"))

		_, more, err := b.Continue(q, 1, domain.Translation("x", ""))
		require.NoError(t, err)
		assert.False(t, more)
	})

	t.Run("detect then translate", func(t *testing.T) {
		q := Query{Text: "こんにちは", Target: "en", Credential: c}
		req, err := b.BuildRequest(q)
		require.NoError(t, err)
		assert.Equal(t, baiduDetectURL, req.URL)

		detect := b.ParseResponse(ok(`{"error":0,"msg":"success","lan":"jp"}`), ParseContext{Query: q, Hop: 0})
		require.Equal(t, domain.KindTranslation, detect.Kind)
		assert.Equal(t, "ja", detect.DetectedLang)

		next, more, err := b.Continue(q, 1, detect)
		require.NoError(t, err)
		require.True(t, more)
		assert.Equal(t, "jp", form(t, next.Body).Get("from"))

		res := b.ParseResponse(ok(`{"trans_result":{"from":"jp","data":[{"dst":"Hello"},{"dst":"there"}]}}`), ParseContext{Query: q, Hop: 1})
		require.Equal(t, domain.KindTranslation, res.Kind)
		assert.Equal(t, "Hello\nthere", res.Text)
		assert.Equal(t, "ja", res.DetectedLang)

		_, _, err = b.Continue(q, 1, domain.Translation("", ""))
		assertBackendError(t, err, domain.ErrUnsupportedPair)
	})

	runParse(t, b.ParseResponse, []parseCase{
		{name: "expired", raw: ok(`{"errno":997,"errmsg":"未知错误"}`), q: Query{Source: "en", Target: "zh"}, kind: domain.KindError, errKind: domain.ErrCredentialExpired},
		{name: "unsupported", raw: ok(`{"errno":1000}`), q: Query{Source: "en", Target: "zh"}, kind: domain.KindError, errKind: domain.ErrUnsupportedPair},
	})

	res := b.ParseDictionaryResponse(ok(`{"dict_result":{"simple_means":{"symbols":[{"parts":[
		{"part":"n.","means":["房子","住宅"]},
		{"part":"v.","means":[{"text":"收容"}]}]}]}}}`), ParseContext{})
	require.Equal(t, domain.KindDictionary, res.Kind)
	assert.Equal(t, []domain.DictEntry{
		{Heading: "n.", Values: []string{"房子", "住宅"}},
		{Heading: "v.", Values: []string{"收容"}},
	}, res.Entries)

	assert.Equal(t, "zh-tw", fromBaidu("cht"))
	assert.Equal(t, "zh", fromBaidu("zh"))
}

func TestSogou(t *testing.T) {
	s := Sogou{NewID: func() string { return "id-1" }}
	c := cred(SogouSignField, "sgtkn", SogouAppField, "8511813095152")

	req, err := s.BuildRequest(Query{Text: "你好", Target: "en", Credential: c})
	require.NoError(t, err)
	assert.Equal(t, "https://fanyi.sogou.com/", req.Header["Referer"])
	var body sogouRequest
	require.NoError(t, json.Unmarshal(req.Body, &body))
	assert.Equal(t, "auto", body.From)
	assert.Equal(t, "772634cd535db696a0eac329c968266e", body.S)
	assert.Equal(t, "id-1", body.UUID)
	assert.Equal(t, "sgtkn", body.Token)

	assert.Equal(t, "fa187fefe7cf36fcb7725764db80263f", SogouSign("zh-CHS", "en", "hello world", "12345"))

	runParse(t, s.ParseResponse, []parseCase{
		{name: "success", raw: ok(`{"status":0,"data":{"detect":{"detect":"zh-CHS"},"translate":{"errorCode":"0","dit":"hello","from":"auto"}}}`), q: auto, kind: domain.KindTranslation, text: "hello", lang: "zh"},
		{name: "sign expired", raw: ok(`{"status":0,"data":{"translate":{"errorCode":"s10"}}}`), kind: domain.KindError, errKind: domain.ErrCredentialExpired},
		{name: "status error", raw: ok(`{"status":1,"info":"sign error"}`), kind: domain.KindError, errKind: domain.ErrCredentialExpired},
		{name: "empty status", raw: ok(`{"status":1}`), kind: domain.KindUnknown},
	})
}

func TestSystran(t *testing.T) {
	s := Systran{}

	req, err := s.BuildRequest(Query{Text: "hola", Source: "es-mx", Target: "en", Credential: cred(SystranAppField, "csrf")})
	require.NoError(t, err)
	assert.Equal(t, "csrf", req.Header["X-Csrf-Token"])
	var body systranRequest
	require.NoError(t, json.Unmarshal(req.Body, &body))
	assert.Equal(t, systranRequest{Input: []string{"hola"}, Source: "es", Target: "en", Format: "text"}, body)

	runParse(t, s.ParseResponse, []parseCase{
		{name: "success", raw: ok(`{"outputs":[{"output":"hello","detectedLanguage":"es"}]}`), q: auto, kind: domain.KindTranslation, text: "hello", lang: "es"},
		{name: "csrf", raw: status(403, `{"error":{"message":"Forbidden","statusCode":403}}`), kind: domain.KindError, errKind: domain.ErrCredentialExpired},
		{name: "pair", raw: status(400, `{"error":{"message":"No Queue defined for this Language Pair","statusCode":400}}`), kind: domain.KindError, errKind: domain.ErrUnsupportedPair},
		{name: "output error", raw: ok(`{"outputs":[{"error":"engine failure"}]}`), kind: domain.KindError, errKind: domain.ErrBackend},
	})
}

func TestPapago(t *testing.T) {
	p := &Papago{deviceID: "dev-1", now: func() time.Time { return time.UnixMilli(1700000000000) }}
	c := cred(PapagoAppField, "v1.7.1_abc")

	assert.Equal(t, "cCAS7I3W3Q4a+WRUFnCxnw==", PapagoToken("v1.7.1_abc", "dev-1", papagoTranslateURL, "1700000000000"))

	q := Query{Text: "안녕", Source: "ko", Target: "zh-tw", Credential: c}
	req, err := p.BuildRequest(q)
	require.NoError(t, err)
	assert.Equal(t, papagoTranslateURL, req.URL)
	assert.Equal(t, "PPG dev-1:cCAS7I3W3Q4a+WRUFnCxnw==", req.Header["Authorization"])
	assert.Equal(t, "1700000000000", req.Header["Timestamp"])
	v := form(t, req.Body)
	assert.Equal(t, "ko", v.Get("source"))
	assert.Equal(t, "zh-TW", v.Get("target"))

	aq := Query{Text: "안녕", Target: "en", Credential: c}
	req, err = p.BuildRequest(aq)
	require.NoError(t, err)
	assert.Equal(t, papagoDetectURL, req.URL)

	detect := p.ParseResponse(ok(`{"langCode":"ko"}`), ParseContext{Query: aq})
	require.Equal(t, "ko", detect.DetectedLang)
	next, more, err := p.Continue(aq, 1, detect)
	require.NoError(t, err)
	require.True(t, more)
	assert.Equal(t, "ko", form(t, next.Body).Get("source"))

	_, _, err = p.Continue(aq, 1, domain.Translation("", "unk"))
	assertBackendError(t, err, domain.ErrUnsupportedPair)

	runParse(t, p.ParseResponse, []parseCase{
		{name: "translated", raw: ok(`{"translatedText":"hello","srcLangType":"ko"}`), q: aq, hop: 1, kind: domain.KindTranslation, text: "hello", lang: "ko"},
		{name: "auth", raw: status(403, `{"errorCode":"024","errorMessage":"Authentication failed"}`), kind: domain.KindError, errKind: domain.ErrCredentialExpired},
		{name: "unsupported", raw: status(400, `{"errorCode":"N2MT05","errorMessage":"source and target"}`), kind: domain.KindError, errKind: domain.ErrUnsupportedPair},
	})
}

func TestLingvanex(t *testing.T) {
	l := Lingvanex{}

	req, err := l.BuildRequest(Query{Text: "hola", Target: "pt-br", Credential: cred(LingvanexAppField, "abc")})
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc", req.Header["Authorization"])
	var body map[string]any
	require.NoError(t, json.Unmarshal(req.Body, &body))
	assert.NotContains(t, body, "from")
	assert.Equal(t, "pt_BR", body["to"])

	for code, want := range map[string]string{"de": "de_DE", "en": "en_GB", "zh": "zh_Hans", "es-mx": "es_MX"} {
		assert.Equal(t, want, lingvanexCode(code), code)
	}

	runParse(t, l.ParseResponse, []parseCase{
		{name: "success", raw: ok(`{"err":null,"result":"hello","from":"es_ES"}`), q: auto, kind: domain.KindTranslation, text: "hello", lang: "es"},
		{name: "error", raw: ok(`{"err":"Language not supported"}`), kind: domain.KindError, errKind: domain.ErrUnsupportedPair},
		{name: "unauthorized", raw: status(401, ""), kind: domain.KindError, errKind: domain.ErrCredentialExpired},
	})
}

func TestMyMemory(t *testing.T) {
	m := MyMemory{Email: "me@example.com"}

	req, err := m.BuildRequest(Query{Text: "hola", Source: "es", Target: "en-us"})
	require.NoError(t, err)
	v := query(t, req.URL)
	assert.Equal(t, "es|en-US", v.Get("langpair"))
	assert.Equal(t, "me@example.com", v.Get("de"))

	runParse(t, m.ParseResponse, []parseCase{
		{name: "success", raw: ok(`{"responseStatus":200,"responseData":{"translatedText":"hello","detectedLanguage":"es-ES"}}`), q: auto, kind: domain.KindTranslation, text: "hello", lang: "es"},
		{name: "invalid pair", raw: ok(`{"responseStatus":"403","responseDetails":"'AUTO' IS AN INVALID SOURCE LANGUAGE . EXAMPLE: LANGPAIR=EN|IT"}`), kind: domain.KindError, errKind: domain.ErrUnsupportedPair},
		{name: "quota", raw: ok(`{"responseStatus":429,"responseDetails":"MYMEMORY WARNING: YOU USED ALL AVAILABLE FREE TRANSLATIONS FOR TODAY"}`), kind: domain.KindError, errKind: domain.ErrBackend},
	})
}

func TestApertium(t *testing.T) {
	a := Apertium{}

	req, err := a.BuildRequest(Query{Text: "hola", Source: "es", Target: "pt-br"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(req.URL, apertiumTranslateURL+"?"))
	v := query(t, req.URL)
	assert.Equal(t, "spa|por", v.Get("langpair"))
	assert.Equal(t, "no", v.Get("markUnknown"))
	assert.Equal(t, "hola", v.Get("q"))

	_, err = a.BuildRequest(Query{Text: "hola", Source: "es", Target: "xx"})
	assertBackendError(t, err, domain.ErrUnsupportedPair)

	req, err = a.BuildRequest(auto)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(req.URL, apertiumDetectURL+"?"))
	assert.Equal(t, "hola", query(t, req.URL).Get("q"))

	detect := a.ParseResponse(ok(`{"cat":12.5,"spa":97.1,"por":40}`), ParseContext{Query: auto})
	require.Equal(t, domain.KindTranslation, detect.Kind)
	assert.Equal(t, "es", detect.DetectedLang)

	next, more, err := a.Continue(auto, 1, detect)
	require.NoError(t, err)
	require.True(t, more)
	assert.Equal(t, "spa|eng", query(t, next.URL).Get("langpair"))

	_, more, _ = a.Continue(auto, 2, domain.Translation("hello", ""))
	assert.False(t, more)
	_, more, _ = a.Continue(Query{Text: "hola", Source: "es", Target: "en"}, 1, domain.Translation("hello", ""))
	assert.False(t, more)

	_, _, err = a.Continue(auto, 1, domain.Translation("", ""))
	assertBackendError(t, err, domain.ErrUnsupportedPair)

	runParse(t, a.ParseResponse, []parseCase{
		{name: "translated", raw: ok(`{"responseData":{"translatedText":"hello"},"responseDetails":null,"responseStatus":200}`), q: auto, hop: 1, kind: domain.KindTranslation, text: "hello"},
		{name: "variant code", raw: ok(`{"cat_valencia":80,"oci":10}`), q: auto, kind: domain.KindTranslation, lang: "ca"},
		{name: "nothing identified", raw: ok(`{"xyz":3}`), q: auto, kind: domain.KindUnknown},
		{name: "pair not installed", raw: status(400, `{"status":"error","code":400,"message":"Bad Request","explanation":"That pair is not installed"}`), kind: domain.KindError, errKind: domain.ErrUnsupportedPair},
		{name: "status in body", raw: ok(`{"responseData":{},"responseDetails":"Internal error","responseStatus":500}`), kind: domain.KindError, errKind: domain.ErrBackend},
		{name: "server error", raw: status(503, ""), kind: domain.KindError, errKind: domain.ErrBackend},
		{name: "garbage", raw: ok(`<html>`), kind: domain.KindUnknown},
	})
}

func TestGlosbe(t *testing.T) {
	g := Glosbe{}

	req, err := g.BuildRequest(Query{Text: "hola amigo", Source: "es", Target: "en-us"})
	require.NoError(t, err)
	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "text/plain", req.Header["Content-Type"])
	assert.Equal(t, "hola amigo", string(req.Body))
	v := query(t, req.URL)
	assert.Equal(t, "es", v.Get("sourceLang"))
	assert.Equal(t, "en", v.Get("targetLang"))

	req, err = g.BuildRequest(auto)
	require.NoError(t, err)
	assert.False(t, query(t, req.URL).Has("sourceLang"))

	_, err = g.BuildDictionaryRequest(auto)
	assert.ErrorIs(t, err, ErrNoDictionary)

	req, err = g.BuildDictionaryRequest(Query{Text: "casa", Source: "es", Target: "de"})
	require.NoError(t, err)
	v = query(t, req.URL)
	assert.Equal(t, "es", v.Get("from"))
	assert.Equal(t, "de", v.Get("dest"))
	assert.Equal(t, "casa", v.Get("phrase"))

	res := g.ParseDictionaryResponse(ok(`{"result":"ok","tuc":[
		{"phrase":{"text":"Haus","language":"de"}},
		{"meanings":[{"text":"building"}]},
		{"phrase":{"text":"Heim","language":"de"}},
		{"phrase":{"text":"Haus","language":"de"}}]}`), ParseContext{})
	require.Equal(t, domain.KindDictionary, res.Kind)
	assert.Equal(t, []domain.DictEntry{{Values: []string{"Haus", "Heim"}}}, res.Entries)

	res = g.ParseDictionaryResponse(ok(`{"result":"ok","tuc":[]}`), ParseContext{})
	assert.Equal(t, domain.KindDictionary, res.Kind)
	assert.Empty(t, res.Entries)

	res = g.ParseDictionaryResponse(ok(`{"result":"error","message":"Unsupported language"}`), ParseContext{})
	assert.Equal(t, domain.ErrUnsupportedPair, res.ErrKind)

	runParse(t, g.ParseResponse, []parseCase{
		{name: "success", raw: ok(`{"input":"hola","translation":"hello"}`), q: Query{Text: "hola", Source: "es", Target: "en"}, kind: domain.KindTranslation, text: "hello"},
		{name: "detected", raw: ok(`{"translation":"hello","sourceLang":"es"}`), q: auto, kind: domain.KindTranslation, text: "hello", lang: "es"},
		{name: "rate limited", raw: status(429, `{"message":"Too many requests"}`), kind: domain.KindError, errKind: domain.ErrBackend},
		{name: "missing field", raw: ok(`{"input":"hola"}`), kind: domain.KindUnknown},
	})
}
